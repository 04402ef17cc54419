package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/nexus-mind/nexus-memory/domain/episodes"
	"github.com/nexus-mind/nexus-memory/pkg/apperror"
	"github.com/nexus-mind/nexus-memory/pkg/logger"
)

const (
	defaultLimit = 10
	maxLimit     = 100

	// TagConsciousness marks sampled states; paired with the state type
	// tag it addresses one chain.
	TagConsciousness = "consciousness"

	// ActionConsciousness is the action_type stamped on samples.
	ActionConsciousness = "consciousness_update"
)

// validRelationships are the edge labels add_temporal_ref accepts.
var validRelationships = map[string]bool{
	"before":  true,
	"after":   true,
	"causes":  true,
	"effects": true,
}

// stateMetaKeys maps each sample kind to the metadata key its vector
// lands under.
var stateMetaKeys = map[string]string{
	"emotional": episodes.MetaEmotional8D,
	"somatic":   episodes.MetaSomatic7D,
}

// temporalStore is the repository surface the service needs.
type temporalStore interface {
	Window(ctx context.Context, p WindowParams) ([]*episodes.EpisodeRow, error)
	RefsFor(ctx context.Context, source uuid.UUID, relationship string) ([]episodes.TemporalRef, error)
	ByIDs(ctx context.Context, ids []uuid.UUID) ([]*episodes.EpisodeRow, error)
	AddRef(ctx context.Context, source, target uuid.UUID, relationship string) (bool, error)
	LatestSample(ctx context.Context, stateType string) (*episodes.Episode, error)
	PatchMetadata(ctx context.Context, id uuid.UUID, patch map[string]any) error
}

// episodeDirectory answers existence checks and access bookkeeping.
type episodeDirectory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	TouchAccess(ctx context.Context, ids ...uuid.UUID)
}

// sampleIngester stores consciousness samples through the normal
// ingestion path, so they get fact extraction, the enqueue trigger and
// cache invalidation like any other episode.
type sampleIngester interface {
	Ingest(ctx context.Context, req *episodes.IngestRequest) (*episodes.IngestResponse, error)
}

// Service answers temporal window, link-traversal and consciousness
// sampling operations.
type Service struct {
	repo   temporalStore
	dir    episodeDirectory
	ingest sampleIngester
	log    *slog.Logger
}

// NewService creates a new temporal service
func NewService(repo temporalStore, dir episodeDirectory, ingest sampleIngester, log *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		dir:    dir,
		ingest: ingest,
		log:    log.With(logger.Scope("temporal")),
	}
}

// Before returns episodes strictly older than the timestamp, newest
// first. Backward scans are archaeology, not recall: they never bump
// access tracking.
func (s *Service) Before(ctx context.Context, req *WindowRequest) (*WindowResponse, error) {
	if req.Timestamp == nil {
		return nil, apperror.ErrValidation.WithMessage("timestamp is required")
	}
	limit, err := normalizeLimit(req.Limit)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.Window(ctx, WindowParams{
		Before: req.Timestamp,
		Tags:   req.Tags,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}
	return windowResponse(rows), nil
}

// After returns episodes strictly newer than the timestamp, oldest
// first, and records access on the hits.
func (s *Service) After(ctx context.Context, req *WindowRequest) (*WindowResponse, error) {
	if req.Timestamp == nil {
		return nil, apperror.ErrValidation.WithMessage("timestamp is required")
	}
	limit, err := normalizeLimit(req.Limit)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.Window(ctx, WindowParams{
		After:       req.Timestamp,
		Tags:        req.Tags,
		Limit:       limit,
		OldestFirst: true,
	})
	if err != nil {
		return nil, err
	}

	s.touch(rows)
	return windowResponse(rows), nil
}

// Range returns episodes inside the inclusive [start, end] window,
// oldest first, and records access on the hits.
func (s *Service) Range(ctx context.Context, req *WindowRequest) (*WindowResponse, error) {
	if req.Start == nil || req.End == nil {
		return nil, apperror.ErrValidation.WithMessage("start and end are required")
	}
	limit, err := normalizeLimit(req.Limit)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.Window(ctx, WindowParams{
		Start:       req.Start,
		End:         req.End,
		Tags:        req.Tags,
		Limit:       limit,
		OldestFirst: true,
	})
	if err != nil {
		return nil, err
	}

	s.touch(rows)
	return windowResponse(rows), nil
}

// Related resolves the episodes a source links to, newest first.
func (s *Service) Related(ctx context.Context, req *RelatedRequest) (*RelatedResponse, error) {
	if req.EpisodeID == uuid.Nil {
		return nil, apperror.ErrValidation.WithMessage("episode_id is required")
	}
	if req.RelationshipType != "" && !validRelationships[req.RelationshipType] {
		return nil, apperror.ErrBadRequest.WithMessage("relationship_type must be one of before, after, causes, effects")
	}

	exists, err := s.dir.Exists(ctx, req.EpisodeID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperror.ErrEpisodeNotFound
	}

	refs, err := s.repo.RefsFor(ctx, req.EpisodeID, req.RelationshipType)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(refs))
	seen := make(map[uuid.UUID]bool, len(refs))
	for _, ref := range refs {
		if !seen[ref.EpisodeID] {
			seen[ref.EpisodeID] = true
			ids = append(ids, ref.EpisodeID)
		}
	}

	rows, err := s.repo.ByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	dtos := make([]*episodes.EpisodeDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, row.ToDTO())
	}
	return &RelatedResponse{Success: true, Count: len(dtos), Episodes: dtos}, nil
}

// Link appends one directed edge between two existing episodes.
func (s *Service) Link(ctx context.Context, req *LinkRequest) (*LinkResponse, error) {
	if req.SourceID == uuid.Nil || req.TargetID == uuid.Nil {
		return nil, apperror.ErrValidation.WithMessage("source_id and target_id are required")
	}
	if !validRelationships[req.Relationship] {
		return nil, apperror.ErrBadRequest.WithMessage("relationship must be one of before, after, causes, effects")
	}

	for _, ep := range []struct {
		label string
		id    uuid.UUID
	}{
		{"source", req.SourceID},
		{"target", req.TargetID},
	} {
		exists, err := s.dir.Exists(ctx, ep.id)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, apperror.ErrEpisodeNotFound.WithMessage(ep.label + " episode not found")
		}
	}

	stored, err := s.repo.AddRef(ctx, req.SourceID, req.TargetID, req.Relationship)
	if err != nil {
		return nil, err
	}
	if !stored {
		// Either endpoint vanished between the check and the write.
		return nil, apperror.ErrEpisodeNotFound
	}

	s.log.Info("temporal link stored",
		slog.String("source_id", req.SourceID.String()),
		slog.String("target_id", req.TargetID.String()),
		slog.String("relationship", req.Relationship))

	return &LinkResponse{
		Success:      true,
		SourceID:     req.SourceID,
		TargetID:     req.TargetID,
		Relationship: req.Relationship,
	}, nil
}

// ConsciousnessUpdate stores one sampled state as an episode and chains
// it to the previous sample of the same type. The sample is committed
// first; a failed auto-link or metadata patch degrades the response but
// never rolls the episode back.
func (s *Service) ConsciousnessUpdate(ctx context.Context, req *ConsciousnessRequest) (*ConsciousnessResponse, error) {
	metaKey, ok := stateMetaKeys[req.StateType]
	if !ok {
		return nil, apperror.ErrBadRequest.WithMessage("state_type must be emotional or somatic")
	}

	autoLink := true
	if req.AutoLinkPrevious != nil {
		autoLink = *req.AutoLinkPrevious
	}
	state := req.StateData
	if state == nil {
		state = map[string]any{}
	}

	// Chain position is resolved before the insert so the new sample
	// never matches itself.
	var prev *episodes.Episode
	if autoLink {
		var err error
		prev, err = s.repo.LatestSample(ctx, req.StateType)
		if err != nil {
			return nil, err
		}
	}

	details := map[string]any{
		"content":    sampleContent(req.StateType, state),
		"state_type": req.StateType,
		"state_data": state,
	}
	if req.Importance != nil {
		details["importance_score"] = *req.Importance
	}

	stored, err := s.ingest.Ingest(ctx, &episodes.IngestRequest{
		ActionType:    ActionConsciousness,
		ActionDetails: details,
		Tags:          []string{TagConsciousness, req.StateType},
	})
	if err != nil {
		return nil, err
	}

	resp := &ConsciousnessResponse{
		Success:             true,
		EpisodeID:           stored.EpisodeID,
		StateType:           req.StateType,
		TemporalChainLength: 1,
		Timestamp:           stored.Timestamp,
	}

	if prev != nil {
		linked, err := s.repo.AddRef(ctx, stored.EpisodeID, prev.ID, "after")
		switch {
		case err != nil:
			s.log.Warn("consciousness auto-link failed",
				slog.String("episode_id", stored.EpisodeID.String()),
				slog.String("previous_id", prev.ID.String()),
				logger.Error(err))
		case !linked:
			s.log.Warn("consciousness auto-link skipped, previous sample missing",
				slog.String("previous_id", prev.ID.String()))
		default:
			prevID := prev.ID
			resp.LinkedToPrevious = &prevID
			resp.TemporalChainLength = prev.Metadata.ChainLength() + 1
		}
	}

	patch := map[string]any{
		metaKey:                  state,
		episodes.MetaChainLength: resp.TemporalChainLength,
	}
	if err := s.repo.PatchMetadata(ctx, stored.EpisodeID, patch); err != nil {
		s.log.Warn("consciousness metadata patch failed",
			slog.String("episode_id", stored.EpisodeID.String()),
			logger.Error(err))
	}

	s.log.Info("consciousness sample stored",
		slog.String("episode_id", stored.EpisodeID.String()),
		slog.String("state_type", req.StateType),
		slog.Int("chain_length", resp.TemporalChainLength))

	return resp, nil
}

// touch bumps access tracking off the request path.
func (s *Service) touch(rows []*episodes.EpisodeRow) {
	if len(rows) == 0 {
		return
	}
	ids := make([]uuid.UUID, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	go s.dir.TouchAccess(context.Background(), ids...)
}

func normalizeLimit(limit int) (int, error) {
	if limit == 0 {
		return defaultLimit, nil
	}
	if limit < 1 || limit > maxLimit {
		return 0, apperror.ErrValidation.WithMessage("limit must be between 1 and 100")
	}
	return limit, nil
}

func windowResponse(rows []*episodes.EpisodeRow) *WindowResponse {
	dtos := make([]*episodes.EpisodeDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, row.ToDTO())
	}
	return &WindowResponse{Success: true, Count: len(dtos), Episodes: dtos}
}

// sampleContent renders one sample as encoder input. Keys are sorted so
// identical states embed identically.
func sampleContent(stateType string, state map[string]any) string {
	if len(state) == 0 {
		return stateType + " state sample"
	}

	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		switch v := state[k].(type) {
		case float64:
			parts = append(parts, k+"="+strconv.FormatFloat(v, 'g', -1, 64))
		default:
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
	}
	return fmt.Sprintf("%s state sample: %s", stateType, strings.Join(parts, ", "))
}
