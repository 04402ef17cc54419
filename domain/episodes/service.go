package episodes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nexus-mind/nexus-memory/domain/facts"
	"github.com/nexus-mind/nexus-memory/internal/cache"
	"github.com/nexus-mind/nexus-memory/internal/config"
	"github.com/nexus-mind/nexus-memory/pkg/apperror"
	"github.com/nexus-mind/nexus-memory/pkg/logger"
	"github.com/nexus-mind/nexus-memory/pkg/pgutils"
)

// RecentCachePrefix namespaces the recent-episodes cache entries. Ingest,
// consciousness updates and consolidation invalidate this prefix.
const RecentCachePrefix = "recent:"

// Service implements episode ingestion and recent retrieval.
type Service struct {
	repo  *Repository
	cache *cache.Service
	cfg   *config.Config
	log   *slog.Logger
}

// NewService creates a new episodes service
func NewService(repo *Repository, cacheSvc *cache.Service, cfg *config.Config, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cacheSvc,
		cfg:   cfg,
		log:   log.With(logger.Scope("episodes")),
	}
}

// Ingest validates and stores one action as an episode. The content is
// derived from the action details, facts are extracted inline, and the
// enqueue trigger schedules the embedding in the same transaction.
func (s *Service) Ingest(ctx context.Context, req *IngestRequest) (*IngestResponse, error) {
	if req.ActionType == "" {
		return nil, apperror.ErrValidation.WithMessage("action_type is required")
	}

	importance, err := resolveImportance(req.ActionDetails)
	if err != nil {
		return nil, err
	}

	content, err := deriveContent(req.ActionType, req.ActionDetails)
	if err != nil {
		return nil, apperror.ErrValidation.WithMessage("action_details is not serializable")
	}

	details := req.ActionDetails
	if details == nil {
		details = map[string]any{}
	}
	contextState := req.ContextState
	if contextState == nil {
		contextState = map[string]any{}
	}

	meta := Metadata{
		MetaActionType:    req.ActionType,
		MetaActionDetails: details,
		MetaContextState:  contextState,
	}
	if extracted := facts.Extract(content); extracted != nil {
		meta[MetaFacts] = extracted
	}

	ep := &Episode{
		Content:         content,
		ImportanceScore: importance,
		Tags:            req.Tags,
		Metadata:        meta,
	}

	if err := s.insertWithRetry(ctx, ep); err != nil {
		return nil, err
	}

	s.cache.InvalidatePrefix(ctx, RecentCachePrefix)

	s.log.Info("episode stored",
		slog.String("episode_id", ep.ID.String()),
		slog.String("action_type", req.ActionType),
		slog.Float64("importance", importance))

	return &IngestResponse{
		Success:   true,
		EpisodeID: ep.ID,
		Timestamp: ep.CreatedAt,
		Message:   "action recorded",
	}, nil
}

// insertWithRetry retries exactly once on a serialization conflict; the
// second failure surfaces to the caller.
func (s *Service) insertWithRetry(ctx context.Context, ep *Episode) error {
	err := s.repo.Insert(ctx, ep)
	if err == nil {
		return nil
	}
	if !pgutils.IsSerializationFailure(err) {
		return err
	}
	s.log.Warn("episode insert conflicted, retrying once", logger.Error(err))
	return s.repo.Insert(ctx, ep)
}

// Recent returns the newest episodes, read through the cache. A cache
// hit skips the database; misses populate the entry with the configured
// TTL.
func (s *Service) Recent(ctx context.Context, limit int) (*RecentResponse, error) {
	key := fmt.Sprintf("%s%d", RecentCachePrefix, limit)

	cached := new(RecentResponse)
	if s.cache.GetJSON(ctx, key, cached) {
		return cached, nil
	}

	rows, err := s.repo.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}

	dtos := make([]*EpisodeDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, row.ToDTO())
	}

	resp := &RecentResponse{
		Success:  true,
		Count:    len(dtos),
		Episodes: dtos,
	}
	s.cache.SetJSON(ctx, key, resp, s.cfg.Redis.TTL())
	return resp, nil
}

// resolveImportance reads action_details.importance_score. Absent means
// the neutral default; out-of-range or non-numeric values are rejected.
func resolveImportance(details map[string]any) (float64, error) {
	raw, ok := details["importance_score"]
	if !ok || raw == nil {
		return 0.5, nil
	}
	v, ok := raw.(float64)
	if !ok {
		return 0, apperror.ErrValidation.WithMessage("importance_score must be a number")
	}
	if v < 0 || v > 1 {
		return 0, apperror.ErrValidation.WithMessage("importance_score must be between 0 and 1")
	}
	return v, nil
}

// deriveContent picks the episode content: an explicit content string
// wins, then the canonical JSON of the details, then the action type.
func deriveContent(actionType string, details map[string]any) (string, error) {
	if v, ok := details["content"].(string); ok && v != "" {
		return v, nil
	}
	if len(details) > 0 {
		data, err := json.Marshal(details)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return actionType, nil
}
