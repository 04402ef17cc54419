package search

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/nexus-mind/nexus-memory/domain/facts"
	"github.com/nexus-mind/nexus-memory/pkg/apperror"
	"github.com/nexus-mind/nexus-memory/pkg/logger"
)

const (
	defaultLimit         = 5
	maxLimit             = 100
	defaultMinSimilarity = 0.3
)

// episodeSearcher is the vector query surface the service needs.
type episodeSearcher interface {
	Semantic(ctx context.Context, params SemanticParams) ([]*SemanticRow, error)
}

// accessRecorder bumps access tracking on returned episodes.
type accessRecorder interface {
	TouchAccess(ctx context.Context, ids ...uuid.UUID)
}

// factFinder resolves canonical fact values for hybrid answers.
type factFinder interface {
	Query(ctx context.Context, req *facts.QueryRequest) (*facts.QueryResponse, error)
}

// queryEncoder embeds query text.
type queryEncoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
}

// Service answers semantic KNN and hybrid fact/narrative queries.
type Service struct {
	repo   episodeSearcher
	access accessRecorder
	facts  factFinder
	enc    queryEncoder
	log    *slog.Logger
}

// NewService creates a new search service
func NewService(repo episodeSearcher, access accessRecorder, factsSvc factFinder, enc queryEncoder, log *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		access: access,
		facts:  factsSvc,
		enc:    enc,
		log:    log.With(logger.Scope("search")),
	}
}

// Search runs a semantic KNN query over episode embeddings.
func (s *Service) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	if req.Query == "" {
		return nil, apperror.ErrValidation.WithMessage("query is required")
	}

	limit := req.Limit
	if limit == 0 {
		limit = defaultLimit
	}
	if limit < 1 || limit > maxLimit {
		return nil, apperror.ErrValidation.WithMessage("limit must be between 1 and 100")
	}

	minSimilarity := defaultMinSimilarity
	if req.MinSimilarity != nil {
		minSimilarity = *req.MinSimilarity
		if minSimilarity < 0 || minSimilarity > 1 {
			return nil, apperror.ErrValidation.WithMessage("min_similarity must be between 0 and 1")
		}
	}

	rows, err := s.semantic(ctx, req.Query, limit, minSimilarity, nil)
	if err != nil {
		return nil, err
	}

	results := make([]*SearchResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, row.toResult())
	}

	s.log.Debug("semantic search served",
		slog.Int("hits", len(results)),
		slog.Float64("min_similarity", minSimilarity))

	return &SearchResponse{
		Success: true,
		Count:   len(results),
		Results: results,
	}, nil
}

// Hybrid answers one query from the fastest suitable source. Queries
// that clearly ask for a canonical scalar go to the fact store first;
// a fact miss, or any query without clear fact intent, falls through
// to semantic search and answers with the top hit. Misses never leak
// a 404: an empty result set is a well-formed source:"none" response.
func (s *Service) Hybrid(ctx context.Context, req *HybridRequest) (*HybridResponse, error) {
	start := time.Now()

	if req.Query == "" {
		return nil, apperror.ErrValidation.WithMessage("query is required")
	}

	prefer := req.Prefer
	if prefer == "" {
		prefer = PreferAuto
	}
	if prefer != PreferFact && prefer != PreferNarrative && prefer != PreferAuto {
		return nil, apperror.ErrValidation.WithMessage("prefer must be fact, narrative or auto")
	}

	limit := req.Limit
	if limit == 0 {
		limit = defaultLimit
	}
	if limit < 1 || limit > maxLimit {
		return nil, apperror.ErrValidation.WithMessage("limit must be between 1 and 100")
	}

	if prefer != PreferNarrative {
		if factType, ok := ClassifyQuery(req.Query); ok {
			resp, err := s.facts.Query(ctx, &facts.QueryRequest{
				FactType:   factType,
				FilterTags: req.Tags,
			})
			switch {
			case err == nil:
				return &HybridResponse{
					Success:     true,
					Answer:      resp.Value,
					Source:      SourceFact,
					EpisodeID:   resp.SourceEpisodeID,
					Confidence:  resp.Confidence,
					QueryTimeMs: elapsedMs(start),
				}, nil
			case !isFactMiss(err):
				return nil, err
			}
			s.log.Debug("fact miss, falling back to narrative",
				slog.String("fact_type", factType))
		}
	}

	rows, err := s.semantic(ctx, req.Query, limit, defaultMinSimilarity, req.Tags)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &HybridResponse{
			Success:     false,
			Answer:      nil,
			Source:      SourceNone,
			QueryTimeMs: elapsedMs(start),
		}, nil
	}

	top := rows[0]
	id := top.ID
	return &HybridResponse{
		Success:     true,
		Answer:      top.Content,
		Source:      SourceNarrative,
		EpisodeID:   &id,
		Confidence:  top.Similarity,
		QueryTimeMs: elapsedMs(start),
	}, nil
}

// semantic encodes the query and runs the KNN scan. Access tracking for
// the returned episodes happens off the request path: retrieval never
// waits on, or fails because of, the bookkeeping writes.
func (s *Service) semantic(ctx context.Context, query string, limit int, minSimilarity float64, tags []string) ([]*SemanticRow, error) {
	vec, err := s.enc.Encode(ctx, query)
	if err != nil {
		s.log.Error("query encoding failed", logger.Error(err))
		return nil, apperror.ErrEncoderUnavailable.WithInternal(err)
	}

	rows, err := s.repo.Semantic(ctx, SemanticParams{
		Vector:        vec,
		MinSimilarity: minSimilarity,
		Limit:         limit,
		Tags:          tags,
	})
	if err != nil {
		return nil, err
	}

	if len(rows) > 0 {
		ids := make([]uuid.UUID, len(rows))
		for i, row := range rows {
			ids[i] = row.ID
		}
		go s.access.TouchAccess(context.Background(), ids...)
	}

	return rows, nil
}

// isFactMiss reports whether the fact lookup found no carrying episode,
// as opposed to failing.
func isFactMiss(err error) bool {
	appErr, ok := err.(*apperror.Error)
	return ok && appErr.Code == apperror.ErrFactNotFound.Code
}

// elapsedMs reports wall time in milliseconds, rounded to two decimals.
func elapsedMs(start time.Time) float64 {
	return math.Round(float64(time.Since(start).Microseconds())/10) / 100
}
