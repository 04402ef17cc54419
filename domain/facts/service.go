package facts

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nexus-mind/nexus-memory/pkg/apperror"
	"github.com/nexus-mind/nexus-memory/pkg/logger"
)

// Service answers fact queries and runs backfill sweeps.
type Service struct {
	repo *Repository
	log  *slog.Logger
}

// NewService creates a new facts service
func NewService(repo *Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With(logger.Scope("facts")),
	}
}

// Query resolves the canonical value of one fact type: the first
// matching episode per the requested ordering supplies the value.
func (s *Service) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	if req.FactType == "" {
		return nil, apperror.ErrValidation.WithMessage("fact_type is required")
	}
	if !IsKnownFactType(req.FactType) {
		return nil, apperror.ErrValidation.WithMessage("unknown fact_type: " + req.FactType)
	}

	limit := req.Limit
	if limit == 0 {
		limit = 1
	}
	if limit < 1 || limit > 100 {
		return nil, apperror.ErrValidation.WithMessage("limit must be between 1 and 100")
	}

	order := req.Order
	if order == "" {
		order = "desc"
	}
	if order != "asc" && order != "desc" {
		return nil, apperror.ErrValidation.WithMessage("order must be asc or desc")
	}

	rows, err := s.repo.FindByFactType(ctx, QueryParams{
		FactType:   req.FactType,
		FilterTags: req.FilterTags,
		After:      req.After,
		Before:     req.Before,
		Limit:      limit,
		Ascending:  order == "asc",
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperror.ErrFactNotFound
	}

	row := rows[0]
	return buildResponse(req.FactType, row), nil
}

// buildResponse shapes one fact row into the wire response. The
// remaining facts of the source episode ride along as context.
func buildResponse(factType string, row *FactRow) *QueryResponse {
	confidence := 0.0
	if c, ok := row.Facts[KeyExtractionConfidence].(float64); ok {
		confidence = c
	}

	context := map[string]any{}
	for k, v := range row.Facts {
		switch k {
		case factType, KeyExtractionMethod, KeyExtractionConfidence, KeyLastUpdated:
			continue
		}
		context[k] = v
	}
	if len(context) == 0 {
		context = nil
	}

	id := row.ID
	ts := row.CreatedAt
	return &QueryResponse{
		Success:           true,
		FactType:          factType,
		Value:             row.Facts[factType],
		SourceEpisodeID:   &id,
		Confidence:        confidence,
		Timestamp:         &ts,
		AdditionalContext: context,
	}
}

// Backfill sweeps every episode oldest-first, extracting facts where
// the metadata carries none. Dry runs count without writing.
func (s *Service) Backfill(ctx context.Context, req *BackfillRequest) (*BackfillResponse, error) {
	batchSize := req.BatchSize
	if batchSize == 0 {
		batchSize = 100
	}
	if batchSize < 1 || batchSize > 1000 {
		return nil, apperror.ErrValidation.WithMessage("batch_size must be between 1 and 1000")
	}

	resp := &BackfillResponse{Success: true, DryRun: req.DryRun}

	cursorTime := time.Time{}
	cursorID := uuid.Nil
	for {
		rows, err := s.repo.ListForBackfill(ctx, cursorTime, cursorID, batchSize)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			break
		}

		for _, row := range rows {
			resp.Processed++
			if row.HasFacts {
				continue
			}
			extracted := Extract(row.Content)
			if extracted == nil {
				continue
			}
			if !req.DryRun {
				if err := s.repo.SetFacts(ctx, row.ID, extracted); err != nil {
					resp.Failed++
					s.log.Warn("fact backfill write failed",
						slog.String("episode_id", row.ID.String()),
						logger.Error(err))
					continue
				}
			}
			resp.FactsExtracted++
		}

		last := rows[len(rows)-1]
		cursorTime, cursorID = last.CreatedAt, last.ID
	}

	s.log.Info("fact backfill finished",
		slog.Int("processed", resp.Processed),
		slog.Int("extracted", resp.FactsExtracted),
		slog.Int("failed", resp.Failed),
		slog.Bool("dry_run", resp.DryRun))

	return resp, nil
}
