package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"github.com/nexus-mind/nexus-memory/pkg/apperror"
	"github.com/nexus-mind/nexus-memory/pkg/logger"
	"github.com/nexus-mind/nexus-memory/pkg/pgutils"
)

// Repository runs vector similarity queries against memory.episodes.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new search repository
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("search.repo")),
	}
}

// SemanticParams narrows a KNN search.
type SemanticParams struct {
	Vector        []float32
	MinSimilarity float64
	Limit         int
	Tags          []string
}

// SemanticRow is one scored episode.
type SemanticRow struct {
	ID              uuid.UUID
	Content         string
	Similarity      float64
	ImportanceScore float64
	Tags            []string
	CreatedAt       time.Time
}

// Semantic returns the nearest episodes by cosine distance. Episodes
// without an embedding never match, and rows under the similarity floor
// are dropped in SQL so LIMIT counts qualifying hits only.
func (r *Repository) Semantic(ctx context.Context, params SemanticParams) ([]*SemanticRow, error) {
	if len(params.Vector) == 0 {
		return nil, apperror.ErrBadRequest.WithMessage("vector required for semantic search")
	}
	vectorStr := pgutils.FormatVector(params.Vector)

	// Cosine distance drives the index scan; callers see and filter on
	// similarity = 1 - distance.
	query := `
		SELECT e.id, e.content,
		       (1 - (e.embedding <=> ?::vector)) AS similarity,
		       e.importance_score, e.tags, e.created_at
		FROM memory.episodes e
		WHERE e.embedding IS NOT NULL
		  AND (1 - (e.embedding <=> ?::vector)) >= ?
	`
	args := []any{vectorStr, vectorStr, params.MinSimilarity}

	if len(params.Tags) > 0 {
		query += " AND e.tags && ?"
		args = append(args, pq.Array(params.Tags))
	}

	query += `
		ORDER BY e.embedding <=> ?::vector
		LIMIT ?
	`
	args = append(args, vectorStr, params.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.log.Error("semantic search failed", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	defer rows.Close()

	var results []*SemanticRow
	for rows.Next() {
		row := new(SemanticRow)
		if err := rows.Scan(&row.ID, &row.Content, &row.Similarity, &row.ImportanceScore, pq.Array(&row.Tags), &row.CreatedAt); err != nil {
			r.log.Error("semantic search row scan failed", logger.Error(err))
			return nil, apperror.ErrDatabase.WithInternal(err)
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return results, nil
}
