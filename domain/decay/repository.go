package decay

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"github.com/nexus-mind/nexus-memory/domain/episodes"
	"github.com/nexus-mind/nexus-memory/pkg/apperror"
	"github.com/nexus-mind/nexus-memory/pkg/logger"
)

// Repository runs decay-score aggregates over memory.episodes through
// the calculate_decay_score procedure.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new decay repository
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("decay.repo")),
	}
}

// BandCounts aggregates one analysis sample. Bands holds the five
// 0.2-wide score buckets in ascending order.
type BandCounts struct {
	Analyzed int
	Bands    [5]int
	VeryHigh int
}

// AnalyzeBands scores up to limit episodes at least minAgeDays old,
// oldest first, and buckets them in SQL. The procedure carries the
// scoring weights.
func (r *Repository) AnalyzeBands(ctx context.Context, limit, minAgeDays int) (*BandCounts, error) {
	query := `
		WITH scored AS (
			SELECT memory.calculate_decay_score(e.importance_score, e.created_at, e.metadata) AS score
			FROM memory.episodes e
			WHERE e.created_at <= now() - make_interval(days => ?)
			ORDER BY e.created_at ASC
			LIMIT ?
		)
		SELECT count(*),
		       count(*) FILTER (WHERE score < 0.2),
		       count(*) FILTER (WHERE score >= 0.2 AND score < 0.4),
		       count(*) FILTER (WHERE score >= 0.4 AND score < 0.6),
		       count(*) FILTER (WHERE score >= 0.6 AND score < 0.8),
		       count(*) FILTER (WHERE score >= 0.8),
		       count(*) FILTER (WHERE score > 0.7)
		FROM scored
	`

	counts := new(BandCounts)
	err := r.db.QueryRowContext(ctx, query, minAgeDays, limit).Scan(
		&counts.Analyzed,
		&counts.Bands[0], &counts.Bands[1], &counts.Bands[2], &counts.Bands[3], &counts.Bands[4],
		&counts.VeryHigh,
	)
	if err != nil {
		r.log.Error("decay analysis query failed", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return counts, nil
}

// CandidateRow is one episode in procedure-score order.
type CandidateRow struct {
	ID              uuid.UUID
	Content         string
	ImportanceScore float64
	Tags            []string
	CreatedAt       time.Time
	Metadata        episodes.Metadata
	ProcedureScore  float64
}

// LowestScored returns the weakest episodes by procedure score,
// ascending. The procedure ranking selects candidates; the Go model
// rescoring and protection rules run in the service.
func (r *Repository) LowestScored(ctx context.Context, limit int) ([]*CandidateRow, error) {
	query := `
		SELECT id, content, importance_score, tags, created_at, metadata, score
		FROM (
			SELECT e.id, e.content, e.importance_score, e.tags, e.created_at, e.metadata,
			       memory.calculate_decay_score(e.importance_score, e.created_at, e.metadata) AS score
			FROM memory.episodes e
		) scored
		ORDER BY score ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		r.log.Error("pruning candidate query failed", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	defer rows.Close()

	var results []*CandidateRow
	for rows.Next() {
		row := new(CandidateRow)
		var metaJSON []byte
		if err := rows.Scan(&row.ID, &row.Content, &row.ImportanceScore, pq.Array(&row.Tags), &row.CreatedAt, &metaJSON, &row.ProcedureScore); err != nil {
			return nil, apperror.ErrDatabase.WithInternal(err)
		}
		if err := json.Unmarshal(metaJSON, &row.Metadata); err != nil {
			return nil, apperror.ErrDatabase.WithInternal(err)
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return results, nil
}
