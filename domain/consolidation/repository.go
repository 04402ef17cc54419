package consolidation

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"github.com/nexus-mind/nexus-memory/domain/episodes"
	"github.com/nexus-mind/nexus-memory/pkg/apperror"
	"github.com/nexus-mind/nexus-memory/pkg/logger"
	"github.com/nexus-mind/nexus-memory/pkg/pgutils"
)

// Repository reads a day of episodes into the consolidation view and
// persists the results of a run.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new consolidation repository
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("consolidation.repo")),
	}
}

// FetchDay returns every episode with created_at in [start, end),
// oldest first, unpacked into the engine view. Embeddings come along
// so chain tracing can use the similarity signal; an episode whose
// vector fails to parse simply loses that signal.
func (r *Repository) FetchDay(ctx context.Context, start, end time.Time) ([]*Episode, error) {
	query := `
		SELECT e.id, e.content, e.importance_score, e.tags, e.created_at, e.metadata, e.embedding::text
		FROM memory.episodes e
		WHERE e.created_at >= ? AND e.created_at < ?
		ORDER BY e.created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, start, end)
	if err != nil {
		r.log.Error("day fetch failed", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	defer rows.Close()

	var eps []*Episode
	for rows.Next() {
		ep := new(Episode)
		var (
			metaJSON  []byte
			embedding sql.NullString
		)
		if err := rows.Scan(&ep.ID, &ep.Content, &ep.Importance, pq.Array(&ep.Tags), &ep.CreatedAt, &metaJSON, &embedding); err != nil {
			return nil, apperror.ErrDatabase.WithInternal(err)
		}

		var meta episodes.Metadata
		if err := json.Unmarshal(metaJSON, &meta); err != nil {
			return nil, apperror.ErrDatabase.WithInternal(err)
		}
		ep.SessionID = meta.SessionID()
		ep.Salience = meta.SalienceScore()
		ep.Emotional = meta.Emotional8D()
		ep.Valence = meta.Valence()

		if embedding.Valid {
			vec, err := pgutils.ParseVector(embedding.String)
			if err != nil {
				r.log.Warn("skipping unparseable embedding",
					slog.String("episode_id", ep.ID.String()), logger.Error(err))
			} else {
				ep.Embedding = vec
			}
		}

		eps = append(eps, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return eps, nil
}

// PersistRun writes the boosted episodes and the new traces in one
// transaction. Episode updates merge the consolidation keys into the
// metadata document and rewrite the importance score; a rerun of the
// same day overwrites its own results.
func (r *Repository) PersistRun(ctx context.Context, boosted []*Episode, traces []*Trace, stampedAt time.Time) error {
	update := `
		UPDATE memory.episodes
		SET importance_score = ?, metadata = metadata || ?::jsonb, updated_at = now()
		WHERE id = ?
	`

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, ep := range boosted {
			patch, err := json.Marshal(episodes.Metadata{
				episodes.MetaConsolidatedSalience: ep.ConsolidatedSalience,
				episodes.MetaBreakthroughScore:    ep.BreakthroughScore,
				episodes.MetaLastConsolidatedAt:   stampedAt.Format(time.RFC3339Nano),
			})
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, update, ep.Importance, string(patch), ep.ID); err != nil {
				return err
			}
		}

		if len(traces) > 0 {
			if _, err := tx.NewInsert().Model(&traces).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.log.Error("consolidation persist failed", logger.Error(err))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// ReplayRow is one episode surfaced for interleaved replay.
type ReplayRow struct {
	ID        uuid.UUID
	Content   string
	CreatedAt time.Time
}

// ReplayParams bounds the replay sample.
type ReplayParams struct {
	SalienceFloor float64
	MinAgeDays    int
	MaxAgeDays    int
	Limit         int
}

// ReplaySample returns up to limit random previously-consolidated
// episodes inside the age window. Randomness is deliberate; replay is
// about resurfacing, not ranking.
func (r *Repository) ReplaySample(ctx context.Context, params ReplayParams) ([]*ReplayRow, error) {
	query := `
		SELECT e.id, e.content, e.created_at
		FROM memory.episodes e
		WHERE jsonb_exists(e.metadata, 'consolidated_salience_score')
		  AND (e.metadata->>'consolidated_salience_score')::float8 >= ?
		  AND e.created_at >= now() - make_interval(days => ?)
		  AND e.created_at < now() - make_interval(days => ?)
		ORDER BY random()
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query,
		params.SalienceFloor, params.MaxAgeDays, params.MinAgeDays, params.Limit)
	if err != nil {
		r.log.Error("replay sample query failed", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	defer rows.Close()

	var results []*ReplayRow
	for rows.Next() {
		row := new(ReplayRow)
		if err := rows.Scan(&row.ID, &row.Content, &row.CreatedAt); err != nil {
			return nil, apperror.ErrDatabase.WithInternal(err)
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return results, nil
}
