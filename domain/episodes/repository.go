package episodes

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/nexus-mind/nexus-memory/pkg/apperror"
	"github.com/nexus-mind/nexus-memory/pkg/logger"
)

// Repository handles reads and writes on memory.episodes.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new episodes repository
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("episodes.repo")),
	}
}

// Insert stores a new episode. The AFTER INSERT trigger enqueues the
// embedding job inside the same transaction, so a committed episode
// always has a queue entry.
func (r *Repository) Insert(ctx context.Context, ep *Episode) error {
	if ep.Tags == nil {
		ep.Tags = []string{}
	}
	if ep.Metadata == nil {
		ep.Metadata = Metadata{}
	}

	_, err := r.db.NewInsert().
		Model(ep).
		ExcludeColumn("embedding", "embedding_version", "created_at", "updated_at").
		Returning("id, created_at, updated_at").
		Exec(ctx)
	if err != nil {
		r.log.Error("episode insert failed", logger.Error(err))
		return apperror.ErrStorageUnavailable.WithInternal(err)
	}
	return nil
}

// GetByID fetches one episode without its embedding vector.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Episode, error) {
	ep := new(Episode)
	err := r.db.NewSelect().
		Model(ep).
		ExcludeColumn("embedding").
		Where("e.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrEpisodeNotFound
	}
	if err != nil {
		r.log.Error("episode fetch failed", slog.String("episode_id", id.String()), logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return ep, nil
}

// Exists reports whether an episode row exists.
func (r *Repository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*Episode)(nil)).
		Where("e.id = ?", id).
		Exists(ctx)
	if err != nil {
		return false, apperror.ErrDatabase.WithInternal(err)
	}
	return exists, nil
}

// Recent returns the newest episodes with an embedding presence flag.
func (r *Repository) Recent(ctx context.Context, limit int) ([]*EpisodeRow, error) {
	var rows []*EpisodeRow
	err := r.db.NewSelect().
		Model(&rows).
		Column("e.id", "e.content", "e.importance_score", "e.tags", "e.created_at", "e.updated_at", "e.metadata").
		ColumnExpr("e.embedding IS NOT NULL AS has_embedding").
		OrderExpr("e.created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		r.log.Error("recent episodes query failed", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return rows, nil
}

// TouchAccess bumps access tracking for the given episodes. Access
// bookkeeping never fails a read path: errors are logged and dropped.
func (r *Repository) TouchAccess(ctx context.Context, ids ...uuid.UUID) {
	if len(ids) == 0 {
		return
	}
	for _, id := range ids {
		if _, err := r.db.ExecContext(ctx, "SELECT memory.update_access_tracking(?)", id); err != nil {
			r.log.Debug("access tracking update failed",
				slog.String("episode_id", id.String()),
				logger.Error(err))
		}
	}
}
