package snapshots

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

// Repository persists the snapshot catalog in memory.snapshots.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new snapshot repository
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("snapshots.repo")),
	}
}

// Insert records a new catalog row in the creating state.
func (r *Repository) Insert(ctx context.Context, snap *Snapshot) error {
	_, err := r.db.NewInsert().
		Model(snap).
		Exec(ctx)
	if err != nil {
		r.log.Error("snapshot insert failed",
			slog.String("snapshot_id", snap.ID.String()),
			logger.Error(err),
		)
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// MarkReady finalizes a catalog row after a successful upload.
func (r *Repository) MarkReady(ctx context.Context, id uuid.UUID, episodes, traces int, size int64) error {
	_, err := r.db.NewUpdate().
		Model((*Snapshot)(nil)).
		Set("status = ?", StatusReady).
		Set("episode_count = ?", episodes).
		Set("trace_count = ?", traces).
		Set("size_bytes = ?", size).
		Set("completed_at = now()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		r.log.Error("snapshot ready update failed",
			slog.String("snapshot_id", id.String()),
			logger.Error(err),
		)
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// MarkFailed records why a snapshot did not complete.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	_, err := r.db.NewUpdate().
		Model((*Snapshot)(nil)).
		Set("status = ?", StatusFailed).
		Set("error = ?", message).
		Set("completed_at = now()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		r.log.Error("snapshot failure update failed",
			slog.String("snapshot_id", id.String()),
			logger.Error(err),
		)
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// List returns catalog rows newest first.
func (r *Repository) List(ctx context.Context) ([]*Snapshot, error) {
	var snaps []*Snapshot
	err := r.db.NewSelect().
		Model(&snaps).
		OrderExpr("created_at DESC").
		Scan(ctx)
	if err != nil {
		r.log.Error("snapshot list failed", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return snaps, nil
}

// ByID fetches a single catalog row.
func (r *Repository) ByID(ctx context.Context, id uuid.UUID) (*Snapshot, error) {
	snap := new(Snapshot)
	err := r.db.NewSelect().
		Model(snap).
		Where("s.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrNotFound.WithMessage("snapshot not found")
	}
	if err != nil {
		r.log.Error("snapshot fetch failed",
			slog.String("snapshot_id", id.String()),
			logger.Error(err),
		)
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return snap, nil
}
