package temporal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"github.com/nexus-mind/nexus-memory/domain/episodes"
	"github.com/nexus-mind/nexus-memory/pkg/apperror"
	"github.com/nexus-mind/nexus-memory/pkg/logger"
)

// Repository runs time-bounded and link-traversal queries over
// memory.episodes. Edge writes and reads go through the stored
// procedures so the metadata projection stays the single source of
// truth for temporal_refs.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new temporal repository
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("temporal.repo")),
	}
}

// WindowParams bound one created_at scan. The service sets exactly one
// bound combination: Before, After, or Start+End (inclusive).
type WindowParams struct {
	Before      *time.Time
	After       *time.Time
	Start       *time.Time
	End         *time.Time
	Tags        []string
	Limit       int
	OldestFirst bool
}

// Window returns episodes whose created_at falls inside the bounds,
// optionally narrowed by tag overlap.
func (r *Repository) Window(ctx context.Context, p WindowParams) ([]*episodes.EpisodeRow, error) {
	var rows []*episodes.EpisodeRow
	q := r.db.NewSelect().
		Model(&rows).
		Column("e.id", "e.content", "e.importance_score", "e.tags", "e.created_at", "e.updated_at", "e.metadata").
		ColumnExpr("e.embedding IS NOT NULL AS has_embedding")

	switch {
	case p.Before != nil:
		q = q.Where("e.created_at < ?", *p.Before)
	case p.After != nil:
		q = q.Where("e.created_at > ?", *p.After)
	default:
		q = q.Where("e.created_at >= ?", *p.Start).Where("e.created_at <= ?", *p.End)
	}

	if len(p.Tags) > 0 {
		q = q.Where("e.tags && ?", pq.Array(p.Tags))
	}

	order := "e.created_at DESC"
	if p.OldestFirst {
		order = "e.created_at ASC"
	}

	if err := q.OrderExpr(order).Limit(p.Limit).Scan(ctx); err != nil {
		r.log.Error("temporal window query failed", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return rows, nil
}

// RefsFor returns the outgoing edges of one episode, optionally
// filtered by relationship. A missing source yields an empty set; the
// caller decides whether that is a 404.
func (r *Repository) RefsFor(ctx context.Context, source uuid.UUID, relationship string) ([]episodes.TemporalRef, error) {
	var rel any
	if relationship != "" {
		rel = relationship
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT episode_id, relationship, created_at FROM memory.get_temporal_refs(?, ?)",
		source, rel)
	if err != nil {
		r.log.Error("temporal refs query failed", slog.String("episode_id", source.String()), logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	defer rows.Close()

	var refs []episodes.TemporalRef
	for rows.Next() {
		var ref episodes.TemporalRef
		if err := rows.Scan(&ref.EpisodeID, &ref.Relationship, &ref.CreatedAt); err != nil {
			return nil, apperror.ErrDatabase.WithInternal(err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return refs, nil
}

// ByIDs fetches the referenced episodes in one query, newest first.
func (r *Repository) ByIDs(ctx context.Context, ids []uuid.UUID) ([]*episodes.EpisodeRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var rows []*episodes.EpisodeRow
	err := r.db.NewSelect().
		Model(&rows).
		Column("e.id", "e.content", "e.importance_score", "e.tags", "e.created_at", "e.updated_at", "e.metadata").
		ColumnExpr("e.embedding IS NOT NULL AS has_embedding").
		Where("e.id IN (?)", bun.In(ids)).
		OrderExpr("e.created_at DESC").
		Scan(ctx)
	if err != nil {
		r.log.Error("episodes by id query failed", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return rows, nil
}

// AddRef appends one edge through add_temporal_ref. The procedure
// reports false when either endpoint is missing.
func (r *Repository) AddRef(ctx context.Context, source, target uuid.UUID, relationship string) (bool, error) {
	var stored bool
	err := r.db.QueryRowContext(ctx,
		"SELECT memory.add_temporal_ref(?, ?, ?)",
		source, target, relationship).Scan(&stored)
	if err != nil {
		r.log.Error("temporal ref append failed",
			slog.String("source_id", source.String()),
			slog.String("target_id", target.String()),
			logger.Error(err))
		return false, apperror.ErrDatabase.WithInternal(err)
	}
	return stored, nil
}

// LatestSample returns the newest consciousness sample of one state
// type, or nil when the chain is empty.
func (r *Repository) LatestSample(ctx context.Context, stateType string) (*episodes.Episode, error) {
	ep := new(episodes.Episode)
	err := r.db.NewSelect().
		Model(ep).
		ExcludeColumn("embedding").
		Where("e.tags @> ?", pq.Array([]string{TagConsciousness, stateType})).
		OrderExpr("e.created_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("latest consciousness sample query failed",
			slog.String("state_type", stateType), logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return ep, nil
}

// PatchMetadata merges keys into an episode's metadata document.
func (r *Repository) PatchMetadata(ctx context.Context, id uuid.UUID, patch map[string]any) error {
	data, err := json.Marshal(patch)
	if err != nil {
		return apperror.ErrInternal.WithInternal(err)
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE memory.episodes
		SET metadata = metadata || ?::jsonb, updated_at = now()
		WHERE id = ?
	`, string(data), id)
	if err != nil {
		r.log.Error("metadata patch failed", slog.String("episode_id", id.String()), logger.Error(err))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}
