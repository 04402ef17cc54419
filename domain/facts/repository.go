package facts

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"github.com/nexus-mind/nexus-memory/pkg/apperror"
	"github.com/nexus-mind/nexus-memory/pkg/logger"
)

// Repository queries episode fact metadata. It scans its own narrow
// rows instead of the full episode model; only content, tags and the
// facts document matter here.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new facts repository
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("facts.repo")),
	}
}

// FactRow is one episode carrying the requested fact.
type FactRow struct {
	ID        uuid.UUID
	Tags      []string
	Facts     map[string]any
	CreatedAt time.Time
}

// QueryParams narrows the fact search.
type QueryParams struct {
	FactType   string
	FilterTags []string
	After      *time.Time
	Before     *time.Time
	Limit      int
	Ascending  bool
}

// FindByFactType returns episodes whose facts document contains the
// requested field, ordered by creation time.
func (r *Repository) FindByFactType(ctx context.Context, params QueryParams) ([]*FactRow, error) {
	// jsonb_exists instead of the ? operator: the operator collides
	// with the bun placeholder.
	query := `
		SELECT e.id, e.tags, e.metadata -> 'facts' AS facts, e.created_at
		FROM memory.episodes e
		WHERE jsonb_exists(e.metadata -> 'facts', ?)
	`
	args := []any{params.FactType}

	if len(params.FilterTags) > 0 {
		query += " AND e.tags && ?"
		args = append(args, pq.Array(params.FilterTags))
	}
	if params.After != nil {
		query += " AND e.created_at > ?"
		args = append(args, *params.After)
	}
	if params.Before != nil {
		query += " AND e.created_at < ?"
		args = append(args, *params.Before)
	}

	if params.Ascending {
		query += " ORDER BY e.created_at ASC"
	} else {
		query += " ORDER BY e.created_at DESC"
	}
	query += " LIMIT ?"
	args = append(args, params.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.log.Error("fact query failed", slog.String("fact_type", params.FactType), logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	defer rows.Close()

	var results []*FactRow
	for rows.Next() {
		row := new(FactRow)
		var factsJSON []byte
		if err := rows.Scan(&row.ID, pq.Array(&row.Tags), &factsJSON, &row.CreatedAt); err != nil {
			return nil, apperror.ErrDatabase.WithInternal(err)
		}
		if err := json.Unmarshal(factsJSON, &row.Facts); err != nil {
			return nil, apperror.ErrDatabase.WithInternal(err)
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return results, nil
}

// BackfillRow is one episode in a backfill sweep.
type BackfillRow struct {
	ID        uuid.UUID
	Content   string
	HasFacts  bool
	CreatedAt time.Time
}

// ListForBackfill pages through all episodes oldest-first using keyset
// pagination, so a dry run that writes nothing still terminates.
func (r *Repository) ListForBackfill(ctx context.Context, afterTime time.Time, afterID uuid.UUID, limit int) ([]*BackfillRow, error) {
	query := `
		SELECT e.id, e.content, e.metadata -> 'facts' IS NOT NULL AS has_facts, e.created_at
		FROM memory.episodes e
		WHERE (e.created_at, e.id) > (?, ?)
		ORDER BY e.created_at ASC, e.id ASC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, afterTime, afterID, limit)
	if err != nil {
		r.log.Error("backfill page failed", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	defer rows.Close()

	var results []*BackfillRow
	for rows.Next() {
		row := new(BackfillRow)
		if err := rows.Scan(&row.ID, &row.Content, &row.HasFacts, &row.CreatedAt); err != nil {
			return nil, apperror.ErrDatabase.WithInternal(err)
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return results, nil
}

// SetFacts writes the extracted fact document onto an episode.
func (r *Repository) SetFacts(ctx context.Context, id uuid.UUID, facts map[string]any) error {
	data, err := json.Marshal(facts)
	if err != nil {
		return apperror.ErrInternal.WithInternal(err)
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE memory.episodes
		SET metadata = jsonb_set(metadata, '{facts}', ?::jsonb, true), updated_at = now()
		WHERE id = ?
	`, string(data), id)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}
