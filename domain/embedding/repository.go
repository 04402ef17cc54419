// Package embedding turns pending queue jobs into stored episode vectors.
package embedding

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/nexus-mind/nexus-memory/pkg/logger"
	"github.com/nexus-mind/nexus-memory/pkg/pgutils"
)

// Repository reads episode content and persists computed embeddings.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new embedding repository
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("embedding.repo")),
	}
}

// EpisodeContent fetches the text an embedding is computed over. found is
// false when the episode no longer exists.
func (r *Repository) EpisodeContent(ctx context.Context, id uuid.UUID) (content string, found bool, err error) {
	err = r.db.NewSelect().
		TableExpr("memory.episodes").
		Column("content").
		Where("id = ?", id).
		Scan(ctx, &content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("fetch episode content: %w", err)
	}
	return content, true, nil
}

// StoreEmbedding writes the vector onto the episode and completes the job in
// one transaction: a crash between the two writes can never leave a done job
// without its embedding.
func (r *Repository) StoreEmbedding(ctx context.Context, jobID, episodeID uuid.UUID, vec []float32, version string) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewRaw(
			`UPDATE memory.episodes
			SET embedding = ?::vector, embedding_version = ?, updated_at = now()
			WHERE id = ?`,
			pgutils.FormatVector(vec), version, episodeID,
		).Exec(ctx); err != nil {
			return fmt.Errorf("write embedding: %w", err)
		}

		if _, err := tx.NewRaw(
			`UPDATE queue.embedding_jobs
			SET state = 'done', processed_at = now()
			WHERE id = ?`,
			jobID,
		).Exec(ctx); err != nil {
			return fmt.Errorf("complete job: %w", err)
		}
		return nil
	})
}
