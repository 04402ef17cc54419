package health

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"

	"github.com/nexus-mind/nexus-memory/internal/jobs"
	"github.com/nexus-mind/nexus-memory/pkg/apperror"
)

type queueStats interface {
	Stats(ctx context.Context) (map[string]int64, error)
}

// StatsHandler serves the memory statistics consumed by the brain
// monitor dashboards.
type StatsHandler struct {
	db    bun.IDB
	queue queueStats
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(db bun.IDB, queue *jobs.Queue) *StatsHandler {
	return &StatsHandler{db: db, queue: queue}
}

// MemoryStats is the stats block of GET /stats.
type MemoryStats struct {
	TotalEpisodes          int64            `json:"total_episodes"`
	EpisodesWithEmbeddings int64            `json:"episodes_with_embeddings"`
	EmbeddingsQueue        map[string]int64 `json:"embeddings_queue"`
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Success bool        `json:"success"`
	Stats   MemoryStats `json:"stats"`
}

// Stats handles GET /stats
func (h *StatsHandler) Stats(c echo.Context) error {
	ctx := c.Request().Context()

	// COUNT(embedding) skips NULLs, so it is the embedded subset.
	var counts struct {
		Total          int64 `bun:"total"`
		WithEmbeddings int64 `bun:"with_embeddings"`
	}
	err := h.db.NewRaw(`
		SELECT COUNT(*) AS total, COUNT(embedding) AS with_embeddings
		FROM memory.episodes`).Scan(ctx, &counts)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}

	queueCounts, err := h.queue.Stats(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}

	return c.JSON(http.StatusOK, StatsResponse{
		Success: true,
		Stats: MemoryStats{
			TotalEpisodes:          counts.Total,
			EpisodesWithEmbeddings: counts.WithEmbeddings,
			EmbeddingsQueue:        queueCounts,
		},
	})
}
