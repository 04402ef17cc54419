package health

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/nexus-mind/nexus-memory/internal/cache"
	"github.com/nexus-mind/nexus-memory/internal/jobs"
	"github.com/nexus-mind/nexus-memory/internal/version"
)

// Pending jobs beyond this depth degrade the reported status: the
// worker is falling behind even though every component is reachable.
const degradedQueueDepth = 1000

type dbPinger interface {
	Ping(ctx context.Context) error
}

type cacheProbe interface {
	Enabled() bool
	Ping(ctx context.Context) error
}

type depthReader interface {
	PendingDepth(ctx context.Context) (int64, error)
}

// Handler handles health check requests
type Handler struct {
	db      dbPinger
	cache   cacheProbe
	queue   depthReader
	startAt time.Time
}

// NewHandler creates a new health handler
func NewHandler(pool *pgxpool.Pool, cacheSvc *cache.Service, queue *jobs.Queue) *Handler {
	return &Handler{
		db:      pool,
		cache:   cacheSvc,
		queue:   queue,
		startAt: time.Now(),
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Database      string  `json:"database"`
	Cache         string  `json:"cache"`
	QueueDepth    int64   `json:"queue_depth"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Timestamp     string  `json:"timestamp"`
}

// Identity handles GET /, the service banner.
func (h *Handler) Identity(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"service": "nexus-memory",
		"version": version.Version,
		"status":  "operational",
	})
}

// Health returns the overall service health. Always HTTP 200: the
// body carries the verdict so monitors can distinguish degraded from
// down without special-casing status codes.
func (h *Handler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	dbStatus := "connected"
	dbErr := h.db.Ping(ctx)
	if dbErr != nil {
		dbStatus = "error: " + dbErr.Error()
	}

	cacheStatus := "connected"
	var cacheErr error
	if !h.cache.Enabled() {
		cacheStatus = "disabled"
	} else if cacheErr = h.cache.Ping(ctx); cacheErr != nil {
		cacheStatus = "error: " + cacheErr.Error()
	}

	var depth int64
	if dbErr == nil {
		if d, err := h.queue.PendingDepth(ctx); err == nil {
			depth = d
		}
	}

	return c.JSON(http.StatusOK, HealthResponse{
		Status:        deriveStatus(dbErr, cacheErr, depth),
		Version:       version.Version,
		Database:      dbStatus,
		Cache:         cacheStatus,
		QueueDepth:    depth,
		UptimeSeconds: time.Since(h.startAt).Seconds(),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	})
}

// deriveStatus folds the component checks into one verdict. The
// database failing means the service cannot work at all; a failing
// cache or a backed-up queue means it works but badly.
func deriveStatus(dbErr, cacheErr error, queueDepth int64) string {
	switch {
	case dbErr != nil:
		return "unhealthy"
	case cacheErr != nil || queueDepth > degradedQueueDepth:
		return "degraded"
	default:
		return "healthy"
	}
}

// Healthz returns a simple health check (for k8s liveness probe)
func (h *Handler) Healthz(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// Ready returns readiness status (for k8s readiness probe)
func (h *Handler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status":  "not_ready",
			"message": "Database connection failed",
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status": "ready",
	})
}
