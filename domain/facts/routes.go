package facts

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers the fact routes
func RegisterRoutes(e *echo.Echo, handler *Handler) {
	e.POST("/memory/facts", handler.Query)
	e.POST("/memory/facts/backfill", handler.Backfill)
}
