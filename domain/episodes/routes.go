package episodes

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers the episode routes
func RegisterRoutes(e *echo.Echo, handler *Handler) {
	e.POST("/memory/action", handler.Ingest)
	e.GET("/memory/episodic/recent", handler.Recent)
}
