package snapshots

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers the snapshot routes
func RegisterRoutes(e *echo.Echo, handler *Handler) {
	e.POST("/memory/snapshots", handler.Create)
	e.GET("/memory/snapshots", handler.List)
	e.GET("/memory/snapshots/:id", handler.Get)
}
