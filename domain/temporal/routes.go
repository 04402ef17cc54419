package temporal

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers the temporal reasoning routes
func RegisterRoutes(e *echo.Echo, handler *Handler) {
	e.POST("/memory/temporal/before", handler.Before)
	e.POST("/memory/temporal/after", handler.After)
	e.POST("/memory/temporal/range", handler.Range)
	e.POST("/memory/temporal/related", handler.Related)
	e.POST("/memory/temporal/link", handler.Link)
	e.POST("/memory/consciousness/update", handler.ConsciousnessUpdate)
}
