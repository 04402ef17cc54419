package consolidation

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers the consolidation routes
func RegisterRoutes(e *echo.Echo, handler *Handler) {
	e.POST("/memory/consolidation/run", handler.Run)
}
