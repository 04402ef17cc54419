package decay

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers the decay analysis and pruning routes
func RegisterRoutes(e *echo.Echo, handler *Handler) {
	e.POST("/memory/analysis/decay-scores", handler.Analyze)
	e.POST("/memory/pruning/preview", handler.Preview)
	e.POST("/memory/pruning/execute", handler.Execute)
}
