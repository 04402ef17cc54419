package consolidation

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nexus-mind/nexus-memory/pkg/apperror"
)

// Handler handles HTTP requests for consolidation runs
type Handler struct {
	svc *Service
}

// NewHandler creates a new consolidation handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Run handles POST /memory/consolidation/run
func (h *Handler) Run(c echo.Context) error {
	var req RunRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	report, err := h.svc.Run(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}
