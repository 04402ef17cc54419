package decay

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nexus-mind/nexus-memory/pkg/apperror"
)

// Handler handles HTTP requests for decay analysis and pruning
type Handler struct {
	svc *Service
}

// NewHandler creates a new decay handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Analyze handles POST /memory/analysis/decay-scores
func (h *Handler) Analyze(c echo.Context) error {
	var req AnalyzeRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	resp, err := h.svc.Analyze(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// Preview handles POST /memory/pruning/preview
func (h *Handler) Preview(c echo.Context) error {
	var req PreviewRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	resp, err := h.svc.Preview(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// Execute handles POST /memory/pruning/execute
func (h *Handler) Execute(c echo.Context) error {
	var req ExecuteRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	resp, err := h.svc.Execute(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}
