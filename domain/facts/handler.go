package facts

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nexus-mind/nexus-memory/pkg/apperror"
)

// Handler handles HTTP requests for fact queries and backfill
type Handler struct {
	svc *Service
}

// NewHandler creates a new facts handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Query handles POST /memory/facts
func (h *Handler) Query(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	resp, err := h.svc.Query(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// Backfill handles POST /memory/facts/backfill
func (h *Handler) Backfill(c echo.Context) error {
	var req BackfillRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	resp, err := h.svc.Backfill(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}
