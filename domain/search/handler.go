package search

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nexus-mind/nexus-memory/pkg/apperror"
)

// Handler handles HTTP requests for semantic and hybrid retrieval
type Handler struct {
	svc *Service
}

// NewHandler creates a new search handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Search handles POST /memory/search
func (h *Handler) Search(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	resp, err := h.svc.Search(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// Hybrid handles POST /memory/hybrid
func (h *Handler) Hybrid(c echo.Context) error {
	var req HybridRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	resp, err := h.svc.Hybrid(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}
