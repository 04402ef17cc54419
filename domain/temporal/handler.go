package temporal

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nexus-mind/nexus-memory/pkg/apperror"
)

// Handler handles HTTP requests for temporal reasoning and
// consciousness sampling
type Handler struct {
	svc *Service
}

// NewHandler creates a new temporal handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Before handles POST /memory/temporal/before
func (h *Handler) Before(c echo.Context) error {
	var req WindowRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	resp, err := h.svc.Before(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// After handles POST /memory/temporal/after
func (h *Handler) After(c echo.Context) error {
	var req WindowRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	resp, err := h.svc.After(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// Range handles POST /memory/temporal/range
func (h *Handler) Range(c echo.Context) error {
	var req WindowRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	resp, err := h.svc.Range(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// Related handles POST /memory/temporal/related
func (h *Handler) Related(c echo.Context) error {
	var req RelatedRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	resp, err := h.svc.Related(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// Link handles POST /memory/temporal/link
func (h *Handler) Link(c echo.Context) error {
	var req LinkRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	resp, err := h.svc.Link(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// ConsciousnessUpdate handles POST /memory/consciousness/update
func (h *Handler) ConsciousnessUpdate(c echo.Context) error {
	var req ConsciousnessRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	resp, err := h.svc.ConsciousnessUpdate(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}
