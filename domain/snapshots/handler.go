package snapshots

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/nexus-mind/nexus-memory/pkg/apperror"
)

// Handler handles HTTP requests for the snapshot catalog
type Handler struct {
	svc *Service
}

// NewHandler creates a new snapshots handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Create handles POST /memory/snapshots
func (h *Handler) Create(c echo.Context) error {
	resp, err := h.svc.Create(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, resp)
}

// List handles GET /memory/snapshots
func (h *Handler) List(c echo.Context) error {
	resp, err := h.svc.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// Get handles GET /memory/snapshots/:id
func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.ErrValidation.WithMessage("snapshot id must be a valid UUID")
	}

	snap, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snap)
}
