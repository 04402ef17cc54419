package episodes

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/nexus-mind/nexus-memory/pkg/apperror"
)

// Handler handles HTTP requests for episode ingestion and recent retrieval
type Handler struct {
	svc *Service
}

// NewHandler creates a new episodes handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Ingest handles POST /memory/action
func (h *Handler) Ingest(c echo.Context) error {
	var req IngestRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	resp, err := h.svc.Ingest(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// Recent handles GET /memory/episodic/recent
func (h *Handler) Recent(c echo.Context) error {
	limit := 10
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return apperror.ErrValidation.WithMessage("limit must be an integer")
		}
		limit = n
	}
	if limit < 1 || limit > 100 {
		return apperror.ErrValidation.WithMessage("limit must be between 1 and 100")
	}

	resp, err := h.svc.Recent(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}
