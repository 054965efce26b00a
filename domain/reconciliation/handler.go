package reconciliation

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/osfiler/osfiler/domain/taxonomy"
	"github.com/osfiler/osfiler/pkg/apperror"
)

// ReconcileRequest is the body of PUT /api/types/reconcile. Types is the
// complete desired list; an empty list removes every user-defined type.
type ReconcileRequest struct {
	EntityType string        `json:"entity_type" validate:"required,oneof=node relationship"`
	Types      []DesiredType `json:"types" validate:"dive"`
}

// Handler handles HTTP requests for taxonomy reconciliation
type Handler struct {
	reconciler *Reconciler
}

// NewHandler creates a new reconciliation handler
func NewHandler(reconciler *Reconciler) *Handler {
	return &Handler{reconciler: reconciler}
}

// Reconcile handles PUT /api/types/reconcile
func (h *Handler) Reconcile(c echo.Context) error {
	var req ReconcileRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	entityType, _ := taxonomy.ParseEntityType(req.EntityType)
	result, err := h.reconciler.Reconcile(c.Request().Context(), entityType, req.Types)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
