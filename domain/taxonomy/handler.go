package taxonomy

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/osfiler/osfiler/pkg/apperror"
)

// Handler handles HTTP requests for the taxonomy
type Handler struct {
	svc *Service
}

// NewHandler creates a new taxonomy handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// List handles GET /api/types?entity_type=node|relationship
func (h *Handler) List(c echo.Context) error {
	var entityType EntityType
	if raw := c.QueryParam("entity_type"); raw != "" {
		et, ok := ParseEntityType(raw)
		if !ok {
			return apperror.NewInvalid("entity_type must be node or relationship")
		}
		entityType = et
	}

	types, err := h.svc.List(c.Request().Context(), entityType)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, types)
}

// ListNodeTypes handles GET /api/types/node
func (h *Handler) ListNodeTypes(c echo.Context) error {
	types, err := h.svc.List(c.Request().Context(), EntityNode)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, types)
}

// ListRelationshipTypes handles GET /api/types/relationship
func (h *Handler) ListRelationshipTypes(c echo.Context) error {
	types, err := h.svc.List(c.Request().Context(), EntityRelationship)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, types)
}

// Get handles GET /api/types/:id
func (h *Handler) Get(c echo.Context) error {
	t, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

// Create handles POST /api/types
func (h *Handler) Create(c echo.Context) error {
	var req CreateTypeRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	entityType, _ := ParseEntityType(req.EntityType)
	t, err := h.svc.Create(c.Request().Context(), req.Value, entityType, req.Description)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, t)
}

// Update handles PATCH /api/types/:id
func (h *Handler) Update(c echo.Context) error {
	var req UpdateTypeRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	t, err := h.svc.Update(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

// Delete handles DELETE /api/types/:id
func (h *Handler) Delete(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
