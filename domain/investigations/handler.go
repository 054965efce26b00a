package investigations

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/osfiler/osfiler/internal/config"
	"github.com/osfiler/osfiler/internal/server"
	"github.com/osfiler/osfiler/pkg/apperror"
	"github.com/osfiler/osfiler/pkg/auth"
)

// Handler handles HTTP requests for investigations
type Handler struct {
	svc   *Service
	graph config.GraphConfig
}

// NewHandler creates a new investigation handler
func NewHandler(svc *Service, cfg *config.Config) *Handler {
	return &Handler{svc: svc, graph: cfg.Graph}
}

// listParams reads skip, limit and include_archived.
func (h *Handler) listParams(c echo.Context) (ListParams, error) {
	page, err := server.ParsePage(c, h.graph)
	if err != nil {
		return ListParams{}, err
	}
	includeArchived, err := server.QueryBool(c, "include_archived")
	if err != nil {
		return ListParams{}, err
	}
	return ListParams{Skip: page.Skip, Limit: page.Limit, IncludeArchived: includeArchived}, nil
}

// List handles GET /api/investigations
func (h *Handler) List(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}

	params, err := h.listParams(c)
	if err != nil {
		return err
	}

	invs, err := h.svc.List(c.Request().Context(), user.ID, params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, invs)
}

// Count handles GET /api/investigations/count
func (h *Handler) Count(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}

	includeArchived, err := server.QueryBool(c, "include_archived")
	if err != nil {
		return err
	}

	n, err := h.svc.Count(c.Request().Context(), user.ID, includeArchived)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, CountResponse{Count: n})
}

// Search handles GET /api/investigations/search?query=
func (h *Handler) Search(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}

	params, err := h.listParams(c)
	if err != nil {
		return err
	}

	invs, err := h.svc.Search(c.Request().Context(), user.ID, c.QueryParam("query"), params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, invs)
}

// SearchByTags handles GET /api/investigations/search-by-tags?tags=a,b
// Tags may also be repeated (?tags=a&tags=b).
func (h *Handler) SearchByTags(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}

	params, err := h.listParams(c)
	if err != nil {
		return err
	}

	var tags []string
	for _, raw := range c.QueryParams()["tags"] {
		tags = append(tags, strings.Split(raw, ",")...)
	}

	invs, err := h.svc.SearchByTags(c.Request().Context(), user.ID, tags, params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, invs)
}

// Get handles GET /api/investigations/:id
func (h *Handler) Get(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}

	inv, err := h.svc.Get(c.Request().Context(), user.ID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inv)
}

// Create handles POST /api/investigations
func (h *Handler) Create(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}

	var req CreateInvestigationRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	inv, err := h.svc.Create(c.Request().Context(), user.ID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, inv)
}

// Update handles PUT /api/investigations/:id
func (h *Handler) Update(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}

	var req UpdateInvestigationRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	inv, err := h.svc.Update(c.Request().Context(), user.ID, c.Param("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inv)
}

// Delete handles DELETE /api/investigations/:id
func (h *Handler) Delete(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}

	if err := h.svc.Delete(c.Request().Context(), user.ID, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Archive handles POST /api/investigations/:id/archive
func (h *Handler) Archive(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}

	inv, err := h.svc.Archive(c.Request().Context(), user.ID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inv)
}

// Unarchive handles POST /api/investigations/:id/unarchive
func (h *Handler) Unarchive(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}

	inv, err := h.svc.Unarchive(c.Request().Context(), user.ID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inv)
}
