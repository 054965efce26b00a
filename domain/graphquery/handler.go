package graphquery

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/osfiler/osfiler/domain/graph"
	"github.com/osfiler/osfiler/domain/investigations"
	"github.com/osfiler/osfiler/pkg/apperror"
	"github.com/osfiler/osfiler/pkg/auth"
)

// Handler handles HTTP requests for graph views and multi-step operations.
type Handler struct {
	svc   *Service
	graph *graph.Service
	invs  *investigations.Service
}

// NewHandler creates a new graph query handler.
func NewHandler(svc *Service, g *graph.Service, invs *investigations.Service) *Handler {
	return &Handler{svc: svc, graph: g, invs: invs}
}

func (h *Handler) authorizeNode(ctx context.Context, principal, nodeID string) error {
	n, err := h.graph.GetNode(ctx, nodeID)
	if err != nil {
		return err
	}
	_, err = h.invs.Authorize(ctx, principal, n.InvestigationID)
	return err
}

// GraphData handles GET /api/investigations/:id/graph
func (h *Handler) GraphData(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}

	ctx := c.Request().Context()
	inv, err := h.invs.Authorize(ctx, user.ID, c.Param("id"))
	if err != nil {
		return err
	}

	g, err := h.svc.GraphData(ctx, inv.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, g)
}

// RelatedNodes handles GET /api/nodes/:id/related?relationship_type=&direction=
func (h *Handler) RelatedNodes(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}

	ctx := c.Request().Context()
	if err := h.authorizeNode(ctx, user.ID, c.Param("id")); err != nil {
		return err
	}

	nodes, err := h.svc.RelatedNodes(ctx, c.Param("id"), c.QueryParam("relationship_type"), c.QueryParam("direction"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, nodes)
}

// ConnectedResponse is returned by GET /api/nodes/connected
type ConnectedResponse struct {
	Connected bool `json:"connected"`
}

// NodesConnected handles GET /api/nodes/connected?source_id=&target_id=
func (h *Handler) NodesConnected(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}

	a, b := c.QueryParam("source_id"), c.QueryParam("target_id")
	if a == "" || b == "" {
		return apperror.NewInvalid("source_id and target_id are required")
	}
	ctx := c.Request().Context()
	for _, id := range []string{a, b} {
		if err := h.authorizeNode(ctx, user.ID, id); err != nil {
			return err
		}
	}

	connected, err := h.svc.NodesConnected(ctx, a, b)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ConnectedResponse{Connected: connected})
}

// DeleteRelationship handles DELETE /api/relationships/:id
func (h *Handler) DeleteRelationship(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}

	if _, err := h.svc.DeleteRelationshipResilient(c.Request().Context(), user.ID, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Export handles GET /api/investigations/:id/export
func (h *Handler) Export(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}

	doc, err := h.svc.Export(c.Request().Context(), user.ID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, doc)
}

// Import handles POST /api/investigations/import
func (h *Handler) Import(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}

	var doc Document
	if err := c.Bind(&doc); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	res, err := h.svc.Import(c.Request().Context(), user.ID, &doc)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, res)
}
