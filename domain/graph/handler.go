package graph

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/osfiler/osfiler/domain/investigations"
	"github.com/osfiler/osfiler/internal/config"
	"github.com/osfiler/osfiler/internal/server"
	"github.com/osfiler/osfiler/pkg/apperror"
	"github.com/osfiler/osfiler/pkg/auth"
)

// Handler handles HTTP requests for nodes and relationships.
type Handler struct {
	svc   *Service
	invs  *investigations.Service
	graph config.GraphConfig
}

// NewHandler creates a new graph handler.
func NewHandler(svc *Service, invs *investigations.Service, cfg *config.Config) *Handler {
	return &Handler{svc: svc, invs: invs, graph: cfg.Graph}
}

// investigation authorizes the caller against the :id path parameter.
func (h *Handler) investigation(c echo.Context) (string, error) {
	user := auth.GetUser(c)
	if user == nil {
		return "", apperror.ErrUnauthorized
	}
	inv, err := h.invs.Authorize(c.Request().Context(), user.ID, c.Param("id"))
	if err != nil {
		return "", err
	}
	return inv.ID, nil
}

// AuthorizeNode loads a node and checks that principal owns its
// investigation.
func (h *Handler) AuthorizeNode(ctx context.Context, principal, nodeID string) (*Node, error) {
	n, err := h.svc.GetNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if _, err := h.invs.Authorize(ctx, principal, n.InvestigationID); err != nil {
		return nil, err
	}
	return n, nil
}

// AuthorizeRelationship loads a relationship and checks that principal owns
// its investigation.
func (h *Handler) AuthorizeRelationship(ctx context.Context, principal, id string) (*Relationship, error) {
	rel, err := h.svc.GetRelationship(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := h.invs.Authorize(ctx, principal, rel.InvestigationID); err != nil {
		return nil, err
	}
	return rel, nil
}

func (h *Handler) nodeFilter(c echo.Context) (NodeFilter, error) {
	page, err := server.ParsePage(c, h.graph)
	if err != nil {
		return NodeFilter{}, err
	}
	return NodeFilter{
		Skip:  page.Skip,
		Limit: page.Limit,
		Type:  c.QueryParam("type_filter"),
		Query: c.QueryParam("query"),
	}, nil
}

// =============================================================================
// Nodes
// =============================================================================

// ListNodes handles GET /api/investigations/:id/nodes
func (h *Handler) ListNodes(c echo.Context) error {
	invID, err := h.investigation(c)
	if err != nil {
		return err
	}
	f, err := h.nodeFilter(c)
	if err != nil {
		return err
	}

	nodes, err := h.svc.ListNodes(c.Request().Context(), invID, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, nodes)
}

// CountNodes handles GET /api/investigations/:id/nodes/count
func (h *Handler) CountNodes(c echo.Context) error {
	invID, err := h.investigation(c)
	if err != nil {
		return err
	}

	n, err := h.svc.CountNodes(c.Request().Context(), invID, NodeFilter{Type: c.QueryParam("type_filter")})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, CountResponse{Count: n})
}

// SearchNodes handles GET /api/investigations/:id/nodes/search?query=
func (h *Handler) SearchNodes(c echo.Context) error {
	invID, err := h.investigation(c)
	if err != nil {
		return err
	}
	f, err := h.nodeFilter(c)
	if err != nil {
		return err
	}

	nodes, err := h.svc.SearchNodes(c.Request().Context(), invID, f.Query, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, nodes)
}

// NodeTypes handles GET /api/investigations/:id/nodes/types
func (h *Handler) NodeTypes(c echo.Context) error {
	invID, err := h.investigation(c)
	if err != nil {
		return err
	}

	counts, err := h.svc.NodeTypeCounts(c.Request().Context(), invID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, counts)
}

func (h *Handler) bindNode(c echo.Context) (NodeInput, error) {
	var req CreateNodeRequest
	if err := c.Bind(&req); err != nil {
		return NodeInput{}, apperror.NewBadRequest("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return NodeInput{}, err
	}
	data, err := ParseData(req.Data)
	if err != nil {
		return NodeInput{}, err
	}
	return NodeInput{Type: req.Type, Name: req.Name, Data: data, SourceModule: req.SourceModule}, nil
}

// CreateNode handles POST /api/investigations/:id/nodes
func (h *Handler) CreateNode(c echo.Context) error {
	invID, err := h.investigation(c)
	if err != nil {
		return err
	}
	in, err := h.bindNode(c)
	if err != nil {
		return err
	}

	n, err := h.svc.CreateNode(c.Request().Context(), invID, in, auth.GetUser(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, n)
}

// UpsertNode handles POST /api/investigations/:id/nodes/upsert
func (h *Handler) UpsertNode(c echo.Context) error {
	invID, err := h.investigation(c)
	if err != nil {
		return err
	}
	in, err := h.bindNode(c)
	if err != nil {
		return err
	}

	n, created, err := h.svc.CreateOrUpdateNode(c.Request().Context(), invID, in, auth.GetUser(c).ID)
	if err != nil {
		return err
	}
	if created {
		return c.JSON(http.StatusCreated, n)
	}
	return c.JSON(http.StatusOK, n)
}

// GetNode handles GET /api/nodes/:id
func (h *Handler) GetNode(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}

	n, err := h.AuthorizeNode(c.Request().Context(), user.ID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

// UpdateNode handles PUT /api/nodes/:id
func (h *Handler) UpdateNode(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}

	var req UpdateNodeRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	patch, err := ParseDataPatch(req.Data)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if _, err := h.AuthorizeNode(ctx, user.ID, c.Param("id")); err != nil {
		return err
	}

	n, err := h.svc.UpdateNode(ctx, c.Param("id"), NodeUpdate{Name: req.Name, Type: req.Type, Data: patch})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

// DeleteNode handles DELETE /api/nodes/:id
func (h *Handler) DeleteNode(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}

	ctx := c.Request().Context()
	if _, err := h.AuthorizeNode(ctx, user.ID, c.Param("id")); err != nil {
		return err
	}
	if err := h.svc.DeleteNode(ctx, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// =============================================================================
// Relationships
// =============================================================================

// ListRelationships handles GET /api/investigations/:id/relationships
func (h *Handler) ListRelationships(c echo.Context) error {
	invID, err := h.investigation(c)
	if err != nil {
		return err
	}
	page, err := server.ParsePage(c, h.graph)
	if err != nil {
		return err
	}

	rels, err := h.svc.ListRelationships(c.Request().Context(), invID, RelationshipFilter{
		Skip:  page.Skip,
		Limit: page.Limit,
		Type:  c.QueryParam("type_filter"),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rels)
}

// CountRelationships handles GET /api/investigations/:id/relationships/count
func (h *Handler) CountRelationships(c echo.Context) error {
	invID, err := h.investigation(c)
	if err != nil {
		return err
	}

	n, err := h.svc.CountRelationships(c.Request().Context(), invID, RelationshipFilter{Type: c.QueryParam("type_filter")})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, CountResponse{Count: n})
}

// RelationshipTypes handles GET /api/investigations/:id/relationships/types
func (h *Handler) RelationshipTypes(c echo.Context) error {
	invID, err := h.investigation(c)
	if err != nil {
		return err
	}

	counts, err := h.svc.RelationshipTypeCounts(c.Request().Context(), invID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, counts)
}

func (h *Handler) bindRelationship(c echo.Context) (RelationshipInput, error) {
	var req CreateRelationshipRequest
	if err := c.Bind(&req); err != nil {
		return RelationshipInput{}, apperror.NewBadRequest("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return RelationshipInput{}, err
	}
	data, err := ParseData(req.Data)
	if err != nil {
		return RelationshipInput{}, err
	}
	return RelationshipInput{
		SourceNodeID: req.SourceNodeID,
		TargetNodeID: req.TargetNodeID,
		Type:         req.Type,
		Strength:     req.Strength,
		Data:         data,
		SourceModule: req.SourceModule,
	}, nil
}

// CreateRelationship handles POST /api/investigations/:id/relationships
func (h *Handler) CreateRelationship(c echo.Context) error {
	invID, err := h.investigation(c)
	if err != nil {
		return err
	}
	in, err := h.bindRelationship(c)
	if err != nil {
		return err
	}

	rel, err := h.svc.CreateRelationship(c.Request().Context(), invID, in, auth.GetUser(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, rel)
}

// UpsertRelationship handles POST /api/investigations/:id/relationships/upsert
func (h *Handler) UpsertRelationship(c echo.Context) error {
	invID, err := h.investigation(c)
	if err != nil {
		return err
	}
	in, err := h.bindRelationship(c)
	if err != nil {
		return err
	}

	rel, created, err := h.svc.CreateOrUpdateRelationship(c.Request().Context(), invID, in, auth.GetUser(c).ID)
	if err != nil {
		return err
	}
	if created {
		return c.JSON(http.StatusCreated, rel)
	}
	return c.JSON(http.StatusOK, rel)
}

// GetRelationship handles GET /api/relationships/:id
func (h *Handler) GetRelationship(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}

	rel, err := h.AuthorizeRelationship(c.Request().Context(), user.ID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rel)
}

// UpdateRelationship handles PUT /api/relationships/:id
func (h *Handler) UpdateRelationship(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}

	var req UpdateRelationshipRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	patch, err := ParseDataPatch(req.Data)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if _, err := h.AuthorizeRelationship(ctx, user.ID, c.Param("id")); err != nil {
		return err
	}

	rel, err := h.svc.UpdateRelationship(ctx, c.Param("id"), RelationshipUpdate{Type: req.Type, Strength: req.Strength, Data: patch})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rel)
}

// endpoints authorizes the caller against the nodes named by the
// source_id and target_id query parameters.
func (h *Handler) endpoints(c echo.Context) (string, string, error) {
	user := auth.GetUser(c)
	if user == nil {
		return "", "", apperror.ErrUnauthorized
	}

	sourceID, targetID := c.QueryParam("source_id"), c.QueryParam("target_id")
	if sourceID == "" || targetID == "" {
		return "", "", apperror.NewInvalid("source_id and target_id are required")
	}
	ctx := c.Request().Context()
	for _, id := range []string{sourceID, targetID} {
		if _, err := h.AuthorizeNode(ctx, user.ID, id); err != nil {
			return "", "", err
		}
	}
	return sourceID, targetID, nil
}

// RelationshipExists handles GET /api/relationships/exists?source_id=&target_id=&type=
func (h *Handler) RelationshipExists(c echo.Context) error {
	sourceID, targetID, err := h.endpoints(c)
	if err != nil {
		return err
	}

	exists, err := h.svc.CheckRelationshipExists(c.Request().Context(), sourceID, targetID, c.QueryParam("type"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ExistsResponse{Exists: exists})
}

// RelationshipsBetween handles GET /api/relationships/between?source_id=&target_id=
func (h *Handler) RelationshipsBetween(c echo.Context) error {
	sourceID, targetID, err := h.endpoints(c)
	if err != nil {
		return err
	}

	rels, err := h.svc.RelationshipsBetween(c.Request().Context(), sourceID, targetID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rels)
}
