package graph

import (
	"github.com/labstack/echo/v4"

	"github.com/osfiler/osfiler/pkg/auth"
)

// RegisterRoutes registers node and relationship routes.
// DELETE /api/relationships/:id and the traversal endpoints live in the
// graphquery package.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	api := e.Group("/api", authMiddleware.RequireAuth())
	Mount(api, h)
}

// Mount attaches the handlers to an authenticated /api group.
func Mount(api *echo.Group, h *Handler) {
	inv := api.Group("/investigations/:id")
	inv.GET("/nodes", h.ListNodes)
	inv.POST("/nodes", h.CreateNode)
	inv.GET("/nodes/count", h.CountNodes)
	inv.GET("/nodes/search", h.SearchNodes)
	inv.GET("/nodes/types", h.NodeTypes)
	inv.POST("/nodes/upsert", h.UpsertNode)
	inv.GET("/relationships", h.ListRelationships)
	inv.POST("/relationships", h.CreateRelationship)
	inv.GET("/relationships/count", h.CountRelationships)
	inv.GET("/relationships/types", h.RelationshipTypes)
	inv.POST("/relationships/upsert", h.UpsertRelationship)

	nodes := api.Group("/nodes")
	nodes.GET("/:id", h.GetNode)
	nodes.PUT("/:id", h.UpdateNode)
	nodes.DELETE("/:id", h.DeleteNode)

	rels := api.Group("/relationships")
	rels.GET("/exists", h.RelationshipExists)
	rels.GET("/between", h.RelationshipsBetween)
	rels.GET("/:id", h.GetRelationship)
	rels.PUT("/:id", h.UpdateRelationship)
}
