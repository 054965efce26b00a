package graphquery

import (
	"github.com/labstack/echo/v4"

	"github.com/osfiler/osfiler/pkg/auth"
)

// RegisterRoutes registers graph query routes.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	api := e.Group("/api", authMiddleware.RequireAuth())
	Mount(api, h)
}

// Mount attaches the handlers to an authenticated /api group.
func Mount(api *echo.Group, h *Handler) {
	api.GET("/investigations/:id/graph", h.GraphData)
	api.GET("/investigations/:id/export", h.Export)
	api.POST("/investigations/import", h.Import)

	api.GET("/nodes/connected", h.NodesConnected)
	api.GET("/nodes/:id/related", h.RelatedNodes)

	api.DELETE("/relationships/:id", h.DeleteRelationship)
}
