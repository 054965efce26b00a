package investigations

import (
	"github.com/labstack/echo/v4"

	"github.com/osfiler/osfiler/pkg/auth"
)

// RegisterRoutes registers investigation routes
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/api/investigations")
	g.Use(authMiddleware.RequireAuth())
	Mount(g, h)
}

// Mount attaches the handlers to an already authenticated group.
func Mount(g *echo.Group, h *Handler) {
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/count", h.Count)
	g.GET("/search", h.Search)
	g.GET("/search-by-tags", h.SearchByTags)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/archive", h.Archive)
	g.POST("/:id/unarchive", h.Unarchive)
}
