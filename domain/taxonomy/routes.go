package taxonomy

import (
	"github.com/labstack/echo/v4"

	"github.com/osfiler/osfiler/pkg/auth"
)

// RegisterRoutes registers taxonomy routes
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/api/types")
	g.Use(authMiddleware.RequireAuth())

	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/node", h.ListNodeTypes)
	g.GET("/relationship", h.ListRelationshipTypes)
	g.GET("/:id", h.Get)
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}
