package reconciliation

import (
	"github.com/labstack/echo/v4"

	"github.com/osfiler/osfiler/pkg/auth"
)

// RegisterRoutes registers reconciliation routes
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/api/types")
	g.Use(authMiddleware.RequireAuth())

	g.PUT("/reconcile", h.Reconcile)
}
