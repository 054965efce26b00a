package testutil

import (
	"github.com/labstack/echo/v4"

	"github.com/osfiler/osfiler/internal/config"
	"github.com/osfiler/osfiler/pkg/auth"
)

// Principals used across handler tests.
const (
	Alice = "alice"
	Bob   = "bob"
)

// DevAuth returns the real auth middleware running without a token secret,
// so the principal comes from the X-User-ID header and defaults to Alice.
func DevAuth() echo.MiddlewareFunc {
	cfg := &config.Config{
		Environment: "test",
		Auth:        config.AuthConfig{DevPrincipal: Alice},
	}
	return auth.NewMiddleware(cfg, Logger()).RequireAuth()
}

// AsUser makes the request on behalf of principal.
func AsUser(principal string) RequestOption {
	return WithHeader(auth.DevUserHeader, principal)
}
