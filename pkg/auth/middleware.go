// Package auth resolves the opaque principal id that owns investigations and
// is recorded as created_by on graph entities.
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/osfiler/osfiler/internal/config"
	"github.com/osfiler/osfiler/pkg/apperror"
	"github.com/osfiler/osfiler/pkg/logger"
)

var Module = fx.Module("auth",
	fx.Provide(NewMiddleware),
)

// DevUserHeader lets local clients pick a principal when token verification
// is not configured.
const DevUserHeader = "X-User-ID"

// AuthUser represents an authenticated caller
type AuthUser struct {
	// ID is the principal id (the token's sub claim).
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Claims are the bearer token claims we read.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type contextKey string

const UserContextKey contextKey = "auth_user"

// GetUser retrieves the authenticated user from the Echo context
func GetUser(c echo.Context) *AuthUser {
	if user, ok := c.Get(string(UserContextKey)).(*AuthUser); ok {
		return user
	}
	return nil
}

// SetUser stores the authenticated user on the Echo context.
func SetUser(c echo.Context, user *AuthUser) {
	c.Set(string(UserContextKey), user)
}

// Middleware handles authentication for routes
type Middleware struct {
	cfg    *config.Config
	log    *slog.Logger
	secret []byte
}

// NewMiddleware creates a new auth middleware
func NewMiddleware(cfg *config.Config, log *slog.Logger) *Middleware {
	return &Middleware{
		cfg:    cfg,
		log:    log.With(logger.Scope("auth")),
		secret: []byte(cfg.Auth.JWTSecret),
	}
}

// RequireAuth returns middleware that requires an authenticated principal
func (m *Middleware) RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := m.authenticate(c.Request())
			if err != nil {
				m.log.Warn("authentication failed", logger.Error(err))
				status, body := apperror.ToHTTPError(err)
				return c.JSON(status, body)
			}
			SetUser(c, user)
			return next(c)
		}
	}
}

func (m *Middleware) authenticate(r *http.Request) (*AuthUser, error) {
	token := extractToken(r)

	if !m.cfg.Auth.Enabled() {
		if m.cfg.IsProduction() {
			return nil, apperror.ErrUnauthorized.WithMessage("token verification is not configured")
		}
		if id := strings.TrimSpace(r.Header.Get(DevUserHeader)); id != "" {
			return &AuthUser{ID: id}, nil
		}
		return &AuthUser{ID: m.cfg.Auth.DevPrincipal}, nil
	}

	if token == "" {
		return nil, apperror.ErrUnauthorized.WithMessage("Missing authorization token")
	}

	claims, err := m.parse(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperror.ErrInvalidToken.WithMessage("Token has expired").WithInternal(err)
		}
		return nil, apperror.ErrInvalidToken.WithInternal(err)
	}
	if claims.Subject == "" {
		return nil, apperror.ErrInvalidToken.WithMessage("Token has no subject")
	}

	return &AuthUser{ID: claims.Subject, Email: claims.Email}, nil
}

func (m *Middleware) parse(token string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if m.cfg.Auth.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.cfg.Auth.Issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func extractToken(r *http.Request) string {
	header := r.Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

// IssueToken signs an HS256 token for subject. Used by tooling and tests.
func IssueToken(secret, issuer, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("issue token: empty secret")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
