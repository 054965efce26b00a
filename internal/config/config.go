package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"

	"github.com/osfiler/osfiler/pkg/mathutil"
)

var Module = fx.Module("config",
	fx.Provide(NewConfig),
)

// Config holds all application configuration
type Config struct {
	// Server settings
	ServerPort    int    `env:"SERVER_PORT" envDefault:"5000"`
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0"`
	Environment   string `env:"ENVIRONMENT" envDefault:"local"`
	Debug         bool   `env:"DEBUG" envDefault:"false"`

	Database DatabaseConfig
	Auth     AuthConfig
	Graph    GraphConfig
	Otel     OtelConfig

	// CORSAllowedOrigins restricts browser callers; empty allows any origin.
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	// BodyLimit caps request bodies, which bounds import documents.
	BodyLimit string `env:"SERVER_BODY_LIMIT" envDefault:"16M"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host         string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port         int           `env:"POSTGRES_PORT" envDefault:"5432"`
	User         string        `env:"POSTGRES_USER" envDefault:"osfiler"`
	Password     string        `env:"POSTGRES_PASSWORD" envDefault:""`
	Database     string        `env:"POSTGRES_DB" envDefault:"osfiler"`
	SSLMode      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	MaxIdleTime  time.Duration `env:"DB_MAX_IDLE_TIME" envDefault:"5m"`
	QueryDebug   bool          `env:"DB_QUERY_DEBUG" envDefault:"false"`
	AutoMigrate  bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`

	ConnectTimeout     time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"10s"`
	SlowQueryThreshold time.Duration `env:"DB_SLOW_QUERY_THRESHOLD" envDefault:"3s"`
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// AuthConfig controls how the caller principal is resolved from bearer tokens.
type AuthConfig struct {
	// JWTSecret is the HMAC key used to verify bearer tokens.
	JWTSecret string `env:"AUTH_JWT_SECRET" envDefault:""`
	// Issuer, when set, must match the token's iss claim.
	Issuer string `env:"AUTH_JWT_ISSUER" envDefault:""`
	// DevPrincipal is used for unauthenticated requests when no secret is
	// configured. Never honored in production.
	DevPrincipal string `env:"AUTH_DEV_PRINCIPAL" envDefault:"dev-user"`
}

// Enabled returns true when token verification is configured.
func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != ""
}

// GraphConfig tunes the graph query surface.
type GraphConfig struct {
	DefaultPageSize int `env:"GRAPH_DEFAULT_PAGE_SIZE" envDefault:"100"`
	MaxPageSize     int `env:"GRAPH_MAX_PAGE_SIZE" envDefault:"1000"`

	// Throttle for the full-scan fallback of relationship deletion.
	FallbackRPS   float64 `env:"GRAPH_FALLBACK_RPS" envDefault:"5"`
	FallbackBurst int     `env:"GRAPH_FALLBACK_BURST" envDefault:"2"`

	// SeedSystemTypes installs the built-in taxonomy on startup.
	SeedSystemTypes bool `env:"GRAPH_SEED_SYSTEM_TYPES" envDefault:"true"`
}

// ClampLimit applies the default and maximum page sizes to a requested limit.
func (g GraphConfig) ClampLimit(limit int) int {
	def, maxSize := g.DefaultPageSize, g.MaxPageSize
	if def <= 0 {
		def = 100
	}
	if maxSize <= 0 {
		maxSize = 1000
	}
	return mathutil.ClampLimit(limit, def, maxSize)
}

// IsProduction reports whether the server runs in the production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// NewConfig loads configuration from environment variables
func NewConfig(log *slog.Logger) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	log.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.ServerPort),
		slog.String("db_host", cfg.Database.Host),
		slog.Bool("auth_enabled", cfg.Auth.Enabled()),
	)

	return cfg, nil
}
