package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"

	"github.com/osfiler/osfiler/internal/config"
	"github.com/osfiler/osfiler/internal/version"
)

const probeTimeout = 5 * time.Second

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// Handler serves liveness, readiness and diagnostic endpoints.
type Handler struct {
	db      *bun.DB
	cfg     *config.Config
	startAt time.Time
}

func NewHandler(db *bun.DB, cfg *config.Config) *Handler {
	return &Handler{db: db, cfg: cfg, startAt: time.Now()}
}

type HealthResponse struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Version   string           `json:"version"`
	Commit    string           `json:"commit"`
	Checks    map[string]Check `json:"checks"`
}

// Check is the outcome of probing one dependency.
type Check struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Message   string `json:"message,omitempty"`
}

func (c Check) healthy() bool { return c.Status == statusHealthy }

// pingDatabase round-trips to the graph store under probeTimeout.
func (h *Handler) pingDatabase(ctx context.Context) Check {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	err := h.db.PingContext(ctx)
	check := Check{Status: statusHealthy, LatencyMs: time.Since(start).Milliseconds()}
	if err != nil {
		check.Status = statusUnhealthy
		check.Message = err.Error()
	}
	return check
}

// Health handles GET /health and GET /api/health.
func (h *Handler) Health(c echo.Context) error {
	db := h.pingDatabase(c.Request().Context())
	info := version.Info()

	code := http.StatusOK
	if !db.healthy() {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, HealthResponse{
		Status:    db.Status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startAt).Round(time.Second).String(),
		Version:   info.Version,
		Commit:    info.GitCommit,
		Checks:    map[string]Check{"database": db},
	})
}

// Healthz is the liveness probe. It never touches dependencies.
func (h *Handler) Healthz(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// Ready is the readiness probe.
func (h *Handler) Ready(c echo.Context) error {
	if db := h.pingDatabase(c.Request().Context()); !db.healthy() {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status":  "not_ready",
			"message": "database unreachable",
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "ready"})
}

// Debug reports runtime and pool state. It is hidden in production.
func (h *Handler) Debug(c echo.Context) error {
	if h.cfg.IsProduction() {
		return echo.NewHTTPError(http.StatusNotFound, "Not found")
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	pool := h.db.Stats()

	return c.JSON(http.StatusOK, map[string]any{
		"environment": h.cfg.Environment,
		"build":       version.Info(),
		"go_version":  runtime.Version(),
		"goroutines":  runtime.NumGoroutine(),
		"heap_mb":     mem.HeapAlloc >> 20,
		"num_gc":      mem.NumGC,
		"graph": map[string]any{
			"default_page_size": h.cfg.Graph.DefaultPageSize,
			"max_page_size":     h.cfg.Graph.MaxPageSize,
			"fallback_rps":      h.cfg.Graph.FallbackRPS,
		},
		"database": map[string]any{
			"dialect":    h.db.Dialect().Name().String(),
			"open_conns": pool.OpenConnections,
			"in_use":     pool.InUse,
			"idle":       pool.Idle,
			"wait_count": pool.WaitCount,
		},
	})
}
