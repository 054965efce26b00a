package health

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"

	"github.com/osfiler/osfiler/pkg/apperror"
)

// StatsHandler reports row counts of the graph store.
type StatsHandler struct {
	db *bun.DB
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(db *bun.DB) *StatsHandler {
	return &StatsHandler{db: db}
}

// StoreStats is the response of GET /api/metrics/graph
type StoreStats struct {
	Investigations int    `json:"investigations"`
	Nodes          int    `json:"nodes"`
	Relationships  int    `json:"relationships"`
	Types          int    `json:"types"`
	SystemTypes    int    `json:"system_types"`
	Timestamp      string `json:"timestamp"`
}

// GraphStats handles GET /api/metrics/graph
func (h *StatsHandler) GraphStats(c echo.Context) error {
	ctx := c.Request().Context()

	var stats StoreStats
	counts := []struct {
		table string
		where string
		dst   *int
	}{
		{"investigations", "", &stats.Investigations},
		{"nodes", "", &stats.Nodes},
		{"relationships", "", &stats.Relationships},
		{"types", "", &stats.Types},
		{"types", "is_system = TRUE", &stats.SystemTypes},
	}
	for _, q := range counts {
		n, err := h.count(ctx, q.table, q.where)
		if err != nil {
			return apperror.ErrDatabase.WithInternal(err)
		}
		*q.dst = n
	}

	stats.Timestamp = time.Now().UTC().Format(time.RFC3339)
	return c.JSON(http.StatusOK, stats)
}

func (h *StatsHandler) count(ctx context.Context, table, where string) (int, error) {
	q := h.db.NewSelect().TableExpr(table)
	if where != "" {
		q = q.Where(where)
	}
	return q.Count(ctx)
}
