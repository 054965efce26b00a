package health

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osfiler/osfiler/internal/config"
	"github.com/osfiler/osfiler/internal/server"
	"github.com/osfiler/osfiler/internal/testutil"
)

func newTestClient(t *testing.T, env string) *testutil.HTTPClient {
	t.Helper()
	db := testutil.NewTestDB(t)
	e := server.New(testutil.Logger())
	RegisterRoutes(e, NewHandler(db, &config.Config{Environment: env}), NewStatsHandler(db))
	return testutil.NewHTTPClient(e)
}

func TestHealth(t *testing.T) {
	client := newTestClient(t, "test")

	resp := client.GET("/health")
	require.Equal(t, http.StatusOK, resp.StatusCode, resp.String())
	var h HealthResponse
	require.NoError(t, resp.JSON(&h))
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, "healthy", h.Checks["database"].Status)
	assert.GreaterOrEqual(t, h.Checks["database"].LatencyMs, int64(0))
	assert.Equal(t, "dev", h.Version)

	assert.Equal(t, "OK", client.GET("/healthz").String())
	assert.Equal(t, http.StatusOK, client.GET("/ready").StatusCode)
	assert.Equal(t, http.StatusOK, client.GET("/debug").StatusCode)
}

func TestDebugHiddenInProduction(t *testing.T) {
	client := newTestClient(t, "production")
	assert.Equal(t, http.StatusNotFound, client.GET("/debug").StatusCode)
}

func TestGraphStats(t *testing.T) {
	client := newTestClient(t, "test")

	resp := client.GET("/api/metrics/graph")
	require.Equal(t, http.StatusOK, resp.StatusCode, resp.String())
	var stats StoreStats
	require.NoError(t, resp.JSON(&stats))
	assert.Zero(t, stats.Nodes)
	assert.Zero(t, stats.SystemTypes)
	assert.NotEmpty(t, stats.Timestamp)
}
