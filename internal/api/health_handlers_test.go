package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck_Healthy(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	health := decode[HealthResponse](t, resp.Body.Bytes())
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "healthy", health.Components["store"].Status)
	assert.NotEmpty(t, health.Components["store"].Latency)
	assert.Contains(t, health.Components, "sse")
}

func TestHealthCheck_StoreDown(t *testing.T) {
	ts := setupTestServer(t, withStore(failingPinger{}))

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)

	health := decode[HealthResponse](t, resp.Body.Bytes())
	assert.Equal(t, "unhealthy", health.Status)
	assert.Equal(t, "unhealthy", health.Components["store"].Status)
	assert.Equal(t, "store unreachable", health.Components["store"].Message)
}

func TestHealthCheck_NoAuthNeeded(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/health", "Authorization: Bearer not-a-token")
	assert.Equal(t, http.StatusOK, resp.Code)
}
