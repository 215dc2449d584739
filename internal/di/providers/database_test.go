package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bac-dam-1991/shopping-list/internal/config"
	"github.com/bac-dam-1991/shopping-list/internal/logger"
)

func TestOpenStore_EmbeddedBackends(t *testing.T) {
	for _, backend := range []string{config.BackendBadger, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			db, err := openStore(config.StoreConfig{Backend: backend, DataPath: t.TempDir()}, logger.Discard())
			require.NoError(t, err)
			t.Cleanup(func() { _ = db.Close() })

			assert.NoError(t, db.Ping(context.Background()))
		})
	}
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	_, err := openStore(config.StoreConfig{Backend: "redis"}, logger.Discard())
	assert.ErrorContains(t, err, `unknown store backend "redis"`)
}

func TestRateLimiterHandle_NilSafe(t *testing.T) {
	h := &RateLimiterHandle{}
	assert.NoError(t, h.Shutdown())
}

func TestVerifierHandle_StaticHasNothingToClose(t *testing.T) {
	h := &VerifierHandle{}
	assert.NoError(t, h.Shutdown())
}
