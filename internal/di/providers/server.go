package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/bac-dam-1991/shopping-list/internal/api"
	"github.com/bac-dam-1991/shopping-list/internal/config"
	"github.com/bac-dam-1991/shopping-list/internal/logger"
	"github.com/bac-dam-1991/shopping-list/internal/service"
	"github.com/bac-dam-1991/shopping-list/internal/sse"
)

const (
	apiTitle   = "Shopping List API"
	apiVersion = "1.0.0"
)

// ProvideAPIServer provides the routed API handler. The event stream is only
// mounted when an SSE manager is registered.
func ProvideAPIServer(i do.Injector) (*api.Server, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	verifier := do.MustInvoke[*VerifierHandle](i)
	limiter := do.MustInvoke[*RateLimiterHandle](i)

	services := &api.Services{
		Lists:    do.MustInvoke[*service.ShoppingListService](i),
		Verifier: verifier.Verifier,
		Store:    storeHandle.Adapter,
		Limiter:  limiter.KeyedRateLimiter,
	}

	var manager *sse.Manager
	if sseHandle, err := do.Invoke[*SSEManagerHandle](i); err == nil {
		manager = sseHandle.Manager
	}
	services.SSE = manager

	return api.NewServer(services, api.Options{
		Title:          apiTitle,
		Version:        apiVersion,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, log.Logger), nil
}

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	handler := do.MustInvoke[*api.Server](i)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("HTTP server error")
		}
	}()

	log.Info("Server running", "addr", srv.Addr, "docs", "http://localhost:"+cfg.Server.Port+"/docs")

	return &HTTPServerHandle{Server: srv}, nil
}
