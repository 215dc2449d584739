// Package di provides dependency injection configuration for the shopping list API.
package di

import (
	"github.com/samber/do/v2"

	"github.com/bac-dam-1991/shopping-list/internal/api"
	"github.com/bac-dam-1991/shopping-list/internal/config"
	"github.com/bac-dam-1991/shopping-list/internal/di/providers"
	"github.com/bac-dam-1991/shopping-list/internal/lambdaproxy"
	"github.com/bac-dam-1991/shopping-list/internal/logger"
	"github.com/bac-dam-1991/shopping-list/internal/repository"
	"github.com/bac-dam-1991/shopping-list/internal/service"
)

// NewContainer creates the container for the long-running HTTP server.
func NewContainer() *do.RootScope {
	injector := newBaseContainer()

	// Realtime
	do.Provide(injector, providers.ProvideSSEManager)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// NewLambdaContainer creates the container for the Lambda entry point.
// Invocations are short-lived so no event stream is registered.
func NewLambdaContainer() *do.RootScope {
	injector := newBaseContainer()

	do.Provide(injector, providers.ProvideLambdaHandler)

	return injector
}

func newBaseContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Database layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideRepository)

	// Auth layer
	do.Provide(injector, providers.ProvideVerifier)
	do.Provide(injector, providers.ProvideRateLimiter)

	// Business services
	do.Provide(injector, providers.ProvideShoppingListService)

	// Routing
	do.Provide(injector, providers.ProvideAPIServer)

	return injector
}

// Bootstrap initializes all services and starts the HTTP server.
func Bootstrap(injector *do.RootScope) error {
	if err := bootstrapCore(injector); err != nil {
		return err
	}

	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}
	return nil
}

// BootstrapLambda initializes all services and returns the event handler.
func BootstrapLambda(injector *do.RootScope) (*lambdaproxy.Handler, error) {
	if err := bootstrapCore(injector); err != nil {
		return nil, err
	}
	return do.Invoke[*lambdaproxy.Handler](injector)
}

func bootstrapCore(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)

	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*repository.ShoppingLists](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.VerifierHandle](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*providers.RateLimiterHandle](injector)
	_ = do.MustInvoke[*service.ShoppingListService](injector)
	_ = do.MustInvoke[*api.Server](injector)

	return nil
}
