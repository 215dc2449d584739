// Package providers contains dependency injection providers for the shopping
// list API.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/bac-dam-1991/shopping-list/internal/config"
	"github.com/bac-dam-1991/shopping-list/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting Shopping List API",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"store", cfg.Store.Backend,
		"auth_enabled", cfg.Auth.Enabled,
	)

	return log, nil
}
