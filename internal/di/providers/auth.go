package providers

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"

	"github.com/bac-dam-1991/shopping-list/internal/auth"
	"github.com/bac-dam-1991/shopping-list/internal/config"
	"github.com/bac-dam-1991/shopping-list/internal/logger"
	"github.com/bac-dam-1991/shopping-list/internal/ratelimit"
)

// VerifierHandle wraps the token verifier with shutdown capability.
type VerifierHandle struct {
	auth.Verifier
	jwks *auth.JWTVerifier
}

// Shutdown implements do.Shutdownable. It stops the JWKS refresh.
func (h *VerifierHandle) Shutdown() error {
	if h.jwks == nil {
		return nil
	}
	return h.jwks.Close()
}

// ProvideVerifier provides the bearer token verifier. With authentication
// disabled every request runs as the development subject.
func ProvideVerifier(i do.Injector) (*VerifierHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Auth.Enabled {
		log.Warn("Authentication disabled, all requests use the development subject",
			"subject", cfg.Auth.DevSubject,
		)
		return &VerifierHandle{Verifier: auth.StaticVerifier{Subject: cfg.Auth.DevSubject}}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	v, err := auth.NewJWKSVerifier(ctx, cfg.Auth.JWKSURL, auth.Options{
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
	}, log.Logger)
	if err != nil {
		return nil, fmt.Errorf("create token verifier: %w", err)
	}

	log.Info("Token verifier ready", "jwks_url", cfg.Auth.JWKSURL, "issuer", cfg.Auth.Issuer)
	return &VerifierHandle{Verifier: v, jwks: v}, nil
}

// RateLimiterHandle wraps the optional request limiter.
type RateLimiterHandle struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *RateLimiterHandle) Shutdown() error {
	if h.KeyedRateLimiter == nil {
		return nil
	}
	return h.KeyedRateLimiter.Shutdown()
}

// ProvideRateLimiter provides the per-client limiter, or an empty handle when
// limiting is disabled.
func ProvideRateLimiter(i do.Injector) (*RateLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.RateLimit.RequestsPerMinute == 0 {
		log.Info("Rate limiting disabled")
		return &RateLimiterHandle{}, nil
	}

	burst := cfg.RateLimit.Burst
	if burst == 0 {
		burst = 1
	}
	return &RateLimiterHandle{KeyedRateLimiter: ratelimit.New(cfg.RateLimit.RequestsPerMinute, burst)}, nil
}
