// Package api provides the HTTP API server and handlers for the shopping list
// application.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/bac-dam-1991/shopping-list/internal/auth"
	"github.com/bac-dam-1991/shopping-list/internal/ratelimit"
	"github.com/bac-dam-1991/shopping-list/internal/service"
	"github.com/bac-dam-1991/shopping-list/internal/sse"
	"github.com/bac-dam-1991/shopping-list/internal/validation"
)

// BasePath is the prefix of every shopping list route.
const BasePath = "/api/v1/shopping-lists"

// OpenAPIPath is the extensionless document path. Huma serves the document
// at OpenAPIPath+".json" and OpenAPIPath+".yaml".
const OpenAPIPath = "/openapi"

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services holds the dependencies the handlers call into.
type Services struct {
	Lists    *service.ShoppingListService
	Verifier auth.Verifier
	Store    Pinger
	SSE      *sse.Manager
	// Limiter is optional; nil disables rate limiting.
	Limiter *ratelimit.KeyedRateLimiter
}

// Options configures the HTTP surface.
type Options struct {
	Title          string
	Version        string
	AllowedOrigins []string
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services   *Services
	validator  *validation.Validator
	sseHandler *sse.Handler
	router     *chi.Mux
	api        huma.API
	logger     *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services *Services, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Title == "" {
		opts.Title = "Shopping List API"
	}
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}

	s := &Server{
		services:  services,
		validator: validation.New(),
		router:    chi.NewRouter(),
		logger:    logger,
	}
	if services.SSE != nil {
		s.sseHandler = sse.NewHandler(services.SSE, logger)
	}

	// Middleware must be installed before huma registers its first route.
	s.setupMiddleware(opts.AllowedOrigins)

	humaConfig := huma.DefaultConfig(opts.Title, opts.Version)
	humaConfig.OpenAPIPath = OpenAPIPath
	humaConfig.DocsPath = "/docs"
	// Bodies are returned bare, without a $schema link.
	humaConfig.CreateHooks = nil
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}

	RegisterErrorHandler(logger)
	s.api = humachi.New(s.router, humaConfig)

	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, mainly for tests.
func (s *Server) API() huma.API {
	return s.api
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware(origins []string) {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Retry-After", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	s.router.Use(authMiddleware(s.services.Verifier, s.logger))
	if s.services.Limiter != nil {
		s.router.Use(rateLimitMiddleware(s.services.Limiter, s.logger))
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerShoppingListRoutes()

	// The event stream writes its own framing, so it bypasses huma.
	// chi prefers the static segment over the {id} route.
	if s.sseHandler != nil {
		s.router.Get(BasePath+"/events", s.sseHandler.ServeHTTP)
	}
}
