// Package server provides the storefront HTTP server.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/tomwolfe/storefront/internal/audit"
	"github.com/tomwolfe/storefront/internal/config"
	"github.com/tomwolfe/storefront/internal/httputil"
	"github.com/tomwolfe/storefront/internal/identity"
	"github.com/tomwolfe/storefront/internal/otel"
	"github.com/tomwolfe/storefront/internal/store"
	"github.com/tomwolfe/storefront/internal/tools"
)

// Server wraps HTTP routes and dependencies.
type Server struct {
	store      store.Store
	cfg        config.Config
	gate       *Gate
	resolver   *identity.Resolver
	registry   *tools.Registry
	dispatcher *tools.Dispatcher
	audit      *audit.Logger
	contract   []byte
	version    string
	commit     string
	buildDate  string
	logger     zerolog.Logger
	router     chi.Router
}

// Option configures server construction.
type Option func(*Server)

// WithToolContract sets the embedded tool contract bytes served at
// /api/tools.yaml.
func WithToolContract(contract []byte) Option {
	return func(s *Server) {
		s.contract = contract
	}
}

// New constructs a storefront API server.
func New(
	st store.Store,
	cfg config.Config,
	resolver *identity.Resolver,
	registry *tools.Registry,
	dispatcher *tools.Dispatcher,
	logger zerolog.Logger,
	version, commit, buildDate string,
	opts ...Option,
) *Server {
	s := &Server{
		store:      st,
		cfg:        cfg,
		gate:       NewGate(cfg.InternalKey, cfg.ProviderConfigured()),
		resolver:   resolver,
		registry:   registry,
		dispatcher: dispatcher,
		audit:      audit.NewLogger(logger),
		version:    version,
		commit:     commit,
		buildDate:  buildDate,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the configured router.
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	if s.cfg.TracesEnabled {
		r.Use(otel.HTTPTracing("storefront"))
	}
	r.Use(httputil.RequestID)
	r.Use(httputil.RequestLogger(s.logger))
	r.Use(httputil.Recoverer)
	r.Use(httputil.SecureHeaders)
	r.Use(httputil.BodyLimit(1 << 20))

	s.registerHealthRoutes(r)

	r.Get("/api/tools.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(s.contract)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.gate.Middleware)

		r.Get("/api/tools", s.handleListTools)
		r.Post("/api/tools", s.handleCallTool)
		r.Post("/api/tools/webhook/{source}", s.handleWebhook)

		r.Post("/api/auth/bridge", s.handleAuthBridge)
		r.Post("/api/inventory/sync", s.handleInventorySync)
	})

	return r
}
