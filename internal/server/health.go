package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomwolfe/storefront/internal/httputil"
	"github.com/tomwolfe/storefront/internal/otel"
)

func (s *Server) registerHealthRoutes(r chi.Router) {
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/readiness", func(w http.ResponseWriter, req *http.Request) {
		if err := s.store.Ping(req.Context()); err != nil {
			httputil.RespondError(w, http.StatusServiceUnavailable, "store not ready")
			return
		}
		httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
		httputil.RespondJSON(w, http.StatusOK, map[string]string{
			"version":    s.version,
			"commit":     s.commit,
			"build_date": s.buildDate,
		})
	})

	if s.cfg.MetricsEnabled {
		r.Method(http.MethodGet, "/metrics", otel.PrometheusHandler())
	}
}
