// Package web provides the admin HTTP API: health, metrics, the area list and
// an endpoint that enqueues publication tasks.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leonkenneth/RNB-coeur/internal/config"
	"github.com/leonkenneth/RNB-coeur/internal/tasks"
	mw "github.com/leonkenneth/RNB-coeur/internal/web/middleware"
)

// Pinger reports whether a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the admin HTTP server.
type Server struct {
	cfg      *config.Config
	enqueuer tasks.Enqueuer
	checks   map[string]Pinger
	router   *chi.Mux
	server   *http.Server
}

// NewServer creates a Server that dispatches tasks through enqueuer. checks
// are probed by /healthz, keyed by the name reported.
func NewServer(cfg *config.Config, enqueuer tasks.Enqueuer, checks map[string]Pinger) *Server {
	s := &Server{
		cfg:      cfg,
		enqueuer: enqueuer,
		checks:   checks,
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))
	s.router.Use(securityHeaders)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	limiter := mw.NewRateLimiter(s.cfg.Security.RateLimitRPS, s.cfg.Security.RateLimitBurst)
	s.router.Route("/api", func(r chi.Router) {
		r.Use(limiter.Middleware)
		r.Use(mw.APIKeyAuth(&s.cfg.Security))

		r.Get("/areas", s.handleListAreas)
		r.Post("/publish/{area}", s.handlePublish)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("admin server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
