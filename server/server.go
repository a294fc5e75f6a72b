// ABOUTME: HTTP interface over a running engine: read-only views, user commands, event ingestion and SSE changes.
// ABOUTME: Routes are mounted on a chi router; /api and /metrics sit behind bearer auth when a token is configured.
package server

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/2389-research/playgraph/engine"
	"github.com/2389-research/playgraph/metrics"
)

// maxBodyBytes bounds POSTed events and commands.
const maxBodyBytes = 64 << 20

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for request and stream logs.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics exposes m on /metrics and tracks SSE subscribers in it.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithAuthToken requires "Authorization: Bearer <token>" on /api and /metrics.
func WithAuthToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithKeepAlive sets the interval between SSE keep-alive comments.
func WithKeepAlive(d time.Duration) Option {
	return func(s *Server) { s.keepAlive = d }
}

// Server routes HTTP requests to an engine handle.
type Server struct {
	router    chi.Router
	handle    *engine.Handle
	logger    *slog.Logger
	metrics   *metrics.Metrics
	token     string
	keepAlive time.Duration
	started   time.Time
}

// New builds the router for h.
func New(h *engine.Handle, opts ...Option) *Server {
	s := &Server{
		handle:    h,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		keepAlive: 15 * time.Second,
		started:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "server")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.token != "" {
			r.Use(bearerAuth(s.token))
		}
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

		r.Route("/api", func(r chi.Router) {
			r.Get("/view", s.handleView)
			r.Get("/nodes", s.handleNodes)
			r.Get("/nodes/{id}", s.handleNode)
			r.Get("/edges", s.handleEdges)
			r.Get("/edges/{id}", s.handleEdge)
			r.Get("/adjacency", s.handleAdjacency)
			r.Get("/selection", s.handleSelection)
			r.Get("/route", s.handleRoute)
			r.Get("/stats", s.handleStats)

			r.Post("/commands", s.handleCommand)
			r.Post("/events", s.handleEvent)
			r.Get("/changes", s.handleChanges)
		})
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
