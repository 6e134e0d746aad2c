package server

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/permissions/pkg/cache"
	"github.com/platinummonkey/permissions/pkg/commands"
	"github.com/platinummonkey/permissions/pkg/httputil"
	"github.com/platinummonkey/permissions/pkg/observability"
	"github.com/platinummonkey/permissions/pkg/presence"
	"github.com/platinummonkey/permissions/pkg/resync"
)

// MaxBodyBytes caps request bodies
const MaxBodyBytes = 1 << 20

// StatsSource reports cache statistics
type StatsSource interface {
	Stats() cache.Stats
}

// Resyncer runs and reports database resyncs
type Resyncer interface {
	SyncNow(ctx context.Context) error
	Status() resync.Status
}

// Server is the admin HTTP transport
type Server struct {
	router     *mux.Router
	handler    http.Handler
	dispatcher *commands.Dispatcher
	tracker    *presence.Tracker

	health   *observability.HealthChecker
	registry *prometheus.Registry
	metrics  *observability.Metrics
	stats    StatsSource
	resync   Resyncer
	logger   logrus.FieldLogger
}

// Option configures a Server
type Option func(*Server)

// WithHealth serves /health/live and /health/ready from checker
func WithHealth(checker *observability.HealthChecker) Option {
	return func(s *Server) {
		s.health = checker
	}
}

// WithPrometheus serves /metrics from registry and instruments every route
func WithPrometheus(registry *prometheus.Registry, metrics *observability.Metrics) Option {
	return func(s *Server) {
		s.registry = registry
		s.metrics = metrics
	}
}

// WithCacheStats serves /v1/cache/stats
func WithCacheStats(stats StatsSource) Option {
	return func(s *Server) {
		s.stats = stats
	}
}

// WithResync serves GET and POST /v1/resync
func WithResync(r Resyncer) Option {
	return func(s *Server) {
		s.resync = r
	}
}

// WithLogger sets the logger
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a Server routing to dispatcher and tracker
func NewServer(dispatcher *commands.Dispatcher, tracker *presence.Tracker, opts ...Option) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		dispatcher: dispatcher,
		tracker:    tracker,
		logger:     observability.OrDiscard(nil),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	s.handler = httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware(s.logger),
		httputil.LoggingMiddleware(s.logger),
		httputil.MaxBytesMiddleware(MaxBodyBytes),
	)(s.router)
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics, routeTemplate))
	}

	// Commands
	s.router.HandleFunc("/v1/rcon", s.rcon).Methods("POST")
	s.router.HandleFunc("/v1/console", s.console).Methods("POST")
	s.router.HandleFunc("/v1/chat", s.chat).Methods("POST")

	// Presence
	s.router.HandleFunc("/v1/sessions", s.listSessions).Methods("GET")
	s.router.HandleFunc("/v1/sessions", s.joinSession).Methods("POST")
	s.router.HandleFunc("/v1/sessions/{identity}", s.leaveSession).Methods("DELETE")
	s.router.HandleFunc("/v1/tribes/{id}/roster", s.setRoster).Methods("PUT")

	if s.stats != nil {
		s.router.HandleFunc("/v1/cache/stats", s.cacheStats).Methods("GET")
	}
	if s.resync != nil {
		s.router.HandleFunc("/v1/resync", s.resyncStatus).Methods("GET")
		s.router.HandleFunc("/v1/resync", s.resyncNow).Methods("POST")
	}
	if s.registry != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.registry)).Methods("GET")
	}
	if s.health != nil {
		s.router.HandleFunc("/health/live", s.health.Liveness).Methods("GET")
		s.router.HandleFunc("/health/ready", s.health.Readiness).Methods("GET")
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// routeTemplate labels metrics by route rather than raw path
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}
