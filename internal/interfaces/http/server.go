// Package http exposes the detection service over HTTP: the detect trigger,
// health, and Prometheus metrics.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/pulsefeed/trendwatch/internal/config"
	"github.com/pulsefeed/trendwatch/internal/detect"
	"github.com/pulsefeed/trendwatch/internal/metrics"
	"github.com/pulsefeed/trendwatch/internal/net/ratelimit"
)

// Runner triggers detection runs; satisfied by detect.Detector.
type Runner interface {
	Run(ctx context.Context, opts detect.Options) (*detect.Stats, error)
}

// DBHealth reports database liveness for the health endpoint; satisfied by
// db.Manager.
type DBHealth interface {
	Ping(ctx context.Context) error
	Stats() map[string]interface{}
}

// Server is the service's HTTP surface.
type Server struct {
	router  *mux.Router
	server  *http.Server
	runner  Runner
	dbh     DBHealth
	metrics *metrics.Registry
	limiter *ratelimit.Limiter
	auth    *authenticator
	cfg     config.HTTPConfig
	detCfg  config.DetectorConfig
	log     zerolog.Logger
}

// NewServer wires routes, middleware, auth, and rate limiting.
func NewServer(cfg config.HTTPConfig, detCfg config.DetectorConfig, runner Runner, dbh DBHealth, m *metrics.Registry, verifier TokenVerifier, log zerolog.Logger) *Server {
	if m == nil {
		m = metrics.NewRegistry()
	}
	s := &Server{
		router:  mux.NewRouter(),
		runner:  runner,
		dbh:     dbh,
		metrics: m,
		limiter: ratelimit.NewPerMinute(float64(cfg.RateLimitPerMin), cfg.RateBurst),
		auth:    newAuthenticator(cfg.CronSecret, verifier),
		cfg:     cfg,
		detCfg:  detCfg,
		log:     log.With().Str("component", "http").Logger(),
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.timeoutMiddleware)
	s.router.Use(s.corsMiddleware)

	s.router.Handle("/metrics", promhttp.HandlerFor(s.metrics.Gatherer(), promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := s.router.PathPrefix("/").Subrouter()
	api.Use(s.jsonContentTypeMiddleware)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/v1/detect", s.handleDetect).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("http server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
