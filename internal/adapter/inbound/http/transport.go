package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/storyglot/authz/internal/domain/auth"
	"github.com/storyglot/authz/internal/service"
)

// Server is the inbound HTTP adapter exposing the authorization API.
type Server struct {
	authorizer    *service.AuthorizationService
	keys          *auth.APIKeyService
	server        *http.Server
	addr          string
	logger        *slog.Logger
	metrics       *Metrics
	healthChecker *HealthChecker
	abilities     *service.AbilityService
	audits        *service.AuditService
}

// Option is a functional option for configuring Server.
type Option func(*Server)

// WithAddr sets the listen address. Default is "127.0.0.1:8080".
func WithAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithLogger sets the logger for the HTTP server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithHealthChecker sets the health checker for the /healthz endpoint.
func WithHealthChecker(hc *HealthChecker) Option {
	return func(s *Server) {
		s.healthChecker = hc
	}
}

// WithEngineStats registers cache and audit counters from the given
// services on the metrics registry.
func WithEngineStats(abilities *service.AbilityService, audits *service.AuditService) Option {
	return func(s *Server) {
		s.abilities = abilities
		s.audits = audits
	}
}

// NewServer creates the HTTP adapter wrapping the authorization service.
// keys authenticates callers of /v1/authorize.
func NewServer(authorizer *service.AuthorizationService, keys *auth.APIKeyService, opts ...Option) *Server {
	s := &Server{
		authorizer: authorizer,
		keys:       keys,
		addr:       "127.0.0.1:8080",
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the full handler with routes and middleware. The metrics
// registry is created here so each Server owns its collectors.
func (s *Server) Handler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.metrics = NewMetrics(reg)
	RegisterEngineStats(reg, s.authorizer, s.abilities, s.audits)

	// Middleware order (outermost first): metrics captures the full
	// duration, request ID enriches the logger, API key resolves the
	// caller identity.
	authorize := AuthorizeHandler(s.authorizer, s.metrics)
	authorize = APIKeyMiddleware(s.keys)(authorize)
	authorize = RequestIDMiddleware(s.logger)(authorize)
	authorize = MetricsMiddleware(s.metrics)(authorize)

	mux := http.NewServeMux()
	mux.Handle("/v1/authorize", authorize)
	if s.healthChecker != nil {
		mux.Handle("/healthz", s.healthChecker.Handler())
	} else {
		mux.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
		}))
	}
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	return mux
}

// Start begins accepting connections. It blocks until the context is
// cancelled or the server fails.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down HTTP server")
		return s.shutdown()
	case err := <-errCh:
		return err
	}
}

// shutdown drains in-flight requests with a timeout.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("error during server shutdown", "error", err)
		return err
	}

	s.logger.Info("HTTP server shutdown complete")
	return nil
}

// Close gracefully shuts down the server.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	return s.shutdown()
}
