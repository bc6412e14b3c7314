package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/givehub-core/internal/auth"
	"github.com/nerrad567/givehub-core/internal/infrastructure/config"
	"github.com/nerrad567/givehub-core/internal/infrastructure/logging"
	"github.com/nerrad567/givehub-core/internal/telemetry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is implemented by every backing service reported on /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Session config.SessionConfig
	Logger  *logging.Logger
	Gateway *auth.Gateway

	// Metrics enables request metrics and the /metrics endpoint. Optional.
	Metrics *telemetry.Metrics

	// Health maps a component name to its checker. Nil entries are skipped.
	Health map[string]HealthChecker

	Version string
}

// Server is the HTTP API server for Givehub Core.
type Server struct {
	cfg     config.APIConfig
	cookies cookieJar
	logger  *logging.Logger
	gateway *auth.Gateway
	metrics *telemetry.Metrics
	health  map[string]HealthChecker
	version string
	server  *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Gateway == nil {
		return nil, fmt.Errorf("auth gateway is required")
	}

	health := make(map[string]HealthChecker, len(deps.Health))
	for name, c := range deps.Health {
		if c != nil {
			health[name] = c
		}
	}

	return &Server{
		cfg:     deps.Config,
		cookies: newCookieJar(deps.Session),
		logger:  deps.Logger.With("component", "api"),
		gateway: deps.Gateway,
		metrics: deps.Metrics,
		health:  health,
		version: deps.Version,
	}, nil
}

// Handler returns the fully wired HTTP handler, including tracing.
func (s *Server) Handler() http.Handler {
	return telemetry.TraceHandler(s.buildRouter(), "givehub-api")
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.Handler(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting up to 10 seconds
// for in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
