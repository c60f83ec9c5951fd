package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/devops-bizzibees/activepieces/errors"
	"github.com/devops-bizzibees/activepieces/health"
	"github.com/devops-bizzibees/activepieces/metric"
)

// APIPrefix is the path prefix of the validation routes
const APIPrefix = "/api/v1/"

// ServerConfig configures the API server
type ServerConfig struct {
	Port        int
	ReadTimeout time.Duration
	// MetricsPath mounts /metrics on the API port when set. Leave it empty
	// when metrics are served on their own port.
	MetricsPath string
}

// Server serves the validation API, the health endpoint and optionally the
// Prometheus metrics on one port.
type Server struct {
	cfg    ServerConfig
	mux    *http.ServeMux
	logger *slog.Logger
	mu     sync.Mutex
	server *http.Server
}

// NewServer builds the mux for handler, monitor and registry. monitor and
// registry may be nil.
func NewServer(cfg ServerConfig, handler *FlowVersionHandler, monitor *health.Monitor,
	registry *metric.MetricsRegistry, logger *slog.Logger) (*Server, error) {
	if handler == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("handler is nil"), "Server", "NewServer", "check handler")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, errors.WrapInvalid(fmt.Errorf("port %d out of range", cfg.Port), "Server", "NewServer", "check port")
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	handler.RegisterHTTPHandlers(APIPrefix, mux)
	if monitor != nil {
		mux.Handle("GET /healthz", monitor.Handler())
	}
	if registry != nil && cfg.MetricsPath != "" {
		mux.Handle("GET "+cfg.MetricsPath, metric.Handler(registry))
	}

	return &Server{cfg: cfg, mux: mux, logger: logger}, nil
}

// Handler returns the server's mux
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until Stop is called. It blocks.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.server != nil {
		s.mu.Unlock()
		return errors.WrapInvalid(fmt.Errorf("server already running"), "Server", "Start", "check state")
	}
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(s.cfg.Port),
		Handler:           s.mux,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.server = server
	s.mu.Unlock()

	s.logger.Info("API server listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.WrapFatal(err, "Server", "Start", "listen")
	}
	return nil
}

// Stop shuts the server down gracefully within ctx
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.mu.Unlock()

	if server == nil {
		return nil
	}

	start := time.Now()
	if err := server.Shutdown(ctx); err != nil {
		s.logger.Error("API server shutdown failed",
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		return errors.WrapTransient(err, "Server", "Stop", "shutdown")
	}
	s.logger.Debug("API server stopped", "duration_ms", time.Since(start).Milliseconds())
	return nil
}
