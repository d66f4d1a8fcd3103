package http

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rhuss/umleitung/pkg/transport"
)

// Server wraps an http.Server with the transport adapter and manages
// the full lifecycle including startup and graceful shutdown.
type Server struct {
	httpServer *http.Server
	adapter    *Adapter
	config     ServerConfig
	logger     *slog.Logger
}

// ServerConfig holds configuration for the transport server.
type ServerConfig struct {
	Addr               string
	MaxBodySize        int64
	ShutdownTimeout    time.Duration
	PassthroughURL     string
	PassthroughHeaders map[string]string
	Logger             *slog.Logger

	// ExtraRoutes are mounted on the outer mux before the adapter's
	// routes (metrics endpoint, debug handlers).
	ExtraRoutes map[string]http.Handler

	// HTTPMiddleware wraps the fully assembled handler (auth,
	// observability, CORS). Applied in order, first is outermost.
	HTTPMiddleware []func(http.Handler) http.Handler
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		MaxBodySize:     10 << 20, // 10 MB
		ShutdownTimeout: 30 * time.Second,
		Logger:          slog.Default(),
	}
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) ServerOption {
	return func(s *Server) { s.config.Addr = addr }
}

// WithMaxBodySize sets the maximum request body size.
func WithMaxBodySize(n int64) ServerOption {
	return func(s *Server) { s.config.MaxBodySize = n }
}

// WithShutdownTimeout sets the graceful shutdown deadline.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.config.ShutdownTimeout = d }
}

// WithPassthrough enables the reverse proxy for untranslated paths.
func WithPassthrough(baseURL string, headers map[string]string) ServerOption {
	return func(s *Server) {
		s.config.PassthroughURL = baseURL
		s.config.PassthroughHeaders = headers
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.config.Logger = l; s.logger = l }
}

// WithExtraRoute mounts an additional handler on the outer mux.
func WithExtraRoute(pattern string, h http.Handler) ServerOption {
	return func(s *Server) {
		if s.config.ExtraRoutes == nil {
			s.config.ExtraRoutes = make(map[string]http.Handler)
		}
		s.config.ExtraRoutes[pattern] = h
	}
}

// WithHTTPMiddleware appends HTTP-level middleware around the handler.
func WithHTTPMiddleware(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(s *Server) {
		s.config.HTTPMiddleware = append(s.config.HTTPMiddleware, mw...)
	}
}

// NewServer creates a new transport server with the given completer and
// options. The ModelLister is optional (pass nil to disable GET /v1/models).
// Default middleware (recovery, request ID, logging) is applied
// automatically.
func NewServer(completer transport.ChatCompleter, models transport.ModelLister, opts ...ServerOption) (*Server, error) {
	s := &Server{
		config: DefaultServerConfig(),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	adapterCfg := Config{
		Addr:               s.config.Addr,
		MaxBodySize:        s.config.MaxBodySize,
		ShutdownTimeout:    int(s.config.ShutdownTimeout.Seconds()),
		PassthroughURL:     s.config.PassthroughURL,
		PassthroughHeaders: s.config.PassthroughHeaders,
	}

	defaultMW := []transport.Middleware{
		transport.Recovery(s.logger),
		transport.RequestID(),
		transport.Logging(s.logger),
	}

	adapter, err := NewAdapter(completer, models, adapterCfg, defaultMW...)
	if err != nil {
		return nil, fmt.Errorf("building adapter: %w", err)
	}
	s.adapter = adapter

	var handler http.Handler = adapter.Handler()
	if len(s.config.ExtraRoutes) > 0 {
		outer := http.NewServeMux()
		for pattern, h := range s.config.ExtraRoutes {
			outer.Handle(pattern, h)
		}
		outer.Handle("/", handler)
		handler = outer
	}
	for i := len(s.config.HTTPMiddleware) - 1; i >= 0; i-- {
		handler = s.config.HTTPMiddleware[i](handler)
	}

	s.httpServer = &http.Server{
		Addr:    s.config.Addr,
		Handler: handler,
	}

	return s, nil
}

// ListenAndServe starts the server and blocks until a shutdown signal
// (SIGINT or SIGTERM) is received. It then gracefully shuts down,
// waiting for in-flight requests to complete within the configured timeout.
func (s *Server) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return s.listenAndServeWithContext(ctx)
}

func (s *Server) listenAndServeWithContext(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("server starting", slog.String("addr", s.config.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	return s.shutdown()
}

// ServeOn starts the server on the given listener. Used for testing.
func (s *Server) ServeOn(ln net.Listener) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	return s.shutdown()
}

func (s *Server) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down gracefully", slog.Duration("timeout", s.config.ShutdownTimeout))

	// Release streaming connections first; Shutdown waits for them
	// otherwise until the deadline expires.
	s.adapter.InFlight().CancelAll()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("shutdown error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// Shutdown gracefully shuts down the server with the given context.
func (s *Server) Shutdown(ctx context.Context) error {
	s.adapter.InFlight().CancelAll()
	return s.httpServer.Shutdown(ctx)
}
