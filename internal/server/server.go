// Package server exposes the warden state over a small local HTTP API.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	apperrors "github.com/streamwarden/streamwarden/internal/errors"
	"github.com/streamwarden/streamwarden/internal/observability"
	"github.com/streamwarden/streamwarden/internal/server/handlers"
	servermw "github.com/streamwarden/streamwarden/internal/server/middleware"
)

const shutdownTimeout = 5 * time.Second

// Options configures the status server.
type Options struct {
	Host         string
	Port         int
	Status       handlers.StatusSource
	PollInterval time.Duration
	Version      handlers.VersionInfo
	// Telemetry is optional; without it /metrics answers 503.
	Telemetry *observability.Telemetry
	Logger    *zap.Logger
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	host   string
	port   int
	logger *zap.Logger

	metricsClient *http.Client
}

// New creates a new HTTP server instance
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics(telemetrySystem(opts.Telemetry), logger))
	r.Use(servermw.Recovery(logger))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	s := &Server{
		router:        r,
		host:          opts.Host,
		port:          opts.Port,
		logger:        logger,
		metricsClient: &http.Client{Timeout: 5 * time.Second},
	}
	s.server = &http.Server{
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.registerRoutes(opts)

	return s
}

func telemetrySystem(t *observability.Telemetry) *telemetry.System {
	if t == nil {
		return nil
	}
	return t.System
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return net.JoinHostPort(s.host, strconv.Itoa(s.port))
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Serve serves on listener until Shutdown. http.ErrServerClosed is reported
// as nil.
func (s *Server) Serve(listener net.Listener) error {
	s.logger.Info("Starting status server",
		zap.String("host", s.host),
		zap.Int("port", s.port),
		zap.String("addr", listener.Addr().String()))

	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run starts the server and shuts it down when ctx ends.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(listener) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down status server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the server port for testing
func (s *Server) Port() int {
	return s.port
}
