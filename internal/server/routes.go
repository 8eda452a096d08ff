package server

import (
	"context"
	"errors"

	"github.com/streamwarden/streamwarden/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes(opts Options) {
	health := handlers.NewHealthManager(opts.Version.Version)
	if opts.Status != nil {
		health.RegisterChecker("warden", wardenChecker(opts.Status))
		s.router.Get("/status", handlers.StatusHandler(opts.Status, opts.PollInterval.Seconds()))
	}

	s.router.Get("/health", health.HealthHandler)
	s.router.Get("/health/live", health.LivenessHandler)
	s.router.Get("/health/ready", health.ReadinessHandler)

	s.router.Get("/version", handlers.VersionHandler(opts.Version))

	metricsPort := 0
	if opts.Telemetry != nil {
		metricsPort = opts.Telemetry.Port()
	}
	s.router.Get("/metrics", s.metricsHandler(metricsPort))
}

// wardenChecker is healthy once the default profile has been applied at
// startup.
func wardenChecker(source handlers.StatusSource) handlers.HealthCheckerFunc {
	return func(ctx context.Context) error {
		if !source.Snapshot().Initialized {
			return errors.New("warden not initialized")
		}
		return nil
	}
}
