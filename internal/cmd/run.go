package cmd

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/streamwarden/streamwarden/internal/config"
	"github.com/streamwarden/streamwarden/internal/core/engine"
	"github.com/streamwarden/streamwarden/internal/core/limits"
	"github.com/streamwarden/streamwarden/internal/core/limits/qbittorrent"
	"github.com/streamwarden/streamwarden/internal/core/sessions"
	apperrors "github.com/streamwarden/streamwarden/internal/errors"
	"github.com/streamwarden/streamwarden/internal/metrics"
	"github.com/streamwarden/streamwarden/internal/observability"
	"github.com/streamwarden/streamwarden/internal/server"
	"github.com/streamwarden/streamwarden/internal/server/handlers"
)

const (
	telemetryNamespace = "streamwarden"

	// shutdownGrace bounds how long the shutdown handler waits for the loop
	// to log out of qBittorrent.
	shutdownGrace = 10 * time.Second
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bandwidth governor",
	Long: `Run the polling loop until interrupted.

At startup the alternative speed limits are switched off and the default
profile is applied. Every poll_interval seconds the active sessions are summed
and the throttled profile is applied while the total is at or above
stream_threshold.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: stop polling, log out of qBittorrent and exit 0
  • Ctrl+C twice within 2 seconds: force quit

A configuration error or a failed qBittorrent login exits with code 1.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			ExitWithCodeStderr(foundry.ExitFailure, "Failed to load configuration", err)
		}

		logger, err := newLogger(cfg, cmd.ErrOrStderr(), true)
		if err != nil {
			ExitWithCodeStderr(foundry.ExitFailure, "Failed to initialize logger", err)
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		done := make(chan struct{})

		// Shutdown handlers run LIFO: stop the loop first, then flush the logger
		signals.OnShutdown(func(context.Context) error {
			if err := logger.Sync(); err != nil {
				logger.Debug("Logger sync returned error", zap.Error(err))
			}
			return nil
		})
		signals.OnShutdown(func(shutdownCtx context.Context) error {
			logger.Info("Shutdown signal received, stopping stream warden")
			cancel()
			select {
			case <-done:
			case <-shutdownCtx.Done():
			case <-time.After(shutdownGrace):
				logger.Warn("Stream warden did not stop in time")
			}
			return nil
		})

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		go func() {
			if err := signals.Listen(ctx); err != nil && ctx.Err() == nil {
				logger.Error("Signal handler error", zap.Error(err))
				cancel()
			}
		}()

		err = runWarden(ctx, cfg, logger)
		close(done)
		if err != nil {
			ExitWithCode(logger, foundry.ExitFailure, "Stream warden failed", err)
		}

		logger.Info("Stream warden stopped")
		if err := logger.Sync(); err != nil {
			// Sync errors are often benign (stdout/stderr already closed)
			logger.Debug("Logger sync returned error", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// runWarden wires the components described by cfg and blocks until ctx ends
// or the torrent client cannot be reached at startup.
func runWarden(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Stream warden starting",
		zap.String("version", versionInfo.Version),
		zap.Int("threshold", cfg.Warden.StreamThreshold),
		zap.Duration("poll_interval", cfg.Warden.PollEvery()),
		zap.Bool("plex", cfg.Plex.Enabled),
		zap.Bool("jellyfin", cfg.Jellyfin.Enabled))

	var tel *observability.Telemetry
	if cfg.Metrics.Enabled {
		started, err := observability.StartTelemetry(telemetryNamespace, cfg.Metrics.Port)
		if err != nil {
			logger.Warn("Failed to start Prometheus exporter", zap.Error(err))
		} else {
			tel = started
			defer tel.Stop()
			logger.Info("Prometheus exporter started", zap.Int("metrics_port", tel.Port()))
		}
	}

	var recorder *metrics.Recorder
	if tel != nil {
		recorder = metrics.NewRecorder(tel.System)
	}

	httpClient := &http.Client{Timeout: cfg.HTTP.Timeout}

	client, err := qbittorrent.New(qbittorrent.Config{
		URL:        cfg.QBittorrent.URL,
		Username:   cfg.QBittorrent.Username,
		Password:   cfg.QBittorrent.Password,
		HTTPClient: httpClient,
	})
	if err != nil {
		return apperrors.WrapConfigInvalid(ctx, err, "invalid qBittorrent client settings")
	}

	controller := limits.NewController(client, logger.Named("limits"), recorder)
	source := sessions.NewSource(cfg, httpClient, logger.Named("sessions"), recorder)
	warden := engine.New(engine.SettingsFromConfig(cfg), source, controller, logger.Named("warden"), recorder)

	serverCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()

	var wg sync.WaitGroup
	if cfg.Status.Enabled {
		srv := server.New(server.Options{
			Host:         cfg.Status.Host,
			Port:         cfg.Status.Port,
			Status:       warden,
			PollInterval: cfg.Warden.PollEvery(),
			Version: handlers.VersionInfo{
				Version:   versionInfo.Version,
				Commit:    versionInfo.Commit,
				BuildDate: versionInfo.BuildDate,
			},
			Telemetry: tel,
			Logger:    logger.Named("server"),
		})

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(serverCtx); err != nil {
				logger.Error("Status server stopped with error", zap.Error(err))
			}
		}()
	}

	runErr := warden.Run(ctx)

	stopServer()
	wg.Wait()

	if runErr != nil {
		return apperrors.WrapExternalService(ctx, runErr, "could not connect to qBittorrent")
	}
	return nil
}
