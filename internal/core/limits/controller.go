// Package limits drives the global transfer limits of the torrent client.
package limits

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/streamwarden/streamwarden/internal/metrics"
)

// BytesPerKiB converts configured KiB/s into the byte/s unit of the Web API.
const BytesPerKiB = 1024

// ErrNotConnected is returned by operations attempted before a successful
// Connect.
var ErrNotConnected = errors.New("torrent client not connected")

// Session is the subset of the torrent client API the controller uses.
type Session interface {
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	SpeedLimitsMode(ctx context.Context) (bool, error)
	ToggleSpeedLimitsMode(ctx context.Context) error
	SetUploadLimit(ctx context.Context, bytesPerSecond int64) error
	SetDownloadLimit(ctx context.Context, bytesPerSecond int64) error
}

// Controller applies rate-limit profiles. Every operation is idempotent and
// isolated: a failing call is logged and returned, never panics, and does
// not prevent the next call from being attempted.
//
// Applied limits are not read back; the controller trusts the answer of each
// set call.
type Controller struct {
	session Session

	// handle is the authenticated session; nil until Connect succeeds
	handle Session

	logger  *zap.Logger
	metrics *metrics.Recorder
}

// NewController wraps session; call Connect before any other operation.
func NewController(session Session, logger *zap.Logger, recorder *metrics.Recorder) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{session: session, logger: logger, metrics: recorder}
}

// Connected reports whether Connect succeeded.
func (c *Controller) Connected() bool {
	return c.handle != nil
}

// Connect authenticates once. On failure the controller stays disconnected
// and every later operation is skipped with a warning.
func (c *Controller) Connect(ctx context.Context) error {
	if c.session == nil {
		err := errors.New("no torrent client configured")
		c.logger.Error("Error connecting to qBittorrent", zap.Error(err))
		return err
	}

	if err := c.session.Login(ctx); err != nil {
		c.logger.Error("qBittorrent login failed", zap.Error(err))
		return fmt.Errorf("connect: %w", err)
	}

	c.handle = c.session
	c.logger.Info("Connected to qBittorrent")
	return nil
}

// DisableAlternativeMode turns the alternative speed limits off so that only
// the global limits managed here are in effect. It only toggles when the mode
// is currently on.
func (c *Controller) DisableAlternativeMode(ctx context.Context) error {
	if c.handle == nil {
		c.logger.Warn("qBittorrent client not initialized, cannot set alternative mode")
		return ErrNotConnected
	}

	enabled, err := c.handle.SpeedLimitsMode(ctx)
	if err != nil {
		c.logger.Error("Error reading qBittorrent alternative mode", zap.Error(err))
		c.metrics.RecordLimitError("speed_limits_mode")
		return err
	}

	if enabled {
		if err := c.handle.ToggleSpeedLimitsMode(ctx); err != nil {
			c.logger.Error("Error setting qBittorrent alternative mode", zap.Error(err))
			c.metrics.RecordLimitError("toggle_speed_limits_mode")
			return err
		}
	}

	c.logger.Info("qBittorrent alternative mode disabled", zap.Bool("was_enabled", enabled))
	return nil
}

// ApplyRateLimits sets the global upload and download caps, given in KiB/s.
// Both calls are always attempted; the returned error joins the failures.
func (c *Controller) ApplyRateLimits(ctx context.Context, uploadKiBs, downloadKiBs int) error {
	if c.handle == nil {
		c.logger.Warn("qBittorrent client not initialized, cannot set rate limits")
		return ErrNotConnected
	}

	uploadBytes := int64(uploadKiBs) * BytesPerKiB
	downloadBytes := int64(downloadKiBs) * BytesPerKiB

	c.logger.Info("Setting qBittorrent global rate limits",
		zap.Int("upload_kib", uploadKiBs),
		zap.Int("download_kib", downloadKiBs))

	var errs []error
	if err := c.handle.SetUploadLimit(ctx, uploadBytes); err != nil {
		c.logger.Error("Error setting qBittorrent upload limit",
			zap.Int64("upload_bytes", uploadBytes),
			zap.Error(err))
		c.metrics.RecordLimitError("set_upload_limit")
		errs = append(errs, fmt.Errorf("upload limit: %w", err))
	}
	if err := c.handle.SetDownloadLimit(ctx, downloadBytes); err != nil {
		c.logger.Error("Error setting qBittorrent download limit",
			zap.Int64("download_bytes", downloadBytes),
			zap.Error(err))
		c.metrics.RecordLimitError("set_download_limit")
		errs = append(errs, fmt.Errorf("download limit: %w", err))
	}

	return errors.Join(errs...)
}

// Close logs out of the torrent client. It is a no-op when not connected.
func (c *Controller) Close(ctx context.Context) error {
	if c.handle == nil {
		return nil
	}
	err := c.handle.Logout(ctx)
	c.handle = nil
	if err != nil {
		c.logger.Warn("qBittorrent logout failed", zap.Error(err))
		return err
	}
	c.logger.Debug("Logged out of qBittorrent")
	return nil
}
