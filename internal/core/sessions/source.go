// Package sessions samples the number of active playback sessions across
// the configured media servers.
package sessions

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/streamwarden/streamwarden/internal/config"
	"github.com/streamwarden/streamwarden/internal/core"
	"github.com/streamwarden/streamwarden/internal/metrics"
)

// Source sums the active sessions of every provider. It never fails: an
// unreachable provider counts as zero sessions so that a monitoring outage
// leaves bandwidth unthrottled rather than throttled.
type Source struct {
	Providers []Provider
	Logger    *zap.Logger
	Metrics   *metrics.Recorder
	Clock     func() time.Time
}

// NewSource builds the providers described by cfg.
func NewSource(cfg *config.Config, client *http.Client, logger *zap.Logger, recorder *metrics.Recorder) *Source {
	return &Source{
		Providers: []Provider{
			&PlexProvider{
				URL:       cfg.Plex.URL,
				Token:     cfg.Plex.Token,
				IsEnabled: cfg.Plex.Enabled,
				Client:    client,
			},
			&JellyfinProvider{
				URL:       cfg.Jellyfin.URL,
				Token:     cfg.Jellyfin.Token,
				IsEnabled: cfg.Jellyfin.Enabled,
				Client:    client,
			},
		},
		Logger:  logger,
		Metrics: recorder,
	}
}

// Sample queries each provider in turn and returns the summed count along
// with the per-provider readings.
func (s *Source) Sample(ctx context.Context) core.Sample {
	if s == nil {
		return core.Sample{TakenAt: time.Now()}
	}
	sample := core.Sample{TakenAt: s.now()}

	for _, p := range s.Providers {
		if p == nil {
			continue
		}
		reading := s.read(ctx, p)
		sample.Readings = append(sample.Readings, reading)
		sample.Total += reading.Sessions()
	}

	return sample
}

func (s *Source) read(ctx context.Context, p Provider) core.Reading {
	reading := core.Reading{Provider: p.Name()}
	logger := s.logger().With(zap.String("provider", p.Name()))

	if !p.Enabled() {
		reading.Disabled = true
		logger.Debug("Provider monitoring is disabled in config")
		return reading
	}

	started := s.now()
	count, err := p.ActiveSessions(ctx)
	reading.Duration = s.now().Sub(started)
	if err != nil {
		reading.Err = err
		reading.Error = err.Error()
		logger.Error("Error querying provider sessions", zap.Error(err))
		s.Metrics.RecordProviderError(p.Name())
		return reading
	}

	reading.Count = count
	logger.Debug("Provider streams", zap.Int("count", count))
	return reading
}

func (s *Source) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *Source) now() time.Time {
	if s != nil && s.Clock != nil {
		return s.Clock()
	}
	return time.Now().UTC()
}
