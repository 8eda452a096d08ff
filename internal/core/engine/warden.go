package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/streamwarden/streamwarden/internal/config"
	"github.com/streamwarden/streamwarden/internal/core"
	"github.com/streamwarden/streamwarden/internal/metrics"
)

// closeTimeout bounds the logout performed after the loop is cancelled.
const closeTimeout = 5 * time.Second

// Sampler reports the summed active sessions for one poll.
type Sampler interface {
	Sample(ctx context.Context) core.Sample
}

// Limiter applies rate limits at the torrent client.
type Limiter interface {
	Connect(ctx context.Context) error
	DisableAlternativeMode(ctx context.Context) error
	ApplyRateLimits(ctx context.Context, uploadKiBs, downloadKiBs int) error
	Close(ctx context.Context) error
}

// Settings are the loop parameters taken from the configuration.
type Settings struct {
	Threshold    int
	PollInterval time.Duration
	Default      config.Profile
	Throttled    config.Profile
}

// SettingsFromConfig extracts the loop parameters from cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Threshold:    cfg.Warden.StreamThreshold,
		PollInterval: cfg.Warden.PollEvery(),
		Default:      cfg.QBittorrent.RateLimits.Default,
		Throttled:    cfg.QBittorrent.RateLimits.Throttled,
	}
}

// Profile returns the rate-limit profile for state.
func (s Settings) Profile(state core.State) config.Profile {
	if state == core.StateThrottled {
		return s.Throttled
	}
	return s.Default
}

// Decide returns the state the torrent client should be in for total active
// sessions. The comparison is inclusive: total == threshold throttles.
func Decide(total, threshold int) core.State {
	if total >= threshold {
		return core.StateThrottled
	}
	return core.StateDefault
}

// Snapshot is a copy of the loop state for reporting.
type Snapshot struct {
	State        core.State     `json:"state"`
	Initialized  bool           `json:"initialized"`
	PendingApply bool           `json:"pending_apply,omitempty"`
	LastTotal    int            `json:"last_total"`
	Threshold    int            `json:"threshold"`
	Cycles       int64          `json:"cycles"`
	Transitions  int64          `json:"transitions"`
	LastPollAt   *time.Time     `json:"last_poll_at,omitempty"`
	LastReadings []core.Reading `json:"last_readings,omitempty"`
}

// Warden is the control loop. It keeps the torrent client in the default
// profile while fewer than Threshold sessions are active and in the
// throttled profile otherwise, calling the client only on transitions or
// after a failed apply.
//
// Run and Step must be called from a single goroutine. Snapshot is safe to
// call concurrently.
type Warden struct {
	settings Settings
	sampler  Sampler
	limiter  Limiter
	logger   *zap.Logger
	metrics  *metrics.Recorder

	mu            sync.RWMutex
	state         core.State
	initialized   bool
	pendingApply  bool
	previousTotal int
	cycles        int64
	transitions   int64
	lastPollAt    time.Time
	lastReadings  []core.Reading
}

// New creates a warden. The state starts as Default but is only trusted
// after Initialize has applied the default profile.
func New(settings Settings, sampler Sampler, limiter Limiter, logger *zap.Logger, recorder *metrics.Recorder) *Warden {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Warden{
		settings:      settings,
		sampler:       sampler,
		limiter:       limiter,
		logger:        logger,
		metrics:       recorder,
		state:         core.StateDefault,
		previousTotal: -1,
	}
}

// Run connects to the torrent client, applies the default profile and polls
// until ctx is cancelled. A failed connection is returned before any poll.
// Cancellation is a clean exit and returns nil.
func (w *Warden) Run(ctx context.Context) error {
	if w.limiter == nil || w.sampler == nil {
		return errors.New("warden requires a sampler and a limiter")
	}

	if err := w.limiter.Connect(ctx); err != nil {
		return err
	}
	defer w.closeLimiter()

	w.Initialize(ctx)

	for {
		if ctx.Err() != nil {
			w.logger.Info("Stream warden stopping")
			return nil
		}

		w.Step(ctx)

		if !sleepContext(ctx, w.settings.PollInterval) {
			w.logger.Info("Stream warden stopping")
			return nil
		}
	}
}

// sleepContext waits for d and reports false if ctx ended first.
func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Initialize forces a known starting point regardless of what the torrent
// client had configured: alternative mode off, default profile applied,
// state Default.
func (w *Warden) Initialize(ctx context.Context) {
	_ = w.limiter.DisableAlternativeMode(ctx)

	profile := w.settings.Default
	err := w.limiter.ApplyRateLimits(ctx, profile.Upload, profile.Download)
	if err != nil {
		w.logger.Error("Failed to apply default rate limits at startup", zap.Error(err))
	}

	w.mu.Lock()
	w.state = core.StateDefault
	w.initialized = true
	w.pendingApply = err != nil
	w.mu.Unlock()

	w.metrics.RecordTransition(core.StateDefault.String())
	w.logger.Info("Rate limit state initialized",
		zap.Stringer("state", core.StateDefault),
		zap.Int("threshold", w.settings.Threshold),
		zap.Duration("poll_interval", w.settings.PollInterval))
}

// Step runs one polling cycle and returns the state after it.
func (w *Warden) Step(ctx context.Context) core.State {
	sample := w.sampler.Sample(ctx)
	total := sample.Total

	w.mu.Lock()
	previous := w.previousTotal
	current := w.state
	pending := w.pendingApply
	w.previousTotal = total
	w.cycles++
	cycle := w.cycles
	w.lastPollAt = sample.TakenAt
	w.lastReadings = sample.Readings
	w.mu.Unlock()

	w.metrics.RecordPoll(total)

	logger := w.logger.With(zap.Int64("cycle", cycle))
	if total != previous {
		logger.Info("Total stream count", zap.Int("total", total), zap.Int("previous", previous))
	} else {
		logger.Debug("Stream count unchanged", zap.Int("total", total))
	}

	desired := Decide(total, w.settings.Threshold)
	if desired == current && !pending {
		logger.Debug("Rate limit state unchanged, skipping rate limit update", zap.Stringer("state", current))
		return current
	}

	if ctx.Err() != nil {
		logger.Debug("Context cancelled, skipping rate limit update", zap.Stringer("desired", desired))
		return current
	}

	// A failed apply may have set only one of the two limits, so the client
	// is not trusted to match current until an apply succeeds.
	profile := w.settings.Profile(desired)
	if err := w.limiter.ApplyRateLimits(ctx, profile.Upload, profile.Download); err != nil {
		w.mu.Lock()
		w.pendingApply = true
		w.mu.Unlock()

		logger.Error("Rate limit change failed, keeping previous state",
			zap.Stringer("state", current),
			zap.Stringer("desired", desired),
			zap.Error(err))
		return current
	}

	w.mu.Lock()
	w.state = desired
	w.pendingApply = false
	if desired != current {
		w.transitions++
	}
	w.mu.Unlock()

	if desired == current {
		logger.Info("Rate limits reapplied", zap.Stringer("state", desired), zap.Int("total", total))
		return desired
	}

	w.metrics.RecordTransition(desired.String())
	logger.Info("Rate limit state changed",
		zap.Stringer("state", desired),
		zap.Stringer("from", current),
		zap.Int("total", total))
	return desired
}

// State returns the current throttle state.
func (w *Warden) State() core.State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// Snapshot returns a copy of the loop state.
func (w *Warden) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	snap := Snapshot{
		State:        w.state,
		Initialized:  w.initialized,
		PendingApply: w.pendingApply,
		LastTotal:    w.previousTotal,
		Threshold:    w.settings.Threshold,
		Cycles:       w.cycles,
		Transitions:  w.transitions,
	}
	if !w.lastPollAt.IsZero() {
		at := w.lastPollAt
		snap.LastPollAt = &at
	}
	if len(w.lastReadings) > 0 {
		snap.LastReadings = append([]core.Reading(nil), w.lastReadings...)
	}
	return snap
}

func (w *Warden) closeLimiter() {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	_ = w.limiter.Close(ctx)
}
