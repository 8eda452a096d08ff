// Package metrics records warden activity following Prometheus conventions.
// A nil Recorder, or one without a telemetry system, records nothing.
package metrics

import (
	"github.com/fulmenhq/gofulmen/telemetry"
)

// Metric names
const (
	PollsTotal          = "warden_polls_total"
	ActiveSessions      = "warden_active_sessions"
	ProviderErrorsTotal = "warden_provider_errors_total"
	Throttled           = "warden_throttled"
	TransitionsTotal    = "warden_transitions_total"
	LimitErrorsTotal    = "warden_limit_errors_total"
)

// Recorder emits warden metrics to a telemetry system.
type Recorder struct {
	system *telemetry.System
}

// NewRecorder returns a recorder for sys; sys may be nil.
func NewRecorder(sys *telemetry.System) *Recorder {
	return &Recorder{system: sys}
}

func (r *Recorder) enabled() bool {
	return r != nil && r.system != nil
}

// RecordPoll records one polling cycle and the summed session count
func (r *Recorder) RecordPoll(total int) {
	if !r.enabled() {
		return
	}
	_ = r.system.Counter(PollsTotal, 1, nil)
	_ = r.system.Gauge(ActiveSessions, float64(total), nil)
}

// RecordProviderError records a failed session query
func (r *Recorder) RecordProviderError(provider string) {
	if !r.enabled() {
		return
	}
	_ = r.system.Counter(ProviderErrorsTotal, 1, map[string]string{
		"provider": provider,
	})
}

// RecordTransition records an applied state change
func (r *Recorder) RecordTransition(state string) {
	if !r.enabled() {
		return
	}
	_ = r.system.Counter(TransitionsTotal, 1, map[string]string{
		"state": state,
	})
	throttled := 0.0
	if state == "throttled" {
		throttled = 1
	}
	_ = r.system.Gauge(Throttled, throttled, nil)
}

// RecordLimitError records a failed rate-limit call at the torrent client
func (r *Recorder) RecordLimitError(call string) {
	if !r.enabled() {
		return
	}
	_ = r.system.Counter(LimitErrorsTotal, 1, map[string]string{
		"call": call,
	})
}
