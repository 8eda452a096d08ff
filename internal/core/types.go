package core

import (
	"fmt"
	"time"
)

// State is the rate-limit profile the warden believes is applied at the
// torrent client.
type State int

const (
	StateDefault State = iota
	StateThrottled
)

// String returns the profile name of the state.
func (s State) String() string {
	switch s {
	case StateThrottled:
		return "throttled"
	default:
		return "default"
	}
}

// MarshalText renders the state as its profile name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a profile name.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseState returns the state named by a profile name.
func ParseState(name string) (State, error) {
	switch name {
	case "default":
		return StateDefault, nil
	case "throttled":
		return StateThrottled, nil
	default:
		return StateDefault, fmt.Errorf("unknown state %q", name)
	}
}

// Reading is the outcome of querying one session provider. A failed or
// disabled provider still yields a Reading; Sessions collapses it to a safe
// count.
type Reading struct {
	Provider string        `json:"provider"`
	Count    int           `json:"count"`
	Disabled bool          `json:"disabled,omitempty"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Sessions returns the count this reading contributes to the total.
func (r Reading) Sessions() int {
	if r.Disabled || r.Err != nil || r.Count < 0 {
		return 0
	}
	return r.Count
}

// OK reports whether the provider answered. Error covers readings decoded
// from a status response, where Err is not carried.
func (r Reading) OK() bool {
	return !r.Disabled && r.Err == nil && r.Error == ""
}

// Sample is one poll across all providers.
type Sample struct {
	Total    int       `json:"total"`
	Readings []Reading `json:"readings"`
	TakenAt  time.Time `json:"taken_at"`
}
