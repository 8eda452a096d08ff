package handlers

import (
	"net/http"

	"github.com/streamwarden/streamwarden/internal/core/engine"
)

// StatusSource exposes the current loop state.
type StatusSource interface {
	Snapshot() engine.Snapshot
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	engine.Snapshot
	PollIntervalSeconds float64 `json:"poll_interval_seconds"`
}

// StatusHandler reports the warden snapshot as JSON.
func StatusHandler(source StatusSource, pollIntervalSeconds float64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, StatusResponse{
			Snapshot:            source.Snapshot(),
			PollIntervalSeconds: pollIntervalSeconds,
		})
	}
}
