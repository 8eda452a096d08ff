package core

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStateJSON(t *testing.T) {
	data, err := json.Marshal(map[string]State{"state": StateThrottled})
	require.NoError(t, err)
	require.JSONEq(t, `{"state":"throttled"}`, string(data))

	var decoded map[string]State
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, StateThrottled, decoded["state"])

	var bad State
	require.Error(t, bad.UnmarshalText([]byte("paused")))
}

func TestReadingSessions(t *testing.T) {
	tests := []struct {
		name    string
		reading Reading
		want    int
		ok      bool
	}{
		{"answered", Reading{Provider: "plex", Count: 3}, 3, true},
		{"failed", Reading{Provider: "plex", Count: 3, Err: errors.New("timeout")}, 0, false},
		{"disabled", Reading{Provider: "jellyfin", Count: 2, Disabled: true}, 0, false},
		{"negative", Reading{Provider: "plex", Count: -1}, 0, true},
		{"decoded failure", Reading{Provider: "plex", Error: "timeout"}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.reading.Sessions())
			require.Equal(t, tt.ok, tt.reading.OK())
		})
	}
}
