package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const plexName = "plex"

// PlexProvider counts sessions reported by a Plex Media Server.
type PlexProvider struct {
	URL       string
	Token     string
	IsEnabled bool
	Client    *http.Client
}

// Name returns the provider name.
func (p *PlexProvider) Name() string {
	return plexName
}

// Enabled reports whether Plex monitoring is configured on.
func (p *PlexProvider) Enabled() bool {
	return p != nil && p.IsEnabled
}

// ActiveSessions queries /status/sessions and counts the returned items.
func (p *PlexProvider) ActiveSessions(ctx context.Context) (int, error) {
	if p == nil || strings.TrimSpace(p.URL) == "" {
		return 0, fmt.Errorf("plex provider is not configured")
	}

	var payload struct {
		MediaContainer struct {
			Size     int               `json:"size"`
			Metadata []json.RawMessage `json:"Metadata"`
		} `json:"MediaContainer"`
	}

	headers := map[string]string{"X-Plex-Token": p.Token}
	err := getJSON(ctx, p.Client, p.URL, "/status/sessions", nil, headers, func(resp *http.Response) error {
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return fmt.Errorf("decode plex sessions: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if payload.MediaContainer.Metadata != nil {
		return len(payload.MediaContainer.Metadata), nil
	}
	return payload.MediaContainer.Size, nil
}
