package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const jellyfinName = "jellyfin"

// activeWithinSeconds limits the session list to clients seen recently; it
// matches the window the Jellyfin dashboard uses.
const activeWithinSeconds = "960"

// JellyfinProvider counts playing sessions on a Jellyfin (or Emby) server.
type JellyfinProvider struct {
	URL       string
	Token     string
	IsEnabled bool
	Client    *http.Client
}

// Name returns the provider name.
func (p *JellyfinProvider) Name() string {
	return jellyfinName
}

// Enabled reports whether Jellyfin monitoring is configured on.
func (p *JellyfinProvider) Enabled() bool {
	return p != nil && p.IsEnabled
}

// ActiveSessions counts sessions that are currently playing an item.
// Idle clients are listed by /Sessions too and are not counted.
func (p *JellyfinProvider) ActiveSessions(ctx context.Context) (int, error) {
	if p == nil || strings.TrimSpace(p.URL) == "" {
		return 0, fmt.Errorf("jellyfin provider is not configured")
	}

	var payload []struct {
		NowPlayingItem *json.RawMessage `json:"NowPlayingItem"`
	}

	query := url.Values{"activeWithinSeconds": []string{activeWithinSeconds}}
	headers := map[string]string{"X-Emby-Token": p.Token}
	err := getJSON(ctx, p.Client, p.URL, "/Sessions", query, headers, func(resp *http.Response) error {
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return fmt.Errorf("decode jellyfin sessions: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	count := 0
	for _, session := range payload {
		if session.NowPlayingItem != nil {
			count++
		}
	}
	return count, nil
}
