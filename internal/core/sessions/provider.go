package sessions

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnauthorized is returned when a provider rejects the configured token.
var ErrUnauthorized = errors.New("provider rejected token")

// Provider reports the number of active playback sessions of one media
// server.
type Provider interface {
	// Name identifies the provider in logs and readings.
	Name() string

	// Enabled reports whether the provider should be queried at all.
	Enabled() bool

	// ActiveSessions returns the current number of playing streams.
	ActiveSessions(ctx context.Context) (int, error)
}

const defaultTimeout = 10 * time.Second

// getJSON performs an authenticated GET and hands the response to decode.
func getJSON(ctx context.Context, client *http.Client, baseURL, path string, query url.Values, headers map[string]string, decode func(*http.Response) error) error {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	reqURL := base.JoinPath(path)
	if len(query) > 0 {
		reqURL.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, reqURL.Redacted())
	}

	return decode(resp)
}
