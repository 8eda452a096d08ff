package sessions

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlexProviderCountsMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/status/sessions", r.URL.Path)
		assert.Equal(t, "plex-token", r.Header.Get("X-Plex-Token"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"MediaContainer":{"size":2,"Metadata":[{"title":"A"},{"title":"B"}]}}`))
	}))
	defer server.Close()

	provider := &PlexProvider{URL: server.URL, Token: "plex-token", IsEnabled: true, Client: server.Client()}

	count, err := provider.ActiveSessions(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestPlexProviderEmptyContainer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"MediaContainer":{"size":0}}`))
	}))
	defer server.Close()

	provider := &PlexProvider{URL: server.URL + "/", Token: "t", IsEnabled: true, Client: server.Client()}

	count, err := provider.ActiveSessions(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestPlexProviderUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	provider := &PlexProvider{URL: server.URL, Token: "wrong", IsEnabled: true, Client: server.Client()}

	_, err := provider.ActiveSessions(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnauthorized))
}

func TestPlexProviderServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	provider := &PlexProvider{URL: server.URL, Token: "t", IsEnabled: true, Client: server.Client()}

	_, err := provider.ActiveSessions(context.Background())
	require.ErrorContains(t, err, "unexpected status 500")
}

func TestPlexProviderMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<MediaContainer size="1"/>`))
	}))
	defer server.Close()

	provider := &PlexProvider{URL: server.URL, Token: "t", IsEnabled: true, Client: server.Client()}

	_, err := provider.ActiveSessions(context.Background())
	require.ErrorContains(t, err, "decode plex sessions")
}
