package sessions

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJellyfinProviderCountsPlayingSessions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Sessions", r.URL.Path)
		assert.Equal(t, "960", r.URL.Query().Get("activeWithinSeconds"))
		assert.Equal(t, "jf-token", r.Header.Get("X-Emby-Token"))
		_, _ = w.Write([]byte(`[
			{"Id":"1","NowPlayingItem":{"Name":"Film"}},
			{"Id":"2"},
			{"Id":"3","NowPlayingItem":null},
			{"Id":"4","NowPlayingItem":{"Name":"Episode"}}
		]`))
	}))
	defer server.Close()

	provider := &JellyfinProvider{URL: server.URL, Token: "jf-token", IsEnabled: true, Client: server.Client()}

	count, err := provider.ActiveSessions(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestJellyfinProviderUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	provider := &JellyfinProvider{URL: url, Token: "t", IsEnabled: true}

	_, err := provider.ActiveSessions(context.Background())
	require.Error(t, err)
}
