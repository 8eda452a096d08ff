package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/streamwarden/streamwarden/internal/config"
	"github.com/streamwarden/streamwarden/internal/core"
	"github.com/streamwarden/streamwarden/internal/core/engine"
	"github.com/streamwarden/streamwarden/internal/core/limits"
	"github.com/streamwarden/streamwarden/internal/core/limits/qbittorrent"
	"github.com/streamwarden/streamwarden/internal/core/sessions"
)

// fakePlex reports a configurable number of playing sessions.
type fakePlex struct {
	sessions atomic.Int64
}

func (p *fakePlex) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/status/sessions" || r.Header.Get("X-Plex-Token") != "plex-token" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	n := int(p.sessions.Load())
	metadata := make([]map[string]string, n)
	for i := range metadata {
		metadata[i] = map[string]string{"type": "episode"}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"MediaContainer": map[string]interface{}{
			"size":     n,
			"Metadata": metadata,
		},
	})
}

// fakeQBittorrent records every limit it receives.
type fakeQBittorrent struct {
	mu        sync.Mutex
	altMode   bool
	uploads   []string
	downloads []string
	loggedOut bool
}

func (q *fakeQBittorrent) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("username") != "admin" || r.FormValue("password") != "secret" {
			_, _ = w.Write([]byte("Fails."))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "SID", Value: "abc", Path: "/"})
		_, _ = w.Write([]byte("Ok."))
	})
	mux.HandleFunc("/api/v2/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.loggedOut = true
	})
	mux.HandleFunc("/api/v2/transfer/speedLimitsMode", func(w http.ResponseWriter, r *http.Request) {
		q.mu.Lock()
		defer q.mu.Unlock()
		if q.altMode {
			_, _ = w.Write([]byte("1"))
			return
		}
		_, _ = w.Write([]byte("0"))
	})
	mux.HandleFunc("/api/v2/transfer/toggleSpeedLimitsMode", func(w http.ResponseWriter, r *http.Request) {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.altMode = !q.altMode
	})
	mux.HandleFunc("/api/v2/transfer/setUploadLimit", func(w http.ResponseWriter, r *http.Request) {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.uploads = append(q.uploads, r.FormValue("limit"))
	})
	mux.HandleFunc("/api/v2/transfer/setDownloadLimit", func(w http.ResponseWriter, r *http.Request) {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.downloads = append(q.downloads, r.FormValue("limit"))
	})
	return mux
}

func (q *fakeQBittorrent) snapshot() (uploads, downloads []string, altMode, loggedOut bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.uploads...), append([]string(nil), q.downloads...), q.altMode, q.loggedOut
}

func TestWardenThrottlesWhileStreaming(t *testing.T) {
	plex := &fakePlex{}
	plexServer := newLoopbackServer(t, plex)

	qbt := &fakeQBittorrent{altMode: true}
	qbtServer := newLoopbackServer(t, qbt.handler())

	cfg := config.Defaults()
	cfg.Plex.URL = plexServer.URL
	cfg.Plex.Token = "plex-token"
	cfg.QBittorrent.URL = qbtServer.URL
	cfg.QBittorrent.Password = "secret"
	cfg.Warden.StreamThreshold = 1
	require.NoError(t, cfg.Validate())

	logger := zaptest.NewLogger(t)
	httpClient := &http.Client{Timeout: 2 * time.Second}

	client, err := qbittorrent.New(qbittorrent.Config{
		URL:        cfg.QBittorrent.URL,
		Username:   cfg.QBittorrent.Username,
		Password:   cfg.QBittorrent.Password,
		HTTPClient: httpClient,
	})
	require.NoError(t, err)

	settings := engine.SettingsFromConfig(&cfg)
	settings.PollInterval = 10 * time.Millisecond

	warden := engine.New(settings,
		sessions.NewSource(&cfg, httpClient, logger, nil),
		limits.NewController(client, logger, nil),
		logger, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- warden.Run(ctx) }()

	waitForState := func(state core.State, cycles int64) {
		t.Helper()
		require.Eventually(t, func() bool {
			snap := warden.Snapshot()
			return snap.State == state && snap.Cycles >= cycles
		}, 2*time.Second, 5*time.Millisecond)
	}

	waitForState(core.StateDefault, 1)

	plex.sessions.Store(2)
	waitForState(core.StateThrottled, 2)

	plex.sessions.Store(0)
	waitForState(core.StateDefault, 3)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("warden did not stop after cancellation")
	}

	uploads, downloads, altMode, loggedOut := qbt.snapshot()
	require.False(t, altMode, "alternative speed limits should be switched off at startup")
	require.Equal(t, []string{"0", "512000", "0"}, uploads)
	require.Equal(t, []string{"0", "2048000", "0"}, downloads)
	require.True(t, loggedOut)
	require.Equal(t, int64(2), warden.Snapshot().Transitions)
}

func TestWardenExitsWhenLoginFails(t *testing.T) {
	qbt := &fakeQBittorrent{}
	qbtServer := newLoopbackServer(t, qbt.handler())

	client, err := qbittorrent.New(qbittorrent.Config{
		URL:      qbtServer.URL,
		Username: "admin",
		Password: "wrong",
	})
	require.NoError(t, err)

	sampler := &countingSampler{}
	warden := engine.New(engine.Settings{Threshold: 1, PollInterval: time.Millisecond},
		sampler, limits.NewController(client, nil, nil), nil, nil)

	require.ErrorIs(t, warden.Run(context.Background()), qbittorrent.ErrLoginFailed)
	require.Zero(t, sampler.calls.Load())

	uploads, _, _, _ := qbt.snapshot()
	require.Empty(t, uploads)
}

type countingSampler struct {
	calls atomic.Int64
}

func (s *countingSampler) Sample(ctx context.Context) core.Sample {
	s.calls.Add(1)
	return core.Sample{}
}
