package integration

import (
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamwarden/streamwarden/internal/core"
	"github.com/streamwarden/streamwarden/internal/core/engine"
	"github.com/streamwarden/streamwarden/internal/metrics"
	"github.com/streamwarden/streamwarden/internal/observability"
	"github.com/streamwarden/streamwarden/internal/server"
)

type fixedStatus struct{}

func (fixedStatus) Snapshot() engine.Snapshot {
	return engine.Snapshot{State: core.StateDefault, Initialized: true, Threshold: 1}
}

// startTelemetryOrSkip starts the Prometheus exporter on a free port; if the
// environment forbids network binds we skip instead of failing the suite.
func startTelemetryOrSkip(t *testing.T) *observability.Telemetry {
	t.Helper()

	tel, err := observability.StartTelemetry("test", 0)
	if err != nil {
		if isPermissionError(err) {
			t.Skipf("skipping metrics tests due to sandbox permissions: %v", err)
		}
		require.NoError(t, err)
	}
	t.Cleanup(tel.Stop)
	return tel
}

func TestMetricsEndpoint_Integration(t *testing.T) {
	tel := startTelemetryOrSkip(t)

	srv := server.New(server.Options{
		Host:      "127.0.0.1",
		Status:    fixedStatus{},
		Telemetry: tel,
	})
	ts := newLoopbackServer(t, srv.Handler())
	client := ts.Client()

	recorder := metrics.NewRecorder(tel.System)
	recorder.RecordPoll(2)
	recorder.RecordTransition(core.StateThrottled.String())

	const numRequests = 40
	const numWorkers = 8

	requestChan := make(chan int, numRequests)
	for i := 0; i < numRequests; i++ {
		requestChan <- i
	}
	close(requestChan)

	start := time.Now()

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer wg.Done()
			for reqNum := range requestChan {
				path := "/status"
				switch reqNum % 3 {
				case 1:
					path = "/health"
				case 2:
					path = "/missing"
				}

				resp, err := client.Get(ts.URL + path)
				if err == nil {
					_ = resp.Body.Close()
				}
			}
		}()
	}
	wg.Wait()

	elapsed := time.Since(start)

	resp, err := client.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, readErr := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, readErr)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	content := string(body)
	assert.Contains(t, content, "test_http_requests_total", "Should have HTTP request metrics")
	assert.Contains(t, content, "test_http_request_duration_ms", "Should have duration metrics")
	assert.Contains(t, content, "test_"+metrics.PollsTotal, "Should have warden poll metrics")
	assert.Contains(t, content, "test_"+metrics.Throttled, "Should have throttle gauge")
	assert.True(t, elapsed < 5*time.Second, "Load test should complete in reasonable time")
}
