package output

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/streamwarden/streamwarden/internal/config"
	"github.com/streamwarden/streamwarden/internal/core"
	"github.com/streamwarden/streamwarden/internal/core/engine"
)

func testSettings() engine.Settings {
	return engine.Settings{
		Threshold:    2,
		PollInterval: 30 * time.Second,
		Default:      config.Profile{Upload: 0, Download: 0},
		Throttled:    config.Profile{Upload: 500, Download: 2000},
	}
}

func testSample() core.Sample {
	return core.Sample{
		Total: 2,
		Readings: []core.Reading{
			{Provider: "plex", Count: 2, Duration: 12 * time.Millisecond},
			{Provider: "jellyfin", Disabled: true},
			{Provider: "emby", Err: errors.New("connection refused")},
		},
	}
}

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("md")
	require.NoError(t, err)
	require.Equal(t, FormatMarkdown, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func TestFormatters(t *testing.T) {
	for _, format := range []Format{FormatTable, FormatMarkdown} {
		t.Run(string(format), func(t *testing.T) {
			f := NewFormatter(format)

			rendered, err := f.FormatSample(testSample(), testSettings())
			require.NoError(t, err)
			require.Contains(t, rendered, "plex")
			require.Contains(t, rendered, "disabled")
			require.Contains(t, rendered, "connection refused")
			require.Contains(t, rendered, "Threshold 2: throttled profile (upload 500 KiB/s, download 2000 KiB/s)")

			rendered, err = f.FormatProfiles(testSettings())
			require.NoError(t, err)
			require.Contains(t, rendered, "sessions >= 2")
			require.Contains(t, rendered, "unlimited")
			require.Contains(t, rendered, "512000")
			require.Contains(t, rendered, "2048000")

			rendered, err = f.FormatStatus(Status{
				Snapshot:     engine.Snapshot{State: core.StateThrottled, Initialized: true, LastTotal: 3},
				PollInterval: 30 * time.Second,
			})
			require.NoError(t, err)
			require.Contains(t, rendered, "throttled")
			require.Contains(t, rendered, "30s")
			require.Contains(t, rendered, "never")
		})
	}
}

func TestJSONFormatterSample(t *testing.T) {
	rendered, err := NewFormatter(FormatJSON).FormatSample(testSample(), testSettings())
	require.NoError(t, err)

	var doc struct {
		Total    int    `json:"total"`
		Decision string `json:"decision"`
		Profile  struct {
			UploadBytes int64 `json:"upload_bytes"`
		} `json:"profile"`
		Readings []map[string]interface{} `json:"readings"`
	}
	require.NoError(t, json.Unmarshal([]byte(rendered), &doc))
	require.Equal(t, 2, doc.Total)
	require.Equal(t, "throttled", doc.Decision)
	require.Equal(t, int64(512000), doc.Profile.UploadBytes)
	require.Len(t, doc.Readings, 3)
}

func TestJSONFormatterProfiles(t *testing.T) {
	rendered, err := (&JSONFormatter{}).FormatProfiles(testSettings())
	require.NoError(t, err)
	require.Contains(t, rendered, `"poll_interval_seconds":30`)
	require.Contains(t, rendered, `"name":"default"`)
	require.Contains(t, rendered, `"download_bytes":2048000`)
}

func TestFormatKiBs(t *testing.T) {
	require.Equal(t, "unlimited", FormatKiBs(0))
	require.Equal(t, "750 KiB/s", FormatKiBs(750))
}

func TestReadingStatus(t *testing.T) {
	status, notes := readingStatus(core.Reading{Provider: "plex", Count: 2, Duration: 15 * time.Millisecond})
	require.Equal(t, "ok", status)
	require.Equal(t, "15ms", notes)

	status, notes = readingStatus(core.Reading{Provider: "plex", Error: "timeout"})
	require.Equal(t, "error", status)
	require.Equal(t, "timeout", notes)

	status, _ = readingStatus(core.Reading{Provider: "jellyfin", Disabled: true})
	require.Equal(t, "disabled", status)
}
