// Package output renders samples, profiles and warden status for the CLI.
package output

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/streamwarden/streamwarden/internal/core"
	"github.com/streamwarden/streamwarden/internal/core/engine"
	"github.com/streamwarden/streamwarden/internal/core/limits"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formatter renders CLI results.
type Formatter interface {
	FormatSample(sample core.Sample, settings engine.Settings) (string, error)
	FormatProfiles(settings engine.Settings) (string, error)
	FormatStatus(status Status) (string, error)
}

// Status is the state reported by a running warden.
type Status struct {
	engine.Snapshot
	PollInterval time.Duration `json:"-"`
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

// ProfileView is one rate-limit profile in both units.
type ProfileView struct {
	Name          string `json:"name"`
	AppliesWhen   string `json:"applies_when"`
	UploadKiBs    int    `json:"upload_kib"`
	DownloadKiBs  int    `json:"download_kib"`
	UploadBytes   int64  `json:"upload_bytes"`
	DownloadBytes int64  `json:"download_bytes"`
}

func profileViews(settings engine.Settings) []ProfileView {
	views := make([]ProfileView, 0, 2)
	for _, state := range []core.State{core.StateDefault, core.StateThrottled} {
		p := settings.Profile(state)
		when := fmt.Sprintf("sessions < %d", settings.Threshold)
		if state == core.StateThrottled {
			when = fmt.Sprintf("sessions >= %d", settings.Threshold)
		}
		views = append(views, ProfileView{
			Name:          state.String(),
			AppliesWhen:   when,
			UploadKiBs:    p.Upload,
			DownloadKiBs:  p.Download,
			UploadBytes:   int64(p.Upload) * limits.BytesPerKiB,
			DownloadBytes: int64(p.Download) * limits.BytesPerKiB,
		})
	}
	return views
}

// decisionLine summarizes what the warden would do for total.
func decisionLine(total int, settings engine.Settings) string {
	state := engine.Decide(total, settings.Threshold)
	p := settings.Profile(state)
	return fmt.Sprintf("Threshold %d: %s profile (upload %s, download %s)",
		settings.Threshold, state, FormatKiBs(p.Upload), FormatKiBs(p.Download))
}

// FormatKiBs renders a cap in KiB/s; zero is unlimited.
func FormatKiBs(kib int) string {
	if kib == 0 {
		return "unlimited"
	}
	return strconv.Itoa(kib) + " KiB/s"
}

func readingStatus(r core.Reading) (status, notes string) {
	switch {
	case r.Disabled:
		return "disabled", ""
	case r.OK():
		return "ok", r.Duration.Round(time.Millisecond).String()
	case r.Err != nil:
		return "error", r.Err.Error()
	default:
		return "error", r.Error
	}
}

func statusRows(status Status) [][2]string {
	lastPoll := "never"
	if status.LastPollAt != nil {
		lastPoll = status.LastPollAt.Local().Format(time.RFC3339)
	}

	rows := [][2]string{
		{"State", status.State.String()},
		{"Initialized", strconv.FormatBool(status.Initialized)},
		{"Pending apply", strconv.FormatBool(status.PendingApply)},
		{"Last total", strconv.Itoa(status.LastTotal)},
		{"Threshold", strconv.Itoa(status.Threshold)},
		{"Cycles", strconv.FormatInt(status.Cycles, 10)},
		{"Transitions", strconv.FormatInt(status.Transitions, 10)},
		{"Last poll", lastPoll},
		{"Poll interval", status.PollInterval.String()},
	}
	for _, r := range status.LastReadings {
		value := strconv.Itoa(r.Count)
		if s, notes := readingStatus(r); s != "ok" {
			value = strings.TrimSpace(s + " " + notes)
		}
		rows = append(rows, [2]string{"Provider " + r.Provider, value})
	}
	return rows
}
