package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/streamwarden/streamwarden/internal/core"
	"github.com/streamwarden/streamwarden/internal/core/engine"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatSample renders per-provider readings followed by the decision.
func (f *TableFormatter) FormatSample(sample core.Sample, settings engine.Settings) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Provider", "Status", "Sessions", "Notes"})

	for _, r := range sample.Readings {
		status, notes := readingStatus(r)
		t.AppendRow(table.Row{r.Provider, status, r.Sessions(), notes})
	}
	t.AppendFooter(table.Row{"Total", "", sample.Total, ""})

	return t.Render() + "\n" + decisionLine(sample.Total, settings) + "\n", nil
}

// FormatProfiles renders both profiles in KiB/s and bytes/s.
func (f *TableFormatter) FormatProfiles(settings engine.Settings) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Profile", "Applies when", "Upload", "Download", "Upload B/s", "Download B/s"})

	for _, p := range profileViews(settings) {
		t.AppendRow(table.Row{
			p.Name,
			p.AppliesWhen,
			FormatKiBs(p.UploadKiBs),
			FormatKiBs(p.DownloadKiBs),
			p.UploadBytes,
			p.DownloadBytes,
		})
	}

	return t.Render() + fmt.Sprintf("\nPoll interval: %s\n", settings.PollInterval), nil
}

// FormatStatus renders the warden state as key/value rows.
func (f *TableFormatter) FormatStatus(status Status) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	for _, row := range statusRows(status) {
		t.AppendRow(table.Row{row[0], row[1]})
	}
	return t.Render() + "\n", nil
}
