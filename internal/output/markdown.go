package output

import (
	"fmt"
	"strings"

	"github.com/streamwarden/streamwarden/internal/core"
	"github.com/streamwarden/streamwarden/internal/core/engine"
)

// MarkdownFormatter renders results as markdown tables.
type MarkdownFormatter struct{}

// FormatSample renders a sample as Markdown.
func (f *MarkdownFormatter) FormatSample(sample core.Sample, settings engine.Settings) (string, error) {
	var sb strings.Builder
	sb.WriteString("## Active sessions\n\n")
	sb.WriteString("| Provider | Status | Sessions | Notes |\n")
	sb.WriteString("|----------|--------|----------|-------|\n")

	for _, r := range sample.Readings {
		status, notes := readingStatus(r)
		sb.WriteString(fmt.Sprintf("| %s | %s | %d | %s |\n",
			escapeMarkdownCell(r.Provider),
			status,
			r.Sessions(),
			escapeMarkdownCell(notes),
		))
	}

	sb.WriteString(fmt.Sprintf("\n**Total**: %d\n\n", sample.Total))
	sb.WriteString(decisionLine(sample.Total, settings) + "\n")
	return sb.String(), nil
}

// FormatProfiles renders the profiles as Markdown.
func (f *MarkdownFormatter) FormatProfiles(settings engine.Settings) (string, error) {
	var sb strings.Builder
	sb.WriteString("## Rate-limit profiles\n\n")
	sb.WriteString("| Profile | Applies when | Upload | Download | Upload B/s | Download B/s |\n")
	sb.WriteString("|---------|--------------|--------|----------|------------|--------------|\n")

	for _, p := range profileViews(settings) {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %d | %d |\n",
			p.Name,
			escapeMarkdownCell(p.AppliesWhen),
			FormatKiBs(p.UploadKiBs),
			FormatKiBs(p.DownloadKiBs),
			p.UploadBytes,
			p.DownloadBytes,
		))
	}

	sb.WriteString(fmt.Sprintf("\n**Poll interval**: %s\n", settings.PollInterval))
	return sb.String(), nil
}

// FormatStatus renders the warden state as Markdown.
func (f *MarkdownFormatter) FormatStatus(status Status) (string, error) {
	var sb strings.Builder
	sb.WriteString("## Warden status\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	for _, row := range statusRows(status) {
		sb.WriteString(fmt.Sprintf("| %s | %s |\n", escapeMarkdownCell(row[0]), escapeMarkdownCell(row[1])))
	}
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
