package output

import (
	"encoding/json"

	"github.com/streamwarden/streamwarden/internal/core"
	"github.com/streamwarden/streamwarden/internal/core/engine"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

type sampleDocument struct {
	core.Sample
	Threshold int         `json:"threshold"`
	Decision  core.State  `json:"decision"`
	Profile   ProfileView `json:"profile"`
}

type profilesDocument struct {
	Threshold           int           `json:"threshold"`
	PollIntervalSeconds float64       `json:"poll_interval_seconds"`
	Profiles            []ProfileView `json:"profiles"`
}

type statusDocument struct {
	engine.Snapshot
	PollIntervalSeconds float64 `json:"poll_interval_seconds"`
}

// FormatSample renders a sample with the decision as JSON.
func (f *JSONFormatter) FormatSample(sample core.Sample, settings engine.Settings) (string, error) {
	decision := engine.Decide(sample.Total, settings.Threshold)
	views := profileViews(settings)

	return f.marshal(sampleDocument{
		Sample:    sample,
		Threshold: settings.Threshold,
		Decision:  decision,
		Profile:   views[decision],
	})
}

// FormatProfiles renders the profiles as JSON.
func (f *JSONFormatter) FormatProfiles(settings engine.Settings) (string, error) {
	return f.marshal(profilesDocument{
		Threshold:           settings.Threshold,
		PollIntervalSeconds: settings.PollInterval.Seconds(),
		Profiles:            profileViews(settings),
	})
}

// FormatStatus renders the warden state as JSON.
func (f *JSONFormatter) FormatStatus(status Status) (string, error) {
	return f.marshal(statusDocument{
		Snapshot:            status.Snapshot,
		PollIntervalSeconds: status.PollInterval.Seconds(),
	})
}

func (f *JSONFormatter) marshal(v interface{}) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
