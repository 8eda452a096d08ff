package config

import (
	"time"
)

// Config represents the complete warden configuration. It is loaded once at
// startup and treated as immutable afterwards.
type Config struct {
	Warden      WardenConfig      `mapstructure:"stream_warden" yaml:"stream_warden"`
	Plex        ProviderConfig    `mapstructure:"plex" yaml:"plex"`
	Jellyfin    ProviderConfig    `mapstructure:"jellyfin" yaml:"jellyfin"`
	QBittorrent QBittorrentConfig `mapstructure:"qbittorrent" yaml:"qbittorrent"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
	HTTP        HTTPConfig        `mapstructure:"http" yaml:"http"`
	Status      StatusConfig      `mapstructure:"status" yaml:"status"`
	Metrics     MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
}

// WardenConfig contains the control loop settings
type WardenConfig struct {
	// LogLevel is one of debug, info, warning, warn, error, critical
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// PollInterval is the wait between two polling cycles, in seconds
	PollInterval int `mapstructure:"poll_interval" yaml:"poll_interval"`

	// StreamThreshold is the session count at or above which the
	// throttled profile is applied
	StreamThreshold int `mapstructure:"stream_threshold" yaml:"stream_threshold"`
}

// PollEvery returns the poll interval as a duration.
func (w WardenConfig) PollEvery() time.Duration {
	return time.Duration(w.PollInterval) * time.Second
}

// ProviderConfig contains connection info for a media server that reports
// active playback sessions.
type ProviderConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	URL     string `mapstructure:"url" yaml:"url"`
	Token   string `mapstructure:"token" yaml:"token"`
}

// QBittorrentConfig contains the torrent client connection and the two
// rate-limit profiles the warden switches between.
type QBittorrentConfig struct {
	URL        string           `mapstructure:"url" yaml:"url"`
	Username   string           `mapstructure:"username" yaml:"username"`
	Password   string           `mapstructure:"password" yaml:"password"`
	RateLimits RateLimitsConfig `mapstructure:"rate_limits" yaml:"rate_limits"`
}

// RateLimitsConfig holds the named profiles.
type RateLimitsConfig struct {
	Default   Profile `mapstructure:"default" yaml:"default"`
	Throttled Profile `mapstructure:"throttled" yaml:"throttled"`
}

// Profile is a pair of global caps in KiB/s. Zero means unlimited.
type Profile struct {
	Upload   int `mapstructure:"upload" yaml:"upload"`
	Download int `mapstructure:"download" yaml:"download"`
}

// LoggingConfig controls the console and rotating file sinks
type LoggingConfig struct {
	// File is the rotating log file path; empty disables the file sink
	File string `mapstructure:"file" yaml:"file"`

	// MaxSizeMB is the size at which the file is rotated
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups bounds the number of rotated files kept
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`

	// Format is console or json
	Format string `mapstructure:"format" yaml:"format"`
}

// HTTPConfig applies to every outbound API call
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// MarshalYAML writes the timeout as a duration string ("10s").
func (h HTTPConfig) MarshalYAML() (interface{}, error) {
	return struct {
		Timeout string `yaml:"timeout"`
	}{Timeout: h.Timeout.String()}, nil
}

// StatusConfig contains the optional status endpoint configuration
type StatusConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Host    string `mapstructure:"host" yaml:"host"`
	Port    int    `mapstructure:"port" yaml:"port"`
}

// MetricsConfig contains Prometheus exporter configuration
type MetricsConfig struct {
	// Enabled controls whether the exporter is started
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port" yaml:"port"`
}
