// Package config loads the warden configuration from a YAML file with
// environment variable overrides:
// Layer 1: built-in defaults (Defaults)
// Layer 2: the config file (config.yml by default)
// Layer 3: STREAM_WARDEN_* environment variables
package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	apperrors "github.com/streamwarden/streamwarden/internal/errors"
	"github.com/streamwarden/streamwarden/internal/observability"
)

// DefaultPath is the config file used when no --config flag is given.
const DefaultPath = "config.yml"

// EnvPrefix prefixes every environment override, e.g.
// STREAM_WARDEN_QBITTORRENT_PASSWORD.
const EnvPrefix = "STREAM_WARDEN"

// Defaults returns the configuration used for any key the file omits.
func Defaults() Config {
	return Config{
		Warden: WardenConfig{
			LogLevel:        "info",
			PollInterval:    30,
			StreamThreshold: 1,
		},
		Plex: ProviderConfig{
			Enabled: true,
			URL:     "http://localhost:32400",
		},
		Jellyfin: ProviderConfig{
			Enabled: false,
			URL:     "http://localhost:8096",
		},
		QBittorrent: QBittorrentConfig{
			URL:      "http://localhost:8080",
			Username: "admin",
			RateLimits: RateLimitsConfig{
				Default:   Profile{Upload: 0, Download: 0},
				Throttled: Profile{Upload: 500, Download: 2000},
			},
		},
		Logging: LoggingConfig{
			File:       "stream_warden.log",
			MaxSizeMB:  10,
			MaxBackups: 5,
			Format:     "console",
		},
		HTTP: HTTPConfig{
			Timeout: 10 * time.Second,
		},
		Status: StatusConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    9595,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9596,
		},
	}
}

// Load reads the config file at path, applies environment overrides and
// validates the result. A missing or malformed file is an error.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}

	if _, err := os.Stat(path); err != nil {
		return nil, apperrors.WrapConfigInvalid(context.Background(), err, fmt.Sprintf("config file %s not readable", path))
	}

	v := viper.New()
	v.SetConfigFile(path)
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext == "" {
		v.SetConfigType("yaml")
	}
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, apperrors.WrapConfigInvalid(context.Background(), err, fmt.Sprintf("failed to parse config file %s", path))
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, apperrors.WrapConfigInvalid(context.Background(), err, "failed to unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it
func setDefaults(v *viper.Viper) {
	d := Defaults()

	v.SetDefault("stream_warden.log_level", d.Warden.LogLevel)
	v.SetDefault("stream_warden.poll_interval", d.Warden.PollInterval)
	v.SetDefault("stream_warden.stream_threshold", d.Warden.StreamThreshold)

	v.SetDefault("plex.enabled", d.Plex.Enabled)
	v.SetDefault("plex.url", d.Plex.URL)
	v.SetDefault("plex.token", d.Plex.Token)

	v.SetDefault("jellyfin.enabled", d.Jellyfin.Enabled)
	v.SetDefault("jellyfin.url", d.Jellyfin.URL)
	v.SetDefault("jellyfin.token", d.Jellyfin.Token)

	v.SetDefault("qbittorrent.url", d.QBittorrent.URL)
	v.SetDefault("qbittorrent.username", d.QBittorrent.Username)
	v.SetDefault("qbittorrent.password", d.QBittorrent.Password)
	v.SetDefault("qbittorrent.rate_limits.default.upload", d.QBittorrent.RateLimits.Default.Upload)
	v.SetDefault("qbittorrent.rate_limits.default.download", d.QBittorrent.RateLimits.Default.Download)
	v.SetDefault("qbittorrent.rate_limits.throttled.upload", d.QBittorrent.RateLimits.Throttled.Upload)
	v.SetDefault("qbittorrent.rate_limits.throttled.download", d.QBittorrent.RateLimits.Throttled.Download)

	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.format", d.Logging.Format)

	v.SetDefault("http.timeout", d.HTTP.Timeout.String())

	v.SetDefault("status.enabled", d.Status.Enabled)
	v.SetDefault("status.host", d.Status.Host)
	v.SetDefault("status.port", d.Status.Port)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.port", d.Metrics.Port)
}

// Validate checks the invariants the control loop depends on. All problems
// are reported at once in a single CONFIG_INVALID envelope.
func (c *Config) Validate() error {
	var problems []string

	if _, err := observability.ParseLevel(c.Warden.LogLevel); err != nil {
		problems = append(problems, fmt.Sprintf("stream_warden.log_level: %v", err))
	}
	if c.Warden.PollInterval <= 0 {
		problems = append(problems, fmt.Sprintf("stream_warden.poll_interval must be a positive number of seconds, got %d", c.Warden.PollInterval))
	}
	if c.Warden.StreamThreshold < 0 {
		problems = append(problems, fmt.Sprintf("stream_warden.stream_threshold must not be negative, got %d", c.Warden.StreamThreshold))
	}

	problems = append(problems, validateProvider("plex", c.Plex)...)
	problems = append(problems, validateProvider("jellyfin", c.Jellyfin)...)

	if err := validateURL(c.QBittorrent.URL); err != nil {
		problems = append(problems, fmt.Sprintf("qbittorrent.url: %v", err))
	}
	problems = append(problems, validateProfile("default", c.QBittorrent.RateLimits.Default)...)
	problems = append(problems, validateProfile("throttled", c.QBittorrent.RateLimits.Throttled)...)

	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format must be console or json, got %q", c.Logging.Format))
	}
	// lumberjack reads 0 as 100 MB and unlimited backups
	if strings.TrimSpace(c.Logging.File) != "" {
		if c.Logging.MaxSizeMB <= 0 {
			problems = append(problems, fmt.Sprintf("logging.max_size_mb must be positive, got %d", c.Logging.MaxSizeMB))
		}
		if c.Logging.MaxBackups <= 0 {
			problems = append(problems, fmt.Sprintf("logging.max_backups must be positive, got %d", c.Logging.MaxBackups))
		}
	}

	if c.HTTP.Timeout < 0 {
		problems = append(problems, "http.timeout must not be negative")
	}

	if c.Status.Enabled && (c.Status.Port < 0 || c.Status.Port > 65535) {
		problems = append(problems, fmt.Sprintf("status.port out of range: %d", c.Status.Port))
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 0 || c.Metrics.Port > 65535) {
		problems = append(problems, fmt.Sprintf("metrics.port out of range: %d", c.Metrics.Port))
	}

	if len(problems) > 0 {
		return apperrors.NewConfigInvalidError("invalid configuration", problems...)
	}
	return nil
}

func validateProvider(name string, p ProviderConfig) []string {
	if !p.Enabled {
		return nil
	}
	var problems []string
	if err := validateURL(p.URL); err != nil {
		problems = append(problems, fmt.Sprintf("%s.url: %v", name, err))
	}
	if strings.TrimSpace(p.Token) == "" {
		problems = append(problems, fmt.Sprintf("%s.token is required when %s is enabled", name, name))
	}
	return problems
}

func validateProfile(name string, p Profile) []string {
	var problems []string
	if p.Upload < 0 {
		problems = append(problems, fmt.Sprintf("qbittorrent.rate_limits.%s.upload must not be negative", name))
	}
	if p.Download < 0 {
		problems = append(problems, fmt.Sprintf("qbittorrent.rate_limits.%s.download must not be negative", name))
	}
	return problems
}

func validateURL(raw string) error {
	value := strings.TrimSpace(raw)
	if value == "" {
		return fmt.Errorf("is required")
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("host is missing")
	}
	return nil
}
