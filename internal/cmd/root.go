package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/streamwarden/streamwarden/internal/config"
	"github.com/streamwarden/streamwarden/internal/observability"
	"github.com/streamwarden/streamwarden/internal/output"
)

const binaryName = "streamwarden"

var (
	cfgFile      string
	verbose      bool
	outputFormat string

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   binaryName,
	Short: "Throttle qBittorrent while media is streaming",
	Long: `streamwarden watches active playback sessions on Plex (and optionally
Jellyfin) and switches the global qBittorrent rate limits between a default
and a throttled profile when the session count crosses a threshold.

Use the subcommands to perform specific operations.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Keep gofulmen internals quiet until run starts a real exporter
	observability.DisableGlobalTelemetry()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", string(output.FormatTable), "output format: table, json, markdown")
}

func formatterFromFlag() (output.Formatter, error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return output.NewFormatter(format), nil
}

// loadConfig reads the file named by --config.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// newLogger builds the process logger from cfg. withFile controls whether
// the rotating file sink is attached; one-shot commands log to the console
// only.
func newLogger(cfg *config.Config, console io.Writer, withFile bool) (*zap.Logger, error) {
	if console == nil {
		console = os.Stderr
	}
	opts := observability.LoggerOptions{
		Level:   cfg.Warden.LogLevel,
		Verbose: verbose,
		Format:  cfg.Logging.Format,
		Console: console,
	}
	if withFile {
		opts.File = cfg.Logging.File
		opts.MaxSizeMB = cfg.Logging.MaxSizeMB
		opts.MaxBackups = cfg.Logging.MaxBackups
	}
	return observability.NewLogger(opts)
}
