package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/streamwarden/streamwarden/internal/config"
)

// Placeholder written for secrets by config init.
const (
	samplePlexToken = "your-plex-token"
	samplePassword  = "adminadmin"
)

var (
	configOutput string
	configForce  bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample configuration file",
	Long: `Write a configuration file populated with the default values. Secrets are
placeholders; edit the Plex token and qBittorrent credentials before running.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		path := configOutput
		if path == "" {
			path = cfgFile
		}
		if err := writeSampleConfig(path, configForce); err != nil {
			ExitWithCodeStderr(foundry.ExitFailure, "Failed to write configuration", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long:  "Print the configuration after defaults and environment overrides. Secrets are masked.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			ExitWithCodeStderr(foundry.ExitFailure, "Failed to load configuration", err)
		}
		if err := writeConfig(cmd.OutOrStdout(), redact(*cfg)); err != nil {
			ExitWithCodeStderr(foundry.ExitFailure, "Failed to render configuration", err)
		}
	},
}

func init() {
	configInitCmd.Flags().StringVarP(&configOutput, "output", "o", "", "output path (defaults to --config)")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

// sampleConfig returns the defaults with placeholder secrets.
func sampleConfig() config.Config {
	cfg := config.Defaults()
	cfg.Plex.Token = samplePlexToken
	cfg.QBittorrent.Password = samplePassword
	return cfg
}

// writeSampleConfig writes sampleConfig to path. An existing file is only
// replaced when force is set.
func writeSampleConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := writeConfig(f, sampleConfig()); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func writeConfig(w io.Writer, cfg config.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

func redact(cfg config.Config) config.Config {
	const mask = "********"
	if cfg.Plex.Token != "" {
		cfg.Plex.Token = mask
	}
	if cfg.Jellyfin.Token != "" {
		cfg.Jellyfin.Token = mask
	}
	if cfg.QBittorrent.Password != "" {
		cfg.QBittorrent.Password = mask
	}
	return cfg
}
