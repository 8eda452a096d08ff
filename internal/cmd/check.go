package cmd

import (
	"fmt"
	"net/http"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/streamwarden/streamwarden/internal/core/engine"
	"github.com/streamwarden/streamwarden/internal/core/sessions"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Sample active sessions once",
	Long: `Query every configured media server once and print the session counts
with the profile the warden would apply. qBittorrent is not contacted.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			ExitWithCodeStderr(foundry.ExitFailure, "Failed to load configuration", err)
		}

		logger, err := newLogger(cfg, cmd.ErrOrStderr(), false)
		if err != nil {
			ExitWithCodeStderr(foundry.ExitFailure, "Failed to initialize logger", err)
		}
		defer func() { _ = logger.Sync() }()

		source := sessions.NewSource(cfg, &http.Client{Timeout: cfg.HTTP.Timeout}, logger.Named("sessions"), nil)
		sample := source.Sample(cmd.Context())

		formatter, err := formatterFromFlag()
		if err != nil {
			ExitWithCodeStderr(foundry.ExitFailure, "Invalid output format", err)
		}
		rendered, err := formatter.FormatSample(sample, engine.SettingsFromConfig(cfg))
		if err != nil {
			ExitWithCodeStderr(foundry.ExitFailure, "Failed to render sample", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), rendered)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
