package cmd

import (
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/streamwarden/streamwarden/internal/core/engine"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Show the configured rate-limit profiles",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			ExitWithCodeStderr(foundry.ExitFailure, "Failed to load configuration", err)
		}
		formatter, err := formatterFromFlag()
		if err != nil {
			ExitWithCodeStderr(foundry.ExitFailure, "Invalid output format", err)
		}
		rendered, err := formatter.FormatProfiles(engine.SettingsFromConfig(cfg))
		if err != nil {
			ExitWithCodeStderr(foundry.ExitFailure, "Failed to render profiles", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), rendered)
	},
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}
