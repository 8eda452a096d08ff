package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	apperrors "github.com/streamwarden/streamwarden/internal/errors"
	"github.com/streamwarden/streamwarden/internal/output"
	"github.com/streamwarden/streamwarden/internal/server/handlers"
)

var statusAddr string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of a running warden",
	Long: `Fetch /status from the status server of a running warden. The address
defaults to status.host and status.port from the configuration.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		addr := statusAddr
		if addr == "" {
			cfg, err := loadConfig()
			if err != nil {
				ExitWithCodeStderr(foundry.ExitFailure, "Failed to load configuration", err)
			}
			addr = net.JoinHostPort(cfg.Status.Host, strconv.Itoa(cfg.Status.Port))
		}

		client := &http.Client{Timeout: 5 * time.Second}
		status, err := fetchStatus(cmd.Context(), client, "http://"+addr+"/status")
		if err != nil {
			ExitWithCodeStderr(foundry.ExitFailure, "Failed to query status server", err)
		}
		formatter, err := formatterFromFlag()
		if err != nil {
			ExitWithCodeStderr(foundry.ExitFailure, "Invalid output format", err)
		}
		rendered, err := formatter.FormatStatus(toOutputStatus(status))
		if err != nil {
			ExitWithCodeStderr(foundry.ExitFailure, "Failed to render status", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), rendered)
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "status server address (host:port)")
	rootCmd.AddCommand(statusCmd)
}

func fetchStatus(ctx context.Context, client *http.Client, url string) (*handlers.StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var body apperrors.HTTPErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error.Code != "" {
			return nil, fmt.Errorf("status server returned %d: %s", resp.StatusCode, body.Error.Message)
		}
		return nil, fmt.Errorf("status server returned %d", resp.StatusCode)
	}

	var status handlers.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &status, nil
}

func toOutputStatus(status *handlers.StatusResponse) output.Status {
	return output.Status{
		Snapshot:     status.Snapshot,
		PollInterval: time.Duration(status.PollIntervalSeconds * float64(time.Second)),
	}
}
