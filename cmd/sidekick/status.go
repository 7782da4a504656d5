package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// statusRequestTimeout bounds the status query against the local API.
const statusRequestTimeout = 3 * time.Second

func newStatusCommand() *cobra.Command {
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of a running sidekick instance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			address, _ := cmd.Flags().GetString("address") //nolint:errcheck
			format, _ := cmd.Flags().GetString("format")   //nolint:errcheck

			body, err := fetchStatus(address)
			if err != nil {
				return fmt.Errorf("sidekick is not running at %s: %w", address, err)
			}

			switch format {
			case "json":
				fmt.Fprintln(cmd.OutOrStdout(), string(body))
			case "text":
				printStatusText(cmd.OutOrStdout(), body)
			default:
				return fmt.Errorf("unknown format %q (text/json)", format)
			}
			return nil
		},
	}
	statusCmd.Flags().StringP("address", "a", "http://127.0.0.1:7171", "local API address")
	statusCmd.Flags().StringP("format", "F", "text", "output format (text/json)")

	return statusCmd
}

// fetchStatus queries the local API's status endpoint.
func fetchStatus(address string) ([]byte, error) {
	client := &http.Client{Timeout: statusRequestTimeout}
	resp, err := client.Get(address + "/api/v1/status") //nolint:noctx // Short one-shot CLI query
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// printStatusText renders the status payload as human-readable lines.
func printStatusText(w io.Writer, body []byte) {
	var status struct {
		SessionID string `json:"session_id"`
		Version   string `json:"version"`
		BaseURL   string `json:"base_url"`
		UptimeSec int64  `json:"uptime_seconds"`
		Backend   struct {
			Running     bool `json:"running"`
			StartedByUs bool `json:"started_by_us"`
			PID         int  `json:"pid"`
		} `json:"backend"`
		Stream struct {
			State    string `json:"state"`
			URL      string `json:"url"`
			Attempts int    `json:"reconnect_attempts"`
		} `json:"stream"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		fmt.Fprintln(w, string(body))
		return
	}

	fmt.Fprintf(w, "Session:  %s (v%s, up %s)\n",
		status.SessionID, status.Version, (time.Duration(status.UptimeSec) * time.Second).String())
	fmt.Fprintf(w, "Backend:  %s\n", status.BaseURL)

	switch {
	case status.Backend.Running && status.Backend.StartedByUs:
		fmt.Fprintf(w, "Process:  running (pid %d, spawned by us)\n", status.Backend.PID)
	case status.Backend.Running:
		fmt.Fprintf(w, "Process:  running (pid %d)\n", status.Backend.PID)
	default:
		fmt.Fprintln(w, "Process:  not running (or externally managed)")
	}

	if status.Stream.URL != "" {
		fmt.Fprintf(w, "Stream:   %s (%s, %d pending reconnect attempts)\n",
			status.Stream.State, status.Stream.URL, status.Stream.Attempts)
	} else {
		fmt.Fprintf(w, "Stream:   %s\n", status.Stream.State)
	}
}
