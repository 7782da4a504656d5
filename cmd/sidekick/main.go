// Sidekick is the forge sidecar shim: it supervises the companion forge
// server process and maintains a resilient connection to its event stream,
// relaying structured messages to the terminal and optional observers.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// defaultConfigPath is used when neither the --config flag nor
// SIDEKICK_CONFIG points at a file.
const defaultConfigPath = "configs/sidekick.yaml"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "sidekick",
		Short:         "Supervisor and event-stream client for the forge backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	rootCmd.AddCommand(
		newRunCommand(&configPath),
		newStatusCommand(),
		newHistoryCommand(&configPath),
		newVersionCommand(),
	)

	return rootCmd
}

// resolveConfigPath picks the config file location: the --config flag wins,
// then SIDEKICK_CONFIG, then the default path.
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv("SIDEKICK_CONFIG"); v != "" {
		return v
	}
	return defaultConfigPath
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sidekick %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
