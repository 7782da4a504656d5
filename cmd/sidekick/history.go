package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dellis86/sidekick/internal/infrastructure/database"
	"github.com/dellis86/sidekick/internal/journal"
)

func newHistoryCommand(configPath *string) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent events from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")      //nolint:errcheck
			format, _ := cmd.Flags().GetString("format") //nolint:errcheck

			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if !cfg.Journal.Enabled {
				return fmt.Errorf("journal is disabled in configuration")
			}
			if _, err := os.Stat(cfg.Journal.Path); err != nil {
				return fmt.Errorf("no journal database at %s (has sidekick run yet?)", cfg.Journal.Path)
			}

			db, err := database.Open(database.Config{
				Path:        cfg.Journal.Path,
				WALMode:     cfg.Journal.WALMode,
				BusyTimeout: cfg.Journal.BusyTimeout,
			})
			if err != nil {
				return fmt.Errorf("opening journal database: %w", err)
			}
			defer db.Close() //nolint:errcheck

			entries, err := journal.New(db, "").Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			switch format {
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			case "text":
				printHistoryText(cmd, entries)
				return nil
			default:
				return fmt.Errorf("unknown format %q (text/json)", format)
			}
		},
	}
	historyCmd.Flags().IntP("limit", "n", 50, "maximum number of events to show")
	historyCmd.Flags().StringP("format", "F", "text", "output format (text/json)")

	return historyCmd
}

// printHistoryText renders journal entries one per line, newest first.
func printHistoryText(cmd *cobra.Command, entries []journal.Entry) {
	w := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(w, "no events recorded")
		return
	}
	for _, e := range entries {
		parts := []string{
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%-14s", e.Kind),
			"session=" + shortSession(e.SessionID),
		}
		if e.TaskID != "" {
			parts = append(parts, "task="+e.TaskID)
		}
		if e.Detail != "" {
			parts = append(parts, e.Detail)
		}
		fmt.Fprintln(w, strings.Join(parts, "  "))
	}
}

// shortSession truncates a session UUID to its first group for display.
func shortSession(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
