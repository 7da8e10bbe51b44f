package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/skymerge/saucer/internal/report"
	"github.com/spf13/cobra"
)

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show archive summary statistics",
		Long: `Summarize the archive: rows per source with dated and located shares,
the most common reported shapes, and candidate totals by status.`,
		RunE: runStats,
	}
}

func runStats(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
	}()

	renderer := report.New(store, stdoutIsTerminal())
	if err := renderer.Stats(ctx, os.Stdout); err != nil {
		return fmt.Errorf("failed to build summary: %w", err)
	}
	return nil
}
