package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/skymerge/saucer/internal/report"
	"github.com/spf13/cobra"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the duplicate-candidate report",
		Long: `Summarize recorded duplicate candidates: totals, per-method score
statistics, the score distribution and the highest-scoring pairs.

Examples:
  saucer report
  saucer report --top 25`,
		RunE: runReport,
	}

	// Flags
	cmd.Flags().IntP("top", "n", 10, "Number of top-scoring pairs to show")

	return cmd
}

func runReport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	top, _ := cmd.Flags().GetInt("top")

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
	if err := renderer.Verify(ctx, os.Stdout, top); err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}
	return nil
}
