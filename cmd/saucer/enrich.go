package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/skymerge/saucer/internal/cli"
	"github.com/skymerge/saucer/internal/enrich"
	"github.com/skymerge/saucer/internal/model"
	"github.com/spf13/cobra"
)

func enrichCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Backfill classification fields from a catalog sidecar",
		Long: `Fill missing Hynek class, Vallee class and shape on stored sightings
from a UFOCAT-derived JSONL sidecar.

Sidecar records and stored sightings are matched on event day, city and
state. Only empty fields are filled; existing values are never touched,
so the pass is safe to repeat.

Examples:
  saucer enrich --file ufocat_sidecar.jsonl
  saucer enrich --file sidecar.jsonl --source nuforc`,
		RunE: runEnrich,
	}

	// Flags
	cmd.Flags().StringP("file", "f", "", "JSONL sidecar file (- for stdin)")
	cmd.Flags().String("source", "nuforc", "Source whose sightings to enrich")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runEnrich(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	file, _ := cmd.Flags().GetString("file")
	sourceName, _ := cmd.Flags().GetString("source")

	source, err := model.ParseSource(sourceName)
	if err != nil {
		return err
	}

	var in io.Reader
	if file == "-" {
		in = os.Stdin
	} else {
		f, openErr := os.Open(file)
		if openErr != nil {
			return fmt.Errorf("failed to open sidecar file: %w", openErr)
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
	}()

	stats, err := enrich.New(store, slog.Default()).Run(ctx, in, source)
	if err != nil {
		return fmt.Errorf("enrichment failed: %w", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Enriched %d of %d %s sightings",
		stats.SightingsUpdated, stats.Targets, source.Name())))
	fmt.Printf("  hynek %d, vallee %d, shape %d fields filled\n",
		stats.HynekAdded, stats.ValleeAdded, stats.ShapeAdded)
	if stats.MalformedLines > 0 {
		fmt.Println(cli.FormatWarning(fmt.Sprintf("Skipped %d malformed sidecar lines", stats.MalformedLines)))
	}
	if stats.UnmatchedSidecar > 0 {
		fmt.Println(cli.SubtleStyle.Render(fmt.Sprintf("  %d sidecar locations matched nothing in the archive", stats.UnmatchedSidecar)))
	}
	return nil
}
