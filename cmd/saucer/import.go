package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/skymerge/saucer/internal/cli"
	"github.com/skymerge/saucer/internal/importer"
	"github.com/spf13/cobra"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import canonical sighting records",
		Long: `Load canonical JSONL sighting records into the archive.

Each line is one record carrying the source name, source reference,
event date, location, narrative and classification fields. Lines that
fail to decode or name no known source are counted and skipped unless
--strict is set.

Examples:
  saucer import --file sightings.jsonl
  gzcat nuforc.jsonl.gz | saucer import --file -`,
		RunE: runImport,
	}

	// Flags
	cmd.Flags().StringP("file", "f", "", "JSONL file to import (- for stdin)")
	cmd.Flags().Bool("strict", false, "Abort on the first malformed or unusable line")
	cmd.Flags().Int("batch-size", importer.DefaultBatchSize, "Records per database write")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runImport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	file, _ := cmd.Flags().GetString("file")
	strict, _ := cmd.Flags().GetBool("strict")
	batchSize, _ := cmd.Flags().GetInt("batch-size")

	var in io.Reader
	if file == "-" {
		in = os.Stdin
	} else {
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("failed to open import file: %w", err)
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

	opts := importer.Options{BatchSize: batchSize, Strict: strict}

	var bar *progressbar.ProgressBar
	if stdoutIsTerminal() {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("[cyan]Importing sightings...[reset]"),
			progressbar.OptionSpinnerType(14),
		)
		opts.Progress = func(added int) { _ = bar.Add(added) }
	}

	stats, err := importer.New(store, slog.Default(), opts).Run(ctx, in)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Imported %d sightings in %s",
		stats.Imported, stats.Duration.Round(time.Millisecond))))
	if stats.Skipped > 0 || stats.Malformed > 0 {
		fmt.Println(cli.FormatWarning(fmt.Sprintf("Skipped %d unusable and %d malformed lines",
			stats.Skipped, stats.Malformed)))
	}
	return nil
}
