package main

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/skymerge/saucer/internal/cli"
	"github.com/skymerge/saucer/internal/matcher"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func matchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Find duplicate candidates across sources",
		Long: `Run the tiered matching engine against the archive.

Tier 1 joins MUFON and NUFORC on exact day, city and state. Tier 2 pulls
in the catalog and free-form sources on looser keys. Tier 3 compares
report narratives within each day across sources. Each pair of sightings
is recorded at most once, by the earliest tier that finds it, so the
command is safe to re-run.

Examples:
  saucer match                 # Run all three tiers
  saucer match --tiers 1,2     # Key tiers only
  saucer match --dry-run       # Score everything, write nothing`,
		RunE: runMatch,
	}

	// Flags
	cmd.Flags().StringP("tiers", "t", "all", "Tiers to run: all or a comma-separated list (1,2,3)")
	cmd.Flags().IntP("workers", "w", 0, "Scoring workers per tier (0 = one per CPU)")
	cmd.Flags().Bool("dry-run", false, "Score and report without writing candidates")

	_ = viper.BindPFlag("match.tiers", cmd.Flags().Lookup("tiers"))
	_ = viper.BindPFlag("match.workers", cmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("match.dry_run", cmd.Flags().Lookup("dry-run"))

	return cmd
}

func runMatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	tiers, err := parseTiers(viper.GetString("match.tiers"))
	if err != nil {
		return err
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

	config := matcher.DefaultConfig()
	if workers := viper.GetInt("match.workers"); workers > 0 {
		config.Workers = workers
	}
	config.DryRun = viper.GetBool("match.dry_run")

	if config.DryRun {
		fmt.Println(cli.FormatInfo("Dry run: candidates will be scored but not written."))
	}

	engine := matcher.NewWithConfig(store, slog.Default(), config)
	stats, err := engine.Run(ctx, tiers)
	if err != nil {
		return fmt.Errorf("match run failed: %w", err)
	}

	printMatchStats(stats, config.DryRun)
	return nil
}

func printMatchStats(stats *matcher.RunStats, dryRun bool) {
	headline := fmt.Sprintf("Matched %d candidate pairs from %d records in %s",
		stats.PairsInserted, stats.RecordsScanned, stats.Duration.Round(time.Millisecond))
	if dryRun {
		headline += " (dry run, nothing written)"
	}
	fmt.Println(cli.FormatSuccess(headline))

	methods := make([]string, 0, len(stats.ByMethod))
	for method := range stats.ByMethod {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	for _, method := range methods {
		fmt.Printf("  %-26s %d\n", method, stats.ByMethod[method])
	}

	if skipped := stats.SkippedNoCity + stats.SkippedCountry + stats.SkippedUnparsed; skipped > 0 {
		fmt.Println(cli.SubtleStyle.Render(fmt.Sprintf("  %d records had no usable key for some tier", skipped)))
	}
	if stats.SkippedClaimed > 0 {
		fmt.Println(cli.SubtleStyle.Render(fmt.Sprintf("  %d pairs were already recorded by an earlier run or tier", stats.SkippedClaimed)))
	}
}

// parseTiers turns the --tiers flag into an engine tier list. "all" (or
// an empty value) selects every tier.
func parseTiers(s string) ([]int, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "all" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	tiers := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tier, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid tier %q: tiers are numeric (e.g. --tiers 1,2)", part)
		}
		tiers = append(tiers, tier)
	}
	return tiers, nil
}
