// Package matcher implements the tiered duplicate-candidate engine. Each
// tier joins sighting records across sources on progressively looser keys,
// scores the paired descriptions, and records candidates for review.
package matcher

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/skymerge/saucer/internal/common"
	"github.com/skymerge/saucer/internal/model"
	"github.com/skymerge/saucer/internal/service"
	"github.com/skymerge/saucer/internal/similarity"
)

// Engine runs the match tiers against the archive.
type Engine struct {
	storage service.Storage
	logger  *slog.Logger
	scorer  *similarity.Scorer
	config  Config
}

// Config holds tuning knobs for the engine.
type Config struct {
	// Workers is the number of parallel scoring workers per tier.
	Workers int
	// Tier3MaxGroup caps the records a single day may hold before the
	// fuzzy tier skips the whole day.
	Tier3MaxGroup int
	// BatchSize caps the candidate pairs buffered before a flush to the
	// tier transaction.
	BatchSize int
	// Tier3MinScore is the lowest similarity the fuzzy tier records.
	Tier3MinScore float64
	// Tier3JaccardGate skips fuzzy pairs whose token overlap is below it
	// before running the full alignment.
	Tier3JaccardGate float64
	// DryRun scores and counts normally but rolls every tier back,
	// leaving the archive untouched.
	DryRun bool
}

// DefaultConfig returns the standard engine configuration.
func DefaultConfig() Config {
	return Config{
		Workers:          runtime.NumCPU(),
		Tier3MaxGroup:    20,
		BatchSize:        50000,
		Tier3MinScore:    0.5,
		Tier3JaccardGate: 0.25,
	}
}

// New creates an engine with the default configuration.
func New(storage service.Storage, logger *slog.Logger) *Engine {
	return NewWithConfig(storage, logger, DefaultConfig())
}

// NewWithConfig creates an engine with custom configuration.
func NewWithConfig(storage service.Storage, logger *slog.Logger, config Config) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.BatchSize < 1 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	return &Engine{
		storage: storage,
		logger:  logger,
		scorer:  similarity.NewScorer(),
		config:  config,
	}
}

// RunStats summarizes one engine run. Counters cover only tiers that
// completed; a failed tier's work rolls back and is not included.
type RunStats struct {
	ByMethod          map[string]int64
	RecordsScanned    int64
	GroupsMatched     int64
	PairsScored       int64
	PairsInserted     int64
	SkippedClaimed    int64
	SkippedNoCity     int64
	SkippedCountry    int64
	SkippedUnparsed   int64
	SkippedLargeDays  int64
	SkippedOneSource  int64
	SkippedLowOverlap int64
	BelowMinScore     int64
	Duration          time.Duration
}

// matchGroup is one unit of scoring work. Key tiers fill both sides and
// pair them cartesian; the fuzzy tier fills left only and pairs within it.
type matchGroup struct {
	method string
	left   []model.MatchRecord
	right  []model.MatchRecord
}

// groupResult carries one scored group back to the collector.
type groupResult struct {
	pairs    []model.CandidatePair
	scored   int64
	claimed  int64
	gated    int64
	rejected int64
}

// scoreFunc scores one group against the claimed-pair snapshot.
type scoreFunc func(group matchGroup, snapshot map[model.PairKey]struct{}) groupResult

// tierTally accumulates one tier's counters. It merges into RunStats only
// after the tier commits, so rolled-back work never shows in the totals.
type tierTally struct {
	byMethod  map[string]int64
	records   int64
	groups    int64
	scored    int64
	inserted  int64
	claimed   int64
	gated     int64
	rejected  int64
	noCity    int64
	country   int64
	unparsed  int64
	largeDays int64
	oneSource int64
}

func newTierTally() *tierTally {
	return &tierTally{byMethod: make(map[string]int64)}
}

func (t *tierTally) mergeInto(stats *RunStats) {
	for method, n := range t.byMethod {
		stats.ByMethod[method] += n
	}
	stats.RecordsScanned += t.records
	stats.GroupsMatched += t.groups
	stats.PairsScored += t.scored
	stats.PairsInserted += t.inserted
	stats.SkippedClaimed += t.claimed
	stats.SkippedNoCity += t.noCity
	stats.SkippedCountry += t.country
	stats.SkippedUnparsed += t.unparsed
	stats.SkippedLargeDays += t.largeDays
	stats.SkippedOneSource += t.oneSource
	stats.SkippedLowOverlap += t.gated
	stats.BelowMinScore += t.rejected
}

// Run executes the requested tiers in ascending order, each tier fully
// committing before the next starts. An empty tier list runs every tier.
// A match_runs row brackets the whole run.
func (e *Engine) Run(ctx context.Context, tiers []int) (*RunStats, error) {
	tierList, err := normalizeTiers(tiers)
	if err != nil {
		return nil, err
	}

	stats := &RunStats{ByMethod: make(map[string]int64)}
	start := time.Now()

	run := &model.MatchRun{
		ID:        uuid.New().String(),
		Tiers:     tierLabel(tierList),
		Status:    model.RunStatusRunning,
		StartedAt: start,
	}
	if e.config.DryRun {
		e.logger.Info("dry run: no candidates will be written")
	} else if err := e.storage.InsertMatchRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to open match run: %w", err)
	}

	claimed, err := e.seedClaimed(ctx)
	if err != nil {
		return stats, e.failRun(ctx, run, stats, start, err)
	}

	e.logger.Info("match run started",
		"run_id", run.ID,
		"tiers", run.Tiers,
		"workers", e.config.Workers,
		"claimed_pairs", claimed.Len())

	for _, tier := range tierList {
		if tierErr := e.runTier(ctx, tier, claimed, stats); tierErr != nil {
			return stats, e.failRun(ctx, run, stats, start, fmt.Errorf("tier %d: %w", tier, tierErr))
		}
	}

	stats.Duration = time.Since(start)
	run.FinishedAt = time.Now()
	run.Status = model.RunStatusCompleted
	run.RecordsScanned = stats.RecordsScanned
	run.PairsInserted = stats.PairsInserted
	if !e.config.DryRun {
		if err := e.storage.FinalizeMatchRun(ctx, run); err != nil {
			return stats, fmt.Errorf("failed to finalize match run: %w", err)
		}
	}

	e.logger.Info("match run finished",
		"run_id", run.ID,
		"records_scanned", stats.RecordsScanned,
		"pairs_scored", stats.PairsScored,
		"pairs_inserted", stats.PairsInserted,
		"duration", stats.Duration.Round(time.Millisecond))
	return stats, nil
}

// failRun marks the run row failed, preserving the original error. The
// bookkeeping write uses an uncancelable context so an interrupted run
// still closes its row.
func (e *Engine) failRun(ctx context.Context, run *model.MatchRun, stats *RunStats, start time.Time, cause error) error {
	stats.Duration = time.Since(start)
	run.FinishedAt = time.Now()
	run.Status = model.RunStatusFailed
	run.RecordsScanned = stats.RecordsScanned
	run.PairsInserted = stats.PairsInserted
	if !e.config.DryRun {
		if err := e.storage.FinalizeMatchRun(context.WithoutCancel(ctx), run); err != nil {
			e.logger.Error("failed to finalize match run", "run_id", run.ID, "error", err)
		}
	}
	return cause
}

// seedClaimed loads every stored pair key into the accumulator.
func (e *Engine) seedClaimed(ctx context.Context) (*claimedSet, error) {
	keys, err := e.storage.ListClaimedPairs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load claimed pairs: %w", err)
	}
	return newClaimedSet(keys), nil
}

// runTier executes one tier inside its own transaction.
func (e *Engine) runTier(ctx context.Context, tier int, claimed *claimedSet, stats *RunStats) error {
	switch tier {
	case 1:
		return e.runKeyTier(ctx, tier, tier1Joins(), claimed, stats)
	case 2:
		return e.runKeyTier(ctx, tier, tier2Joins(), claimed, stats)
	case 3:
		return e.runFuzzyTier(ctx, claimed, stats)
	default:
		return fmt.Errorf("unknown tier %d", tier)
	}
}

// runGroups drives the worker pool for one tier: groups fan out to
// scoring workers and results funnel into a single collector that owns
// all writes on the tier transaction. On success the tier commits (a dry
// run rolls back instead) and its new pairs merge into the accumulator.
func (e *Engine) runGroups(ctx context.Context, tier int, groups []matchGroup, claimed *claimedSet, tally *tierTally, score scoreFunc) error {
	tally.groups = int64(len(groups))
	if len(groups) == 0 {
		return nil
	}

	snapshot := claimed.Snapshot()

	tx, err := e.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tier %d transaction: %w", tier, err)
	}
	defer func() { _ = tx.Rollback() }()

	groupCh := make(chan matchGroup)
	resultCh := make(chan groupResult, e.config.Workers)
	delta := make(map[model.PairKey]struct{})

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(groupCh)
		for _, group := range groups {
			select {
			case groupCh <- group:
			case <-gCtx.Done():
				return gCtx.Err()
			}
		}
		return nil
	})

	var workers sync.WaitGroup
	workers.Add(e.config.Workers)
	for i := 0; i < e.config.Workers; i++ {
		g.Go(func() error {
			defer workers.Done()
			for group := range groupCh {
				select {
				case resultCh <- score(group, snapshot):
				case <-gCtx.Done():
					return gCtx.Err()
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		workers.Wait()
		close(resultCh)
		return nil
	})

	g.Go(func() error {
		return e.collect(gCtx, tx, resultCh, snapshot, delta, tally)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	if !e.config.DryRun {
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit tier %d: %w", tier, err)
		}
	}

	claimed.Merge(delta)
	return nil
}

// collect receives scored groups and owns every write of the tier. Pairs
// are canonicalized, checked against the snapshot and the tier's own
// delta, and flushed in batches.
func (e *Engine) collect(ctx context.Context, tx service.Transaction, resultCh <-chan groupResult, snapshot, delta map[model.PairKey]struct{}, tally *tierTally) error {
	batch := make([]model.CandidatePair, 0, min(e.config.BatchSize, 4096))

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		inserted, err := tx.InsertCandidatePairs(ctx, batch)
		if err != nil {
			return fmt.Errorf("failed to insert candidate batch: %w", err)
		}
		tally.inserted += inserted
		for _, pair := range batch {
			tally.byMethod[pair.Method]++
		}
		batch = batch[:0]
		return nil
	}

	for res := range resultCh {
		tally.scored += res.scored
		tally.claimed += res.claimed
		tally.gated += res.gated
		tally.rejected += res.rejected

		for _, pair := range res.pairs {
			key := model.NewPairKey(pair.SightingA, pair.SightingB)
			if !key.Valid() {
				continue
			}
			if _, ok := snapshot[key]; ok {
				tally.claimed++
				continue
			}
			if _, ok := delta[key]; ok {
				tally.claimed++
				continue
			}
			delta[key] = struct{}{}
			pair.SightingA, pair.SightingB = key.A, key.B
			batch = append(batch, pair)

			if len(batch) >= e.config.BatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
	return flush()
}

// normalizeTiers validates, dedupes and orders the requested tier list.
func normalizeTiers(tiers []int) ([]int, error) {
	if len(tiers) == 0 {
		return []int{1, 2, 3}, nil
	}
	seen := make(map[int]bool, len(tiers))
	out := make([]int, 0, len(tiers))
	for _, tier := range tiers {
		if tier < 1 || tier > 3 {
			return nil, fmt.Errorf("%w %d: valid tiers are 1, 2, 3", common.ErrUnknownTier, tier)
		}
		if seen[tier] {
			continue
		}
		seen[tier] = true
		out = append(out, tier)
	}
	sort.Ints(out)
	return out, nil
}

// tierLabel renders a tier list for the match_runs row, e.g. "1,2,3".
func tierLabel(tiers []int) string {
	parts := make([]string, len(tiers))
	for i, tier := range tiers {
		parts[i] = strconv.Itoa(tier)
	}
	return strings.Join(parts, ",")
}
