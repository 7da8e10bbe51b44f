package matcher

import (
	"context"
	"fmt"

	"github.com/skymerge/saucer/internal/model"
	"github.com/skymerge/saucer/internal/similarity"
)

// runFuzzyTier matches on the event day alone and lets the scorer decide.
// Only small, multi-source day groups are worth the quadratic comparison.
func (e *Engine) runFuzzyTier(ctx context.Context, claimed *claimedSet, stats *RunStats) error {
	tally := newTierTally()

	records, err := e.storage.ListDatedRecords(ctx)
	if err != nil {
		return fmt.Errorf("failed to load dated records: %w", err)
	}
	tally.records = int64(len(records))

	groups := e.buildDayGroups(records, tally)

	if err := e.runGroups(ctx, 3, groups, claimed, tally, e.scoreFuzzyGroup); err != nil {
		return err
	}

	tally.mergeInto(stats)
	e.logger.Info("tier complete",
		"tier", 3,
		"records", tally.records,
		"groups", tally.groups,
		"pairs_scored", tally.scored,
		"pairs_inserted", tally.inserted,
		"skipped_claimed", tally.claimed,
		"skipped_low_overlap", tally.gated,
		"below_min_score", tally.rejected,
		"skipped_large_days", tally.largeDays,
		"skipped_single_source", tally.oneSource)
	return nil
}

// buildDayGroups buckets dated records by day and drops the days the
// tier refuses to touch: mass-sighting days over the group cap and days
// covered by a single source.
func (e *Engine) buildDayGroups(records []model.MatchRecord, tally *tierTally) []matchGroup {
	byDay := make(map[string][]model.MatchRecord)
	for _, rec := range records {
		byDay[rec.Day] = append(byDay[rec.Day], rec)
	}

	groups := make([]matchGroup, 0, len(byDay))
	for _, recs := range byDay {
		if len(recs) < 2 {
			continue
		}
		if len(recs) > e.config.Tier3MaxGroup {
			tally.largeDays++
			continue
		}
		if !multiSource(recs) {
			tally.oneSource++
			continue
		}
		groups = append(groups, matchGroup{method: model.MethodTier3DescFuzzy, left: recs})
	}
	return groups
}

// multiSource reports whether the records come from at least two sources.
func multiSource(records []model.MatchRecord) bool {
	for _, rec := range records[1:] {
		if rec.Source != records[0].Source {
			return true
		}
	}
	return false
}

// scoreFuzzyGroup scores every unclaimed cross-source pair within one day
// group, gating on token overlap before running the full alignment.
func (e *Engine) scoreFuzzyGroup(group matchGroup, snapshot map[model.PairKey]struct{}) groupResult {
	var res groupResult

	cleaned := make([]string, len(group.left))
	tokens := make([]map[string]bool, len(group.left))
	for i, rec := range group.left {
		cleaned[i] = e.scorer.Clean(rec.Source, rec.Description)
		tokens[i] = similarity.TokenSet(cleaned[i])
	}

	for i := 0; i < len(group.left); i++ {
		for j := i + 1; j < len(group.left); j++ {
			a, b := group.left[i], group.left[j]
			if a.Source == b.Source {
				continue
			}
			key := model.NewPairKey(a.ID, b.ID)
			if !key.Valid() {
				continue
			}
			if _, ok := snapshot[key]; ok {
				res.claimed++
				continue
			}
			if similarity.Jaccard(tokens[i], tokens[j]) < e.config.Tier3JaccardGate {
				res.gated++
				continue
			}
			score := e.scorer.ScoreCleaned(cleaned[i], cleaned[j])
			res.scored++
			if score < e.config.Tier3MinScore {
				res.rejected++
				continue
			}
			res.pairs = append(res.pairs, model.CandidatePair{
				SightingA: key.A,
				SightingB: key.B,
				Score:     score,
				Method:    model.MethodTier3DescFuzzy,
				Status:    model.StatusPending,
			})
		}
	}
	return res
}
