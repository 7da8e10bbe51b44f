package matcher

import "github.com/skymerge/saucer/internal/model"

// claimedSet accumulates the candidate pairs recorded so far: the pairs
// already stored when the run began plus every pair a completed tier of
// this run added. Not safe for concurrent use; workers read per-tier
// snapshots instead.
type claimedSet struct {
	pairs map[model.PairKey]struct{}
}

// newClaimedSet builds the accumulator from the stored pair keys.
func newClaimedSet(keys []model.PairKey) *claimedSet {
	pairs := make(map[model.PairKey]struct{}, len(keys))
	for _, key := range keys {
		pairs[key] = struct{}{}
	}
	return &claimedSet{pairs: pairs}
}

// Len returns the number of claimed pairs.
func (c *claimedSet) Len() int {
	return len(c.pairs)
}

// Snapshot copies the set for workers to read while a tier runs. The copy
// never changes, so workers share it without locking.
func (c *claimedSet) Snapshot() map[model.PairKey]struct{} {
	snapshot := make(map[model.PairKey]struct{}, len(c.pairs))
	for key := range c.pairs {
		snapshot[key] = struct{}{}
	}
	return snapshot
}

// Merge folds a completed tier's new pairs into the accumulator.
func (c *claimedSet) Merge(delta map[model.PairKey]struct{}) {
	for key := range delta {
		c.pairs[key] = struct{}{}
	}
}
