package matcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/skymerge/saucer/internal/model"
	"github.com/skymerge/saucer/internal/normalize"
)

// groupKey is the composite key records group on. State is empty for
// city-only joins and for records that never had one.
type groupKey struct {
	day   string
	city  string
	state string
}

// excludeReason names why a record stays out of a join.
type excludeReason int

const (
	included excludeReason = iota
	excludedNoCity
	excludedCountry
	excludedUnparsed
)

// keyFunc derives a record's match key for one side of a join.
type keyFunc func(model.MatchRecord) (groupKey, excludeReason)

// keyKind names how one side of a join derives its match key. Joins
// share grouped sides through it, so a record excluded from a kind is
// tallied once per tier, not once per join.
type keyKind int

const (
	keyStructured keyKind = iota
	keyCatalog
	keyParsed
	keyCityOnlyStructured
	keyCityOnlyCatalog
)

func (k keyKind) fn() keyFunc {
	switch k {
	case keyCatalog:
		return catalogKey
	case keyParsed:
		return parsedKey
	case keyCityOnlyStructured:
		return cityOnlyUS(structuredKey)
	case keyCityOnlyCatalog:
		return cityOnlyUS(catalogKey)
	default:
		return structuredKey
	}
}

// joinSpec describes one key-tier join: two sources and the key each
// side's records group on.
type joinSpec struct {
	method   string
	left     model.SourceID
	right    model.SourceID
	leftKey  keyKind
	rightKey keyKind
}

// structuredKey keys on (day, city, state) from the structured location
// columns.
func structuredKey(r model.MatchRecord) (groupKey, excludeReason) {
	city := normalize.City(r.City)
	if r.Day == "" || city == "" {
		return groupKey{}, excludedNoCity
	}
	return groupKey{day: r.Day, city: city, state: normalize.State(r.State)}, included
}

// catalogKey keys on (day, city, state) with the city drawn from the raw
// location text. UFOCAT keeps its place name there rather than in the
// city column.
func catalogKey(r model.MatchRecord) (groupKey, excludeReason) {
	city := normalize.City(r.RawText)
	if r.Day == "" || city == "" {
		return groupKey{}, excludedNoCity
	}
	return groupKey{day: r.Day, city: city, state: normalize.State(r.State)}, included
}

// parsedKey keys on (day, city, state) parsed out of free-form location
// text, for sources without structured columns.
func parsedKey(r model.MatchRecord) (groupKey, excludeReason) {
	city, state, ok := normalize.ParseCityState(r.RawText)
	if !ok {
		return groupKey{}, excludedUnparsed
	}
	city = normalize.City(city)
	if r.Day == "" || city == "" {
		return groupKey{}, excludedNoCity
	}
	return groupKey{day: r.Day, city: city, state: state}, included
}

// cityOnlyUS wraps a key func, dropping the state component and admitting
// only US records on both sides of the join.
func cityOnlyUS(key keyFunc) keyFunc {
	return func(r model.MatchRecord) (groupKey, excludeReason) {
		if !usCountry(r.Country) {
			return groupKey{}, excludedCountry
		}
		k, reason := key(r)
		if reason != included {
			return groupKey{}, reason
		}
		k.state = ""
		return k, included
	}
}

// usCountry reports whether a stored country field names the United
// States. Sources disagree on the spelling.
func usCountry(country string) bool {
	switch strings.ToUpper(strings.TrimSpace(country)) {
	case "US", "USA":
		return true
	default:
		return false
	}
}

// tier1Joins returns the highest-precision join: the two sources with
// the most reliable structured locations.
func tier1Joins() []joinSpec {
	return []joinSpec{
		{
			method:   model.MethodTier1MufonNuforc,
			left:     model.SourceMUFON,
			right:    model.SourceNUFORC,
			leftKey:  keyStructured,
			rightKey: keyStructured,
		},
	}
}

// tier2Joins returns the catalog joins: UFOCAT by its raw-text city, UPDB
// by city alone within the US, and UFO-search by parsed location.
func tier2Joins() []joinSpec {
	return []joinSpec{
		{
			method:   model.MethodTier2aMufonUfocat,
			left:     model.SourceMUFON,
			right:    model.SourceUFOCAT,
			leftKey:  keyStructured,
			rightKey: keyCatalog,
		},
		{
			method:   model.MethodTier2bNuforcUfocat,
			left:     model.SourceNUFORC,
			right:    model.SourceUFOCAT,
			leftKey:  keyStructured,
			rightKey: keyCatalog,
		},
		{
			method:   model.MethodTier2cUpdbMufon,
			left:     model.SourceUPDB,
			right:    model.SourceMUFON,
			leftKey:  keyCityOnlyStructured,
			rightKey: keyCityOnlyStructured,
		},
		{
			method:   model.MethodTier2cUpdbNuforc,
			left:     model.SourceUPDB,
			right:    model.SourceNUFORC,
			leftKey:  keyCityOnlyStructured,
			rightKey: keyCityOnlyStructured,
		},
		{
			method:   model.MethodTier2cUpdbUfocat,
			left:     model.SourceUPDB,
			right:    model.SourceUFOCAT,
			leftKey:  keyCityOnlyStructured,
			rightKey: keyCityOnlyCatalog,
		},
		{
			method:   model.MethodTier2dSearchMufon,
			left:     model.SourceUFOSearch,
			right:    model.SourceMUFON,
			leftKey:  keyParsed,
			rightKey: keyStructured,
		},
		{
			method:   model.MethodTier2dSearchNuforc,
			left:     model.SourceUFOSearch,
			right:    model.SourceNUFORC,
			leftKey:  keyParsed,
			rightKey: keyStructured,
		},
		{
			method:   model.MethodTier2dSearchUfocat,
			left:     model.SourceUFOSearch,
			right:    model.SourceUFOCAT,
			leftKey:  keyParsed,
			rightKey: keyCatalog,
		},
	}
}

// runKeyTier executes the joins of one key tier in a single transaction.
func (e *Engine) runKeyTier(ctx context.Context, tier int, joins []joinSpec, claimed *claimedSet, stats *RunStats) error {
	tally := newTierTally()

	records, err := e.loadMatchRecords(ctx, joins, tally)
	if err != nil {
		return err
	}

	type side struct {
		source model.SourceID
		kind   keyKind
	}
	grouped := make(map[side]map[groupKey][]model.MatchRecord)
	groupFor := func(s side) map[groupKey][]model.MatchRecord {
		if g, ok := grouped[s]; ok {
			return g
		}
		g := e.groupSide(records[s.source], s.kind.fn(), tally)
		grouped[s] = g
		return g
	}

	groups := make([]matchGroup, 0, 1024)
	for _, join := range joins {
		leftGroups := groupFor(side{source: join.left, kind: join.leftKey})
		rightGroups := groupFor(side{source: join.right, kind: join.rightKey})
		for key, left := range leftGroups {
			right, ok := rightGroups[key]
			if !ok {
				continue
			}
			groups = append(groups, matchGroup{method: join.method, left: left, right: right})
		}
	}

	if err := e.runGroups(ctx, tier, groups, claimed, tally, e.scoreKeyGroup); err != nil {
		return err
	}

	tally.mergeInto(stats)
	e.logger.Info("tier complete",
		"tier", tier,
		"records", tally.records,
		"groups", tally.groups,
		"pairs_scored", tally.scored,
		"pairs_inserted", tally.inserted,
		"skipped_claimed", tally.claimed,
		"skipped_no_city", tally.noCity,
		"skipped_country", tally.country,
		"skipped_unparseable", tally.unparsed)
	return nil
}

// loadMatchRecords loads each source a tier's joins touch, once.
func (e *Engine) loadMatchRecords(ctx context.Context, joins []joinSpec, tally *tierTally) (map[model.SourceID][]model.MatchRecord, error) {
	records := make(map[model.SourceID][]model.MatchRecord)
	for _, join := range joins {
		for _, source := range []model.SourceID{join.left, join.right} {
			if _, ok := records[source]; ok {
				continue
			}
			recs, err := e.storage.ListMatchRecords(ctx, source)
			if err != nil {
				return nil, fmt.Errorf("failed to load %s records: %w", source.Name(), err)
			}
			records[source] = recs
			tally.records += int64(len(recs))
		}
	}
	return records, nil
}

// groupSide buckets one side's records by key, tallying exclusions.
func (e *Engine) groupSide(records []model.MatchRecord, key keyFunc, tally *tierTally) map[groupKey][]model.MatchRecord {
	groups := make(map[groupKey][]model.MatchRecord)
	for _, rec := range records {
		k, reason := key(rec)
		switch reason {
		case included:
			groups[k] = append(groups[k], rec)
		case excludedNoCity:
			tally.noCity++
			e.logger.Debug("record missing day or city", "sighting_id", rec.ID)
		case excludedCountry:
			tally.country++
		case excludedUnparsed:
			tally.unparsed++
			e.logger.Debug("unparseable location",
				"sighting_id", rec.ID,
				"raw_text", rec.RawText)
		}
	}
	return groups
}

// scoreKeyGroup scores the cartesian product of a key group's two sides.
// Key equality is the match; the score only annotates it.
func (e *Engine) scoreKeyGroup(group matchGroup, snapshot map[model.PairKey]struct{}) groupResult {
	var res groupResult
	res.pairs = make([]model.CandidatePair, 0, len(group.left)*len(group.right))

	for _, l := range group.left {
		for _, r := range group.right {
			key := model.NewPairKey(l.ID, r.ID)
			if !key.Valid() {
				continue
			}
			if _, ok := snapshot[key]; ok {
				res.claimed++
				continue
			}
			score := e.scorer.Score(l.Source, l.Description, r.Source, r.Description)
			res.scored++
			res.pairs = append(res.pairs, model.CandidatePair{
				SightingA: key.A,
				SightingB: key.B,
				Score:     score,
				Method:    group.method,
				Status:    model.StatusPending,
			})
		}
	}
	return res
}
