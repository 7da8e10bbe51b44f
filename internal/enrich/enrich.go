// Package enrich backfills missing classification metadata on stored
// sightings from a catalog sidecar export. Catalog rows that were too thin
// to import as sightings still carry Hynek and Vallee classifications and
// shape values worth copying onto the reports they describe.
package enrich

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/skymerge/saucer/internal/model"
	"github.com/skymerge/saucer/internal/normalize"
	"github.com/skymerge/saucer/internal/service"
)

// sidecarRecord is one line of the sidecar export: the key fields plus
// whatever classification metadata the catalog row carried.
type sidecarRecord struct {
	Date     string `json:"date"`
	Location string `json:"location"`
	State    string `json:"state"`
	Hynek    string `json:"hynek"`
	Vallee   string `json:"vallee"`
	Shape    string `json:"shape"`
}

func (r sidecarRecord) hasMetadata() bool {
	return r.Hynek != "" || r.Vallee != "" || r.Shape != ""
}

// enrichKey groups both sides of the backfill. Same key the structured
// match tier joins on: event day plus normalized city and state.
type enrichKey struct {
	day   string
	city  string
	state string
}

// Stats summarizes one enrichment pass.
type Stats struct {
	SidecarRecords   int64
	SidecarGroups    int64
	MalformedLines   int64
	Targets          int64
	MatchedTargets   int64
	HynekAdded       int64
	ValleeAdded      int64
	ShapeAdded       int64
	SightingsUpdated int64
	UnmatchedSidecar int64
}

// Enricher matches sidecar metadata against the archive.
type Enricher struct {
	storage service.Storage
	logger  *slog.Logger
}

// New creates an enricher.
func New(storage service.Storage, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{storage: storage, logger: logger}
}

// Run reads the sidecar and fills classification fields that are missing
// on the stored side. Both sides group by (day, city, state); within a
// group the first sidecar record carrying any metadata supplies the
// values. Existing values are never overwritten, so the pass is safe to
// repeat.
func (e *Enricher) Run(ctx context.Context, sidecar io.Reader, source model.SourceID) (*Stats, error) {
	stats := &Stats{}

	groups, err := e.loadSidecar(sidecar, stats)
	if err != nil {
		return stats, err
	}

	targets, err := e.storage.ListEnrichableSightings(ctx, source)
	if err != nil {
		return stats, fmt.Errorf("failed to load enrichable sightings: %w", err)
	}
	stats.Targets = int64(len(targets))

	e.logger.Info("enrichment started",
		"source", source.Name(),
		"sidecar_records", stats.SidecarRecords,
		"sidecar_groups", stats.SidecarGroups,
		"targets", stats.Targets)

	updates := make([]model.EnrichmentUpdate, 0, len(targets))
	matched := make(map[enrichKey]bool)

	for _, target := range targets {
		city := normalize.City(target.City)
		if target.Day == "" || city == "" {
			continue
		}
		key := enrichKey{day: target.Day, city: city, state: normalize.State(target.State)}
		recs, ok := groups[key]
		if !ok {
			continue
		}
		matched[key] = true

		rec, ok := firstWithMetadata(recs)
		if !ok {
			continue
		}

		update := model.EnrichmentUpdate{SightingID: target.ID}
		if target.NeedsHynek && rec.Hynek != "" {
			update.HynekClass = rec.Hynek
			stats.HynekAdded++
		}
		if target.NeedsVallee && rec.Vallee != "" {
			update.ValleeClass = rec.Vallee
			stats.ValleeAdded++
		}
		if target.NeedsShape && rec.Shape != "" {
			update.Shape = rec.Shape
			stats.ShapeAdded++
		}
		if update.HynekClass == "" && update.ValleeClass == "" && update.Shape == "" {
			continue
		}
		updates = append(updates, update)
		stats.MatchedTargets++
	}

	for key, recs := range groups {
		if !matched[key] {
			stats.UnmatchedSidecar += int64(len(recs))
		}
	}

	updated, err := e.storage.ApplyEnrichment(ctx, updates)
	if err != nil {
		return stats, fmt.Errorf("failed to apply enrichment: %w", err)
	}
	stats.SightingsUpdated = updated

	e.logger.Info("enrichment complete",
		"sightings_updated", stats.SightingsUpdated,
		"hynek_added", stats.HynekAdded,
		"vallee_added", stats.ValleeAdded,
		"shape_added", stats.ShapeAdded,
		"unmatched_sidecar", stats.UnmatchedSidecar)
	return stats, nil
}

// loadSidecar reads the sidecar line by line, keying usable records for
// the join. Records without a date or a parsable place are dropped, like
// the importer dropped them from the archive itself.
func (e *Enricher) loadSidecar(r io.Reader, stats *Stats) (map[enrichKey][]sidecarRecord, error) {
	groups := make(map[enrichKey][]sidecarRecord)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var rec sidecarRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			stats.MalformedLines++
			e.logger.Warn("skipping malformed sidecar line", "line", line, "error", err)
			continue
		}

		day := normalize.Day(rec.Date)
		city := normalize.City(rec.Location)
		if day == "" || city == "" {
			continue
		}

		key := enrichKey{day: day, city: city, state: normalize.State(rec.State)}
		groups[key] = append(groups[key], rec)
		stats.SidecarRecords++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sidecar: %w", err)
	}

	stats.SidecarGroups = int64(len(groups))
	return groups, nil
}

// firstWithMetadata returns the first record of a group that has anything
// to offer. The sidecar preserves catalog order, so ties go to the earliest
// catalog row.
func firstWithMetadata(recs []sidecarRecord) (sidecarRecord, bool) {
	for _, rec := range recs {
		if rec.hasMetadata() {
			return rec, true
		}
	}
	return sidecarRecord{}, false
}
