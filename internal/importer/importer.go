// Package importer loads canonical sighting records into the archive.
// Input is JSON Lines, one record per line, as produced by the per-source
// extraction scripts. Scraping and parsing the upstream databases into
// that canonical form happens outside this program.
package importer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/skymerge/saucer/internal/model"
	"github.com/skymerge/saucer/internal/service"
)

// DefaultBatchSize is the number of records saved per storage call.
const DefaultBatchSize = 5000

// sourceValue accepts the source as either a numeric ID or a name.
type sourceValue struct {
	id model.SourceID
}

func (v *sourceValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		// Unknown names leave the zero ID for the record check to reject.
		if id, err := model.ParseSource(name); err == nil {
			v.id = id
		}
		return nil
	}
	var id int64
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	v.id = model.SourceID(id)
	return nil
}

type locationRecord struct {
	RawText   string   `json:"raw_text"`
	City      string   `json:"city"`
	County    string   `json:"county"`
	State     string   `json:"state"`
	Country   string   `json:"country"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (l *locationRecord) empty() bool {
	return l == nil || (l.RawText == "" && l.City == "" && l.County == "" &&
		l.State == "" && l.Country == "" && l.Latitude == nil && l.Longitude == nil)
}

// record is one line of the canonical import format.
type record struct {
	Source       sourceValue     `json:"source"`
	SourceRef    string          `json:"source_ref"`
	DateEvent    string          `json:"date_event"`
	DateEventRaw string          `json:"date_event_raw"`
	Location     *locationRecord `json:"location"`
	Summary      string          `json:"summary"`
	Description  string          `json:"description"`
	Shape        string          `json:"shape"`
	Duration     string          `json:"duration"`
	NumWitnesses int64           `json:"num_witnesses"`
	HynekClass   string          `json:"hynek_class"`
	ValleeClass  string          `json:"vallee_class"`
	EventType    string          `json:"event_type"`
}

// toSighting converts a decoded record, rejecting ones the archive would
// refuse so the failure carries a line number instead of a batch index.
func (r *record) toSighting() (model.Sighting, error) {
	if !r.Source.id.Valid() {
		return model.Sighting{}, fmt.Errorf("record names no known source")
	}
	if r.SourceRef == "" && r.Description == "" && r.Summary == "" {
		return model.Sighting{}, fmt.Errorf("record carries no reference, summary or description")
	}

	sighting := model.Sighting{
		Source:       r.Source.id,
		SourceRef:    r.SourceRef,
		DateEvent:    r.DateEvent,
		DateEventRaw: r.DateEventRaw,
		Summary:      r.Summary,
		Description:  r.Description,
		Shape:        r.Shape,
		Duration:     r.Duration,
		NumWitnesses: r.NumWitnesses,
		HynekClass:   r.HynekClass,
		ValleeClass:  r.ValleeClass,
		EventType:    r.EventType,
	}
	if !r.Location.empty() {
		sighting.Location = &model.Location{
			RawText:   r.Location.RawText,
			City:      r.Location.City,
			County:    r.Location.County,
			State:     r.Location.State,
			Country:   r.Location.Country,
			Latitude:  r.Location.Latitude,
			Longitude: r.Location.Longitude,
		}
	}
	return sighting, nil
}

// Options tunes an import run.
type Options struct {
	// Progress, when set, is called after each saved batch with the number
	// of records it held.
	Progress func(added int)
	// BatchSize is the number of records per storage write.
	BatchSize int
	// Strict turns malformed and unusable lines into fatal errors.
	Strict bool
}

// Stats summarizes one import run.
type Stats struct {
	Lines     int64
	Imported  int64
	Malformed int64
	Skipped   int64
	Duration  time.Duration
}

// Importer streams canonical records into storage.
type Importer struct {
	storage service.Storage
	logger  *slog.Logger
	opts    Options
}

// New creates an importer.
func New(storage service.Storage, logger *slog.Logger, opts Options) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Importer{storage: storage, logger: logger, opts: opts}
}

// Run reads records line by line and saves them in batches. Blank lines
// are ignored. Lines that fail to decode or convert are counted and
// skipped, or abort the run in strict mode; an aborted run keeps the
// batches already saved.
func (i *Importer) Run(ctx context.Context, r io.Reader) (*Stats, error) {
	stats := &Stats{}
	start := time.Now()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	batch := make([]model.Sighting, 0, i.opts.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := i.storage.SaveSightings(ctx, batch); err != nil {
			return fmt.Errorf("failed to save batch: %w", err)
		}
		stats.Imported += int64(len(batch))
		if i.opts.Progress != nil {
			i.opts.Progress(len(batch))
		}
		batch = batch[:0]
		return nil
	}

	for scanner.Scan() {
		stats.Lines++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			stats.Malformed++
			if i.opts.Strict {
				return stats, fmt.Errorf("line %d: %w", stats.Lines, err)
			}
			i.logger.Warn("skipping malformed line", "line", stats.Lines, "error", err)
			continue
		}

		sighting, err := rec.toSighting()
		if err != nil {
			stats.Skipped++
			if i.opts.Strict {
				return stats, fmt.Errorf("line %d: %w", stats.Lines, err)
			}
			i.logger.Warn("skipping unusable record", "line", stats.Lines, "error", err)
			continue
		}
		// Keep the original line so source fields the schema has no column
		// for survive the import.
		sighting.RawJSON = string(raw)

		batch = append(batch, sighting)
		if len(batch) >= i.opts.BatchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("failed to read import stream: %w", err)
	}
	if err := flush(); err != nil {
		return stats, err
	}

	stats.Duration = time.Since(start)
	i.logger.Info("import complete",
		"lines", stats.Lines,
		"imported", stats.Imported,
		"malformed", stats.Malformed,
		"skipped", stats.Skipped,
		"duration", stats.Duration.Round(time.Millisecond))
	return stats, nil
}
