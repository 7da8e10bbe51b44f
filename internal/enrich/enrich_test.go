package enrich

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/skymerge/saucer/internal/model"
	"github.com/skymerge/saucer/internal/storage"
)

func createTestStorage(t *testing.T) (*storage.SQLiteStorage, func()) {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test storage: %v", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return store, func() { _ = store.Close() }
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func saveOne(t *testing.T, store *storage.SQLiteStorage, sighting model.Sighting) int64 {
	t.Helper()

	sightings := []model.Sighting{sighting}
	if err := store.SaveSightings(context.Background(), sightings); err != nil {
		t.Fatalf("failed to save fixture: %v", err)
	}
	return sightings[0].ID
}

func nuforcSighting(ref, day, city, state string) model.Sighting {
	return model.Sighting{
		Source:      model.SourceNUFORC,
		SourceRef:   ref,
		DateEvent:   day,
		Description: "object reported over " + city,
		Location:    &model.Location{City: city, State: state, Country: "USA"},
	}
}

func TestEnricherRun_FillsMissingFields(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	id := saveOne(t, store, nuforcSighting("N-1", "1973-10-11", "Pascagoula", "MS"))

	sidecar := strings.NewReader(
		`{"date": "1973-10-11", "location": "Pascagoula", "state": "MS", "hynek": "CE3", "vallee": "D", "shape": "oval"}` + "\n")

	stats, err := New(store, testLogger()).Run(ctx, sidecar, model.SourceNUFORC)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if stats.SightingsUpdated != 1 {
		t.Errorf("SightingsUpdated = %d, want 1", stats.SightingsUpdated)
	}
	if stats.HynekAdded != 1 || stats.ValleeAdded != 1 || stats.ShapeAdded != 1 {
		t.Errorf("added (%d, %d, %d), want (1, 1, 1)",
			stats.HynekAdded, stats.ValleeAdded, stats.ShapeAdded)
	}

	got, err := store.GetSightingByID(ctx, id)
	if err != nil {
		t.Fatalf("GetSightingByID() error = %v", err)
	}
	if got.HynekClass != "CE3" || got.ValleeClass != "D" || got.Shape != "oval" {
		t.Errorf("sighting = (%q, %q, %q), want (CE3, D, oval)",
			got.HynekClass, got.ValleeClass, got.Shape)
	}
}

func TestEnricherRun_NeverOverwritesExistingValues(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	sighting := nuforcSighting("N-1", "1957-11-02", "Levelland", "TX")
	sighting.Shape = "fireball"
	id := saveOne(t, store, sighting)

	sidecar := strings.NewReader(
		`{"date": "1957-11-02", "location": "Levelland", "state": "TX", "hynek": "CE2", "vallee": "CE II", "shape": "egg"}` + "\n")

	stats, err := New(store, testLogger()).Run(ctx, sidecar, model.SourceNUFORC)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.ShapeAdded != 0 {
		t.Errorf("ShapeAdded = %d, want 0 when the field is already set", stats.ShapeAdded)
	}

	got, err := store.GetSightingByID(ctx, id)
	if err != nil {
		t.Fatalf("GetSightingByID() error = %v", err)
	}
	if got.Shape != "fireball" {
		t.Errorf("Shape = %q, want the stored value kept", got.Shape)
	}
	if got.HynekClass != "CE2" || got.ValleeClass != "CE II" {
		t.Errorf("classes = (%q, %q), want the missing fields filled", got.HynekClass, got.ValleeClass)
	}
}

func TestEnricherRun_FirstMetadataRecordSuppliesValues(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	id := saveOne(t, store, nuforcSighting("N-1", "1966-03-20", "Dexter", "MI"))

	// The first record with any metadata wins, even when a later record
	// covers more fields.
	sidecar := strings.NewReader(strings.Join([]string{
		`{"date": "1966-03-20", "location": "Dexter", "state": "MI"}`,
		`{"date": "1966-03-20", "location": "Dexter", "state": "MI", "hynek": "NL"}`,
		`{"date": "1966-03-20", "location": "Dexter", "state": "MI", "hynek": "DD", "shape": "disk"}`,
	}, "\n") + "\n")

	stats, err := New(store, testLogger()).Run(ctx, sidecar, model.SourceNUFORC)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.HynekAdded != 1 || stats.ShapeAdded != 0 {
		t.Errorf("added hynek=%d shape=%d, want 1 and 0", stats.HynekAdded, stats.ShapeAdded)
	}

	got, err := store.GetSightingByID(ctx, id)
	if err != nil {
		t.Fatalf("GetSightingByID() error = %v", err)
	}
	if got.HynekClass != "NL" {
		t.Errorf("HynekClass = %q, want NL from the first metadata record", got.HynekClass)
	}
	if got.Shape != "" {
		t.Errorf("Shape = %q, want empty", got.Shape)
	}
}

func TestEnricherRun_NormalizesKeyFields(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	id := saveOne(t, store, nuforcSighting("N-1", "1965-09-03", "Exeter", "nh"))

	sidecar := strings.NewReader(
		`{"date": "1965-09-03", "location": "exeter?", "state": "NH", "hynek": "CE1"}` + "\n")

	if _, err := New(store, testLogger()).Run(ctx, sidecar, model.SourceNUFORC); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got, err := store.GetSightingByID(ctx, id)
	if err != nil {
		t.Fatalf("GetSightingByID() error = %v", err)
	}
	if got.HynekClass != "CE1" {
		t.Errorf("HynekClass = %q, want the folded keys to match", got.HynekClass)
	}
}

func TestEnricherRun_OnlyTouchesRequestedSource(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	mufon := nuforcSighting("M-1", "1975-11-05", "Snowflake", "AZ")
	mufon.Source = model.SourceMUFON
	id := saveOne(t, store, mufon)

	sidecar := strings.NewReader(
		`{"date": "1975-11-05", "location": "Snowflake", "state": "AZ", "shape": "disk"}` + "\n")

	stats, err := New(store, testLogger()).Run(ctx, sidecar, model.SourceNUFORC)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.SightingsUpdated != 0 {
		t.Errorf("SightingsUpdated = %d, want 0", stats.SightingsUpdated)
	}
	if stats.UnmatchedSidecar != 1 {
		t.Errorf("UnmatchedSidecar = %d, want 1", stats.UnmatchedSidecar)
	}

	got, err := store.GetSightingByID(ctx, id)
	if err != nil {
		t.Fatalf("GetSightingByID() error = %v", err)
	}
	if got.Shape != "" {
		t.Errorf("Shape = %q, want the other source left alone", got.Shape)
	}
}

func TestEnricherRun_SkipsUnusableSidecarLines(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	sidecar := strings.NewReader(strings.Join([]string{
		`not json at all`,
		``,
		`{"location": "Dateless", "state": "KS", "shape": "disk"}`,
		`{"date": "1990-01-01", "state": "KS", "shape": "disk"}`,
		`{"date": "1990-01-01", "location": "Nowhere", "state": "KS", "shape": "disk"}`,
	}, "\n") + "\n")

	stats, err := New(store, testLogger()).Run(ctx, sidecar, model.SourceNUFORC)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if stats.MalformedLines != 1 {
		t.Errorf("MalformedLines = %d, want 1", stats.MalformedLines)
	}
	if stats.SidecarRecords != 1 {
		t.Errorf("SidecarRecords = %d, want only the keyed line counted", stats.SidecarRecords)
	}
	if stats.UnmatchedSidecar != 1 {
		t.Errorf("UnmatchedSidecar = %d, want 1", stats.UnmatchedSidecar)
	}
	if stats.SightingsUpdated != 0 {
		t.Errorf("SightingsUpdated = %d, want 0", stats.SightingsUpdated)
	}
}

func TestEnricherRun_EmptySidecar(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	stats, err := New(store, testLogger()).Run(context.Background(), strings.NewReader(""), model.SourceNUFORC)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.SidecarRecords != 0 || stats.SightingsUpdated != 0 {
		t.Errorf("empty sidecar produced stats %+v", stats)
	}
}

func TestFirstWithMetadata(t *testing.T) {
	recs := []sidecarRecord{
		{Date: "1990-01-01", Location: "A"},
		{Date: "1990-01-01", Location: "A", Vallee: "AN1"},
		{Date: "1990-01-01", Location: "A", Shape: "disk"},
	}

	rec, ok := firstWithMetadata(recs)
	if !ok {
		t.Fatal("expected a record")
	}
	if rec.Vallee != "AN1" {
		t.Errorf("picked %+v, want the second record", rec)
	}

	if _, ok := firstWithMetadata(recs[:1]); ok {
		t.Error("expected no record when nothing carries metadata")
	}
}
