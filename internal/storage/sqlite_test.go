package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/skymerge/saucer/internal/common"
	"github.com/skymerge/saucer/internal/model"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

// Helper function to build a located, dated sighting.
func makeTestSighting(source model.SourceID, num int, day, city, state string) model.Sighting {
	ref := fmt.Sprintf("%s-%04d", source.Name(), num)
	return model.Sighting{
		Source:       source,
		SourceRef:    ref,
		DateEvent:    day,
		DateEventRaw: day,
		Summary:      fmt.Sprintf("Bright light over %s", city),
		Description:  fmt.Sprintf("A bright light hovered over %s for several minutes before accelerating away.", city),
		Shape:        "light",
		Duration:     "5 minutes",
		NumWitnesses: 2,
		Location: &model.Location{
			RawText: city + ", " + state,
			City:    city,
			State:   state,
			Country: "USA",
		},
	}
}

// Helper function to save sightings and return their assigned IDs.
func mustSaveSightings(t *testing.T, store *SQLiteStorage, sightings []model.Sighting) []int64 {
	t.Helper()
	ctx := context.Background()
	if err := store.SaveSightings(ctx, sightings); err != nil {
		t.Fatalf("Failed to save sightings: %v", err)
	}

	ids := make([]int64, len(sightings))
	for i := range sightings {
		if sightings[i].ID == 0 {
			t.Fatalf("Sighting %d was not assigned an ID", i)
		}
		ids[i] = sightings[i].ID
	}
	return ids
}

func TestSQLiteStorage_SaveSightings(t *testing.T) {
	tests := []struct {
		validate  func(*testing.T, *SQLiteStorage, context.Context, []model.Sighting)
		name      string
		sightings []model.Sighting
		wantErr   bool
	}{
		{
			name: "save located sightings assigns IDs",
			sightings: []model.Sighting{
				makeTestSighting(model.SourceMUFON, 1, "1997-03-13", "Phoenix", "AZ"),
				makeTestSighting(model.SourceNUFORC, 1, "1997-03-13", "Phoenix", "AZ"),
			},
			validate: func(t *testing.T, s *SQLiteStorage, ctx context.Context, saved []model.Sighting) {
				t.Helper()
				for i := range saved {
					if saved[i].ID == 0 {
						t.Errorf("Sighting %d has no ID after save", i)
					}
					if saved[i].LocationID == 0 {
						t.Errorf("Sighting %d has no location ID after save", i)
					}
				}
				count, err := s.CountSightings(ctx)
				if err != nil {
					t.Fatalf("Failed to count sightings: %v", err)
				}
				if count != 2 {
					t.Errorf("Expected 2 sightings, got %d", count)
				}
			},
		},
		{
			name: "save sighting without location",
			sightings: []model.Sighting{
				{
					Source:      model.SourceUPDB,
					SourceRef:   "UPDB-0001",
					DateEvent:   "1973-10-11",
					Description: "Two fishermen reported a glowing object near the river.",
				},
			},
			validate: func(t *testing.T, s *SQLiteStorage, ctx context.Context, saved []model.Sighting) {
				t.Helper()
				got, err := s.GetSightingByID(ctx, saved[0].ID)
				if err != nil {
					t.Fatalf("Failed to get sighting: %v", err)
				}
				if got.Location != nil {
					t.Errorf("Expected no location, got %+v", got.Location)
				}
				if got.LocationID != 0 {
					t.Errorf("Expected zero location ID, got %d", got.LocationID)
				}
			},
		},
		{
			name:      "empty slice rejected",
			sightings: []model.Sighting{},
			wantErr:   true,
		},
		{
			name:      "nil slice rejected",
			sightings: nil,
			wantErr:   true,
		},
		{
			name: "unknown source rejected",
			sightings: []model.Sighting{
				{Source: 99, SourceRef: "X-1", Description: "something"},
			},
			wantErr: true,
		},
		{
			name: "record with no content rejected",
			sightings: []model.Sighting{
				{Source: model.SourceMUFON},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, cleanup := createTestStorage(t)
			defer cleanup()
			ctx := context.Background()

			err := store.SaveSightings(ctx, tt.sightings)
			if (err != nil) != tt.wantErr {
				t.Errorf("SaveSightings() error = %v, wantErr %v", err, tt.wantErr)
			}

			if tt.validate != nil {
				tt.validate(t, store, ctx, tt.sightings)
			}
		})
	}
}

func TestSQLiteStorage_GetSightingByID(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	lat, lon := 33.4484, -112.074
	sighting := makeTestSighting(model.SourceNUFORC, 7, "1997-03-13", "Phoenix", "AZ")
	sighting.Location.Latitude = &lat
	sighting.Location.Longitude = &lon
	sighting.HynekClass = "NL"
	sighting.ValleeClass = "MA1"

	ids := mustSaveSightings(t, store, []model.Sighting{sighting})

	got, err := store.GetSightingByID(ctx, ids[0])
	if err != nil {
		t.Fatalf("Failed to get sighting: %v", err)
	}

	if got.Source != model.SourceNUFORC {
		t.Errorf("Source = %d, want %d", got.Source, model.SourceNUFORC)
	}
	if got.SourceRef != "NUFORC-0007" {
		t.Errorf("SourceRef = %q, want %q", got.SourceRef, "NUFORC-0007")
	}
	if got.DateEvent != "1997-03-13" {
		t.Errorf("DateEvent = %q, want %q", got.DateEvent, "1997-03-13")
	}
	if got.HynekClass != "NL" || got.ValleeClass != "MA1" {
		t.Errorf("Classifications = %q/%q, want NL/MA1", got.HynekClass, got.ValleeClass)
	}
	if got.NumWitnesses != 2 {
		t.Errorf("NumWitnesses = %d, want 2", got.NumWitnesses)
	}
	if got.Location == nil {
		t.Fatal("Expected a location")
	}
	if got.Location.City != "Phoenix" || got.Location.State != "AZ" {
		t.Errorf("Location = %q/%q, want Phoenix/AZ", got.Location.City, got.Location.State)
	}
	if got.Location.Latitude == nil || *got.Location.Latitude != lat {
		t.Errorf("Latitude = %v, want %v", got.Location.Latitude, lat)
	}
	if got.Location.Longitude == nil || *got.Location.Longitude != lon {
		t.Errorf("Longitude = %v, want %v", got.Location.Longitude, lon)
	}

	if _, err := store.GetSightingByID(ctx, 999999); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("Missing sighting error = %v, want ErrNotFound", err)
	}
	if _, err := store.GetSightingByID(ctx, 0); err == nil {
		t.Error("Expected error for zero ID")
	}
}

func TestSQLiteStorage_ListMatchRecords(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	dated := makeTestSighting(model.SourceMUFON, 1, "1997-03-13 20:30", "Phoenix", "AZ")
	partial := makeTestSighting(model.SourceMUFON, 2, "1994", "Roswell", "NM")
	undated := makeTestSighting(model.SourceMUFON, 3, "", "Aurora", "TX")
	otherSource := makeTestSighting(model.SourceNUFORC, 1, "1997-03-13", "Phoenix", "AZ")
	unlocated := model.Sighting{
		Source:      model.SourceMUFON,
		SourceRef:   "MUFON-0004",
		DateEvent:   "1997-03-13",
		Description: "no location recorded",
	}

	mustSaveSightings(t, store, []model.Sighting{dated, partial, undated, otherSource, unlocated})

	records, err := store.ListMatchRecords(ctx, model.SourceMUFON)
	if err != nil {
		t.Fatalf("Failed to list match records: %v", err)
	}

	// Dated and partial survive; the undated, unlocated and foreign rows do not.
	if len(records) != 2 {
		t.Fatalf("Expected 2 match records, got %d", len(records))
	}
	if records[0].Day != "1997-03-13" {
		t.Errorf("Day = %q, want truncated %q", records[0].Day, "1997-03-13")
	}
	if records[1].Day != "1994" {
		t.Errorf("Day = %q, want partial date kept as %q", records[1].Day, "1994")
	}
	for _, rec := range records {
		if rec.Source != model.SourceMUFON {
			t.Errorf("Record %d has source %d, want %d", rec.ID, rec.Source, model.SourceMUFON)
		}
	}

	if _, err := store.ListMatchRecords(ctx, model.SourceID(42)); err == nil {
		t.Error("Expected error for unknown source")
	}
}

func TestSQLiteStorage_ListDatedRecords(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	full := makeTestSighting(model.SourceMUFON, 1, "1997-03-13", "Phoenix", "AZ")
	timestamped := makeTestSighting(model.SourceNUFORC, 1, "1997-03-13 20:30:00", "Phoenix", "AZ")
	partial := makeTestSighting(model.SourceUFOCAT, 1, "1994", "Roswell", "NM")
	unlocated := model.Sighting{
		Source:      model.SourceUPDB,
		SourceRef:   "UPDB-0001",
		DateEvent:   "1973-10-11",
		Description: "dated but never geolocated",
	}

	mustSaveSightings(t, store, []model.Sighting{full, timestamped, partial, unlocated})

	records, err := store.ListDatedRecords(ctx)
	if err != nil {
		t.Fatalf("Failed to list dated records: %v", err)
	}

	// Partial dates are excluded here; missing locations are not.
	if len(records) != 3 {
		t.Fatalf("Expected 3 dated records, got %d", len(records))
	}
	for _, rec := range records {
		if len(rec.Day) != 10 {
			t.Errorf("Record %d has day %q, want ten characters", rec.ID, rec.Day)
		}
	}
	if records[1].Day != "1997-03-13" {
		t.Errorf("Timestamped day = %q, want %q", records[1].Day, "1997-03-13")
	}
}

func TestSQLiteStorage_CountSightings(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	count, err := store.CountSightings(ctx)
	if err != nil {
		t.Fatalf("Failed to count sightings: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected empty archive, got %d", count)
	}

	mustSaveSightings(t, store, []model.Sighting{
		makeTestSighting(model.SourceMUFON, 1, "1997-03-13", "Phoenix", "AZ"),
		makeTestSighting(model.SourceNUFORC, 1, "1997-03-13", "Phoenix", "AZ"),
		makeTestSighting(model.SourceUFOCAT, 1, "1997-03-13", "Phoenix", "AZ"),
	})

	count, err = store.CountSightings(ctx)
	if err != nil {
		t.Fatalf("Failed to count sightings: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 sightings, got %d", count)
	}
}

func TestSQLiteStorage_ListSourceDatabases(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	sources, err := store.ListSourceDatabases(ctx)
	if err != nil {
		t.Fatalf("Failed to list source databases: %v", err)
	}
	if len(sources) != 5 {
		t.Fatalf("Expected 5 seeded sources, got %d", len(sources))
	}

	wantNames := map[model.SourceID]string{
		model.SourceMUFON:     "MUFON",
		model.SourceNUFORC:    "NUFORC",
		model.SourceUFOCAT:    "UFOCAT",
		model.SourceUPDB:      "UPDB",
		model.SourceUFOSearch: "UFO-search",
	}
	for _, src := range sources {
		want, ok := wantNames[src.ID]
		if !ok {
			t.Errorf("Unexpected source ID %d", src.ID)
			continue
		}
		if src.Name != want {
			t.Errorf("Source %d name = %q, want %q", src.ID, src.Name, want)
		}
	}
}
