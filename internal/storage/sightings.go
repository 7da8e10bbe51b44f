package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/skymerge/saucer/internal/common"
	"github.com/skymerge/saucer/internal/model"
)

// queryable is an interface satisfied by both *sql.DB and *sql.Tx.
type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// nullableString maps empty strings to NULL so partial upstream records
// stay distinguishable from fields that are genuinely blank.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// SaveSightings inserts sightings along with their locations. Assigned row
// IDs are written back into the slice elements.
func (s *SQLiteStorage) SaveSightings(ctx context.Context, sightings []model.Sighting) error {
	// Validate inputs
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSightings(sightings); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.saveSightingsTx(ctx, tx, sightings); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) saveSightingsTx(ctx context.Context, tx *sql.Tx, sightings []model.Sighting) error {
	locStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO locations (raw_text, city, county, state, country, latitude, longitude)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare location statement: %w", err)
	}
	defer func() { _ = locStmt.Close() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sightings (
			source_db_id, source_ref, date_event, date_event_raw, location_id,
			summary, description, shape, duration, num_witnesses,
			hynek_class, vallee_class, event_type, raw_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare sighting statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range sightings {
		sighting := &sightings[i]

		var locationID any
		if loc := sighting.Location; loc != nil {
			res, locErr := locStmt.ExecContext(ctx,
				nullableString(loc.RawText),
				nullableString(loc.City),
				nullableString(loc.County),
				nullableString(loc.State),
				nullableString(loc.Country),
				loc.Latitude,
				loc.Longitude,
			)
			if locErr != nil {
				return fmt.Errorf("failed to insert location: %w", locErr)
			}
			id, idErr := res.LastInsertId()
			if idErr != nil {
				return fmt.Errorf("failed to read location id: %w", idErr)
			}
			loc.ID = id
			sighting.LocationID = id
			locationID = id
		}

		var witnesses any
		if sighting.NumWitnesses > 0 {
			witnesses = sighting.NumWitnesses
		}

		res, execErr := stmt.ExecContext(ctx,
			int64(sighting.Source),
			nullableString(sighting.SourceRef),
			nullableString(sighting.DateEvent),
			nullableString(sighting.DateEventRaw),
			locationID,
			nullableString(sighting.Summary),
			nullableString(sighting.Description),
			nullableString(sighting.Shape),
			nullableString(sighting.Duration),
			witnesses,
			nullableString(sighting.HynekClass),
			nullableString(sighting.ValleeClass),
			nullableString(sighting.EventType),
			nullableString(sighting.RawJSON),
		)
		if execErr != nil {
			return fmt.Errorf("failed to insert sighting: %w", execErr)
		}

		id, idErr := res.LastInsertId()
		if idErr != nil {
			return fmt.Errorf("failed to read sighting id: %w", idErr)
		}
		sighting.ID = id
	}

	return nil
}

// GetSightingByID loads one sighting with its location, if any.
func (s *SQLiteStorage) GetSightingByID(ctx context.Context, id int64) (*model.Sighting, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(id, "id"); err != nil {
		return nil, err
	}
	return s.getSightingByIDTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getSightingByIDTx(ctx context.Context, q queryable, id int64) (*model.Sighting, error) {
	var sighting model.Sighting
	var sourceRef, dateEvent, dateEventRaw, summary, description sql.NullString
	var shape, duration, hynek, vallee, eventType, rawJSON sql.NullString
	var locRawText, locCity, locCounty, locState, locCountry sql.NullString
	var locationID, witnesses sql.NullInt64
	var locLat, locLon sql.NullFloat64

	err := q.QueryRowContext(ctx, `
		SELECT s.id, s.source_db_id, s.source_ref, s.date_event, s.date_event_raw,
		       s.location_id, s.summary, s.description, s.shape, s.duration,
		       s.num_witnesses, s.hynek_class, s.vallee_class, s.event_type, s.raw_json,
		       l.raw_text, l.city, l.county, l.state, l.country, l.latitude, l.longitude
		FROM sightings s
		LEFT JOIN locations l ON s.location_id = l.id
		WHERE s.id = ?
	`, id).Scan(
		&sighting.ID,
		&sighting.Source,
		&sourceRef,
		&dateEvent,
		&dateEventRaw,
		&locationID,
		&summary,
		&description,
		&shape,
		&duration,
		&witnesses,
		&hynek,
		&vallee,
		&eventType,
		&rawJSON,
		&locRawText,
		&locCity,
		&locCounty,
		&locState,
		&locCountry,
		&locLat,
		&locLon,
	)

	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sighting: %w", err)
	}

	sighting.SourceRef = sourceRef.String
	sighting.DateEvent = dateEvent.String
	sighting.DateEventRaw = dateEventRaw.String
	sighting.Summary = summary.String
	sighting.Description = description.String
	sighting.Shape = shape.String
	sighting.Duration = duration.String
	sighting.HynekClass = hynek.String
	sighting.ValleeClass = vallee.String
	sighting.EventType = eventType.String
	sighting.RawJSON = rawJSON.String
	sighting.NumWitnesses = witnesses.Int64

	if locationID.Valid {
		sighting.LocationID = locationID.Int64
		loc := &model.Location{
			ID:      locationID.Int64,
			RawText: locRawText.String,
			City:    locCity.String,
			County:  locCounty.String,
			State:   locState.String,
			Country: locCountry.String,
		}
		if locLat.Valid {
			lat := locLat.Float64
			loc.Latitude = &lat
		}
		if locLon.Valid {
			lon := locLon.Float64
			loc.Longitude = &lon
		}
		sighting.Location = loc
	}

	return &sighting, nil
}

// CountSightings returns the number of archived sightings.
func (s *SQLiteStorage) CountSightings(ctx context.Context) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sightings`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sightings: %w", err)
	}
	return count, nil
}

// ListMatchRecords loads the dated, located records of one source in the
// projection the key tiers group on. The day column is the raw ten
// character date prefix; city and state come back as stored, with
// normalization left to the matcher.
func (s *SQLiteStorage) ListMatchRecords(ctx context.Context, source model.SourceID) ([]model.MatchRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateSource(source); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, SUBSTR(s.date_event, 1, 10), l.city, l.state, l.country,
		       l.raw_text, s.description
		FROM sightings s
		INNER JOIN locations l ON s.location_id = l.id
		WHERE s.source_db_id = ? AND s.date_event IS NOT NULL AND s.date_event != ''
		ORDER BY s.id
	`, int64(source))
	if err != nil {
		return nil, fmt.Errorf("failed to query match records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]model.MatchRecord, 0, 1024)
	for rows.Next() {
		var rec model.MatchRecord
		var city, state, country, rawText, description sql.NullString

		if scanErr := rows.Scan(&rec.ID, &rec.Day, &city, &state, &country, &rawText, &description); scanErr != nil {
			return nil, fmt.Errorf("failed to scan match record: %w", scanErr)
		}

		rec.Source = source
		rec.City = city.String
		rec.State = state.String
		rec.Country = country.String
		rec.RawText = rawText.String
		rec.Description = description.String
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate match records: %w", err)
	}
	return records, nil
}

// ListDatedRecords loads every record carrying a full event day, across
// all sources and regardless of location, for the fuzzy tier.
func (s *SQLiteStorage) ListDatedRecords(ctx context.Context) ([]model.MatchRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.source_db_id, SUBSTR(s.date_event, 1, 10), s.description
		FROM sightings s
		WHERE s.date_event IS NOT NULL AND LENGTH(s.date_event) >= 10
		ORDER BY s.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query dated records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]model.MatchRecord, 0, 1024)
	for rows.Next() {
		var rec model.MatchRecord
		var description sql.NullString

		if scanErr := rows.Scan(&rec.ID, &rec.Source, &rec.Day, &description); scanErr != nil {
			return nil, fmt.Errorf("failed to scan dated record: %w", scanErr)
		}

		rec.Description = description.String
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dated records: %w", err)
	}
	return records, nil
}
