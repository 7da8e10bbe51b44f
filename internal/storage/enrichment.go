package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/skymerge/saucer/internal/model"
)

// ListEnrichableSightings returns sightings from one source that are
// missing at least one classification field, with the day and location
// keys needed to look them up in a sidecar export.
func (s *SQLiteStorage) ListEnrichableSightings(ctx context.Context, source model.SourceID) ([]model.EnrichTarget, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateSource(source); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, SUBSTR(COALESCE(s.date_event, ''), 1, 10),
		       l.city, l.state, s.hynek_class, s.vallee_class, s.shape
		FROM sightings s
		LEFT JOIN locations l ON s.location_id = l.id
		WHERE s.source_db_id = ?
		  AND (s.hynek_class IS NULL OR s.hynek_class = ''
		   OR s.vallee_class IS NULL OR s.vallee_class = ''
		   OR s.shape IS NULL OR s.shape = '')
		ORDER BY s.id
	`, int64(source))
	if err != nil {
		return nil, fmt.Errorf("failed to query enrichable sightings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var targets []model.EnrichTarget
	for rows.Next() {
		var target model.EnrichTarget
		var city, state, hynek, vallee, shape sql.NullString

		if scanErr := rows.Scan(&target.ID, &target.Day, &city, &state, &hynek, &vallee, &shape); scanErr != nil {
			return nil, fmt.Errorf("failed to scan enrichable sighting: %w", scanErr)
		}

		target.City = city.String
		target.State = state.String
		target.NeedsHynek = !hynek.Valid || hynek.String == ""
		target.NeedsVallee = !vallee.Valid || vallee.String == ""
		target.NeedsShape = !shape.Valid || shape.String == ""
		targets = append(targets, target)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate enrichable sightings: %w", err)
	}
	return targets, nil
}

// ApplyEnrichment fills missing classification fields in one transaction.
// Existing values are never overwritten; the returned count is the number
// of sightings that actually gained a value.
func (s *SQLiteStorage) ApplyEnrichment(ctx context.Context, updates []model.EnrichmentUpdate) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateEnrichmentUpdates(updates); err != nil {
		return 0, err
	}
	if len(updates) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE sightings
		SET hynek_class = COALESCE(NULLIF(hynek_class, ''), NULLIF(?, '')),
		    vallee_class = COALESCE(NULLIF(vallee_class, ''), NULLIF(?, '')),
		    shape = COALESCE(NULLIF(shape, ''), NULLIF(?, ''))
		WHERE id = ?
		  AND (((hynek_class IS NULL OR hynek_class = '') AND ? != '')
		   OR ((vallee_class IS NULL OR vallee_class = '') AND ? != '')
		   OR ((shape IS NULL OR shape = '') AND ? != ''))
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare enrichment update: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	var updated int64
	for _, update := range updates {
		result, execErr := stmt.ExecContext(ctx,
			update.HynekClass, update.ValleeClass, update.Shape,
			update.SightingID,
			update.HynekClass, update.ValleeClass, update.Shape,
		)
		if execErr != nil {
			return 0, fmt.Errorf("failed to update sighting %d: %w", update.SightingID, execErr)
		}

		affected, affErr := result.RowsAffected()
		if affErr != nil {
			return 0, fmt.Errorf("failed to read rows affected: %w", affErr)
		}
		updated += affected
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit enrichment: %w", err)
	}
	return updated, nil
}
