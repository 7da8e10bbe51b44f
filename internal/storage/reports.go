package storage

import (
	"context"
	"fmt"

	"github.com/skymerge/saucer/internal/model"
	"github.com/skymerge/saucer/internal/service"
)

// scoreBands defines the fixed histogram the verification report uses.
// The top band includes 1.0; the rest are half-open.
var scoreBands = []service.ScoreBand{
	{Label: "certain", Low: 0.9, High: 1.0},
	{Label: "likely", Low: 0.7, High: 0.9},
	{Label: "possible", Low: 0.5, High: 0.7},
	{Label: "weak", Low: 0.3, High: 0.5},
	{Label: "unlikely", Low: 0.0, High: 0.3},
}

// GetMethodStats aggregates stored candidates per match rule, most
// productive rule first.
func (s *SQLiteStorage) GetMethodStats(ctx context.Context) ([]service.MethodStat, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT match_method, COUNT(*), AVG(similarity_score),
		       MIN(similarity_score), MAX(similarity_score)
		FROM duplicate_candidates
		GROUP BY match_method
		ORDER BY COUNT(*) DESC, match_method
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query method stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := make([]service.MethodStat, 0, 16)
	for rows.Next() {
		var stat service.MethodStat
		if scanErr := rows.Scan(&stat.Method, &stat.Count, &stat.Avg, &stat.Min, &stat.Max); scanErr != nil {
			return nil, fmt.Errorf("failed to scan method stat: %w", scanErr)
		}
		stats = append(stats, stat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate method stats: %w", err)
	}
	return stats, nil
}

// GetScoreDistribution counts candidates per confidence band, highest
// band first.
func (s *SQLiteStorage) GetScoreDistribution(ctx context.Context) ([]service.ScoreBand, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	bands := make([]service.ScoreBand, len(scoreBands))
	copy(bands, scoreBands)

	for i := range bands {
		query := `SELECT COUNT(*) FROM duplicate_candidates WHERE similarity_score >= ? AND similarity_score < ?`
		if i == 0 {
			query = `SELECT COUNT(*) FROM duplicate_candidates WHERE similarity_score >= ? AND similarity_score <= ?`
		}
		if err := s.db.QueryRowContext(ctx, query, bands[i].Low, bands[i].High).Scan(&bands[i].Count); err != nil {
			return nil, fmt.Errorf("failed to count score band %s: %w", bands[i].Label, err)
		}
	}

	return bands, nil
}

// GetTopCandidates returns the highest scored pairs joined with enough
// sighting context to print.
func (s *SQLiteStorage) GetTopCandidates(ctx context.Context, limit int) ([]service.CandidateDetail, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT dc.id, dc.sighting_id_a, dc.sighting_id_b, dc.similarity_score, dc.match_method,
		       sa.source_db_id, sb.source_db_id,
		       SUBSTR(COALESCE(sa.date_event, ''), 1, 10),
		       SUBSTR(COALESCE(sb.date_event, ''), 1, 10),
		       COALESCE(sa.summary, sa.description, ''),
		       COALESCE(sb.summary, sb.description, '')
		FROM duplicate_candidates dc
		JOIN sightings sa ON dc.sighting_id_a = sa.id
		JOIN sightings sb ON dc.sighting_id_b = sb.id
		ORDER BY dc.similarity_score DESC, dc.id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top candidates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	details := make([]service.CandidateDetail, 0, limit)
	for rows.Next() {
		var d service.CandidateDetail
		if scanErr := rows.Scan(
			&d.ID, &d.SightingA, &d.SightingB, &d.Score, &d.Method,
			&d.SourceA, &d.SourceB, &d.DayA, &d.DayB, &d.SummaryA, &d.SummaryB,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan top candidate: %w", scanErr)
		}
		details = append(details, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate top candidates: %w", err)
	}
	return details, nil
}

// CountInvolvedSightings counts the distinct sightings appearing in at
// least one candidate pair.
func (s *SQLiteStorage) CountInvolvedSightings(ctx context.Context) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT sighting_id_a AS sighting_id FROM duplicate_candidates
			UNION
			SELECT sighting_id_b FROM duplicate_candidates
		)
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count involved sightings: %w", err)
	}
	return count, nil
}

// GetArchiveSummary aggregates the whole archive for the stats command.
func (s *SQLiteStorage) GetArchiveSummary(ctx context.Context) (*service.ArchiveSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	summary := &service.ArchiveSummary{
		CandidatesByStatus: make(map[model.CandidateStatus]int64),
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sightings`).Scan(&summary.TotalSightings); err != nil {
		return nil, fmt.Errorf("failed to count sightings: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM duplicate_candidates`).Scan(&summary.TotalCandidates); err != nil {
		return nil, fmt.Errorf("failed to count candidates: %w", err)
	}

	srcRows, err := s.db.QueryContext(ctx, `
		SELECT s.source_db_id, sd.name, COUNT(*),
		       SUM(CASE WHEN s.date_event IS NOT NULL AND s.date_event != '' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN s.location_id IS NOT NULL THEN 1 ELSE 0 END)
		FROM sightings s
		JOIN source_databases sd ON sd.id = s.source_db_id
		GROUP BY s.source_db_id, sd.name
		ORDER BY s.source_db_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query source counts: %w", err)
	}
	defer func() { _ = srcRows.Close() }()

	for srcRows.Next() {
		var sc service.SourceCount
		if scanErr := srcRows.Scan(&sc.Source, &sc.Name, &sc.Count, &sc.Dated, &sc.Located); scanErr != nil {
			return nil, fmt.Errorf("failed to scan source count: %w", scanErr)
		}
		summary.BySource = append(summary.BySource, sc)
	}
	if err := srcRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate source counts: %w", err)
	}

	shapeRows, err := s.db.QueryContext(ctx, `
		SELECT shape, COUNT(*)
		FROM sightings
		WHERE shape IS NOT NULL AND shape != ''
		GROUP BY shape
		ORDER BY COUNT(*) DESC, shape
		LIMIT 10
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query shapes: %w", err)
	}
	defer func() { _ = shapeRows.Close() }()

	for shapeRows.Next() {
		var sc service.ShapeCount
		if scanErr := shapeRows.Scan(&sc.Shape, &sc.Count); scanErr != nil {
			return nil, fmt.Errorf("failed to scan shape count: %w", scanErr)
		}
		summary.TopShapes = append(summary.TopShapes, sc)
	}
	if err := shapeRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shape counts: %w", err)
	}

	statusRows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM duplicate_candidates GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidate statuses: %w", err)
	}
	defer func() { _ = statusRows.Close() }()

	for statusRows.Next() {
		var status model.CandidateStatus
		var count int64
		if scanErr := statusRows.Scan(&status, &count); scanErr != nil {
			return nil, fmt.Errorf("failed to scan candidate status: %w", scanErr)
		}
		summary.CandidatesByStatus[status] = count
	}
	if err := statusRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate candidate statuses: %w", err)
	}

	return summary, nil
}
