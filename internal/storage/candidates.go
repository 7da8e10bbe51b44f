package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/skymerge/saucer/internal/common"
	"github.com/skymerge/saucer/internal/model"
)

// InsertCandidatePairs stores a batch of candidate pairs. Members are put
// in canonical order, self-pairs are dropped, and pairs already present
// keep their original score and method. Returns the number of rows
// actually inserted.
func (s *SQLiteStorage) InsertCandidatePairs(ctx context.Context, pairs []model.CandidatePair) (int64, error) {
	// Validate inputs
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateCandidatePairs(pairs); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted, err := s.insertCandidatePairsTx(ctx, tx, pairs)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit candidate pairs: %w", err)
	}
	return inserted, nil
}

func (s *SQLiteStorage) insertCandidatePairsTx(ctx context.Context, tx *sql.Tx, pairs []model.CandidatePair) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO duplicate_candidates (
			sighting_id_a, sighting_id_b, similarity_score, match_method, status
		) VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare candidate statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	var inserted int64
	for _, pair := range pairs {
		a, b := pair.SightingA, pair.SightingB
		if a == b {
			continue
		}
		if a > b {
			a, b = b, a
		}

		status := pair.Status
		if status == "" {
			status = model.StatusPending
		}

		res, execErr := stmt.ExecContext(ctx, a, b, pair.Score, pair.Method, string(status))
		if execErr != nil {
			return inserted, fmt.Errorf("failed to insert candidate pair (%d, %d): %w", a, b, execErr)
		}

		affected, affErr := res.RowsAffected()
		if affErr != nil {
			return inserted, fmt.Errorf("failed to read insert result: %w", affErr)
		}
		inserted += affected
	}

	return inserted, nil
}

// ListClaimedPairs returns the canonical keys of every stored candidate
// pair. The matcher seeds its skip set from this.
func (s *SQLiteStorage) ListClaimedPairs(ctx context.Context) ([]model.PairKey, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sighting_id_a, sighting_id_b FROM duplicate_candidates
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query claimed pairs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	keys := make([]model.PairKey, 0, 1024)
	for rows.Next() {
		var key model.PairKey
		if scanErr := rows.Scan(&key.A, &key.B); scanErr != nil {
			return nil, fmt.Errorf("failed to scan claimed pair: %w", scanErr)
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate claimed pairs: %w", err)
	}
	return keys, nil
}

// GetCandidatesForSighting returns every candidate pair a sighting appears
// in, best score first.
func (s *SQLiteStorage) GetCandidatesForSighting(ctx context.Context, sightingID int64) ([]model.CandidatePair, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(sightingID, "sightingID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sighting_id_a, sighting_id_b, similarity_score, match_method,
		       status, resolved_at, created_at
		FROM duplicate_candidates
		WHERE sighting_id_a = ? OR sighting_id_b = ?
		ORDER BY similarity_score DESC, id
	`, sightingID, sightingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates for sighting: %w", err)
	}
	return scanCandidateRows(rows)
}

// GetCandidatesByMethod returns the candidate pairs one match rule
// produced, best score first.
func (s *SQLiteStorage) GetCandidatesByMethod(ctx context.Context, method string) ([]model.CandidatePair, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(method, "method"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sighting_id_a, sighting_id_b, similarity_score, match_method,
		       status, resolved_at, created_at
		FROM duplicate_candidates
		WHERE match_method = ?
		ORDER BY similarity_score DESC, id
	`, method)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates by method: %w", err)
	}
	return scanCandidateRows(rows)
}

// GetCandidatesByScoreRange returns candidate pairs scored within
// [low, high], best score first.
func (s *SQLiteStorage) GetCandidatesByScoreRange(ctx context.Context, low, high float64) ([]model.CandidatePair, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateScore(low); err != nil {
		return nil, err
	}
	if err := validateScore(high); err != nil {
		return nil, err
	}
	if low > high {
		return nil, fmt.Errorf("%w: %v > %v", ErrInvalidScoreRange, low, high)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sighting_id_a, sighting_id_b, similarity_score, match_method,
		       status, resolved_at, created_at
		FROM duplicate_candidates
		WHERE similarity_score >= ? AND similarity_score <= ?
		ORDER BY similarity_score DESC, id
	`, low, high)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates by score: %w", err)
	}
	return scanCandidateRows(rows)
}

// CountCandidates returns the number of stored candidate pairs.
func (s *SQLiteStorage) CountCandidates(ctx context.Context) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM duplicate_candidates`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count candidates: %w", err)
	}
	return count, nil
}

// UpdateCandidateStatus records an adjudication decision. Terminal statuses
// stamp resolved_at; moving a pair back to pending clears it.
func (s *SQLiteStorage) UpdateCandidateStatus(ctx context.Context, id int64, status model.CandidateStatus) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(id, "id"); err != nil {
		return err
	}
	if err := validateStatus(status); err != nil {
		return err
	}

	var res sql.Result
	var err error
	if status == model.StatusPending {
		res, err = s.db.ExecContext(ctx, `
			UPDATE duplicate_candidates SET status = ?, resolved_at = NULL WHERE id = ?
		`, string(status), id)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE duplicate_candidates SET status = ?, resolved_at = CURRENT_TIMESTAMP WHERE id = ?
		`, string(status), id)
	}
	if err != nil {
		return fmt.Errorf("failed to update candidate status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: candidate %d", common.ErrNotFound, id)
	}
	return nil
}

// scanCandidateRows drains a candidate query into pairs.
func scanCandidateRows(rows *sql.Rows) ([]model.CandidatePair, error) {
	defer func() { _ = rows.Close() }()

	pairs := make([]model.CandidatePair, 0, 64)
	for rows.Next() {
		var pair model.CandidatePair
		var resolvedAt sql.NullTime

		if err := rows.Scan(
			&pair.ID,
			&pair.SightingA,
			&pair.SightingB,
			&pair.Score,
			&pair.Method,
			&pair.Status,
			&resolvedAt,
			&pair.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan candidate pair: %w", err)
		}

		if resolvedAt.Valid {
			t := resolvedAt.Time
			pair.ResolvedAt = &t
		}
		pairs = append(pairs, pair)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate candidate pairs: %w", err)
	}
	return pairs, nil
}
