package storage

import (
	"context"
	"fmt"

	"github.com/skymerge/saucer/internal/common"
	"github.com/skymerge/saucer/internal/model"
)

// InsertMatchRun opens the bookkeeping row for one engine invocation.
func (s *SQLiteStorage) InsertMatchRun(ctx context.Context, run *model.MatchRun) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("%w: run", ErrNilParameter)
	}
	if err := validateString(run.ID, "run.ID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO match_runs (id, started_at, tiers, status)
		VALUES (?, ?, ?, ?)
	`, run.ID, run.StartedAt, run.Tiers, string(run.Status))
	if err != nil {
		return fmt.Errorf("failed to insert match run: %w", err)
	}
	return nil
}

// FinalizeMatchRun closes a run row with its totals and final status.
func (s *SQLiteStorage) FinalizeMatchRun(ctx context.Context, run *model.MatchRun) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("%w: run", ErrNilParameter)
	}
	if err := validateString(run.ID, "run.ID"); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE match_runs
		SET finished_at = ?, records_scanned = ?, pairs_inserted = ?, status = ?
		WHERE id = ?
	`, run.FinishedAt, run.RecordsScanned, run.PairsInserted, string(run.Status), run.ID)
	if err != nil {
		return fmt.Errorf("failed to finalize match run: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: match run %s", common.ErrNotFound, run.ID)
	}
	return nil
}
