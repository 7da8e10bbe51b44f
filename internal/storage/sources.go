package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/skymerge/saucer/internal/model"
)

// ListSourceDatabases returns the seeded source registry in ID order.
func (s *SQLiteStorage) ListSourceDatabases(ctx context.Context) ([]model.SourceDatabase, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, url, created_at
		FROM source_databases
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query source databases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	sources := make([]model.SourceDatabase, 0, 8)
	for rows.Next() {
		var src model.SourceDatabase
		var description, url sql.NullString

		if scanErr := rows.Scan(&src.ID, &src.Name, &description, &url, &src.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan source database: %w", scanErr)
		}

		src.Description = description.String
		src.URL = url.String
		sources = append(sources, src)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate source databases: %w", err)
	}
	return sources, nil
}
