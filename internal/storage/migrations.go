package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 7

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial sighting archive schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS source_databases (
					id INTEGER PRIMARY KEY,
					name TEXT UNIQUE NOT NULL,
					description TEXT,
					url TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS locations (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					raw_text TEXT,
					city TEXT,
					county TEXT,
					state TEXT,
					country TEXT,
					latitude REAL,
					longitude REAL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS sightings (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					source_db_id INTEGER NOT NULL,
					source_ref TEXT,
					date_event TEXT,
					date_event_raw TEXT,
					location_id INTEGER,
					summary TEXT,
					description TEXT,
					shape TEXT,
					duration TEXT,
					num_witnesses INTEGER,
					event_type TEXT,
					raw_json TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (source_db_id) REFERENCES source_databases(id),
					FOREIGN KEY (location_id) REFERENCES locations(id)
				)`,
				`CREATE INDEX idx_sightings_source ON sightings(source_db_id)`,
				`CREATE INDEX idx_sightings_location ON sightings(location_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Seed source database registry",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				INSERT OR IGNORE INTO source_databases (id, name, description, url) VALUES
					(1, 'MUFON', 'Mutual UFO Network case management exports', 'https://mufon.com'),
					(2, 'NUFORC', 'National UFO Reporting Center online database', 'https://nuforc.org'),
					(3, 'UFOCAT', 'UFOCAT catalog maintained by CUFOS', 'https://cufos.org'),
					(4, 'UPDB', 'UPDB aggregated sighting compilation', ''),
					(5, 'UFO-search', 'ufo-search.com scraped report archive', '')
			`)
			return err
		},
	},
	{
		Version:     3,
		Description: "Add duplicate candidate table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS duplicate_candidates (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					sighting_id_a INTEGER NOT NULL,
					sighting_id_b INTEGER NOT NULL,
					similarity_score REAL NOT NULL DEFAULT 0,
					match_method TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'pending',
					resolved_at DATETIME,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (sighting_id_a) REFERENCES sightings(id),
					FOREIGN KEY (sighting_id_b) REFERENCES sightings(id),
					UNIQUE(sighting_id_a, sighting_id_b)
				)
			`)
			return err
		},
	},
	{
		Version:     4,
		Description: "Add match key indexes",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE INDEX IF NOT EXISTS idx_sightings_source_date ON sightings(source_db_id, date_event)`,
				`CREATE INDEX IF NOT EXISTS idx_sightings_source_ref ON sightings(source_db_id, source_ref)`,
				`CREATE INDEX IF NOT EXISTS idx_locations_city_state ON locations(city, state)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
	{
		Version:     5,
		Description: "Add candidate lookup indexes",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				// The UNIQUE constraint already covers sighting_id_a prefixes
				`CREATE INDEX IF NOT EXISTS idx_candidates_sighting_b ON duplicate_candidates(sighting_id_b)`,
				`CREATE INDEX IF NOT EXISTS idx_candidates_status ON duplicate_candidates(status)`,
				`CREATE INDEX IF NOT EXISTS idx_candidates_method ON duplicate_candidates(match_method)`,
				`CREATE INDEX IF NOT EXISTS idx_candidates_score ON duplicate_candidates(similarity_score)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
	{
		Version:     6,
		Description: "Add Hynek and Vallee classification fields",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`ALTER TABLE sightings ADD COLUMN hynek_class TEXT`,
				`ALTER TABLE sightings ADD COLUMN vallee_class TEXT`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
	{
		Version:     7,
		Description: "Add match run bookkeeping table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS match_runs (
					id TEXT PRIMARY KEY,
					started_at DATETIME NOT NULL,
					finished_at DATETIME,
					tiers TEXT,
					records_scanned INTEGER DEFAULT 0,
					pairs_inserted INTEGER DEFAULT 0,
					status TEXT NOT NULL DEFAULT 'running'
				)
			`)
			return err
		},
	},
}

// SchemaVersion reports the database's current schema version without
// applying any migrations.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	// Get current version
	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	// Apply migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		// Update version
		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	// Verify we're at the expected schema version
	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
