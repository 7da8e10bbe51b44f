package main

import (
	"fmt"
	"log/slog"

	"github.com/skymerge/saucer/internal/storage"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.

This command ensures your local database has all the required
tables and indexes for the application to function properly.`,
		RunE: runMigrate,
	}

	// Flags
	cmd.Flags().Bool("status", false, "Show current migration status without applying changes")

	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	status, _ := cmd.Flags().GetBool("status")
	ctx := cmd.Context()
	dbPath := databasePath()

	// Create storage instance
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	if status {
		current, versionErr := store.SchemaVersion(ctx)
		if versionErr != nil {
			return versionErr
		}
		slog.Info("📊 Database Migration Status")
		slog.Info("Database", "path", dbPath)
		slog.Info("Schema version", "current", current, "latest", storage.ExpectedSchemaVersion)
		if current < storage.ExpectedSchemaVersion {
			slog.Warn("Schema is behind; run 'saucer migrate' to update")
		}
		return nil
	}

	slog.Info("🗄️  Running database migrations...")
	slog.Info("Database", "path", dbPath)

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("✅ Database migrations completed successfully!")

	return nil
}
