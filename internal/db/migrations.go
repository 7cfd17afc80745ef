package db

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// Migration is one forward-only schema step, applied inside a transaction.
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

const schemaVersionSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`

var migrations = []Migration{
	{Version: 1, Name: "create operations and signups", Up: migrationV1},
}

// RunMigrations applies every migration newer than the recorded schema version.
func RunMigrations(database *sql.DB) error {
	if _, err := database.Exec(schemaVersionSQL); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var currentVersion int
	err := database.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		slog.Info("running migration", "version", migration.Version, "name", migration.Name)

		tx, err := database.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// CurrentVersion returns the highest applied migration version.
func CurrentVersion(database *sql.DB) (int, error) {
	var version int
	err := database.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

func migrationV1(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS operations (
			id TEXT PRIMARY KEY,
			post_ref TEXT NOT NULL,
			channel_ref TEXT NOT NULL,
			creator_id TEXT NOT NULL,
			creator_name TEXT,
			title TEXT NOT NULL,
			description TEXT,
			scheduled_at INTEGER NOT NULL,
			reminder_sent INTEGER NOT NULL DEFAULT 0,
			expired INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_operations_live_post_ref ON operations(post_ref) WHERE expired = 0;
		CREATE INDEX IF NOT EXISTS idx_operations_schedule ON operations(expired, scheduled_at);

		CREATE TABLE IF NOT EXISTS signups (
			operation_id TEXT NOT NULL,
			member_id TEXT NOT NULL,
			display_name TEXT NOT NULL,
			category TEXT NOT NULL,
			signed_up_at INTEGER NOT NULL,
			PRIMARY KEY (operation_id, member_id),
			FOREIGN KEY (operation_id) REFERENCES operations(id) ON DELETE CASCADE
		);
	`)
	return err
}
