package db

import (
	"database/sql"
	"fmt"
)

// SchemaSQL is the complete schema for fresh installs.
// This schema reflects the current state after all migrations.
//
// This is the SINGLE SOURCE OF TRUTH for the database schema. Repository
// tests load it via GetSchemaSQL() so that a column referenced by code but
// missing here fails immediately with "no such column".
//
// When adding new columns or tables:
//  1. Add a migration in migrations.go
//  2. Update SchemaSQL here
const SchemaSQL = `
-- Operations (scheduled events rendered into a roster post)
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

-- Signups (one per member per operation)
CREATE TABLE IF NOT EXISTS signups (
	operation_id TEXT NOT NULL,
	member_id TEXT NOT NULL,
	display_name TEXT NOT NULL,
	category TEXT NOT NULL,
	signed_up_at INTEGER NOT NULL,
	PRIMARY KEY (operation_id, member_id),
	FOREIGN KEY (operation_id) REFERENCES operations(id) ON DELETE CASCADE
);
`

// InitSchema creates the schema on a fresh database, or runs pending
// migrations on an existing one.
func InitSchema(database *sql.DB) error {
	var tableCount int
	err := database.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('schema_version', 'operations')",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}

	if tableCount > 0 {
		return RunMigrations(database)
	}

	// Fresh install: create the modern schema and mark every migration applied.
	tx, err := database.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(SchemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := tx.Exec(schemaVersionSQL); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}
	for _, m := range migrations {
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.Version); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
	}

	return tx.Commit()
}

// GetSchemaSQL returns the authoritative schema.
func GetSchemaSQL() string {
	return SchemaSQL
}
