// Package sqlite_test contains integration tests for SQLite repositories.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for tests.
// All test setup functions use db.GetSchemaSQL() to ensure tests run against
// the authoritative schema, preventing drift between test and production.
//
// DO NOT hardcode CREATE TABLE statements in test files. Use setupTestDB()
// and the seed* helpers instead.
package sqlite_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/muster/internal/adapters/sqlite"
	"github.com/example/muster/internal/db"
	"github.com/example/muster/internal/ports/secondary"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// setupTestDB creates an in-memory database with the authoritative schema.
// Uses db.GetSchemaSQL() to prevent test schemas from drifting.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", db.DSN(db.MemoryPath))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	// Every connection to :memory: is a distinct database.
	testDB.SetMaxOpenConns(1)

	_, err = testDB.Exec(db.GetSchemaSQL())
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// seedOperation creates an operation through the repository and returns it.
func seedOperation(t *testing.T, repo *sqlite.OperationRepository, postRef string, scheduledAt time.Time) *secondary.OperationRecord {
	t.Helper()
	ctx := context.Background()

	id, err := repo.GetNextID(ctx)
	if err != nil {
		t.Fatalf("GetNextID failed: %v", err)
	}

	op := &secondary.OperationRecord{
		ID:          id,
		PostRef:     postRef,
		ChannelRef:  "chan-events",
		CreatorID:   "m-staff",
		CreatorName: "Cmdr Vale",
		Title:       "Operation " + postRef,
		ScheduledAt: scheduledAt,
	}
	if err := repo.Create(ctx, op); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	return op
}
