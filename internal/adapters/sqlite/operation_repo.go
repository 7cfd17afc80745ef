// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/example/muster/internal/ports/secondary"
)

const operationColumns = "id, post_ref, channel_ref, creator_id, creator_name, title, description, scheduled_at, reminder_sent, expired, created_at, updated_at"

// OperationRepository implements secondary.OperationRepository with SQLite.
type OperationRepository struct {
	db *sql.DB
}

// NewOperationRepository creates a new SQLite operation repository.
func NewOperationRepository(db *sql.DB) *OperationRepository {
	return &OperationRepository{db: db}
}

// Create persists a new operation.
func (r *OperationRepository) Create(ctx context.Context, operation *secondary.OperationRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO operations (id, post_ref, channel_ref, creator_id, creator_name, title, description, scheduled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		operation.ID, operation.PostRef, operation.ChannelRef, operation.CreatorID,
		nullString(operation.CreatorName), operation.Title, nullString(operation.Description),
		toMillis(operation.ScheduledAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("post %s: %w", operation.PostRef, secondary.ErrDuplicatePost)
	}
	if err != nil {
		return fmt.Errorf("failed to create operation: %w", err)
	}

	return nil
}

// GetByID retrieves an operation by its ID.
func (r *OperationRepository) GetByID(ctx context.Context, id string) (*secondary.OperationRecord, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+operationColumns+" FROM operations WHERE id = ?", id)

	record, err := scanOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("operation %s: %w", id, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operation: %w", err)
	}

	return record, nil
}

// GetByPostRef retrieves the live operation rendered into a post.
func (r *OperationRepository) GetByPostRef(ctx context.Context, postRef string) (*secondary.OperationRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+operationColumns+" FROM operations WHERE post_ref = ? AND expired = 0",
		postRef,
	)

	record, err := scanOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("operation for post %s: %w", postRef, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operation by post: %w", err)
	}

	return record, nil
}

// UpdateFields applies a partial content update.
func (r *OperationRepository) UpdateFields(ctx context.Context, id string, update secondary.OperationUpdate) error {
	var (
		sets []string
		args []any
	)
	if update.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *update.Title)
	}
	if update.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, nullString(*update.Description))
	}
	if update.ScheduledAt != nil {
		sets = append(sets, "scheduled_at = ?")
		args = append(args, toMillis(*update.ScheduledAt))
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	result, err := r.db.ExecContext(ctx,
		"UPDATE operations SET "+strings.Join(sets, ", ")+" WHERE id = ?",
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to update operation: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("operation %s: %w", id, secondary.ErrNotFound)
	}

	return nil
}

// SetLifecycleFlag sets a monotonic flag. Already-set flags are left untouched.
func (r *OperationRepository) SetLifecycleFlag(ctx context.Context, id string, flag secondary.LifecycleFlag) error {
	var column string
	switch flag {
	case secondary.FlagReminderSent:
		column = "reminder_sent"
	case secondary.FlagExpired:
		column = "expired"
	default:
		return fmt.Errorf("unknown lifecycle flag: %s", flag)
	}

	var exists int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM operations WHERE id = ?", id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check operation existence: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("operation %s: %w", id, secondary.ErrNotFound)
	}

	_, err = r.db.ExecContext(ctx,
		"UPDATE operations SET "+column+" = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND "+column+" = 0",
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", column, err)
	}

	return nil
}

// List retrieves operations matching the given filters, soonest first.
func (r *OperationRepository) List(ctx context.Context, filters secondary.OperationFilters) ([]*secondary.OperationRecord, error) {
	query := "SELECT " + operationColumns + " FROM operations WHERE 1=1"
	args := []any{}

	if filters.ChannelRef != "" {
		query += " AND channel_ref = ?"
		args = append(args, filters.ChannelRef)
	}

	if !filters.IncludeExpired {
		query += " AND expired = 0"
	}

	query += " ORDER BY scheduled_at ASC, id ASC"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	return r.queryOperations(ctx, query, args...)
}

// DueForReminder returns live operations starting in (now, now+lead] with no reminder sent.
func (r *OperationRepository) DueForReminder(ctx context.Context, now time.Time, lead time.Duration) ([]*secondary.OperationRecord, error) {
	return r.queryOperations(ctx,
		"SELECT "+operationColumns+` FROM operations
		 WHERE expired = 0 AND reminder_sent = 0 AND scheduled_at > ? AND scheduled_at <= ?
		 ORDER BY scheduled_at ASC, id ASC`,
		toMillis(now), toMillis(now.Add(lead)),
	)
}

// DueForExpiry returns live operations scheduled strictly more than grace before now.
func (r *OperationRepository) DueForExpiry(ctx context.Context, now time.Time, grace time.Duration) ([]*secondary.OperationRecord, error) {
	return r.queryOperations(ctx,
		"SELECT "+operationColumns+` FROM operations
		 WHERE expired = 0 AND scheduled_at < ?
		 ORDER BY scheduled_at ASC, id ASC`,
		toMillis(now.Add(-grace)),
	)
}

// GetNextID returns the next available operation ID.
func (r *OperationRepository) GetNextID(ctx context.Context) (string, error) {
	var maxID int
	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(CAST(SUBSTR(id, 4) AS INTEGER)), 0) FROM operations",
	).Scan(&maxID)
	if err != nil {
		return "", fmt.Errorf("failed to get next operation ID: %w", err)
	}

	return fmt.Sprintf("OP-%03d", maxID+1), nil
}

func (r *OperationRepository) queryOperations(ctx context.Context, query string, args ...any) ([]*secondary.OperationRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	defer rows.Close()

	var operations []*secondary.OperationRecord
	for rows.Next() {
		record, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		operations = append(operations, record)
	}

	return operations, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOperation(row rowScanner) (*secondary.OperationRecord, error) {
	var (
		creatorName  sql.NullString
		desc         sql.NullString
		scheduledAt  int64
		reminderSent int
		expired      int
		createdAt    time.Time
		updatedAt    time.Time
	)

	record := &secondary.OperationRecord{}
	err := row.Scan(&record.ID, &record.PostRef, &record.ChannelRef, &record.CreatorID, &creatorName,
		&record.Title, &desc, &scheduledAt, &reminderSent, &expired, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	record.CreatorName = creatorName.String
	record.Description = desc.String
	record.ScheduledAt = fromMillis(scheduledAt)
	record.ReminderSent = reminderSent != 0
	record.Expired = expired != 0
	record.CreatedAt = createdAt.Format(time.RFC3339)
	record.UpdatedAt = updatedAt.Format(time.RFC3339)

	return record, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}

// Ensure OperationRepository implements the interface
var _ secondary.OperationRepository = (*OperationRepository)(nil)
