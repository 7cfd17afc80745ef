package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/muster/internal/ports/secondary"
)

// SignupRepository implements secondary.SignupRepository with SQLite.
type SignupRepository struct {
	db *sql.DB
}

// NewSignupRepository creates a new SQLite signup repository.
func NewSignupRepository(db *sql.DB) *SignupRepository {
	return &SignupRepository{db: db}
}

// Upsert records the member's category and returns the previous one.
// An unchanged category leaves the row, and its timestamp, untouched.
func (r *SignupRepository) Upsert(ctx context.Context, signup *secondary.SignupRecord) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin signup transaction: %w", err)
	}
	defer tx.Rollback()

	var previous string
	err = tx.QueryRowContext(ctx,
		"SELECT category FROM signups WHERE operation_id = ? AND member_id = ?",
		signup.OperationID, signup.MemberID,
	).Scan(&previous)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to read signup: %w", err)
	}

	if previous == signup.Category {
		return previous, tx.Commit()
	}

	if previous == "" {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO signups (operation_id, member_id, display_name, category, signed_up_at)
			 VALUES (?, ?, ?, ?, ?)`,
			signup.OperationID, signup.MemberID, signup.DisplayName, signup.Category, toMillis(signup.SignedUpAt),
		)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE signups SET category = ?, display_name = ?, signed_up_at = ?
			 WHERE operation_id = ? AND member_id = ?`,
			signup.Category, signup.DisplayName, toMillis(signup.SignedUpAt), signup.OperationID, signup.MemberID,
		)
	}
	if isForeignKeyViolation(err) {
		return "", fmt.Errorf("operation %s: %w", signup.OperationID, secondary.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to write signup: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit signup: %w", err)
	}

	return previous, nil
}

// Remove deletes the member's signup regardless of category.
func (r *SignupRepository) Remove(ctx context.Context, operationID, memberID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM signups WHERE operation_id = ? AND member_id = ?",
		operationID, memberID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to remove signup: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	return rowsAffected > 0, nil
}

// RemoveInCategory deletes the member's signup only if it is in category.
func (r *SignupRepository) RemoveInCategory(ctx context.Context, operationID, memberID, category string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM signups WHERE operation_id = ? AND member_id = ? AND category = ?",
		operationID, memberID, category,
	)
	if err != nil {
		return false, fmt.Errorf("failed to remove signup: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	return rowsAffected > 0, nil
}

// Get retrieves one member's signup.
func (r *SignupRepository) Get(ctx context.Context, operationID, memberID string) (*secondary.SignupRecord, error) {
	var signedUpAt int64
	record := &secondary.SignupRecord{}
	err := r.db.QueryRowContext(ctx,
		"SELECT operation_id, member_id, display_name, category, signed_up_at FROM signups WHERE operation_id = ? AND member_id = ?",
		operationID, memberID,
	).Scan(&record.OperationID, &record.MemberID, &record.DisplayName, &record.Category, &signedUpAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("signup %s/%s: %w", operationID, memberID, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get signup: %w", err)
	}

	record.SignedUpAt = fromMillis(signedUpAt)
	return record, nil
}

// List returns signups ordered by category, then signup time, then insertion.
func (r *SignupRepository) List(ctx context.Context, operationID string) ([]*secondary.SignupRecord, error) {
	return r.query(ctx,
		`SELECT operation_id, member_id, display_name, category, signed_up_at FROM signups
		 WHERE operation_id = ? ORDER BY category, signed_up_at, rowid`,
		operationID,
	)
}

// ListExcluding returns signups whose category is not excluded.
func (r *SignupRepository) ListExcluding(ctx context.Context, operationID, excluded string) ([]*secondary.SignupRecord, error) {
	return r.query(ctx,
		`SELECT operation_id, member_id, display_name, category, signed_up_at FROM signups
		 WHERE operation_id = ? AND category <> ? ORDER BY category, signed_up_at, rowid`,
		operationID, excluded,
	)
}

// DeleteForOperation removes every signup of an operation.
func (r *SignupRepository) DeleteForOperation(ctx context.Context, operationID string) (int, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM signups WHERE operation_id = ?", operationID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete signups: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	return int(rowsAffected), nil
}

func (r *SignupRepository) query(ctx context.Context, query string, args ...any) ([]*secondary.SignupRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list signups: %w", err)
	}
	defer rows.Close()

	var signups []*secondary.SignupRecord
	for rows.Next() {
		var signedUpAt int64
		record := &secondary.SignupRecord{}
		if err := rows.Scan(&record.OperationID, &record.MemberID, &record.DisplayName, &record.Category, &signedUpAt); err != nil {
			return nil, fmt.Errorf("failed to scan signup: %w", err)
		}
		record.SignedUpAt = fromMillis(signedUpAt)
		signups = append(signups, record)
	}

	return signups, rows.Err()
}

// Ensure SignupRepository implements the interface
var _ secondary.SignupRepository = (*SignupRepository)(nil)
