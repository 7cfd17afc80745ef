// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when an operation or signup does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicatePost is returned when a post reference is already tracked
	// by a live operation.
	ErrDuplicatePost = errors.New("post already tracked by another operation")
)

// OperationRepository defines the secondary port for operation persistence.
// Operations are never physically deleted; deletion sets the expired flag.
type OperationRepository interface {
	// Create persists a new operation.
	Create(ctx context.Context, operation *OperationRecord) error

	// GetByID retrieves an operation by its ID.
	GetByID(ctx context.Context, id string) (*OperationRecord, error)

	// GetByPostRef retrieves the live (non-expired) operation rendered into a post.
	GetByPostRef(ctx context.Context, postRef string) (*OperationRecord, error)

	// UpdateFields applies a partial content update.
	UpdateFields(ctx context.Context, id string, update OperationUpdate) error

	// SetLifecycleFlag sets a lifecycle flag. Setting an already-set flag is a no-op.
	SetLifecycleFlag(ctx context.Context, id string, flag LifecycleFlag) error

	// List retrieves operations matching the given filters.
	List(ctx context.Context, filters OperationFilters) ([]*OperationRecord, error)

	// DueForReminder returns live operations starting within lead of now
	// whose reminder has not been sent.
	DueForReminder(ctx context.Context, now time.Time, lead time.Duration) ([]*OperationRecord, error)

	// DueForExpiry returns live operations scheduled more than grace before now.
	DueForExpiry(ctx context.Context, now time.Time, grace time.Duration) ([]*OperationRecord, error)

	// GetNextID returns the next available operation ID.
	GetNextID(ctx context.Context) (string, error)
}

// OperationRecord represents an operation as stored in persistence.
type OperationRecord struct {
	ID           string
	PostRef      string
	ChannelRef   string
	CreatorID    string
	CreatorName  string
	Title        string
	Description  string
	ScheduledAt  time.Time
	ReminderSent bool
	Expired      bool
	CreatedAt    string
	UpdatedAt    string
}

// OperationUpdate carries the content fields an edit may change. Nil fields are untouched.
type OperationUpdate struct {
	Title       *string
	Description *string
	ScheduledAt *time.Time
}

// IsEmpty reports whether the update changes nothing.
func (u OperationUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.ScheduledAt == nil
}

// LifecycleFlag names one of the monotonic operation flags.
type LifecycleFlag string

const (
	FlagReminderSent LifecycleFlag = "reminder_sent"
	FlagExpired      LifecycleFlag = "expired"
)

// OperationFilters contains filter options for querying operations.
type OperationFilters struct {
	ChannelRef     string
	IncludeExpired bool
	Limit          int
}

// SignupRepository defines the secondary port for signup persistence.
// A member holds at most one signup per operation.
type SignupRepository interface {
	// Upsert records the member's category, replacing any prior signup, and
	// returns the previous category ("" when there was none). When the category
	// is unchanged the stored row, including its timestamp, is left as is.
	Upsert(ctx context.Context, signup *SignupRecord) (string, error)

	// Remove deletes the member's signup regardless of category.
	Remove(ctx context.Context, operationID, memberID string) (bool, error)

	// RemoveInCategory deletes the member's signup only if it is in category.
	RemoveInCategory(ctx context.Context, operationID, memberID, category string) (bool, error)

	// Get retrieves one member's signup.
	Get(ctx context.Context, operationID, memberID string) (*SignupRecord, error)

	// List returns signups ordered by category, then signup time.
	List(ctx context.Context, operationID string) ([]*SignupRecord, error)

	// ListExcluding returns signups whose category is not excluded.
	ListExcluding(ctx context.Context, operationID, excluded string) ([]*SignupRecord, error)

	// DeleteForOperation removes every signup of an operation.
	DeleteForOperation(ctx context.Context, operationID string) (int, error)
}

// SignupRecord represents a signup as stored in persistence.
type SignupRecord struct {
	OperationID string
	MemberID    string
	DisplayName string
	Category    string
	SignedUpAt  time.Time
}
