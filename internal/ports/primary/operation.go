package primary

import (
	"context"
	"time"
)

// OperationService defines the primary port for operation lifecycle commands.
type OperationService interface {
	// CreateOperation publishes a new roster post and records the operation.
	CreateOperation(ctx context.Context, req CreateOperationRequest) (*CreateOperationResponse, error)

	// EditOperation changes content fields and re-publishes the roster.
	EditOperation(ctx context.Context, req EditOperationRequest) (*Operation, error)

	// DeleteOperation clears the roster, marks the operation expired and removes its post.
	DeleteOperation(ctx context.Context, req DeleteOperationRequest) error

	// GetOperation retrieves an operation by ID.
	GetOperation(ctx context.Context, operationID string) (*Operation, error)

	// ListOperations lists operations with optional filters.
	ListOperations(ctx context.Context, filters OperationFilters) ([]*Operation, error)

	// RenderRoster returns the roster text as it would be published now.
	RenderRoster(ctx context.Context, operationID string) (string, error)
}

// CreateOperationRequest contains parameters for creating an operation.
// IssuerRoles, when nil, are looked up in the member directory.
type CreateOperationRequest struct {
	IssuerID    string
	IssuerRoles []string
	ChannelRef  string
	Title       string
	Description string
	ScheduledAt time.Time
}

// CreateOperationResponse contains the result of creating an operation.
type CreateOperationResponse struct {
	OperationID string
	PostRef     string
	Operation   *Operation
}

// EditOperationRequest contains parameters for editing an operation. Nil fields are unchanged.
type EditOperationRequest struct {
	OperationID string
	IssuerID    string
	IssuerRoles []string
	Title       *string
	Description *string
	ScheduledAt *time.Time
}

// DeleteOperationRequest contains parameters for deleting an operation.
type DeleteOperationRequest struct {
	OperationID string
	IssuerID    string
	IssuerRoles []string
}

// Operation represents an operation at the port boundary.
type Operation struct {
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
	SignupCount  int
}

// OperationFilters contains filter options for listing operations.
type OperationFilters struct {
	ChannelRef     string
	IncludeExpired bool
}
