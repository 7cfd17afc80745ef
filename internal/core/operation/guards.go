// Package operation contains the pure business logic for operation lifecycle commands.
// Guards are pure functions that evaluate preconditions without side effects.
package operation

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// CreateOperationContext provides context for operation creation guards.
type CreateOperationContext struct {
	IssuerID    string
	IssuerRoles []string
	StaffRoleID string
}

// NewOperationContext provides the content of an operation being created.
type NewOperationContext struct {
	Title       string
	ScheduledAt time.Time
	Now         time.Time
}

// ManageOperationContext provides context for edit and delete guards.
type ManageOperationContext struct {
	OperationID string
	IssuerID    string
	IssuerRoles []string
	CreatorID   string
	StaffRoleID string
	Expired     bool
}

// EditFieldsContext provides context for validating an edit.
type EditFieldsContext struct {
	Title       *string
	ScheduledAt *time.Time
	Now         time.Time
	HasChanges  bool
}

// CanCreateOperation evaluates whether an issuer can create operations.
// Rules:
// - Issuer must hold the staff role
func CanCreateOperation(ctx CreateOperationContext) GuardResult {
	if !hasRole(ctx.IssuerRoles, ctx.StaffRoleID) {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("member %s is not allowed to create operations", ctx.IssuerID),
		}
	}

	return GuardResult{Allowed: true}
}

// ValidateNewOperation evaluates the content of a new operation.
// Rules:
// - Title must be non-empty
// - Scheduled time must be in the future
func ValidateNewOperation(ctx NewOperationContext) GuardResult {
	if strings.TrimSpace(ctx.Title) == "" {
		return GuardResult{Allowed: false, Reason: "operation title cannot be empty"}
	}

	if !ctx.ScheduledAt.After(ctx.Now) {
		return GuardResult{Allowed: false, Reason: "operation must be scheduled in the future"}
	}

	return GuardResult{Allowed: true}
}

// CanManageOperation evaluates whether an issuer can edit or delete an operation.
// Rules:
// - Operation must not be expired
// - Issuer must be the creator or hold the staff role
func CanManageOperation(ctx ManageOperationContext) GuardResult {
	if ctx.Expired {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("operation %s has already ended", ctx.OperationID),
		}
	}

	if ctx.IssuerID != ctx.CreatorID && !hasRole(ctx.IssuerRoles, ctx.StaffRoleID) {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("member %s cannot manage operation %s", ctx.IssuerID, ctx.OperationID),
		}
	}

	return GuardResult{Allowed: true}
}

// CanEditFields validates the field changes of an edit.
// Rules:
// - At least one field must change
// - A new title must be non-empty
// - A new scheduled time must be in the future
func CanEditFields(ctx EditFieldsContext) GuardResult {
	if !ctx.HasChanges {
		return GuardResult{Allowed: false, Reason: "nothing to edit"}
	}

	if ctx.Title != nil && strings.TrimSpace(*ctx.Title) == "" {
		return GuardResult{Allowed: false, Reason: "operation title cannot be empty"}
	}

	if ctx.ScheduledAt != nil && !ctx.ScheduledAt.After(ctx.Now) {
		return GuardResult{Allowed: false, Reason: "operation must be scheduled in the future"}
	}

	return GuardResult{Allowed: true}
}

func hasRole(roles []string, role string) bool {
	return role != "" && slices.Contains(roles, role)
}
