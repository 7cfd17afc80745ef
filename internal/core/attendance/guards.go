// Package attendance contains the pure business logic for attendance claims.
// Guards are pure functions that evaluate preconditions without side effects.
package attendance

import (
	"fmt"
	"slices"
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

// ClaimContext provides context for claim guards.
type ClaimContext struct {
	MemberID       string
	CategoryKey    string
	PermittedRoles []string // empty means unrestricted
	MemberRoles    []string
	StaffRoleID    string
	BlockStaff     bool
}

// CanClaim evaluates whether a member may claim a category.
// Rules:
// - Staff are refused any category when BlockStaff is set
// - Unrestricted categories are open to everyone
// - Otherwise the member must hold at least one permitted role
func CanClaim(ctx ClaimContext) GuardResult {
	if ctx.BlockStaff && ctx.StaffRoleID != "" && slices.Contains(ctx.MemberRoles, ctx.StaffRoleID) {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("member %s holds the staff role and cannot sign up", ctx.MemberID),
		}
	}

	if len(ctx.PermittedRoles) == 0 {
		return GuardResult{Allowed: true}
	}

	for _, role := range ctx.PermittedRoles {
		if slices.Contains(ctx.MemberRoles, role) {
			return GuardResult{Allowed: true}
		}
	}

	return GuardResult{
		Allowed: false,
		Reason:  fmt.Sprintf("member %s lacks a role permitted for %s", ctx.MemberID, ctx.CategoryKey),
	}
}

// NeedsRoleLookup reports whether CanClaim needs the member's roles to decide.
func NeedsRoleLookup(permittedRoles []string, blockStaff bool) bool {
	return len(permittedRoles) > 0 || blockStaff
}
