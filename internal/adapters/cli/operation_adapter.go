// Package cli provides thin CLI adapters that translate between CLI concerns
// and application services. Adapters handle argument parsing, output formatting,
// but delegate business logic to services.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/example/muster/internal/core/policy"
	"github.com/example/muster/internal/ports/primary"
)

const listTimeLayout = "2006-01-02 15:04 MST"

// OperationAdapter is a thin adapter that translates CLI operations to OperationService calls.
type OperationAdapter struct {
	service  primary.OperationService
	out      io.Writer
	location *time.Location
}

// NewOperationAdapter creates a new OperationAdapter. Times are shown in loc.
func NewOperationAdapter(service primary.OperationService, out io.Writer, loc *time.Location) *OperationAdapter {
	if loc == nil {
		loc = time.UTC
	}
	return &OperationAdapter{
		service:  service,
		out:      out,
		location: loc,
	}
}

// List lists operations, optionally including expired ones.
func (a *OperationAdapter) List(ctx context.Context, includeExpired bool) error {
	ops, err := a.service.ListOperations(ctx, primary.OperationFilters{IncludeExpired: includeExpired})
	if err != nil {
		return fmt.Errorf("failed to list operations: %w", err)
	}

	if len(ops) == 0 {
		fmt.Fprintln(a.out, "No operations found")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-10s %-10s %-22s %-8s %s\n", "ID", "STATUS", "SCHEDULED", "SIGNUPS", "TITLE")
	fmt.Fprintln(a.out, "────────────────────────────────────────────────────────────────")
	for _, op := range ops {
		fmt.Fprintf(a.out, "%-10s %s %-22s %-8d %s\n",
			op.ID,
			statusLabel(op),
			op.ScheduledAt.In(a.location).Format(listTimeLayout),
			op.SignupCount,
			op.Title,
		)
	}
	fmt.Fprintln(a.out)

	return nil
}

// statusLabel pads before coloring so escape codes do not break alignment.
func statusLabel(op *primary.Operation) string {
	switch {
	case op.Expired:
		return color.New(color.FgRed).Sprintf("%-10s", "expired")
	case op.ReminderSent:
		return color.New(color.FgYellow).Sprintf("%-10s", "reminded")
	default:
		return color.New(color.FgGreen).Sprintf("%-10s", "upcoming")
	}
}

// Show displays an operation's details followed by its current roster.
func (a *OperationAdapter) Show(ctx context.Context, operationID string) (*primary.Operation, error) {
	op, err := a.service.GetOperation(ctx, operationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get operation: %w", err)
	}

	roster, err := a.service.RenderRoster(ctx, op.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to render roster: %w", err)
	}

	fmt.Fprintf(a.out, "\nOperation: %s\n", op.ID)
	fmt.Fprintf(a.out, "Status:    %s\n", strings.TrimSpace(statusLabel(op)))
	fmt.Fprintf(a.out, "Channel:   %s\n", op.ChannelRef)
	fmt.Fprintf(a.out, "Post:      %s\n", op.PostRef)
	fmt.Fprintf(a.out, "Creator:   %s\n", op.CreatorName)
	fmt.Fprintf(a.out, "Created:   %s\n", op.CreatedAt)
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, roster)
	fmt.Fprintln(a.out)

	return op, nil
}

// Roles prints the signup categories in display order.
func Roles(out io.Writer, pol *policy.Policy) {
	bold := color.New(color.Bold)
	for _, c := range pol.OrderedCategories() {
		who := color.New(color.FgGreen).Sprint("anyone")
		if c.Restricted() {
			who = strings.Join(c.Roles, ", ")
		}
		capacity := ""
		if c.Capacity != nil {
			capacity = fmt.Sprintf(" (capacity %d, not enforced)", *c.Capacity)
		}
		fmt.Fprintf(out, "%s %s [%s]: %s%s\n", c.Symbol, bold.Sprint(c.Label), c.Key, who, capacity)
	}
}
