package primary

import "context"

// AttendanceService defines the primary port for reaction-driven attendance.
type AttendanceService interface {
	// HandleSignal reconciles one reaction event against the roster.
	// Rejected claims are reported through the outcome, never as errors.
	HandleSignal(ctx context.Context, signal ReactionSignal) (*SignalOutcome, error)
}

// Direction is the intent of a reaction signal.
type Direction string

const (
	DirectionClaim    Direction = "claim"
	DirectionWithdraw Direction = "withdraw"
)

// Causation tells whether the transport knows who caused a reaction event.
// CausationUnknown is treated like CausationSystem for suppression matching.
type Causation string

const (
	CausationUser    Causation = "user"
	CausationSystem  Causation = "system"
	CausationUnknown Causation = "unknown"
)

// ReactionSignal is one inbound reaction add or remove.
type ReactionSignal struct {
	PostRef   string
	MemberID  string
	Symbol    string
	Direction Direction
	Causation Causation
	// MemberRoles, when non-nil, is the role set delivered with the event.
	// When nil the member directory is consulted.
	MemberRoles []string
}

// Outcome is the result kind of a handled signal.
type Outcome string

const (
	OutcomeIgnored    Outcome = "ignored"
	OutcomeRejected   Outcome = "rejected"
	OutcomeClaimed    Outcome = "claimed"
	OutcomeUnchanged  Outcome = "unchanged"
	OutcomeWithdrawn  Outcome = "withdrawn"
	OutcomeSuppressed Outcome = "suppressed"
)

// SignalOutcome describes what HandleSignal did.
type SignalOutcome struct {
	Outcome          Outcome
	OperationID      string
	Category         string
	PreviousCategory string
	Reason           string
}

// Mutated reports whether the roster changed.
func (o *SignalOutcome) Mutated() bool {
	return o.Outcome == OutcomeClaimed || o.Outcome == OutcomeWithdrawn
}
