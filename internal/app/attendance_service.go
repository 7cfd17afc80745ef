package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/muster/internal/clock"
	"github.com/example/muster/internal/core/attendance"
	"github.com/example/muster/internal/core/effects"
	"github.com/example/muster/internal/core/policy"
	"github.com/example/muster/internal/ports/primary"
	"github.com/example/muster/internal/ports/secondary"
)

// AttendanceConfig holds the engine's policy switches.
type AttendanceConfig struct {
	StaffRoleID       string
	BlockStaffSignups bool
}

// AttendanceServiceImpl implements the AttendanceService interface. It
// reconciles reaction signals against the roster, one (operation, member)
// pair at a time.
type AttendanceServiceImpl struct {
	operationRepo secondary.OperationRepository
	signupRepo    secondary.SignupRepository
	directory     secondary.MemberDirectory
	policy        *policy.Policy
	registry      *SuppressionRegistry
	publisher     *RosterPublisher
	dispatcher    Dispatcher
	clock         clock.Clock
	cfg           AttendanceConfig
	logger        *slog.Logger

	pairs *KeyedMutex
}

// NewAttendanceService creates a new AttendanceService with injected dependencies.
func NewAttendanceService(
	operationRepo secondary.OperationRepository,
	signupRepo secondary.SignupRepository,
	directory secondary.MemberDirectory,
	pol *policy.Policy,
	registry *SuppressionRegistry,
	publisher *RosterPublisher,
	dispatcher Dispatcher,
	clk clock.Clock,
	cfg AttendanceConfig,
	logger *slog.Logger,
) *AttendanceServiceImpl {
	return &AttendanceServiceImpl{
		operationRepo: operationRepo,
		signupRepo:    signupRepo,
		directory:     directory,
		policy:        pol,
		registry:      registry,
		publisher:     publisher,
		dispatcher:    dispatcher,
		clock:         clk,
		cfg:           cfg,
		logger:        logger.With("component", "attendance"),
		pairs:         NewKeyedMutex(),
	}
}

// HandleSignal reconciles one reaction add or remove.
func (s *AttendanceServiceImpl) HandleSignal(ctx context.Context, sig primary.ReactionSignal) (*primary.SignalOutcome, error) {
	op, err := s.operationRepo.GetByPostRef(ctx, sig.PostRef)
	if errors.Is(err, secondary.ErrNotFound) {
		return &primary.SignalOutcome{Outcome: primary.OutcomeIgnored, Reason: "post is not a tracked operation"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve operation: %w", err)
	}

	unlock := s.pairs.Lock(op.ID + "|" + sig.MemberID)
	defer unlock()

	var outcome *primary.SignalOutcome
	switch sig.Direction {
	case primary.DirectionClaim:
		outcome, err = s.claim(ctx, op, sig)
	case primary.DirectionWithdraw:
		outcome, err = s.withdraw(ctx, op, sig)
	default:
		return nil, fmt.Errorf("unknown signal direction %q", sig.Direction)
	}
	if err != nil {
		return nil, err
	}

	outcome.OperationID = op.ID
	s.logger.DebugContext(ctx, "signal handled",
		"operation_id", op.ID,
		"member_id", sig.MemberID,
		"direction", sig.Direction,
		"outcome", outcome.Outcome,
		"category", outcome.Category,
		"reason", outcome.Reason,
	)
	return outcome, nil
}

func (s *AttendanceServiceImpl) claim(ctx context.Context, op *secondary.OperationRecord, sig primary.ReactionSignal) (*primary.SignalOutcome, error) {
	key, ok := s.policy.ResolveCategory(sig.Symbol)
	if !ok {
		s.revert(ctx, op, sig)
		return &primary.SignalOutcome{Outcome: primary.OutcomeRejected, Reason: "unrecognized symbol"}, nil
	}

	permitted := s.policy.PermittedRoles(key)
	if attendance.NeedsRoleLookup(permitted, s.cfg.BlockStaffSignups) {
		roles := sig.MemberRoles
		if roles == nil {
			var err error
			roles, err = s.directory.MemberRoles(ctx, sig.MemberID)
			if err != nil {
				s.logger.WarnContext(ctx, "role lookup failed, rejecting claim",
					"operation_id", op.ID, "member_id", sig.MemberID, "category", key, "error", err)
				s.revert(ctx, op, sig)
				return &primary.SignalOutcome{Outcome: primary.OutcomeRejected, Category: key, Reason: "role lookup failed"}, nil
			}
		}

		guard := attendance.CanClaim(attendance.ClaimContext{
			MemberID:       sig.MemberID,
			CategoryKey:    key,
			PermittedRoles: permitted,
			MemberRoles:    roles,
			StaffRoleID:    s.cfg.StaffRoleID,
			BlockStaff:     s.cfg.BlockStaffSignups,
		})
		if !guard.Allowed {
			s.revert(ctx, op, sig)
			return &primary.SignalOutcome{Outcome: primary.OutcomeRejected, Category: key, Reason: guard.Reason}, nil
		}
	}

	previous, err := s.signupRepo.Upsert(ctx, &secondary.SignupRecord{
		OperationID: op.ID,
		MemberID:    sig.MemberID,
		DisplayName: displayNameOrID(ctx, s.directory, sig.MemberID),
		Category:    key,
		SignedUpAt:  s.clock.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record signup: %w", err)
	}

	if previous == key {
		return &primary.SignalOutcome{Outcome: primary.OutcomeUnchanged, Category: key, PreviousCategory: previous}, nil
	}

	if previous != "" {
		s.retract(ctx, op, sig.MemberID, previous)
	}

	s.publisher.Schedule(ctx, op.ID)
	return &primary.SignalOutcome{Outcome: primary.OutcomeClaimed, Category: key, PreviousCategory: previous}, nil
}

func (s *AttendanceServiceImpl) withdraw(ctx context.Context, op *secondary.OperationRecord, sig primary.ReactionSignal) (*primary.SignalOutcome, error) {
	key, ok := s.policy.ResolveCategory(sig.Symbol)
	if !ok {
		return &primary.SignalOutcome{Outcome: primary.OutcomeIgnored, Reason: "unrecognized symbol"}, nil
	}

	if sig.Causation != primary.CausationUser {
		suppressionKey := SuppressionKey{OperationID: op.ID, MemberID: sig.MemberID, Category: key}
		if correlationID, ok := s.registry.Consume(suppressionKey); ok {
			return &primary.SignalOutcome{
				Outcome:  primary.OutcomeSuppressed,
				Category: key,
				Reason:   "echo of retraction " + correlationID,
			}, nil
		}
	}

	removed, err := s.signupRepo.RemoveInCategory(ctx, op.ID, sig.MemberID, key)
	if err != nil {
		return nil, fmt.Errorf("failed to remove signup: %w", err)
	}
	if !removed {
		return &primary.SignalOutcome{Outcome: primary.OutcomeUnchanged, Category: key, Reason: "no signup in category"}, nil
	}

	s.publisher.Schedule(ctx, op.ID)
	return &primary.SignalOutcome{Outcome: primary.OutcomeWithdrawn, Category: key, PreviousCategory: key}, nil
}

// retract removes the member's reaction for a category they just left. The
// suppression entry is registered before the instruction is issued and
// discarded if the instruction fails, since no echo will follow.
func (s *AttendanceServiceImpl) retract(ctx context.Context, op *secondary.OperationRecord, memberID, category string) {
	symbol, ok := s.policy.Symbol(category)
	if !ok {
		s.logger.DebugContext(ctx, "previous category no longer configured, nothing to retract",
			"operation_id", op.ID, "member_id", memberID, "category", category)
		return
	}

	key := SuppressionKey{OperationID: op.ID, MemberID: memberID, Category: category}
	correlationID := s.registry.Register(key)

	s.dispatcher.Dispatch(ctx, []effects.Effect{effects.RemoveReactionEffect{
		OperationID:   op.ID,
		ChannelRef:    op.ChannelRef,
		PostRef:       op.PostRef,
		MemberID:      memberID,
		Symbol:        symbol,
		Category:      category,
		SelfCaused:    true,
		CorrelationID: correlationID,
	}}, func(effects.Effect, error) {
		s.registry.Discard(key, correlationID)
	})
}

// revert undoes a rejected claim by removing the reaction as delivered. When
// the symbol maps to a category the removal is registered like a retraction,
// so its echo cannot withdraw a signup the member already holds there.
func (s *AttendanceServiceImpl) revert(ctx context.Context, op *secondary.OperationRecord, sig primary.ReactionSignal) {
	eff := effects.RemoveReactionEffect{
		OperationID: op.ID,
		ChannelRef:  op.ChannelRef,
		PostRef:     op.PostRef,
		MemberID:    sig.MemberID,
		Symbol:      sig.Symbol,
		SelfCaused:  true,
	}

	category, ok := s.policy.ResolveCategory(sig.Symbol)
	if !ok {
		s.dispatcher.Dispatch(ctx, []effects.Effect{eff}, nil)
		return
	}

	key := SuppressionKey{OperationID: op.ID, MemberID: sig.MemberID, Category: category}
	correlationID := s.registry.Register(key)
	eff.Category = category
	eff.CorrelationID = correlationID

	s.dispatcher.Dispatch(ctx, []effects.Effect{eff}, func(effects.Effect, error) {
		s.registry.Discard(key, correlationID)
	})
}

// displayNameOrID snapshots a member's name, falling back to the id.
func displayNameOrID(ctx context.Context, directory secondary.MemberDirectory, memberID string) string {
	name, err := directory.DisplayName(ctx, memberID)
	if err != nil || name == "" {
		return memberID
	}
	return name
}

// Ensure AttendanceServiceImpl implements the interface
var _ primary.AttendanceService = (*AttendanceServiceImpl)(nil)
