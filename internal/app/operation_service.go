package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/example/muster/internal/clock"
	"github.com/example/muster/internal/core/effects"
	coreoperation "github.com/example/muster/internal/core/operation"
	"github.com/example/muster/internal/core/policy"
	"github.com/example/muster/internal/ports/primary"
	"github.com/example/muster/internal/ports/secondary"
)

// OperationServiceImpl implements the OperationService interface.
type OperationServiceImpl struct {
	operationRepo secondary.OperationRepository
	signupRepo    secondary.SignupRepository
	directory     secondary.MemberDirectory
	transport     secondary.Transport
	policy        *policy.Policy
	publisher     *RosterPublisher
	dispatcher    Dispatcher
	clock         clock.Clock
	staffRoleID   string
	logger        *slog.Logger

	// createMu keeps GetNextID and Create paired.
	createMu sync.Mutex
}

// NewOperationService creates a new OperationService with injected dependencies.
// The transport is used directly only to publish a new post, since its
// reference is needed before the operation can be stored.
func NewOperationService(
	operationRepo secondary.OperationRepository,
	signupRepo secondary.SignupRepository,
	directory secondary.MemberDirectory,
	transport secondary.Transport,
	pol *policy.Policy,
	publisher *RosterPublisher,
	dispatcher Dispatcher,
	clk clock.Clock,
	staffRoleID string,
	logger *slog.Logger,
) *OperationServiceImpl {
	return &OperationServiceImpl{
		operationRepo: operationRepo,
		signupRepo:    signupRepo,
		directory:     directory,
		transport:     transport,
		policy:        pol,
		publisher:     publisher,
		dispatcher:    dispatcher,
		clock:         clk,
		staffRoleID:   staffRoleID,
		logger:        logger.With("component", "operations"),
	}
}

// CreateOperation publishes an empty roster, records the operation and seeds
// one reaction per category.
func (s *OperationServiceImpl) CreateOperation(ctx context.Context, req primary.CreateOperationRequest) (*primary.CreateOperationResponse, error) {
	roles, err := s.issuerRoles(ctx, req.IssuerID, req.IssuerRoles)
	if err != nil {
		return nil, err
	}

	guard := coreoperation.CanCreateOperation(coreoperation.CreateOperationContext{
		IssuerID:    req.IssuerID,
		IssuerRoles: roles,
		StaffRoleID: s.staffRoleID,
	})
	if !guard.Allowed {
		return nil, fmt.Errorf("%w: %s", primary.ErrPermissionDenied, guard.Reason)
	}

	title := strings.TrimSpace(req.Title)
	guard = coreoperation.ValidateNewOperation(coreoperation.NewOperationContext{
		Title:       title,
		ScheduledAt: req.ScheduledAt,
		Now:         s.clock.Now(),
	})
	if !guard.Allowed {
		return nil, fmt.Errorf("%w: %s", primary.ErrInvalidCommand, guard.Reason)
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	nextID, err := s.operationRepo.GetNextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate operation ID: %w", err)
	}

	record := &secondary.OperationRecord{
		ID:          nextID,
		ChannelRef:  req.ChannelRef,
		CreatorID:   req.IssuerID,
		CreatorName: displayNameOrID(ctx, s.directory, req.IssuerID),
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		ScheduledAt: req.ScheduledAt.UTC(),
	}

	text, err := s.publisher.Render(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to render roster: %w", err)
	}

	postRef, err := s.transport.Publish(ctx, req.ChannelRef, "", text)
	if err != nil {
		return nil, fmt.Errorf("failed to publish roster: %w", err)
	}
	record.PostRef = postRef

	if err := s.operationRepo.Create(ctx, record); err != nil {
		s.dispatcher.Dispatch(ctx, []effects.Effect{effects.RemovePostEffect{
			OperationID: nextID,
			ChannelRef:  req.ChannelRef,
			PostRef:     postRef,
		}}, nil)
		return nil, fmt.Errorf("failed to create operation: %w", err)
	}

	s.dispatcher.Dispatch(ctx, []effects.Effect{effects.SeedReactionsEffect{
		ChannelRef: req.ChannelRef,
		PostRef:    postRef,
		Symbols:    s.policy.SeedSymbols(),
	}}, nil)

	s.logger.InfoContext(ctx, "operation created",
		"operation_id", nextID, "post_ref", postRef, "creator_id", req.IssuerID, "scheduled_at", record.ScheduledAt)

	created, err := s.operationRepo.GetByID(ctx, nextID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch created operation: %w", err)
	}

	return &primary.CreateOperationResponse{
		OperationID: created.ID,
		PostRef:     created.PostRef,
		Operation:   s.recordToOperation(created, 0),
	}, nil
}

// EditOperation changes content fields and re-publishes the roster.
func (s *OperationServiceImpl) EditOperation(ctx context.Context, req primary.EditOperationRequest) (*primary.Operation, error) {
	record, err := s.authorizeManage(ctx, req.OperationID, req.IssuerID, req.IssuerRoles)
	if err != nil {
		return nil, err
	}

	update := secondary.OperationUpdate{Description: trimmed(req.Description), Title: trimmed(req.Title)}
	if req.ScheduledAt != nil {
		at := req.ScheduledAt.UTC()
		update.ScheduledAt = &at
	}

	guard := coreoperation.CanEditFields(coreoperation.EditFieldsContext{
		Title:       update.Title,
		ScheduledAt: update.ScheduledAt,
		Now:         s.clock.Now(),
		HasChanges:  !update.IsEmpty(),
	})
	if !guard.Allowed {
		return nil, fmt.Errorf("%w: %s", primary.ErrInvalidCommand, guard.Reason)
	}

	if err := s.operationRepo.UpdateFields(ctx, record.ID, update); err != nil {
		return nil, fmt.Errorf("failed to update operation: %w", err)
	}

	if err := s.publisher.PublishNow(ctx, record.ID); err != nil {
		s.logger.ErrorContext(ctx, "roster publish after edit failed", "operation_id", record.ID, "error", err)
	}

	s.logger.InfoContext(ctx, "operation edited", "operation_id", record.ID, "issuer_id", req.IssuerID)
	return s.GetOperation(ctx, record.ID)
}

// DeleteOperation clears the roster, marks the operation expired and removes its post.
// Operation rows are kept for history.
func (s *OperationServiceImpl) DeleteOperation(ctx context.Context, req primary.DeleteOperationRequest) error {
	record, err := s.authorizeManage(ctx, req.OperationID, req.IssuerID, req.IssuerRoles)
	if err != nil {
		return err
	}

	err = s.publisher.WithOperationLock(record.ID, func() error {
		removed, err := s.signupRepo.DeleteForOperation(ctx, record.ID)
		if err != nil {
			return fmt.Errorf("failed to delete signups: %w", err)
		}
		if err := s.operationRepo.SetLifecycleFlag(ctx, record.ID, secondary.FlagExpired); err != nil {
			return fmt.Errorf("failed to mark operation expired: %w", err)
		}
		s.dispatcher.Dispatch(ctx, []effects.Effect{effects.RemovePostEffect{
			OperationID: record.ID,
			ChannelRef:  record.ChannelRef,
			PostRef:     record.PostRef,
		}}, nil)
		s.logger.InfoContext(ctx, "operation deleted", "operation_id", record.ID, "issuer_id", req.IssuerID, "signups_removed", removed)
		return nil
	})
	return err
}

// GetOperation retrieves an operation by ID.
func (s *OperationServiceImpl) GetOperation(ctx context.Context, operationID string) (*primary.Operation, error) {
	record, err := s.operationRepo.GetByID(ctx, operationID)
	if err != nil {
		return nil, err
	}

	signups, err := s.signupRepo.List(ctx, record.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list signups: %w", err)
	}
	return s.recordToOperation(record, len(signups)), nil
}

// ListOperations lists operations with optional filters.
func (s *OperationServiceImpl) ListOperations(ctx context.Context, filters primary.OperationFilters) ([]*primary.Operation, error) {
	records, err := s.operationRepo.List(ctx, secondary.OperationFilters{
		ChannelRef:     filters.ChannelRef,
		IncludeExpired: filters.IncludeExpired,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}

	operations := make([]*primary.Operation, len(records))
	for i, r := range records {
		signups, err := s.signupRepo.List(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list signups: %w", err)
		}
		operations[i] = s.recordToOperation(r, len(signups))
	}
	return operations, nil
}

// RenderRoster returns the roster text as it would be published now.
func (s *OperationServiceImpl) RenderRoster(ctx context.Context, operationID string) (string, error) {
	record, err := s.operationRepo.GetByID(ctx, operationID)
	if err != nil {
		return "", err
	}
	return s.publisher.Render(ctx, record)
}

// Helper methods

func (s *OperationServiceImpl) authorizeManage(ctx context.Context, operationID, issuerID string, issuerRoles []string) (*secondary.OperationRecord, error) {
	record, err := s.operationRepo.GetByID(ctx, operationID)
	if err != nil {
		return nil, err
	}

	roles, err := s.issuerRoles(ctx, issuerID, issuerRoles)
	if err != nil {
		return nil, err
	}

	guard := coreoperation.CanManageOperation(coreoperation.ManageOperationContext{
		OperationID: record.ID,
		IssuerID:    issuerID,
		IssuerRoles: roles,
		CreatorID:   record.CreatorID,
		StaffRoleID: s.staffRoleID,
		Expired:     record.Expired,
	})
	if !guard.Allowed {
		if record.Expired {
			return nil, fmt.Errorf("%w: %s", primary.ErrInvalidCommand, guard.Reason)
		}
		return nil, fmt.Errorf("%w: %s", primary.ErrPermissionDenied, guard.Reason)
	}

	return record, nil
}

func (s *OperationServiceImpl) issuerRoles(ctx context.Context, issuerID string, given []string) ([]string, error) {
	if given != nil {
		return given, nil
	}
	roles, err := s.directory.MemberRoles(ctx, issuerID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up roles for %s: %w", issuerID, err)
	}
	return roles, nil
}

func (s *OperationServiceImpl) recordToOperation(r *secondary.OperationRecord, signupCount int) *primary.Operation {
	return &primary.Operation{
		ID:           r.ID,
		PostRef:      r.PostRef,
		ChannelRef:   r.ChannelRef,
		CreatorID:    r.CreatorID,
		CreatorName:  r.CreatorName,
		Title:        r.Title,
		Description:  r.Description,
		ScheduledAt:  r.ScheduledAt,
		ReminderSent: r.ReminderSent,
		Expired:      r.Expired,
		CreatedAt:    r.CreatedAt,
		SignupCount:  signupCount,
	}
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

// Ensure OperationServiceImpl implements the interface
var _ primary.OperationService = (*OperationServiceImpl)(nil)
