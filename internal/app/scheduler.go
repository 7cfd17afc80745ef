package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/muster/internal/clock"
	"github.com/example/muster/internal/core/effects"
	"github.com/example/muster/internal/core/policy"
	"github.com/example/muster/internal/core/render"
	"github.com/example/muster/internal/ports/primary"
	"github.com/example/muster/internal/ports/secondary"
)

// SchedulerConfig holds the lifecycle timing settings.
type SchedulerConfig struct {
	ReminderLead     time.Duration
	ExpiryGrace      time.Duration
	ReminderInterval time.Duration
	ExpiryInterval   time.Duration
}

// LifecycleSchedulerImpl implements the LifecycleScheduler interface.
// It is the only writer of the reminder flag.
type LifecycleSchedulerImpl struct {
	operationRepo secondary.OperationRepository
	signupRepo    secondary.SignupRepository
	publisher     *RosterPublisher
	dispatcher    Dispatcher
	registry      *SuppressionRegistry
	clock         clock.Clock
	cfg           SchedulerConfig
	logger        *slog.Logger
}

// NewLifecycleScheduler creates a new LifecycleScheduler with injected dependencies.
func NewLifecycleScheduler(
	operationRepo secondary.OperationRepository,
	signupRepo secondary.SignupRepository,
	publisher *RosterPublisher,
	dispatcher Dispatcher,
	registry *SuppressionRegistry,
	clk clock.Clock,
	cfg SchedulerConfig,
	logger *slog.Logger,
) *LifecycleSchedulerImpl {
	return &LifecycleSchedulerImpl{
		operationRepo: operationRepo,
		signupRepo:    signupRepo,
		publisher:     publisher,
		dispatcher:    dispatcher,
		registry:      registry,
		clock:         clk,
		cfg:           cfg,
		logger:        logger.With("component", "scheduler"),
	}
}

// Run sweeps once immediately, then on each interval until ctx is cancelled.
// Sweep errors are logged and never stop the loop.
func (s *LifecycleSchedulerImpl) Run(ctx context.Context) error {
	reminders := s.clock.NewTicker(s.cfg.ReminderInterval)
	defer reminders.Stop()
	expiry := s.clock.NewTicker(s.cfg.ExpiryInterval)
	defer expiry.Stop()

	s.reminderTick(ctx)
	s.expiryTick(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-reminders.C:
			s.reminderTick(ctx)
		case <-expiry.C:
			s.expiryTick(ctx)
		}
	}
}

func (s *LifecycleSchedulerImpl) reminderTick(ctx context.Context) {
	if _, err := s.SweepReminders(ctx); err != nil {
		s.logger.Error("reminder sweep failed", "error", err)
	}
	s.registry.Sweep()
}

func (s *LifecycleSchedulerImpl) expiryTick(ctx context.Context) {
	if _, err := s.SweepExpired(ctx); err != nil {
		s.logger.Error("expiry sweep failed", "error", err)
	}
}

// SweepReminders sends one direct notice per non-declined signup of each
// operation about to start, then sets its reminder flag. A crash between the
// two repeats the notices rather than skipping them.
func (s *LifecycleSchedulerImpl) SweepReminders(ctx context.Context) (int, error) {
	now := s.clock.Now()
	due, err := s.operationRepo.DueForReminder(ctx, now, s.cfg.ReminderLead)
	if err != nil {
		return 0, fmt.Errorf("failed to query due reminders: %w", err)
	}

	var errs []error
	reminded := 0
	for _, op := range due {
		signups, err := s.signupRepo.ListExcluding(ctx, op.ID, policy.DeclinedKey)
		if err != nil {
			errs = append(errs, fmt.Errorf("operation %s: failed to list signups: %w", op.ID, err))
			continue
		}

		text := ReminderText(op.Title, op.ScheduledAt, now)
		notices := make([]effects.Effect, 0, len(signups))
		for _, signup := range signups {
			notices = append(notices, effects.DirectNoticeEffect{MemberID: signup.MemberID, Text: text})
		}
		s.dispatcher.Dispatch(ctx, notices, nil)

		if err := s.operationRepo.SetLifecycleFlag(ctx, op.ID, secondary.FlagReminderSent); err != nil {
			errs = append(errs, fmt.Errorf("operation %s: failed to set reminder flag: %w", op.ID, err))
			continue
		}

		reminded++
		s.logger.Info("reminders sent", "operation_id", op.ID, "recipients", len(notices))
	}

	return reminded, errors.Join(errs...)
}

// SweepExpired removes the post of every operation past its grace period and
// marks it expired. Signups are retained. Each expiry holds the operation's
// publish lock so no roster publish can land on the removed post.
func (s *LifecycleSchedulerImpl) SweepExpired(ctx context.Context) (int, error) {
	due, err := s.operationRepo.DueForExpiry(ctx, s.clock.Now(), s.cfg.ExpiryGrace)
	if err != nil {
		return 0, fmt.Errorf("failed to query expired operations: %w", err)
	}

	var errs []error
	expired := 0
	for _, op := range due {
		skipped := false
		err := s.publisher.WithOperationLock(op.ID, func() error {
			// A delete may have expired the operation since the query ran.
			current, err := s.operationRepo.GetByID(ctx, op.ID)
			if err != nil {
				return err
			}
			if current.Expired {
				skipped = true
				return nil
			}
			s.dispatcher.Dispatch(ctx, []effects.Effect{effects.RemovePostEffect{
				OperationID: current.ID,
				ChannelRef:  current.ChannelRef,
				PostRef:     current.PostRef,
			}}, nil)
			return s.operationRepo.SetLifecycleFlag(ctx, current.ID, secondary.FlagExpired)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("operation %s: failed to expire: %w", op.ID, err))
			continue
		}
		if skipped {
			s.logger.Debug("operation already expired, skipping", "operation_id", op.ID)
			continue
		}

		expired++
		s.logger.Info("operation expired", "operation_id", op.ID, "scheduled_at", op.ScheduledAt)
	}

	return expired, errors.Join(errs...)
}

// ReminderText is the direct notice sent ahead of an operation.
func ReminderText(title string, scheduledAt, now time.Time) string {
	return fmt.Sprintf("⏰ Reminder: %s is %s!", title, render.Countdown(scheduledAt, now))
}

// Ensure LifecycleSchedulerImpl implements the interface
var _ primary.LifecycleScheduler = (*LifecycleSchedulerImpl)(nil)
