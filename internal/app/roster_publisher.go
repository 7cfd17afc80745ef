package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/muster/internal/clock"
	"github.com/example/muster/internal/core/effects"
	"github.com/example/muster/internal/core/policy"
	"github.com/example/muster/internal/core/render"
	"github.com/example/muster/internal/ports/secondary"
)

// RosterPublisher re-renders an operation's full roster and publishes it over
// the existing post. Publishes for one operation are serialized by a
// per-operation lock; rapid successive requests may be coalesced by debounce.
type RosterPublisher struct {
	operationRepo secondary.OperationRepository
	signupRepo    secondary.SignupRepository
	policy        *policy.Policy
	dispatcher    Dispatcher
	clock         clock.Clock
	logger        *slog.Logger
	renderOpts    render.Options
	debounce      time.Duration

	locks *KeyedMutex

	mu      sync.Mutex
	pending map[string]*clock.Timer
}

// RosterPublisherConfig holds presentation and coalescing settings.
type RosterPublisherConfig struct {
	RenderOptions render.Options
	Debounce      time.Duration
}

// NewRosterPublisher creates a publisher. A zero debounce publishes synchronously.
func NewRosterPublisher(
	operationRepo secondary.OperationRepository,
	signupRepo secondary.SignupRepository,
	pol *policy.Policy,
	dispatcher Dispatcher,
	clk clock.Clock,
	logger *slog.Logger,
	cfg RosterPublisherConfig,
) *RosterPublisher {
	return &RosterPublisher{
		operationRepo: operationRepo,
		signupRepo:    signupRepo,
		policy:        pol,
		dispatcher:    dispatcher,
		clock:         clk,
		logger:        logger.With("component", "publisher"),
		renderOpts:    cfg.RenderOptions,
		debounce:      cfg.Debounce,
		locks:         NewKeyedMutex(),
		pending:       make(map[string]*clock.Timer),
	}
}

// Schedule requests a publish of the operation's current roster. With a
// debounce, requests arriving while one is pending share its publish, which
// reads state when it fires.
func (p *RosterPublisher) Schedule(ctx context.Context, operationID string) {
	if p.debounce <= 0 {
		p.publishLogged(ctx, operationID)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.pending[operationID]; ok {
		return
	}

	detached := context.WithoutCancel(ctx)
	p.pending[operationID] = p.clock.AfterFunc(p.debounce, func() {
		p.mu.Lock()
		delete(p.pending, operationID)
		p.mu.Unlock()
		p.publishLogged(detached, operationID)
	})
}

// Flush publishes every pending operation now.
func (p *RosterPublisher) Flush(ctx context.Context) {
	p.mu.Lock()
	ids := make([]string, 0, len(p.pending))
	for id, timer := range p.pending {
		if timer.Stop() {
			ids = append(ids, id)
		}
		delete(p.pending, id)
	}
	p.mu.Unlock()

	for _, id := range ids {
		p.publishLogged(ctx, id)
	}
}

// PublishNow renders and publishes the operation immediately. Expired
// operations are skipped, since their post is gone.
func (p *RosterPublisher) PublishNow(ctx context.Context, operationID string) error {
	return p.WithOperationLock(operationID, func() error {
		op, err := p.operationRepo.GetByID(ctx, operationID)
		if err != nil {
			return fmt.Errorf("failed to load operation: %w", err)
		}
		if op.Expired {
			p.logger.Debug("skipping publish for expired operation", "operation_id", operationID)
			return nil
		}

		text, err := p.Render(ctx, op)
		if err != nil {
			return err
		}

		p.dispatcher.Dispatch(ctx, []effects.Effect{effects.PublishEffect{
			OperationID: op.ID,
			ChannelRef:  op.ChannelRef,
			PostRef:     op.PostRef,
			Text:        text,
		}}, nil)
		return nil
	})
}

// Render builds the roster text for op from its full current signup set.
func (p *RosterPublisher) Render(ctx context.Context, op *secondary.OperationRecord) (string, error) {
	signups, err := p.signupRepo.List(ctx, op.ID)
	if err != nil {
		return "", fmt.Errorf("failed to list signups: %w", err)
	}

	entries := make([]render.Entry, 0, len(signups))
	for _, s := range signups {
		entries = append(entries, render.Entry{
			Category:    s.Category,
			DisplayName: s.DisplayName,
			SignedUpAt:  s.SignedUpAt,
		})
	}

	event := render.Event{
		ID:          op.ID,
		Title:       op.Title,
		Description: op.Description,
		ScheduledAt: op.ScheduledAt,
		CreatorName: op.CreatorName,
	}

	return render.Render(event, entries, p.policy.OrderedCategories(), p.clock.Now(), p.renderOpts), nil
}

// WithOperationLock runs fn while holding the operation's publish lock.
// Expiry and deletion use it so no publish lands on a removed post.
func (p *RosterPublisher) WithOperationLock(operationID string, fn func() error) error {
	unlock := p.locks.Lock(operationID)
	defer unlock()
	return fn()
}

// Pending returns the number of operations waiting on a debounced publish.
func (p *RosterPublisher) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *RosterPublisher) publishLogged(ctx context.Context, operationID string) {
	if err := p.PublishNow(ctx, operationID); err != nil {
		p.logger.Error("roster publish failed", "operation_id", operationID, "error", err)
	}
}
