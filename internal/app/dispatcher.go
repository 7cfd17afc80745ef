package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/example/muster/internal/core/effects"
)

// ErrDispatcherStopped is reported to failure handlers for effects that
// arrive after the queue worker has exited.
var ErrDispatcherStopped = errors.New("dispatcher stopped")

// FailureHandler is called once for each effect whose execution failed.
type FailureHandler func(eff effects.Effect, err error)

// Dispatcher hands effects to the transport without making the caller wait
// for delivery. Failures are logged as transport failures and never retried.
type Dispatcher interface {
	Dispatch(ctx context.Context, effs []effects.Effect, onFailure FailureHandler)
}

// InlineDispatcher executes effects on the caller's goroutine.
type InlineDispatcher struct {
	executor EffectExecutor
	logger   *slog.Logger
}

// NewInlineDispatcher creates a dispatcher that executes synchronously.
func NewInlineDispatcher(executor EffectExecutor, logger *slog.Logger) *InlineDispatcher {
	return &InlineDispatcher{executor: executor, logger: logger.With("component", "dispatcher")}
}

// Dispatch executes each effect in order, continuing past failures.
func (d *InlineDispatcher) Dispatch(ctx context.Context, effs []effects.Effect, onFailure FailureHandler) {
	executeAll(ctx, d.executor, d.logger, effs, onFailure)
}

// QueueDispatcher executes effects on a single worker goroutine in FIFO
// order, so instructions for one post are delivered in the order issued.
type QueueDispatcher struct {
	executor EffectExecutor
	logger   *slog.Logger
	queue    chan dispatchJob
	stopped  chan struct{}
	stopOnce sync.Once
}

type dispatchJob struct {
	ctx       context.Context
	effs      []effects.Effect
	onFailure FailureHandler
}

// NewQueueDispatcher creates a dispatcher with a buffered queue of size jobs.
func NewQueueDispatcher(executor EffectExecutor, logger *slog.Logger, size int) *QueueDispatcher {
	if size <= 0 {
		size = 256
	}
	return &QueueDispatcher{
		executor: executor,
		logger:   logger.With("component", "dispatcher"),
		queue:    make(chan dispatchJob, size),
		stopped:  make(chan struct{}),
	}
}

// Dispatch enqueues effects. It blocks only while the queue is full.
func (d *QueueDispatcher) Dispatch(ctx context.Context, effs []effects.Effect, onFailure FailureHandler) {
	job := dispatchJob{ctx: context.WithoutCancel(ctx), effs: effs, onFailure: onFailure}
	select {
	case d.queue <- job:
	case <-d.stopped:
		for _, eff := range effs {
			d.logger.Warn("transport failure", "effect", eff.EffectType(), "error", ErrDispatcherStopped)
			if onFailure != nil {
				onFailure(eff, ErrDispatcherStopped)
			}
		}
	}
}

// Run executes queued effects until ctx is cancelled, then drains what is
// already queued and returns.
func (d *QueueDispatcher) Run(ctx context.Context) error {
	defer d.stopOnce.Do(func() { close(d.stopped) })

	for {
		select {
		case job := <-d.queue:
			executeAll(job.ctx, d.executor, d.logger, job.effs, job.onFailure)
		case <-ctx.Done():
			d.drain()
			return nil
		}
	}
}

func (d *QueueDispatcher) drain() {
	for {
		select {
		case job := <-d.queue:
			executeAll(job.ctx, d.executor, d.logger, job.effs, job.onFailure)
		default:
			return
		}
	}
}

func executeAll(ctx context.Context, executor EffectExecutor, logger *slog.Logger, effs []effects.Effect, onFailure FailureHandler) {
	for _, eff := range effs {
		if err := executor.Execute(ctx, []effects.Effect{eff}); err != nil {
			logger.Warn("transport failure", "effect", eff.EffectType(), "error", err)
			if onFailure != nil {
				onFailure(eff, err)
			}
		}
	}
}

var (
	_ Dispatcher = (*InlineDispatcher)(nil)
	_ Dispatcher = (*QueueDispatcher)(nil)
)
