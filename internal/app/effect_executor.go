// Package app contains the application layer - service implementations and effect execution.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/muster/internal/core/effects"
	"github.com/example/muster/internal/ports/secondary"
)

// EffectExecutor interprets and executes effects.
// This is the "Imperative Shell" - the only place transport I/O happens.
type EffectExecutor interface {
	Execute(ctx context.Context, effs []effects.Effect) error
}

// TransportEffectExecutor implements EffectExecutor against a secondary.Transport.
type TransportEffectExecutor struct {
	transport secondary.Transport
	logger    *slog.Logger
}

// NewEffectExecutor creates a new TransportEffectExecutor.
func NewEffectExecutor(transport secondary.Transport, logger *slog.Logger) *TransportEffectExecutor {
	return &TransportEffectExecutor{transport: transport, logger: logger}
}

// Execute processes a slice of effects, executing each in sequence.
func (e *TransportEffectExecutor) Execute(ctx context.Context, effs []effects.Effect) error {
	for _, eff := range effs {
		e.logger.DebugContext(ctx, "executing effect", "effect", eff.EffectType())
		if err := e.executeOne(ctx, eff); err != nil {
			return fmt.Errorf("failed to execute %s effect: %w", eff.EffectType(), err)
		}
	}
	return nil
}

func (e *TransportEffectExecutor) executeOne(ctx context.Context, eff effects.Effect) error {
	switch typed := eff.(type) {
	case effects.PublishEffect:
		_, err := e.transport.Publish(ctx, typed.ChannelRef, typed.PostRef, typed.Text)
		return err
	case effects.SeedReactionsEffect:
		return e.transport.SeedReactions(ctx, typed.ChannelRef, typed.PostRef, typed.Symbols)
	case effects.RemoveReactionEffect:
		return e.transport.RemoveReaction(ctx, typed.ChannelRef, typed.PostRef, typed.MemberID, typed.Symbol, typed.SelfCaused, typed.CorrelationID)
	case effects.RemovePostEffect:
		return e.transport.RemovePost(ctx, typed.ChannelRef, typed.PostRef)
	case effects.DirectNoticeEffect:
		return e.transport.SendDirectNotice(ctx, typed.MemberID, typed.Text)
	default:
		return fmt.Errorf("unknown effect type: %T", eff)
	}
}
