// Package ctxutil carries the acting member through a request context so log
// records can be attributed without threading ids through every call.
// It has no internal dependencies and can be imported from any layer.
package ctxutil

import "context"

type actorKey struct{}

// WithActorID returns a context carrying the id of the member whose event or
// command is being handled.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actorID)
}

// ActorFromContext returns the actor id, or "" if none is set.
func ActorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok {
		return v
	}
	return ""
}
