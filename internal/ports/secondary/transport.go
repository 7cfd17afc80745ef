package secondary

import "context"

// MemberDirectory is the external source of truth for member roles and names.
// Roles are looked up on every check and never cached by the application.
type MemberDirectory interface {
	// MemberRoles returns the member's current role ids.
	MemberRoles(ctx context.Context, memberID string) ([]string, error)

	// DisplayName returns the member's current display name.
	DisplayName(ctx context.Context, memberID string) (string, error)
}

// Transport executes outbound instructions against the chat platform.
type Transport interface {
	// Publish creates a post when postRef is empty, otherwise overwrites it.
	// It returns the reference of the post written.
	Publish(ctx context.Context, channelRef, postRef, text string) (string, error)

	// SeedReactions adds one reaction per symbol, in order.
	SeedReactions(ctx context.Context, channelRef, postRef string, symbols []string) error

	// RemoveReaction removes a member's reaction from a post. selfCaused marks
	// removals whose echo the engine will suppress; correlationID names the
	// suppression entry so the gateway can tag the echo with it.
	RemoveReaction(ctx context.Context, channelRef, postRef, memberID, symbol string, selfCaused bool, correlationID string) error

	// RemovePost deletes a post.
	RemovePost(ctx context.Context, channelRef, postRef string) error

	// SendDirectNotice sends a private message to a member.
	SendDirectNotice(ctx context.Context, memberID, text string) error
}
