// Package effects defines effect types as data structures representing transport instructions.
// This is the foundation of the Functional Core / Imperative Shell pattern.
// Effects are pure data - they describe what should happen, not how.
package effects

// Effect is the base interface for all effects.
// Effects represent I/O operations as data that can be interpreted by the shell.
type Effect interface {
	// EffectType returns a string identifier for the effect type.
	EffectType() string
}

// PublishEffect creates (empty PostRef) or overwrites a post.
type PublishEffect struct {
	OperationID string
	ChannelRef  string
	PostRef     string
	Text        string
}

func (e PublishEffect) EffectType() string { return "publish" }

// SeedReactionsEffect adds one reaction per symbol, in order.
type SeedReactionsEffect struct {
	ChannelRef string
	PostRef    string
	Symbols    []string
}

func (e SeedReactionsEffect) EffectType() string { return "seed_reactions" }

// RemoveReactionEffect removes one member's reaction from a post.
// SelfCaused marks engine-issued removals whose echo is suppressed;
// CorrelationID names the suppression entry registered for it.
type RemoveReactionEffect struct {
	OperationID   string
	ChannelRef    string
	PostRef       string
	MemberID      string
	Symbol        string
	Category      string
	SelfCaused    bool
	CorrelationID string
}

func (e RemoveReactionEffect) EffectType() string { return "remove_reaction" }

// RemovePostEffect deletes a post.
type RemovePostEffect struct {
	OperationID string
	ChannelRef  string
	PostRef     string
}

func (e RemovePostEffect) EffectType() string { return "remove_post" }

// DirectNoticeEffect sends a private message to a member.
type DirectNoticeEffect struct {
	MemberID string
	Text     string
}

func (e DirectNoticeEffect) EffectType() string { return "direct_notice" }
