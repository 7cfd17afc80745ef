// Package jsonl adapts the chat platform to line-delimited JSON streams.
// Outbound instructions are written one object per line; inbound reaction
// and message events are read the same way.
package jsonl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/example/muster/internal/ports/secondary"
)

// Instruction ops written by Transport.
const (
	OpPublish        = "publish"
	OpSeedReactions  = "seed_reactions"
	OpRemoveReaction = "remove_reaction"
	OpRemovePost     = "remove_post"
	OpDirectNotice   = "direct_notice"
)

// Instruction is one outbound line.
type Instruction struct {
	Op         string   `json:"op"`
	ChannelRef string   `json:"channel,omitempty"`
	PostRef    string   `json:"post,omitempty"`
	MemberID   string   `json:"member,omitempty"`
	Symbol     string   `json:"symbol,omitempty"`
	Symbols    []string `json:"symbols,omitempty"`
	Text       string   `json:"text,omitempty"`
	// Created is set on a publish that minted a new post.
	Created bool `json:"created,omitempty"`
	// SelfCaused and CorrelationID tag engine-issued reaction removals.
	SelfCaused    bool   `json:"self_caused,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Transport implements secondary.Transport by writing instructions to w.
type Transport struct {
	mu     sync.Mutex
	enc    *json.Encoder
	newRef func() string
}

// NewTransport creates a Transport writing to w.
func NewTransport(w io.Writer) *Transport {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Transport{enc: enc, newRef: uuid.NewString}
}

func (t *Transport) write(ctx context.Context, in Instruction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.enc.Encode(in); err != nil {
		return fmt.Errorf("failed to write %s instruction: %w", in.Op, err)
	}
	return nil
}

// Publish writes a publish instruction, minting a post ref for new posts.
func (t *Transport) Publish(ctx context.Context, channelRef, postRef, text string) (string, error) {
	in := Instruction{Op: OpPublish, ChannelRef: channelRef, PostRef: postRef, Text: text}
	if postRef == "" {
		in.PostRef = t.newRef()
		in.Created = true
	}
	if err := t.write(ctx, in); err != nil {
		return "", err
	}
	return in.PostRef, nil
}

// SeedReactions writes a seed_reactions instruction.
func (t *Transport) SeedReactions(ctx context.Context, channelRef, postRef string, symbols []string) error {
	return t.write(ctx, Instruction{Op: OpSeedReactions, ChannelRef: channelRef, PostRef: postRef, Symbols: symbols})
}

// RemoveReaction writes a remove_reaction instruction.
func (t *Transport) RemoveReaction(ctx context.Context, channelRef, postRef, memberID, symbol string, selfCaused bool, correlationID string) error {
	return t.write(ctx, Instruction{
		Op:            OpRemoveReaction,
		ChannelRef:    channelRef,
		PostRef:       postRef,
		MemberID:      memberID,
		Symbol:        symbol,
		SelfCaused:    selfCaused,
		CorrelationID: correlationID,
	})
}

// RemovePost writes a remove_post instruction.
func (t *Transport) RemovePost(ctx context.Context, channelRef, postRef string) error {
	return t.write(ctx, Instruction{Op: OpRemovePost, ChannelRef: channelRef, PostRef: postRef})
}

// SendDirectNotice writes a direct_notice instruction.
func (t *Transport) SendDirectNotice(ctx context.Context, memberID, text string) error {
	return t.write(ctx, Instruction{Op: OpDirectNotice, MemberID: memberID, Text: text})
}

var _ secondary.Transport = (*Transport)(nil)
