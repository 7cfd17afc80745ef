package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/muster/internal/core/effects"
)

func TestEffectExecutor_RoutesEffects(t *testing.T) {
	transport := &recordingTransport{}
	executor := NewEffectExecutor(transport, testLogger())

	err := executor.Execute(context.Background(), []effects.Effect{
		effects.PublishEffect{ChannelRef: testChannel, PostRef: "post-1", Text: "roster"},
		effects.SeedReactionsEffect{PostRef: "post-1", Symbols: []string{"🎯", "❌"}},
		effects.RemoveReactionEffect{PostRef: "post-1", MemberID: "m-1", Symbol: "🎯", SelfCaused: true, CorrelationID: "corr-1"},
		effects.RemovePostEffect{PostRef: "post-1"},
		effects.DirectNoticeEffect{MemberID: "m-1", Text: "hello"},
	})
	require.NoError(t, err)

	assert.Equal(t, "roster", transport.lastPublish().Text)
	assert.Equal(t, [][]string{{"🎯", "❌"}}, transport.seeds)
	assert.Equal(t, []reactionRemoveCall{{
		PostRef:       "post-1",
		MemberID:      "m-1",
		Symbol:        "🎯",
		SelfCaused:    true,
		CorrelationID: "corr-1",
	}}, transport.removals())
	assert.Equal(t, []string{"post-1"}, transport.postRemoves)
	assert.Equal(t, []noticeCall{{MemberID: "m-1", Text: "hello"}}, transport.notices)
}

type unknownEffect struct{}

func (unknownEffect) EffectType() string { return "unknown" }

func TestEffectExecutor_UnknownEffect(t *testing.T) {
	executor := NewEffectExecutor(&recordingTransport{}, testLogger())

	err := executor.Execute(context.Background(), []effects.Effect{unknownEffect{}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to execute unknown effect")
}

func TestInlineDispatcher_ContinuesPastFailures(t *testing.T) {
	transport := &recordingTransport{removeErr: errors.New("forbidden")}
	d := NewInlineDispatcher(NewEffectExecutor(transport, testLogger()), testLogger())

	var failed []string
	d.Dispatch(context.Background(), []effects.Effect{
		effects.RemoveReactionEffect{PostRef: "post-1", MemberID: "m-1", Symbol: "🎯"},
		effects.RemovePostEffect{PostRef: "post-1"},
	}, func(eff effects.Effect, err error) {
		failed = append(failed, eff.EffectType())
	})

	assert.Equal(t, []string{"remove_reaction"}, failed)
	assert.Equal(t, []string{"post-1"}, transport.postRemoves)
}

func TestQueueDispatcher_DeliversInOrder(t *testing.T) {
	transport := &recordingTransport{}
	d := NewQueueDispatcher(NewEffectExecutor(transport, testLogger()), testLogger(), 8)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, d.Run(ctx))
	}()

	for _, text := range []string{"v1", "v2", "v3"} {
		d.Dispatch(ctx, []effects.Effect{effects.PublishEffect{PostRef: "post-1", Text: text}}, nil)
	}

	require.Eventually(t, func() bool { return transport.publishCount() == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	wg.Wait()

	transport.mu.Lock()
	defer transport.mu.Unlock()
	for i, want := range []string{"v1", "v2", "v3"} {
		assert.Equal(t, want, transport.publishes[i].Text)
	}
}

func TestQueueDispatcher_AfterStopReportsFailure(t *testing.T) {
	d := NewQueueDispatcher(NewEffectExecutor(&recordingTransport{}, testLogger()), testLogger(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))

	// Fill the queue so the stopped branch is the only ready case.
	for i := 0; i < cap(d.queue); i++ {
		d.queue <- dispatchJob{ctx: context.Background()}
	}

	var got error
	d.Dispatch(context.Background(), []effects.Effect{effects.RemovePostEffect{PostRef: "post-1"}}, func(_ effects.Effect, err error) {
		got = err
	})
	assert.ErrorIs(t, got, ErrDispatcherStopped)
}
