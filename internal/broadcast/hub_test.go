// ABOUTME: Tests for the Hub fan-out pub/sub system
// ABOUTME: Covers subscribe priming, publish, unsubscribe, cancellation, and drops

package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvEnvelope(t *testing.T, ch <-chan *Envelope) *Envelope {
	t.Helper()
	select {
	case env, ok := <-ch:
		require.True(t, ok, "channel closed")
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for envelope")
		return nil
	}
}

func TestHub_SubscribePrimesSessionIdle(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	ch, _ := h.Subscribe(t.Context(), "conv-1")

	env := recvEnvelope(t, ch)
	assert.Equal(t, EventSessionIdle, env.Event)
}

func TestHub_AllViewersReceiveEnvelope(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	ctx := t.Context()
	ch1, _ := h.Subscribe(ctx, "conv-1")
	ch2, _ := h.Subscribe(ctx, "conv-1")

	// Drain the priming event first.
	recvEnvelope(t, ch1)
	recvEnvelope(t, ch2)

	h.Publish("conv-1", NewMessageStart("msg-1"))

	for i, ch := range []<-chan *Envelope{ch1, ch2} {
		env := recvEnvelope(t, ch)
		assert.Equal(t, EventMessageStart, env.Event, "viewer %d got wrong event", i)
		assert.Equal(t, StartPayload{MessageID: "msg-1"}, env.Data)
	}
}

func TestHub_ConversationsAreIsolated(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	ctx := t.Context()
	ch1, _ := h.Subscribe(ctx, "conv-1")
	ch2, _ := h.Subscribe(ctx, "conv-2")
	recvEnvelope(t, ch1)
	recvEnvelope(t, ch2)

	h.Publish("conv-1", NewMessageDelta("msg-1", "hi"))

	env := recvEnvelope(t, ch1)
	assert.Equal(t, EventMessageDelta, env.Event)

	select {
	case env := <-ch2:
		t.Fatalf("viewer of conv-2 received %q", env.Event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_PublishWithoutViewersIsNoOp(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	// Must not panic or block.
	h.Publish("conv-none", NewMessageComplete("msg-1", "done"))
}

func TestHub_UnsubscribeClosesChannelAndEvictsKey(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	ch, subID := h.Subscribe(t.Context(), "conv-1")
	recvEnvelope(t, ch)

	h.Unsubscribe("conv-1", subID)

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed")

	// The empty conversation entry is gone.
	h.mu.RLock()
	_, exists := h.subscribers["conv-1"]
	h.mu.RUnlock()
	assert.False(t, exists)

	// Unsubscribing again is a no-op.
	h.Unsubscribe("conv-1", subID)
}

func TestHub_ContextCancellationUnsubscribes(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	ctx, cancel := context.WithCancel(t.Context())
	ch, _ := h.Subscribe(ctx, "conv-1")
	recvEnvelope(t, ch)

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed after cancellation")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for auto-unsubscribe")
	}

	assert.Equal(t, 0, h.ViewerCount("conv-1"))
}

func TestHub_SlowViewerDropsEvents(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	ch, _ := h.Subscribe(t.Context(), "conv-1")

	// Fill the buffer well past capacity without draining. The priming
	// event already occupies one slot.
	for i := range subscriberBufferSize * 2 {
		h.Publish("conv-1", NewMessageDelta("msg-1", string(rune('a'+i%26))))
	}

	// Drain whatever made it through; the total never exceeds the
	// buffer and the publisher never blocked.
	count := 0
	for {
		select {
		case <-ch:
			count++
		default:
			assert.LessOrEqual(t, count, subscriberBufferSize)
			return
		}
	}
}

func TestHub_CloseClosesAllChannels(t *testing.T) {
	h := NewHub(nil)

	ctx := t.Context()
	ch1, _ := h.Subscribe(ctx, "conv-1")
	ch2, _ := h.Subscribe(ctx, "conv-2")
	recvEnvelope(t, ch1)
	recvEnvelope(t, ch2)

	h.Close()

	_, ok := <-ch1
	assert.False(t, ok)
	_, ok = <-ch2
	assert.False(t, ok)
}
