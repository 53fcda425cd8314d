// ABOUTME: Tests for the relay message protocol translation
// ABOUTME: Covers delta concatenation, thinking drops, errors, and missing sessions

package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/parley/internal/provider"
	"github.com/2389/parley/internal/session"
)

// scriptedSession replays a fixed sequence of provider events.
type scriptedSession struct {
	model   string
	script  []provider.Event
	sendErr error

	mu      sync.Mutex
	aborted bool
}

func (s *scriptedSession) ID() string    { return "scripted" }
func (s *scriptedSession) Model() string { return s.model }

func (s *scriptedSession) Send(ctx context.Context, prompt string) (<-chan provider.Event, error) {
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	ch := make(chan provider.Event, len(s.script))
	for _, ev := range s.script {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func (s *scriptedSession) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborted = true
}

func (s *scriptedSession) Close(ctx context.Context) error { return nil }

type mapSource map[string]*session.Session

func (m mapSource) Get(id string) (*session.Session, bool) {
	s, ok := m[id]
	return s, ok
}

func newTestRelay(src SessionSource) *Relay {
	r := New(src, slog.Default())
	r.newID = func() string { return "msg-1" }
	return r
}

func collect(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out waiting for relay events")
		}
	}
}

func TestSend_DeltasConcatenateIntoComplete(t *testing.T) {
	upstream := &scriptedSession{model: "m1", script: []provider.Event{
		{Type: provider.EventDelta, Text: "Hello"},
		{Type: provider.EventDelta, Text: ", "},
		{Type: provider.EventDelta, Text: "world"},
		{Type: provider.EventIdle},
	}}
	sess := session.New("conv-1", upstream, time.Now())
	r := newTestRelay(mapSource{"conv-1": sess})

	events := collect(t, r.Send(t.Context(), "conv-1", "hi"))
	require.Len(t, events, 5)

	assert.Equal(t, TypeStart, events[0].Type)
	assert.Equal(t, "msg-1", events[0].MessageID)

	assert.Equal(t, "Hello", events[1].Content)
	assert.Equal(t, ", ", events[2].Content)
	assert.Equal(t, "world", events[3].Content)

	final := events[4]
	assert.Equal(t, TypeComplete, final.Type)
	assert.Equal(t, "Hello, world", final.FullContent)
	assert.Equal(t, "msg-1", final.MessageID)
}

func TestSend_NoSessionYieldsSingleError(t *testing.T) {
	r := newTestRelay(mapSource{})

	events := collect(t, r.Send(t.Context(), "conv-missing", "hi"))
	require.Len(t, events, 1)
	assert.Equal(t, TypeError, events[0].Type)
	assert.ErrorIs(t, events[0].Err, session.ErrSessionNotFound)
}

func TestSend_ThinkingDeltasDropped(t *testing.T) {
	upstream := &scriptedSession{model: "m1", script: []provider.Event{
		{Type: provider.EventThinking, Text: "let me reason"},
		{Type: provider.EventDelta, Text: "answer"},
		{Type: provider.EventThinking, Text: "more reasoning"},
		{Type: provider.EventIdle},
	}}
	sess := session.New("conv-1", upstream, time.Now())
	r := newTestRelay(mapSource{"conv-1": sess})

	events := collect(t, r.Send(t.Context(), "conv-1", "hi"))
	require.Len(t, events, 3)
	assert.Equal(t, TypeStart, events[0].Type)
	assert.Equal(t, "answer", events[1].Content)
	assert.Equal(t, "answer", events[2].FullContent)
}

func TestSend_MidStreamError(t *testing.T) {
	streamErr := fmt.Errorf("overloaded")
	upstream := &scriptedSession{model: "m1", script: []provider.Event{
		{Type: provider.EventDelta, Text: "partial"},
		{Type: provider.EventError, Err: streamErr},
	}}
	sess := session.New("conv-1", upstream, time.Now())
	r := newTestRelay(mapSource{"conv-1": sess})

	events := collect(t, r.Send(t.Context(), "conv-1", "hi"))
	require.Len(t, events, 3)
	assert.Equal(t, TypeStart, events[0].Type)
	assert.Equal(t, TypeDelta, events[1].Type)

	final := events[2]
	assert.Equal(t, TypeError, final.Type)
	assert.ErrorIs(t, final.Err, streamErr)
}

func TestSend_UpstreamSendFailure(t *testing.T) {
	sendErr := fmt.Errorf("connection refused")
	upstream := &scriptedSession{model: "m1", sendErr: sendErr}
	sess := session.New("conv-1", upstream, time.Now())
	r := newTestRelay(mapSource{"conv-1": sess})

	events := collect(t, r.Send(t.Context(), "conv-1", "hi"))
	require.Len(t, events, 2)
	assert.Equal(t, TypeStart, events[0].Type)
	assert.Equal(t, TypeError, events[1].Type)
	assert.ErrorIs(t, events[1].Err, sendErr)
}

func TestSend_FinalEventTextCounted(t *testing.T) {
	upstream := &scriptedSession{model: "m1", script: []provider.Event{
		{Type: provider.EventDelta, Text: "almost "},
		{Type: provider.EventFinal, Text: "done"},
	}}
	sess := session.New("conv-1", upstream, time.Now())
	r := newTestRelay(mapSource{"conv-1": sess})

	events := collect(t, r.Send(t.Context(), "conv-1", "hi"))
	final := events[len(events)-1]
	assert.Equal(t, TypeComplete, final.Type)
	assert.Equal(t, "almost done", final.FullContent)
}

func TestSend_ClosedWithoutTerminalCompletes(t *testing.T) {
	upstream := &scriptedSession{model: "m1", script: []provider.Event{
		{Type: provider.EventDelta, Text: "cut off"},
	}}
	sess := session.New("conv-1", upstream, time.Now())
	r := newTestRelay(mapSource{"conv-1": sess})

	events := collect(t, r.Send(t.Context(), "conv-1", "hi"))
	final := events[len(events)-1]
	assert.Equal(t, TypeComplete, final.Type)
	assert.Equal(t, "cut off", final.FullContent)
}

func TestSend_BumpsMessageCount(t *testing.T) {
	upstream := &scriptedSession{model: "m1", script: []provider.Event{
		{Type: provider.EventIdle},
	}}
	sess := session.New("conv-1", upstream, time.Now())
	r := newTestRelay(mapSource{"conv-1": sess})

	collect(t, r.Send(t.Context(), "conv-1", "hi"))
	assert.Equal(t, 1, sess.MessageCount())
}

func TestAbort(t *testing.T) {
	upstream := &scriptedSession{model: "m1"}
	sess := session.New("conv-1", upstream, time.Now())
	r := newTestRelay(mapSource{"conv-1": sess})

	r.Abort("conv-1")
	upstream.mu.Lock()
	assert.True(t, upstream.aborted)
	upstream.mu.Unlock()

	// No session, no panic.
	r.Abort("conv-missing")
}
