// ABOUTME: Relay drives one prompt turn and emits message protocol events
// ABOUTME: Translates provider stream events into start/delta/complete/error

package relay

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/parley/internal/provider"
	"github.com/2389/parley/internal/session"
)

// EventType classifies a message protocol event.
type EventType int

const (
	// TypeStart opens a new assistant message.
	TypeStart EventType = iota
	// TypeDelta carries one incremental content chunk.
	TypeDelta
	// TypeComplete closes the message with its full accumulated text.
	TypeComplete
	// TypeError closes the message with a failure.
	TypeError
)

// Event is one message protocol event. Every started message ends with
// exactly one terminal event, TypeComplete or TypeError.
type Event struct {
	Type        EventType
	MessageID   string
	Content     string
	FullContent string
	Err         error
}

// SessionSource looks up live sessions. Satisfied by session.Manager.
type SessionSource interface {
	Get(conversationID string) (*session.Session, bool)
}

// Relay streams prompt turns. It holds no per-conversation state; the
// session registry is the single source of truth for what is live.
type Relay struct {
	sessions SessionSource
	logger   *slog.Logger

	// newID is replaced in tests for deterministic message IDs.
	newID func() string
	nowFn func() time.Time
}

// New creates a relay over the given session source.
func New(sessions SessionSource, logger *slog.Logger) *Relay {
	return &Relay{
		sessions: sessions,
		logger:   logger.With("component", "relay"),
		newID:    uuid.NewString,
		nowFn:    time.Now,
	}
}

// Send submits a prompt on the conversation's live session and returns
// the resulting event stream. A conversation without a live session
// yields a single TypeError event; the caller was supposed to resume
// first.
func (r *Relay) Send(ctx context.Context, conversationID, prompt string) <-chan Event {
	messageID := r.newID()
	out := make(chan Event, 64)

	sess, ok := r.sessions.Get(conversationID)
	if !ok {
		r.logger.Warn("send without live session", "conversation_id", conversationID)
		out <- Event{Type: TypeError, MessageID: messageID, Err: session.ErrSessionNotFound}
		close(out)
		return out
	}

	sess.BeginExchange(r.nowFn())
	out <- Event{Type: TypeStart, MessageID: messageID}

	events, err := sess.Upstream().Send(ctx, prompt)
	if err != nil {
		r.logger.Warn("upstream send failed",
			"conversation_id", conversationID, "message_id", messageID, "error", err)
		out <- Event{Type: TypeError, MessageID: messageID, Err: err}
		close(out)
		return out
	}

	go r.pump(conversationID, messageID, sess, events, out)
	return out
}

// pump consumes upstream events until the terminal one, accumulating
// deltas into the full reply. Reasoning deltas are dropped; they are
// not part of the assistant message. After emitting the terminal event
// it keeps draining so the upstream goroutine never blocks on a
// half-read channel.
func (r *Relay) pump(conversationID, messageID string, sess *session.Session, events <-chan provider.Event, out chan<- Event) {
	defer close(out)

	var buf strings.Builder
	for ev := range events {
		switch ev.Type {
		case provider.EventDelta:
			buf.WriteString(ev.Text)
			out <- Event{Type: TypeDelta, MessageID: messageID, Content: ev.Text}

		case provider.EventThinking:
			// dropped

		case provider.EventError:
			r.logger.Warn("stream error",
				"conversation_id", conversationID, "message_id", messageID, "error", ev.Err)
			out <- Event{Type: TypeError, MessageID: messageID, Err: ev.Err}
			drain(events)
			return

		case provider.EventFinal, provider.EventIdle:
			if ev.Text != "" {
				buf.WriteString(ev.Text)
				out <- Event{Type: TypeDelta, MessageID: messageID, Content: ev.Text}
			}
			sess.Touch(r.nowFn())
			out <- Event{Type: TypeComplete, MessageID: messageID, FullContent: buf.String()}
			drain(events)
			return
		}
	}

	// Upstream closed without a terminal event. Treat it as completion
	// so the message protocol invariant holds.
	sess.Touch(r.nowFn())
	out <- Event{Type: TypeComplete, MessageID: messageID, FullContent: buf.String()}
}

// Abort cancels the in-flight turn for a conversation. Aborting a
// conversation without a live session is a no-op.
func (r *Relay) Abort(conversationID string) {
	sess, ok := r.sessions.Get(conversationID)
	if !ok {
		return
	}
	sess.Upstream().Abort()
}

func drain(events <-chan provider.Event) {
	for range events {
	}
}
