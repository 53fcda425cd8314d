// ABOUTME: Provider-neutral interfaces for upstream LLM session clients
// ABOUTME: Defines Client, Session, streaming events, and history injection

package provider

import (
	"context"
	"errors"
)

// ErrSessionUnknown is returned by ResumeSession when the client has no
// record of the given session ID. Callers fall back to creating a fresh
// session and injecting history.
var ErrSessionUnknown = errors.New("session unknown to provider")

// EventType classifies a streaming event emitted by a session.
type EventType int

const (
	// EventDelta carries an incremental chunk of assistant text.
	EventDelta EventType = iota
	// EventThinking carries reasoning text. Not part of the final reply.
	EventThinking
	// EventFinal carries the last chunk of a reply, if any, and marks
	// the turn as finished.
	EventFinal
	// EventIdle signals that the turn is complete and the session is
	// ready for the next prompt.
	EventIdle
	// EventError signals a mid-stream failure. The session survives.
	EventError
)

// Event is a single streaming event from an upstream session.
type Event struct {
	Type EventType
	Text string
	Err  error
}

// HistoryEntry is one prior message replayed into a new session.
type HistoryEntry struct {
	Role    string // "user" or "assistant"
	Content string
}

// SessionOptions tune session creation.
type SessionOptions struct {
	Streaming         bool
	AutoExtendContext bool
	MaxTokens         int
}

// ModelInfo describes a model the provider can serve.
type ModelInfo struct {
	ID          string
	DisplayName string
}

// AuthStatus reports how (and whether) the client is authenticated.
type AuthStatus struct {
	Authenticated bool
	Method        string
	Detail        string
}

// Session is a live upstream conversation bound to one model.
// Implementations are safe for use by one sender at a time; callers
// serialize Send per session.
type Session interface {
	ID() string
	Model() string

	// Send submits a prompt and returns a channel of streaming events.
	// The channel is closed after the terminal event (EventIdle or
	// EventError following the last delta).
	Send(ctx context.Context, prompt string) (<-chan Event, error)

	// Abort cancels the in-flight turn, if any.
	Abort()

	// Close tears down the upstream session.
	Close(ctx context.Context) error
}

// HistoryInjector is implemented by sessions that accept prior
// conversation turns as context. Resolved once, at construction time.
type HistoryInjector interface {
	InjectHistory(ctx context.Context, entries []HistoryEntry) error
}

// Client creates and resumes upstream sessions.
type Client interface {
	// CreateSession opens a new session with the given ID and model.
	CreateSession(ctx context.Context, id, model string, opts SessionOptions) (Session, error)

	// ResumeSession reattaches to an existing session by ID. Returns
	// ErrSessionUnknown when the provider has no record of it.
	ResumeSession(ctx context.Context, id string) (Session, error)

	// ListModels returns the models the provider currently serves.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// AuthStatus reports the client's authentication state.
	AuthStatus(ctx context.Context) (AuthStatus, error)
}
