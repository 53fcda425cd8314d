// ABOUTME: Session wraps an upstream provider session with activity tracking
// ABOUTME: Tracks last activity, message count, and the resolved history injector

package session

import (
	"sync"
	"time"

	"github.com/2389/parley/internal/provider"
)

// Session binds a conversation to a live upstream session and tracks
// its activity for idle reaping. The injector capability is resolved
// once here; callers never type-assert the upstream session again.
type Session struct {
	conversationID string
	upstream       provider.Session
	injector       provider.HistoryInjector
	createdAt      time.Time

	mu           sync.Mutex
	lastActiveAt time.Time
	messageCount int
}

// New wraps an upstream session. now becomes both the creation and the
// initial activity timestamp.
func New(conversationID string, upstream provider.Session, now time.Time) *Session {
	injector, _ := upstream.(provider.HistoryInjector)
	return &Session{
		conversationID: conversationID,
		upstream:       upstream,
		injector:       injector,
		createdAt:      now,
		lastActiveAt:   now,
	}
}

func (s *Session) ConversationID() string     { return s.conversationID }
func (s *Session) Model() string              { return s.upstream.Model() }
func (s *Session) Upstream() provider.Session { return s.upstream }
func (s *Session) CreatedAt() time.Time       { return s.createdAt }

// Injector returns the session's history injector, or nil when the
// upstream session does not support injection.
func (s *Session) Injector() provider.HistoryInjector { return s.injector }

// LastActiveAt returns the most recent activity timestamp.
func (s *Session) LastActiveAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActiveAt
}

// MessageCount returns the number of exchanges started on this session.
func (s *Session) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messageCount
}

// Touch advances the activity timestamp. It never moves backwards, so
// late touches from slow goroutines cannot re-age a session.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.After(s.lastActiveAt) {
		s.lastActiveAt = now
	}
}

// AddMessages credits n messages to the count without touching the
// activity timestamp. Used when stored history seeds a fresh session.
func (s *Session) AddMessages(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messageCount += n
}

// BeginExchange records the start of a new prompt turn.
func (s *Session) BeginExchange(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messageCount++
	if now.After(s.lastActiveAt) {
		s.lastActiveAt = now
	}
}

// IdleFor reports how long the session has been inactive as of now.
func (s *Session) IdleFor(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActiveAt)
}
