// ABOUTME: In-memory registry of live sessions keyed by conversation ID
// ABOUTME: Safe for concurrent use; the manager owns all mutations

package session

import (
	"sync"
	"time"
)

// Stats is a point-in-time snapshot of one registry entry.
type Stats struct {
	Exists       bool
	Model        string
	MessageCount int
	Idle         time.Duration
}

// Registry maps conversation IDs to live sessions. It holds no
// provider state of its own; entries are added and removed by the
// Manager.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Get returns the session for a conversation, if one is live.
func (r *Registry) Get(conversationID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[conversationID]
	return s, ok
}

// Put registers a session, replacing any existing entry for the same
// conversation.
func (r *Registry) Put(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ConversationID()] = s
}

// Remove drops the entry for a conversation. Removing a conversation
// with no entry is a no-op.
func (r *Registry) Remove(conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, conversationID)
}

// Stats reports a snapshot for one conversation. A missing entry
// yields Exists=false with zero values, never an error.
func (r *Registry) Stats(conversationID string, now time.Time) Stats {
	r.mu.RLock()
	s, ok := r.sessions[conversationID]
	r.mu.RUnlock()
	if !ok {
		return Stats{}
	}
	return Stats{
		Exists:       true,
		Model:        s.Model(),
		MessageCount: s.MessageCount(),
		Idle:         s.IdleFor(now),
	}
}

// List returns all live sessions in no particular order.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
