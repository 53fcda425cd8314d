// ABOUTME: Manager owns session lifecycle: create, resume, model switch, destroy
// ABOUTME: Serializes lifecycle operations per conversation with a keyed lock

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/parley/internal/provider"
)

// ErrSessionNotFound is returned when an operation requires a live
// session and the conversation has none.
var ErrSessionNotFound = errors.New("no live session for conversation")

// Options configure a Manager.
type Options struct {
	IdleTimeout        time.Duration
	MaxHistoryMessages int
	MaxTokens          int
}

// ResumeOptions carry the model and stored history used when a
// conversation has to be rebuilt from scratch.
type ResumeOptions struct {
	Model   string
	History []provider.HistoryEntry
}

// Manager owns the lifecycle of upstream sessions. All lifecycle
// mutations for a given conversation run under that conversation's
// lock, so concurrent resumes or model switches never race.
type Manager struct {
	client   provider.Client
	registry *Registry
	logger   *slog.Logger
	opts     Options

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex

	// nowFn is replaced in tests to control idle arithmetic.
	nowFn func() time.Time
}

// NewManager creates a manager over the given provider client.
func NewManager(client provider.Client, registry *Registry, logger *slog.Logger, opts Options) *Manager {
	return &Manager{
		client:   client,
		registry: registry,
		logger:   logger.With("component", "session-manager"),
		opts:     opts,
		locks:    make(map[string]*sync.Mutex),
		nowFn:    time.Now,
	}
}

// lockFor returns the per-conversation lifecycle lock. Locks are never
// reclaimed; the table is bounded by the number of conversations seen.
func (m *Manager) lockFor(conversationID string) *sync.Mutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	l, ok := m.locks[conversationID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[conversationID] = l
	}
	return l
}

// Get returns the live session for a conversation.
func (m *Manager) Get(conversationID string) (*Session, bool) {
	return m.registry.Get(conversationID)
}

// Stats reports a snapshot for one conversation.
func (m *Manager) Stats(conversationID string) Stats {
	return m.registry.Stats(conversationID, m.nowFn())
}

// CreateSession opens a session for a conversation. If one is already
// live it is returned unchanged, so concurrent creates converge on a
// single session.
func (m *Manager) CreateSession(ctx context.Context, conversationID, model string) (*Session, error) {
	lock := m.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	if existing, ok := m.registry.Get(conversationID); ok {
		return existing, nil
	}
	return m.createLocked(ctx, conversationID, model)
}

// createLocked opens and registers a fresh upstream session. Caller
// holds the conversation lock.
func (m *Manager) createLocked(ctx context.Context, conversationID, model string) (*Session, error) {
	upstream, err := m.client.CreateSession(ctx, conversationID, model, provider.SessionOptions{
		Streaming:         true,
		AutoExtendContext: true,
		MaxTokens:         m.opts.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("create session for %s: %w", conversationID, err)
	}

	sess := New(conversationID, upstream, m.nowFn())
	m.registry.Put(sess)
	m.logger.Info("session created", "conversation_id", conversationID, "model", model)
	return sess, nil
}

// ResumeSession ensures a conversation has a usable session. A live,
// non-stale session is returned as-is. A stale one is destroyed first.
// Otherwise the manager asks the provider to reattach; if the provider
// no longer knows the session, a fresh one is created and the stored
// history is injected.
func (m *Manager) ResumeSession(ctx context.Context, conversationID string, opts ResumeOptions) (*Session, error) {
	lock := m.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	if existing, ok := m.registry.Get(conversationID); ok {
		if existing.IdleFor(m.nowFn()) < m.opts.IdleTimeout {
			// A resume counts as activity even when no send follows,
			// so the reaper does not collect a just-resumed session.
			existing.Touch(m.nowFn())
			return existing, nil
		}
		m.logger.Info("session idle, recreating",
			"conversation_id", conversationID,
			"idle", existing.IdleFor(m.nowFn()).String())
		m.destroyLocked(ctx, existing)
	} else {
		upstream, err := m.client.ResumeSession(ctx, conversationID)
		if err == nil {
			sess := New(conversationID, upstream, m.nowFn())
			m.registry.Put(sess)
			m.logger.Info("session resumed", "conversation_id", conversationID, "model", upstream.Model())
			return sess, nil
		}
		if !errors.Is(err, provider.ErrSessionUnknown) {
			m.logger.Warn("resume failed, creating fresh session",
				"conversation_id", conversationID, "error", err)
		}
	}

	sess, err := m.createLocked(ctx, conversationID, opts.Model)
	if err != nil {
		return nil, err
	}
	m.injectHistory(ctx, sess, opts.History)
	return sess, nil
}

// injectHistory replays stored turns into a fresh session and credits
// them to the session's message count. Injection is best effort:
// sessions without the capability skip the replay but still count the
// entries, empty history is skipped, and failures are logged but never
// propagated.
func (m *Manager) injectHistory(ctx context.Context, sess *Session, history []provider.HistoryEntry) {
	if len(history) == 0 {
		return
	}
	if limit := m.opts.MaxHistoryMessages; limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}

	injector := sess.Injector()
	if injector == nil {
		m.logger.Debug("session does not support history injection",
			"conversation_id", sess.ConversationID())
		sess.AddMessages(len(history))
		return
	}

	if err := injector.InjectHistory(ctx, history); err != nil {
		m.logger.Warn("history injection failed, continuing without context",
			"conversation_id", sess.ConversationID(),
			"entries", len(history),
			"error", err)
		return
	}
	sess.AddMessages(len(history))
	m.logger.Debug("history injected",
		"conversation_id", sess.ConversationID(), "entries", len(history))
}

// UpdateSessionModel switches a live session to a new model by
// destroying it and creating a replacement seeded with the stored
// history. Switching to the current model is a no-op. If the new
// session cannot be created the old model is restored, and the
// creation error is returned either way.
func (m *Manager) UpdateSessionModel(ctx context.Context, conversationID, newModel string, history []provider.HistoryEntry) error {
	lock := m.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	existing, ok := m.registry.Get(conversationID)
	if !ok {
		// Nothing live to transplant; the next resume picks up the
		// new model from the store.
		return nil
	}
	if existing.Model() == newModel {
		return nil
	}

	oldModel := existing.Model()
	m.destroyLocked(ctx, existing)

	sess, err := m.createLocked(ctx, conversationID, newModel)
	if err != nil {
		rollback, rbErr := m.createLocked(ctx, conversationID, oldModel)
		if rbErr != nil {
			return fmt.Errorf("switch to %s failed: %w (restore %s also failed: %v)",
				newModel, err, oldModel, rbErr)
		}
		m.injectHistory(ctx, rollback, history)
		m.logger.Warn("model switch failed, restored previous model",
			"conversation_id", conversationID, "model", oldModel, "error", err)
		return fmt.Errorf("switch to %s failed, previous model restored: %w", newModel, err)
	}

	m.injectHistory(ctx, sess, history)
	m.logger.Info("session model switched",
		"conversation_id", conversationID, "from", oldModel, "to", newModel)
	return nil
}

// DestroySession tears down a conversation's session. Destroying a
// conversation with no session is a no-op.
func (m *Manager) DestroySession(ctx context.Context, conversationID string) error {
	lock := m.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	existing, ok := m.registry.Get(conversationID)
	if !ok {
		return nil
	}
	m.destroyLocked(ctx, existing)
	return nil
}

// destroyLocked removes a session from the registry and closes its
// upstream. Close failures are logged; the registry entry is gone
// either way, so the session cannot be handed out again.
func (m *Manager) destroyLocked(ctx context.Context, sess *Session) {
	m.registry.Remove(sess.ConversationID())
	if err := sess.Upstream().Close(ctx); err != nil {
		m.logger.Warn("upstream close failed",
			"conversation_id", sess.ConversationID(), "error", err)
	}
}

// CleanupIdleSessions destroys every session idle for at least the
// configured timeout and returns how many were removed.
func (m *Manager) CleanupIdleSessions(ctx context.Context) int {
	now := m.nowFn()
	removed := 0

	for _, sess := range m.registry.List() {
		if sess.IdleFor(now) < m.opts.IdleTimeout {
			continue
		}

		id := sess.ConversationID()
		lock := m.lockFor(id)
		lock.Lock()
		// Re-check under the lock: the session may have been touched
		// or replaced since the snapshot.
		current, ok := m.registry.Get(id)
		if ok && current == sess && current.IdleFor(m.nowFn()) >= m.opts.IdleTimeout {
			m.destroyLocked(ctx, current)
			removed++
			m.logger.Info("idle session reaped", "conversation_id", id)
		}
		lock.Unlock()
	}

	return removed
}
