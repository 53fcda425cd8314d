// ABOUTME: In-memory fan-out hub for conversation event envelopes
// ABOUTME: Publishes message protocol envelopes to all viewers of a conversation

package broadcast

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const (
	// subscriberBufferSize is the channel buffer for each viewer.
	subscriberBufferSize = 64
)

// Hub provides in-memory pub/sub of event envelopes keyed by
// conversation ID. Viewers subscribe to a conversation and receive
// every envelope published for it. Slow viewers drop events rather
// than blocking the publisher.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan *Envelope // conversationID -> subID -> ch
	logger      *slog.Logger
}

// NewHub creates a hub. Pass nil logger for default.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subscribers: make(map[string]map[string]chan *Envelope),
		logger:      logger.With("component", "broadcast"),
	}
}

// Subscribe registers a viewer for a conversation. Returns the event
// channel and a subscription ID for later unsubscription. The new
// channel is primed with a session:idle envelope so the viewer knows
// the conversation is ready. The subscription is cleaned up
// automatically when ctx is cancelled.
func (h *Hub) Subscribe(ctx context.Context, conversationID string) (<-chan *Envelope, string) {
	subID := uuid.NewString()
	ch := make(chan *Envelope, subscriberBufferSize)
	ch <- NewSessionIdle()

	h.mu.Lock()
	if _, ok := h.subscribers[conversationID]; !ok {
		h.subscribers[conversationID] = make(map[string]chan *Envelope)
	}
	h.subscribers[conversationID][subID] = ch
	h.mu.Unlock()

	h.logger.Debug("viewer subscribed",
		"conversation_id", conversationID,
		"sub_id", subID)

	go func() {
		<-ctx.Done()
		h.Unsubscribe(conversationID, subID)
	}()

	return ch, subID
}

// Publish sends an envelope to every viewer of the conversation.
// Publishing to a conversation with no viewers is a silent no-op.
// Non-blocking: the envelope is dropped for viewers whose channels
// are full.
func (h *Hub) Publish(conversationID string, env *Envelope) {
	h.mu.RLock()
	subs, ok := h.subscribers[conversationID]
	if !ok || len(subs) == 0 {
		h.mu.RUnlock()
		return
	}

	// Copy channels under the read lock to avoid holding it during sends
	targets := make([]chan *Envelope, 0, len(subs))
	for _, ch := range subs {
		targets = append(targets, ch)
	}
	h.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- env:
			// Sent
		default:
			h.logger.Debug("dropped event for slow viewer",
				"conversation_id", conversationID,
				"event", env.Event)
		}
	}
}

// Unsubscribe removes a viewer and closes its channel.
func (h *Hub) Unsubscribe(conversationID, subID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.subscribers[conversationID]
	if !ok {
		return
	}

	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)

	// Clean up empty conversation entries
	if len(subs) == 0 {
		delete(h.subscribers, conversationID)
	}

	h.logger.Debug("viewer unsubscribed",
		"conversation_id", conversationID,
		"sub_id", subID)
}

// ViewerCount returns how many viewers a conversation has.
func (h *Hub) ViewerCount(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[conversationID])
}

// Close shuts down the hub and closes all viewer channels.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for convID, subs := range h.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(h.subscribers, convID)
	}

	h.logger.Debug("hub closed")
}
