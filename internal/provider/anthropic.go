// ABOUTME: Anthropic-backed implementation of the provider Client
// ABOUTME: Emulates stateful sessions over the stateless Messages API

package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

const defaultMaxTokens = 4096

// AnthropicClient implements Client over the Anthropic Messages API.
// The API is stateless, so sessions are emulated client-side: each
// session carries its transcript and replays it on every turn. Resume
// therefore only works for sessions created by this process.
type AnthropicClient struct {
	client anthropic.Client
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*anthropicSession

	hasKey bool
}

// NewAnthropicClient creates a client with an explicit API key. An
// empty key falls back to the SDK's environment lookup.
func NewAnthropicClient(apiKey string, logger *slog.Logger) *AnthropicClient {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &AnthropicClient{
		client:   anthropic.NewClient(opts...),
		logger:   logger.With("component", "anthropic"),
		sessions: make(map[string]*anthropicSession),
		hasKey:   apiKey != "",
	}
}

// CreateSession opens a new emulated session. An existing session with
// the same ID is replaced.
func (c *AnthropicClient) CreateSession(ctx context.Context, id, model string, opts SessionOptions) (Session, error) {
	if id == "" {
		return nil, fmt.Errorf("session id required")
	}
	if model == "" {
		return nil, fmt.Errorf("model required")
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	sess := &anthropicSession{
		id:        id,
		model:     model,
		maxTokens: maxTokens,
		client:    &c.client,
		logger:    c.logger.With("session_id", id),
		release:   func() { c.forget(id) },
	}

	c.mu.Lock()
	c.sessions[id] = sess
	c.mu.Unlock()

	c.logger.Debug("session created", "session_id", id, "model", model)
	return sess, nil
}

// ResumeSession reattaches to a session created by this process.
func (c *AnthropicClient) ResumeSession(ctx context.Context, id string) (Session, error) {
	c.mu.Lock()
	sess, ok := c.sessions[id]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("resume %s: %w", id, ErrSessionUnknown)
	}
	return sess, nil
}

// ListModels fetches the model catalog from the API.
func (c *AnthropicClient) ListModels(ctx context.Context) ([]ModelInfo, error) {
	page, err := c.client.Models.List(ctx, anthropic.ModelListParams{
		Limit: param.NewOpt(int64(100)),
	})
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}

	models := make([]ModelInfo, 0, len(page.Data))
	for _, m := range page.Data {
		models = append(models, ModelInfo{
			ID:          string(m.ID),
			DisplayName: m.DisplayName,
		})
	}
	return models, nil
}

// AuthStatus probes the API with a minimal models request.
func (c *AnthropicClient) AuthStatus(ctx context.Context) (AuthStatus, error) {
	method := "environment"
	if c.hasKey {
		method = "api_key"
	}

	_, err := c.client.Models.List(ctx, anthropic.ModelListParams{
		Limit: param.NewOpt(int64(1)),
	})
	if err != nil {
		return AuthStatus{Authenticated: false, Method: method, Detail: err.Error()}, nil
	}
	return AuthStatus{Authenticated: true, Method: method}, nil
}

func (c *AnthropicClient) forget(id string) {
	c.mu.Lock()
	delete(c.sessions, id)
	c.mu.Unlock()
}

// anthropicSession holds the transcript for one emulated session.
type anthropicSession struct {
	id        string
	model     string
	maxTokens int
	client    *anthropic.Client
	logger    *slog.Logger
	release   func()

	mu         sync.Mutex
	transcript []anthropic.MessageParam
	cancel     context.CancelFunc
	closed     bool
}

func (s *anthropicSession) ID() string    { return s.id }
func (s *anthropicSession) Model() string { return s.model }

// InjectHistory replays prior turns into the transcript. Entries with
// roles other than user or assistant are skipped.
func (s *anthropicSession) InjectHistory(ctx context.Context, entries []HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("session %s closed", s.id)
	}

	for _, e := range entries {
		if e.Content == "" {
			continue
		}
		switch e.Role {
		case "user":
			s.transcript = append(s.transcript, anthropic.NewUserMessage(anthropic.NewTextBlock(e.Content)))
		case "assistant":
			s.transcript = append(s.transcript, anthropic.NewAssistantMessage(anthropic.NewTextBlock(e.Content)))
		}
	}
	return nil
}

// Send submits a prompt and streams the reply. The transcript is only
// extended with the assistant turn after a clean finish, so a failed
// turn can be retried.
func (s *anthropicSession) Send(ctx context.Context, prompt string) (<-chan Event, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("session %s closed", s.id)
	}
	s.transcript = append(s.transcript, anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)))
	messages := make([]anthropic.MessageParam, len(s.transcript))
	copy(messages, s.transcript)

	turnCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		Messages:  messages,
		MaxTokens: int64(s.maxTokens),
	}

	stream := s.client.Messages.NewStreaming(turnCtx, params)

	ch := make(chan Event, 64)
	go func() {
		defer close(ch)
		defer cancel()

		var accMsg anthropic.Message
		for stream.Next() {
			event := stream.Current()
			_ = accMsg.Accumulate(event)

			if event.Type == "content_block_delta" {
				switch event.Delta.Type {
				case "text_delta":
					ch <- Event{Type: EventDelta, Text: event.Delta.Text}
				case "thinking_delta":
					ch <- Event{Type: EventThinking, Text: event.Delta.Thinking}
				}
			}
		}

		if err := stream.Err(); err != nil {
			s.logger.Warn("stream failed", "error", err)
			ch <- Event{Type: EventError, Err: err}
			return
		}

		var reply string
		for _, block := range accMsg.Content {
			if block.Type == "text" {
				reply += block.Text
			}
		}

		s.mu.Lock()
		if !s.closed {
			s.transcript = append(s.transcript, anthropic.NewAssistantMessage(anthropic.NewTextBlock(reply)))
		}
		s.mu.Unlock()

		ch <- Event{Type: EventIdle}
	}()

	return ch, nil
}

// Abort cancels the in-flight turn, if any.
func (s *anthropicSession) Abort() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Close discards the transcript and unregisters the session.
func (s *anthropicSession) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel := s.cancel
	s.transcript = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.release()
	return nil
}
