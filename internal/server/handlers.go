// ABOUTME: HTTP API handlers for conversations, messages, sessions, and tags
// ABOUTME: Message sends return 202; the reply streams to viewers over the hub

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/2389/parley/internal/broadcast"
	"github.com/2389/parley/internal/export"
	"github.com/2389/parley/internal/provider"
	"github.com/2389/parley/internal/relay"
	"github.com/2389/parley/internal/session"
	"github.com/2389/parley/internal/store"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	if s.cfg.Metrics.Enabled {
		r.Method(http.MethodGet, s.cfg.Metrics.Path, s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/models", s.handleListModels)
		r.Get("/auth/status", s.handleAuthStatus)

		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", s.handleCreateConversation)
			r.Get("/", s.handleListConversations)

			r.Route("/{conversationID}", func(r chi.Router) {
				r.Get("/", s.handleGetConversation)
				r.Delete("/", s.handleDeleteConversation)
				r.Put("/title", s.handleUpdateTitle)
				r.Put("/model", s.handleSwitchModel)

				r.Get("/messages", s.handleListMessages)
				r.Post("/messages", s.handleSendMessage)
				r.Post("/abort", s.handleAbort)

				r.Get("/session", s.handleSessionStats)
				r.Delete("/session", s.handleDestroySession)

				r.Get("/tags", s.handleListConversationTags)
				r.Put("/tags/{tagID}", s.handleTagConversation)
				r.Delete("/tags/{tagID}", s.handleUntagConversation)

				r.Get("/attachments", s.handleListAttachments)
				r.Post("/attachments", s.handleUploadAttachment)

				r.Get("/export", s.handleExport)
			})
		})

		r.Route("/tags", func(r chi.Router) {
			r.Post("/", s.handleCreateTag)
			r.Get("/", s.handleListTags)
			r.Delete("/{tagID}", s.handleDeleteTag)
		})

		r.Get("/attachments/{attachmentID}", s.handleGetAttachment)
	})

	r.Get("/ws", s.handleMissingConversation)
	r.Get("/ws/{conversationID}", s.handleWebSocket)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.ListConversations(r.Context(), 1); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type conversationDTO struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Model     string `json:"model"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func toConversationDTO(c *store.Conversation) conversationDTO {
	return conversationDTO{
		ID:        c.ID,
		Title:     c.Title,
		Model:     c.Model,
		CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: c.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type messageDTO struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	Role           string `json:"role"`
	Content        string `json:"content"`
	Status         string `json:"status"`
	CreatedAt      string `json:"createdAt"`
}

func toMessageDTO(m *store.Message) messageDTO {
	return messageDTO{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           m.Role,
		Content:        m.Content,
		Status:         m.Status,
		CreatedAt:      m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// loadConversation fetches a conversation or writes a 404.
func (s *Server) loadConversation(w http.ResponseWriter, r *http.Request) (*store.Conversation, bool) {
	id := chi.URLParam(r, "conversationID")
	conv, err := s.store.GetConversation(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
		} else {
			writeError(w, http.StatusInternalServerError, "load conversation failed")
		}
		return nil, false
	}
	return conv, true
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
		Model string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	model := req.Model
	if model == "" {
		model = s.cfg.Provider.DefaultModel
	}
	model = s.catalog.ResolveID(model)

	now := time.Now().UTC()
	conv := &store.Conversation{
		ID:        uuid.NewString(),
		Title:     req.Title,
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateConversation(r.Context(), conv); err != nil {
		writeError(w, http.StatusInternalServerError, "create conversation failed")
		return
	}
	writeJSON(w, http.StatusCreated, toConversationDTO(conv))
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	convs, err := s.store.ListConversations(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list conversations failed")
		return
	}

	out := make([]conversationDTO, 0, len(convs))
	for _, c := range convs {
		out = append(out, toConversationDTO(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.loadConversation(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toConversationDTO(conv))
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.loadConversation(w, r)
	if !ok {
		return
	}

	if err := s.manager.DestroySession(r.Context(), conv.ID); err != nil {
		s.logger.Warn("session teardown failed", "conversation_id", conv.ID, "error", err)
	}
	if err := s.store.DeleteConversation(r.Context(), conv.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "delete conversation failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateTitle(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.loadConversation(w, r)
	if !ok {
		return
	}

	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title required")
		return
	}

	if err := s.store.UpdateConversationTitle(r.Context(), conv.ID, req.Title); err != nil {
		writeError(w, http.StatusInternalServerError, "update title failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSwitchModel transplants the conversation onto a new model. The
// session switch runs first; the stored model is only updated once the
// new session exists, so a failed switch leaves both layers on the old
// model.
func (s *Server) handleSwitchModel(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.loadConversation(w, r)
	if !ok {
		return
	}

	var req struct {
		Model string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Model) == "" {
		writeError(w, http.StatusBadRequest, "model required")
		return
	}

	model := s.catalog.ResolveID(req.Model)
	if model == conv.Model {
		writeJSON(w, http.StatusOK, map[string]string{"model": model})
		return
	}

	history, err := s.loadHistory(r.Context(), conv.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load history failed")
		return
	}

	if err := s.manager.UpdateSessionModel(r.Context(), conv.ID, model, history); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	if err := s.store.UpdateConversationModel(r.Context(), conv.ID, model); err != nil {
		writeError(w, http.StatusInternalServerError, "persist model failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"model": model})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.loadConversation(w, r)
	if !ok {
		return
	}

	msgs, err := s.store.ListMessages(r.Context(), conv.ID, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list messages failed")
		return
	}

	out := make([]messageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageDTO(m))
	}
	writeJSON(w, http.StatusOK, out)
}

// loadHistory builds the injection history from settled messages.
func (s *Server) loadHistory(ctx context.Context, conversationID string) ([]provider.HistoryEntry, error) {
	msgs, err := s.store.ListMessages(ctx, conversationID, s.cfg.Sessions.MaxHistoryMessages)
	if err != nil {
		return nil, err
	}

	entries := make([]provider.HistoryEntry, 0, len(msgs))
	for _, m := range msgs {
		if m.Status != store.StatusComplete || m.Content == "" {
			continue
		}
		if m.Role != store.RoleUser && m.Role != store.RoleAssistant {
			continue
		}
		entries = append(entries, provider.HistoryEntry{Role: m.Role, Content: m.Content})
	}
	return entries, nil
}

// handleSendMessage accepts a prompt, ensures a live session, and
// returns 202 immediately. The assistant reply streams to hub viewers
// and is persisted as it settles.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.loadConversation(w, r)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content required")
		return
	}

	history, err := s.loadHistory(r.Context(), conv.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load history failed")
		return
	}

	userMsg := &store.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           store.RoleUser,
		Content:        req.Content,
		Status:         store.StatusComplete,
	}
	if err := s.store.AppendMessage(r.Context(), userMsg); err != nil {
		writeError(w, http.StatusInternalServerError, "persist message failed")
		return
	}

	model := s.catalog.ResolveID(conv.Model)
	_, hadSession := s.manager.Get(conv.ID)
	if _, err := s.manager.ResumeSession(r.Context(), conv.ID, session.ResumeOptions{
		Model:   model,
		History: history,
	}); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if hadSession {
		s.metrics.SessionsResumed.Inc()
	} else {
		s.metrics.SessionsCreated.Inc()
	}
	s.metrics.ActiveSessions.Set(float64(s.registry.Len()))

	// The turn outlives this request; it is bound to the server's base
	// context so shutdown cancels it.
	events := s.relay.Send(s.baseCtx, conv.ID, req.Content)
	go s.streamTurn(conv.ID, events)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":        "accepted",
		"userMessageId": userMsg.ID,
	})
}

// streamTurn forwards relay events to viewers and persists the
// assistant message as it moves through pending, complete, or error.
func (s *Server) streamTurn(conversationID string, events <-chan relay.Event) {
	ctx := context.Background()

	for ev := range events {
		switch ev.Type {
		case relay.TypeStart:
			s.metrics.MessagesStarted.Inc()
			s.hub.Publish(conversationID, broadcast.NewMessageStart(ev.MessageID))
			msg := &store.Message{
				ID:             ev.MessageID,
				ConversationID: conversationID,
				Role:           store.RoleAssistant,
				Status:         store.StatusPending,
			}
			if err := s.store.AppendMessage(ctx, msg); err != nil {
				s.logger.Warn("persist assistant message failed",
					"conversation_id", conversationID, "message_id", ev.MessageID, "error", err)
			}

		case relay.TypeDelta:
			s.hub.Publish(conversationID, broadcast.NewMessageDelta(ev.MessageID, ev.Content))

		case relay.TypeComplete:
			s.metrics.MessagesCompleted.Inc()
			s.hub.Publish(conversationID, broadcast.NewMessageComplete(ev.MessageID, ev.FullContent))
			s.patchMessage(ctx, ev.MessageID, ev.FullContent, store.StatusComplete)

		case relay.TypeError:
			s.metrics.MessagesFailed.Inc()
			errMsg := "upstream error"
			if ev.Err != nil {
				errMsg = ev.Err.Error()
			}
			s.hub.Publish(conversationID, broadcast.NewMessageError(ev.MessageID, errMsg))
			s.patchMessage(ctx, ev.MessageID, "", store.StatusError)
		}
	}
}

func (s *Server) patchMessage(ctx context.Context, messageID, content, status string) {
	patch := store.MessagePatch{Status: &status}
	if content != "" {
		patch.Content = &content
	}
	if err := s.store.UpdateMessage(ctx, messageID, patch); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("patch message failed", "message_id", messageID, "error", err)
	}
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.loadConversation(w, r)
	if !ok {
		return
	}
	s.relay.Abort(conv.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSessionStats(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.loadConversation(w, r)
	if !ok {
		return
	}

	stats := s.manager.Stats(conv.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"exists":       stats.Exists,
		"model":        stats.Model,
		"messageCount": stats.MessageCount,
		"idleSeconds":  int(stats.Idle.Seconds()),
	})
}

func (s *Server) handleDestroySession(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.loadConversation(w, r)
	if !ok {
		return
	}

	if err := s.manager.DestroySession(r.Context(), conv.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "destroy session failed")
		return
	}
	s.metrics.SessionsDestroyed.Inc()
	s.metrics.ActiveSessions.Set(float64(s.registry.Len()))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	live, err := s.client.ListModels(r.Context())
	if err != nil {
		s.logger.Warn("live model listing failed, serving catalog only", "error", err)
	}

	type modelDTO struct {
		ID          string `json:"id"`
		Alias       string `json:"alias,omitempty"`
		DisplayName string `json:"displayName,omitempty"`
		MaxTokens   int    `json:"maxTokens,omitempty"`
	}

	merged := s.catalog.Merge(live)
	out := make([]modelDTO, 0, len(merged))
	for _, m := range merged {
		out = append(out, modelDTO{
			ID:          m.ID,
			Alias:       m.Alias,
			DisplayName: m.DisplayName,
			MaxTokens:   m.MaxTokens,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.client.AuthStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "auth probe failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": status.Authenticated,
		"method":        status.Method,
		"detail":        status.Detail,
	})
}

type tagDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name required")
		return
	}

	tag := &store.Tag{ID: uuid.NewString(), Name: req.Name, Color: req.Color}
	if err := s.store.CreateTag(r.Context(), tag); err != nil {
		if errors.Is(err, store.ErrDuplicateTag) {
			writeError(w, http.StatusConflict, "tag already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "create tag failed")
		return
	}
	writeJSON(w, http.StatusCreated, tagDTO{ID: tag.ID, Name: tag.Name, Color: tag.Color})
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.store.ListTags(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list tags failed")
		return
	}
	out := make([]tagDTO, 0, len(tags))
	for _, t := range tags {
		out = append(out, tagDTO{ID: t.ID, Name: t.Name, Color: t.Color})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTag(r.Context(), chi.URLParam(r, "tagID")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "tag not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "delete tag failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTagConversation(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.loadConversation(w, r)
	if !ok {
		return
	}
	err := s.store.TagConversation(r.Context(), conv.ID, chi.URLParam(r, "tagID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "tag conversation failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUntagConversation(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.loadConversation(w, r)
	if !ok {
		return
	}
	err := s.store.UntagConversation(r.Context(), conv.ID, chi.URLParam(r, "tagID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "untag conversation failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListConversationTags(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.loadConversation(w, r)
	if !ok {
		return
	}
	tags, err := s.store.ListConversationTags(r.Context(), conv.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list tags failed")
		return
	}
	out := make([]tagDTO, 0, len(tags))
	for _, t := range tags {
		out = append(out, tagDTO{ID: t.ID, Name: t.Name, Color: t.Color})
	}
	writeJSON(w, http.StatusOK, out)
}

const maxAttachmentSize = 10 << 20 // 10 MiB

func (s *Server) handleUploadAttachment(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.loadConversation(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxAttachmentSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxAttachmentSize+1))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "read upload failed")
		return
	}
	if len(data) > maxAttachmentSize {
		writeError(w, http.StatusRequestEntityTooLarge, "attachment too large")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	att := &store.Attachment{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Filename:       header.Filename,
		MimeType:       mimeType,
		Data:           data,
	}
	if err := s.store.SaveAttachment(r.Context(), att); err != nil {
		writeError(w, http.StatusInternalServerError, "save attachment failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"id":       att.ID,
		"filename": att.Filename,
		"mimeType": att.MimeType,
	})
}

func (s *Server) handleGetAttachment(w http.ResponseWriter, r *http.Request) {
	att, err := s.store.GetAttachment(r.Context(), chi.URLParam(r, "attachmentID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "attachment not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "load attachment failed")
		return
	}

	w.Header().Set("Content-Type", att.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.Filename))
	_, _ = w.Write(att.Data)
}

func (s *Server) handleListAttachments(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.loadConversation(w, r)
	if !ok {
		return
	}

	atts, err := s.store.ListAttachments(r.Context(), conv.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list attachments failed")
		return
	}

	type attachmentDTO struct {
		ID       string `json:"id"`
		Filename string `json:"filename"`
		MimeType string `json:"mimeType"`
	}
	out := make([]attachmentDTO, 0, len(atts))
	for _, a := range atts {
		out = append(out, attachmentDTO{ID: a.ID, Filename: a.Filename, MimeType: a.MimeType})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.loadConversation(w, r)
	if !ok {
		return
	}

	msgs, err := s.store.ListMessages(r.Context(), conv.ID, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load messages failed")
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", conv.ID+".md"))
		_, _ = w.Write(export.Markdown(conv, msgs))
	case "html":
		page, err := export.HTML(conv, msgs)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "render export failed")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	default:
		writeError(w, http.StatusBadRequest, "unknown format: "+format)
	}
}
