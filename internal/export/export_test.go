// ABOUTME: Tests for transcript export
// ABOUTME: Covers markdown layout, status filtering, and HTML rendering

package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/parley/internal/store"
)

func sampleTranscript() (*store.Conversation, []*store.Message) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	conv := &store.Conversation{
		ID:        "conv-1",
		Title:     "Trip planning",
		Model:     "claude-sonnet-4-20250514",
		UpdatedAt: now,
	}
	msgs := []*store.Message{
		{Role: store.RoleUser, Content: "Where should I go?", Status: store.StatusComplete},
		{Role: store.RoleAssistant, Content: "Try **Kyoto**.", Status: store.StatusComplete},
		{Role: store.RoleAssistant, Content: "half-written", Status: store.StatusPending},
		{Role: store.RoleAssistant, Content: "", Status: store.StatusError},
	}
	return conv, msgs
}

func TestMarkdown(t *testing.T) {
	conv, msgs := sampleTranscript()

	out := string(Markdown(conv, msgs))
	assert.Contains(t, out, "# Trip planning")
	assert.Contains(t, out, "## User\n\nWhere should I go?")
	assert.Contains(t, out, "## Assistant\n\nTry **Kyoto**.")
	assert.NotContains(t, out, "half-written")
}

func TestMarkdown_UntitledFallsBackToID(t *testing.T) {
	conv, msgs := sampleTranscript()
	conv.Title = ""

	out := string(Markdown(conv, msgs))
	assert.Contains(t, out, "# Conversation conv-1")
}

func TestHTML(t *testing.T) {
	conv, msgs := sampleTranscript()

	out, err := HTML(conv, msgs)
	require.NoError(t, err)

	page := string(out)
	assert.Contains(t, page, "<!DOCTYPE html>")
	assert.Contains(t, page, "<title>Trip planning</title>")
	// Markdown emphasis survives rendering.
	assert.Contains(t, page, "<strong>Kyoto</strong>")
}

func TestHTML_EscapesTitle(t *testing.T) {
	conv, msgs := sampleTranscript()
	conv.Title = "<script>alert(1)</script>"

	out, err := HTML(conv, msgs)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "<title><script>")
}
