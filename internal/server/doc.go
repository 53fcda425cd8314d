// Package server wires the broker together and exposes its HTTP
// surface.
//
// # Endpoints
//
//   - /api/conversations: CRUD plus title, model switch, tags,
//     attachments, and transcript export
//   - POST /api/conversations/{id}/messages: accepts a prompt and
//     returns 202; the assistant reply streams to viewers
//   - /api/conversations/{id}/session: session stats and teardown
//   - /api/models, /api/auth/status: provider surface
//   - /ws/{conversationID}: WebSocket viewer stream
//   - /healthz, /readyz, and optionally /metrics
//
// # Streaming path
//
// A message send resumes (or rebuilds) the conversation's session,
// persists the user message, and kicks off a relay turn bound to the
// server's base context. The turn's events fan out to WebSocket
// viewers through the broadcast hub while the assistant message is
// persisted pending-first and patched on the terminal event.
package server
