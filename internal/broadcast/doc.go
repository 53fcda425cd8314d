// Package broadcast fans conversation event envelopes out to WebSocket
// viewers.
//
// The Hub keeps a map of conversation ID to subscriber channels. It is
// write-path agnostic: the server publishes envelopes as the relay
// produces events, and each viewer connection drains its own channel.
// Publishing never blocks; a viewer that cannot keep up loses events
// instead of stalling the stream for everyone else.
//
// Envelopes follow a fixed wire shape, {"event": name, "data": body},
// with camelCase payload keys. See envelope.go for the event names and
// payload types.
package broadcast
