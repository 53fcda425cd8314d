// Package relay turns upstream provider streams into the message
// protocol: start, zero or more deltas, then exactly one terminal
// event (complete or error).
//
// The relay is stateless across turns. Each Send allocates a fresh
// message ID, looks up the live session, and pumps the upstream event
// channel until it terminates. Deltas are forwarded incrementally and
// accumulated, so the complete event always carries the concatenation
// of every delta that preceded it. Reasoning output from the provider
// is dropped rather than forwarded.
//
// A send against a conversation with no live session produces a single
// error event. Resuming the session first is the caller's job.
package relay
