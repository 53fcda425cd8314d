// Package session tracks live upstream sessions per conversation.
//
// The Registry is a plain concurrent map from conversation ID to
// Session. The Manager layers lifecycle policy on top of it:
//
//   - CreateSession is idempotent; concurrent creates for one
//     conversation converge on a single session.
//   - ResumeSession prefers the live session, then provider reattach,
//     then create-plus-history-injection, in that order. A session
//     past the idle timeout is treated as dead and rebuilt.
//   - UpdateSessionModel transplants a conversation onto a new model:
//     destroy, create, re-inject history. On failure the previous
//     model is restored and the error is still surfaced.
//   - CleanupIdleSessions is the reaper's entry point.
//
// Every lifecycle mutation for a conversation runs under that
// conversation's lock. Streaming itself happens outside the lock, so a
// long reply never blocks lifecycle work on other conversations.
package session
