// Package provider defines the upstream LLM client abstraction and its
// Anthropic implementation.
//
// A Client creates and resumes Sessions. A Session is bound to one
// model and streams each reply as a channel of Events:
//
//	events, err := sess.Send(ctx, "hello")
//	for ev := range events {
//	    switch ev.Type {
//	    case provider.EventDelta:
//	        // incremental text
//	    case provider.EventIdle:
//	        // turn finished
//	    case provider.EventError:
//	        // turn failed; session survives
//	    }
//	}
//
// Sessions that support context injection implement HistoryInjector.
// Callers type-assert once at construction and skip injection when the
// session does not support it.
//
// The Anthropic Messages API is stateless, so AnthropicClient emulates
// sessions by carrying the transcript client-side and replaying it each
// turn. ResumeSession only succeeds for sessions created by this
// process; anything else returns ErrSessionUnknown, which callers treat
// as a signal to create a fresh session and inject stored history.
package provider
