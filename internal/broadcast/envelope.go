// ABOUTME: Wire envelopes and payloads for the viewer event protocol
// ABOUTME: Every frame is {"event": ..., "data": ...} with camelCase payload keys

package broadcast

// Event names on the wire.
const (
	EventSessionIdle     = "session:idle"
	EventMessageStart    = "message:start"
	EventMessageDelta    = "message:delta"
	EventMessageComplete = "message:complete"
	EventMessageError    = "message:error"
	EventPong            = "pong"
)

// Envelope is the outer frame sent to viewers.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// StartPayload announces a new assistant message.
type StartPayload struct {
	MessageID string `json:"messageId"`
}

// DeltaPayload carries one incremental content chunk.
type DeltaPayload struct {
	MessageID string `json:"messageId"`
	Content   string `json:"content"`
}

// CompletePayload closes a message with its full text.
type CompletePayload struct {
	MessageID   string `json:"messageId"`
	FullContent string `json:"fullContent"`
}

// ErrorPayload closes a message with a failure description.
type ErrorPayload struct {
	MessageID string `json:"messageId"`
	Error     string `json:"error"`
}

// PongPayload answers a viewer ping.
type PongPayload struct {
	Timestamp int64 `json:"timestamp"`
}

// NewSessionIdle builds a session:idle envelope. Its data is an empty
// object, never null.
func NewSessionIdle() *Envelope {
	return &Envelope{Event: EventSessionIdle, Data: struct{}{}}
}

// NewMessageStart builds a message:start envelope.
func NewMessageStart(messageID string) *Envelope {
	return &Envelope{Event: EventMessageStart, Data: StartPayload{MessageID: messageID}}
}

// NewMessageDelta builds a message:delta envelope.
func NewMessageDelta(messageID, content string) *Envelope {
	return &Envelope{Event: EventMessageDelta, Data: DeltaPayload{MessageID: messageID, Content: content}}
}

// NewMessageComplete builds a message:complete envelope.
func NewMessageComplete(messageID, fullContent string) *Envelope {
	return &Envelope{Event: EventMessageComplete, Data: CompletePayload{MessageID: messageID, FullContent: fullContent}}
}

// NewMessageError builds a message:error envelope.
func NewMessageError(messageID, errMsg string) *Envelope {
	return &Envelope{Event: EventMessageError, Data: ErrorPayload{MessageID: messageID, Error: errMsg}}
}

// NewPong builds a pong envelope echoing the given unix-millisecond
// timestamp.
func NewPong(timestamp int64) *Envelope {
	return &Envelope{Event: EventPong, Data: PongPayload{Timestamp: timestamp}}
}
