// ABOUTME: Store interface and data types for parley persistence
// ABOUTME: Defines Conversation, Message, Tag, Attachment and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateTag is returned when creating a tag whose name is already taken
var ErrDuplicateTag = errors.New("tag already exists")

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message statuses track the lifecycle of a streamed assistant reply
const (
	StatusPending  = "pending"
	StatusComplete = "complete"
	StatusError    = "error"
)

// Conversation represents a persistent chat conversation
type Conversation struct {
	ID        string
	Title     string
	Model     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message represents a single message within a conversation
type Message struct {
	ID             string
	ConversationID string
	Role           string // "user", "assistant", "system"
	Content        string
	Status         string // "pending", "complete", "error"
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// MessagePatch describes a partial update to a message.
// Nil fields are left unchanged.
type MessagePatch struct {
	Content *string
	Status  *string
}

// Tag is a label that can be attached to conversations
type Tag struct {
	ID        string
	Name      string
	Color     string
	CreatedAt time.Time
}

// Attachment represents a file attached to a conversation
type Attachment struct {
	ID             string
	ConversationID string
	Filename       string
	MimeType       string
	Data           []byte
	CreatedAt      time.Time
}

// Store defines the interface for conversation persistence
type Store interface {
	// Conversations
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	ListConversations(ctx context.Context, limit int) ([]*Conversation, error)
	UpdateConversationTitle(ctx context.Context, id, title string) error
	UpdateConversationModel(ctx context.Context, id, model string) error
	DeleteConversation(ctx context.Context, id string) error

	// Messages
	AppendMessage(ctx context.Context, msg *Message) error
	GetMessage(ctx context.Context, id string) (*Message, error)
	UpdateMessage(ctx context.Context, id string, patch MessagePatch) error
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error)

	// Tags
	CreateTag(ctx context.Context, tag *Tag) error
	ListTags(ctx context.Context) ([]*Tag, error)
	DeleteTag(ctx context.Context, id string) error
	TagConversation(ctx context.Context, conversationID, tagID string) error
	UntagConversation(ctx context.Context, conversationID, tagID string) error
	ListConversationTags(ctx context.Context, conversationID string) ([]*Tag, error)

	// Attachments
	SaveAttachment(ctx context.Context, att *Attachment) error
	GetAttachment(ctx context.Context, id string) (*Attachment, error)
	ListAttachments(ctx context.Context, conversationID string) ([]*Attachment, error)

	// Close releases any resources held by the store
	Close() error
}
