// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides conversation/message persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			model TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			role TEXT NOT NULL CHECK (role IN ('user', 'assistant', 'system')),
			content TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'complete' CHECK (status IN ('pending', 'complete', 'error')),
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation
			ON messages(conversation_id, created_at);

		CREATE TABLE IF NOT EXISTS tags (
			id TEXT PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			color TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS conversation_tags (
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			tag_id TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
			PRIMARY KEY (conversation_id, tag_id)
		);

		CREATE TABLE IF NOT EXISTS attachments (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			filename TEXT NOT NULL,
			mime_type TEXT NOT NULL,
			data BLOB NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_attachments_conversation
			ON attachments(conversation_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// CreateConversation inserts a new conversation.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	query := `
		INSERT INTO conversations (id, title, model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		conv.ID,
		conv.Title,
		conv.Model,
		conv.CreatedAt.UTC().Format(time.RFC3339),
		conv.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("creating conversation: %w", err)
	}
	return nil
}

// GetConversation retrieves a conversation by ID.
// Returns ErrNotFound if the conversation does not exist.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	query := `
		SELECT id, title, model, created_at, updated_at
		FROM conversations WHERE id = ?
	`

	conv := &Conversation{}
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&conv.ID, &conv.Title, &conv.Model, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting conversation: %w", err)
	}

	conv.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	conv.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return conv, nil
}

// ListConversations returns conversations ordered by most recently updated.
func (s *SQLiteStore) ListConversations(ctx context.Context, limit int) ([]*Conversation, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, title, model, created_at, updated_at
		FROM conversations ORDER BY updated_at DESC LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var convs []*Conversation
	for rows.Next() {
		conv := &Conversation{}
		var createdAt, updatedAt string
		if err := rows.Scan(&conv.ID, &conv.Title, &conv.Model, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		conv.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		conv.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

// UpdateConversationTitle renames a conversation.
func (s *SQLiteStore) UpdateConversationTitle(ctx context.Context, id, title string) error {
	return s.updateConversationField(ctx, id, "title", title)
}

// UpdateConversationModel records the conversation's current model.
func (s *SQLiteStore) UpdateConversationModel(ctx context.Context, id, model string) error {
	return s.updateConversationField(ctx, id, "model", model)
}

func (s *SQLiteStore) updateConversationField(ctx context.Context, id, field, value string) error {
	query := fmt.Sprintf(`UPDATE conversations SET %s = ?, updated_at = ? WHERE id = ?`, field)

	res, err := s.db.ExecContext(ctx, query, value, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("updating conversation %s: %w", field, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteConversation removes a conversation and, via cascade, its messages,
// tag links, and attachments.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendMessage inserts a message at the end of a conversation and bumps the
// conversation's updated_at.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *Message) error {
	if msg.Status == "" {
		msg.Status = StatusComplete
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.UpdatedAt.IsZero() {
		msg.UpdatedAt = msg.CreatedAt
	}

	query := `
		INSERT INTO messages (id, conversation_id, role, content, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.ConversationID,
		msg.Role,
		msg.Content,
		msg.Status,
		msg.CreatedAt.UTC().Format(time.RFC3339Nano),
		msg.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("appending message: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), msg.ConversationID,
	)
	if err != nil {
		return fmt.Errorf("touching conversation: %w", err)
	}
	return nil
}

// GetMessage retrieves a single message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*Message, error) {
	query := `
		SELECT id, conversation_id, role, content, status, created_at, updated_at
		FROM messages WHERE id = ?
	`

	msg := &Message{}
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.Status,
		&createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting message: %w", err)
	}

	msg.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	msg.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return msg, nil
}

// UpdateMessage applies a partial update to a message.
func (s *SQLiteStore) UpdateMessage(ctx context.Context, id string, patch MessagePatch) error {
	if patch.Content == nil && patch.Status == nil {
		return nil
	}

	query := `UPDATE messages SET updated_at = ?`
	args := []any{time.Now().UTC().Format(time.RFC3339Nano)}

	if patch.Content != nil {
		query += `, content = ?`
		args = append(args, *patch.Content)
	}
	if patch.Status != nil {
		query += `, status = ?`
		args = append(args, *patch.Status)
	}
	query += ` WHERE id = ?`
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListMessages returns the most recent messages of a conversation in
// chronological order.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = 1000
	}

	// Select the newest N, then flip to chronological order.
	query := `
		SELECT id, conversation_id, role, content, status, created_at, updated_at
		FROM (
			SELECT id, conversation_id, role, content, status, created_at, updated_at
			FROM messages WHERE conversation_id = ?
			ORDER BY created_at DESC LIMIT ?
		) ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		msg := &Message{}
		var createdAt, updatedAt string
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.Status, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		msg.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// CreateTag inserts a new tag. Returns ErrDuplicateTag when the name is taken.
func (s *SQLiteStore) CreateTag(ctx context.Context, tag *Tag) error {
	if tag.CreatedAt.IsZero() {
		tag.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO tags (id, name, color, created_at) VALUES (?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		tag.ID, tag.Name, tag.Color, tag.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		var exists int
		if qErr := s.db.QueryRowContext(ctx, `SELECT 1 FROM tags WHERE name = ?`, tag.Name).Scan(&exists); qErr == nil {
			return ErrDuplicateTag
		}
		return fmt.Errorf("creating tag: %w", err)
	}
	return nil
}

// ListTags returns all tags ordered by name.
func (s *SQLiteStore) ListTags(ctx context.Context) ([]*Tag, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, color, created_at FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	defer rows.Close()

	var tags []*Tag
	for rows.Next() {
		tag := &Tag{}
		var createdAt string
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Color, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		tag.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// DeleteTag removes a tag and its conversation links.
func (s *SQLiteStore) DeleteTag(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting tag: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// TagConversation links a tag to a conversation. Idempotent.
func (s *SQLiteStore) TagConversation(ctx context.Context, conversationID, tagID string) error {
	query := `INSERT OR IGNORE INTO conversation_tags (conversation_id, tag_id) VALUES (?, ?)`

	_, err := s.db.ExecContext(ctx, query, conversationID, tagID)
	if err != nil {
		return fmt.Errorf("tagging conversation: %w", err)
	}
	return nil
}

// UntagConversation removes a tag link. Idempotent.
func (s *SQLiteStore) UntagConversation(ctx context.Context, conversationID, tagID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_tags WHERE conversation_id = ? AND tag_id = ?`,
		conversationID, tagID,
	)
	if err != nil {
		return fmt.Errorf("untagging conversation: %w", err)
	}
	return nil
}

// ListConversationTags returns the tags linked to a conversation.
func (s *SQLiteStore) ListConversationTags(ctx context.Context, conversationID string) ([]*Tag, error) {
	query := `
		SELECT t.id, t.name, t.color, t.created_at
		FROM tags t
		JOIN conversation_tags ct ON ct.tag_id = t.id
		WHERE ct.conversation_id = ?
		ORDER BY t.name
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing conversation tags: %w", err)
	}
	defer rows.Close()

	var tags []*Tag
	for rows.Next() {
		tag := &Tag{}
		var createdAt string
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Color, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		tag.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// SaveAttachment stores an attachment blob.
func (s *SQLiteStore) SaveAttachment(ctx context.Context, att *Attachment) error {
	if att.CreatedAt.IsZero() {
		att.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO attachments (id, conversation_id, filename, mime_type, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		att.ID, att.ConversationID, att.Filename, att.MimeType, att.Data,
		att.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving attachment: %w", err)
	}
	return nil
}

// GetAttachment retrieves an attachment, including its data.
func (s *SQLiteStore) GetAttachment(ctx context.Context, id string) (*Attachment, error) {
	query := `
		SELECT id, conversation_id, filename, mime_type, data, created_at
		FROM attachments WHERE id = ?
	`

	att := &Attachment{}
	var createdAt string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&att.ID, &att.ConversationID, &att.Filename, &att.MimeType, &att.Data, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting attachment: %w", err)
	}

	att.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return att, nil
}

// ListAttachments returns attachment metadata for a conversation.
// Data blobs are not included; fetch individually via GetAttachment.
func (s *SQLiteStore) ListAttachments(ctx context.Context, conversationID string) ([]*Attachment, error) {
	query := `
		SELECT id, conversation_id, filename, mime_type, created_at
		FROM attachments WHERE conversation_id = ?
		ORDER BY created_at
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing attachments: %w", err)
	}
	defer rows.Close()

	var atts []*Attachment
	for rows.Next() {
		att := &Attachment{}
		var createdAt string
		if err := rows.Scan(&att.ID, &att.ConversationID, &att.Filename, &att.MimeType, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning attachment: %w", err)
		}
		att.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		atts = append(atts, att)
	}
	return atts, rows.Err()
}
