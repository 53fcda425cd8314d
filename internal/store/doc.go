// Package store provides persistent storage for parley using SQLite.
//
// # Data Models
//
//   - Conversation: a chat conversation with its current model
//   - Message: individual messages with role (user, assistant, system)
//     and status (pending, complete, error) tracking streamed replies
//   - Tag: labels attachable to conversations
//   - Attachment: file blobs attached to conversations
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Use NewSQLiteStore(":memory:") for tests.
//
// # Error Handling
//
//   - ErrNotFound: requested entity does not exist
//   - ErrDuplicateTag: tag name already taken
//
// All methods accept context.Context for cancellation support.
//
// The session core never writes through this package on its own; it
// borrows read-only history snapshots for context injection while the
// HTTP layer owns all writes.
package store
