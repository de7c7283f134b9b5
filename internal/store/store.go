package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// User represents a game account as seen by the chat.
type User struct {
	ID          int64
	ProfileName string
	CreatedAt   time.Time
}

// Session is a login session issued by the game. Its ID is the opaque
// credential presented on join.
type Session struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
}

// ClubMessage is a persisted broadcast message joined with its author.
type ClubMessage struct {
	ID          int64
	UserID      int64
	ProfileName string
	Body        string
	CreatedAt   time.Time
}

// PrivateMessage is a persisted whisper between two users.
type PrivateMessage struct {
	ID                   int64
	SenderID             int64
	SenderProfileName    string
	RecipientID          int64
	RecipientProfileName string
	Body                 string
	CreatedAt            time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with the given profile name.
	CreateUser(ctx context.Context, profileName string) (*User, error)

	// GetUserByID retrieves a user by ID. Returns ErrNotFound if missing.
	GetUserByID(ctx context.Context, id int64) (*User, error)
}

// SessionStore handles session persistence.
type SessionStore interface {
	// CreateSession stores a new session for the user.
	CreateSession(ctx context.Context, id string, userID int64) (*Session, error)

	// GetSession retrieves a session by its ID. Returns ErrNotFound if missing.
	GetSession(ctx context.Context, id string) (*Session, error)
}

// MessageStore handles chat message persistence.
type MessageStore interface {
	// AppendClubMessage persists a broadcast message and returns the stored row.
	AppendClubMessage(ctx context.Context, userID int64, body string) (*ClubMessage, error)

	// AppendPrivateMessage persists a private message and returns the stored row.
	AppendPrivateMessage(ctx context.Context, senderID, recipientID int64, body string) (*PrivateMessage, error)

	// RecentClubMessages returns up to limit most recent broadcast messages,
	// ordered oldest to newest.
	RecentClubMessages(ctx context.Context, limit int) ([]*ClubMessage, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	SessionStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}

// Reverse flips rows fetched newest-first into chronological order.
func Reverse[T any](rows []T) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}
