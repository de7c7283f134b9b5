package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/clubchat-server/internal/store"
)

//go:embed schema.sql
var schema string

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, Migrate)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to seed data along with the schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with single connection; also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Migrate applies the embedded schema. Safe to run repeatedly.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with the given profile name.
func (s *SQLiteStore) CreateUser(ctx context.Context, profileName string) (*store.User, error) {
	query := `
		INSERT INTO users (profile_name, created_at)
		VALUES (?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, profileName, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, profile_name, created_at
		FROM users
		WHERE id = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.ProfileName,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// ==== SessionStore implementation ====

// CreateSession stores a new session for the user.
func (s *SQLiteStore) CreateSession(ctx context.Context, id string, userID int64) (*store.Session, error) {
	query := `
		INSERT INTO sessions (id, user_id, created_at)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, id, userID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	return s.GetSession(ctx, id)
}

// GetSession retrieves a session by its ID.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*store.Session, error) {
	query := `
		SELECT id, user_id, created_at
		FROM sessions
		WHERE id = ?
	`
	var sess store.Session
	err := s.db.QueryRowContext(ctx, query, id).Scan(&sess.ID, &sess.UserID, &sess.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query session: %w", err)
	}

	return &sess, nil
}

// ==== MessageStore implementation ====

// AppendClubMessage persists a broadcast message and returns the stored row.
func (s *SQLiteStore) AppendClubMessage(ctx context.Context, userID int64, body string) (*store.ClubMessage, error) {
	query := `
		INSERT INTO club_messages (user_id, message, created_at)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, userID, body, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("insert club message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	query = `
		SELECT cm.id, cm.user_id, u.profile_name, cm.message, cm.created_at
		FROM club_messages cm
		JOIN users u ON u.id = cm.user_id
		WHERE cm.id = ?
	`
	var msg store.ClubMessage
	if err := s.db.QueryRowContext(ctx, query, id).Scan(
		&msg.ID, &msg.UserID, &msg.ProfileName, &msg.Body, &msg.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("query club message: %w", err)
	}

	return &msg, nil
}

// AppendPrivateMessage persists a private message and returns the stored row.
func (s *SQLiteStore) AppendPrivateMessage(ctx context.Context, senderID, recipientID int64, body string) (*store.PrivateMessage, error) {
	query := `
		INSERT INTO private_messages (sender_id, recipient_id, message, created_at)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, senderID, recipientID, body, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("insert private message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	query = `
		SELECT pm.id, pm.sender_id, su.profile_name, pm.recipient_id, ru.profile_name, pm.message, pm.created_at
		FROM private_messages pm
		JOIN users su ON su.id = pm.sender_id
		JOIN users ru ON ru.id = pm.recipient_id
		WHERE pm.id = ?
	`
	var msg store.PrivateMessage
	if err := s.db.QueryRowContext(ctx, query, id).Scan(
		&msg.ID,
		&msg.SenderID,
		&msg.SenderProfileName,
		&msg.RecipientID,
		&msg.RecipientProfileName,
		&msg.Body,
		&msg.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("query private message: %w", err)
	}

	return &msg, nil
}

// RecentClubMessages returns up to limit most recent broadcast messages, oldest first.
func (s *SQLiteStore) RecentClubMessages(ctx context.Context, limit int) ([]*store.ClubMessage, error) {
	if limit <= 0 {
		return []*store.ClubMessage{}, nil
	}

	query := `
		SELECT cm.id, cm.user_id, u.profile_name, cm.message, cm.created_at
		FROM club_messages cm
		JOIN users u ON u.id = cm.user_id
		ORDER BY cm.created_at DESC, cm.id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query club messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.ClubMessage, 0, limit)
	for rows.Next() {
		var msg store.ClubMessage
		if err := rows.Scan(&msg.ID, &msg.UserID, &msg.ProfileName, &msg.Body, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan club message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate club messages: %w", err)
	}

	store.Reverse(messages)
	return messages, nil
}
