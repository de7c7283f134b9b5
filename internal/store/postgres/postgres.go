// Package postgres implements store.Store on top of the game's PostgreSQL
// database ("User", "Sessions", "ClubMessages" and "PrivateMessages" tables).
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vovakirdan/clubchat-server/internal/store"
)

//go:embed schema.sql
var schema string

// PostgresStore implements store.Store for PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// New connects to the database at url and verifies the connection.
func New(ctx context.Context, url string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Migrate creates the chat tables if they do not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// CreateUser inserts a user row. The game owns registration; this is for
// development databases.
func (s *PostgresStore) CreateUser(ctx context.Context, profileName string) (*store.User, error) {
	var user store.User
	err := s.pool.QueryRow(ctx,
		`INSERT INTO "User" (profile_name) VALUES ($1) RETURNING id, profile_name`,
		profileName,
	).Scan(&user.ID, &user.ProfileName)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	var user store.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, profile_name FROM "User" WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.ProfileName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// CreateSession stores a new session for the user. id must be a UUID.
func (s *PostgresStore) CreateSession(ctx context.Context, id string, userID int64) (*store.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("session id must be a uuid: %w", err)
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO "Sessions" (id, user_id) VALUES ($1::uuid, $2)`,
		id, userID,
	); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return s.GetSession(ctx, id)
}

// GetSession looks a session up by id. The game's Sessions table has no
// creation timestamp, so CreatedAt is left zero.
func (s *PostgresStore) GetSession(ctx context.Context, id string) (*store.Session, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("session: %w", store.ErrNotFound)
	}

	var sess store.Session
	err = s.pool.QueryRow(ctx,
		`SELECT id::text, user_id FROM "Sessions" WHERE id = $1::uuid`,
		parsed.String(),
	).Scan(&sess.ID, &sess.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("session: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query session: %w", err)
	}
	return &sess, nil
}

// AppendClubMessage persists a broadcast message and returns the stored row.
func (s *PostgresStore) AppendClubMessage(ctx context.Context, userID int64, body string) (*store.ClubMessage, error) {
	query := `
		WITH inserted AS (
			INSERT INTO "ClubMessages" (user_id, message)
			VALUES ($1, $2)
			RETURNING id, user_id, message, created_at
		)
		SELECT i.id, i.user_id, u.profile_name, i.message, i.created_at
		FROM inserted i
		JOIN "User" u ON u.id = i.user_id
	`
	var msg store.ClubMessage
	if err := s.pool.QueryRow(ctx, query, userID, body).Scan(
		&msg.ID, &msg.UserID, &msg.ProfileName, &msg.Body, &msg.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert club message: %w", err)
	}
	return &msg, nil
}

// AppendPrivateMessage persists a private message and returns the stored row.
func (s *PostgresStore) AppendPrivateMessage(ctx context.Context, senderID, recipientID int64, body string) (*store.PrivateMessage, error) {
	query := `
		WITH inserted AS (
			INSERT INTO "PrivateMessages" (sender_id, recipient_id, message)
			VALUES ($1, $2, $3)
			RETURNING id, sender_id, recipient_id, message, created_at
		)
		SELECT i.id, i.sender_id, su.profile_name, i.recipient_id, ru.profile_name, i.message, i.created_at
		FROM inserted i
		JOIN "User" su ON su.id = i.sender_id
		JOIN "User" ru ON ru.id = i.recipient_id
	`
	var msg store.PrivateMessage
	if err := s.pool.QueryRow(ctx, query, senderID, recipientID, body).Scan(
		&msg.ID,
		&msg.SenderID,
		&msg.SenderProfileName,
		&msg.RecipientID,
		&msg.RecipientProfileName,
		&msg.Body,
		&msg.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert private message: %w", err)
	}
	return &msg, nil
}

// RecentClubMessages fetches newest-first and reverses into chronological order.
func (s *PostgresStore) RecentClubMessages(ctx context.Context, limit int) ([]*store.ClubMessage, error) {
	if limit <= 0 {
		return []*store.ClubMessage{}, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT cm.id, cm.user_id, u.profile_name, cm.message, cm.created_at
		FROM "ClubMessages" cm
		JOIN "User" u ON cm.user_id = u.id
		ORDER BY cm.created_at DESC, cm.id DESC
		LIMIT $1
	`, limit)
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
