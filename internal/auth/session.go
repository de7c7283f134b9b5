package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vovakirdan/clubchat-server/internal/core"
	"github.com/vovakirdan/clubchat-server/internal/store"
)

// SessionStore is the subset of storage the session resolver needs.
type SessionStore interface {
	store.SessionStore
	GetUserByID(ctx context.Context, id int64) (*store.User, error)
}

// SessionResolver resolves opaque session tokens issued by the game.
type SessionResolver struct {
	store SessionStore
	ttl   time.Duration
	now   func() time.Time
}

// NewSessionResolver returns a resolver backed by st. A ttl of zero accepts
// sessions of any age.
func NewSessionResolver(st SessionStore, ttl time.Duration) *SessionResolver {
	return &SessionResolver{store: st, ttl: ttl, now: time.Now}
}

// Resolve implements core.IdentityResolver.
func (r *SessionResolver) Resolve(ctx context.Context, credential string) (core.Identity, error) {
	sess, err := r.store.GetSession(ctx, credential)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return core.Identity{}, fmt.Errorf("%w: unknown session", core.ErrInvalidCredential)
		}
		return core.Identity{}, fmt.Errorf("get session: %w", err)
	}

	// Sessions without a creation time never expire here.
	if r.ttl > 0 && !sess.CreatedAt.IsZero() && r.now().Sub(sess.CreatedAt) > r.ttl {
		return core.Identity{}, fmt.Errorf("%w: session expired", core.ErrInvalidCredential)
	}

	user, err := r.store.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return core.Identity{}, fmt.Errorf("%w: session owner gone", core.ErrInvalidCredential)
		}
		return core.Identity{}, fmt.Errorf("get user: %w", err)
	}

	return core.Identity{UserID: user.ID, DisplayName: user.ProfileName}, nil
}

// IssueSession stores a fresh session for userID and returns its token.
func IssueSession(ctx context.Context, st SessionStore, userID int64) (*store.Session, error) {
	if _, err := st.GetUserByID(ctx, userID); err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	sess, err := st.CreateSession(ctx, uuid.NewString(), userID)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}
