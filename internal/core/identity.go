package core

import "context"

// Identity is the resolved owner of a connection.
type Identity struct {
	UserID      int64
	DisplayName string
}

// IdentityResolver maps an opaque credential to an Identity. Implementations
// return an error wrapping ErrInvalidCredential for unknown or expired
// credentials.
type IdentityResolver interface {
	Resolve(ctx context.Context, credential string) (Identity, error)
}

// RosterObserver is told about every roster change. It must not block.
type RosterObserver interface {
	RosterChanged(users []int64)
}
