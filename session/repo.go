package session

import (
	"context"
	"time"
)

// Repo defines the interface for session storage operations.
// Revocation must be serializable per token: concurrent Revoke and
// RevokeAllForIdentity calls against the same key may not interleave.
type Repo interface {
	// Insert stores a newly issued session.
	Insert(ctx context.Context, session *Session) error

	// Get retrieves a session by token. Returns (nil, nil) when the token
	// is unknown.
	Get(ctx context.Context, token string) (*Session, error)

	// Revoke marks a session revoked. Revoking an unknown or already
	// revoked token is not an error.
	Revoke(ctx context.Context, token string) error

	// RevokeAllForIdentity revokes every active session belonging to an
	// identity except the one named by exceptToken (pass "" to revoke all).
	// Returns the number of sessions revoked.
	RevokeAllForIdentity(ctx context.Context, identityID, exceptToken string) (int, error)

	// DeleteExpired removes sessions that expired before the given time.
	DeleteExpired(ctx context.Context, before time.Time) error
}
