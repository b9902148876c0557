package identity

import (
	"context"
	"errors"

	"github.com/jrsteele09/go-user-auth/password"
)

var (
	ErrNotFound         = errors.New("identity not found")
	ErrConflict         = errors.New("username or email already registered")
	ErrStoreUnavailable = errors.New("identity store unavailable")
)

// Store persists identity records. Implementations must keep the
// username/email uniqueness invariant under concurrent access: no two
// concurrent Creates (or UpdateEmails) may both succeed with the same
// email, compared case-insensitively.
type Store interface {
	// FindByField looks an identity up by a single identifier field.
	FindByField(ctx context.Context, field Field, identifier string) (*Identity, error)

	// FindByID looks an identity up by its ID.
	FindByID(ctx context.Context, id string) (*Identity, error)

	// Create persists a new identity, assigning an ID when none is set.
	// Fails with ErrConflict when the username or email is taken.
	Create(ctx context.Context, ident *Identity) (*Identity, error)

	// UpdatePasswordHash replaces the stored hash for an identity.
	UpdatePasswordHash(ctx context.Context, id string, hash password.HashRecord) error

	// UpdateEmail changes an identity's email. Fails with ErrConflict when
	// another identity already holds the address.
	UpdateEmail(ctx context.Context, id, newEmail string) error
}

// FindByIdentifier tries each configured field in order and returns the
// first match. The order is a deliberate policy choice (see ParseFields);
// with DefaultFields an identifier is treated as an email before a
// username.
func FindByIdentifier(ctx context.Context, store Store, fields []Field, identifier string) (*Identity, error) {
	if len(fields) == 0 {
		fields = DefaultFields
	}
	for _, field := range fields {
		ident, err := store.FindByField(ctx, field, identifier)
		if err == nil {
			return ident, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}
