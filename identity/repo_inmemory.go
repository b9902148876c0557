package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-user-auth/password"
)

var _ Store = (*InMemoryStore)(nil)

// InMemoryStore is a mutex-guarded in-memory Store. Uniqueness checks and
// mutations run under a single write lock, so concurrent creates against
// the same username or email serialize and exactly one wins.
type InMemoryStore struct {
	lock        sync.RWMutex
	identities  map[string]*Identity // id -> record
	usernameIds map[string]string    // username -> id
	emailIds    map[string]string    // lowercased email -> id
}

// NewInMemoryStore creates an empty in-memory identity store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		identities:  make(map[string]*Identity),
		usernameIds: make(map[string]string),
		emailIds:    make(map[string]string),
	}
}

func (s *InMemoryStore) FindByField(ctx context.Context, field Field, identifier string) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrStoreUnavailable
	}

	s.lock.RLock()
	defer s.lock.RUnlock()

	var id string
	var ok bool
	switch field {
	case FieldUsername:
		id, ok = s.usernameIds[identifier]
	case FieldEmail:
		id, ok = s.emailIds[NormalizeEmail(identifier)]
	}
	if !ok {
		return nil, ErrNotFound
	}
	return cloneIdentity(s.identities[id]), nil
}

func (s *InMemoryStore) FindByID(ctx context.Context, id string) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrStoreUnavailable
	}

	s.lock.RLock()
	defer s.lock.RUnlock()

	ident, ok := s.identities[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneIdentity(ident), nil
}

func (s *InMemoryStore) Create(ctx context.Context, ident *Identity) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrStoreUnavailable
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	emailKey := NormalizeEmail(ident.Email)
	if _, taken := s.usernameIds[ident.Username]; taken {
		return nil, ErrConflict
	}
	if _, taken := s.emailIds[emailKey]; taken {
		return nil, ErrConflict
	}

	stored := cloneIdentity(ident)
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}

	s.identities[stored.ID] = stored
	s.usernameIds[stored.Username] = stored.ID
	s.emailIds[emailKey] = stored.ID
	return cloneIdentity(stored), nil
}

func (s *InMemoryStore) UpdatePasswordHash(ctx context.Context, id string, hash password.HashRecord) error {
	if err := ctx.Err(); err != nil {
		return ErrStoreUnavailable
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	ident, ok := s.identities[id]
	if !ok {
		return ErrNotFound
	}
	ident.PasswordHash = hash
	return nil
}

func (s *InMemoryStore) UpdateEmail(ctx context.Context, id, newEmail string) error {
	if err := ctx.Err(); err != nil {
		return ErrStoreUnavailable
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	ident, ok := s.identities[id]
	if !ok {
		return ErrNotFound
	}

	newKey := NormalizeEmail(newEmail)
	if existingID, taken := s.emailIds[newKey]; taken && existingID != id {
		return ErrConflict
	}

	delete(s.emailIds, NormalizeEmail(ident.Email))
	ident.Email = strings.TrimSpace(newEmail)
	s.emailIds[newKey] = id
	return nil
}

// cloneIdentity copies a record so callers can't mutate stored state.
func cloneIdentity(ident *Identity) *Identity {
	if ident == nil {
		return nil
	}
	copied := *ident
	return &copied
}
