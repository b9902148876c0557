package session

import (
	"context"
	"sync"
	"time"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is a mutex-guarded in-memory session store with a secondary
// index by identity for bulk revocation.
type InMemoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]*Session          // token -> session
	identity map[string]map[string]struct{} // identityID -> set of tokens
}

// NewInMemoryRepo creates an empty in-memory session repository.
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		sessions: make(map[string]*Session),
		identity: make(map[string]map[string]struct{}),
	}
}

func (r *InMemoryRepo) Insert(ctx context.Context, session *Session) error {
	if err := ctx.Err(); err != nil {
		return ErrStoreUnavailable
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *session
	r.sessions[stored.Token] = &stored
	tokens, ok := r.identity[stored.IdentityID]
	if !ok {
		tokens = make(map[string]struct{})
		r.identity[stored.IdentityID] = tokens
	}
	tokens[stored.Token] = struct{}{}
	return nil
}

func (r *InMemoryRepo) Get(ctx context.Context, token string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrStoreUnavailable
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[token]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (r *InMemoryRepo) Revoke(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return ErrStoreUnavailable
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if session, ok := r.sessions[token]; ok {
		session.Revoked = true
	}
	return nil
}

func (r *InMemoryRepo) RevokeAllForIdentity(ctx context.Context, identityID, exceptToken string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, ErrStoreUnavailable
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for token := range r.identity[identityID] {
		if token == exceptToken {
			continue
		}
		if session, ok := r.sessions[token]; ok && !session.Revoked {
			session.Revoked = true
			count++
		}
	}
	return count, nil
}

func (r *InMemoryRepo) DeleteExpired(ctx context.Context, before time.Time) error {
	if err := ctx.Err(); err != nil {
		return ErrStoreUnavailable
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for token, session := range r.sessions {
		if session.ExpiresAt.Before(before) {
			delete(r.sessions, token)
			if tokens, ok := r.identity[session.IdentityID]; ok {
				delete(tokens, token)
				if len(tokens) == 0 {
					delete(r.identity, session.IdentityID)
				}
			}
		}
	}
	return nil
}
