package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/pkg/errors"
)

const (
	// tokenLength is the entropy of an issued token in bytes. 32 bytes is
	// double the 128-bit floor required for session identifiers.
	tokenLength = 32

	// DefaultTTL is the session lifetime applied when none is configured.
	DefaultTTL = 12 * time.Hour
)

// Manager issues and validates session tokens against a Repo.
type Manager struct {
	repo    Repo
	ttl     time.Duration
	nowTime func() time.Time // injectable for testing
}

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

// NewManager creates a Manager issuing tokens with the given lifetime.
func NewManager(repo Repo, ttl time.Duration, options ...ManagerOption) (*Manager, error) {
	if repo == nil {
		return nil, errors.New("[NewManager] session repo is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	manager := &Manager{
		repo:    repo,
		ttl:     ttl,
		nowTime: time.Now,
	}

	for _, opt := range options {
		opt(manager)
	}

	return manager, nil
}

// Issue mints a cryptographically random token for identityID and stores
// the session with the configured expiry.
func (m *Manager) Issue(ctx context.Context, identityID string) (*Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.Issue] generateToken")
	}

	now := m.nowTime()
	session := &Session{
		Token:      token,
		IdentityID: identityID,
		IssuedAt:   now,
		ExpiresAt:  now.Add(m.ttl),
	}
	if err := m.repo.Insert(ctx, session); err != nil {
		return nil, errors.Wrap(err, "[Manager.Issue] repo.Insert")
	}
	return session, nil
}

// Validate resolves a token to its session. Unknown and revoked tokens
// fail with ErrInvalidSession; a token past its expiry fails with
// ErrExpiredSession and is revoked as a side effect.
func (m *Manager) Validate(ctx context.Context, token string) (*Session, error) {
	session, err := m.repo.Get(ctx, token)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.Validate] repo.Get")
	}
	if session == nil || session.Revoked {
		return nil, ErrInvalidSession
	}
	if !m.nowTime().Before(session.ExpiresAt) {
		if err := m.repo.Revoke(ctx, token); err != nil {
			return nil, errors.Wrap(err, "[Manager.Validate] repo.Revoke")
		}
		return nil, ErrExpiredSession
	}
	return session, nil
}

// Revoke invalidates a token. Idempotent: revoking an unknown or already
// revoked token succeeds.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	if err := m.repo.Revoke(ctx, token); err != nil {
		return errors.Wrap(err, "[Manager.Revoke] repo.Revoke")
	}
	return nil
}

// RevokeAll invalidates every session for an identity except exceptToken,
// returning how many were revoked. Used on password change.
func (m *Manager) RevokeAll(ctx context.Context, identityID, exceptToken string) (int, error) {
	count, err := m.repo.RevokeAllForIdentity(ctx, identityID, exceptToken)
	if err != nil {
		return 0, errors.Wrap(err, "[Manager.RevokeAll] repo.RevokeAllForIdentity")
	}
	return count, nil
}

// CleanupExpired removes sessions whose expiry is already past.
func (m *Manager) CleanupExpired(ctx context.Context) error {
	if err := m.repo.DeleteExpired(ctx, m.nowTime()); err != nil {
		return errors.Wrap(err, "[Manager.CleanupExpired] repo.DeleteExpired")
	}
	return nil
}

func generateToken() (string, error) {
	bytes := make([]byte, tokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
