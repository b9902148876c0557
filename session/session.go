// Package session issues, validates and revokes the tokens that prove a
// successful authentication.
package session

import (
	"errors"
	"time"
)

var (
	// ErrInvalidSession covers unknown and revoked tokens.
	ErrInvalidSession = errors.New("invalid session")
	// ErrExpiredSession is returned when a token is past its expiry;
	// validation revokes it as a side effect.
	ErrExpiredSession = errors.New("session expired")
	// ErrStoreUnavailable is returned when the session repository cannot
	// be reached within its bounded timeout.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// Session is a server-issued proof of authentication bound to an identity.
// Multiple concurrent sessions per identity are allowed; the identity
// back-reference must resolve at validation time.
type Session struct {
	Token      string    // opaque, >=128 bits of entropy
	IdentityID string    // back-reference, not ownership
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Revoked    bool
}

// Active reports whether the session is neither revoked nor expired at now.
func (s *Session) Active(now time.Time) bool {
	return !s.Revoked && now.Before(s.ExpiresAt)
}
