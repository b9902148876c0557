// Package token mints and parses the HMAC-signed bearer tokens handed to
// API clients after an interactive login. The session cookie remains the
// source of truth for revocation; these tokens are short-lived claims
// carriers for stateless API calls.
package token

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-user-auth/identity"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// DefaultTTL is the access-token lifetime applied when none is configured.
const DefaultTTL = 15 * time.Minute

// Claims are the identity claims carried by an access token.
type Claims struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"preferred_username,omitempty"`
	jwtlib.RegisteredClaims
}

// Creator signs and verifies access tokens with a shared HMAC key.
type Creator struct {
	key    []byte
	issuer string
	ttl    time.Duration
}

// NewCreator creates a Creator signing with the given key.
func NewCreator(key []byte, issuer string, ttl time.Duration) (*Creator, error) {
	if len(key) == 0 {
		return nil, errors.New("[NewCreator] signing key is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Creator{key: key, issuer: issuer, ttl: ttl}, nil
}

// Create mints a signed access token for an identity.
func (c *Creator) Create(ident *identity.Identity) (string, error) {
	now := NowTimeFunc()
	claims := Claims{
		Email:    ident.Email,
		Username: ident.Username,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   ident.ID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(c.ttl)),
			ID:        uuid.New().String(),
		},
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// Parse verifies a token's signature and expiry and returns its claims.
// Only HMAC-signed tokens are accepted; anything else is ErrInvalidToken.
func (c *Creator) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwtlib.ParseWithClaims(raw, claims, func(t *jwtlib.Token) (any, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.key, nil
	}, jwtlib.WithTimeFunc(func() time.Time { return NowTimeFunc() }))
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
