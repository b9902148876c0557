package config

import (
	"strconv"
	"time"

	"github.com/jrsteele09/go-user-auth/identity"
	"github.com/jrsteele09/go-user-auth/password"
	"github.com/jrsteele09/go-user-auth/session"
)

type AuthConfig interface {
	GetSessionTTL() time.Duration
	GetStoreTimeout() time.Duration
	GetBcryptCost() int
	GetIdentityFields() []identity.Field
	GetLoginAfterRegistration() bool
	GetEnableRegistration() bool
	GetUseRedirectParameter() bool
	GetLoginRedirectRoute() string
	GetTokenSigningKey() []byte
	GetTokenIssuer() string
	GetTokenTTL() time.Duration
}

type Auth struct{}

var _ AuthConfig = Auth{}

func (Auth) GetSessionTTL() time.Duration {
	return getDuration("SESSION_TTL", session.DefaultTTL)
}

func (Auth) GetStoreTimeout() time.Duration {
	return getDuration("STORE_TIMEOUT", 3*time.Second)
}

func (Auth) GetBcryptCost() int {
	if cost, err := strconv.Atoi(GetEnv("BCRYPT_COST", "")); err == nil {
		return cost
	}
	return password.DefaultCost
}

// GetIdentityFields returns the ordered login identifier fields. The order
// is an explicit policy: with the default "email,username" an identifier is
// matched as an email before a username.
func (Auth) GetIdentityFields() []identity.Field {
	fields, err := identity.ParseFields(GetEnv("AUTH_IDENTITY_FIELDS", "email,username"))
	if err != nil {
		return identity.DefaultFields
	}
	return fields
}

func (Auth) GetLoginAfterRegistration() bool {
	return getBool("LOGIN_AFTER_REGISTRATION", true)
}

func (Auth) GetEnableRegistration() bool {
	return getBool("ENABLE_REGISTRATION", true)
}

func (Auth) GetUseRedirectParameter() bool {
	return getBool("USE_REDIRECT_PARAMETER", true)
}

func (Auth) GetLoginRedirectRoute() string {
	return GetEnv("LOGIN_REDIRECT_ROUTE", "/user")
}

func (Auth) GetTokenSigningKey() []byte {
	return []byte(GetEnv("TOKEN_SIGNING_KEY", ""))
}

func (Auth) GetTokenIssuer() string {
	return GetEnv("TOKEN_ISSUER", "go-user-auth")
}

func (Auth) GetTokenTTL() time.Duration {
	return getDuration("TOKEN_TTL", 15*time.Minute)
}

func getDuration(envVar string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(GetEnv(envVar, "")); err == nil && d > 0 {
		return d
	}
	return defaultValue
}

func getBool(envVar string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(GetEnv(envVar, "")); err == nil {
		return b
	}
	return defaultValue
}
