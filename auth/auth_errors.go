package auth

import "errors"

// ErrAuthenticationFailed is the single error kind for every credential
// failure. Callers must not be able to tell an unknown identifier from a
// wrong secret.
var ErrAuthenticationFailed = errors.New("authentication failed")
