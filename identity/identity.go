// Package identity holds registered user account records and the
// credential store they live in.
package identity

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/jrsteele09/go-user-auth/password"
)

// Identity is a registered user account. Records are mutated only through
// the account mutation service; this core never deletes them.
type Identity struct {
	ID           string              `json:"id,omitempty"`
	Username     string              `json:"username,omitempty"`
	Email        string              `json:"email,omitempty"`
	PasswordHash password.HashRecord `json:"-"` // never serialize
	CreatedAt    time.Time           `json:"created_at,omitempty"`
}

// Field names an identity attribute a login identifier may match against.
type Field string

const (
	FieldUsername Field = "username"
	FieldEmail    Field = "email"
)

// DefaultFields is the lookup order used when none is configured:
// email first, then username.
var DefaultFields = []Field{FieldEmail, FieldUsername}

// ParseFields parses a comma-separated field list (e.g. "email,username").
func ParseFields(s string) ([]Field, error) {
	parts := strings.Split(s, ",")
	fields := make([]Field, 0, len(parts))
	for _, part := range parts {
		switch f := Field(strings.TrimSpace(strings.ToLower(part))); f {
		case FieldUsername, FieldEmail:
			fields = append(fields, f)
		default:
			return nil, fmt.Errorf("unknown identity field %q", part)
		}
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("no identity fields configured")
	}
	return fields, nil
}

// NormalizeEmail lowercases an email address. Email uniqueness and lookup
// are case-insensitive throughout the store.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidatePasswordStrength checks if a secret meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(secret string) error {
	if len(secret) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range secret {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}
