package account

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jrsteele09/go-user-auth/identity"
)

// ErrValidation is the sentinel every ValidationError unwraps to.
var ErrValidation = errors.New("validation failed")

// ValidationError carries per-field messages for the form layer.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(names, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Validator checks a mutation payload before it is applied. It is an
// external collaborator; the service only requires the capability.
type Validator interface {
	Validate(payload any) error
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(payload any) error

func (f ValidatorFunc) Validate(payload any) error {
	return f(payload)
}

// DefaultValidator applies the baseline payload checks: required fields, a
// minimal email shape and password strength.
func DefaultValidator() Validator {
	return ValidatorFunc(func(payload any) error {
		fields := map[string]string{}
		switch p := payload.(type) {
		case RegisterRequest:
			if strings.TrimSpace(p.Username) == "" {
				fields["username"] = "username is required"
			}
			if err := validateEmailShape(p.Email); err != nil {
				fields["email"] = err.Error()
			}
			if err := identity.ValidatePasswordStrength(p.Password); err != nil {
				fields["password"] = err.Error()
			}
		case ChangePasswordRequest:
			if p.OldSecret == "" {
				fields["old_password"] = "current password is required"
			}
			if err := identity.ValidatePasswordStrength(p.NewSecret); err != nil {
				fields["new_password"] = err.Error()
			}
		case ChangeEmailRequest:
			if err := validateEmailShape(p.NewEmail); err != nil {
				fields["email"] = err.Error()
			}
			if p.ConfirmSecret == "" {
				fields["password"] = "current password is required"
			}
		default:
			return fmt.Errorf("unsupported payload type %T", payload)
		}
		if len(fields) > 0 {
			return &ValidationError{Fields: fields}
		}
		return nil
	})
}

func validateEmailShape(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		return fmt.Errorf("invalid email format")
	}
	return nil
}
