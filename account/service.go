// Package account implements the register, change-password and
// change-email workflows with their pre- and post-condition checks.
package account

import (
	"context"
	"time"

	"github.com/jrsteele09/go-user-auth/auth"
	"github.com/jrsteele09/go-user-auth/identity"
	"github.com/jrsteele09/go-user-auth/password"
	"github.com/jrsteele09/go-user-auth/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var (
	// ErrInvalidOldSecret - change-password re-verification failed. The
	// stored hash is guaranteed untouched.
	ErrInvalidOldSecret = errors.New("current password incorrect")
	// ErrInvalidSecret - change-email proof-of-presence failed.
	ErrInvalidSecret = errors.New("password incorrect")
	// ErrRegistrationDisabled - registration is switched off by policy.
	ErrRegistrationDisabled = errors.New("registration is disabled")
)

// Policy holds the mutation-workflow configuration. The identity-field
// order decides which attribute the post-registration login uses as its
// identifier; it is explicit configuration, never inferred.
type Policy struct {
	EnableRegistration     bool
	LoginAfterRegistration bool
	IdentityFields         []identity.Field
}

// DefaultPolicy allows registration with immediate login, identifying by
// email before username.
func DefaultPolicy() Policy {
	return Policy{
		EnableRegistration:     true,
		LoginAfterRegistration: true,
		IdentityFields:         identity.DefaultFields,
	}
}

// RegisterRequest is the typed payload for Register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChangePasswordRequest is the typed payload for ChangePassword.
// CurrentToken, when set, names the session spared by the bulk revocation.
type ChangePasswordRequest struct {
	IdentityID   string `json:"-"`
	OldSecret    string `json:"old_password"`
	NewSecret    string `json:"new_password"`
	CurrentToken string `json:"-"`
}

// ChangeEmailRequest is the typed payload for ChangeEmail. The current
// secret must be re-entered as proof of presence.
type ChangeEmailRequest struct {
	IdentityID    string `json:"-"`
	NewEmail      string `json:"email"`
	ConfirmSecret string `json:"password"`
}

// RegisterResult carries the created identity and, when the policy logs
// the user straight in, the issued session.
type RegisterResult struct {
	Outcome  Outcome
	Identity *identity.Identity
	Session  *session.Session
	Message  string
}

// MutationResult is the outcome of a change-password or change-email call.
type MutationResult struct {
	Outcome Outcome
	Message string
}

// Deps holds the collaborators the service consumes.
type Deps struct {
	Identities identity.Store
	Hasher     *password.Hasher
	Sessions   *session.Manager
	Engine     *auth.Engine
	Validator  Validator
	Notifier   Notifier
}

// Service runs account mutation workflows.
type Service struct {
	deps         Deps
	policy       Policy
	storeTimeout time.Duration
	logger       zerolog.Logger
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithStoreTimeout bounds each store call made by the service.
func WithStoreTimeout(timeout time.Duration) ServiceOption {
	return func(s *Service) {
		s.storeTimeout = timeout
	}
}

// WithLogger sets the service logger.
func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService initializes a new Service with required dependencies.
// Validator and Notifier fall back to the package defaults when nil.
func NewService(deps Deps, policy Policy, options ...ServiceOption) (*Service, error) {
	if deps.Identities == nil {
		return nil, errors.New("[NewService] identity store is required")
	}
	if deps.Hasher == nil {
		return nil, errors.New("[NewService] password hasher is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("[NewService] session manager is required")
	}
	if deps.Engine == nil {
		return nil, errors.New("[NewService] authentication engine is required")
	}
	if deps.Validator == nil {
		deps.Validator = DefaultValidator()
	}
	if deps.Notifier == nil {
		deps.Notifier = NopNotifier{}
	}
	if len(policy.IdentityFields) == 0 {
		policy.IdentityFields = identity.DefaultFields
	}

	service := &Service{
		deps:         deps,
		policy:       policy,
		storeTimeout: auth.DefaultStoreTimeout,
		logger:       zerolog.Nop(),
	}

	for _, opt := range options {
		opt(service)
	}

	return service, nil
}

// Register validates the payload, hashes the secret and persists the new
// identity. When the policy asks for it, the new user is logged in through
// the engine using the first configured identity field - the same funnel
// every other login takes.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if !s.policy.EnableRegistration {
		return &RegisterResult{Outcome: OutcomeFailure, Message: ErrRegistrationDisabled.Error()}, ErrRegistrationDisabled
	}

	if err := s.deps.Validator.Validate(req); err != nil {
		return &RegisterResult{Outcome: OutcomeNeedsInput, Message: err.Error()}, err
	}

	hash, err := s.deps.Hasher.Hash(req.Password)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Register] hasher.Hash")
	}

	storeCtx, cancel := s.storeContext(ctx)
	created, err := s.deps.Identities.Create(storeCtx, &identity.Identity{
		Username:     req.Username,
		Email:        identity.NormalizeEmail(req.Email),
		PasswordHash: hash,
	})
	cancel()
	if err != nil {
		return nil, mapStoreErr(errors.Wrap(err, "[Service.Register] identities.Create"))
	}

	s.notify(created.ID, EventRegistered, "account created")

	result := &RegisterResult{Outcome: OutcomeSuccess, Identity: created}
	if !s.policy.LoginAfterRegistration {
		return result, nil
	}

	loginResult, err := s.deps.Engine.Login(ctx, s.registrationIdentifier(created), req.Password)
	if err != nil {
		// The account exists; a handoff failure only costs the caller a
		// manual login.
		s.logger.Err(err).Str("identity_id", created.ID).Msg("login after registration failed")
		return result, nil
	}
	result.Session = loginResult.Session
	return result, nil
}

// ChangePassword re-verifies the old secret before accepting the new one,
// guarding against replay of a stale form on a hijacked session. On
// success every other session for the identity is revoked.
func (s *Service) ChangePassword(ctx context.Context, req ChangePasswordRequest) (*MutationResult, error) {
	if err := s.deps.Validator.Validate(req); err != nil {
		return &MutationResult{Outcome: OutcomeNeedsInput, Message: err.Error()}, err
	}

	ident, err := s.findIdentity(ctx, req.IdentityID)
	if err != nil {
		return nil, err
	}

	ok, err := s.deps.Hasher.Verify(req.OldSecret, ident.PasswordHash)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.ChangePassword] hasher.Verify")
	}
	if !ok {
		return &MutationResult{Outcome: OutcomeFailure, Message: ErrInvalidOldSecret.Error()}, ErrInvalidOldSecret
	}

	hash, err := s.deps.Hasher.Hash(req.NewSecret)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.ChangePassword] hasher.Hash")
	}

	storeCtx, cancel := s.storeContext(ctx)
	err = s.deps.Identities.UpdatePasswordHash(storeCtx, ident.ID, hash)
	cancel()
	if err != nil {
		return nil, mapStoreErr(errors.Wrap(err, "[Service.ChangePassword] identities.UpdatePasswordHash"))
	}

	storeCtx, cancel = s.storeContext(ctx)
	revoked, err := s.deps.Sessions.RevokeAll(storeCtx, ident.ID, req.CurrentToken)
	cancel()
	if err != nil {
		return nil, mapStoreErr(errors.Wrap(err, "[Service.ChangePassword] sessions.RevokeAll"))
	}
	s.logger.Info().Str("identity_id", ident.ID).Int("revoked_sessions", revoked).Msg("password changed")

	s.notify(ident.ID, EventPasswordChanged, "password changed")
	return &MutationResult{Outcome: OutcomeSuccess}, nil
}

// ChangeEmail requires re-entry of the current secret as proof of presence
// and then updates the stored address.
func (s *Service) ChangeEmail(ctx context.Context, req ChangeEmailRequest) (*MutationResult, error) {
	if err := s.deps.Validator.Validate(req); err != nil {
		return &MutationResult{Outcome: OutcomeNeedsInput, Message: err.Error()}, err
	}

	ident, err := s.findIdentity(ctx, req.IdentityID)
	if err != nil {
		return nil, err
	}

	ok, err := s.deps.Hasher.Verify(req.ConfirmSecret, ident.PasswordHash)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.ChangeEmail] hasher.Verify")
	}
	if !ok {
		return &MutationResult{Outcome: OutcomeFailure, Message: ErrInvalidSecret.Error()}, ErrInvalidSecret
	}

	storeCtx, cancel := s.storeContext(ctx)
	err = s.deps.Identities.UpdateEmail(storeCtx, ident.ID, identity.NormalizeEmail(req.NewEmail))
	cancel()
	if err != nil {
		if errors.Is(err, identity.ErrConflict) {
			return &MutationResult{Outcome: OutcomeFailure, Message: "email already registered"}, err
		}
		return nil, mapStoreErr(errors.Wrap(err, "[Service.ChangeEmail] identities.UpdateEmail"))
	}

	s.notify(ident.ID, EventEmailChanged, "email changed")
	return &MutationResult{Outcome: OutcomeSuccess}, nil
}

// registrationIdentifier picks the login identifier for the
// post-registration handoff from the configured field order.
func (s *Service) registrationIdentifier(ident *identity.Identity) string {
	switch s.policy.IdentityFields[0] {
	case identity.FieldUsername:
		return ident.Username
	default:
		return ident.Email
	}
}

func (s *Service) findIdentity(ctx context.Context, id string) (*identity.Identity, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	ident, err := s.deps.Identities.FindByID(storeCtx, id)
	if err != nil {
		return nil, mapStoreErr(errors.Wrap(err, "identities.FindByID"))
	}
	return ident, nil
}

func (s *Service) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

// notify dispatches fire-and-forget; the workflow never waits on it.
func (s *Service) notify(identityID string, event Event, message string) {
	notifier := s.deps.Notifier
	go notifier.Notify(identityID, event, message)
}

func mapStoreErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return identity.ErrStoreUnavailable
	}
	return err
}
