// Package auth orchestrates the authentication state machine: credential
// lookup, verification and session issue all run through a single funnel so
// there is no divergent validation logic between the login and
// register-then-login flows.
package auth

import (
	"context"
	"time"

	"github.com/jrsteele09/go-user-auth/identity"
	"github.com/jrsteele09/go-user-auth/password"
	"github.com/jrsteele09/go-user-auth/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// State is a position in the authentication state machine.
type State string

const (
	StateAnonymous      State = "anonymous"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
	StateFailed         State = "failed"
)

// FailedLoginMessage is the single user-facing message for every credential
// failure. Unknown identifier and bad secret deliberately read the same so
// the login form cannot be used to enumerate accounts.
const FailedLoginMessage = "Authentication failed. Please try again."

// DefaultStoreTimeout bounds each store call made during authentication.
const DefaultStoreTimeout = 3 * time.Second

// Deps holds the collaborators the engine consumes.
type Deps struct {
	Identities identity.Store   // credential records
	Hasher     *password.Hasher // secret verification
	Sessions   *session.Manager // token lifecycle
}

// Engine runs login, authenticate and logout transitions.
type Engine struct {
	deps           Deps
	identityFields []identity.Field
	storeTimeout   time.Duration
	logger         zerolog.Logger
}

// EngineOption defines a function type to modify the Engine instance.
type EngineOption func(*Engine)

// WithIdentityFields sets the ordered identifier lookup fields.
func WithIdentityFields(fields []identity.Field) EngineOption {
	return func(e *Engine) {
		e.identityFields = fields
	}
}

// WithStoreTimeout bounds each store call made by the engine.
func WithStoreTimeout(timeout time.Duration) EngineOption {
	return func(e *Engine) {
		e.storeTimeout = timeout
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger zerolog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine initializes a new Engine with required dependencies.
func NewEngine(deps Deps, options ...EngineOption) (*Engine, error) {
	if deps.Identities == nil {
		return nil, errors.New("[NewEngine] identity store is required")
	}
	if deps.Hasher == nil {
		return nil, errors.New("[NewEngine] password hasher is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("[NewEngine] session manager is required")
	}

	engine := &Engine{
		deps:           deps,
		identityFields: identity.DefaultFields,
		storeTimeout:   DefaultStoreTimeout,
		logger:         zerolog.Nop(),
	}

	for _, opt := range options {
		opt(engine)
	}

	return engine, nil
}

// Result is the outcome of a login transition.
type Result struct {
	State    State
	Identity *identity.Identity // set when State is StateAuthenticated
	Session  *session.Session   // set when State is StateAuthenticated
	Message  string             // user-facing message on failure
}

// Login runs Anonymous -> Authenticating -> Authenticated|Failed.
//
// Credential failures return a Result in StateFailed together with
// ErrAuthenticationFailed; the error is identical for unknown identifiers
// and wrong secrets. Store outages surface as ErrStoreUnavailable.
// On success, a hash stored below the current cost policy is transparently
// re-hashed and persisted (migration on login).
func (e *Engine) Login(ctx context.Context, identifier, secret string) (*Result, error) {
	ident, err := e.findIdentity(ctx, identifier)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return &Result{State: StateFailed, Message: FailedLoginMessage}, ErrAuthenticationFailed
		}
		return nil, err
	}

	ok, err := e.deps.Hasher.Verify(secret, ident.PasswordHash)
	if err != nil {
		return nil, errors.Wrap(err, "[Engine.Login] hasher.Verify")
	}
	if !ok {
		return &Result{State: StateFailed, Message: FailedLoginMessage}, ErrAuthenticationFailed
	}

	if e.deps.Hasher.NeedsRehash(ident.PasswordHash) {
		e.rehash(ctx, ident, secret)
	}

	issued, err := e.issueSession(ctx, ident.ID)
	if err != nil {
		return nil, err
	}

	return &Result{State: StateAuthenticated, Identity: ident, Session: issued}, nil
}

// Authenticate resolves a session token to its identity. The session must
// reference an existing identity; a dangling back-reference revokes the
// session and fails.
func (e *Engine) Authenticate(ctx context.Context, token string) (*identity.Identity, error) {
	storeCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	validated, err := e.deps.Sessions.Validate(storeCtx, token)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	ident, err := e.deps.Identities.FindByID(storeCtx, validated.IdentityID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			if revokeErr := e.deps.Sessions.Revoke(storeCtx, token); revokeErr != nil {
				e.logger.Err(revokeErr).Msg("failed to revoke dangling session")
			}
			return nil, session.ErrInvalidSession
		}
		return nil, mapStoreErr(errors.Wrap(err, "[Engine.Authenticate] identities.FindByID"))
	}
	return ident, nil
}

// Logout revokes the current token, returning to Anonymous. Idempotent.
func (e *Engine) Logout(ctx context.Context, token string) error {
	storeCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	if err := e.deps.Sessions.Revoke(storeCtx, token); err != nil {
		return mapStoreErr(errors.Wrap(err, "[Engine.Logout] sessions.Revoke"))
	}
	return nil
}

// IdentityFields returns the configured identifier lookup order.
func (e *Engine) IdentityFields() []identity.Field {
	return e.identityFields
}

func (e *Engine) findIdentity(ctx context.Context, identifier string) (*identity.Identity, error) {
	storeCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	ident, err := identity.FindByIdentifier(storeCtx, e.deps.Identities, e.identityFields, identifier)
	if err != nil && !errors.Is(err, identity.ErrNotFound) {
		return nil, mapStoreErr(errors.Wrap(err, "[Engine.Login] FindByIdentifier"))
	}
	return ident, err
}

// rehash upgrades a below-policy hash after a successful verify. Failure is
// logged and swallowed: a working credential must never be rejected because
// a background upgrade write failed.
func (e *Engine) rehash(ctx context.Context, ident *identity.Identity, secret string) {
	upgraded, err := e.deps.Hasher.Hash(secret)
	if err != nil {
		e.logger.Err(err).Str("identity_id", ident.ID).Msg("rehash-on-login failed")
		return
	}

	storeCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	if err := e.deps.Identities.UpdatePasswordHash(storeCtx, ident.ID, upgraded); err != nil {
		e.logger.Err(err).Str("identity_id", ident.ID).Msg("persisting upgraded hash failed")
		return
	}
	ident.PasswordHash = upgraded
}

func (e *Engine) issueSession(ctx context.Context, identityID string) (*session.Session, error) {
	storeCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	issued, err := e.deps.Sessions.Issue(storeCtx, identityID)
	if err != nil {
		return nil, mapStoreErr(errors.Wrap(err, "[Engine.Login] sessions.Issue"))
	}
	return issued, nil
}

// mapStoreErr folds request-scoped timeout errors into the store
// availability taxonomy so callers see a single unavailable kind.
func mapStoreErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return identity.ErrStoreUnavailable
	}
	return err
}
