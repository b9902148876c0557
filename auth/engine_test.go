package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-user-auth/auth"
	"github.com/jrsteele09/go-user-auth/identity"
	"github.com/jrsteele09/go-user-auth/password"
	"github.com/jrsteele09/go-user-auth/session"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testUsername = "johndoe"
	testEmail    = "john.doe@example.com"
	testSecret   = "Password123"
)

// testFixture holds all test dependencies
type testFixture struct {
	identities  *identity.InMemoryStore
	sessionRepo *session.InMemoryRepo
	sessions    *session.Manager
	hasher      *password.Hasher
	engine      *auth.Engine
}

func setupTestFixture(t *testing.T, options ...auth.EngineOption) *testFixture {
	t.Helper()

	identities := identity.NewInMemoryStore()
	sessionRepo := session.NewInMemoryRepo()
	sessions, err := session.NewManager(sessionRepo, time.Hour)
	require.NoError(t, err)
	hasher := password.NewHasher(bcrypt.MinCost)

	engine, err := auth.NewEngine(auth.Deps{
		Identities: identities,
		Hasher:     hasher,
		Sessions:   sessions,
	}, options...)
	require.NoError(t, err)

	return &testFixture{
		identities:  identities,
		sessionRepo: sessionRepo,
		sessions:    sessions,
		hasher:      hasher,
		engine:      engine,
	}
}

func (f *testFixture) createTestIdentity(t *testing.T, username, email, secret string) *identity.Identity {
	t.Helper()

	hash, err := f.hasher.Hash(secret)
	require.NoError(t, err)

	created, err := f.identities.Create(context.Background(), &identity.Identity{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	})
	require.NoError(t, err)
	return created
}

func TestNewEngineRequiresDeps(t *testing.T) {
	f := setupTestFixture(t)

	_, err := auth.NewEngine(auth.Deps{Hasher: f.hasher, Sessions: f.sessions})
	require.Error(t, err)
	_, err = auth.NewEngine(auth.Deps{Identities: f.identities, Sessions: f.sessions})
	require.Error(t, err)
	_, err = auth.NewEngine(auth.Deps{Identities: f.identities, Hasher: f.hasher})
	require.Error(t, err)
}

func TestLoginSuccess(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	created := f.createTestIdentity(t, testUsername, testEmail, testSecret)

	result, err := f.engine.Login(ctx, testEmail, testSecret)
	require.NoError(t, err)
	require.Equal(t, auth.StateAuthenticated, result.State)
	require.Equal(t, created.ID, result.Identity.ID)
	require.NotNil(t, result.Session)

	// The issued session validates and resolves back to the identity.
	resolved, err := f.engine.Authenticate(ctx, result.Session.Token)
	require.NoError(t, err)
	require.Equal(t, created.ID, resolved.ID)
}

func TestLoginByUsername(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestIdentity(t, testUsername, testEmail, testSecret)

	result, err := f.engine.Login(context.Background(), testUsername, testSecret)
	require.NoError(t, err)
	require.Equal(t, auth.StateAuthenticated, result.State)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.createTestIdentity(t, testUsername, testEmail, testSecret)

	wrongSecret, errWrongSecret := f.engine.Login(ctx, testEmail, "WrongSecret1")
	unknownUser, errUnknownUser := f.engine.Login(ctx, "nobody@example.com", testSecret)

	require.ErrorIs(t, errWrongSecret, auth.ErrAuthenticationFailed)
	require.ErrorIs(t, errUnknownUser, auth.ErrAuthenticationFailed)
	require.Equal(t, errWrongSecret.Error(), errUnknownUser.Error())

	require.Equal(t, auth.StateFailed, wrongSecret.State)
	require.Equal(t, auth.StateFailed, unknownUser.State)
	require.Equal(t, wrongSecret.Message, unknownUser.Message)
	require.Equal(t, auth.FailedLoginMessage, wrongSecret.Message)
	require.Nil(t, wrongSecret.Session)
}

func TestLoginRehashesBelowPolicyHash(t *testing.T) {
	identities := identity.NewInMemoryStore()
	sessionRepo := session.NewInMemoryRepo()
	sessions, err := session.NewManager(sessionRepo, time.Hour)
	require.NoError(t, err)

	// Stored hash at min cost, engine policy one notch above.
	weak := password.NewHasher(bcrypt.MinCost)
	oldHash, err := weak.Hash(testSecret)
	require.NoError(t, err)

	created, err := identities.Create(context.Background(), &identity.Identity{
		Username:     testUsername,
		Email:        testEmail,
		PasswordHash: oldHash,
	})
	require.NoError(t, err)

	strong := password.NewHasher(bcrypt.MinCost + 1)
	engine, err := auth.NewEngine(auth.Deps{Identities: identities, Hasher: strong, Sessions: sessions})
	require.NoError(t, err)

	result, err := engine.Login(context.Background(), testEmail, testSecret)
	require.NoError(t, err)
	require.Equal(t, auth.StateAuthenticated, result.State)

	stored, err := identities.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, bcrypt.MinCost+1, stored.PasswordHash.Cost)
	require.False(t, strong.NeedsRehash(stored.PasswordHash))

	// The upgraded hash still verifies the same secret.
	ok, err := strong.Verify(testSecret, stored.PasswordHash)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLogout(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.createTestIdentity(t, testUsername, testEmail, testSecret)

	result, err := f.engine.Login(ctx, testEmail, testSecret)
	require.NoError(t, err)

	require.NoError(t, f.engine.Logout(ctx, result.Session.Token))

	_, err = f.engine.Authenticate(ctx, result.Session.Token)
	require.ErrorIs(t, err, session.ErrInvalidSession)

	// Logout is idempotent.
	require.NoError(t, f.engine.Logout(ctx, result.Session.Token))
}

func TestAuthenticateUnknownToken(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.engine.Authenticate(context.Background(), "never-issued")
	require.ErrorIs(t, err, session.ErrInvalidSession)
}

func TestAuthenticateDanglingIdentityRevokesSession(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	// Session pointing at an identity that does not exist.
	issued, err := f.sessions.Issue(ctx, "deleted-identity")
	require.NoError(t, err)

	_, err = f.engine.Authenticate(ctx, issued.Token)
	require.ErrorIs(t, err, session.ErrInvalidSession)

	stored, err := f.sessionRepo.Get(ctx, issued.Token)
	require.NoError(t, err)
	require.True(t, stored.Revoked)
}

func TestIdentityFieldOrderIsConfigurable(t *testing.T) {
	f := setupTestFixture(t, auth.WithIdentityFields([]identity.Field{identity.FieldUsername}))
	f.createTestIdentity(t, testUsername, testEmail, testSecret)

	// Username-only lookup: the email is no longer a valid identifier.
	_, err := f.engine.Login(context.Background(), testEmail, testSecret)
	require.ErrorIs(t, err, auth.ErrAuthenticationFailed)

	result, err := f.engine.Login(context.Background(), testUsername, testSecret)
	require.NoError(t, err)
	require.Equal(t, auth.StateAuthenticated, result.State)
}

// Full state-machine walk: register precondition handled in account tests,
// here credentials cycle through login, bad login, logout.
func TestLoginLogoutCycle(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.createTestIdentity(t, "alice", "alice@x.com", "P@ssword1")

	first, err := f.engine.Login(ctx, "alice", "P@ssword1")
	require.NoError(t, err)
	require.Equal(t, auth.StateAuthenticated, first.State)

	_, err = f.engine.Login(ctx, "alice", "wrong")
	require.ErrorIs(t, err, auth.ErrAuthenticationFailed)

	// A failed attempt does not disturb the existing session.
	_, err = f.engine.Authenticate(ctx, first.Session.Token)
	require.NoError(t, err)

	require.NoError(t, f.engine.Logout(ctx, first.Session.Token))
	_, err = f.engine.Authenticate(ctx, first.Session.Token)
	require.ErrorIs(t, err, session.ErrInvalidSession)
}
