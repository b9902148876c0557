package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-user-auth/session"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, ttl time.Duration, now func() time.Time) (*session.Manager, *session.InMemoryRepo) {
	t.Helper()
	repo := session.NewInMemoryRepo()
	opts := []session.ManagerOption{}
	if now != nil {
		opts = append(opts, session.WithNowTime(now))
	}
	manager, err := session.NewManager(repo, ttl, opts...)
	require.NoError(t, err)
	return manager, repo
}

func TestNewManagerRequiresRepo(t *testing.T) {
	_, err := session.NewManager(nil, time.Hour)
	require.Error(t, err)
}

func TestIssueAndValidate(t *testing.T) {
	manager, _ := newManager(t, time.Hour, nil)
	ctx := context.Background()

	issued, err := manager.Issue(ctx, "identity-1")
	require.NoError(t, err)
	require.Equal(t, "identity-1", issued.IdentityID)
	// 32 bytes of entropy, base64 RawURL encoded.
	require.Len(t, issued.Token, 43)
	require.Equal(t, time.Hour, issued.ExpiresAt.Sub(issued.IssuedAt))

	validated, err := manager.Validate(ctx, issued.Token)
	require.NoError(t, err)
	require.Equal(t, issued.Token, validated.Token)
}

func TestIssueTokensAreUnique(t *testing.T) {
	manager, _ := newManager(t, time.Hour, nil)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 64; i++ {
		issued, err := manager.Issue(ctx, "identity-1")
		require.NoError(t, err)
		require.False(t, seen[issued.Token])
		seen[issued.Token] = true
	}
}

func TestValidateUnknownToken(t *testing.T) {
	manager, _ := newManager(t, time.Hour, nil)

	_, err := manager.Validate(context.Background(), "no-such-token")
	require.ErrorIs(t, err, session.ErrInvalidSession)
}

func TestValidateExpiredTokenAutoRevokes(t *testing.T) {
	now := time.Now()
	current := now
	manager, repo := newManager(t, time.Hour, func() time.Time { return current })
	ctx := context.Background()

	issued, err := manager.Issue(ctx, "identity-1")
	require.NoError(t, err)

	current = now.Add(2 * time.Hour)
	_, err = manager.Validate(ctx, issued.Token)
	require.ErrorIs(t, err, session.ErrExpiredSession)

	// Expiry marked the session revoked, so even winding the clock back
	// it stays invalid.
	current = now
	stored, err := repo.Get(ctx, issued.Token)
	require.NoError(t, err)
	require.True(t, stored.Revoked)

	_, err = manager.Validate(ctx, issued.Token)
	require.ErrorIs(t, err, session.ErrInvalidSession)
}

func TestRevokeIsIdempotent(t *testing.T) {
	manager, _ := newManager(t, time.Hour, nil)
	ctx := context.Background()

	issued, err := manager.Issue(ctx, "identity-1")
	require.NoError(t, err)

	require.NoError(t, manager.Revoke(ctx, issued.Token))
	require.NoError(t, manager.Revoke(ctx, issued.Token))
	require.NoError(t, manager.Revoke(ctx, "never-issued"))

	_, err = manager.Validate(ctx, issued.Token)
	require.ErrorIs(t, err, session.ErrInvalidSession)
}

func TestRevokeAllSparesCurrentSession(t *testing.T) {
	manager, _ := newManager(t, time.Hour, nil)
	ctx := context.Background()

	first, err := manager.Issue(ctx, "identity-1")
	require.NoError(t, err)
	second, err := manager.Issue(ctx, "identity-1")
	require.NoError(t, err)
	current, err := manager.Issue(ctx, "identity-1")
	require.NoError(t, err)
	other, err := manager.Issue(ctx, "identity-2")
	require.NoError(t, err)

	count, err := manager.RevokeAll(ctx, "identity-1", current.Token)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	_, err = manager.Validate(ctx, first.Token)
	require.ErrorIs(t, err, session.ErrInvalidSession)
	_, err = manager.Validate(ctx, second.Token)
	require.ErrorIs(t, err, session.ErrInvalidSession)

	_, err = manager.Validate(ctx, current.Token)
	require.NoError(t, err)
	_, err = manager.Validate(ctx, other.Token)
	require.NoError(t, err)

	// Second pass has nothing left to revoke.
	count, err = manager.RevokeAll(ctx, "identity-1", current.Token)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestCleanupExpired(t *testing.T) {
	now := time.Now()
	current := now
	manager, repo := newManager(t, time.Hour, func() time.Time { return current })
	ctx := context.Background()

	stale, err := manager.Issue(ctx, "identity-1")
	require.NoError(t, err)

	current = now.Add(2 * time.Hour)
	fresh, err := manager.Issue(ctx, "identity-1")
	require.NoError(t, err)

	require.NoError(t, manager.CleanupExpired(ctx))

	gone, err := repo.Get(ctx, stale.Token)
	require.NoError(t, err)
	require.Nil(t, gone)

	kept, err := repo.Get(ctx, fresh.Token)
	require.NoError(t, err)
	require.NotNil(t, kept)
}

func TestCancelledContextSurfacesStoreUnavailable(t *testing.T) {
	manager, _ := newManager(t, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := manager.Issue(ctx, "identity-1")
	require.ErrorIs(t, err, session.ErrStoreUnavailable)

	_, err = manager.Validate(ctx, "token")
	require.ErrorIs(t, err, session.ErrStoreUnavailable)
}
