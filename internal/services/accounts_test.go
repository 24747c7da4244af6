package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharedlists/sharedlists/internal/apierror"
)

func TestRegister(t *testing.T) {
	f := newFixture(defaultLimits())
	ctx := context.Background()

	acct, err := f.accounts.Register(ctx, RegisterInput{FirstName: " Ada ", Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, acct.ID)
	assert.Equal(t, "Ada", acct.FirstName)
	assert.NotEqual(t, "correct horse", acct.PasswordHash)

	_, err = f.accounts.Register(ctx, RegisterInput{Email: "ada@example.com", Password: "another password"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(defaultLimits())
	ctx := context.Background()

	tests := []struct {
		name string
		in   RegisterInput
	}{
		{"bad email", RegisterInput{Email: "not-an-email", Password: "long enough"}},
		{"empty email", RegisterInput{Email: "", Password: "long enough"}},
		{"short password", RegisterInput{Email: "bob@example.com", Password: "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.accounts.Register(ctx, tt.in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestLogin(t *testing.T) {
	f := newFixture(defaultLimits())
	ctx := context.Background()

	acct, err := f.accounts.Register(ctx, RegisterInput{Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)

	t.Run("wrong password", func(t *testing.T) {
		_, err := f.accounts.Login(ctx, "ada@example.com", "wrong horse")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := f.accounts.Login(ctx, "nobody@example.com", "correct horse")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("issued key authenticates", func(t *testing.T) {
		issued, err := f.accounts.Login(ctx, "ada@example.com", "correct horse")
		require.NoError(t, err)
		assert.Equal(t, acct.ID, issued.AccountID)
		assert.WithinDuration(t, time.Now().Add(6*time.Hour), issued.ExpiresAt, time.Minute)

		res, err := f.authn.Authenticate(ctx, acct.ID, issued.Key)
		require.NoError(t, err)
		assert.True(t, res.IsAuthenticated)
	})
}

func TestRevokeKey(t *testing.T) {
	f := newFixture(defaultLimits())
	ctx := context.Background()
	acct, err := f.accounts.Register(ctx, RegisterInput{Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)
	issued, err := f.accounts.Login(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)

	res, err := f.accounts.RevokeKey(ctx, acct.ID, issued.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)

	auth, err := f.authn.Authenticate(ctx, acct.ID, issued.Key)
	require.NoError(t, err)
	reason, rejected := auth.Reason()
	assert.True(t, rejected)
	assert.Equal(t, apierror.KeyInvalid, reason)

	// someone else's key id is not found
	other := f.w.addAccount("eve@example.com")
	res, err = f.accounts.RevokeKey(ctx, other, issued.ID)
	require.NoError(t, err)
	assert.True(t, res.AccessGranted)
	assert.False(t, res.TargetExists)
}

func TestLogoutAll(t *testing.T) {
	f := newFixture(defaultLimits())
	ctx := context.Background()
	acct, err := f.accounts.Register(ctx, RegisterInput{Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := f.accounts.IssueKey(ctx, acct.ID)
		require.NoError(t, err)
	}

	res, err := f.accounts.LogoutAll(ctx, acct.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, int64(3), res.RecordsAffected)

	// no valid keys left is still a success
	res, err = f.accounts.LogoutAll(ctx, acct.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Zero(t, res.RecordsAffected)

	n, err := f.accounts.SweepKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	keys, err := f.accounts.ListKeys(ctx, acct.ID)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestDeleteAccount(t *testing.T) {
	f := newFixture(defaultLimits())
	ctx := context.Background()
	ada := f.w.addAccount("ada@example.com")
	bob := f.w.addAccount("bob@example.com")

	owned, _, err := f.lists.Create(ctx, ada, "groceries")
	require.NoError(t, err)
	shared, _, err := f.lists.Create(ctx, bob, "hardware")
	require.NoError(t, err)
	_, err = f.lists.AddCollaborator(ctx, bob, shared.ID, "ada@example.com")
	require.NoError(t, err)

	t.Run("another account is refused", func(t *testing.T) {
		res, err := f.accounts.DeleteAccount(ctx, bob, ada)
		require.NoError(t, err)
		assert.False(t, res.AccessGranted)
		assert.Equal(t, apierror.ActionNotAllowed, res.DenyReason)

		p, err := f.accounts.GetProfile(ctx, ada)
		require.NoError(t, err)
		assert.NotNil(t, p)
	})

	t.Run("self delete cascades", func(t *testing.T) {
		res, err := f.accounts.DeleteAccount(ctx, ada, ada)
		require.NoError(t, err)
		assert.True(t, res.Success)

		l, err := f.w.GetList(ctx, owned.ID)
		require.NoError(t, err)
		assert.Nil(t, l, "owned list is removed")

		l, err = f.w.GetList(ctx, shared.ID)
		require.NoError(t, err)
		assert.NotNil(t, l, "list owned by someone else survives")

		m, err := f.w.GetMembership(ctx, ada, shared.ID)
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("admin delete of missing account", func(t *testing.T) {
		res, err := f.accounts.AdminDeleteAccount(ctx, ada)
		require.NoError(t, err)
		assert.True(t, res.AccessGranted)
		assert.False(t, res.TargetExists)
	})
}

func TestListAccounts_ClampsPaging(t *testing.T) {
	f := newFixture(defaultLimits())
	ctx := context.Background()
	f.w.addAccount("a@example.com")
	f.w.addAccount("b@example.com")

	accounts, total, err := f.accounts.ListAccounts(ctx, 0, -5)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, accounts, 2)
}
