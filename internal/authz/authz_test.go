package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharedlists/sharedlists/internal/apierror"
	"github.com/sharedlists/sharedlists/internal/db/models"
)

var errStore = errors.New("store unavailable")

type membershipKey struct{ account, list string }

// fakeMemberships counts every store call so tests can assert a check short-circuited
type fakeMemberships struct {
	roles     map[membershipKey]models.Role
	calls     int
	failGet   bool
	insertErr error
}

func newFakeMemberships() *fakeMemberships {
	return &fakeMemberships{roles: map[membershipKey]models.Role{}}
}

func (f *fakeMemberships) set(account, list string, r models.Role) {
	f.roles[membershipKey{account, list}] = r
}

func (f *fakeMemberships) GetMembership(_ context.Context, account, list string) (*models.Membership, error) {
	f.calls++
	if f.failGet {
		return nil, errStore
	}
	r, ok := f.roles[membershipKey{account, list}]
	if !ok {
		return nil, nil
	}
	return &models.Membership{ListID: list, AccountID: account, Role: r}, nil
}

func (f *fakeMemberships) CreateMembership(_ context.Context, m *models.Membership) error {
	f.calls++
	if f.insertErr != nil {
		return f.insertErr
	}
	f.roles[membershipKey{m.AccountID, m.ListID}] = m.Role
	return nil
}

func (f *fakeMemberships) DeleteMembership(_ context.Context, account, list string) (bool, error) {
	f.calls++
	k := membershipKey{account, list}
	if _, ok := f.roles[k]; !ok {
		return false, nil
	}
	delete(f.roles, k)
	return true, nil
}

const (
	owner  = "owner"
	collab = "collab"
	other  = "other"
	list   = "list-1"
)

func newAuthorizer() (*MembershipAuthorizer, *fakeMemberships) {
	store := newFakeMemberships()
	store.set(owner, list, models.RoleOwner)
	store.set(collab, list, models.RoleCollaborator)
	return NewMembershipAuthorizer(store), store
}

// ---------------------------------------------------------------------------
// GetRole / RequireRole
// ---------------------------------------------------------------------------

func TestGetRole(t *testing.T) {
	a, _ := newAuthorizer()
	ctx := context.Background()

	role, ok, err := a.GetRole(ctx, owner, list)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.RoleOwner, role)

	_, ok, err = a.GetRole(ctx, other, list)
	require.NoError(t, err)
	assert.False(t, ok, "a non-member has no role")
}

func TestRequireRole(t *testing.T) {
	a, _ := newAuthorizer()
	ctx := context.Background()

	tests := []struct {
		name    string
		account string
		roles   []models.Role
		granted bool
		reason  apierror.Reason
	}{
		{"owner for owner action", owner, []models.Role{models.RoleOwner}, true, 0},
		{"collaborator for owner action", collab, []models.Role{models.RoleOwner}, false, apierror.ActionNotAllowed},
		{"non-member for owner action", other, []models.Role{models.RoleOwner}, false, apierror.ListAccessNotGranted},
		{"collaborator for any-role action", collab, nil, true, 0},
		{"non-member for any-role action", other, nil, false, apierror.ListAccessNotGranted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := RequireRole(a, tt.account, list, tt.roles...)(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.granted, d.Granted)
			if !tt.granted {
				assert.Equal(t, tt.reason, d.Reason)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Guard
// ---------------------------------------------------------------------------

func TestGuard_DeniedNeverMutates(t *testing.T) {
	called := false
	res, err := Guard(context.Background(),
		SameAccount("a", "b"),
		func(context.Context) (Result, error) {
			called = true
			return Result{Success: true}, nil
		},
	)
	require.NoError(t, err)
	assert.False(t, called)
	assert.False(t, res.AccessGranted)
	assert.False(t, res.Success)
	assert.Equal(t, apierror.ActionNotAllowed, res.DenyReason)
	assert.Equal(t, "denied", res.Outcome())
}

func TestGuard_CheckErrorStopsEverything(t *testing.T) {
	a, store := newAuthorizer()
	store.failGet = true
	called := false

	_, err := Guard(context.Background(), RequireRole(a, owner, list), func(context.Context) (Result, error) {
		called = true
		return Result{}, nil
	})
	assert.ErrorIs(t, err, errStore)
	assert.False(t, called)
}

func TestGuard_GrantedPassesMutationResult(t *testing.T) {
	res, err := Guard(context.Background(), Always, func(context.Context) (Result, error) {
		return Result{Success: true, TargetExists: true, RecordsAffected: 3}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, Result{Success: true, TargetExists: true, AccessGranted: true, RecordsAffected: 3}, res)
	assert.Equal(t, "success", res.Outcome())
}

func TestGuard_MutationErrorIsNotSuccess(t *testing.T) {
	res, err := Guard(context.Background(), Always, func(context.Context) (Result, error) {
		return Result{Success: true}, errStore
	})
	assert.ErrorIs(t, err, errStore)
	assert.True(t, res.AccessGranted)
	assert.False(t, res.Success)
}

func TestGuardRead(t *testing.T) {
	a, _ := newAuthorizer()
	ctx := context.Background()
	read := func(context.Context) (string, error) { return "groceries", nil }

	v, d, err := GuardRead(ctx, RequireRole(a, collab, list), read)
	require.NoError(t, err)
	assert.True(t, d.Granted)
	assert.Equal(t, "groceries", v)

	v, d, err = GuardRead(ctx, RequireRole(a, other, list), read)
	require.NoError(t, err)
	assert.False(t, d.Granted)
	assert.Equal(t, apierror.ListAccessNotGranted, d.Reason)
	assert.Empty(t, v)
}

func TestResultOutcome(t *testing.T) {
	assert.Equal(t, "not_found", Result{AccessGranted: true}.Outcome())
	assert.Equal(t, "conflict", Result{AccessGranted: true, TargetExists: true, Conflicts: true}.Outcome())
	assert.Equal(t, "limit_reached", Result{AccessGranted: true, TargetExists: true, LimitReached: true}.Outcome())
	assert.Equal(t, "failed", Result{AccessGranted: true, TargetExists: true}.Outcome())
}

// ---------------------------------------------------------------------------
// AssignRole
// ---------------------------------------------------------------------------

func TestAssignRole(t *testing.T) {
	ctx := context.Background()

	t.Run("new member", func(t *testing.T) {
		a, store := newAuthorizer()
		res, err := a.AssignRole(ctx, other, list, models.RoleCollaborator)
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, models.RoleCollaborator, store.roles[membershipKey{other, list}])
	})

	t.Run("existing member conflicts", func(t *testing.T) {
		a, _ := newAuthorizer()
		res, err := a.AssignRole(ctx, collab, list, models.RoleCollaborator)
		require.NoError(t, err)
		assert.True(t, res.Conflicts)
		assert.False(t, res.Success)
	})

	t.Run("concurrent insert conflicts", func(t *testing.T) {
		a, store := newAuthorizer()
		store.insertErr = &pq.Error{Code: "23505"}
		res, err := a.AssignRole(ctx, other, list, models.RoleCollaborator)
		require.NoError(t, err)
		assert.True(t, res.Conflicts)
		assert.False(t, res.Success)
	})

	t.Run("other insert failures are errors", func(t *testing.T) {
		a, store := newAuthorizer()
		store.insertErr = errStore
		_, err := a.AssignRole(ctx, other, list, models.RoleCollaborator)
		assert.ErrorIs(t, err, errStore)
	})
}

// ---------------------------------------------------------------------------
// KickCollaborator / Leave
// ---------------------------------------------------------------------------

func TestKickCollaborator_SelfRejectedBeforeStore(t *testing.T) {
	a, store := newAuthorizer()
	res, err := a.KickCollaborator(context.Background(), owner, owner, list)
	require.NoError(t, err)
	assert.False(t, res.AccessGranted)
	assert.Equal(t, apierror.ActionNotAllowed, res.DenyReason)
	assert.Zero(t, store.calls, "the store must not be consulted")
}

func TestKickCollaborator(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name      string
		requester string
		target    string
		want      Result
	}{
		{"owner kicks collaborator", owner, collab,
			Result{Success: true, TargetExists: true, AccessGranted: true, RecordsAffected: 1}},
		{"owner kicks non-member", owner, other,
			Result{AccessGranted: true}},
		{"collaborator kicks owner", collab, owner,
			Result{DenyReason: apierror.ActionNotAllowed}},
		{"non-member kicks collaborator", other, collab,
			Result{DenyReason: apierror.ListAccessNotGranted}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newAuthorizer()
			res, err := a.KickCollaborator(ctx, tt.requester, tt.target, list)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res)
		})
	}
}

func TestLeave(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name      string
		requester string
		target    string
		want      Result
	}{
		{"collaborator leaves", collab, collab,
			Result{Success: true, TargetExists: true, AccessGranted: true, RecordsAffected: 1}},
		{"owner cannot leave", owner, owner,
			Result{DenyReason: apierror.ActionNotAllowed}},
		{"cannot leave on behalf of another", owner, collab,
			Result{DenyReason: apierror.ActionNotAllowed}},
		{"non-member leaves", other, other,
			Result{DenyReason: apierror.ListAccessNotGranted}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, store := newAuthorizer()
			res, err := a.Leave(ctx, tt.requester, tt.target, list)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res)
			if tt.want.Success {
				_, still := store.roles[membershipKey{tt.target, list}]
				assert.False(t, still)
			}
		})
	}
}

func TestRemoveMembership(t *testing.T) {
	a, _ := newAuthorizer()
	ctx := context.Background()

	ok, err := a.RemoveMembership(ctx, collab, list)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.RemoveMembership(ctx, collab, list)
	require.NoError(t, err)
	assert.False(t, ok)
}
