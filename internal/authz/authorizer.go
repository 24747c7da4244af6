package authz

import (
	"context"
	"fmt"

	"github.com/sharedlists/sharedlists/internal/apierror"
	"github.com/sharedlists/sharedlists/internal/db/models"
	"github.com/sharedlists/sharedlists/internal/db/repositories"
)

// MembershipStore is the persistence the authorizer needs
type MembershipStore interface {
	GetMembership(ctx context.Context, accountID, listID string) (*models.Membership, error)
	CreateMembership(ctx context.Context, m *models.Membership) error
	DeleteMembership(ctx context.Context, accountID, listID string) (bool, error)
}

// MembershipAuthorizer answers role questions and performs membership changes
type MembershipAuthorizer struct {
	store MembershipStore
}

// NewMembershipAuthorizer creates a MembershipAuthorizer
func NewMembershipAuthorizer(store MembershipStore) *MembershipAuthorizer {
	return &MembershipAuthorizer{store: store}
}

// GetRole returns the account's role on the list. ok is false when there is no
// membership, which means no access at all.
func (a *MembershipAuthorizer) GetRole(ctx context.Context, accountID, listID string) (models.Role, bool, error) {
	m, err := a.store.GetMembership(ctx, accountID, listID)
	if err != nil {
		return 0, false, fmt.Errorf("failed to get role: %w", err)
	}
	if m == nil {
		return 0, false, nil
	}
	return m.Role, true, nil
}

// AssignRole makes accountID a member of listID with role. An existing membership, or
// one created concurrently between the check and the insert, is reported as Conflicts.
func (a *MembershipAuthorizer) AssignRole(ctx context.Context, accountID, listID string, role models.Role) (Result, error) {
	res := Result{AccessGranted: true, TargetExists: true}

	existing, err := a.store.GetMembership(ctx, accountID, listID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to check membership: %w", err)
	}
	if existing != nil {
		res.Conflicts = true
		return res, nil
	}

	err = a.store.CreateMembership(ctx, &models.Membership{ListID: listID, AccountID: accountID, Role: role})
	if repositories.IsUniqueViolation(err) {
		res.Conflicts = true
		return res, nil
	}
	if err != nil {
		return Result{}, err
	}

	res.Success = true
	res.RecordsAffected = 1
	return res, nil
}

// RemoveMembership deletes the membership and reports whether one existed
func (a *MembershipAuthorizer) RemoveMembership(ctx context.Context, accountID, listID string) (bool, error) {
	return a.store.DeleteMembership(ctx, accountID, listID)
}

// KickCollaborator removes targetID from listID on behalf of requesterID. Only the
// owner may kick, and nobody may kick themselves; that last rule is checked before the
// store is consulted.
func (a *MembershipAuthorizer) KickCollaborator(ctx context.Context, requesterID, targetID, listID string) (Result, error) {
	if requesterID == targetID {
		return Denied(apierror.ActionNotAllowed), nil
	}
	return Guard(ctx,
		RequireRole(a, requesterID, listID, models.RoleOwner),
		a.removeCollaborator(targetID, listID),
	)
}

// Leave removes requesterID from listID. Only a collaborator can leave, and only
// on their own behalf; an owner has to delete the list instead.
func (a *MembershipAuthorizer) Leave(ctx context.Context, requesterID, targetID, listID string) (Result, error) {
	if requesterID != targetID {
		return Denied(apierror.ActionNotAllowed), nil
	}
	return Guard(ctx,
		RequireRole(a, requesterID, listID, models.RoleCollaborator),
		a.removeCollaborator(targetID, listID),
	)
}

func (a *MembershipAuthorizer) removeCollaborator(targetID, listID string) Mutation {
	return func(ctx context.Context) (Result, error) {
		role, ok, err := a.GetRole(ctx, targetID, listID)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			return Result{}, nil
		}
		if role != models.RoleCollaborator {
			return Result{TargetExists: true}, nil
		}

		removed, err := a.RemoveMembership(ctx, targetID, listID)
		if err != nil {
			return Result{TargetExists: true}, fmt.Errorf("failed to remove membership: %w", err)
		}
		if !removed {
			// gone between the role lookup and the delete
			return Result{}, nil
		}
		return Result{Success: true, TargetExists: true, RecordsAffected: 1}, nil
	}
}
