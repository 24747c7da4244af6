package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sharedlists/sharedlists/internal/authz"
	"github.com/sharedlists/sharedlists/internal/config"
	"github.com/sharedlists/sharedlists/internal/db/models"
)

const maxNameLength = 200

// ListStore is the list persistence used by ListService
type ListStore interface {
	CreateListWithOwner(ctx context.Context, list *models.List, ownerID string) error
	GetList(ctx context.Context, listID string) (*models.List, error)
	ListListsForAccount(ctx context.Context, accountID string) ([]*models.ListWithRole, error)
	CountOwnedLists(ctx context.Context, accountID string) (int, error)
	RenameList(ctx context.Context, listID, name string) (bool, error)
	DeleteListCascade(ctx context.Context, listID string) (int64, bool, error)
}

// MemberLister lists the members of a list with their account details
type MemberLister interface {
	ListMembers(ctx context.Context, listID string) ([]*models.MembershipWithAccount, error)
}

// AccountLookup resolves an email to an account. A missing account is (nil, nil).
type AccountLookup interface {
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
}

// ListService manages lists and their membership
type ListService struct {
	lists    ListStore
	members  MemberLister
	accounts AccountLookup
	authz    *authz.MembershipAuthorizer
	limits   config.LimitsConfig
}

// NewListService creates a ListService
func NewListService(lists ListStore, members MemberLister, accounts AccountLookup, a *authz.MembershipAuthorizer, limits config.LimitsConfig) *ListService {
	return &ListService{lists: lists, members: members, accounts: accounts, authz: a, limits: limits}
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invalid("name", "must not be empty")
	}
	if len(name) > maxNameLength {
		return "", invalid("name", fmt.Sprintf("must be at most %d characters", maxNameLength))
	}
	return name, nil
}

// Create makes a new list owned by accountID. An account already owning the maximum
// number of lists gets LimitReached.
func (s *ListService) Create(ctx context.Context, accountID, name string) (*models.List, authz.Result, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, authz.Result{}, err
	}

	list := &models.List{Name: name}
	res, err := observe("list.create")(authz.Guard(ctx, authz.Always, func(ctx context.Context) (authz.Result, error) {
		owned, err := s.lists.CountOwnedLists(ctx, accountID)
		if err != nil {
			return authz.Result{}, fmt.Errorf("failed to count lists: %w", err)
		}
		if owned >= s.limits.MaxListsPerAccount {
			return authz.Result{TargetExists: true, LimitReached: true}, nil
		}
		if err := s.lists.CreateListWithOwner(ctx, list, accountID); err != nil {
			return authz.Result{TargetExists: true}, err
		}
		return authz.Result{Success: true, TargetExists: true, RecordsAffected: 2}, nil
	}))
	if err != nil || !res.Success {
		return nil, res, err
	}
	slog.Info("list created", "list_id", list.ID, "account_id", accountID)
	return list, res, nil
}

// Get returns the list if accountID is a member. A nil list with a granted decision
// means the list disappeared after the check.
func (s *ListService) Get(ctx context.Context, accountID, listID string) (*models.List, authz.Decision, error) {
	return authz.GuardRead(ctx, authz.RequireRole(s.authz, accountID, listID), func(ctx context.Context) (*models.List, error) {
		return s.lists.GetList(ctx, listID)
	})
}

// ListForAccount returns every list accountID belongs to, with its role on each
func (s *ListService) ListForAccount(ctx context.Context, accountID string) ([]*models.ListWithRole, error) {
	return s.lists.ListListsForAccount(ctx, accountID)
}

// Rename changes the list name. Owner only.
func (s *ListService) Rename(ctx context.Context, accountID, listID, name string) (authz.Result, error) {
	name, err := cleanName(name)
	if err != nil {
		return authz.Result{}, err
	}
	return observe("list.rename")(authz.Guard(ctx,
		authz.RequireRole(s.authz, accountID, listID, models.RoleOwner),
		func(ctx context.Context) (authz.Result, error) {
			ok, err := s.lists.RenameList(ctx, listID, name)
			if err != nil {
				return authz.Result{TargetExists: true}, err
			}
			return authz.Result{Success: ok, TargetExists: ok, RecordsAffected: boolCount(ok)}, nil
		},
	))
}

// Delete removes the list with its items and memberships. Owner only.
func (s *ListService) Delete(ctx context.Context, accountID, listID string) (authz.Result, error) {
	return observe("list.delete")(authz.Guard(ctx,
		authz.RequireRole(s.authz, accountID, listID, models.RoleOwner),
		func(ctx context.Context) (authz.Result, error) {
			n, ok, err := s.lists.DeleteListCascade(ctx, listID)
			if err != nil {
				return authz.Result{TargetExists: true}, err
			}
			if !ok {
				// rows changed under the transaction; nothing was committed
				return authz.Result{TargetExists: true}, nil
			}
			slog.Info("list deleted", "list_id", listID, "account_id", accountID, "records_affected", n)
			return authz.Result{Success: true, TargetExists: true, RecordsAffected: n}, nil
		},
	))
}

// Members returns everyone on the list. Any member may look.
func (s *ListService) Members(ctx context.Context, accountID, listID string) ([]*models.MembershipWithAccount, authz.Decision, error) {
	return authz.GuardRead(ctx, authz.RequireRole(s.authz, accountID, listID), func(ctx context.Context) ([]*models.MembershipWithAccount, error) {
		return s.members.ListMembers(ctx, listID)
	})
}

// AddCollaborator gives the account registered under email the collaborator role.
// Owner only. An unknown email is reported as a missing target.
func (s *ListService) AddCollaborator(ctx context.Context, requesterID, listID, email string) (authz.Result, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return authz.Result{}, invalid("email", "must not be empty")
	}
	return observe("list.add_collaborator")(authz.Guard(ctx,
		authz.RequireRole(s.authz, requesterID, listID, models.RoleOwner),
		func(ctx context.Context) (authz.Result, error) {
			account, err := s.accounts.GetAccountByEmail(ctx, email)
			if err != nil {
				return authz.Result{}, fmt.Errorf("failed to look up account: %w", err)
			}
			if account == nil {
				return authz.Result{}, nil
			}
			return s.authz.AssignRole(ctx, account.ID, listID, models.RoleCollaborator)
		},
	))
}

// Kick removes a collaborator from the list. Owner only.
func (s *ListService) Kick(ctx context.Context, requesterID, targetID, listID string) (authz.Result, error) {
	return observe("list.kick")(s.authz.KickCollaborator(ctx, requesterID, targetID, listID))
}

// Leave removes the requesting collaborator from the list
func (s *ListService) Leave(ctx context.Context, requesterID, listID string) (authz.Result, error) {
	return observe("list.leave")(s.authz.Leave(ctx, requesterID, requesterID, listID))
}
