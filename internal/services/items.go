package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sharedlists/sharedlists/internal/authz"
	"github.com/sharedlists/sharedlists/internal/config"
	"github.com/sharedlists/sharedlists/internal/db/models"
)

// ItemStore is the item persistence used by ItemService
type ItemStore interface {
	CreateItem(ctx context.Context, item *models.Item) error
	GetItem(ctx context.Context, listID, itemID string) (*models.Item, error)
	ListItems(ctx context.Context, listID string) ([]*models.Item, error)
	CountItems(ctx context.Context, listID string) (int, error)
	UpdateItem(ctx context.Context, item *models.Item) (bool, error)
	DeleteItem(ctx context.Context, listID, itemID string) (bool, error)
}

// ListToucher bumps a list's updated_at after its items change
type ListToucher interface {
	TouchList(ctx context.Context, listID string) error
}

// ItemInput is a new item
type ItemInput struct {
	Name     string `json:"name" binding:"required"`
	Quantity int    `json:"quantity"`
}

// ItemPatch holds the fields to change on an item; nil means unchanged
type ItemPatch struct {
	Name     *string `json:"name"`
	Quantity *int    `json:"quantity"`
	Checked  *bool   `json:"checked"`
}

// ItemService manages the items on a list. Owners and collaborators have the same
// rights over items.
type ItemService struct {
	items  ItemStore
	lists  ListToucher
	authz  *authz.MembershipAuthorizer
	limits config.LimitsConfig
}

// NewItemService creates an ItemService
func NewItemService(items ItemStore, lists ListToucher, a *authz.MembershipAuthorizer, limits config.LimitsConfig) *ItemService {
	return &ItemService{items: items, lists: lists, authz: a, limits: limits}
}

func (s *ItemService) member(accountID, listID string) authz.Check {
	return authz.RequireRole(s.authz, accountID, listID)
}

// Add puts a new item on the list. A full list gets LimitReached.
func (s *ItemService) Add(ctx context.Context, accountID, listID string, in ItemInput) (*models.Item, authz.Result, error) {
	name, err := cleanName(in.Name)
	if err != nil {
		return nil, authz.Result{}, err
	}
	qty := in.Quantity
	if qty == 0 {
		qty = 1
	}
	if qty < 1 {
		return nil, authz.Result{}, invalid("quantity", "must be positive")
	}

	item := &models.Item{ListID: listID, Name: name, Quantity: qty}
	res, err := observe("item.add")(authz.Guard(ctx, s.member(accountID, listID), func(ctx context.Context) (authz.Result, error) {
		n, err := s.items.CountItems(ctx, listID)
		if err != nil {
			return authz.Result{}, fmt.Errorf("failed to count items: %w", err)
		}
		if n >= s.limits.MaxItemsPerList {
			return authz.Result{TargetExists: true, LimitReached: true}, nil
		}
		if err := s.items.CreateItem(ctx, item); err != nil {
			return authz.Result{TargetExists: true}, err
		}
		s.touch(ctx, listID)
		return authz.Result{Success: true, TargetExists: true, RecordsAffected: 1}, nil
	}))
	if err != nil || !res.Success {
		return nil, res, err
	}
	return item, res, nil
}

// Update applies patch to an item on the list
func (s *ItemService) Update(ctx context.Context, accountID, listID, itemID string, patch ItemPatch) (*models.Item, authz.Result, error) {
	if patch.Name != nil {
		name, err := cleanName(*patch.Name)
		if err != nil {
			return nil, authz.Result{}, err
		}
		patch.Name = &name
	}
	if patch.Quantity != nil && *patch.Quantity < 1 {
		return nil, authz.Result{}, invalid("quantity", "must be positive")
	}

	var updated *models.Item
	res, err := observe("item.update")(authz.Guard(ctx, s.member(accountID, listID), func(ctx context.Context) (authz.Result, error) {
		item, err := s.items.GetItem(ctx, listID, itemID)
		if err != nil {
			return authz.Result{}, fmt.Errorf("failed to get item: %w", err)
		}
		if item == nil {
			return authz.Result{}, nil
		}
		if patch.Name != nil {
			item.Name = *patch.Name
		}
		if patch.Quantity != nil {
			item.Quantity = *patch.Quantity
		}
		if patch.Checked != nil {
			item.Checked = *patch.Checked
		}
		ok, err := s.items.UpdateItem(ctx, item)
		if err != nil {
			return authz.Result{TargetExists: true}, err
		}
		if !ok {
			return authz.Result{}, nil
		}
		s.touch(ctx, listID)
		updated = item
		return authz.Result{Success: true, TargetExists: true, RecordsAffected: 1}, nil
	}))
	return updated, res, err
}

// Delete removes an item from the list
func (s *ItemService) Delete(ctx context.Context, accountID, listID, itemID string) (authz.Result, error) {
	return observe("item.delete")(authz.Guard(ctx, s.member(accountID, listID), func(ctx context.Context) (authz.Result, error) {
		ok, err := s.items.DeleteItem(ctx, listID, itemID)
		if err != nil {
			return authz.Result{TargetExists: true}, err
		}
		if ok {
			s.touch(ctx, listID)
		}
		return authz.Result{Success: ok, TargetExists: ok, RecordsAffected: boolCount(ok)}, nil
	}))
}

// List returns the items on the list
func (s *ItemService) List(ctx context.Context, accountID, listID string) ([]*models.Item, authz.Decision, error) {
	return authz.GuardRead(ctx, s.member(accountID, listID), func(ctx context.Context) ([]*models.Item, error) {
		return s.items.ListItems(ctx, listID)
	})
}

// touch is best effort; a stale updated_at does not fail the item change
func (s *ItemService) touch(ctx context.Context, listID string) {
	if err := s.lists.TouchList(ctx, listID); err != nil {
		slog.Warn("failed to update list timestamp", "list_id", listID, "error", err)
	}
}
