// item_repository.go implements ItemRepository, providing database queries for the items on a list.
// Every query is scoped by list_id so an item can only be reached through its own list.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sharedlists/sharedlists/internal/db/models"
)

// ItemRepository handles item database operations
type ItemRepository struct {
	db *sqlx.DB
}

// NewItemRepository creates a new ItemRepository
func NewItemRepository(db *sqlx.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// CreateItem inserts a new item
func (r *ItemRepository) CreateItem(ctx context.Context, item *models.Item) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now

	query := `INSERT INTO items (id, list_id, name, quantity, checked, created_at, updated_at)
			  VALUES (:id, :list_id, :name, :quantity, :checked, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

// GetItem retrieves one item of a list
func (r *ItemRepository) GetItem(ctx context.Context, listID, itemID string) (*models.Item, error) {
	var item models.Item
	err := r.db.GetContext(ctx, &item,
		`SELECT id, list_id, name, quantity, checked, created_at, updated_at
		 FROM items WHERE id = $1 AND list_id = $2`,
		itemID, listID,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return &item, nil
}

// ListItems returns every item of a list, unchecked first
func (r *ItemRepository) ListItems(ctx context.Context, listID string) ([]*models.Item, error) {
	items := make([]*models.Item, 0)
	err := r.db.SelectContext(ctx, &items,
		`SELECT id, list_id, name, quantity, checked, created_at, updated_at
		 FROM items WHERE list_id = $1 ORDER BY checked, created_at`,
		listID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

// CountItems returns the number of items on a list
func (r *ItemRepository) CountItems(ctx context.Context, listID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM items WHERE list_id = $1`, listID); err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return n, nil
}

// UpdateItem writes name, quantity and checked, and reports whether the item existed on the list
func (r *ItemRepository) UpdateItem(ctx context.Context, item *models.Item) (bool, error) {
	item.UpdatedAt = time.Now()
	result, err := r.db.NamedExecContext(ctx,
		`UPDATE items SET name = :name, quantity = :quantity, checked = :checked, updated_at = :updated_at
		 WHERE id = :id AND list_id = :list_id`,
		item,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteItem removes one item of a list and reports whether it existed
func (r *ItemRepository) DeleteItem(ctx context.Context, listID, itemID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1 AND list_id = $2`, itemID, listID)
	if err != nil {
		return false, fmt.Errorf("failed to delete item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
