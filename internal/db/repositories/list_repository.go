// list_repository.go implements ListRepository, providing database queries for shopping lists,
// including the transactional create-with-owner and the counted cascade delete.
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

// ListRepository handles list database operations
type ListRepository struct {
	db *sqlx.DB
}

// NewListRepository creates a new ListRepository
func NewListRepository(db *sqlx.DB) *ListRepository {
	return &ListRepository{db: db}
}

// CreateListWithOwner inserts the list and the owner's membership in one transaction
func (r *ListRepository) CreateListWithOwner(ctx context.Context, list *models.List, ownerID string) error {
	if list.ID == "" {
		list.ID = uuid.New().String()
	}
	now := time.Now()
	list.CreatedAt = now
	list.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO lists (id, name, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		list.ID, list.Name, list.CreatedAt, list.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create list: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO list_memberships (list_id, account_id, role_id, created_at) VALUES ($1, $2, $3, $4)`,
		list.ID, ownerID, models.RoleOwner.Index(), now,
	)
	if err != nil {
		return fmt.Errorf("failed to create owner membership: %w", err)
	}

	return tx.Commit()
}

// GetList retrieves a list by ID
func (r *ListRepository) GetList(ctx context.Context, listID string) (*models.List, error) {
	var l models.List
	err := r.db.GetContext(ctx, &l,
		`SELECT id, name, created_at, updated_at FROM lists WHERE id = $1`, listID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get list: %w", err)
	}
	return &l, nil
}

// ListListsForAccount returns every list the account is a member of, with its role
func (r *ListRepository) ListListsForAccount(ctx context.Context, accountID string) ([]*models.ListWithRole, error) {
	query := `SELECT l.id, l.name, l.created_at, l.updated_at, m.role_id
			  FROM lists l
			  JOIN list_memberships m ON m.list_id = l.id
			  WHERE m.account_id = $1
			  ORDER BY l.updated_at DESC`

	lists := make([]*models.ListWithRole, 0)
	if err := r.db.SelectContext(ctx, &lists, query, accountID); err != nil {
		return nil, fmt.Errorf("failed to list lists: %w", err)
	}
	return lists, nil
}

// CountOwnedLists returns how many lists the account owns
func (r *ListRepository) CountOwnedLists(ctx context.Context, accountID string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM list_memberships WHERE account_id = $1 AND role_id = $2`,
		accountID, models.RoleOwner.Index(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to count owned lists: %w", err)
	}
	return n, nil
}

// RenameList sets a new name and reports whether the list existed
func (r *ListRepository) RenameList(ctx context.Context, listID, name string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE lists SET name = $1, updated_at = $2 WHERE id = $3`,
		name, time.Now(), listID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to rename list: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteListCascade deletes the list's items, its memberships and the list row in one
// transaction. The items and memberships are counted first; if any delete removes a
// different number of rows than expected the transaction is rolled back and ok is false.
// affected is the total number of rows removed.
func (r *ListRepository) DeleteListCascade(ctx context.Context, listID string) (affected int64, ok bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	var itemCount, memberCount int64
	if err := tx.GetContext(ctx, &itemCount, `SELECT COUNT(*) FROM items WHERE list_id = $1`, listID); err != nil {
		return 0, false, fmt.Errorf("failed to count items: %w", err)
	}
	if err := tx.GetContext(ctx, &memberCount, `SELECT COUNT(*) FROM list_memberships WHERE list_id = $1`, listID); err != nil {
		return 0, false, fmt.Errorf("failed to count memberships: %w", err)
	}

	steps := []struct {
		what  string
		query string
		want  int64
	}{
		{"items", `DELETE FROM items WHERE list_id = $1`, itemCount},
		{"memberships", `DELETE FROM list_memberships WHERE list_id = $1`, memberCount},
		{"list", `DELETE FROM lists WHERE id = $1`, 1},
	}
	for _, s := range steps {
		result, err := tx.ExecContext(ctx, s.query, listID)
		if err != nil {
			return 0, false, fmt.Errorf("failed to delete %s: %w", s.what, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, false, err
		}
		if n != s.want {
			return 0, false, nil
		}
		affected += n
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("failed to commit list deletion: %w", err)
	}
	return affected, true, nil
}

// TouchList bumps updated_at, used when the list's items change
func (r *ListRepository) TouchList(ctx context.Context, listID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE lists SET updated_at = $1 WHERE id = $2`, time.Now(), listID)
	return err
}
