// membership_repository.go implements MembershipRepository, providing database queries for
// list memberships: role lookup, insertion, removal, and member listings joined with accounts.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sharedlists/sharedlists/internal/db/models"
)

// MembershipRepository handles list membership database operations
type MembershipRepository struct {
	db *sqlx.DB
}

// NewMembershipRepository creates a new MembershipRepository
func NewMembershipRepository(db *sqlx.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// GetMembership returns the membership of accountID on listID, or nil if there is none
func (r *MembershipRepository) GetMembership(ctx context.Context, accountID, listID string) (*models.Membership, error) {
	query := `SELECT list_id, account_id, role_id, created_at
			  FROM list_memberships WHERE list_id = $1 AND account_id = $2`

	var m models.Membership
	err := r.db.GetContext(ctx, &m, query, listID, accountID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return &m, nil
}

// CreateMembership inserts a membership. An existing (list, account) pair or a second
// owner on the same list surfaces as a unique violation.
func (r *MembershipRepository) CreateMembership(ctx context.Context, m *models.Membership) error {
	if !m.Role.Valid() {
		return fmt.Errorf("invalid role: %d", m.Role.Index())
	}
	m.CreatedAt = time.Now()

	query := `INSERT INTO list_memberships (list_id, account_id, role_id, created_at)
			  VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, query, m.ListID, m.AccountID, m.Role.Index(), m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create membership: %w", err)
	}
	return nil
}

// DeleteMembership removes a membership and reports whether one existed
func (r *MembershipRepository) DeleteMembership(ctx context.Context, accountID, listID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM list_memberships WHERE list_id = $1 AND account_id = $2`,
		listID, accountID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete membership: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListMembers returns every member of a list with account details, owner first
func (r *MembershipRepository) ListMembers(ctx context.Context, listID string) ([]*models.MembershipWithAccount, error) {
	query := `SELECT m.list_id, m.account_id, m.role_id, m.created_at,
			         a.first_name, a.last_name, a.email
			  FROM list_memberships m
			  JOIN accounts a ON a.id = m.account_id
			  WHERE m.list_id = $1
			  ORDER BY m.role_id, m.created_at`

	members := make([]*models.MembershipWithAccount, 0)
	if err := r.db.SelectContext(ctx, &members, query, listID); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}
