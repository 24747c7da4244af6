// Package repositories implements the data access layer for the shared lists service.
// Each repository type encapsulates all database queries for one entity.
// Handlers never issue SQL directly; all database access goes through this layer.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sharedlists/sharedlists/internal/db/models"
)

// AccountRepository handles account database operations
type AccountRepository struct {
	db *sql.DB
}

// NewAccountRepository creates a new AccountRepository
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, first_name, last_name, email, password_hash, created_at, expires_at`

// CreateAccount inserts a new account. A duplicate email surfaces as a unique violation.
func (r *AccountRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	account.CreatedAt = time.Now()

	query := `
		INSERT INTO accounts (id, first_name, last_name, email, password_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		account.ID,
		account.FirstName,
		account.LastName,
		account.Email,
		account.PasswordHash,
		account.CreatedAt,
		account.ExpiresAt,
	)
	return err
}

// GetAccountByID retrieves an account by ID
func (r *AccountRepository) GetAccountByID(ctx context.Context, accountID string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, accountID))
}

// GetAccountByEmail retrieves an account by email, case-insensitively
func (r *AccountRepository) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(email) = LOWER($1)`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

func (r *AccountRepository) scanOne(row *sql.Row) (*models.Account, error) {
	account := &models.Account{}
	err := row.Scan(
		&account.ID,
		&account.FirstName,
		&account.LastName,
		&account.Email,
		&account.PasswordHash,
		&account.CreatedAt,
		&account.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

// ListAccounts returns a page of accounts and the total count
func (r *AccountRepository) ListAccounts(ctx context.Context, limit, offset int) ([]*models.Account, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count accounts: %w", err)
	}

	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]*models.Account, 0)
	for rows.Next() {
		a := &models.Account{}
		if err := rows.Scan(&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.PasswordHash, &a.CreatedAt, &a.ExpiresAt); err != nil {
			return nil, 0, err
		}
		accounts = append(accounts, a)
	}
	return accounts, total, rows.Err()
}

// DeleteAccountCascade removes an account together with every list it owns, the
// items and memberships of those lists, its remaining memberships and its API keys.
// found is false when no account row matched; nothing is deleted in that case.
func (r *AccountRepository) DeleteAccountCascade(ctx context.Context, accountID string) (affected int64, found bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	rows, err := tx.QueryContext(ctx,
		`SELECT list_id FROM list_memberships WHERE account_id = $1 AND role_id = $2`,
		accountID, models.RoleOwner.Index(),
	)
	if err != nil {
		return 0, false, fmt.Errorf("failed to find owned lists: %w", err)
	}
	var owned []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, false, err
		}
		owned = append(owned, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, false, err
	}

	steps := []struct {
		what  string
		query string
		args  []interface{}
	}{
		{"items", `DELETE FROM items WHERE list_id = ANY($1)`, []interface{}{pq.Array(owned)}},
		{"memberships", `DELETE FROM list_memberships WHERE list_id = ANY($1) OR account_id = $2`, []interface{}{pq.Array(owned), accountID}},
		{"lists", `DELETE FROM lists WHERE id = ANY($1)`, []interface{}{pq.Array(owned)}},
		{"api keys", `DELETE FROM api_keys WHERE account_id = $1`, []interface{}{accountID}},
	}
	for _, s := range steps {
		res, err := tx.ExecContext(ctx, s.query, s.args...)
		if err != nil {
			return 0, false, fmt.Errorf("failed to delete %s: %w", s.what, err)
		}
		n, _ := res.RowsAffected()
		affected += n
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, accountID)
	if err != nil {
		return 0, false, fmt.Errorf("failed to delete account: %w", err)
	}
	n, _ := res.RowsAffected()
	if n != 1 {
		return 0, false, nil
	}
	affected += n

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("failed to commit account deletion: %w", err)
	}
	return affected, true, nil
}
