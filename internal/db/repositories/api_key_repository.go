// api_key_repository.go implements APIKeyRepository, providing database queries for API key
// issuance, lookup by account and hash, invalidation, and batch removal of dead keys.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sharedlists/sharedlists/internal/db/models"
)

// APIKeyRepository handles API key database operations
type APIKeyRepository struct {
	db *sql.DB
}

// NewAPIKeyRepository creates a new APIKeyRepository
func NewAPIKeyRepository(db *sql.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// CreateAPIKey stores a new API key. CreatedAt, ExpiresAt and IsValid are taken from the model.
func (r *APIKeyRepository) CreateAPIKey(ctx context.Context, apiKey *models.APIKey) error {
	if apiKey.ID == "" {
		apiKey.ID = uuid.New().String()
	}

	query := `
		INSERT INTO api_keys (id, account_id, key_hash, key_prefix, created_at, expires_at, is_valid)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		apiKey.ID,
		apiKey.AccountID,
		apiKey.KeyHash,
		apiKey.KeyPrefix,
		apiKey.CreatedAt,
		apiKey.ExpiresAt,
		apiKey.IsValid,
	)
	return err
}

// GetAPIKeyByAccountAndHash retrieves the key matching both the account and the key hash.
// A hash that belongs to a different account is reported as not found.
func (r *APIKeyRepository) GetAPIKeyByAccountAndHash(ctx context.Context, accountID, keyHash string) (*models.APIKey, error) {
	query := `
		SELECT id, account_id, key_hash, key_prefix, created_at, expires_at, is_valid
		FROM api_keys
		WHERE account_id = $1 AND key_hash = $2
	`

	apiKey := &models.APIKey{}
	err := r.db.QueryRowContext(ctx, query, accountID, keyHash).Scan(
		&apiKey.ID,
		&apiKey.AccountID,
		&apiKey.KeyHash,
		&apiKey.KeyPrefix,
		&apiKey.CreatedAt,
		&apiKey.ExpiresAt,
		&apiKey.IsValid,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return apiKey, nil
}

// ListAPIKeysByAccount retrieves all API keys of an account, newest first
func (r *APIKeyRepository) ListAPIKeysByAccount(ctx context.Context, accountID string) ([]*models.APIKey, error) {
	query := `
		SELECT id, account_id, key_hash, key_prefix, created_at, expires_at, is_valid
		FROM api_keys
		WHERE account_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	apiKeys := make([]*models.APIKey, 0)
	for rows.Next() {
		apiKey := &models.APIKey{}
		err := rows.Scan(
			&apiKey.ID,
			&apiKey.AccountID,
			&apiKey.KeyHash,
			&apiKey.KeyPrefix,
			&apiKey.CreatedAt,
			&apiKey.ExpiresAt,
			&apiKey.IsValid,
		)
		if err != nil {
			return nil, err
		}
		apiKeys = append(apiKeys, apiKey)
	}

	return apiKeys, rows.Err()
}

// InvalidateAPIKey marks one key of the account invalid and pulls its expiration back to now.
// An already-invalid key keeps its expiration. Returns false when the account has no such key.
func (r *APIKeyRepository) InvalidateAPIKey(ctx context.Context, accountID, keyID string, now time.Time) (bool, error) {
	query := `
		UPDATE api_keys
		SET expires_at = CASE WHEN is_valid THEN LEAST(expires_at, $3) ELSE expires_at END,
		    is_valid = false
		WHERE id = $1 AND account_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, keyID, accountID, now)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// InvalidateAllAPIKeys invalidates every still-valid key of the account and returns how many changed
func (r *APIKeyRepository) InvalidateAllAPIKeys(ctx context.Context, accountID string, now time.Time) (int64, error) {
	query := `
		UPDATE api_keys
		SET expires_at = LEAST(expires_at, $2), is_valid = false
		WHERE account_id = $1 AND is_valid = true
	`

	result, err := r.db.ExecContext(ctx, query, accountID, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// DeleteExpiredAPIKeys removes every key that is invalid or whose expiration is at or before now
func (r *APIKeyRepository) DeleteExpiredAPIKeys(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM api_keys WHERE is_valid = false OR expires_at <= $1`,
		now,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
