// Package models defines the database model types for the shared lists service.
// Each type corresponds to a database table and uses struct tags for both JSON serialization and sqlx row scanning.
// Models are pure data types; business logic belongs in the service layer, query logic belongs in the repositories layer.
package models

import "time"

// APIKey represents a time-limited, revocable key bound to one account
type APIKey struct {
	ID        string    `db:"id" json:"id"`
	AccountID string    `db:"account_id" json:"account_id"`
	KeyHash   string    `db:"key_hash" json:"-"`            // SHA-256 of the full key, unique
	KeyPrefix string    `db:"key_prefix" json:"key_prefix"` // First chars for display (e.g., "sl_Ab3dE9")
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	IsValid   bool      `db:"is_valid" json:"is_valid"`
}

// IsExpired reports whether the key's expiration is at or before now
func (k *APIKey) IsExpired(now time.Time) bool {
	return !k.ExpiresAt.After(now)
}
