package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sharedlists/sharedlists/internal/db/models"
	"github.com/sharedlists/sharedlists/internal/telemetry"
)

// DefaultKeyTTL is used when no TTL is configured
const DefaultKeyTTL = 6 * time.Hour

// KeyStore is the persistence the key manager needs
type KeyStore interface {
	CreateAPIKey(ctx context.Context, apiKey *models.APIKey) error
	ListAPIKeysByAccount(ctx context.Context, accountID string) ([]*models.APIKey, error)
	InvalidateAPIKey(ctx context.Context, accountID, keyID string, now time.Time) (bool, error)
	InvalidateAllAPIKeys(ctx context.Context, accountID string, now time.Time) (int64, error)
	DeleteExpiredAPIKeys(ctx context.Context, now time.Time) (int64, error)
}

// IssuedKey is a freshly created key. Key is the only time the plaintext is available.
type IssuedKey struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Key       string    `json:"key"`
	KeyPrefix string    `json:"key_prefix"`
	ExpiresAt time.Time `json:"expires_at"`
}

// KeyManager issues, invalidates and sweeps API keys. Every key it issues lives for the
// same configured TTL.
type KeyManager struct {
	store  KeyStore
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewKeyManager creates a KeyManager. A non-positive ttl falls back to DefaultKeyTTL.
func NewKeyManager(store KeyStore, prefix string, ttl time.Duration) *KeyManager {
	if ttl <= 0 {
		ttl = DefaultKeyTTL
	}
	return &KeyManager{store: store, prefix: prefix, ttl: ttl, now: time.Now}
}

// WithClock returns a copy of m that reads time from now
func (m *KeyManager) WithClock(now func() time.Time) *KeyManager {
	cp := *m
	cp.now = now
	return &cp
}

// TTL returns the lifetime given to new keys
func (m *KeyManager) TTL() time.Duration { return m.ttl }

// Create issues a new valid key for the account, expiring one TTL from now
func (m *KeyManager) Create(ctx context.Context, accountID string) (*IssuedKey, error) {
	key, hash, display, err := GenerateAPIKey(m.prefix)
	if err != nil {
		return nil, err
	}

	now := m.now()
	record := &models.APIKey{
		AccountID: accountID,
		KeyHash:   hash,
		KeyPrefix: display,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
		IsValid:   true,
	}
	if err := m.store.CreateAPIKey(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store api key: %w", err)
	}
	telemetry.APIKeysIssuedTotal.Inc()

	return &IssuedKey{
		ID:        record.ID,
		AccountID: accountID,
		Key:       key,
		KeyPrefix: display,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// List returns the account's keys without their plaintext
func (m *KeyManager) List(ctx context.Context, accountID string) ([]*models.APIKey, error) {
	return m.store.ListAPIKeysByAccount(ctx, accountID)
}

// Invalidate marks one of the account's keys invalid. Repeating it is harmless.
// false means the account owns no key with that id.
func (m *KeyManager) Invalidate(ctx context.Context, accountID, keyID string) (bool, error) {
	ok, err := m.store.InvalidateAPIKey(ctx, accountID, keyID, m.now())
	if err != nil {
		return false, fmt.Errorf("failed to invalidate api key: %w", err)
	}
	if ok {
		telemetry.APIKeysInvalidatedTotal.Inc()
	}
	return ok, nil
}

// InvalidateAll invalidates every valid key of the account. Zero is a successful result.
func (m *KeyManager) InvalidateAll(ctx context.Context, accountID string) (int64, error) {
	n, err := m.store.InvalidateAllAPIKeys(ctx, accountID, m.now())
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate api keys: %w", err)
	}
	telemetry.APIKeysInvalidatedTotal.Add(float64(n))
	return n, nil
}

// DeleteExpired removes every key that is invalid or past its expiration
func (m *KeyManager) DeleteExpired(ctx context.Context) (int64, error) {
	n, err := m.store.DeleteExpiredAPIKeys(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired api keys: %w", err)
	}
	telemetry.APIKeysSweptTotal.Add(float64(n))
	slog.Info("swept expired api keys", "deleted", n)
	return n, nil
}
