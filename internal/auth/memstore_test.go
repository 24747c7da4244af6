package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sharedlists/sharedlists/internal/db/models"
)

var errStore = errors.New("store unavailable")

// memStore mirrors the SQL semantics of the account and api key repositories
type memStore struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	keys     map[string]*models.APIKey
	fail     bool
}

func newMemStore(accountIDs ...string) *memStore {
	s := &memStore{accounts: map[string]*models.Account{}, keys: map[string]*models.APIKey{}}
	for _, id := range accountIDs {
		s.accounts[id] = &models.Account{ID: id, Email: id + "@example.com"}
	}
	return s
}

func (s *memStore) GetAccountByID(_ context.Context, id string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errStore
	}
	a, ok := s.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (s *memStore) GetAPIKeyByAccountAndHash(_ context.Context, accountID, hash string) (*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errStore
	}
	for _, k := range s.keys {
		if k.AccountID == accountID && k.KeyHash == hash {
			cp := *k
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) CreateAPIKey(_ context.Context, k *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errStore
	}
	for _, existing := range s.keys {
		if existing.KeyHash == k.KeyHash {
			return errors.New("duplicate key_hash")
		}
	}
	if k.ID == "" {
		k.ID = uuid.New().String()
	}
	cp := *k
	s.keys[k.ID] = &cp
	return nil
}

func (s *memStore) ListAPIKeysByAccount(_ context.Context, accountID string) ([]*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.APIKey{}
	for _, k := range s.keys {
		if k.AccountID == accountID {
			cp := *k
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) InvalidateAPIKey(_ context.Context, accountID, keyID string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return false, errStore
	}
	k, ok := s.keys[keyID]
	if !ok || k.AccountID != accountID {
		return false, nil
	}
	if k.IsValid && k.ExpiresAt.After(now) {
		k.ExpiresAt = now
	}
	k.IsValid = false
	return true, nil
}

func (s *memStore) InvalidateAllAPIKeys(_ context.Context, accountID string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, k := range s.keys {
		if k.AccountID == accountID && k.IsValid {
			if k.ExpiresAt.After(now) {
				k.ExpiresAt = now
			}
			k.IsValid = false
			n++
		}
	}
	return n, nil
}

func (s *memStore) DeleteExpiredAPIKeys(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, k := range s.keys {
		if !k.IsValid || !k.ExpiresAt.After(now) {
			delete(s.keys, id)
			n++
		}
	}
	return n, nil
}

// fakeClock is a settable time source
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
