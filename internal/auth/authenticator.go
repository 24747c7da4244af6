package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/sharedlists/sharedlists/internal/apierror"
	"github.com/sharedlists/sharedlists/internal/db/models"
)

// AccountFinder looks up accounts by id. A missing account is (nil, nil).
type AccountFinder interface {
	GetAccountByID(ctx context.Context, accountID string) (*models.Account, error)
}

// KeyFinder looks up a key by its owner and digest. A missing key is (nil, nil).
type KeyFinder interface {
	GetAPIKeyByAccountAndHash(ctx context.Context, accountID, keyHash string) (*models.APIKey, error)
}

// AuthResult is the outcome of one authentication attempt. Checks run in order and stop
// at the first failure; fields for checks that never ran stay false.
type AuthResult struct {
	AccountExists   bool
	KeyExists       bool
	KeyIsValid      bool
	KeyIsExpired    bool
	IsAuthenticated bool

	// Set only when IsAuthenticated
	AccountID string
	KeyID     string
}

// Reason returns the rejection reason for a failed result. ok is false when the
// result is authenticated and there is nothing to reject.
func (r AuthResult) Reason() (reason apierror.Reason, ok bool) {
	switch {
	case r.IsAuthenticated:
		return 0, false
	case !r.AccountExists:
		return apierror.AccountNotFound, true
	case !r.KeyExists, !r.KeyIsValid:
		return apierror.KeyInvalid, true
	default:
		return apierror.KeyExpired, true
	}
}

// Authenticator verifies an (account id, presented key) pair against the store
type Authenticator struct {
	accounts AccountFinder
	keys     KeyFinder
	now      func() time.Time
}

// NewAuthenticator creates an Authenticator using the wall clock
func NewAuthenticator(accounts AccountFinder, keys KeyFinder) *Authenticator {
	return &Authenticator{accounts: accounts, keys: keys, now: time.Now}
}

// WithClock returns a copy of a that reads time from now
func (a *Authenticator) WithClock(now func() time.Time) *Authenticator {
	cp := *a
	cp.now = now
	return &cp
}

// Authenticate checks, in order: the account exists (and has not itself expired), a key
// with this exact value belongs to the account, the key is valid, and the key has not
// expired. It never writes. Store failures are returned as errors, never as a result.
func (a *Authenticator) Authenticate(ctx context.Context, accountID, presentedKey string) (AuthResult, error) {
	var res AuthResult
	now := a.now()

	account, err := a.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return AuthResult{}, fmt.Errorf("failed to look up account: %w", err)
	}
	if account == nil || (account.ExpiresAt != nil && !account.ExpiresAt.After(now)) {
		return res, nil
	}
	res.AccountExists = true

	key, err := a.keys.GetAPIKeyByAccountAndHash(ctx, accountID, HashAPIKey(presentedKey))
	if err != nil {
		return AuthResult{}, fmt.Errorf("failed to look up api key: %w", err)
	}
	if key == nil {
		return res, nil
	}
	res.KeyExists = true

	if !key.IsValid {
		return res, nil
	}
	res.KeyIsValid = true

	if key.IsExpired(now) {
		res.KeyIsExpired = true
		return res, nil
	}

	res.IsAuthenticated = true
	res.AccountID = account.ID
	res.KeyID = key.ID
	return res, nil
}
