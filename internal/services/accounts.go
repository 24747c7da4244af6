package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/sharedlists/sharedlists/internal/auth"
	"github.com/sharedlists/sharedlists/internal/authz"
	"github.com/sharedlists/sharedlists/internal/db/models"
	"github.com/sharedlists/sharedlists/internal/db/repositories"
)

const minPasswordLength = 8

// AccountStore is the account persistence used by AccountService
type AccountStore interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccountByID(ctx context.Context, accountID string) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	ListAccounts(ctx context.Context, limit, offset int) ([]*models.Account, int, error)
	DeleteAccountCascade(ctx context.Context, accountID string) (int64, bool, error)
}

// AccountService handles registration, login and key management for accounts
type AccountService struct {
	accounts AccountStore
	keys     *auth.KeyManager
}

// NewAccountService creates an AccountService
func NewAccountService(accounts AccountStore, keys *auth.KeyManager) *AccountService {
	return &AccountService{accounts: accounts, keys: keys}
}

// RegisterInput is the data needed to create an account
type RegisterInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
}

// Register creates an account. An email already in use, including one registered
// concurrently, yields ErrEmailTaken.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.Account, error) {
	email := strings.TrimSpace(in.Email)
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return nil, invalid("email", "is not a valid address")
	}
	if len(in.Password) < minPasswordLength {
		return nil, invalid("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}

	existing, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	account := &models.Account{
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		if repositories.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	slog.Info("account registered", "account_id", account.ID)
	return account, nil
}

// Login checks email and password and issues a new API key. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, email, password string) (*auth.IssuedKey, error) {
	account, err := s.accounts.GetAccountByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}
	if account == nil {
		return nil, ErrInvalidCredentials
	}
	ok, err := auth.CheckPassword(account.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return s.keys.Create(ctx, account.ID)
}

// IssueKey creates an additional key for an authenticated account
func (s *AccountService) IssueKey(ctx context.Context, accountID string) (*auth.IssuedKey, error) {
	return s.keys.Create(ctx, accountID)
}

// ListKeys returns the account's keys
func (s *AccountService) ListKeys(ctx context.Context, accountID string) ([]*models.APIKey, error) {
	return s.keys.List(ctx, accountID)
}

// RevokeKey invalidates one of the requester's own keys. Logout is RevokeKey applied to
// the key the request was authenticated with.
func (s *AccountService) RevokeKey(ctx context.Context, accountID, keyID string) (authz.Result, error) {
	return observe("account.revoke_key")(authz.Guard(ctx, authz.Always, func(ctx context.Context) (authz.Result, error) {
		ok, err := s.keys.Invalidate(ctx, accountID, keyID)
		if err != nil {
			return authz.Result{}, err
		}
		return authz.Result{Success: ok, TargetExists: ok, RecordsAffected: boolCount(ok)}, nil
	}))
}

// LogoutAll invalidates every key of the account
func (s *AccountService) LogoutAll(ctx context.Context, accountID string) (authz.Result, error) {
	return observe("account.logout_all")(authz.Guard(ctx, authz.Always, func(ctx context.Context) (authz.Result, error) {
		n, err := s.keys.InvalidateAll(ctx, accountID)
		if err != nil {
			return authz.Result{}, err
		}
		return authz.Result{Success: true, TargetExists: true, RecordsAffected: n}, nil
	}))
}

// GetProfile returns the account, or nil if it no longer exists
func (s *AccountService) GetProfile(ctx context.Context, accountID string) (*models.Account, error) {
	return s.accounts.GetAccountByID(ctx, accountID)
}

// DeleteAccount deletes the requester's own account with everything it owns
func (s *AccountService) DeleteAccount(ctx context.Context, requesterID, targetID string) (authz.Result, error) {
	return observe("account.delete")(authz.Guard(ctx, authz.SameAccount(requesterID, targetID), s.deleteCascade(targetID)))
}

// AdminDeleteAccount deletes any account. Reached only through admin routes.
func (s *AccountService) AdminDeleteAccount(ctx context.Context, targetID string) (authz.Result, error) {
	return observe("admin.delete_account")(authz.Guard(ctx, authz.Always, s.deleteCascade(targetID)))
}

func (s *AccountService) deleteCascade(accountID string) authz.Mutation {
	return func(ctx context.Context) (authz.Result, error) {
		n, found, err := s.accounts.DeleteAccountCascade(ctx, accountID)
		if err != nil {
			return authz.Result{TargetExists: true}, err
		}
		if !found {
			return authz.Result{}, nil
		}
		slog.Info("account deleted", "account_id", accountID, "records_affected", n)
		return authz.Result{Success: true, TargetExists: true, RecordsAffected: n}, nil
	}
}

// ListAccounts returns a page of accounts for administrators
func (s *AccountService) ListAccounts(ctx context.Context, limit, offset int) ([]*models.Account, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.accounts.ListAccounts(ctx, limit, offset)
}

// SweepKeys deletes every invalid or expired key
func (s *AccountService) SweepKeys(ctx context.Context) (int64, error) {
	return s.keys.DeleteExpired(ctx)
}

func boolCount(ok bool) int64 {
	if ok {
		return 1
	}
	return 0
}
