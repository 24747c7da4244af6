// Package accounts implements the HTTP handlers for registration, login and the
// authenticated account's own profile and API keys.
package accounts

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sharedlists/sharedlists/internal/api/respond"
	"github.com/sharedlists/sharedlists/internal/auth"
	"github.com/sharedlists/sharedlists/internal/authz"
	"github.com/sharedlists/sharedlists/internal/db/models"
	"github.com/sharedlists/sharedlists/internal/middleware"
	"github.com/sharedlists/sharedlists/internal/services"
)

// Service is the account behaviour the handlers need
type Service interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.Account, error)
	Login(ctx context.Context, email, password string) (*auth.IssuedKey, error)
	IssueKey(ctx context.Context, accountID string) (*auth.IssuedKey, error)
	ListKeys(ctx context.Context, accountID string) ([]*models.APIKey, error)
	RevokeKey(ctx context.Context, accountID, keyID string) (authz.Result, error)
	LogoutAll(ctx context.Context, accountID string) (authz.Result, error)
	GetProfile(ctx context.Context, accountID string) (*models.Account, error)
	DeleteAccount(ctx context.Context, requesterID, targetID string) (authz.Result, error)
}

// Handlers serves the account routes
type Handlers struct {
	svc Service
}

// NewHandlers creates account handlers
func NewHandlers(svc Service) *Handlers {
	return &Handlers{svc: svc}
}

// LoginRequest is the body of POST /api/v1/auth/login
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// @Summary      Register
// @Description  Creates an account. The email must not be registered yet.
// @Tags         Accounts
// @Accept       json
// @Produce      json
// @Param        body  body  services.RegisterInput  true  "New account"
// @Success      201  {object}  models.Account
// @Failure      400  {object}  map[string]interface{}  "Invalid email or password too short"
// @Failure      409  {object}  map[string]interface{}  "Email already registered"
// @Router       /api/v1/auth/register [post]
func (h *Handlers) Register(c *gin.Context) {
	var in services.RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.BadRequest(c, err)
		return
	}
	account, err := h.svc.Register(c.Request.Context(), in)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

// @Summary      Log in
// @Description  Exchanges email and password for a new API key. The key is shown only in this response.
// @Tags         Accounts
// @Accept       json
// @Produce      json
// @Param        body  body  LoginRequest  true  "Credentials"
// @Success      201  {object}  auth.IssuedKey
// @Failure      401  {object}  apierror.Rejection  "code 10: login failure"
// @Router       /api/v1/auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, err)
		return
	}
	issued, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, issued)
}

// Logout invalidates the key the request was authenticated with
// POST /api/v1/auth/logout
func (h *Handlers) Logout(c *gin.Context) {
	res, err := h.svc.RevokeKey(c.Request.Context(), middleware.AccountID(c), middleware.APIKeyID(c))
	if !respond.Mutation(c, "api key", res, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

// LogoutAll invalidates every key of the account, including the current one
// POST /api/v1/auth/logout-all
func (h *Handlers) LogoutAll(c *gin.Context) {
	res, err := h.svc.LogoutAll(c.Request.Context(), middleware.AccountID(c))
	if !respond.Mutation(c, "account", res, err) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"invalidated": res.RecordsAffected})
}

// Profile returns the authenticated account
// GET /api/v1/account
func (h *Handlers) Profile(c *gin.Context) {
	account, err := h.svc.GetProfile(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	if account == nil {
		respond.NotFound(c, "account")
		return
	}
	c.JSON(http.StatusOK, account)
}

// ListKeys returns the account's keys without their secret part
// GET /api/v1/account/keys
func (h *Handlers) ListKeys(c *gin.Context) {
	keys, err := h.svc.ListKeys(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	if keys == nil {
		keys = []*models.APIKey{}
	}
	c.JSON(http.StatusOK, gin.H{"api_keys": keys})
}

// IssueKey creates an additional key
// POST /api/v1/account/keys
func (h *Handlers) IssueKey(c *gin.Context) {
	issued, err := h.svc.IssueKey(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, issued)
}

// RevokeKey invalidates one of the account's keys
// DELETE /api/v1/account/keys/:key_id
func (h *Handlers) RevokeKey(c *gin.Context) {
	res, err := h.svc.RevokeKey(c.Request.Context(), middleware.AccountID(c), c.Param("key_id"))
	if !respond.Mutation(c, "api key", res, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteAccount deletes an account together with the lists it owns. Only the account
// itself may do this here; administrators use the admin route.
// DELETE /api/v1/accounts/:account_id
func (h *Handlers) DeleteAccount(c *gin.Context) {
	res, err := h.svc.DeleteAccount(c.Request.Context(), middleware.AccountID(c), c.Param("account_id"))
	if !respond.Mutation(c, "account", res, err) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"records_affected": res.RecordsAffected})
}
