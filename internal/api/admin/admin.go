// Package admin implements the administrator routes. They sit behind the gate's admin
// visibility, so the handlers never check the caller themselves.
package admin

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sharedlists/sharedlists/internal/api/respond"
	"github.com/sharedlists/sharedlists/internal/authz"
	"github.com/sharedlists/sharedlists/internal/db/models"
	"github.com/sharedlists/sharedlists/internal/db/repositories"
)

// AccountAdmin is the account behaviour the admin routes need
type AccountAdmin interface {
	ListAccounts(ctx context.Context, limit, offset int) ([]*models.Account, int, error)
	AdminDeleteAccount(ctx context.Context, targetID string) (authz.Result, error)
	SweepKeys(ctx context.Context) (int64, error)
}

// AuditReader reads the audit trail
type AuditReader interface {
	ListAuditLogs(ctx context.Context, filters repositories.AuditFilters, limit, offset int) ([]*models.AuditLog, int, error)
	GetAuditLog(ctx context.Context, logID string) (*models.AuditLog, error)
}

// Handlers serves the admin routes
type Handlers struct {
	accounts AccountAdmin
	audit    AuditReader
}

// NewHandlers creates admin handlers
func NewHandlers(accounts AccountAdmin, audit AuditReader) *Handlers {
	return &Handlers{accounts: accounts, audit: audit}
}

// pagination reads page and per_page, falling back to 1 and 20
func pagination(c *gin.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}

// @Summary      List accounts
// @Description  Paginated list of every registered account.
// @Tags         Admin
// @Security     AdminKey
// @Produce      json
// @Param        page      query  int  false  "Page number (default 1)"
// @Param        per_page  query  int  false  "Items per page, max 100 (default 20)"
// @Success      200  {object}  map[string]interface{}  "accounts: []models.Account, pagination: map"
// @Failure      401  {object}  apierror.Rejection
// @Router       /api/v1/admin/accounts [get]
func (h *Handlers) ListAccountsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, perPage := pagination(c)

		accounts, total, err := h.accounts.ListAccounts(c.Request.Context(), perPage, (page-1)*perPage)
		if err != nil {
			respond.Error(c, err)
			return
		}
		if accounts == nil {
			accounts = []*models.Account{}
		}

		c.JSON(http.StatusOK, gin.H{
			"accounts": accounts,
			"pagination": gin.H{
				"page":     page,
				"per_page": perPage,
				"total":    total,
			},
		})
	}
}

// @Summary      Delete account
// @Description  Deletes any account with its keys, memberships and owned lists.
// @Tags         Admin
// @Security     AdminKey
// @Produce      json
// @Param        account_id  path  string  true  "Account ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}  "Account not found"
// @Router       /api/v1/admin/accounts/{account_id} [delete]
func (h *Handlers) DeleteAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := h.accounts.AdminDeleteAccount(c.Request.Context(), c.Param("account_id"))
		if !respond.Mutation(c, "account", res, err) {
			return
		}
		c.JSON(http.StatusOK, gin.H{"records_affected": res.RecordsAffected})
	}
}

// @Summary      Sweep expired API keys
// @Description  Deletes every API key past its expiry.
// @Tags         Admin
// @Security     AdminKey
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "deleted: int"
// @Router       /api/v1/admin/apikeys/expired [delete]
func (h *Handlers) SweepExpiredKeysHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := h.accounts.SweepKeys(c.Request.Context())
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": n})
	}
}

// @Summary      List audit logs
// @Description  Paginated audit trail, newest first.
// @Tags         Admin
// @Security     AdminKey
// @Produce      json
// @Param        account_id     query  string  false  "Filter by account"
// @Param        action         query  string  false  "Filter by action, e.g. list.created"
// @Param        resource_type  query  string  false  "Filter by resource type"
// @Param        start_date     query  string  false  "RFC 3339 lower bound"
// @Param        end_date       query  string  false  "RFC 3339 upper bound"
// @Param        page           query  int     false  "Page number (default 1)"
// @Param        per_page       query  int     false  "Items per page, max 100 (default 20)"
// @Success      200  {object}  map[string]interface{}  "logs: []models.AuditLog, pagination: map"
// @Failure      400  {object}  map[string]interface{}  "Invalid date"
// @Router       /api/v1/admin/audit-logs [get]
func (h *Handlers) ListAuditLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filters, err := auditFilters(c)
		if err != nil {
			respond.BadRequest(c, err)
			return
		}
		page, perPage := pagination(c)

		logs, total, err := h.audit.ListAuditLogs(c.Request.Context(), filters, perPage, (page-1)*perPage)
		if err != nil {
			respond.Error(c, err)
			return
		}
		if logs == nil {
			logs = []*models.AuditLog{}
		}

		c.JSON(http.StatusOK, gin.H{
			"logs": logs,
			"pagination": gin.H{
				"page":     page,
				"per_page": perPage,
				"total":    total,
			},
		})
	}
}

// GetAuditLogHandler returns one audit entry
// GET /api/v1/admin/audit-logs/:id
func (h *Handlers) GetAuditLogHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		log, err := h.audit.GetAuditLog(c.Request.Context(), c.Param("id"))
		if err != nil {
			respond.Error(c, err)
			return
		}
		if log == nil {
			respond.NotFound(c, "audit log")
			return
		}
		c.JSON(http.StatusOK, log)
	}
}

func auditFilters(c *gin.Context) (repositories.AuditFilters, error) {
	var f repositories.AuditFilters
	if v := c.Query("account_id"); v != "" {
		f.AccountID = &v
	}
	if v := c.Query("action"); v != "" {
		f.Action = &v
	}
	if v := c.Query("resource_type"); v != "" {
		f.ResourceType = &v
	}
	for _, d := range []struct {
		param string
		dst   **time.Time
	}{
		{"start_date", &f.StartDate},
		{"end_date", &f.EndDate},
	} {
		v := c.Query(d.param)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("%s must be RFC 3339: %w", d.param, err)
		}
		*d.dst = &t
	}
	return f, nil
}
