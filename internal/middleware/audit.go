// audit.go provides Gin middleware that records authenticated write operations to the
// audit_logs table. Writes happen after the response, off the request goroutine.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sharedlists/sharedlists/internal/config"
	"github.com/sharedlists/sharedlists/internal/db/models"
	"github.com/sharedlists/sharedlists/internal/safego"
)

// AuditWriter persists audit entries
type AuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// auditResources maps a route template to the resource it changes and the path
// parameter holding that resource's id. More specific templates come first.
var auditResources = []struct {
	segment string
	kind    string
	param   string
}{
	{"/leave", "membership", "list_id"},
	{"/items", "item", "item_id"},
	{"/members", "membership", "account_id"},
	{"/apikeys", "api_key", "key_id"},
	{"/keys", "api_key", "key_id"},
	{"/lists", "list", "list_id"},
	{"/accounts", "account", "account_id"},
	{"/account", "account", ""},
}

var auditVerbs = map[string]string{
	http.MethodPost:   "created",
	http.MethodPut:    "updated",
	http.MethodPatch:  "updated",
	http.MethodDelete: "deleted",
}

// AuditMiddleware records mutations once their handler has answered. Reads are never
// recorded; failed mutations only when cfg.LogFailedRequests is set.
func AuditMiddleware(writer AuditWriter, cfg config.AuditConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if !cfg.Enabled || writer == nil {
			return
		}
		verb, isWrite := auditVerbs[c.Request.Method]
		if !isWrite {
			return
		}
		status := c.Writer.Status()
		if status >= 400 && !cfg.LogFailedRequests {
			return
		}

		entry := buildAuditLog(c, verb, status)
		safego.Go("audit", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := writer.CreateAuditLog(ctx, entry); err != nil {
				slog.Error("failed to write audit log", "action", entry.Action, "error", err)
			}
		})
	}
}

// buildAuditLog reads everything it needs from c up front; the gin.Context is reused
// once the handler chain returns.
func buildAuditLog(c *gin.Context, verb string, status int) *models.AuditLog {
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	ip := c.ClientIP()

	entry := &models.AuditLog{
		Action:    c.Request.Method + " " + route,
		IPAddress: &ip,
		CreatedAt: time.Now(),
		Metadata:  map[string]interface{}{"status_code": status},
	}
	if id := AccountID(c); id != "" {
		entry.AccountID = &id
	}
	if method := c.GetString(AuthMethodKey); method != "" {
		entry.Metadata["auth_method"] = method
	}
	if reqID := c.GetString(RequestIDKey); reqID != "" {
		entry.Metadata["request_id"] = reqID
	}

	for _, r := range auditResources {
		if !strings.Contains(route, r.segment) {
			continue
		}
		kind := r.kind
		entry.ResourceType = &kind
		entry.Action = kind + "." + verb
		if r.param != "" {
			if id := c.Param(r.param); id != "" {
				entry.ResourceID = &id
			}
		}
		break
	}
	return entry
}
