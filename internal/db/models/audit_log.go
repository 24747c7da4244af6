// Package models - audit_log.go defines the AuditLog model for recording mutations,
// capturing actor, action, affected resource, client IP, and arbitrary metadata.
package models

import "time"

// AuditLog represents an audit log entry for tracking account actions
type AuditLog struct {
	ID           string                 `json:"id"`
	AccountID    *string                `json:"account_id,omitempty"`    // Nullable for admin actions
	Action       string                 `json:"action"`                  // "list.deleted", "POST /api/v1/auth/login"
	ResourceType *string                `json:"resource_type,omitempty"` // "list", "item", "membership", "account", "api_key"
	ResourceID   *string                `json:"resource_id,omitempty"`   // id of the affected resource
	Metadata     map[string]interface{} `json:"metadata,omitempty"`      // JSONB: additional context
	IPAddress    *string                `json:"ip_address,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}
