// Package middleware provides Gin HTTP middleware for request authentication, rate
// limiting, security headers, metrics and audit logging.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Recovery → Security → RequestID → Metrics → Logger → CORS → Gate → RateLimit → UUIDParams → Audit → Handler
//
// Security headers run first so they appear on all responses including rejections.
// The gate runs before the limiter so authenticated traffic is limited per account;
// requests the gate rejects are not counted, so credential guessing on the user and
// admin groups is not throttled here. The login and register routes carry their own
// stricter per-IP limiter. List-level authorization happens later, inside the
// services, once per mutation.
package middleware

import (
	"context"
	"crypto/subtle"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sharedlists/sharedlists/internal/apierror"
	"github.com/sharedlists/sharedlists/internal/auth"
	"github.com/sharedlists/sharedlists/internal/telemetry"
)

// Credential headers read by the gate
const (
	AccountIDHeader = "X-Account-ID"
	APIKeyHeader    = "X-API-Key"
	AdminKeyHeader  = "X-Admin-Key"
)

// gin.Context keys set for authenticated requests
const (
	AccountIDKey  = "account_id"
	APIKeyIDKey   = "api_key_id"
	AuthMethodKey = "auth_method"
)

// Visibility classifies a route for the gate. The zero value is VisibilityUser so a
// route that forgets to classify itself still requires credentials.
type Visibility int

const (
	VisibilityUser Visibility = iota
	VisibilityAdmin
	VisibilityPublic
)

func (v Visibility) String() string {
	switch v {
	case VisibilityAdmin:
		return "admin"
	case VisibilityPublic:
		return "public"
	default:
		return "user"
	}
}

// Authenticator verifies an account id and presented key
type Authenticator interface {
	Authenticate(ctx context.Context, accountID, presentedKey string) (auth.AuthResult, error)
}

// AdminSecretSource supplies the configured admin secret. ok is false when none is set.
type AdminSecretSource interface {
	AdminSecret() (secret string, ok bool)
}

// Gate decides whether a request may reach its handler
type Gate struct {
	authn   Authenticator
	secrets AdminSecretSource
}

// NewGate creates a Gate
func NewGate(authn Authenticator, secrets AdminSecretSource) *Gate {
	return &Gate{authn: authn, secrets: secrets}
}

// Require returns the handler enforcing v
func (g *Gate) Require(v Visibility) gin.HandlerFunc {
	switch v {
	case VisibilityPublic:
		return func(c *gin.Context) {
			allow(c, v)
		}
	case VisibilityAdmin:
		return g.requireAdmin
	default:
		return g.requireUser
	}
}

func (g *Gate) requireAdmin(c *gin.Context) {
	presented := c.GetHeader(AdminKeyHeader)
	if presented == "" {
		reject(c, VisibilityAdmin, apierror.KeyMissing)
		return
	}
	secret, ok := g.secrets.AdminSecret()
	if !ok {
		reject(c, VisibilityAdmin, apierror.ServiceUnavailable)
		return
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
		reject(c, VisibilityAdmin, apierror.WrongKey)
		return
	}
	c.Set(AuthMethodKey, "admin_key")
	allow(c, VisibilityAdmin)
}

func (g *Gate) requireUser(c *gin.Context) {
	accountID := c.GetHeader(AccountIDHeader)
	key := c.GetHeader(APIKeyHeader)
	if accountID == "" || key == "" {
		reject(c, VisibilityUser, apierror.CredentialsMissing)
		return
	}
	parsed, err := uuid.Parse(accountID)
	if err != nil {
		reject(c, VisibilityUser, apierror.WrongFormat)
		return
	}

	res, err := g.authn.Authenticate(c.Request.Context(), parsed.String(), key)
	if err != nil {
		telemetry.AuthGateDecisionsTotal.WithLabelValues(VisibilityUser.String(), "error").Inc()
		apierror.Internal(c, "authentication failed", err)
		return
	}
	if reason, rejected := res.Reason(); rejected {
		reject(c, VisibilityUser, reason)
		return
	}

	c.Set(AccountIDKey, res.AccountID)
	c.Set(APIKeyIDKey, res.KeyID)
	c.Set(AuthMethodKey, "api_key")
	allow(c, VisibilityUser)
}

func allow(c *gin.Context, v Visibility) {
	telemetry.AuthGateDecisionsTotal.WithLabelValues(v.String(), "allowed").Inc()
	c.Next()
}

func reject(c *gin.Context, v Visibility, r apierror.Reason) {
	telemetry.AuthGateDecisionsTotal.WithLabelValues(v.String(), r.String()).Inc()
	apierror.Abort(c, r)
}

// AccountID returns the authenticated account id, or "" on unauthenticated routes
func AccountID(c *gin.Context) string {
	return c.GetString(AccountIDKey)
}

// APIKeyID returns the id of the key the request was authenticated with
func APIKeyID(c *gin.Context) string {
	return c.GetString(APIKeyIDKey)
}
