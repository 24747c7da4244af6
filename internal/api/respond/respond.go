// Package respond turns service outcomes into HTTP responses. Every handler funnels its
// authz.Result, authz.Decision and error values through here so the status mapping is
// the same on every route.
package respond

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sharedlists/sharedlists/internal/apierror"
	"github.com/sharedlists/sharedlists/internal/authz"
	"github.com/sharedlists/sharedlists/internal/services"
)

// Error writes the response for a service error and aborts
func Error(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrEmailTaken):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidCredentials):
		apierror.Abort(c, apierror.LoginFailure)
	default:
		apierror.Internal(c, "request failed", err)
	}
}

// BadRequest answers 400 for a body or query that could not be bound
func BadRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
}

// Mutation writes the failure response for a guarded mutation. It returns true only
// when the mutation succeeded and the caller should write its own success body.
// noun names the target in a 404 message ("list", "item").
func Mutation(c *gin.Context, noun string, res authz.Result, err error) bool {
	if err != nil {
		Error(c, err)
		return false
	}
	if !res.AccessGranted {
		apierror.Abort(c, res.DenyReason)
		return false
	}
	switch {
	case res.Success:
		return true
	case !res.TargetExists:
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": noun + " not found"})
	case res.Conflicts:
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": noun + " already exists"})
	case res.LimitReached:
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": noun + " limit reached"})
	default:
		// the store changed underneath the operation and it was rolled back
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "concurrent modification, retry the request"})
	}
	return false
}

// Read writes the failure response for a guarded read. It returns true when access
// was granted and the read succeeded.
func Read(c *gin.Context, d authz.Decision, err error) bool {
	if err != nil {
		Error(c, err)
		return false
	}
	if !d.Granted {
		apierror.Abort(c, d.Reason)
		return false
	}
	return true
}

// NotFound answers 404 for noun
func NotFound(c *gin.Context, noun string) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": noun + " not found"})
}
