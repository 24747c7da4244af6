package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sharedlists/sharedlists/internal/apierror"
)

// UUIDParams rejects a request whose path parameters are not all UUIDs with
// WrongFormat (400). Every identifier in a route path (list_id, item_id, account_id,
// key_id, id) names a UUID column, so a malformed one never reaches the store.
// Mount it after the gate so missing credentials are reported first.
func UUIDParams() gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, p := range c.Params {
			if _, err := uuid.Parse(p.Value); err != nil {
				apierror.Abort(c, apierror.WrongFormat)
				return
			}
		}
		c.Next()
	}
}
