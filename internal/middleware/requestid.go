package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries the request identifier in both directions
	RequestIDHeader = "X-Request-ID"

	// RequestIDKey is the gin.Context key holding the request identifier
	RequestIDKey = "request_id"
)

// RequestIDMiddleware gives every request an identifier. An inbound X-Request-ID set by
// a load balancer or the caller is kept; otherwise a UUID v4 is generated. The id is
// stored under RequestIDKey for the request logger and the audit trail, and echoed back
// so clients can quote it when reporting a problem.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.New().String()
		}

		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)

		c.Next()
	}
}
