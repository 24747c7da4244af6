// Package apierror defines the rejection reasons returned by the request gate and the
// authorization layer, and the helpers that write them as HTTP responses.
//
// A rejection body is always {"code": <reason>, "message": "..."}. Internal failures are
// answered with 500 and a correlation id; the underlying error is only logged.
package apierror

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
)

// Reason is a rejection reason. Its integer value is the wire code.
type Reason int

const (
	KeyMissing Reason = iota
	WrongKey
	AccountNotFound
	KeyInvalid
	KeyExpired
	ServiceUnavailable
	CredentialsMissing
	WrongFormat
	ListAccessNotGranted
	ActionNotAllowed
	LoginFailure
)

type reasonInfo struct {
	name    string
	message string
	status  int
}

var reasons = map[Reason]reasonInfo{
	KeyMissing:           {"key_missing", "admin key is missing", http.StatusUnauthorized},
	WrongKey:             {"wrong_key", "admin key is wrong", http.StatusUnauthorized},
	AccountNotFound:      {"account_not_found", "account does not exist", http.StatusUnauthorized},
	KeyInvalid:           {"key_invalid", "api key is not valid", http.StatusUnauthorized},
	KeyExpired:           {"key_expired", "api key has expired", http.StatusUnauthorized},
	ServiceUnavailable:   {"service_unavailable", "service is not configured", http.StatusInternalServerError},
	CredentialsMissing:   {"credentials_missing", "account id or api key is missing", http.StatusUnauthorized},
	WrongFormat:          {"wrong_format", "identifier is not a valid uuid", http.StatusBadRequest},
	ListAccessNotGranted: {"list_access_not_granted", "no access to this list", http.StatusForbidden},
	ActionNotAllowed:     {"action_not_allowed", "your role does not allow this action", http.StatusForbidden},
	LoginFailure:         {"login_failure", "email or password is wrong", http.StatusUnauthorized},
}

// Code returns the numeric wire code
func (r Reason) Code() int { return int(r) }

// String returns the snake_case name, used as a metric label
func (r Reason) String() string {
	if info, ok := reasons[r]; ok {
		return info.name
	}
	return "unknown"
}

// Message returns the human-readable message sent to the client
func (r Reason) Message() string {
	return reasons[r].message
}

// Status returns the HTTP status for the reason
func (r Reason) Status() int {
	if info, ok := reasons[r]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// Rejection is the body written for every rejected request
type Rejection struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Body returns the rejection body for r
func (r Reason) Body() Rejection {
	return Rejection{Code: r.Code(), Message: r.Message()}
}

// Abort writes the rejection for r and stops the handler chain
func Abort(c *gin.Context, r Reason) {
	c.AbortWithStatusJSON(r.Status(), r.Body())
}

// NewCorrelationID returns a new time-ordered id for correlating a response with its log record
func NewCorrelationID() string {
	return ulid.Make().String()
}

// Internal logs err under a fresh correlation id and answers 500 with that id.
// The error text never reaches the client. Returns the correlation id.
func Internal(c *gin.Context, msg string, err error) string {
	id := NewCorrelationID()
	slog.Error(msg,
		"correlation_id", id,
		"error", err,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
	)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"error":          "internal server error",
		"correlation_id": id,
	})
	return id
}
