package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sharedlists/sharedlists/internal/apierror"
)

func TestUUIDParams(t *testing.T) {
	r := gin.New()
	r.GET("/lists/:list_id/items/:item_id", UUIDParams(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/health", UUIDParams(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"valid ids", "/lists/6f1c2e4a-1d2b-4c3d-9e8f-0a1b2c3d4e5f/items/0b9f7f1e-5a6b-4c7d-8e9f-112233445566", http.StatusOK},
		{"no params", "/health", http.StatusOK},
		{"malformed list id", "/lists/not-a-uuid/items/0b9f7f1e-5a6b-4c7d-8e9f-112233445566", http.StatusBadRequest},
		{"malformed item id", "/lists/6f1c2e4a-1d2b-4c3d-9e8f-0a1b2c3d4e5f/items/42", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, tt.path, nil)
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus == http.StatusBadRequest {
				if got := rejectionCode(t, w); got != apierror.WrongFormat.Code() {
					t.Errorf("code = %d, want %d", got, apierror.WrongFormat.Code())
				}
			}
		})
	}
}
