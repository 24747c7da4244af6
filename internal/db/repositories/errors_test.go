package repositories

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

var errDB = errors.New("db error")

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errDB, false},
		{"unique violation", &pq.Error{Code: "23505"}, true},
		{"wrapped unique violation", fmt.Errorf("failed to create membership: %w", &pq.Error{Code: "23505"}), true},
		{"foreign key violation", &pq.Error{Code: "23503"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUniqueViolation(tt.err); got != tt.want {
				t.Errorf("IsUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}
