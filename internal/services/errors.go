// Package services implements the business operations of the shared lists service:
// accounts and their keys, lists and their members, and the items on a list.
// Every mutation that touches list or account data runs through authz.Guard, so the
// access check always comes before the write.
package services

import (
	"errors"
	"fmt"

	"github.com/sharedlists/sharedlists/internal/authz"
	"github.com/sharedlists/sharedlists/internal/telemetry"
)

var (
	// ErrEmailTaken is returned when registering an email that already has an account
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials is returned by Login for an unknown email or a wrong password
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidInput wraps every input validation failure
	ErrInvalidInput = errors.New("invalid input")
)

func invalid(field, problem string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidInput, field, problem)
}

// observe returns a pass-through that records the outcome of a guarded operation,
// so it can wrap a call directly: observe("list.rename")(authz.Guard(...))
func observe(operation string) func(authz.Result, error) (authz.Result, error) {
	return func(res authz.Result, err error) (authz.Result, error) {
		outcome := res.Outcome()
		if err != nil {
			outcome = "error"
		}
		telemetry.GuardedMutationsTotal.WithLabelValues(operation, outcome).Inc()
		return res, err
	}
}
