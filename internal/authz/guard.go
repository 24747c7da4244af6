// Package authz decides what an authenticated account may do to a list, and runs list,
// item and account mutations behind that decision.
//
// Every mutation goes through Guard: the check runs first and, only if it grants
// access, the mutation runs. A denied check never touches the data it protects.
package authz

import (
	"context"

	"github.com/sharedlists/sharedlists/internal/apierror"
	"github.com/sharedlists/sharedlists/internal/db/models"
)

// Result describes the outcome of a guarded operation. Handlers branch on its fields
// instead of on errors; an error is reserved for store failures.
type Result struct {
	Success         bool
	TargetExists    bool
	AccessGranted   bool
	Conflicts       bool
	LimitReached    bool
	RecordsAffected int64

	// DenyReason says why access was refused; meaningful only when !AccessGranted
	DenyReason apierror.Reason
}

// Outcome condenses the result into a single label
func (r Result) Outcome() string {
	switch {
	case !r.AccessGranted:
		return "denied"
	case r.Success:
		return "success"
	case !r.TargetExists:
		return "not_found"
	case r.Conflicts:
		return "conflict"
	case r.LimitReached:
		return "limit_reached"
	default:
		return "failed"
	}
}

// Denied builds the result of a refused check
func Denied(reason apierror.Reason) Result {
	return Result{DenyReason: reason}
}

// Decision is the verdict of a Check
type Decision struct {
	Granted bool
	Reason  apierror.Reason
}

// Grant allows the operation
func Grant() Decision { return Decision{Granted: true} }

// Deny refuses the operation for reason
func Deny(reason apierror.Reason) Decision { return Decision{Reason: reason} }

// Check is an access predicate evaluated before a mutation
type Check func(ctx context.Context) (Decision, error)

// Mutation performs the protected change. It reports Success, TargetExists,
// Conflicts, LimitReached and RecordsAffected; Guard fills in AccessGranted.
type Mutation func(ctx context.Context) (Result, error)

// Guard evaluates check and, if access is granted, runs mutate
func Guard(ctx context.Context, check Check, mutate Mutation) (Result, error) {
	d, err := check(ctx)
	if err != nil {
		return Result{}, err
	}
	if !d.Granted {
		return Denied(d.Reason), nil
	}

	res, err := mutate(ctx)
	res.AccessGranted = true
	if err != nil {
		res.Success = false
		return res, err
	}
	return res, nil
}

// GuardRead is Guard for reads: read runs only when check grants access.
// The returned Decision tells the caller why nothing was read.
func GuardRead[T any](ctx context.Context, check Check, read func(ctx context.Context) (T, error)) (T, Decision, error) {
	var zero T
	d, err := check(ctx)
	if err != nil {
		return zero, Decision{}, err
	}
	if !d.Granted {
		return zero, d, nil
	}
	v, err := read(ctx)
	if err != nil {
		return zero, d, err
	}
	return v, d, nil
}

// Always grants access. Used for operations whose only precondition is authentication.
func Always(context.Context) (Decision, error) {
	return Grant(), nil
}

// SameAccount grants access only when requester and target are the same account
func SameAccount(requesterID, targetID string) Check {
	return func(context.Context) (Decision, error) {
		if requesterID != targetID {
			return Deny(apierror.ActionNotAllowed), nil
		}
		return Grant(), nil
	}
}

// RequireRole grants access when accountID is a member of listID holding one of roles.
// A non-member is refused with ListAccessNotGranted, a member with another role with
// ActionNotAllowed. With no roles given, any membership is enough.
func RequireRole(a *MembershipAuthorizer, accountID, listID string, roles ...models.Role) Check {
	return func(ctx context.Context) (Decision, error) {
		role, ok, err := a.GetRole(ctx, accountID, listID)
		if err != nil {
			return Decision{}, err
		}
		if !ok {
			return Deny(apierror.ListAccessNotGranted), nil
		}
		if len(roles) == 0 {
			return Grant(), nil
		}
		for _, r := range roles {
			if r == role {
				return Grant(), nil
			}
		}
		return Deny(apierror.ActionNotAllowed), nil
	}
}
