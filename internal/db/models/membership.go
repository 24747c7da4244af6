// Package models - membership.go defines the list membership model linking one account
// to one list with exactly one role, plus an enriched view joined with account details.
package models

import "time"

// Membership represents an account's role on a list. (ListID, AccountID) is the identity.
type Membership struct {
	ListID    string    `db:"list_id" json:"list_id"`
	AccountID string    `db:"account_id" json:"account_id"`
	Role      Role      `db:"role_id" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// MembershipWithAccount includes account details for display
type MembershipWithAccount struct {
	Membership
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
	Email     string `db:"email" json:"email"`
}
