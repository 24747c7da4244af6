// Package models - list.go defines shopping lists and their items.
package models

import "time"

// List represents a shared shopping list
type List struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ListWithRole is a list as seen by one account
type ListWithRole struct {
	List
	Role Role `db:"role_id" json:"role"`
}

// Item represents one entry on a list
type Item struct {
	ID        string    `db:"id" json:"id"`
	ListID    string    `db:"list_id" json:"list_id"`
	Name      string    `db:"name" json:"name"`
	Quantity  int       `db:"quantity" json:"quantity"`
	Checked   bool      `db:"checked" json:"checked"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
