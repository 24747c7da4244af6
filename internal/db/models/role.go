// Package models - role.go defines the closed set of list roles. The persisted
// roles table stores each role as a unique (index, title) pair; that pair is a
// serialization detail and never adds states to the Role type.
package models

import "fmt"

// Role is a member's role on a list
type Role int16

const (
	RoleOwner        Role = 1
	RoleCollaborator Role = 2
)

var roleTitles = map[Role]string{
	RoleOwner:        "owner",
	RoleCollaborator: "collaborator",
}

// AllRoles lists every role in index order
func AllRoles() []Role {
	return []Role{RoleOwner, RoleCollaborator}
}

// Index returns the persisted numeric index of the role
func (r Role) Index() int16 {
	return int16(r)
}

// Title returns the persisted title of the role
func (r Role) Title() string {
	if t, ok := roleTitles[r]; ok {
		return t
	}
	return fmt.Sprintf("role(%d)", int16(r))
}

// String implements fmt.Stringer
func (r Role) String() string {
	return r.Title()
}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	_, ok := roleTitles[r]
	return ok
}

// RoleFromIndex maps a persisted index back to a Role
func RoleFromIndex(idx int16) (Role, error) {
	r := Role(idx)
	if !r.Valid() {
		return 0, fmt.Errorf("unknown role index: %d", idx)
	}
	return r, nil
}

// RoleFromTitle maps a persisted title back to a Role
func RoleFromTitle(title string) (Role, error) {
	for r, t := range roleTitles {
		if t == title {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown role title: %q", title)
}

// MarshalText encodes the role as its title
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("unknown role: %d", int16(r))
	}
	return []byte(r.Title()), nil
}

// UnmarshalText decodes a role title
func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := RoleFromTitle(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
