// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package user

// Role is the access level of a user.
type Role string

const (
	// RoleUser is given to every registered user.
	RoleUser Role = "user"
	// RoleAdmin may manage the catalog and any cart or ticket.
	RoleAdmin Role = "admin"
)

// IsAdmin reports whether the role grants administrative access.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// String implements the stringer interface for Role.
func (r Role) String() string {
	return string(r)
}
