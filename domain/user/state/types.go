// Copyright 2023 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"database/sql"
	"time"

	"github.com/juju/storefront/core/user"
)

// User represents a user in the state layer with the associated fields in
// the database.
type User struct {
	UUID             string         `db:"uuid"`
	Email            string         `db:"email"`
	FirstName        string         `db:"first_name"`
	LastName         string         `db:"last_name"`
	PasswordHash     string         `db:"password_hash"`
	Role             string         `db:"role"`
	Photo            string         `db:"photo"`
	Verified         bool           `db:"verified"`
	VerificationCode sql.NullString `db:"verification_code"`
	CreatedAt        time.Time      `db:"created_at"`
}

// toCoreUser converts the state user to a core user.
func (u User) toCoreUser() user.User {
	return user.User{
		UUID:      user.UUID(u.UUID),
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      user.Role(u.Role),
		Photo:     u.Photo,
		Verified:  u.Verified,
		CreatedAt: u.CreatedAt,
	}
}
