// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package user

import "time"

// DefaultPhoto is the photo given to users that do not supply one.
const DefaultPhoto = "default-user.jpg"

// User represents a registered user of the store.
type User struct {
	// UUID is the unique identifier for the user.
	UUID UUID

	// Email is the address the user logs in with. It is unique across users
	// regardless of case.
	Email string

	FirstName string
	LastName  string

	// Role is the access level of the user.
	Role Role

	// Photo is the path of the user's photo.
	Photo string

	// Verified is true once the user has confirmed their email address.
	Verified bool

	// CreatedAt is the time that the user was registered.
	CreatedAt time.Time
}

// FullName returns the first and last name of the user.
func (u User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
