// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package user

import (
	"github.com/juju/storefront/internal/auth"
)

// RegisterArgs holds the details of a new user.
type RegisterArgs struct {
	Email     string
	FirstName string
	LastName  string
	// Photo is optional.
	Photo    string
	Password auth.Password
}
