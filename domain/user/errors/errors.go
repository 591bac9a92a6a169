// Copyright 2023 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package errors

import (
	"github.com/juju/errors"
)

const (
	// NotFound describes an error that occurs when the user being requested
	// does not exist.
	NotFound = errors.ConstError("user not found")

	// AlreadyExists describes an error that occurs when a user is registered
	// with an email address that is already in use.
	AlreadyExists = errors.ConstError("user already exists")

	// UUIDNotValid describes an error when the user uuid is not valid.
	UUIDNotValid = errors.ConstError("user uuid not valid")

	// EmailNotValid describes an error when an email address is not valid.
	EmailNotValid = errors.ConstError("email not valid")

	// DetailsNotValid describes an error that occurs when a required user
	// field is missing.
	DetailsNotValid = errors.ConstError("user details not valid")

	// NotVerified describes an error that occurs when an unverified user
	// tries to log in.
	NotVerified = errors.ConstError("user not verified")

	// AlreadyVerified describes an error that occurs when a verified user is
	// verified again.
	AlreadyVerified = errors.ConstError("user already verified")

	// CodeNotValid describes an error that occurs when a verification code
	// does not match.
	CodeNotValid = errors.ConstError("verification code not valid")

	// InvalidCredentials describes an error that occurs when a login names an
	// unknown email address or the wrong password.
	InvalidCredentials = errors.ConstError("invalid credentials")
)
