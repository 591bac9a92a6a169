// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package user

import (
	"github.com/google/uuid"
	"github.com/juju/errors"
)

// UUID represents a user unique identifier.
type UUID string

// NewUUID is a convenience function for generating a new user uuid.
func NewUUID() (UUID, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return UUID(""), errors.Annotate(err, "generating user uuid")
	}
	return UUID(id.String()), nil
}

// ParseUUID returns a UUID from the given string, failing if it is not a
// valid uuid.
func ParseUUID(value string) (UUID, error) {
	id := UUID(value)
	if err := id.Validate(); err != nil {
		return UUID(""), errors.Trace(err)
	}
	return id, nil
}

// String implements the stringer interface for UUID.
func (u UUID) String() string {
	return string(u)
}

// Validate ensures the consistency of the UUID. If the uuid is invalid an
// error satisfying [errors.NotValid] will be returned.
func (u UUID) Validate() error {
	if u == "" {
		return errors.NotValidf("empty user uuid")
	}
	if _, err := uuid.Parse(string(u)); err != nil {
		return errors.NotValidf("user uuid %q", u)
	}
	return nil
}
