// Copyright 2023 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/juju/errors"
	"golang.org/x/crypto/bcrypt"
)

const (
	// ErrPasswordDestroyed is returned when a password is used after it has
	// been destroyed.
	ErrPasswordDestroyed = errors.ConstError("password has been destroyed")

	// ErrPasswordNotValid is returned when a password fails validation.
	ErrPasswordNotValid = errors.ConstError("password not valid")

	// ErrPasswordMismatch is returned when a password does not match a
	// stored hash.
	ErrPasswordMismatch = errors.ConstError("password does not match")

	// maxPasswordLength is the longest password bcrypt will hash.
	maxPasswordLength = 72
)

// Password hides a plain text password from being printed or logged. Once a
// password has been hashed or checked it is destroyed and cannot be used
// again.
type Password struct {
	password []byte
}

// NewPassword wraps the plain text password.
func NewPassword(p string) Password {
	return Password{password: []byte(p)}
}

// Destroy zeroes the password so it no longer lingers in memory. It is safe
// to call more than once.
func (p Password) Destroy() {
	for i := range p.password {
		p.password[i] = 0
	}
}

// IsDestroyed reports whether Destroy has been called on the password.
func (p Password) IsDestroyed() bool {
	if len(p.password) == 0 {
		return false
	}
	for _, b := range p.password {
		if b != 0 {
			return false
		}
	}
	return true
}

// Validate checks the password is usable. A password must be non-empty and
// at most 72 bytes long.
func (p Password) Validate() error {
	if p.IsDestroyed() {
		return ErrPasswordDestroyed
	}
	if len(p.password) == 0 || len(p.password) > maxPasswordLength {
		return ErrPasswordNotValid
	}
	return nil
}

// String implements fmt.Stringer, returning nothing.
func (p Password) String() string {
	return ""
}

// GoString implements fmt.GoStringer, returning nothing.
func (p Password) GoString() string {
	return ""
}

// Format implements fmt.Formatter so that no verb prints the password.
func (p Password) Format(fmt.State, rune) {}

// HashPassword returns the bcrypt hash of the password. The password is
// destroyed once hashed.
func HashPassword(p Password) (string, error) {
	defer p.Destroy()
	if err := p.Validate(); err != nil {
		return "", errors.Trace(err)
	}

	hash, err := bcrypt.GenerateFromPassword(p.password, bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Annotate(err, "hashing password")
	}
	return string(hash), nil
}

// CheckPassword compares the password against a hash produced by
// HashPassword. The password is destroyed once checked. If the password does
// not match an error satisfying ErrPasswordMismatch is returned.
func CheckPassword(p Password, hash string) error {
	defer p.Destroy()
	if err := p.Validate(); err != nil {
		return errors.Trace(err)
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), p.password)
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	} else if err != nil {
		return errors.Annotate(err, "checking password")
	}
	return nil
}

// PasswordStamp returns a short fingerprint of a password hash. Hashes are
// salted, so the stamp changes every time a password is set.
func PasswordStamp(hash string) string {
	sum := sha256.Sum256([]byte(hash))
	return hex.EncodeToString(sum[:8])
}
