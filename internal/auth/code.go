// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/juju/errors"
)

var maxCode = big.NewInt(1000000)

// NewVerificationCode returns a random six digit code, zero padded.
func NewVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, maxCode)
	if err != nil {
		return "", errors.Annotate(err, "generating verification code")
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
