// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package testing

import (
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	corecart "github.com/juju/storefront/core/cart"
)

// GenCartUUID can be used in testing for generating a cart uuid that is
// checked for subsequent errors using the test suits go check instance.
func GenCartUUID(c *gc.C) corecart.UUID {
	uuid, err := corecart.NewUUID()
	c.Assert(err, jc.ErrorIsNil)
	return uuid
}
