// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package testing

import (
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	coreproduct "github.com/juju/storefront/core/product"
)

// GenProductUUID can be used in testing for generating a product uuid that is
// checked for subsequent errors using the test suits go check instance.
func GenProductUUID(c *gc.C) coreproduct.UUID {
	uuid, err := coreproduct.NewUUID()
	c.Assert(err, jc.ErrorIsNil)
	return uuid
}
