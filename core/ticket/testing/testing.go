// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package testing

import (
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	coreticket "github.com/juju/storefront/core/ticket"
)

// GenTicketUUID can be used in testing for generating a ticket uuid that is
// checked for subsequent errors using the test suits go check instance.
func GenTicketUUID(c *gc.C) coreticket.UUID {
	uuid, err := coreticket.NewUUID()
	c.Assert(err, jc.ErrorIsNil)
	return uuid
}
