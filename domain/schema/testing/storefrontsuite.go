// Copyright 2023 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package testing

import (
	gc "gopkg.in/check.v1"

	"github.com/juju/storefront/domain/schema"
	databasetesting "github.com/juju/storefront/internal/database/testing"
)

// StorefrontSuite is used to provide a sql.DB reference to tests.
// It is pre-populated with the storefront schema.
type StorefrontSuite struct {
	databasetesting.SQLiteSuite
}

// SetUpTest is responsible for setting up a testing database suite
// initialised with the storefront schema.
func (s *StorefrontSuite) SetUpTest(c *gc.C) {
	s.SQLiteSuite.SetUpTest(c)
	s.SQLiteSuite.ApplyDDL(c, schema.StorefrontDDL())
}
