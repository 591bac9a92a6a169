// Copyright 2023 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package testing

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	coredatabase "github.com/juju/storefront/core/database"
	"github.com/juju/storefront/core/database/schema"
	"github.com/juju/storefront/internal/database"
)

var dbCounter int64

// SQLiteSuite is used to provide a sql.DB reference to tests. Every test
// gets its own uniquely named in-memory database.
type SQLiteSuite struct {
	testing.IsolationSuite

	db      *sql.DB
	tracked *database.TrackedDB
}

// SetUpTest opens a fresh database for the test.
func (s *SQLiteSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)

	name := fmt.Sprintf("storefront-test-%d", atomic.AddInt64(&dbCounter, 1))
	db, err := database.OpenInMemory(name)
	c.Assert(err, jc.ErrorIsNil)

	s.db = db
	s.tracked = database.NewTrackedDB(db)
}

// TearDownTest closes the database, discarding its contents.
func (s *SQLiteSuite) TearDownTest(c *gc.C) {
	if s.db != nil {
		err := s.db.Close()
		c.Check(err, jc.ErrorIsNil)
		s.db = nil
	}
	s.IsolationSuite.TearDownTest(c)
}

// DB returns the underlying database.
func (s *SQLiteSuite) DB() *sql.DB {
	return s.db
}

// TxnRunner returns the runner for the test database.
func (s *SQLiteSuite) TxnRunner() coredatabase.TxnRunner {
	return s.tracked
}

// TxnRunnerFactory returns a factory handing out the test runner.
func (s *SQLiteSuite) TxnRunnerFactory() coredatabase.TxnRunnerFactory {
	return database.TxnRunnerFactory(s.tracked)
}

// ApplyDDL applies the schema to the test database.
func (s *SQLiteSuite) ApplyDDL(c *gc.C, ddl *schema.Schema) {
	changes, err := ddl.Ensure(context.Background(), s.tracked)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(changes.Post, gc.Equals, ddl.Len())
}
