// Copyright 2023 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package txn_test

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/canonical/sqlair"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	jc "github.com/juju/testing/checkers"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/mock/gomock"
	gc "gopkg.in/check.v1"

	"github.com/juju/storefront/internal/database"
	"github.com/juju/storefront/internal/database/txn"
	databasetesting "github.com/juju/storefront/internal/database/testing"
)

const (
	shortWait = 50 * time.Millisecond
	longWait  = 10 * time.Second
)

type transactionRunnerSuite struct {
	databasetesting.SQLiteSuite

	clock *MockClock
}

var _ = gc.Suite(&transactionRunnerSuite{})

func (s *transactionRunnerSuite) TestTxn(c *gc.C) {
	runner := txn.NewRetryingTxnRunner()

	err := runner.StdTxn(context.Background(), s.DB(), func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, "SELECT 1")
		if err != nil {
			return errors.Trace(err)
		}
		defer rows.Close()
		return nil
	})
	c.Assert(err, jc.ErrorIsNil)
}

func (s *transactionRunnerSuite) TestSqlairTxn(c *gc.C) {
	runner := txn.NewRetryingTxnRunner()

	s.createTable(c)

	type foo struct {
		ID   int    `db:"id"`
		Name string `db:"name"`
	}
	insert, err := sqlair.Prepare("INSERT INTO foo (id, name) VALUES ($foo.id, $foo.name)", foo{})
	c.Assert(err, jc.ErrorIsNil)
	query, err := sqlair.Prepare("SELECT &foo.* FROM foo", foo{})
	c.Assert(err, jc.ErrorIsNil)

	var result []foo
	err = runner.Txn(context.Background(), sqlair.NewDB(s.DB()), func(ctx context.Context, tx *sqlair.TX) error {
		if err := tx.Query(ctx, insert, foo{ID: 1, Name: "test"}).Run(); err != nil {
			return errors.Trace(err)
		}
		return tx.Query(ctx, query).GetAll(&result)
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(result, gc.DeepEquals, []foo{{ID: 1, Name: "test"}})
}

func (s *transactionRunnerSuite) TestTxnWithCancelledContext(c *gc.C) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := txn.NewRetryingTxnRunner()

	err := runner.StdTxn(ctx, s.DB(), func(ctx context.Context, tx *sql.Tx) error {
		c.Fatal("should not be called")
		return nil
	})
	c.Assert(err, gc.ErrorMatches, "context canceled")
}

func (s *transactionRunnerSuite) TestTxnParallelCancelledContext(c *gc.C) {
	runner := txn.NewRetryingTxnRunner(txn.WithSemaphore(1))

	var wg sync.WaitGroup
	wg.Add(2)

	// The first goroutine holds the only semaphore slot, the second one
	// then attempts a transaction with an already cancelled context.
	started := make(chan struct{})
	step := make(chan struct{})
	go func() {
		defer wg.Done()

		err := runner.StdTxn(context.Background(), s.DB(), func(ctx context.Context, tx *sql.Tx) error {
			close(started)

			select {
			case <-time.After(longWait):
			case <-step:
			}
			return nil
		})
		c.Check(err, jc.ErrorIsNil)
	}()

	go func() {
		defer wg.Done()
		defer close(step)

		select {
		case <-started:
		case <-time.After(longWait):
			c.Error("first transaction never started")
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := runner.StdTxn(ctx, s.DB(), func(ctx context.Context, tx *sql.Tx) error {
			c.Error("should not be called")
			return nil
		})
		c.Check(err, gc.ErrorMatches, "context canceled")
	}()

	wait := make(chan struct{})
	go func() {
		wg.Wait()
		close(wait)
	}()
	select {
	case <-wait:
	case <-time.After(longWait):
		c.Fatal("failed waiting to complete")
	}
}

func (s *transactionRunnerSuite) TestTxnInserts(c *gc.C) {
	runner := txn.NewRetryingTxnRunner()

	s.createTable(c)

	err := runner.StdTxn(context.Background(), s.DB(), func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO foo (id, name) VALUES (1, 'test')")
		return errors.Trace(err)
	})
	c.Assert(err, jc.ErrorIsNil)

	c.Check(s.countFoo(c), gc.Equals, 1)
}

func (s *transactionRunnerSuite) TestTxnRollback(c *gc.C) {
	runner := txn.NewRetryingTxnRunner()

	s.createTable(c)

	err := runner.StdTxn(context.Background(), s.DB(), func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO foo (id, name) VALUES (1, 'test')")
		if err != nil {
			return errors.Trace(err)
		}
		return errors.Errorf("fail")
	})
	c.Assert(err, gc.ErrorMatches, "fail")

	c.Check(s.countFoo(c), gc.Equals, 0)
}

func (s *transactionRunnerSuite) TestTxnUniqueConstraint(c *gc.C) {
	runner := txn.NewRetryingTxnRunner()

	s.createTable(c)

	var attempts int
	err := runner.StdTxn(context.Background(), s.DB(), func(ctx context.Context, tx *sql.Tx) error {
		attempts++
		_, err := tx.ExecContext(ctx, "INSERT INTO foo (id, name) VALUES (1, 'a'), (1, 'b')")
		return err
	})
	c.Assert(database.IsErrConstraintUnique(err), jc.IsTrue)
	c.Check(attempts, gc.Equals, 1)
}

func (s *transactionRunnerSuite) TestRetryForNonRetryableError(c *gc.C) {
	runner := txn.NewRetryingTxnRunner()

	var count int
	err := runner.Retry(context.Background(), func() error {
		count++
		return errors.Errorf("fail")
	})
	c.Assert(err, gc.ErrorMatches, "fail")
	c.Assert(count, gc.Equals, 1)
}

func (s *transactionRunnerSuite) TestRetryWithACancelledContext(c *gc.C) {
	ctx, cancel := context.WithCancel(context.Background())

	runner := txn.NewRetryingTxnRunner()

	var count int
	err := runner.Retry(ctx, func() error {
		defer cancel()

		count++
		return errors.Errorf("fail")
	})
	c.Assert(err, gc.ErrorMatches, "fail")
	c.Assert(count, gc.Equals, 1)
}

func (s *transactionRunnerSuite) TestRetryForRetryableError(c *gc.C) {
	defer s.setupMocks(c).Finish()

	s.clock.EXPECT().Now().Return(time.Now()).AnyTimes()
	s.clock.EXPECT().After(gomock.Any()).DoAndReturn(func(d time.Duration) <-chan time.Time {
		ch := make(chan time.Time)
		close(ch)
		return ch
	}).AnyTimes()

	logger := loggo.GetLogger("storefront.database.txn.test")
	runner := txn.NewRetryingTxnRunner(txn.WithRetryStrategy(txn.DefaultRetryStrategy(s.clock, logger)))

	var count int
	err := runner.Retry(context.Background(), func() error {
		count++
		return sqlite3.ErrBusy
	})
	c.Assert(err, gc.ErrorMatches, "attempt count exceeded: .*")
	c.Assert(count, gc.Equals, 250)
}

func (s *transactionRunnerSuite) createTable(c *gc.C) {
	_, err := s.DB().Exec("CREATE TABLE foo (id INT PRIMARY KEY, name VARCHAR(255))")
	c.Assert(err, jc.ErrorIsNil)
}

func (s *transactionRunnerSuite) countFoo(c *gc.C) int {
	var n int
	err := s.DB().QueryRow("SELECT COUNT(*) FROM foo").Scan(&n)
	c.Assert(err, jc.ErrorIsNil)
	return n
}

func (s *transactionRunnerSuite) setupMocks(c *gc.C) *gomock.Controller {
	ctrl := gomock.NewController(c)

	s.clock = NewMockClock(ctrl)

	return ctrl
}
