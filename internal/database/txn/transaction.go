// Copyright 2023 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package txn

import (
	"context"
	"database/sql"
	"time"

	"github.com/canonical/sqlair"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/retry"
	"golang.org/x/sync/semaphore"
)

// Logger is the logging interface used by the transaction runner.
type Logger interface {
	Warningf(message string, args ...any)
	Tracef(message string, args ...any)
}

const (
	// DefaultSemaphoreCapacity is the default capacity of the semaphore
	// used to limit the number of concurrent transactions.
	DefaultSemaphoreCapacity = 10
)

// RetryStrategy defines a function for retrying a transaction.
type RetryStrategy func(context.Context, func() error) error

// Option defines a function for setting options on a RetryingTxnRunner.
type Option func(*option)

// WithLogger defines a function for setting the logger on a
// RetryingTxnRunner.
func WithLogger(logger Logger) Option {
	return func(o *option) {
		o.logger = logger
	}
}

// WithRetryStrategy defines a function for setting the retry strategy on a
// RetryingTxnRunner.
func WithRetryStrategy(retryStrategy RetryStrategy) Option {
	return func(o *option) {
		o.retryStrategy = retryStrategy
	}
}

// WithSemaphore defines a function for setting the semaphore capacity used
// to limit concurrent transactions.
func WithSemaphore(capacity int) Option {
	return func(o *option) {
		o.semaphore = semaphore.NewWeighted(int64(capacity))
	}
}

type option struct {
	logger        Logger
	retryStrategy RetryStrategy
	semaphore     *semaphore.Weighted
}

func newOptions() *option {
	logger := loggo.GetLogger("storefront.database.txn")
	return &option{
		logger:        logger,
		retryStrategy: DefaultRetryStrategy(clock.WallClock, logger),
		semaphore:     semaphore.NewWeighted(DefaultSemaphoreCapacity),
	}
}

// RetryingTxnRunner defines a generic runner for applying transactions
// to a given database. It expects that no individual transaction function
// should take longer than the default timeout.
// Transient errors are retried based on the defined retry strategy.
type RetryingTxnRunner struct {
	logger        Logger
	retryStrategy RetryStrategy
	semaphore     *semaphore.Weighted
}

// NewRetryingTxnRunner returns a new RetryingTxnRunner.
func NewRetryingTxnRunner(opts ...Option) *RetryingTxnRunner {
	o := newOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &RetryingTxnRunner{
		logger:        o.logger,
		retryStrategy: o.retryStrategy,
		semaphore:     o.semaphore,
	}
}

// Txn executes the input function against the sqlair database, within a
// transaction that depends on the input context. Transient failures are
// retried, which means fn must be safe to call more than once.
func (t *RetryingTxnRunner) Txn(
	ctx context.Context,
	db *sqlair.DB,
	fn func(context.Context, *sqlair.TX) error,
) error {
	return t.run(ctx, func(ctx context.Context) error {
		tx, err := db.Begin(ctx, nil)
		if err != nil {
			return errors.Trace(err)
		}

		if err := fn(ctx, tx); err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				t.logger.Warningf("failed to rollback transaction: %v", rollbackErr)
			}
			return errors.Trace(err)
		}

		return errors.Trace(tx.Commit())
	})
}

// StdTxn executes the input function against the standard library
// database, within a transaction that depends on the input context.
func (t *RetryingTxnRunner) StdTxn(
	ctx context.Context,
	db *sql.DB,
	fn func(context.Context, *sql.Tx) error,
) error {
	return t.run(ctx, func(ctx context.Context) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return errors.Trace(err)
		}

		if err := fn(ctx, tx); err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				t.logger.Warningf("failed to rollback transaction: %v", rollbackErr)
			}
			return errors.Trace(err)
		}

		return errors.Trace(tx.Commit())
	})
}

func (t *RetryingTxnRunner) run(ctx context.Context, fn func(context.Context) error) error {
	return t.Retry(ctx, func() error {
		// Don't start a transaction if the context has already been
		// cancelled.
		if err := ctx.Err(); err != nil {
			return errors.Trace(err)
		}

		if err := t.semaphore.Acquire(ctx, 1); err != nil {
			return errors.Trace(err)
		}
		defer t.semaphore.Release(1)

		return fn(ctx)
	})
}

// Retry defines a generic retry function for applying a function that
// interacts with the database. It will retry in cases of transient known
// database errors.
func (t *RetryingTxnRunner) Retry(ctx context.Context, fn func() error) error {
	return t.retryStrategy(ctx, fn)
}

// DefaultRetryStrategy returns a function that can be used to apply a default
// retry strategy to its input operation. It will retry in cases of transient
// known database errors.
func DefaultRetryStrategy(clock clock.Clock, logger Logger) RetryStrategy {
	return func(ctx context.Context, fn func() error) error {
		err := retry.Call(retry.CallArgs{
			Func: fn,
			IsFatalError: func(err error) bool {
				// No point in re-trying or logging a no-row error.
				if errors.Is(err, sql.ErrNoRows) || errors.Is(err, sqlair.ErrNoRows) {
					return true
				}
				return !IsErrRetryable(err)
			},
			Attempts:    250,
			Delay:       time.Millisecond,
			MaxDelay:    time.Millisecond * 100,
			Clock:       clock,
			BackoffFunc: retry.ExpBackoff(time.Millisecond, time.Millisecond*100, 1.5, true),
			Stop:        ctx.Done(),
			NotifyFunc: func(err error, attempt int) {
				logger.Tracef("attempt %d: retrying transaction: %v", attempt, err)
			},
		})
		if retry.IsAttemptsExceeded(err) {
			return errors.Trace(err)
		}
		return retry.LastError(err)
	}
}
