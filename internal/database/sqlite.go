// Copyright 2023 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sync"

	"github.com/canonical/sqlair"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	_ "github.com/mattn/go-sqlite3"

	coredatabase "github.com/juju/storefront/core/database"
	"github.com/juju/storefront/internal/database/txn"
)

var logger = loggo.GetLogger("storefront.database")

const driverName = "sqlite3"

// Open opens the sqlite database at the given path. Foreign keys are
// enforced and the pool is limited to a single connection, so that
// transactions are serialised by the pool rather than failing with
// SQLITE_BUSY.
func Open(path string) (*sql.DB, error) {
	query := url.Values{}
	query.Set("_foreign_keys", "on")
	query.Set("_busy_timeout", "5000")
	query.Set("_txlock", "immediate")

	dsn := fmt.Sprintf("file:%s?%s", path, query.Encode())
	return open(dsn)
}

// OpenInMemory opens a named, shared, in-memory database. The database lives
// for as long as at least one connection to it remains open.
func OpenInMemory(name string) (*sql.DB, error) {
	query := url.Values{}
	query.Set("mode", "memory")
	query.Set("cache", "shared")
	query.Set("_foreign_keys", "on")

	dsn := fmt.Sprintf("file:%s?%s", name, query.Encode())
	return open(dsn)
}

func open(dsn string) (*sql.DB, error) {
	logger.Debugf("opening database %q", dsn)

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, errors.Annotate(err, "opening database")
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Annotate(err, "pinging database")
	}
	return db, nil
}

// TrackedDB wraps a sql.DB, running every transaction through a retrying
// transaction runner.
type TrackedDB struct {
	db     *sql.DB
	sqlair *sqlair.DB
	runner *txn.RetryingTxnRunner

	mu  sync.Mutex
	err error
}

// NewTrackedDB returns a TrackedDB for the given database.
func NewTrackedDB(db *sql.DB, opts ...txn.Option) *TrackedDB {
	return &TrackedDB{
		db:     db,
		sqlair: sqlair.NewDB(db),
		runner: txn.NewRetryingTxnRunner(opts...),
	}
}

// Txn is part of the coredatabase.TxnRunner interface.
func (t *TrackedDB) Txn(ctx context.Context, fn func(context.Context, *sqlair.TX) error) error {
	return t.track(t.runner.Txn(ctx, t.sqlair, fn))
}

// StdTxn is part of the coredatabase.TxnRunner interface.
func (t *TrackedDB) StdTxn(ctx context.Context, fn func(context.Context, *sql.Tx) error) error {
	return t.track(t.runner.StdTxn(ctx, t.db, fn))
}

// Err is part of the coredatabase.TrackedDB interface. It returns the last
// connection level error observed by a transaction.
func (t *TrackedDB) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Close closes the underlying database.
func (t *TrackedDB) Close() error {
	return errors.Trace(t.db.Close())
}

func (t *TrackedDB) track(err error) error {
	if errors.Is(err, sql.ErrConnDone) {
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
	}
	return err
}

// TxnRunnerFactory returns a factory that always hands out the given
// runner.
func TxnRunnerFactory(runner coredatabase.TxnRunner) coredatabase.TxnRunnerFactory {
	return func() (coredatabase.TxnRunner, error) {
		if tracked, ok := runner.(coredatabase.TrackedDB); ok {
			if err := tracked.Err(); err != nil {
				return nil, errors.Annotate(err, "database unavailable")
			}
		}
		return runner, nil
	}
}
