// Copyright 2023 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package txn

import (
	"strings"

	"github.com/juju/errors"
	"github.com/mattn/go-sqlite3"
)

// IsErrRetryable returns true if the input error was one of a
// known set of transient database errors that can be retried.
func IsErrRetryable(err error) bool {
	if err == nil {
		return false
	}

	var sqliteErrNo sqlite3.ErrNo
	if errors.As(err, &sqliteErrNo) {
		if sqliteErrNo == sqlite3.ErrBusy || sqliteErrNo == sqlite3.ErrLocked {
			return true
		}
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked {
			return true
		}
	}

	msg := err.Error()
	// Unfortunately errors are often wrapped, so we fall back to matching
	// on the message.
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "cannot start a transaction within a transaction") ||
		strings.Contains(msg, "bad connection") ||
		strings.Contains(msg, "checkpoint in progress")
}
