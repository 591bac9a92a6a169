// Copyright 2023 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package schema

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/juju/errors"

	"github.com/juju/storefront/core/database"
)

// Patch is a single schema change applied in order.
type Patch struct {
	run  func(context.Context, *sql.Tx) error
	hash string
}

// MakePatch returns a patch that applies the given SQL statement with the
// supplied arguments.
func MakePatch(statement string, args ...any) Patch {
	sum := sha256.Sum256([]byte(statement))
	return Patch{
		run: func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, statement, args...)
			return err
		},
		hash: hex.EncodeToString(sum[:]),
	}
}

// Hash returns the hash of the patch statement.
func (p Patch) Hash() string {
	return p.hash
}

// Schema is an ordered list of patches. Patches that have already been
// applied to a database are never re-applied.
type Schema struct {
	patches []Patch
}

// New creates a new schema from the given patches.
func New(patches ...Patch) *Schema {
	return &Schema{patches: patches}
}

// Add appends patches to the schema.
func (s *Schema) Add(patches ...Patch) {
	s.patches = append(s.patches, patches...)
}

// Len returns the number of patches in the schema.
func (s *Schema) Len() int {
	return len(s.patches)
}

// ChangeSet records the schema versions before and after Ensure.
type ChangeSet struct {
	Current int
	Post    int
}

const createSchemaTable = `
CREATE TABLE IF NOT EXISTS schema (
    version INTEGER PRIMARY KEY,
    hash TEXT NOT NULL,
    updated_at DATETIME NOT NULL
);`

// Ensure applies every patch that has not yet been applied, in a single
// transaction. Previously applied patches are checked against their recorded
// hash, a mismatch is an error as the database was created from a different
// schema.
func (s *Schema) Ensure(ctx context.Context, runner database.TxnRunner) (ChangeSet, error) {
	var change ChangeSet
	err := runner.StdTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, createSchemaTable); err != nil {
			return errors.Annotate(err, "creating schema table")
		}

		hashes, err := appliedHashes(ctx, tx)
		if err != nil {
			return errors.Trace(err)
		}
		if len(hashes) > len(s.patches) {
			return errors.Errorf("database schema version %d is newer than %d", len(hashes), len(s.patches))
		}
		for i, hash := range hashes {
			if s.patches[i].hash != hash {
				return errors.Errorf("schema patch %d hash mismatch", i)
			}
		}

		change.Current = len(hashes)
		for i := len(hashes); i < len(s.patches); i++ {
			if err := s.patches[i].run(ctx, tx); err != nil {
				return errors.Annotatef(err, "applying schema patch %d", i)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO schema (version, hash, updated_at) VALUES (?, ?, ?)",
				i, s.patches[i].hash, time.Now().UTC(),
			); err != nil {
				return errors.Annotatef(err, "recording schema patch %d", i)
			}
		}
		change.Post = len(s.patches)
		return nil
	})
	if err != nil {
		return ChangeSet{}, errors.Trace(err)
	}
	return change, nil
}

func appliedHashes(ctx context.Context, tx *sql.Tx) ([]string, error) {
	rows, err := tx.QueryContext(ctx, "SELECT hash FROM schema ORDER BY version")
	if err != nil {
		return nil, errors.Annotate(err, "reading schema versions")
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, errors.Trace(err)
		}
		hashes = append(hashes, hash)
	}
	return hashes, errors.Trace(rows.Err())
}
