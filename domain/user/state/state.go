// Copyright 2023 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"context"
	"database/sql"

	"github.com/canonical/sqlair"
	"github.com/juju/errors"

	"github.com/juju/storefront/core/database"
	"github.com/juju/storefront/core/user"
	"github.com/juju/storefront/domain"
	usererrors "github.com/juju/storefront/domain/user/errors"
	databaseutils "github.com/juju/storefront/internal/database"
)

// State represents a type for interacting with the underlying state.
type State struct {
	*domain.StateBase
}

// NewState returns a new State for interacting with the underlying state.
func NewState(factory database.TxnRunnerFactory) *State {
	return &State{
		StateBase: domain.NewStateBase(factory),
	}
}

// AddUser will add a new user to the database with the provided password
// hash. A non-empty verification code is stored for the user to confirm
// their email address with. If a user with the same email already exists an
// error that satisfies usererrors.AlreadyExists will be returned.
func (st *State) AddUser(ctx context.Context, usr user.User, passwordHash, verificationCode string) error {
	db, err := st.DB()
	if err != nil {
		return errors.Annotate(err, "getting DB access")
	}

	addUserQuery := `
INSERT INTO user (uuid, email, first_name, last_name, password_hash, role, photo, verified, verification_code, created_at)
VALUES ($M.uuid, $M.email, $M.first_name, $M.last_name, $M.password_hash, $M.role, $M.photo, $M.verified, $M.verification_code, $M.created_at)
`
	insertAddUserStmt, err := st.Prepare(addUserQuery, sqlair.M{})
	if err != nil {
		return errors.Annotate(err, "preparing insert addUser query")
	}

	return db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		err := tx.Query(ctx, insertAddUserStmt, sqlair.M{
			"uuid":              usr.UUID.String(),
			"email":             usr.Email,
			"first_name":        usr.FirstName,
			"last_name":         usr.LastName,
			"password_hash":     passwordHash,
			"role":              usr.Role.String(),
			"photo":             usr.Photo,
			"verified":          usr.Verified,
			"verification_code": sql.NullString{String: verificationCode, Valid: verificationCode != ""},
			"created_at":        usr.CreatedAt,
		}).Run()
		if databaseutils.IsErrConstraintUnique(err) {
			return errors.Annotatef(usererrors.AlreadyExists, "adding user %q", usr.Email)
		} else if err != nil {
			return errors.Annotatef(err, "adding user %q", usr.Email)
		}
		return nil
	})
}

// GetUser will retrieve the user specified by UUID from the database.
// If the user does not exist an error that satisfies
// usererrors.NotFound will be returned.
func (st *State) GetUser(ctx context.Context, uuid user.UUID) (user.User, error) {
	db, err := st.DB()
	if err != nil {
		return user.User{}, errors.Annotate(err, "getting DB access")
	}

	getUserQuery := `
SELECT &User.*
FROM   user
WHERE  uuid = $M.uuid
`
	selectGetUserStmt, err := st.Prepare(getUserQuery, User{}, sqlair.M{})
	if err != nil {
		return user.User{}, errors.Annotate(err, "preparing select getUser query")
	}

	var usr user.User
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		var result User
		err := tx.Query(ctx, selectGetUserStmt, sqlair.M{"uuid": uuid.String()}).Get(&result)
		if databaseutils.IsErrNotFound(err) {
			return errors.Annotatef(usererrors.NotFound, "%q", uuid)
		} else if err != nil {
			return errors.Annotatef(err, "getting user with uuid %q", uuid)
		}

		usr = result.toCoreUser()
		return nil
	})
	if err != nil {
		return user.User{}, errors.Annotatef(err, "getting user with uuid %q", uuid)
	}
	return usr, nil
}

// GetUserByEmail will retrieve the user with the email address, ignoring
// case. If the user does not exist an error that satisfies
// usererrors.NotFound will be returned.
func (st *State) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	db, err := st.DB()
	if err != nil {
		return user.User{}, errors.Annotate(err, "getting DB access")
	}

	var usr user.User
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		result, err := st.getUserByEmail(ctx, tx, email)
		if err != nil {
			return errors.Trace(err)
		}
		usr = result.toCoreUser()
		return nil
	})
	if err != nil {
		return user.User{}, errors.Annotatef(err, "getting user %q", email)
	}
	return usr, nil
}

// GetUserWithPasswordHash returns the user with the email address along
// with their stored password hash. If the user does not exist an error that
// satisfies usererrors.NotFound will be returned.
func (st *State) GetUserWithPasswordHash(ctx context.Context, email string) (user.User, string, error) {
	db, err := st.DB()
	if err != nil {
		return user.User{}, "", errors.Annotate(err, "getting DB access")
	}

	var (
		usr  user.User
		hash string
	)
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		result, err := st.getUserByEmail(ctx, tx, email)
		if err != nil {
			return errors.Trace(err)
		}
		usr = result.toCoreUser()
		hash = result.PasswordHash
		return nil
	})
	if err != nil {
		return user.User{}, "", errors.Annotatef(err, "getting user %q", email)
	}
	return usr, hash, nil
}

// VerifyUser marks the user with the email address as verified if code
// matches their stored verification code.
//
// The following errors may be returned:
// - usererrors.NotFound: when no user has the email address.
// - usererrors.AlreadyVerified: when the user is already verified.
// - usererrors.CodeNotValid: when the code does not match.
func (st *State) VerifyUser(ctx context.Context, email, code string) error {
	db, err := st.DB()
	if err != nil {
		return errors.Annotate(err, "getting DB access")
	}

	verifyUserQuery := `
UPDATE user
SET    verified = TRUE,
       verification_code = NULL
WHERE  uuid = $M.uuid
`
	updateVerifyUserStmt, err := st.Prepare(verifyUserQuery, sqlair.M{})
	if err != nil {
		return errors.Annotate(err, "preparing update verifyUser query")
	}

	return db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		result, err := st.getUserByEmail(ctx, tx, email)
		if err != nil {
			return errors.Trace(err)
		}
		if result.Verified {
			return errors.Annotatef(usererrors.AlreadyVerified, "%q", email)
		}
		if !result.VerificationCode.Valid || result.VerificationCode.String != code {
			return errors.Annotatef(usererrors.CodeNotValid, "verifying %q", email)
		}

		if err := tx.Query(ctx, updateVerifyUserStmt, sqlair.M{"uuid": result.UUID}).Run(); err != nil {
			return errors.Annotatef(err, "verifying user %q", email)
		}
		return nil
	})
}

// SetPasswordHash sets the password hash of the user. If no user is found
// for the supplied UUID an error is returned that satisfies
// usererrors.NotFound.
func (st *State) SetPasswordHash(ctx context.Context, uuid user.UUID, passwordHash string) error {
	db, err := st.DB()
	if err != nil {
		return errors.Annotate(err, "getting DB access")
	}

	setPasswordHashQuery := `
UPDATE user
SET    password_hash = $M.password_hash
WHERE  uuid = $M.uuid
`
	updateSetPasswordHashStmt, err := st.Prepare(setPasswordHashQuery, sqlair.M{})
	if err != nil {
		return errors.Annotate(err, "preparing update setPasswordHash query")
	}

	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		outcome := sqlair.Outcome{}
		err := tx.Query(ctx, updateSetPasswordHashStmt, sqlair.M{
			"uuid":          uuid.String(),
			"password_hash": passwordHash,
		}).Get(&outcome)
		if err != nil {
			return errors.Annotatef(err, "setting password hash for user with uuid %q", uuid)
		}

		if affected, err := outcome.Result().RowsAffected(); err != nil {
			return errors.Annotatef(err, "determining results of setting password for user with uuid %q", uuid)
		} else if affected != 1 {
			return errors.Annotatef(usererrors.NotFound, "setting password for user with uuid %q", uuid)
		}
		return nil
	})
	if err != nil {
		return errors.Annotatef(err, "setting password for user with uuid %q", uuid)
	}
	return nil
}

func (st *State) getUserByEmail(ctx context.Context, tx *sqlair.TX, email string) (User, error) {
	getUserByEmailQuery := `
SELECT &User.*
FROM   user
WHERE  email = $M.email COLLATE NOCASE
`
	selectGetUserByEmailStmt, err := st.Prepare(getUserByEmailQuery, User{}, sqlair.M{})
	if err != nil {
		return User{}, errors.Annotate(err, "preparing select getUserByEmail query")
	}

	var result User
	err = tx.Query(ctx, selectGetUserByEmailStmt, sqlair.M{"email": email}).Get(&result)
	if databaseutils.IsErrNotFound(err) {
		return User{}, errors.Annotatef(usererrors.NotFound, "%q", email)
	} else if err != nil {
		return User{}, errors.Annotatef(err, "getting user %q", email)
	}
	return result, nil
}
