// Copyright 2023 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/juju/clock"
	"github.com/juju/errors"

	"github.com/juju/storefront/core/user"
	domainuser "github.com/juju/storefront/domain/user"
	usererrors "github.com/juju/storefront/domain/user/errors"
	"github.com/juju/storefront/internal/auth"
)

// State describes retrieval and persistence methods for user identity and
// authentication.
type State interface {
	// AddUser will add a new user to the database with the provided password
	// hash and verification code. If a user with the same email already
	// exists an error that satisfies usererrors.AlreadyExists will be
	// returned.
	AddUser(ctx context.Context, usr user.User, passwordHash, verificationCode string) error

	// GetUser will retrieve the user specified by UUID from the database. If
	// the user does not exist an error that satisfies usererrors.NotFound
	// will be returned.
	GetUser(context.Context, user.UUID) (user.User, error)

	// GetUserByEmail will retrieve the user with the email address. If the
	// user does not exist an error that satisfies usererrors.NotFound will
	// be returned.
	GetUserByEmail(context.Context, string) (user.User, error)

	// GetUserWithPasswordHash returns the user with the email address and
	// their password hash. If the user does not exist an error that
	// satisfies usererrors.NotFound will be returned.
	GetUserWithPasswordHash(context.Context, string) (user.User, string, error)

	// VerifyUser marks the user as verified if the code matches.
	VerifyUser(ctx context.Context, email, code string) error

	// SetPasswordHash sets the password hash of the user. If no user is
	// found for the supplied UUID an error is returned that satisfies
	// usererrors.NotFound.
	SetPasswordHash(context.Context, user.UUID, string) error
}

// Service provides the API for working with users.
type Service struct {
	st    State
	clock clock.Clock
}

// emailValidationRegex is the loose check applied to email addresses. The
// address must have a single @ and a dot somewhere in the domain.
const emailValidationRegex = `^[^@\s]+@[^@\s]+\.[^@\s]+$`

var validEmail = regexp.MustCompile(emailValidationRegex)

// NewService returns a new Service for interacting with the underlying user
// state.
func NewService(st State, clock clock.Clock) *Service {
	return &Service{
		st:    st,
		clock: clock,
	}
}

// ValidateEmail checks that the email address looks like one. If it does not
// an error is returned that satisfies usererrors.EmailNotValid.
func ValidateEmail(email string) error {
	if !validEmail.MatchString(email) {
		return errors.Annotatef(usererrors.EmailNotValid, "%q", email)
	}
	return nil
}

// Register adds a new, unverified user and returns their UUID together with
// the verification code they must confirm their email address with. The
// password passed to this function will have its Destroy() function called
// every time.
//
// The following error types are possible from this function:
// - usererrors.EmailNotValid: When the email address is not valid.
// - usererrors.DetailsNotValid: When a name is missing.
// - usererrors.AlreadyExists: When the email address is already registered.
// - internal/auth.ErrPasswordNotValid: If the password supplied is not valid.
func (s *Service) Register(ctx context.Context, args domainuser.RegisterArgs) (user.UUID, string, error) {
	defer args.Password.Destroy()

	usr, err := s.newUser(args, user.RoleUser)
	if err != nil {
		return "", "", errors.Trace(err)
	}

	code, err := auth.NewVerificationCode()
	if err != nil {
		return "", "", errors.Annotatef(err, "generating verification code for user %q", usr.Email)
	}

	pwHash, err := auth.HashPassword(args.Password)
	if err != nil {
		return "", "", errors.Annotatef(err, "hashing password for user %q", usr.Email)
	}

	if err := s.st.AddUser(ctx, usr, pwHash, code); err != nil {
		return "", "", errors.Annotatef(err, "adding user %q", usr.Email)
	}
	return usr.UUID, code, nil
}

// AddAdmin adds a verified administrator. It is used to seed the store.
// The password passed to this function will have its Destroy() function
// called every time.
//
// The following error types are possible from this function:
// - usererrors.EmailNotValid: When the email address is not valid.
// - usererrors.DetailsNotValid: When a name is missing.
// - usererrors.AlreadyExists: When the email address is already registered.
// - internal/auth.ErrPasswordNotValid: If the password supplied is not valid.
func (s *Service) AddAdmin(ctx context.Context, args domainuser.RegisterArgs) (user.UUID, error) {
	defer args.Password.Destroy()

	usr, err := s.newUser(args, user.RoleAdmin)
	if err != nil {
		return "", errors.Trace(err)
	}
	usr.Verified = true

	pwHash, err := auth.HashPassword(args.Password)
	if err != nil {
		return "", errors.Annotatef(err, "hashing password for user %q", usr.Email)
	}

	if err := s.st.AddUser(ctx, usr, pwHash, ""); err != nil {
		return "", errors.Annotatef(err, "adding admin %q", usr.Email)
	}
	return usr.UUID, nil
}

// Verify confirms the email address of a user with the code they were sent.
//
// The following error types are possible from this function:
// - usererrors.NotFound: When no user has the email address.
// - usererrors.AlreadyVerified: When the user is already verified.
// - usererrors.CodeNotValid: When the code does not match.
func (s *Service) Verify(ctx context.Context, email, code string) error {
	email = strings.TrimSpace(email)
	if err := ValidateEmail(email); err != nil {
		return errors.Trace(err)
	}
	if strings.TrimSpace(code) == "" {
		return errors.Annotatef(usererrors.CodeNotValid, "empty code for %q", email)
	}

	if err := s.st.VerifyUser(ctx, email, strings.TrimSpace(code)); err != nil {
		return errors.Annotatef(err, "verifying user %q", email)
	}
	return nil
}

// Login checks the credentials and returns the user they belong to. The
// password passed to this function will have its Destroy() function called
// every time.
//
// The following error types are possible from this function:
// - usererrors.InvalidCredentials: When the email is unknown or the password
// is wrong.
// - usererrors.NotVerified: When the credentials are correct but the user
// has not verified their email address.
func (s *Service) Login(ctx context.Context, email string, password auth.Password) (user.User, error) {
	defer password.Destroy()

	usr, hash, err := s.st.GetUserWithPasswordHash(ctx, strings.TrimSpace(email))
	if errors.Is(err, usererrors.NotFound) {
		return user.User{}, errors.Annotatef(usererrors.InvalidCredentials, "%q", email)
	} else if err != nil {
		return user.User{}, errors.Annotatef(err, "getting user %q", email)
	}

	err = auth.CheckPassword(password, hash)
	if errors.Is(err, auth.ErrPasswordMismatch) || errors.Is(err, auth.ErrPasswordNotValid) {
		return user.User{}, errors.Annotatef(usererrors.InvalidCredentials, "%q", email)
	} else if err != nil {
		return user.User{}, errors.Annotatef(err, "checking password for %q", email)
	}

	if !usr.Verified {
		return user.User{}, errors.Annotatef(usererrors.NotVerified, "%q", email)
	}
	return usr, nil
}

// GetUser will find and return the user with UUID. If there is no
// user for the UUID then an error that satisfies usererrors.NotFound will
// be returned.
func (s *Service) GetUser(ctx context.Context, uuid user.UUID) (user.User, error) {
	if err := uuid.Validate(); err != nil {
		return user.User{}, errors.Annotatef(usererrors.UUIDNotValid, "validating uuid %q", uuid)
	}

	usr, err := s.st.GetUser(ctx, uuid)
	if err != nil {
		return user.User{}, errors.Annotatef(err, "getting user for uuid %q", uuid)
	}
	return usr, nil
}

// GetUserByEmail will find and return the user with the email address. If
// there is no such user then an error that satisfies usererrors.NotFound
// will be returned.
func (s *Service) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	email = strings.TrimSpace(email)
	if err := ValidateEmail(email); err != nil {
		return user.User{}, errors.Trace(err)
	}

	usr, err := s.st.GetUserByEmail(ctx, email)
	if err != nil {
		return user.User{}, errors.Annotatef(err, "getting user %q", email)
	}
	return usr, nil
}

// GetUserResetStamp returns the user with the email address and the stamp
// of their current password. Reset tokens carry the stamp so that each one
// can set the password at most once.
//
// The following error types are possible from this function:
// - usererrors.EmailNotValid: When the email address is not valid.
// - usererrors.NotFound: When there is no user with the email address.
func (s *Service) GetUserResetStamp(ctx context.Context, email string) (user.User, string, error) {
	email = strings.TrimSpace(email)
	if err := ValidateEmail(email); err != nil {
		return user.User{}, "", errors.Trace(err)
	}

	usr, hash, err := s.st.GetUserWithPasswordHash(ctx, email)
	if err != nil {
		return user.User{}, "", errors.Annotatef(err, "getting user %q", email)
	}
	return usr, auth.PasswordStamp(hash), nil
}

// SetPassword changes the users password to the new value. The password
// passed to this function will have its Destroy() function called every
// time.
//
// The following error types are possible from this function:
// - usererrors.UUIDNotValid: When the UUID supplied is not valid.
// - usererrors.NotFound: If no user by the given UUID exists.
// - internal/auth.ErrPasswordDestroyed: If the supplied password has already
// been destroyed.
// - internal/auth.ErrPasswordNotValid: If the password supplied is not valid.
func (s *Service) SetPassword(ctx context.Context, uuid user.UUID, password auth.Password) error {
	defer password.Destroy()
	if err := uuid.Validate(); err != nil {
		return errors.Annotatef(usererrors.UUIDNotValid, "%q", uuid)
	}

	pwHash, err := auth.HashPassword(password)
	if err != nil {
		return errors.Annotatef(err, "hashing password for user with uuid %q", uuid)
	}

	if err = s.st.SetPasswordHash(ctx, uuid, pwHash); err != nil {
		return errors.Annotatef(err, "setting password for user with uuid %q", uuid)
	}
	return nil
}

func (s *Service) newUser(args domainuser.RegisterArgs, role user.Role) (user.User, error) {
	email := strings.TrimSpace(args.Email)
	if err := ValidateEmail(email); err != nil {
		return user.User{}, errors.Trace(err)
	}
	firstName := strings.TrimSpace(args.FirstName)
	if firstName == "" {
		return user.User{}, errors.Annotate(usererrors.DetailsNotValid, "first name is required")
	}
	lastName := strings.TrimSpace(args.LastName)
	if lastName == "" {
		return user.User{}, errors.Annotate(usererrors.DetailsNotValid, "last name is required")
	}
	if err := args.Password.Validate(); err != nil {
		return user.User{}, errors.Annotatef(err, "validating password for user %q", email)
	}

	uuid, err := user.NewUUID()
	if err != nil {
		return user.User{}, errors.Annotatef(err, "generating uuid for user %q", email)
	}

	photo := args.Photo
	if photo == "" {
		photo = user.DefaultPhoto
	}
	return user.User{
		UUID:      uuid,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Role:      role,
		Photo:     photo,
		CreatedAt: s.clock.Now().UTC(),
	}, nil
}
