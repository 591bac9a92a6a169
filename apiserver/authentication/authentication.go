// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package authentication resolves the bearer tokens presented with API
// requests into the identity of a verified user.
package authentication

import (
	"context"
	"net/http"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	apiservererrors "github.com/juju/storefront/apiserver/errors"
	"github.com/juju/storefront/core/user"
	usererrors "github.com/juju/storefront/domain/user/errors"
	"github.com/juju/storefront/internal/auth"
)

var logger = loggo.GetLogger("storefront.apiserver.authentication")

// TokenParser parses signed tokens.
type TokenParser interface {
	Parse(raw string, purpose auth.Purpose) (auth.Claims, error)
}

// UserService is used to resolve the subject of a token.
type UserService interface {
	GetUser(context.Context, user.UUID) (user.User, error)
}

// Identity is the authenticated user making a request.
type Identity struct {
	UUID  user.UUID
	Email string
	Role  user.Role
}

// IsAdmin reports whether the identity has the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role.IsAdmin()
}

// Authenticator checks access tokens.
type Authenticator struct {
	tokens TokenParser
	users  UserService
}

// NewAuthenticator returns an Authenticator that checks tokens with the
// parser and resolves their subject through the user service.
func NewAuthenticator(tokens TokenParser, users UserService) *Authenticator {
	return &Authenticator{
		tokens: tokens,
		users:  users,
	}
}

// Authenticate returns the identity of the access token. The role of the
// identity is read from the user, not the token, so that role changes take
// effect immediately.
//
// The following error types are possible from this function:
// - apiservererrors.ErrUnauthorized: When the token is missing, not valid,
// expired, or not an access token.
// - apiservererrors.ErrPerm: When the subject of the token no longer
// exists or is not verified.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, errors.Annotate(apiservererrors.ErrUnauthorized, "no token")
	}
	claims, err := a.tokens.Parse(token, auth.PurposeAccess)
	if err != nil {
		logger.Debugf("rejecting token: %v", err)
		return Identity{}, errors.Annotate(apiservererrors.ErrUnauthorized, "token not valid")
	}

	uuid := user.UUID(claims.Subject)
	if err := uuid.Validate(); err != nil {
		return Identity{}, errors.Annotate(apiservererrors.ErrUnauthorized, "token subject not valid")
	}

	usr, err := a.users.GetUser(ctx, uuid)
	if errors.Is(err, usererrors.NotFound) {
		return Identity{}, errors.Annotatef(apiservererrors.ErrPerm, "user %q no longer exists", uuid)
	} else if err != nil {
		return Identity{}, errors.Annotatef(err, "getting user %q", uuid)
	}
	if !usr.Verified {
		return Identity{}, errors.Annotatef(apiservererrors.ErrPerm, "user %q not verified", uuid)
	}

	return Identity{
		UUID:  usr.UUID,
		Email: usr.Email,
		Role:  usr.Role,
	}, nil
}

// AuthorizeAdmin returns an error satisfying apiservererrors.ErrPerm unless
// the identity is an admin.
func AuthorizeAdmin(id Identity) error {
	if !id.IsAdmin() {
		return errors.Annotatef(apiservererrors.ErrPerm, "user %q is not an admin", id.Email)
	}
	return nil
}

// AuthorizeOwnerOrAdmin returns an error satisfying apiservererrors.ErrPerm
// unless the identity owns the resource or is an admin.
func AuthorizeOwnerOrAdmin(id Identity, owner user.UUID) error {
	if id.IsAdmin() || id.UUID == owner {
		return nil
	}
	return errors.Annotatef(apiservererrors.ErrPerm, "user %q is not the owner", id.Email)
}

// TokenFromRequest returns the bearer token of the request. The token is
// read from the Authorization header, falling back to the token query
// parameter for clients, such as browsers opening a websocket, that cannot
// set headers.
func TokenFromRequest(req *http.Request) string {
	header := req.Header.Get("Authorization")
	if header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return req.URL.Query().Get("token")
}
