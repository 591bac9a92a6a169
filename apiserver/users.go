// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package apiserver

import (
	"net/http"

	"github.com/juju/errors"

	"github.com/juju/storefront/apiserver/authentication"
	"github.com/juju/storefront/apiserver/params"
	domainuser "github.com/juju/storefront/domain/user"
	"github.com/juju/storefront/internal/auth"
)

type usersHandler struct {
	server *Server
}

// register creates an unverified account and mails its verification code
// and link. A failure to send mail is logged and does not undo the
// registration.
func (h *usersHandler) register(w http.ResponseWriter, req *http.Request) error {
	var args params.RegisterArgs
	if err := decodeJSON(req, &args, false); err != nil {
		return errors.Trace(err)
	}

	ctx := req.Context()
	uuid, code, err := h.server.config.Users.Register(ctx, domainuser.RegisterArgs{
		Email:     args.Email,
		FirstName: args.FirstName,
		LastName:  args.LastName,
		Photo:     args.Photo,
		Password:  auth.NewPassword(args.Password),
	})
	if err != nil {
		return errors.Trace(err)
	}

	token, err := h.server.config.Tokens.IssueVerification(args.Email, code, h.server.config.VerificationTokenTTL)
	if err != nil {
		return errors.Annotatef(err, "issuing verification token for %q", args.Email)
	}
	link := h.server.config.FrontendURL + "/verify/" + token
	if err := h.server.config.Mailer.SendVerification(ctx, args.Email, code, link); err != nil {
		logger.Warningf("cannot send verification to user %q: %v", uuid, err)
	}

	return errors.Trace(sendStatusAndJSON(w, http.StatusCreated, params.StatusResult{
		Status:  "success",
		Message: "user registered, check your email to verify your account",
	}))
}

func (h *usersHandler) login(w http.ResponseWriter, req *http.Request) error {
	var args params.LoginArgs
	if err := decodeJSON(req, &args, false); err != nil {
		return errors.Trace(err)
	}
	if args.Email == "" || args.Password == "" {
		return errors.Annotate(errBadRequest, "email and password are required")
	}

	usr, err := h.server.config.Users.Login(req.Context(), args.Email, auth.NewPassword(args.Password))
	if err != nil {
		return errors.Trace(err)
	}
	token, err := h.server.config.Tokens.IssueAccess(usr.UUID, usr.Email, usr.Role, h.server.config.AccessTokenTTL)
	if err != nil {
		return errors.Annotatef(err, "issuing access token for %q", usr.Email)
	}
	return errors.Trace(sendStatusAndJSON(w, http.StatusOK, params.LoginResult{
		Message: "login successful",
		Token:   token,
		User:    toParamsUser(usr),
	}))
}

// logout acknowledges a logout. Access tokens are held by the client, which
// discards its token.
func (h *usersHandler) logout(w http.ResponseWriter, _ *http.Request) error {
	return errors.Trace(sendStatusAndJSON(w, http.StatusOK, params.StatusResult{
		Status:  "success",
		Message: "logged out",
	}))
}

func (h *usersHandler) verify(w http.ResponseWriter, req *http.Request) error {
	var args params.VerifyArgs
	if err := decodeJSON(req, &args, false); err != nil {
		return errors.Trace(err)
	}
	if err := h.server.config.Users.Verify(req.Context(), args.Email, args.Code); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(sendVerified(w))
}

func (h *usersHandler) verifyLink(w http.ResponseWriter, req *http.Request) error {
	claims, err := h.server.config.Tokens.Parse(pathParam(req, "token"), auth.PurposeVerify)
	if err != nil {
		return errors.Annotatef(errBadRequest, "verification link not valid: %v", err)
	}
	if err := h.server.config.Users.Verify(req.Context(), claims.Email, claims.Code); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(sendVerified(w))
}

func sendVerified(w http.ResponseWriter) error {
	return sendStatusAndJSON(w, http.StatusOK, params.StatusResult{
		Status:  "success",
		Message: "email verified",
	})
}

func (h *usersHandler) current(w http.ResponseWriter, req *http.Request, id authentication.Identity) error {
	usr, err := h.server.config.Users.GetUser(req.Context(), id.UUID)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(sendStatusAndJSON(w, http.StatusOK, toParamsUser(usr)))
}

func (h *usersHandler) forgotPassword(w http.ResponseWriter, req *http.Request) error {
	var args params.ForgotPasswordArgs
	if err := decodeJSON(req, &args, false); err != nil {
		return errors.Trace(err)
	}

	ctx := req.Context()
	usr, stamp, err := h.server.config.Users.GetUserResetStamp(ctx, args.Email)
	if err != nil {
		return errors.Trace(err)
	}
	token, err := h.server.config.Tokens.IssueReset(usr.Email, stamp, h.server.config.ResetTokenTTL)
	if err != nil {
		return errors.Annotatef(err, "issuing reset token for %q", usr.Email)
	}
	link := h.server.config.FrontendURL + "/reset-password/" + token
	if err := h.server.config.Mailer.SendPasswordReset(ctx, usr.Email, link); err != nil {
		return errors.Annotatef(err, "sending password reset to %q", usr.Email)
	}

	return errors.Trace(sendStatusAndJSON(w, http.StatusOK, params.StatusResult{
		Status:  "success",
		Message: "reset password email sent",
	}))
}

func (h *usersHandler) resetPassword(w http.ResponseWriter, req *http.Request) error {
	claims, err := h.server.config.Tokens.Parse(pathParam(req, "token"), auth.PurposeReset)
	if err != nil {
		return errors.Annotatef(errBadRequest, "reset link not valid: %v", err)
	}
	var args params.ResetPasswordArgs
	if err := decodeJSON(req, &args, false); err != nil {
		return errors.Trace(err)
	}

	ctx := req.Context()
	usr, stamp, err := h.server.config.Users.GetUserResetStamp(ctx, claims.Email)
	if err != nil {
		return errors.Trace(err)
	}
	// The password has changed since the link was issued.
	if claims.Stamp != stamp {
		return errors.Annotate(errBadRequest, "reset link already used")
	}
	if err := h.server.config.Users.SetPassword(ctx, usr.UUID, auth.NewPassword(args.Password)); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(sendStatusAndJSON(w, http.StatusOK, params.StatusResult{
		Status:  "success",
		Message: "password updated",
	}))
}
