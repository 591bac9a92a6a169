// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package errors

import (
	"net/http"

	"github.com/juju/errors"

	"github.com/juju/storefront/apiserver/params"
	carterrors "github.com/juju/storefront/domain/cart/errors"
	catalogerrors "github.com/juju/storefront/domain/catalog/errors"
	ticketerrors "github.com/juju/storefront/domain/ticket/errors"
	usererrors "github.com/juju/storefront/domain/user/errors"
	"github.com/juju/storefront/internal/auth"
)

const (
	// ErrUnauthorized is returned when a request carries no credentials, or
	// credentials that cannot be verified.
	ErrUnauthorized = errors.ConstError("unauthorized")

	// ErrPerm is returned when an authenticated user may not perform the
	// requested operation.
	ErrPerm = errors.ConstError("permission denied")

	// ErrBadRequest is returned when a request body or parameter cannot be
	// decoded.
	ErrBadRequest = errors.ConstError("bad request")
)

// Error codes sent to clients in the error-code field of an error body.
const (
	CodeNotFound          = "not found"
	CodeInvalidArgument   = "invalid argument"
	CodeInsufficientStock = "insufficient stock"
	CodeUnauthorized      = "unauthorized"
	CodeForbidden         = "forbidden"
	CodeConflict          = "conflict"
	CodeInternal          = "internal error"
)

var notFound = []error{
	catalogerrors.ProductNotFound,
	carterrors.CartNotFound,
	carterrors.ItemNotFound,
	ticketerrors.TicketNotFound,
	usererrors.NotFound,
	errors.NotFound,
}

var invalidArgument = []error{
	ErrBadRequest,
	catalogerrors.ProductNotValid,
	catalogerrors.UUIDNotValid,
	catalogerrors.ListArgsNotValid,
	carterrors.QuantityNotValid,
	carterrors.ItemsNotValid,
	carterrors.UUIDNotValid,
	ticketerrors.UUIDNotValid,
	ticketerrors.EmptyPurchase,
	ticketerrors.ItemsNotValid,
	usererrors.UUIDNotValid,
	usererrors.EmailNotValid,
	usererrors.DetailsNotValid,
	usererrors.AlreadyVerified,
	usererrors.CodeNotValid,
	auth.ErrPasswordNotValid,
	errors.NotValid,
}

var unauthorized = []error{
	ErrUnauthorized,
	usererrors.InvalidCredentials,
	usererrors.NotVerified,
	auth.ErrTokenNotValid,
}

var forbidden = []error{
	ErrPerm,
	ticketerrors.NotOwner,
}

var conflict = []error{
	catalogerrors.ProductAlreadyExists,
	usererrors.AlreadyExists,
	carterrors.CartNotReserved,
	carterrors.StateChangeNotValid,
	ticketerrors.StatusChangeNotValid,
}

// ServerError returns the params.Error sent to clients for err. Errors that
// are not part of the stable taxonomy are reported as internal errors
// without their message.
func ServerError(err error) *params.Error {
	if err == nil {
		return nil
	}
	code := ErrCode(err)
	if code == CodeInternal {
		return &params.Error{
			Message: "internal server error",
			Code:    code,
		}
	}
	return &params.Error{
		Message: err.Error(),
		Code:    code,
	}
}

// ErrCode returns the error code of err.
func ErrCode(err error) string {
	switch {
	case isAny(err, unauthorized):
		return CodeUnauthorized
	case isAny(err, forbidden):
		return CodeForbidden
	case errors.Is(err, ticketerrors.InsufficientStock):
		return CodeInsufficientStock
	case isAny(err, notFound):
		return CodeNotFound
	case isAny(err, conflict):
		return CodeConflict
	case isAny(err, invalidArgument):
		return CodeInvalidArgument
	default:
		return CodeInternal
	}
}

// ServerErrorAndStatus is like ServerError but also returns the HTTP status
// code appropriate for the error.
func ServerErrorAndStatus(err error) (*params.Error, int) {
	perr := ServerError(err)
	if perr == nil {
		return nil, http.StatusOK
	}
	var status int
	switch perr.Code {
	case CodeNotFound:
		status = http.StatusNotFound
	case CodeInvalidArgument, CodeInsufficientStock:
		status = http.StatusBadRequest
	case CodeUnauthorized:
		status = http.StatusUnauthorized
	case CodeForbidden:
		status = http.StatusForbidden
	case CodeConflict:
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
	}
	return perr, status
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
