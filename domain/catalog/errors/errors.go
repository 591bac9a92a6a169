// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package errors

import (
	"github.com/juju/errors"
)

const (
	// ProductNotFound describes an error that occurs when the product being
	// operated on does not exist.
	ProductNotFound = errors.ConstError("product not found")

	// ProductAlreadyExists describes an error that occurs when a product with
	// the same code already exists.
	ProductAlreadyExists = errors.ConstError("product already exists")

	// ProductNotValid describes an error that occurs when the product
	// arguments fail validation.
	ProductNotValid = errors.ConstError("product not valid")

	// UUIDNotValid describes an error when the product uuid is not valid.
	UUIDNotValid = errors.ConstError("product uuid not valid")

	// ListArgsNotValid describes an error that occurs when the pagination or
	// sorting arguments of a listing are not valid.
	ListArgsNotValid = errors.ConstError("list arguments not valid")
)
