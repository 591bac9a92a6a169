// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package errors

import (
	"github.com/juju/errors"
)

const (
	// CartNotFound describes an error that occurs when the cart being
	// operated on does not exist.
	CartNotFound = errors.ConstError("cart not found")

	// ItemNotFound describes an error that occurs when a product is not a
	// line item of the cart.
	ItemNotFound = errors.ConstError("product not in cart")

	// QuantityNotValid describes an error that occurs when a line item
	// quantity is less than one.
	QuantityNotValid = errors.ConstError("quantity not valid")

	// ItemsNotValid describes an error that occurs when a replacement set of
	// line items is malformed, such as naming a product twice.
	ItemsNotValid = errors.ConstError("cart items not valid")

	// UUIDNotValid describes an error when the cart uuid is not valid.
	UUIDNotValid = errors.ConstError("cart uuid not valid")

	// CartNotReserved describes an error that occurs when the line items of
	// a cart that has been paid or delivered are changed.
	CartNotReserved = errors.ConstError("cart is not reserved")

	// StateChangeNotValid describes an error that occurs when a cart is
	// moved backwards, or to an unknown state.
	StateChangeNotValid = errors.ConstError("cart state change not valid")
)
