// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package errors

import (
	"github.com/juju/errors"
)

const (
	// TicketNotFound describes an error that occurs when the ticket being
	// operated on does not exist.
	TicketNotFound = errors.ConstError("ticket not found")

	// UUIDNotValid describes an error when the ticket uuid is not valid.
	UUIDNotValid = errors.ConstError("ticket uuid not valid")

	// InsufficientStock describes an error that occurs when a product does
	// not have enough stock to satisfy a purchase.
	InsufficientStock = errors.ConstError("insufficient stock")

	// EmptyPurchase describes an error that occurs when a purchase names no
	// products.
	EmptyPurchase = errors.ConstError("no products to purchase")

	// ItemsNotValid describes an error that occurs when a purchase item has
	// an invalid product uuid or quantity.
	ItemsNotValid = errors.ConstError("purchase items not valid")

	// NotOwner describes an error that occurs when a user operates on a
	// cart or ticket that belongs to somebody else.
	NotOwner = errors.ConstError("not owner")

	// StatusChangeNotValid describes an error that occurs when a ticket
	// that is no longer pending is cancelled or completed.
	StatusChangeNotValid = errors.ConstError("ticket status change not valid")
)
