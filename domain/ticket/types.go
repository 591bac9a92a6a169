// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package ticket

import (
	"time"

	"github.com/juju/storefront/core/cart"
	"github.com/juju/storefront/core/product"
	"github.com/juju/storefront/core/ticket"
	"github.com/juju/storefront/core/user"
)

// PurchaseItem is a single product and quantity requested by a purchase.
type PurchaseItem struct {
	ProductUUID product.UUID
	Quantity    int
}

// PurchaseArgs holds everything the state needs to record a purchase. Code
// and UUID are generated by the caller.
type PurchaseArgs struct {
	UUID  ticket.UUID
	Code  string
	Owner user.UUID
	Items []PurchaseItem
	Now   time.Time
}

// PurchaseCartArgs holds everything the state needs to purchase the line
// items of a cart.
type PurchaseCartArgs struct {
	UUID  ticket.UUID
	Code  string
	Owner user.UUID
	Cart  cart.UUID
	Now   time.Time
}
