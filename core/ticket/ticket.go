// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package ticket

import (
	"time"

	"github.com/juju/storefront/core/cart"
	"github.com/juju/storefront/core/product"
	"github.com/juju/storefront/core/user"
)

// Status is the status of a purchase ticket.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// IsValid reports whether the status is a known ticket status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Item is a snapshot of one purchased product. Title and Price are copied
// from the product at purchase time.
type Item struct {
	ProductUUID product.UUID
	Title       string
	Quantity    int
	Price       int64
}

// Subtotal returns the price of the item at purchase time.
func (i Item) Subtotal() int64 {
	return i.Price * int64(i.Quantity)
}

// Ticket is the immutable record of a purchase.
type Ticket struct {
	UUID  UUID
	Code  string
	Owner user.UUID
	// Cart is empty unless the ticket was purchased from a cart.
	Cart      cart.UUID
	Items     []Item
	Total     int64
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}
