// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package cart

import (
	"time"

	"github.com/juju/storefront/core/product"
	"github.com/juju/storefront/core/user"
)

// State is the lifecycle state of a cart. A cart only ever moves forward
// through reserved, paid and delivered.
type State string

const (
	StateReserved  State = "reserved"
	StatePaid      State = "paid"
	StateDelivered State = "delivered"
)

var stateOrder = map[State]int{
	StateReserved:  0,
	StatePaid:      1,
	StateDelivered: 2,
}

// IsValid reports whether the state is a known cart state.
func (s State) IsValid() bool {
	_, ok := stateOrder[s]
	return ok
}

// CanAdvanceTo reports whether a cart in this state may move to next.
func (s State) CanAdvanceTo(next State) bool {
	from, ok := stateOrder[s]
	if !ok {
		return false
	}
	to, ok := stateOrder[next]
	return ok && to > from
}

// MaxQuantity is the largest quantity a single line item may hold.
const MaxQuantity = 10000

// Item is a single line of a cart. A product appears at most once per cart.
type Item struct {
	ProductUUID product.UUID
	Quantity    int
}

// Cart is an ordered collection of line items. Items keep the order in which
// their product was first added.
type Cart struct {
	UUID UUID
	// Owner is empty for anonymous carts.
	Owner     user.UUID
	State     State
	Items     []Item
	CreatedAt time.Time
	UpdatedAt time.Time
}
