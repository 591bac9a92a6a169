// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package cart

import (
	"github.com/juju/storefront/core/cart"
	"github.com/juju/storefront/core/product"
)

// ProductItem is a cart line item with its product resolved.
type ProductItem struct {
	Product  product.Product
	Quantity int
}

// Subtotal returns the price of the line item.
func (i ProductItem) Subtotal() int64 {
	return i.Product.Price * int64(i.Quantity)
}

// CartWithProducts is a cart whose line items have been joined against the
// catalog.
type CartWithProducts struct {
	cart.Cart
	Products []ProductItem
}

// Total returns the current price of every line item in the cart.
func (c CartWithProducts) Total() int64 {
	var total int64
	for _, item := range c.Products {
		total += item.Subtotal()
	}
	return total
}
