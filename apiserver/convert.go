// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package apiserver

import (
	"github.com/juju/storefront/apiserver/params"
	"github.com/juju/storefront/core/cart"
	"github.com/juju/storefront/core/product"
	"github.com/juju/storefront/core/ticket"
	"github.com/juju/storefront/core/user"
	domaincart "github.com/juju/storefront/domain/cart"
	"github.com/juju/storefront/domain/catalog"
)

func toParamsProduct(p product.Product) params.Product {
	thumbnails := p.Thumbnails
	if thumbnails == nil {
		thumbnails = []string{}
	}
	return params.Product{
		ID:          p.UUID.String(),
		Code:        p.Code,
		Title:       p.Title,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		Category:    string(p.Category),
		Status:      string(p.Status),
		Image:       p.Image,
		Thumbnails:  thumbnails,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toParamsProducts(products []product.Product) []params.Product {
	result := make([]params.Product, len(products))
	for i, p := range products {
		result[i] = toParamsProduct(p)
	}
	return result
}

func toCreateProductArgs(args params.ProductArgs) catalog.CreateProductArgs {
	var result catalog.CreateProductArgs
	if args.Code != nil {
		result.Code = *args.Code
	}
	if args.Title != nil {
		result.Title = *args.Title
	}
	if args.Description != nil {
		result.Description = *args.Description
	}
	if args.Price != nil {
		result.Price = *args.Price
	}
	if args.Stock != nil {
		result.Stock = *args.Stock
	}
	if args.Category != nil {
		result.Category = product.Category(*args.Category)
	}
	if args.Status != nil {
		result.Status = product.Status(*args.Status)
	}
	if args.Image != nil {
		result.Image = *args.Image
	}
	if args.Thumbnails != nil {
		result.Thumbnails = *args.Thumbnails
	}
	return result
}

func toUpdateProductArgs(args params.ProductArgs) catalog.UpdateProductArgs {
	result := catalog.UpdateProductArgs{
		Code:        args.Code,
		Title:       args.Title,
		Description: args.Description,
		Price:       args.Price,
		Stock:       args.Stock,
		Image:       args.Image,
		Thumbnails:  args.Thumbnails,
	}
	if args.Category != nil {
		category := product.Category(*args.Category)
		result.Category = &category
	}
	if args.Status != nil {
		status := product.Status(*args.Status)
		result.Status = &status
	}
	return result
}

func toParamsCartItems(items []cart.Item) []params.CartItem {
	result := make([]params.CartItem, len(items))
	for i, item := range items {
		result[i] = params.CartItem{
			Product:  item.ProductUUID.String(),
			Quantity: item.Quantity,
		}
	}
	return result
}

func toParamsCart(c cart.Cart) params.Cart {
	return params.Cart{
		ID:        c.UUID.String(),
		Owner:     c.Owner.String(),
		State:     string(c.State),
		Products:  toParamsCartItems(c.Items),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func toParamsCartWithProducts(c domaincart.CartWithProducts) params.CartWithProducts {
	products := make([]params.CartProduct, len(c.Products))
	for i, item := range c.Products {
		products[i] = params.CartProduct{
			Product:  toParamsProduct(item.Product),
			Quantity: item.Quantity,
			Subtotal: item.Subtotal(),
		}
	}
	return params.CartWithProducts{
		ID:       c.UUID.String(),
		Owner:    c.Owner.String(),
		State:    string(c.State),
		Products: products,
		Total:    c.Total(),
	}
}

func toParamsTicket(t ticket.Ticket) params.Ticket {
	items := make([]params.TicketItem, len(t.Items))
	for i, item := range t.Items {
		items[i] = params.TicketItem{
			ProductID: item.ProductUUID.String(),
			Title:     item.Title,
			Quantity:  item.Quantity,
			Price:     item.Price,
		}
	}
	return params.Ticket{
		ID:          t.UUID.String(),
		Code:        t.Code,
		User:        t.Owner.String(),
		Cart:        t.Cart.String(),
		Products:    items,
		TotalAmount: t.Total,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func toParamsUser(u user.User) params.User {
	return params.User{
		ID:        u.UUID.String(),
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role.String(),
		Photo:     u.Photo,
		Verified:  u.Verified,
		CreatedAt: u.CreatedAt,
	}
}
