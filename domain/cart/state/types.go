// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"database/sql"
	"time"

	"github.com/juju/storefront/core/cart"
	"github.com/juju/storefront/core/product"
	"github.com/juju/storefront/core/user"
)

var stateIDs = map[cart.State]int{
	cart.StateReserved:  0,
	cart.StatePaid:      1,
	cart.StateDelivered: 2,
}

// cartRow represents a single row from the cart table, joined with its
// state name.
type cartRow struct {
	UUID      string         `db:"uuid"`
	UserUUID  sql.NullString `db:"user_uuid"`
	StateID   int            `db:"state_id"`
	State     string         `db:"state"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (r cartRow) toCart(items []cart.Item) cart.Cart {
	return cart.Cart{
		UUID:      cart.UUID(r.UUID),
		Owner:     user.UUID(r.UserUUID.String),
		State:     cart.State(r.State),
		Items:     items,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// cartItem represents a single row from the cart_item table.
type cartItem struct {
	CartUUID    string `db:"cart_uuid"`
	ProductUUID string `db:"product_uuid"`
	Quantity    int    `db:"quantity"`
	Position    int    `db:"position"`
}

// cartProduct is a cart line item joined with its product.
type cartProduct struct {
	Quantity    int       `db:"quantity"`
	UUID        string    `db:"uuid"`
	Code        string    `db:"code"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Price       int64     `db:"price"`
	Stock       int       `db:"stock"`
	Category    string    `db:"category"`
	Status      string    `db:"status"`
	Image       string    `db:"image"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r cartProduct) toProduct(thumbnails []string) product.Product {
	return product.Product{
		UUID:        product.UUID(r.UUID),
		Code:        r.Code,
		Title:       r.Title,
		Description: r.Description,
		Price:       r.Price,
		Stock:       r.Stock,
		Category:    product.Category(r.Category),
		Status:      product.Status(r.Status),
		Image:       r.Image,
		Thumbnails:  thumbnails,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type productThumbnail struct {
	ProductUUID string `db:"product_uuid"`
	Position    int    `db:"position"`
	Path        string `db:"path"`
}

type cartUUID struct {
	UUID string `db:"uuid"`
}

type productUUID struct {
	UUID string `db:"uuid"`
}

type quantityLimit struct {
	Max int `db:"max"`
}

type nextPosition struct {
	Position int `db:"position"`
}

// cartUpdate touches a cart and optionally moves it to a new state.
type cartUpdate struct {
	UUID      string    `db:"uuid"`
	StateID   int       `db:"state_id"`
	UpdatedAt time.Time `db:"updated_at"`
}
