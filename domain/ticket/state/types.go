// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"database/sql"
	"time"

	"github.com/juju/storefront/core/cart"
	"github.com/juju/storefront/core/product"
	"github.com/juju/storefront/core/ticket"
	"github.com/juju/storefront/core/user"
)

var statusIDs = map[ticket.Status]int{
	ticket.StatusPending:   0,
	ticket.StatusCompleted: 1,
	ticket.StatusCancelled: 2,
}

const (
	cartReservedID = 0
	cartPaidID     = 1
)

// ticketRow represents a single row from the ticket table, joined with its
// status name.
type ticketRow struct {
	UUID        string         `db:"uuid"`
	Code        string         `db:"code"`
	UserUUID    string         `db:"user_uuid"`
	CartUUID    sql.NullString `db:"cart_uuid"`
	TotalAmount int64          `db:"total_amount"`
	StatusID    int            `db:"status_id"`
	Status      string         `db:"status"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r ticketRow) toTicket(items []ticket.Item) ticket.Ticket {
	return ticket.Ticket{
		UUID:      ticket.UUID(r.UUID),
		Code:      r.Code,
		Owner:     user.UUID(r.UserUUID),
		Cart:      cart.UUID(r.CartUUID.String),
		Items:     items,
		Total:     r.TotalAmount,
		Status:    ticket.Status(r.Status),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// ticketItem represents a single row from the ticket_item table.
type ticketItem struct {
	TicketUUID   string `db:"ticket_uuid"`
	Position     int    `db:"position"`
	ProductUUID  string `db:"product_uuid"`
	ProductTitle string `db:"product_title"`
	Quantity     int    `db:"quantity"`
	Price        int64  `db:"price"`
}

func (r ticketItem) toItem() ticket.Item {
	return ticket.Item{
		ProductUUID: product.UUID(r.ProductUUID),
		Title:       r.ProductTitle,
		Quantity:    r.Quantity,
		Price:       r.Price,
	}
}

// productStock is the part of a product read when it is purchased.
type productStock struct {
	UUID  string `db:"uuid"`
	Title string `db:"title"`
	Price int64  `db:"price"`
	Stock int    `db:"stock"`
}

// stockDecrement removes quantity units from a product's stock, provided at
// least minimum units remain. SoldOutAt is the stock level at which the
// product becomes out of stock. Minimum and SoldOutAt always equal Quantity.
type stockDecrement struct {
	UUID      string    `db:"uuid"`
	Quantity  int       `db:"quantity"`
	Minimum   int       `db:"minimum"`
	SoldOutAt int       `db:"sold_out_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// stockIncrement returns quantity units to a product's stock.
type stockIncrement struct {
	UUID      string    `db:"uuid"`
	Quantity  int       `db:"quantity"`
	UpdatedAt time.Time `db:"updated_at"`
}

// cartRow is the part of a cart read when it is purchased.
type cartRow struct {
	UUID     string         `db:"uuid"`
	UserUUID sql.NullString `db:"user_uuid"`
	StateID  int            `db:"state_id"`
}

type cartItem struct {
	CartUUID    string `db:"cart_uuid"`
	ProductUUID string `db:"product_uuid"`
	Quantity    int    `db:"quantity"`
	Position    int    `db:"position"`
}

// cartUpdate marks a cart as paid.
type cartUpdate struct {
	UUID      string    `db:"uuid"`
	StateID   int       `db:"state_id"`
	UpdatedAt time.Time `db:"updated_at"`
}

// statusUpdate moves a ticket to a new status.
type statusUpdate struct {
	UUID      string    `db:"uuid"`
	StatusID  int       `db:"status_id"`
	UpdatedAt time.Time `db:"updated_at"`
}

type ticketUUID struct {
	UUID string `db:"uuid"`
}

type productUUID struct {
	UUID string `db:"uuid"`
}

type cartUUID struct {
	UUID string `db:"uuid"`
}

type userUUID struct {
	UUID string `db:"user_uuid"`
}
