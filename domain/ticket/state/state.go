// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"context"
	"database/sql"
	"math"
	"time"

	"github.com/canonical/sqlair"
	"github.com/juju/errors"

	"github.com/juju/storefront/core/database"
	"github.com/juju/storefront/core/product"
	"github.com/juju/storefront/core/ticket"
	"github.com/juju/storefront/core/user"
	"github.com/juju/storefront/domain"
	carterrors "github.com/juju/storefront/domain/cart/errors"
	catalogerrors "github.com/juju/storefront/domain/catalog/errors"
	domainticket "github.com/juju/storefront/domain/ticket"
	ticketerrors "github.com/juju/storefront/domain/ticket/errors"
	databaseutils "github.com/juju/storefront/internal/database"
)

// State represents a type for interacting with the underlying state.
type State struct {
	*domain.StateBase
}

// NewState returns a new State for interacting with the underlying state.
func NewState(factory database.TxnRunnerFactory) *State {
	return &State{
		StateBase: domain.NewStateBase(factory),
	}
}

// Purchase decrements the stock of every requested product and records a
// pending ticket for the owner. Either every decrement is applied and the
// ticket is recorded, or nothing changes.
//
// The following errors may be returned:
// - catalogerrors.ProductNotFound: when any product does not exist.
// - ticketerrors.InsufficientStock: when any product does not have enough
// stock.
// - ticketerrors.ItemsNotValid: when the ticket total does not fit in an
// int64.
func (st *State) Purchase(ctx context.Context, args domainticket.PurchaseArgs) (ticket.Ticket, error) {
	db, err := st.DB()
	if err != nil {
		return ticket.Ticket{}, errors.Annotate(err, "getting DB access")
	}

	var result ticket.Ticket
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		result, err = st.purchase(ctx, tx, args.UUID, args.Code, args.Owner, sql.NullString{}, args.Items, args.Now)
		return errors.Trace(err)
	})
	if err != nil {
		return ticket.Ticket{}, errors.Trace(err)
	}
	return result, nil
}

// PurchaseCart purchases the line items of a reserved cart and marks the
// cart as paid, all in one transaction.
//
// The following errors may be returned:
// - carterrors.CartNotFound: when the cart does not exist.
// - ticketerrors.NotOwner: when the cart belongs to another user.
// - carterrors.CartNotReserved: when the cart has already been paid.
// - ticketerrors.EmptyPurchase: when the cart has no line items.
// - catalogerrors.ProductNotFound: when any product does not exist.
// - ticketerrors.InsufficientStock: when any product does not have enough
// stock.
func (st *State) PurchaseCart(ctx context.Context, args domainticket.PurchaseCartArgs) (ticket.Ticket, error) {
	db, err := st.DB()
	if err != nil {
		return ticket.Ticket{}, errors.Annotate(err, "getting DB access")
	}

	cartStmt, err := st.Prepare(`
SELECT &cartRow.*
FROM   cart
WHERE  uuid = $cartUUID.uuid
`, cartRow{}, cartUUID{})
	if err != nil {
		return ticket.Ticket{}, errors.Annotate(err, "preparing select cart query")
	}
	itemsStmt, err := st.Prepare(`
SELECT &cartItem.*
FROM   cart_item
WHERE  cart_uuid = $cartUUID.uuid
ORDER BY position
`, cartItem{}, cartUUID{})
	if err != nil {
		return ticket.Ticket{}, errors.Annotate(err, "preparing select cart items query")
	}
	paidStmt, err := st.Prepare(`
UPDATE cart
SET    state_id = $cartUpdate.state_id,
       updated_at = $cartUpdate.updated_at
WHERE  uuid = $cartUpdate.uuid
`, cartUpdate{})
	if err != nil {
		return ticket.Ticket{}, errors.Annotate(err, "preparing update cart query")
	}

	var result ticket.Ticket
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		var c cartRow
		err := tx.Query(ctx, cartStmt, cartUUID{UUID: args.Cart.String()}).Get(&c)
		if databaseutils.IsErrNotFound(err) {
			return errors.Annotatef(carterrors.CartNotFound, "%q", args.Cart)
		} else if err != nil {
			return errors.Annotatef(err, "selecting cart %q", args.Cart)
		}
		if c.UserUUID.Valid && c.UserUUID.String != args.Owner.String() {
			return errors.Annotatef(ticketerrors.NotOwner, "cart %q", args.Cart)
		}
		if c.StateID != cartReservedID {
			return errors.Annotatef(carterrors.CartNotReserved, "cart %q", args.Cart)
		}

		var rows []cartItem
		err = tx.Query(ctx, itemsStmt, cartUUID{UUID: args.Cart.String()}).GetAll(&rows)
		if err != nil && !databaseutils.IsErrNotFound(err) {
			return errors.Annotatef(err, "selecting items of cart %q", args.Cart)
		}
		if len(rows) == 0 {
			return errors.Annotatef(ticketerrors.EmptyPurchase, "cart %q is empty", args.Cart)
		}
		items := make([]domainticket.PurchaseItem, len(rows))
		for i, row := range rows {
			items[i] = domainticket.PurchaseItem{
				ProductUUID: product.UUID(row.ProductUUID),
				Quantity:    row.Quantity,
			}
		}

		cartID := sql.NullString{String: args.Cart.String(), Valid: true}
		result, err = st.purchase(ctx, tx, args.UUID, args.Code, args.Owner, cartID, items, args.Now)
		if err != nil {
			return errors.Trace(err)
		}

		update := cartUpdate{
			UUID:      args.Cart.String(),
			StateID:   cartPaidID,
			UpdatedAt: args.Now,
		}
		if err := tx.Query(ctx, paidStmt, update).Run(); err != nil {
			return errors.Annotatef(err, "marking cart %q as paid", args.Cart)
		}
		return nil
	})
	if err != nil {
		return ticket.Ticket{}, errors.Trace(err)
	}
	return result, nil
}

// CancelTicket cancels a pending ticket and returns the purchased units to
// stock. Products that have since been removed from the catalog are
// skipped.
//
// The following errors may be returned:
// - ticketerrors.TicketNotFound: when the ticket does not exist.
// - ticketerrors.StatusChangeNotValid: when the ticket is not pending.
func (st *State) CancelTicket(ctx context.Context, uuid ticket.UUID, now time.Time) (ticket.Ticket, error) {
	db, err := st.DB()
	if err != nil {
		return ticket.Ticket{}, errors.Annotate(err, "getting DB access")
	}

	restockStmt, err := st.Prepare(`
UPDATE product
SET    stock = stock + $stockIncrement.quantity,
       status = CASE WHEN status = 'out of stock' THEN 'available' ELSE status END,
       updated_at = $stockIncrement.updated_at
WHERE  uuid = $stockIncrement.uuid
`, stockIncrement{})
	if err != nil {
		return ticket.Ticket{}, errors.Annotate(err, "preparing restock query")
	}

	var result ticket.Ticket
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		t, err := st.getTicket(ctx, tx, uuid)
		if err != nil {
			return errors.Trace(err)
		}
		if t.Status != ticket.StatusPending {
			return errors.Annotatef(ticketerrors.StatusChangeNotValid, "ticket %q is %s", uuid, t.Status)
		}

		for _, item := range t.Items {
			inc := stockIncrement{
				UUID:      item.ProductUUID.String(),
				Quantity:  item.Quantity,
				UpdatedAt: now,
			}
			if err := tx.Query(ctx, restockStmt, inc).Run(); err != nil {
				return errors.Annotatef(err, "restocking product %q", item.ProductUUID)
			}
		}

		if err := st.setStatus(ctx, tx, uuid, ticket.StatusCancelled, now); err != nil {
			return errors.Trace(err)
		}
		t.Status = ticket.StatusCancelled
		t.UpdatedAt = now
		result = t
		return nil
	})
	if err != nil {
		return ticket.Ticket{}, errors.Trace(err)
	}
	return result, nil
}

// CompleteTicket marks a pending ticket as completed.
//
// The following errors may be returned:
// - ticketerrors.TicketNotFound: when the ticket does not exist.
// - ticketerrors.StatusChangeNotValid: when the ticket is not pending.
func (st *State) CompleteTicket(ctx context.Context, uuid ticket.UUID, now time.Time) (ticket.Ticket, error) {
	db, err := st.DB()
	if err != nil {
		return ticket.Ticket{}, errors.Annotate(err, "getting DB access")
	}

	var result ticket.Ticket
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		t, err := st.getTicket(ctx, tx, uuid)
		if err != nil {
			return errors.Trace(err)
		}
		if t.Status != ticket.StatusPending {
			return errors.Annotatef(ticketerrors.StatusChangeNotValid, "ticket %q is %s", uuid, t.Status)
		}
		if err := st.setStatus(ctx, tx, uuid, ticket.StatusCompleted, now); err != nil {
			return errors.Trace(err)
		}
		t.Status = ticket.StatusCompleted
		t.UpdatedAt = now
		result = t
		return nil
	})
	if err != nil {
		return ticket.Ticket{}, errors.Trace(err)
	}
	return result, nil
}

// GetTicket returns the ticket with its items. If the ticket does not exist
// an error satisfying ticketerrors.TicketNotFound is returned.
func (st *State) GetTicket(ctx context.Context, uuid ticket.UUID) (ticket.Ticket, error) {
	db, err := st.DB()
	if err != nil {
		return ticket.Ticket{}, errors.Annotate(err, "getting DB access")
	}

	var result ticket.Ticket
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		result, err = st.getTicket(ctx, tx, uuid)
		return errors.Trace(err)
	})
	if err != nil {
		return ticket.Ticket{}, errors.Trace(err)
	}
	return result, nil
}

// ListTicketsForUser returns every ticket owned by the user, oldest first.
func (st *State) ListTicketsForUser(ctx context.Context, owner user.UUID) ([]ticket.Ticket, error) {
	db, err := st.DB()
	if err != nil {
		return nil, errors.Annotate(err, "getting DB access")
	}

	stmt, err := st.Prepare(`
SELECT t.uuid AS &ticketRow.uuid,
       t.code AS &ticketRow.code,
       t.user_uuid AS &ticketRow.user_uuid,
       t.cart_uuid AS &ticketRow.cart_uuid,
       t.total_amount AS &ticketRow.total_amount,
       t.status_id AS &ticketRow.status_id,
       ts.name AS &ticketRow.status,
       t.created_at AS &ticketRow.created_at,
       t.updated_at AS &ticketRow.updated_at
FROM   ticket AS t
JOIN   ticket_status AS ts ON t.status_id = ts.id
WHERE  t.user_uuid = $userUUID.user_uuid
ORDER BY t.created_at, t.rowid
`, ticketRow{}, userUUID{})
	if err != nil {
		return nil, errors.Annotate(err, "preparing select tickets query")
	}

	var result []ticket.Ticket
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		var rows []ticketRow
		err := tx.Query(ctx, stmt, userUUID{UUID: owner.String()}).GetAll(&rows)
		if err != nil && !databaseutils.IsErrNotFound(err) {
			return errors.Annotatef(err, "selecting tickets of user %q", owner)
		}

		result = make([]ticket.Ticket, len(rows))
		for i, row := range rows {
			items, err := st.getItems(ctx, tx, row.UUID)
			if err != nil {
				return errors.Trace(err)
			}
			result[i] = row.toTicket(items)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return result, nil
}

// purchase applies the stock decrements for items in order and records the
// ticket. It must be called inside a transaction so that a failure on any
// item discards the decrements already applied.
func (st *State) purchase(
	ctx context.Context,
	tx *sqlair.TX,
	uuid ticket.UUID,
	code string,
	owner user.UUID,
	cartID sql.NullString,
	items []domainticket.PurchaseItem,
	now time.Time,
) (ticket.Ticket, error) {
	productStmt, err := st.Prepare(`
SELECT &productStock.*
FROM   product
WHERE  uuid = $productUUID.uuid
`, productStock{}, productUUID{})
	if err != nil {
		return ticket.Ticket{}, errors.Annotate(err, "preparing select product query")
	}
	decrementStmt, err := st.Prepare(`
UPDATE product
SET    stock = stock - $stockDecrement.quantity,
       status = CASE
           WHEN stock = $stockDecrement.sold_out_at AND status = 'available' THEN 'out of stock'
           ELSE status
       END,
       updated_at = $stockDecrement.updated_at
WHERE  uuid = $stockDecrement.uuid
AND    stock >= $stockDecrement.minimum
`, stockDecrement{})
	if err != nil {
		return ticket.Ticket{}, errors.Annotate(err, "preparing decrement stock query")
	}
	insertTicketStmt, err := st.Prepare(`
INSERT INTO ticket (uuid, code, user_uuid, cart_uuid, total_amount, status_id, created_at, updated_at)
VALUES ($ticketRow.uuid, $ticketRow.code, $ticketRow.user_uuid, $ticketRow.cart_uuid,
        $ticketRow.total_amount, $ticketRow.status_id, $ticketRow.created_at, $ticketRow.updated_at)
`, ticketRow{})
	if err != nil {
		return ticket.Ticket{}, errors.Annotate(err, "preparing insert ticket query")
	}
	insertItemStmt, err := st.Prepare(`
INSERT INTO ticket_item (ticket_uuid, position, product_uuid, product_title, quantity, price)
VALUES ($ticketItem.ticket_uuid, $ticketItem.position, $ticketItem.product_uuid,
        $ticketItem.product_title, $ticketItem.quantity, $ticketItem.price)
`, ticketItem{})
	if err != nil {
		return ticket.Ticket{}, errors.Annotate(err, "preparing insert ticket item query")
	}

	var total int64
	rows := make([]ticketItem, len(items))
	for i, item := range items {
		var p productStock
		err := tx.Query(ctx, productStmt, productUUID{UUID: item.ProductUUID.String()}).Get(&p)
		if databaseutils.IsErrNotFound(err) {
			return ticket.Ticket{}, errors.Annotatef(catalogerrors.ProductNotFound, "%q", item.ProductUUID)
		} else if err != nil {
			return ticket.Ticket{}, errors.Annotatef(err, "selecting product %q", item.ProductUUID)
		}
		if p.Stock < item.Quantity {
			return ticket.Ticket{}, errors.Annotatef(ticketerrors.InsufficientStock,
				"product %q has %d, wanted %d", item.ProductUUID, p.Stock, item.Quantity)
		}
		var ok bool
		if total, ok = addSubtotal(total, p.Price, item.Quantity); !ok {
			return ticket.Ticket{}, errors.Annotatef(ticketerrors.ItemsNotValid,
				"total overflows at product %q", item.ProductUUID)
		}

		dec := stockDecrement{
			UUID:      p.UUID,
			Quantity:  item.Quantity,
			Minimum:   item.Quantity,
			SoldOutAt: item.Quantity,
			UpdatedAt: now,
		}
		var outcome sqlair.Outcome
		if err := tx.Query(ctx, decrementStmt, dec).Get(&outcome); err != nil {
			return ticket.Ticket{}, errors.Annotatef(err, "decrementing stock of product %q", item.ProductUUID)
		}
		affected, err := outcome.Result().RowsAffected()
		if err != nil {
			return ticket.Ticket{}, errors.Trace(err)
		}
		if affected == 0 {
			return ticket.Ticket{}, errors.Annotatef(ticketerrors.InsufficientStock, "product %q", item.ProductUUID)
		}

		rows[i] = ticketItem{
			TicketUUID:   uuid.String(),
			Position:     i,
			ProductUUID:  p.UUID,
			ProductTitle: p.Title,
			Quantity:     item.Quantity,
			Price:        p.Price,
		}
	}

	row := ticketRow{
		UUID:        uuid.String(),
		Code:        code,
		UserUUID:    owner.String(),
		CartUUID:    cartID,
		TotalAmount: total,
		StatusID:    statusIDs[ticket.StatusPending],
		Status:      string(ticket.StatusPending),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.Query(ctx, insertTicketStmt, row).Run(); err != nil {
		return ticket.Ticket{}, errors.Annotatef(err, "inserting ticket %q", uuid)
	}

	result := make([]ticket.Item, len(rows))
	for i, r := range rows {
		if err := tx.Query(ctx, insertItemStmt, r).Run(); err != nil {
			return ticket.Ticket{}, errors.Annotatef(err, "inserting item %d of ticket %q", i, uuid)
		}
		result[i] = r.toItem()
	}
	return row.toTicket(result), nil
}

func (st *State) getTicket(ctx context.Context, tx *sqlair.TX, uuid ticket.UUID) (ticket.Ticket, error) {
	stmt, err := st.Prepare(`
SELECT t.uuid AS &ticketRow.uuid,
       t.code AS &ticketRow.code,
       t.user_uuid AS &ticketRow.user_uuid,
       t.cart_uuid AS &ticketRow.cart_uuid,
       t.total_amount AS &ticketRow.total_amount,
       t.status_id AS &ticketRow.status_id,
       ts.name AS &ticketRow.status,
       t.created_at AS &ticketRow.created_at,
       t.updated_at AS &ticketRow.updated_at
FROM   ticket AS t
JOIN   ticket_status AS ts ON t.status_id = ts.id
WHERE  t.uuid = $ticketUUID.uuid
`, ticketRow{}, ticketUUID{})
	if err != nil {
		return ticket.Ticket{}, errors.Annotate(err, "preparing select ticket query")
	}

	var row ticketRow
	err = tx.Query(ctx, stmt, ticketUUID{UUID: uuid.String()}).Get(&row)
	if databaseutils.IsErrNotFound(err) {
		return ticket.Ticket{}, errors.Annotatef(ticketerrors.TicketNotFound, "%q", uuid)
	} else if err != nil {
		return ticket.Ticket{}, errors.Annotatef(err, "selecting ticket %q", uuid)
	}

	items, err := st.getItems(ctx, tx, row.UUID)
	if err != nil {
		return ticket.Ticket{}, errors.Trace(err)
	}
	return row.toTicket(items), nil
}

func (st *State) getItems(ctx context.Context, tx *sqlair.TX, uuid string) ([]ticket.Item, error) {
	stmt, err := st.Prepare(`
SELECT &ticketItem.*
FROM   ticket_item
WHERE  ticket_uuid = $ticketUUID.uuid
ORDER BY position
`, ticketItem{}, ticketUUID{})
	if err != nil {
		return nil, errors.Annotate(err, "preparing select ticket items query")
	}

	var rows []ticketItem
	err = tx.Query(ctx, stmt, ticketUUID{UUID: uuid}).GetAll(&rows)
	if err != nil && !databaseutils.IsErrNotFound(err) {
		return nil, errors.Annotatef(err, "selecting items of ticket %q", uuid)
	}

	items := make([]ticket.Item, len(rows))
	for i, row := range rows {
		items[i] = row.toItem()
	}
	return items, nil
}

func (st *State) setStatus(ctx context.Context, tx *sqlair.TX, uuid ticket.UUID, status ticket.Status, now time.Time) error {
	stmt, err := st.Prepare(`
UPDATE ticket
SET    status_id = $statusUpdate.status_id,
       updated_at = $statusUpdate.updated_at
WHERE  uuid = $statusUpdate.uuid
`, statusUpdate{})
	if err != nil {
		return errors.Annotate(err, "preparing update ticket status query")
	}

	update := statusUpdate{
		UUID:      uuid.String(),
		StatusID:  statusIDs[status],
		UpdatedAt: now,
	}
	if err := tx.Query(ctx, stmt, update).Run(); err != nil {
		return errors.Annotatef(err, "setting status of ticket %q", uuid)
	}
	return nil
}

// addSubtotal adds price*quantity to total, reporting false if the result
// does not fit in an int64. Price and quantity are never negative.
func addSubtotal(total, price int64, quantity int) (int64, bool) {
	if price != 0 && int64(quantity) > (math.MaxInt64-total)/price {
		return 0, false
	}
	return total + price*int64(quantity), true
}
