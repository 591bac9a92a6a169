// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"context"
	"database/sql"
	"time"

	"github.com/canonical/sqlair"
	"github.com/juju/errors"

	"github.com/juju/storefront/core/cart"
	"github.com/juju/storefront/core/database"
	"github.com/juju/storefront/core/product"
	"github.com/juju/storefront/core/user"
	"github.com/juju/storefront/domain"
	domaincart "github.com/juju/storefront/domain/cart"
	carterrors "github.com/juju/storefront/domain/cart/errors"
	catalogerrors "github.com/juju/storefront/domain/catalog/errors"
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

// CreateCart adds a new, empty, reserved cart. The owner may be empty for an
// anonymous cart.
func (st *State) CreateCart(ctx context.Context, uuid cart.UUID, owner user.UUID, now time.Time) error {
	db, err := st.DB()
	if err != nil {
		return errors.Annotate(err, "getting DB access")
	}

	insertStmt, err := st.Prepare(`
INSERT INTO cart (uuid, user_uuid, state_id, created_at, updated_at)
VALUES ($cartRow.uuid, $cartRow.user_uuid, $cartRow.state_id, $cartRow.created_at, $cartRow.updated_at)
`, cartRow{})
	if err != nil {
		return errors.Annotate(err, "preparing insert cart query")
	}

	row := cartRow{
		UUID:      uuid.String(),
		UserUUID:  sql.NullString{String: owner.String(), Valid: owner != ""},
		StateID:   stateIDs[cart.StateReserved],
		CreatedAt: now,
		UpdatedAt: now,
	}
	return db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		if err := tx.Query(ctx, insertStmt, row).Run(); err != nil {
			return errors.Annotatef(err, "inserting cart %q", uuid)
		}
		return nil
	})
}

// GetCart returns the cart and its line items in insertion order. If the
// cart does not exist an error satisfying carterrors.CartNotFound is
// returned.
func (st *State) GetCart(ctx context.Context, uuid cart.UUID) (cart.Cart, error) {
	db, err := st.DB()
	if err != nil {
		return cart.Cart{}, errors.Annotate(err, "getting DB access")
	}

	var result cart.Cart
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		row, err := st.getCart(ctx, tx, uuid)
		if err != nil {
			return errors.Trace(err)
		}
		items, err := st.getItems(ctx, tx, uuid)
		if err != nil {
			return errors.Trace(err)
		}
		result = row.toCart(items)
		return nil
	})
	if err != nil {
		return cart.Cart{}, errors.Trace(err)
	}
	return result, nil
}

// GetCartWithProducts returns the cart with each line item joined against
// its product. If the cart does not exist an error satisfying
// carterrors.CartNotFound is returned.
func (st *State) GetCartWithProducts(ctx context.Context, uuid cart.UUID) (domaincart.CartWithProducts, error) {
	db, err := st.DB()
	if err != nil {
		return domaincart.CartWithProducts{}, errors.Annotate(err, "getting DB access")
	}

	joinStmt, err := st.Prepare(`
SELECT ci.quantity AS &cartProduct.quantity,
       p.uuid AS &cartProduct.uuid,
       p.code AS &cartProduct.code,
       p.title AS &cartProduct.title,
       p.description AS &cartProduct.description,
       p.price AS &cartProduct.price,
       p.stock AS &cartProduct.stock,
       p.category AS &cartProduct.category,
       p.status AS &cartProduct.status,
       p.image AS &cartProduct.image,
       p.created_at AS &cartProduct.created_at,
       p.updated_at AS &cartProduct.updated_at
FROM   cart_item AS ci
JOIN   product AS p ON ci.product_uuid = p.uuid
WHERE  ci.cart_uuid = $cartUUID.uuid
ORDER BY ci.position
`, cartProduct{}, cartUUID{})
	if err != nil {
		return domaincart.CartWithProducts{}, errors.Annotate(err, "preparing select cart products query")
	}

	var result domaincart.CartWithProducts
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		row, err := st.getCart(ctx, tx, uuid)
		if err != nil {
			return errors.Trace(err)
		}

		var rows []cartProduct
		err = tx.Query(ctx, joinStmt, cartUUID{UUID: uuid.String()}).GetAll(&rows)
		if err != nil && !databaseutils.IsErrNotFound(err) {
			return errors.Annotatef(err, "selecting products of cart %q", uuid)
		}

		items := make([]cart.Item, len(rows))
		products := make([]domaincart.ProductItem, len(rows))
		for i, r := range rows {
			thumbnails, err := st.getThumbnails(ctx, tx, r.UUID)
			if err != nil {
				return errors.Trace(err)
			}
			items[i] = cart.Item{ProductUUID: product.UUID(r.UUID), Quantity: r.Quantity}
			products[i] = domaincart.ProductItem{
				Product:  r.toProduct(thumbnails),
				Quantity: r.Quantity,
			}
		}
		result = domaincart.CartWithProducts{
			Cart:     row.toCart(items),
			Products: products,
		}
		return nil
	})
	if err != nil {
		return domaincart.CartWithProducts{}, errors.Trace(err)
	}
	return result, nil
}

// AddProduct adds quantity units of the product to the cart. An existing
// line item for the product has its quantity increased, otherwise a new
// line item is appended. The resulting line items are returned.
//
// The following errors may be returned:
// - carterrors.CartNotFound: when the cart does not exist.
// - carterrors.CartNotReserved: when the cart is not reserved.
// - catalogerrors.ProductNotFound: when the product does not exist.
// - carterrors.QuantityNotValid: when the resulting quantity would exceed
// cart.MaxQuantity.
func (st *State) AddProduct(
	ctx context.Context,
	cartID cart.UUID,
	productID product.UUID,
	quantity int,
	now time.Time,
) ([]cart.Item, error) {
	db, err := st.DB()
	if err != nil {
		return nil, errors.Annotate(err, "getting DB access")
	}

	if quantity > cart.MaxQuantity {
		return nil, errors.Annotatef(carterrors.QuantityNotValid, "%d exceeds %d", quantity, cart.MaxQuantity)
	}

	productStmt, err := st.Prepare(`
SELECT &productUUID.*
FROM   product
WHERE  uuid = $productUUID.uuid
`, productUUID{})
	if err != nil {
		return nil, errors.Annotate(err, "preparing select product query")
	}
	positionStmt, err := st.Prepare(`
SELECT COALESCE(MAX(position), -1) + 1 AS &nextPosition.position
FROM   cart_item
WHERE  cart_uuid = $cartUUID.uuid
`, nextPosition{}, cartUUID{})
	if err != nil {
		return nil, errors.Annotate(err, "preparing select position query")
	}
	upsertStmt, err := st.Prepare(`
INSERT INTO cart_item (cart_uuid, product_uuid, quantity, position)
VALUES ($cartItem.cart_uuid, $cartItem.product_uuid, $cartItem.quantity, $cartItem.position)
ON CONFLICT (cart_uuid, product_uuid) DO UPDATE SET quantity = quantity + excluded.quantity
WHERE quantity + excluded.quantity <= $quantityLimit.max
`, cartItem{}, quantityLimit{})
	if err != nil {
		return nil, errors.Annotate(err, "preparing upsert cart item query")
	}

	var items []cart.Item
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		row, err := st.ensureReserved(ctx, tx, cartID)
		if err != nil {
			return errors.Trace(err)
		}

		var p productUUID
		err = tx.Query(ctx, productStmt, productUUID{UUID: productID.String()}).Get(&p)
		if databaseutils.IsErrNotFound(err) {
			return errors.Annotatef(catalogerrors.ProductNotFound, "%q", productID)
		} else if err != nil {
			return errors.Annotatef(err, "selecting product %q", productID)
		}

		var next nextPosition
		if err := tx.Query(ctx, positionStmt, cartUUID{UUID: cartID.String()}).Get(&next); err != nil {
			return errors.Annotatef(err, "selecting next position of cart %q", cartID)
		}

		item := cartItem{
			CartUUID:    cartID.String(),
			ProductUUID: productID.String(),
			Quantity:    quantity,
			Position:    next.Position,
		}
		var outcome sqlair.Outcome
		err = tx.Query(ctx, upsertStmt, item, quantityLimit{Max: cart.MaxQuantity}).Get(&outcome)
		if err != nil {
			return errors.Annotatef(err, "adding product %q to cart %q", productID, cartID)
		}
		affected, err := outcome.Result().RowsAffected()
		if err != nil {
			return errors.Trace(err)
		}
		if affected == 0 {
			return errors.Annotatef(carterrors.QuantityNotValid,
				"adding %d of product %q to cart %q exceeds %d", quantity, productID, cartID, cart.MaxQuantity)
		}

		if err := st.touch(ctx, tx, row, now); err != nil {
			return errors.Trace(err)
		}
		items, err = st.getItems(ctx, tx, cartID)
		return errors.Trace(err)
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return items, nil
}

// RemoveProduct removes the product's line item from the cart. Removing a
// product that is not in the cart is not an error. The resulting line items
// are returned.
//
// The following errors may be returned:
// - carterrors.CartNotFound: when the cart does not exist.
// - carterrors.CartNotReserved: when the cart is not reserved.
func (st *State) RemoveProduct(ctx context.Context, cartID cart.UUID, productID product.UUID, now time.Time) ([]cart.Item, error) {
	db, err := st.DB()
	if err != nil {
		return nil, errors.Annotate(err, "getting DB access")
	}

	deleteStmt, err := st.Prepare(`
DELETE FROM cart_item
WHERE  cart_uuid = $cartItem.cart_uuid
AND    product_uuid = $cartItem.product_uuid
`, cartItem{})
	if err != nil {
		return nil, errors.Annotate(err, "preparing delete cart item query")
	}

	var items []cart.Item
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		row, err := st.ensureReserved(ctx, tx, cartID)
		if err != nil {
			return errors.Trace(err)
		}

		item := cartItem{CartUUID: cartID.String(), ProductUUID: productID.String()}
		if err := tx.Query(ctx, deleteStmt, item).Run(); err != nil {
			return errors.Annotatef(err, "removing product %q from cart %q", productID, cartID)
		}

		if err := st.touch(ctx, tx, row, now); err != nil {
			return errors.Trace(err)
		}
		items, err = st.getItems(ctx, tx, cartID)
		return errors.Trace(err)
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return items, nil
}

// UpdateQuantity overwrites the quantity of the product's line item. The
// resulting line items are returned.
//
// The following errors may be returned:
// - carterrors.CartNotFound: when the cart does not exist.
// - carterrors.CartNotReserved: when the cart is not reserved.
// - carterrors.ItemNotFound: when the product is not in the cart.
func (st *State) UpdateQuantity(
	ctx context.Context,
	cartID cart.UUID,
	productID product.UUID,
	quantity int,
	now time.Time,
) ([]cart.Item, error) {
	db, err := st.DB()
	if err != nil {
		return nil, errors.Annotate(err, "getting DB access")
	}

	updateStmt, err := st.Prepare(`
UPDATE cart_item
SET    quantity = $cartItem.quantity
WHERE  cart_uuid = $cartItem.cart_uuid
AND    product_uuid = $cartItem.product_uuid
`, cartItem{})
	if err != nil {
		return nil, errors.Annotate(err, "preparing update cart item query")
	}

	var items []cart.Item
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		row, err := st.ensureReserved(ctx, tx, cartID)
		if err != nil {
			return errors.Trace(err)
		}

		item := cartItem{
			CartUUID:    cartID.String(),
			ProductUUID: productID.String(),
			Quantity:    quantity,
		}
		var outcome sqlair.Outcome
		if err := tx.Query(ctx, updateStmt, item).Get(&outcome); err != nil {
			return errors.Annotatef(err, "updating product %q in cart %q", productID, cartID)
		}
		affected, err := outcome.Result().RowsAffected()
		if err != nil {
			return errors.Trace(err)
		}
		if affected == 0 {
			return errors.Annotatef(carterrors.ItemNotFound, "product %q in cart %q", productID, cartID)
		}

		if err := st.touch(ctx, tx, row, now); err != nil {
			return errors.Trace(err)
		}
		items, err = st.getItems(ctx, tx, cartID)
		return errors.Trace(err)
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return items, nil
}

// ReplaceItems replaces every line item of the cart with the given items,
// in the given order. The items are expected to have been validated.
//
// The following errors may be returned:
// - carterrors.CartNotFound: when the cart does not exist.
// - carterrors.CartNotReserved: when the cart is not reserved.
// - catalogerrors.ProductNotFound: when any product does not exist.
func (st *State) ReplaceItems(ctx context.Context, cartID cart.UUID, items []cart.Item, now time.Time) ([]cart.Item, error) {
	db, err := st.DB()
	if err != nil {
		return nil, errors.Annotate(err, "getting DB access")
	}

	insertStmt, err := st.Prepare(`
INSERT INTO cart_item (cart_uuid, product_uuid, quantity, position)
VALUES ($cartItem.cart_uuid, $cartItem.product_uuid, $cartItem.quantity, $cartItem.position)
`, cartItem{})
	if err != nil {
		return nil, errors.Annotate(err, "preparing insert cart item query")
	}

	var result []cart.Item
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		row, err := st.ensureReserved(ctx, tx, cartID)
		if err != nil {
			return errors.Trace(err)
		}

		if err := st.deleteItems(ctx, tx, cartID); err != nil {
			return errors.Trace(err)
		}
		for i, item := range items {
			r := cartItem{
				CartUUID:    cartID.String(),
				ProductUUID: item.ProductUUID.String(),
				Quantity:    item.Quantity,
				Position:    i,
			}
			err := tx.Query(ctx, insertStmt, r).Run()
			if databaseutils.IsErrConstraintForeignKey(err) {
				return errors.Annotatef(catalogerrors.ProductNotFound, "%q", item.ProductUUID)
			} else if err != nil {
				return errors.Annotatef(err, "inserting product %q into cart %q", item.ProductUUID, cartID)
			}
		}

		if err := st.touch(ctx, tx, row, now); err != nil {
			return errors.Trace(err)
		}
		result, err = st.getItems(ctx, tx, cartID)
		return errors.Trace(err)
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return result, nil
}

// ClearCart removes every line item from the cart. The cart state is left
// unchanged.
//
// The following errors may be returned:
// - carterrors.CartNotFound: when the cart does not exist.
// - carterrors.CartNotReserved: when the cart is not reserved.
func (st *State) ClearCart(ctx context.Context, cartID cart.UUID, now time.Time) error {
	db, err := st.DB()
	if err != nil {
		return errors.Annotate(err, "getting DB access")
	}

	return db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		row, err := st.ensureReserved(ctx, tx, cartID)
		if err != nil {
			return errors.Trace(err)
		}
		if err := st.deleteItems(ctx, tx, cartID); err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(st.touch(ctx, tx, row, now))
	})
}

// SetCartState moves the cart forward to the given state.
//
// The following errors may be returned:
// - carterrors.CartNotFound: when the cart does not exist.
// - carterrors.StateChangeNotValid: when the change is not forward.
func (st *State) SetCartState(ctx context.Context, cartID cart.UUID, state cart.State, now time.Time) error {
	db, err := st.DB()
	if err != nil {
		return errors.Annotate(err, "getting DB access")
	}

	return db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		row, err := st.getCart(ctx, tx, cartID)
		if err != nil {
			return errors.Trace(err)
		}
		if !cart.State(row.State).CanAdvanceTo(state) {
			return errors.Annotatef(carterrors.StateChangeNotValid, "from %q to %q", row.State, state)
		}
		row.StateID = stateIDs[state]
		return errors.Trace(st.touch(ctx, tx, row, now))
	})
}

func (st *State) getCart(ctx context.Context, tx *sqlair.TX, uuid cart.UUID) (cartRow, error) {
	stmt, err := st.Prepare(`
SELECT c.uuid AS &cartRow.uuid,
       c.user_uuid AS &cartRow.user_uuid,
       c.state_id AS &cartRow.state_id,
       cs.name AS &cartRow.state,
       c.created_at AS &cartRow.created_at,
       c.updated_at AS &cartRow.updated_at
FROM   cart AS c
JOIN   cart_state AS cs ON c.state_id = cs.id
WHERE  c.uuid = $cartUUID.uuid
`, cartRow{}, cartUUID{})
	if err != nil {
		return cartRow{}, errors.Annotate(err, "preparing select cart query")
	}

	var row cartRow
	err = tx.Query(ctx, stmt, cartUUID{UUID: uuid.String()}).Get(&row)
	if databaseutils.IsErrNotFound(err) {
		return cartRow{}, errors.Annotatef(carterrors.CartNotFound, "%q", uuid)
	} else if err != nil {
		return cartRow{}, errors.Annotatef(err, "selecting cart %q", uuid)
	}
	return row, nil
}

func (st *State) ensureReserved(ctx context.Context, tx *sqlair.TX, uuid cart.UUID) (cartRow, error) {
	row, err := st.getCart(ctx, tx, uuid)
	if err != nil {
		return cartRow{}, errors.Trace(err)
	}
	if cart.State(row.State) != cart.StateReserved {
		return cartRow{}, errors.Annotatef(carterrors.CartNotReserved, "cart %q is %s", uuid, row.State)
	}
	return row, nil
}

func (st *State) getItems(ctx context.Context, tx *sqlair.TX, uuid cart.UUID) ([]cart.Item, error) {
	stmt, err := st.Prepare(`
SELECT &cartItem.*
FROM   cart_item
WHERE  cart_uuid = $cartUUID.uuid
ORDER BY position
`, cartItem{}, cartUUID{})
	if err != nil {
		return nil, errors.Annotate(err, "preparing select cart items query")
	}

	var rows []cartItem
	err = tx.Query(ctx, stmt, cartUUID{UUID: uuid.String()}).GetAll(&rows)
	if err != nil && !databaseutils.IsErrNotFound(err) {
		return nil, errors.Annotatef(err, "selecting items of cart %q", uuid)
	}

	items := make([]cart.Item, len(rows))
	for i, row := range rows {
		items[i] = cart.Item{
			ProductUUID: product.UUID(row.ProductUUID),
			Quantity:    row.Quantity,
		}
	}
	return items, nil
}

func (st *State) deleteItems(ctx context.Context, tx *sqlair.TX, uuid cart.UUID) error {
	stmt, err := st.Prepare(`
DELETE FROM cart_item
WHERE  cart_uuid = $cartUUID.uuid
`, cartUUID{})
	if err != nil {
		return errors.Annotate(err, "preparing delete cart items query")
	}

	if err := tx.Query(ctx, stmt, cartUUID{UUID: uuid.String()}).Run(); err != nil {
		return errors.Annotatef(err, "deleting items of cart %q", uuid)
	}
	return nil
}

func (st *State) touch(ctx context.Context, tx *sqlair.TX, row cartRow, now time.Time) error {
	stmt, err := st.Prepare(`
UPDATE cart
SET    state_id = $cartUpdate.state_id,
       updated_at = $cartUpdate.updated_at
WHERE  uuid = $cartUpdate.uuid
`, cartUpdate{})
	if err != nil {
		return errors.Annotate(err, "preparing update cart query")
	}

	update := cartUpdate{
		UUID:      row.UUID,
		StateID:   row.StateID,
		UpdatedAt: now,
	}
	if err := tx.Query(ctx, stmt, update).Run(); err != nil {
		return errors.Annotatef(err, "updating cart %q", row.UUID)
	}
	return nil
}

func (st *State) getThumbnails(ctx context.Context, tx *sqlair.TX, uuid string) ([]string, error) {
	stmt, err := st.Prepare(`
SELECT &productThumbnail.*
FROM   product_thumbnail
WHERE  product_uuid = $productUUID.uuid
ORDER BY position
`, productThumbnail{}, productUUID{})
	if err != nil {
		return nil, errors.Annotate(err, "preparing select thumbnails query")
	}

	var rows []productThumbnail
	err = tx.Query(ctx, stmt, productUUID{UUID: uuid}).GetAll(&rows)
	if err != nil && !databaseutils.IsErrNotFound(err) {
		return nil, errors.Annotatef(err, "selecting thumbnails for %q", uuid)
	}

	thumbnails := make([]string, len(rows))
	for i, row := range rows {
		thumbnails[i] = row.Path
	}
	return thumbnails, nil
}
