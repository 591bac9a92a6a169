// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package service

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/collections/set"
	"github.com/juju/errors"

	"github.com/juju/storefront/core/cart"
	"github.com/juju/storefront/core/product"
	"github.com/juju/storefront/core/user"
	domaincart "github.com/juju/storefront/domain/cart"
	carterrors "github.com/juju/storefront/domain/cart/errors"
	catalogerrors "github.com/juju/storefront/domain/catalog/errors"
)

// State describes retrieval and persistence methods for carts.
type State interface {
	// CreateCart adds a new, empty, reserved cart.
	CreateCart(ctx context.Context, uuid cart.UUID, owner user.UUID, now time.Time) error

	// GetCart returns the cart and its line items. If the cart does not
	// exist an error satisfying carterrors.CartNotFound is returned.
	GetCart(context.Context, cart.UUID) (cart.Cart, error)

	// GetCartWithProducts returns the cart with every line item joined
	// against its product. If the cart does not exist an error satisfying
	// carterrors.CartNotFound is returned.
	GetCartWithProducts(context.Context, cart.UUID) (domaincart.CartWithProducts, error)

	// AddProduct accumulates quantity units of the product onto the cart,
	// returning the resulting line items.
	AddProduct(ctx context.Context, cartID cart.UUID, productID product.UUID, quantity int, now time.Time) ([]cart.Item, error)

	// RemoveProduct removes the product's line item, if present, returning
	// the resulting line items.
	RemoveProduct(ctx context.Context, cartID cart.UUID, productID product.UUID, now time.Time) ([]cart.Item, error)

	// UpdateQuantity overwrites the quantity of an existing line item,
	// returning the resulting line items. If the product is not in the cart
	// an error satisfying carterrors.ItemNotFound is returned.
	UpdateQuantity(ctx context.Context, cartID cart.UUID, productID product.UUID, quantity int, now time.Time) ([]cart.Item, error)

	// ReplaceItems replaces every line item of the cart, returning the
	// resulting line items.
	ReplaceItems(ctx context.Context, cartID cart.UUID, items []cart.Item, now time.Time) ([]cart.Item, error)

	// ClearCart removes every line item of the cart.
	ClearCart(ctx context.Context, cartID cart.UUID, now time.Time) error

	// SetCartState moves the cart forward to the given state.
	SetCartState(ctx context.Context, cartID cart.UUID, state cart.State, now time.Time) error
}

// Service provides the API for working with carts. Every operation that
// changes the line items of a cart requires the cart to be reserved, and is
// applied atomically.
type Service struct {
	st    State
	clock clock.Clock
}

// NewService returns a new Service for interacting with the underlying cart
// state.
func NewService(st State, clock clock.Clock) *Service {
	return &Service{
		st:    st,
		clock: clock,
	}
}

// CreateCart creates a new empty cart in the reserved state. The owner may
// be empty, in which case the cart is anonymous.
func (s *Service) CreateCart(ctx context.Context, owner user.UUID) (cart.Cart, error) {
	if owner != "" {
		if err := owner.Validate(); err != nil {
			return cart.Cart{}, errors.Annotatef(err, "validating owner uuid %q", owner)
		}
	}

	uuid, err := cart.NewUUID()
	if err != nil {
		return cart.Cart{}, errors.Annotate(err, "generating cart uuid")
	}

	now := s.clock.Now().UTC()
	if err := s.st.CreateCart(ctx, uuid, owner, now); err != nil {
		return cart.Cart{}, errors.Annotate(err, "creating cart")
	}
	return cart.Cart{
		UUID:      uuid,
		Owner:     owner,
		State:     cart.StateReserved,
		Items:     []cart.Item{},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetCart returns the cart with its line items.
//
// The following error types are possible from this function:
// - carterrors.UUIDNotValid: When the cart uuid is not valid.
// - carterrors.CartNotFound: When the cart does not exist.
func (s *Service) GetCart(ctx context.Context, cartID cart.UUID) (cart.Cart, error) {
	if err := cartID.Validate(); err != nil {
		return cart.Cart{}, errors.Annotatef(carterrors.UUIDNotValid, "%q", cartID)
	}

	c, err := s.st.GetCart(ctx, cartID)
	if err != nil {
		return cart.Cart{}, errors.Annotatef(err, "getting cart %q", cartID)
	}
	return c, nil
}

// GetCartWithProducts returns the cart with each line item resolved against
// the catalog.
//
// The following error types are possible from this function:
// - carterrors.UUIDNotValid: When the cart uuid is not valid.
// - carterrors.CartNotFound: When the cart does not exist.
func (s *Service) GetCartWithProducts(ctx context.Context, cartID cart.UUID) (domaincart.CartWithProducts, error) {
	if err := cartID.Validate(); err != nil {
		return domaincart.CartWithProducts{}, errors.Annotatef(carterrors.UUIDNotValid, "%q", cartID)
	}

	c, err := s.st.GetCartWithProducts(ctx, cartID)
	if err != nil {
		return domaincart.CartWithProducts{}, errors.Annotatef(err, "getting products of cart %q", cartID)
	}
	return c, nil
}

// AddProduct adds quantity units of the product to the cart. If the product
// is already in the cart its quantity is increased, otherwise the product is
// appended as a new line item. The resulting line items are returned.
//
// The following error types are possible from this function:
// - carterrors.UUIDNotValid: When the cart uuid is not valid.
// - catalogerrors.UUIDNotValid: When the product uuid is not valid.
// - carterrors.QuantityNotValid: When quantity is less than one or more
// than cart.MaxQuantity.
// - carterrors.CartNotFound: When the cart does not exist.
// - carterrors.CartNotReserved: When the cart has been paid or delivered.
// - catalogerrors.ProductNotFound: When the product does not exist.
//
// Accumulating past cart.MaxQuantity also fails with
// carterrors.QuantityNotValid, leaving the line item unchanged.
func (s *Service) AddProduct(ctx context.Context, cartID cart.UUID, productID product.UUID, quantity int) ([]cart.Item, error) {
	if err := validateLine(cartID, productID); err != nil {
		return nil, errors.Trace(err)
	}
	if err := validateQuantity(quantity); err != nil {
		return nil, errors.Trace(err)
	}

	items, err := s.st.AddProduct(ctx, cartID, productID, quantity, s.clock.Now().UTC())
	if err != nil {
		return nil, errors.Annotatef(err, "adding product %q to cart %q", productID, cartID)
	}
	return items, nil
}

// RemoveProduct removes the product from the cart. Removing a product that
// is not in the cart leaves the cart unchanged. The resulting line items are
// returned.
//
// The following error types are possible from this function:
// - carterrors.UUIDNotValid: When the cart uuid is not valid.
// - catalogerrors.UUIDNotValid: When the product uuid is not valid.
// - carterrors.CartNotFound: When the cart does not exist.
// - carterrors.CartNotReserved: When the cart has been paid or delivered.
func (s *Service) RemoveProduct(ctx context.Context, cartID cart.UUID, productID product.UUID) ([]cart.Item, error) {
	if err := validateLine(cartID, productID); err != nil {
		return nil, errors.Trace(err)
	}

	items, err := s.st.RemoveProduct(ctx, cartID, productID, s.clock.Now().UTC())
	if err != nil {
		return nil, errors.Annotatef(err, "removing product %q from cart %q", productID, cartID)
	}
	return items, nil
}

// UpdateQuantity sets the quantity of a product already in the cart. The
// resulting line items are returned.
//
// The following error types are possible from this function:
// - carterrors.UUIDNotValid: When the cart uuid is not valid.
// - catalogerrors.UUIDNotValid: When the product uuid is not valid.
// - carterrors.QuantityNotValid: When quantity is less than one or more
// than cart.MaxQuantity.
// - carterrors.CartNotFound: When the cart does not exist.
// - carterrors.CartNotReserved: When the cart has been paid or delivered.
// - carterrors.ItemNotFound: When the product is not in the cart.
func (s *Service) UpdateQuantity(ctx context.Context, cartID cart.UUID, productID product.UUID, quantity int) ([]cart.Item, error) {
	if err := validateLine(cartID, productID); err != nil {
		return nil, errors.Trace(err)
	}
	if err := validateQuantity(quantity); err != nil {
		return nil, errors.Trace(err)
	}

	items, err := s.st.UpdateQuantity(ctx, cartID, productID, quantity, s.clock.Now().UTC())
	if err != nil {
		return nil, errors.Annotatef(err, "updating quantity of product %q in cart %q", productID, cartID)
	}
	return items, nil
}

// ReplaceAll replaces every line item of the cart. Quantities are taken as
// given, nothing is accumulated. Only the structure of the items is checked
// here, unknown products are reported by the store.
//
// The following error types are possible from this function:
// - carterrors.UUIDNotValid: When the cart uuid is not valid.
// - carterrors.ItemsNotValid: When a product uuid is not valid, or a product
// is named more than once.
// - carterrors.QuantityNotValid: When any quantity is less than one or more
// than cart.MaxQuantity.
// - carterrors.CartNotFound: When the cart does not exist.
// - carterrors.CartNotReserved: When the cart has been paid or delivered.
// - catalogerrors.ProductNotFound: When any product does not exist.
func (s *Service) ReplaceAll(ctx context.Context, cartID cart.UUID, items []cart.Item) ([]cart.Item, error) {
	if err := cartID.Validate(); err != nil {
		return nil, errors.Annotatef(carterrors.UUIDNotValid, "%q", cartID)
	}

	seen := set.NewStrings()
	for i, item := range items {
		if err := item.ProductUUID.Validate(); err != nil {
			return nil, errors.Annotatef(carterrors.ItemsNotValid, "item %d: product uuid %q", i, item.ProductUUID)
		}
		if err := validateQuantity(item.Quantity); err != nil {
			return nil, errors.Annotatef(err, "item %d", i)
		}
		if seen.Contains(item.ProductUUID.String()) {
			return nil, errors.Annotatef(carterrors.ItemsNotValid, "product %q appears more than once", item.ProductUUID)
		}
		seen.Add(item.ProductUUID.String())
	}

	result, err := s.st.ReplaceItems(ctx, cartID, items, s.clock.Now().UTC())
	if err != nil {
		return nil, errors.Annotatef(err, "replacing items of cart %q", cartID)
	}
	return result, nil
}

// Clear removes every line item from the cart, leaving its state unchanged.
//
// The following error types are possible from this function:
// - carterrors.UUIDNotValid: When the cart uuid is not valid.
// - carterrors.CartNotFound: When the cart does not exist.
// - carterrors.CartNotReserved: When the cart has been paid or delivered.
func (s *Service) Clear(ctx context.Context, cartID cart.UUID) error {
	if err := cartID.Validate(); err != nil {
		return errors.Annotatef(carterrors.UUIDNotValid, "%q", cartID)
	}

	if err := s.st.ClearCart(ctx, cartID, s.clock.Now().UTC()); err != nil {
		return errors.Annotatef(err, "clearing cart %q", cartID)
	}
	return nil
}

// AdvanceState moves the cart forward through its lifecycle.
//
// The following error types are possible from this function:
// - carterrors.UUIDNotValid: When the cart uuid is not valid.
// - carterrors.StateChangeNotValid: When the state is unknown or the change
// is not forward.
// - carterrors.CartNotFound: When the cart does not exist.
func (s *Service) AdvanceState(ctx context.Context, cartID cart.UUID, state cart.State) error {
	if err := cartID.Validate(); err != nil {
		return errors.Annotatef(carterrors.UUIDNotValid, "%q", cartID)
	}
	if !state.IsValid() {
		return errors.Annotatef(carterrors.StateChangeNotValid, "unknown state %q", state)
	}

	if err := s.st.SetCartState(ctx, cartID, state, s.clock.Now().UTC()); err != nil {
		return errors.Annotatef(err, "setting state of cart %q", cartID)
	}
	return nil
}

func validateLine(cartID cart.UUID, productID product.UUID) error {
	if err := cartID.Validate(); err != nil {
		return errors.Annotatef(carterrors.UUIDNotValid, "%q", cartID)
	}
	if err := productID.Validate(); err != nil {
		return errors.Annotatef(catalogerrors.UUIDNotValid, "%q", productID)
	}
	return nil
}

func validateQuantity(quantity int) error {
	if quantity < 1 || quantity > cart.MaxQuantity {
		return errors.Annotatef(carterrors.QuantityNotValid, "%d", quantity)
	}
	return nil
}
