// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package service

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/rs/xid"

	"github.com/juju/storefront/core/cart"
	"github.com/juju/storefront/core/product"
	"github.com/juju/storefront/core/ticket"
	"github.com/juju/storefront/core/user"
	carterrors "github.com/juju/storefront/domain/cart/errors"
	domainticket "github.com/juju/storefront/domain/ticket"
	ticketerrors "github.com/juju/storefront/domain/ticket/errors"
)

// State describes retrieval and persistence methods for purchase tickets.
type State interface {
	// Purchase decrements stock for every item and records a pending
	// ticket, atomically.
	Purchase(context.Context, domainticket.PurchaseArgs) (ticket.Ticket, error)

	// PurchaseCart purchases the line items of a reserved cart and marks
	// the cart as paid, atomically.
	PurchaseCart(context.Context, domainticket.PurchaseCartArgs) (ticket.Ticket, error)

	// CancelTicket cancels a pending ticket, returning its items to stock.
	CancelTicket(context.Context, ticket.UUID, time.Time) (ticket.Ticket, error)

	// CompleteTicket marks a pending ticket as completed.
	CompleteTicket(context.Context, ticket.UUID, time.Time) (ticket.Ticket, error)

	// GetTicket returns the ticket. If the ticket does not exist an error
	// satisfying ticketerrors.TicketNotFound is returned.
	GetTicket(context.Context, ticket.UUID) (ticket.Ticket, error)

	// ListTicketsForUser returns every ticket owned by the user.
	ListTicketsForUser(context.Context, user.UUID) ([]ticket.Ticket, error)
}

// ChangeNotifier is told about every product whose stock changed.
type ChangeNotifier interface {
	NotifyProductsChanged(uuids ...product.UUID)
}

// Service provides the API for purchasing products.
type Service struct {
	st       State
	notifier ChangeNotifier
	clock    clock.Clock
}

// NewService returns a new Service for interacting with the underlying
// ticket state.
func NewService(st State, notifier ChangeNotifier, clock clock.Clock) *Service {
	return &Service{
		st:       st,
		notifier: notifier,
		clock:    clock,
	}
}

// Purchase buys the given products for the owner. Items are processed in
// the order given. If any product is missing or short of stock nothing is
// purchased.
//
// The following error types are possible from this function:
// - ticketerrors.EmptyPurchase: When no items are given.
// - ticketerrors.ItemsNotValid: When an item has an invalid product uuid or
// a quantity less than one.
// - catalogerrors.ProductNotFound: When any product does not exist.
// - ticketerrors.InsufficientStock: When any product has too little stock.
func (s *Service) Purchase(ctx context.Context, owner user.UUID, items []domainticket.PurchaseItem) (ticket.Ticket, error) {
	if err := owner.Validate(); err != nil {
		return ticket.Ticket{}, errors.Annotatef(err, "validating owner uuid %q", owner)
	}
	if len(items) == 0 {
		return ticket.Ticket{}, errors.Trace(ticketerrors.EmptyPurchase)
	}
	for i, item := range items {
		if err := item.ProductUUID.Validate(); err != nil {
			return ticket.Ticket{}, errors.Annotatef(ticketerrors.ItemsNotValid, "item %d: product uuid %q", i, item.ProductUUID)
		}
		if item.Quantity < 1 {
			return ticket.Ticket{}, errors.Annotatef(ticketerrors.ItemsNotValid, "item %d: quantity %d", i, item.Quantity)
		}
	}

	uuid, err := ticket.NewUUID()
	if err != nil {
		return ticket.Ticket{}, errors.Annotate(err, "generating ticket uuid")
	}

	t, err := s.st.Purchase(ctx, domainticket.PurchaseArgs{
		UUID:  uuid,
		Code:  xid.New().String(),
		Owner: owner,
		Items: items,
		Now:   s.clock.Now().UTC(),
	})
	if err != nil {
		return ticket.Ticket{}, errors.Annotatef(err, "purchasing for user %q", owner)
	}

	s.notifier.NotifyProductsChanged(productUUIDs(t)...)
	return t, nil
}

// PurchaseCart buys every line item of the cart for the owner and marks the
// cart as paid. Anonymous carts may be purchased by any user.
//
// The following error types are possible from this function:
// - carterrors.UUIDNotValid: When the cart uuid is not valid.
// - carterrors.CartNotFound: When the cart does not exist.
// - ticketerrors.NotOwner: When the cart belongs to another user.
// - carterrors.CartNotReserved: When the cart was already paid.
// - ticketerrors.EmptyPurchase: When the cart has no line items.
// - catalogerrors.ProductNotFound: When any product does not exist.
// - ticketerrors.InsufficientStock: When any product has too little stock.
func (s *Service) PurchaseCart(ctx context.Context, owner user.UUID, cartID cart.UUID) (ticket.Ticket, error) {
	if err := owner.Validate(); err != nil {
		return ticket.Ticket{}, errors.Annotatef(err, "validating owner uuid %q", owner)
	}
	if err := cartID.Validate(); err != nil {
		return ticket.Ticket{}, errors.Annotatef(carterrors.UUIDNotValid, "%q", cartID)
	}

	uuid, err := ticket.NewUUID()
	if err != nil {
		return ticket.Ticket{}, errors.Annotate(err, "generating ticket uuid")
	}

	t, err := s.st.PurchaseCart(ctx, domainticket.PurchaseCartArgs{
		UUID:  uuid,
		Code:  xid.New().String(),
		Owner: owner,
		Cart:  cartID,
		Now:   s.clock.Now().UTC(),
	})
	if err != nil {
		return ticket.Ticket{}, errors.Annotatef(err, "purchasing cart %q", cartID)
	}

	s.notifier.NotifyProductsChanged(productUUIDs(t)...)
	return t, nil
}

// CancelTicket cancels a pending ticket and restocks its products.
//
// The following error types are possible from this function:
// - ticketerrors.UUIDNotValid: When the ticket uuid is not valid.
// - ticketerrors.TicketNotFound: When the ticket does not exist.
// - ticketerrors.StatusChangeNotValid: When the ticket is not pending.
func (s *Service) CancelTicket(ctx context.Context, uuid ticket.UUID) (ticket.Ticket, error) {
	if err := uuid.Validate(); err != nil {
		return ticket.Ticket{}, errors.Annotatef(ticketerrors.UUIDNotValid, "%q", uuid)
	}

	t, err := s.st.CancelTicket(ctx, uuid, s.clock.Now().UTC())
	if err != nil {
		return ticket.Ticket{}, errors.Annotatef(err, "cancelling ticket %q", uuid)
	}

	s.notifier.NotifyProductsChanged(productUUIDs(t)...)
	return t, nil
}

// CompleteTicket marks a pending ticket as completed.
//
// The following error types are possible from this function:
// - ticketerrors.UUIDNotValid: When the ticket uuid is not valid.
// - ticketerrors.TicketNotFound: When the ticket does not exist.
// - ticketerrors.StatusChangeNotValid: When the ticket is not pending.
func (s *Service) CompleteTicket(ctx context.Context, uuid ticket.UUID) (ticket.Ticket, error) {
	if err := uuid.Validate(); err != nil {
		return ticket.Ticket{}, errors.Annotatef(ticketerrors.UUIDNotValid, "%q", uuid)
	}

	t, err := s.st.CompleteTicket(ctx, uuid, s.clock.Now().UTC())
	if err != nil {
		return ticket.Ticket{}, errors.Annotatef(err, "completing ticket %q", uuid)
	}
	return t, nil
}

// GetTicket returns the ticket with the given uuid.
//
// The following error types are possible from this function:
// - ticketerrors.UUIDNotValid: When the ticket uuid is not valid.
// - ticketerrors.TicketNotFound: When the ticket does not exist.
func (s *Service) GetTicket(ctx context.Context, uuid ticket.UUID) (ticket.Ticket, error) {
	if err := uuid.Validate(); err != nil {
		return ticket.Ticket{}, errors.Annotatef(ticketerrors.UUIDNotValid, "%q", uuid)
	}

	t, err := s.st.GetTicket(ctx, uuid)
	if err != nil {
		return ticket.Ticket{}, errors.Annotatef(err, "getting ticket %q", uuid)
	}
	return t, nil
}

// ListTicketsForUser returns the tickets owned by the user, oldest first.
func (s *Service) ListTicketsForUser(ctx context.Context, owner user.UUID) ([]ticket.Ticket, error) {
	if err := owner.Validate(); err != nil {
		return nil, errors.Annotatef(err, "validating owner uuid %q", owner)
	}

	tickets, err := s.st.ListTicketsForUser(ctx, owner)
	if err != nil {
		return nil, errors.Annotatef(err, "listing tickets of user %q", owner)
	}
	return tickets, nil
}

func productUUIDs(t ticket.Ticket) []product.UUID {
	uuids := make([]product.UUID, len(t.Items))
	for i, item := range t.Items {
		uuids[i] = item.ProductUUID
	}
	return uuids
}
