// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package servicefactory

import (
	"github.com/juju/clock"

	"github.com/juju/storefront/core/database"
	"github.com/juju/storefront/core/product"
	cartservice "github.com/juju/storefront/domain/cart/service"
	cartstate "github.com/juju/storefront/domain/cart/state"
	catalogservice "github.com/juju/storefront/domain/catalog/service"
	catalogstate "github.com/juju/storefront/domain/catalog/state"
	ticketservice "github.com/juju/storefront/domain/ticket/service"
	ticketstate "github.com/juju/storefront/domain/ticket/state"
	userservice "github.com/juju/storefront/domain/user/service"
	userstate "github.com/juju/storefront/domain/user/state"
)

// ChangeNotifier is told about every product whose catalog entry or stock
// changed.
type ChangeNotifier interface {
	NotifyProductsChanged(uuids ...product.UUID)
}

// ServiceFactory provides access to the services required by the
// apiserver, all backed by the same database.
type ServiceFactory struct {
	db       database.TxnRunnerFactory
	notifier ChangeNotifier
	clock    clock.Clock
}

// NewServiceFactory returns a new service factory which can be used to get
// new services from.
func NewServiceFactory(db database.TxnRunnerFactory, notifier ChangeNotifier, clock clock.Clock) *ServiceFactory {
	return &ServiceFactory{
		db:       db,
		notifier: notifier,
		clock:    clock,
	}
}

// Catalog returns the product catalog service.
func (s *ServiceFactory) Catalog() *catalogservice.Service {
	return catalogservice.NewService(catalogstate.NewState(s.db), s.notifier, s.clock)
}

// Carts returns the cart service.
func (s *ServiceFactory) Carts() *cartservice.Service {
	return cartservice.NewService(cartstate.NewState(s.db), s.clock)
}

// Tickets returns the purchase service.
func (s *ServiceFactory) Tickets() *ticketservice.Service {
	return ticketservice.NewService(ticketstate.NewState(s.db), s.notifier, s.clock)
}

// Users returns the user service.
func (s *ServiceFactory) Users() *userservice.Service {
	return userservice.NewService(userstate.NewState(s.db), s.clock)
}
