// Copyright 2023 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package testing

import (
	"context"

	"github.com/juju/clock"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/storefront/core/product"
	"github.com/juju/storefront/core/user"
	"github.com/juju/storefront/domain/catalog"
	schematesting "github.com/juju/storefront/domain/schema/testing"
	domainservicefactory "github.com/juju/storefront/domain/servicefactory"
	domainuser "github.com/juju/storefront/domain/user"
	"github.com/juju/storefront/internal/auth"
)

// ServiceFactorySuite is a test suite that can be composed into tests that
// require a storefront ServiceFactory and database access.
type ServiceFactorySuite struct {
	schematesting.StorefrontSuite
}

// ServiceFactory constructs a service factory over the test database.
func (s *ServiceFactorySuite) ServiceFactory(notifier domainservicefactory.ChangeNotifier, clock clock.Clock) *domainservicefactory.ServiceFactory {
	return domainservicefactory.NewServiceFactory(s.TxnRunnerFactory(), notifier, clock)
}

// SeedAdminUser adds a verified admin with the given credentials.
func (s *ServiceFactorySuite) SeedAdminUser(c *gc.C, factory *domainservicefactory.ServiceFactory, email, password string) user.UUID {
	uuid, err := factory.Users().AddAdmin(context.Background(), domainuser.RegisterArgs{
		Email:     email,
		FirstName: "Store",
		LastName:  "Admin",
		Password:  auth.NewPassword(password),
	})
	c.Assert(err, jc.ErrorIsNil)
	return uuid
}

// SeedVerifiedUser registers and verifies a user with the given
// credentials.
func (s *ServiceFactorySuite) SeedVerifiedUser(c *gc.C, factory *domainservicefactory.ServiceFactory, email, password string) user.UUID {
	users := factory.Users()
	uuid, code, err := users.Register(context.Background(), domainuser.RegisterArgs{
		Email:     email,
		FirstName: "Jo",
		LastName:  "Shopper",
		Password:  auth.NewPassword(password),
	})
	c.Assert(err, jc.ErrorIsNil)
	err = users.Verify(context.Background(), email, code)
	c.Assert(err, jc.ErrorIsNil)
	return uuid
}

// SeedProduct adds a product with the given code, price and stock.
func (s *ServiceFactorySuite) SeedProduct(c *gc.C, factory *domainservicefactory.ServiceFactory, code string, price int64, stock int) product.Product {
	p, err := factory.Catalog().CreateProduct(context.Background(), catalog.CreateProductArgs{
		Code:        code,
		Title:       "Product " + code,
		Description: "Description of " + code,
		Price:       price,
		Stock:       stock,
		Category:    product.CategoryOther,
	})
	c.Assert(err, jc.ErrorIsNil)
	return p
}
