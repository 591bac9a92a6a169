// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package service

import (
	"context"
	"math"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	"go.uber.org/mock/gomock"
	gc "gopkg.in/check.v1"

	"github.com/juju/storefront/core/cart"
	carttesting "github.com/juju/storefront/core/cart/testing"
	"github.com/juju/storefront/core/product"
	producttesting "github.com/juju/storefront/core/product/testing"
	"github.com/juju/storefront/core/user"
	usertesting "github.com/juju/storefront/core/user/testing"
	carterrors "github.com/juju/storefront/domain/cart/errors"
	catalogerrors "github.com/juju/storefront/domain/catalog/errors"
)

type serviceSuite struct {
	testing.IsolationSuite

	state *MockState
	clock *testclock.Clock
}

var _ = gc.Suite(&serviceSuite{})

func (s *serviceSuite) setupMocks(c *gc.C) *gomock.Controller {
	ctrl := gomock.NewController(c)

	s.state = NewMockState(ctrl)
	s.clock = testclock.NewClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	return ctrl
}

func (s *serviceSuite) service() *Service {
	return NewService(s.state, s.clock)
}

func (s *serviceSuite) TestCreateCart(c *gc.C) {
	defer s.setupMocks(c).Finish()

	owner := usertesting.GenUserUUID(c)
	var created cart.UUID
	s.state.EXPECT().CreateCart(gomock.Any(), gomock.Any(), owner, s.clock.Now()).DoAndReturn(
		func(_ context.Context, uuid cart.UUID, _ user.UUID, _ time.Time) error {
			created = uuid
			return nil
		})

	got, err := s.service().CreateCart(context.Background(), owner)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(got.UUID, gc.Equals, created)
	c.Check(got.Owner, gc.Equals, owner)
	c.Check(got.State, gc.Equals, cart.StateReserved)
	c.Check(got.Items, gc.HasLen, 0)
}

func (s *serviceSuite) TestCreateAnonymousCart(c *gc.C) {
	defer s.setupMocks(c).Finish()

	s.state.EXPECT().CreateCart(gomock.Any(), gomock.Any(), user.UUID(""), gomock.Any()).Return(nil)

	got, err := s.service().CreateCart(context.Background(), "")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(got.Owner, gc.Equals, user.UUID(""))
}

func (s *serviceSuite) TestGetCartUUIDNotValid(c *gc.C) {
	defer s.setupMocks(c).Finish()

	_, err := s.service().GetCart(context.Background(), "not-a-uuid")
	c.Assert(err, jc.ErrorIs, carterrors.UUIDNotValid)
}

func (s *serviceSuite) TestGetCartNotFound(c *gc.C) {
	defer s.setupMocks(c).Finish()

	cartID := carttesting.GenCartUUID(c)
	s.state.EXPECT().GetCart(gomock.Any(), cartID).Return(cart.Cart{}, carterrors.CartNotFound)

	_, err := s.service().GetCart(context.Background(), cartID)
	c.Assert(err, jc.ErrorIs, carterrors.CartNotFound)
}

func (s *serviceSuite) TestAddProduct(c *gc.C) {
	defer s.setupMocks(c).Finish()

	cartID := carttesting.GenCartUUID(c)
	productID := producttesting.GenProductUUID(c)
	items := []cart.Item{{ProductUUID: productID, Quantity: 2}}
	s.state.EXPECT().AddProduct(gomock.Any(), cartID, productID, 2, s.clock.Now()).Return(items, nil)

	got, err := s.service().AddProduct(context.Background(), cartID, productID, 2)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(got, gc.DeepEquals, items)
}

func (s *serviceSuite) TestAddProductNotValid(c *gc.C) {
	defer s.setupMocks(c).Finish()

	cartID := carttesting.GenCartUUID(c)
	productID := producttesting.GenProductUUID(c)

	_, err := s.service().AddProduct(context.Background(), "bad", productID, 1)
	c.Check(err, jc.ErrorIs, carterrors.UUIDNotValid)
	_, err = s.service().AddProduct(context.Background(), cartID, "bad", 1)
	c.Check(err, jc.ErrorIs, catalogerrors.UUIDNotValid)
	_, err = s.service().AddProduct(context.Background(), cartID, productID, 0)
	c.Check(err, jc.ErrorIs, carterrors.QuantityNotValid)
	_, err = s.service().AddProduct(context.Background(), cartID, productID, -3)
	c.Check(err, jc.ErrorIs, carterrors.QuantityNotValid)
	_, err = s.service().AddProduct(context.Background(), cartID, productID, cart.MaxQuantity+1)
	c.Check(err, jc.ErrorIs, carterrors.QuantityNotValid)
	_, err = s.service().AddProduct(context.Background(), cartID, productID, math.MaxInt)
	c.Check(err, jc.ErrorIs, carterrors.QuantityNotValid)
}

func (s *serviceSuite) TestAddProductNotFound(c *gc.C) {
	defer s.setupMocks(c).Finish()

	cartID := carttesting.GenCartUUID(c)
	productID := producttesting.GenProductUUID(c)
	s.state.EXPECT().AddProduct(gomock.Any(), cartID, productID, 1, gomock.Any()).Return(nil, catalogerrors.ProductNotFound)

	_, err := s.service().AddProduct(context.Background(), cartID, productID, 1)
	c.Assert(err, jc.ErrorIs, catalogerrors.ProductNotFound)
}

func (s *serviceSuite) TestRemoveProduct(c *gc.C) {
	defer s.setupMocks(c).Finish()

	cartID := carttesting.GenCartUUID(c)
	productID := producttesting.GenProductUUID(c)
	s.state.EXPECT().RemoveProduct(gomock.Any(), cartID, productID, s.clock.Now()).Return([]cart.Item{}, nil)

	got, err := s.service().RemoveProduct(context.Background(), cartID, productID)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(got, gc.HasLen, 0)
}

func (s *serviceSuite) TestUpdateQuantityItemNotFound(c *gc.C) {
	defer s.setupMocks(c).Finish()

	cartID := carttesting.GenCartUUID(c)
	productID := producttesting.GenProductUUID(c)
	s.state.EXPECT().UpdateQuantity(gomock.Any(), cartID, productID, 4, gomock.Any()).Return(nil, carterrors.ItemNotFound)

	_, err := s.service().UpdateQuantity(context.Background(), cartID, productID, 4)
	c.Assert(err, jc.ErrorIs, carterrors.ItemNotFound)
}

func (s *serviceSuite) TestUpdateQuantityNotValid(c *gc.C) {
	defer s.setupMocks(c).Finish()

	_, err := s.service().UpdateQuantity(context.Background(), carttesting.GenCartUUID(c), producttesting.GenProductUUID(c), 0)
	c.Check(err, jc.ErrorIs, carterrors.QuantityNotValid)
	_, err = s.service().UpdateQuantity(context.Background(), carttesting.GenCartUUID(c), producttesting.GenProductUUID(c), cart.MaxQuantity+1)
	c.Check(err, jc.ErrorIs, carterrors.QuantityNotValid)
}

func (s *serviceSuite) TestReplaceAll(c *gc.C) {
	defer s.setupMocks(c).Finish()

	cartID := carttesting.GenCartUUID(c)
	items := []cart.Item{
		{ProductUUID: producttesting.GenProductUUID(c), Quantity: 3},
		{ProductUUID: producttesting.GenProductUUID(c), Quantity: 1},
	}
	s.state.EXPECT().ReplaceItems(gomock.Any(), cartID, items, s.clock.Now()).Return(items, nil)

	got, err := s.service().ReplaceAll(context.Background(), cartID, items)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(got, gc.DeepEquals, items)
}

func (s *serviceSuite) TestReplaceAllEmpty(c *gc.C) {
	defer s.setupMocks(c).Finish()

	cartID := carttesting.GenCartUUID(c)
	s.state.EXPECT().ReplaceItems(gomock.Any(), cartID, gomock.Len(0), gomock.Any()).Return([]cart.Item{}, nil)

	got, err := s.service().ReplaceAll(context.Background(), cartID, []cart.Item{})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(got, gc.HasLen, 0)
}

func (s *serviceSuite) TestReplaceAllDuplicateProduct(c *gc.C) {
	defer s.setupMocks(c).Finish()

	productID := producttesting.GenProductUUID(c)
	_, err := s.service().ReplaceAll(context.Background(), carttesting.GenCartUUID(c), []cart.Item{
		{ProductUUID: productID, Quantity: 1},
		{ProductUUID: productID, Quantity: 2},
	})
	c.Assert(err, jc.ErrorIs, carterrors.ItemsNotValid)
}

func (s *serviceSuite) TestReplaceAllNotValid(c *gc.C) {
	defer s.setupMocks(c).Finish()

	cartID := carttesting.GenCartUUID(c)

	_, err := s.service().ReplaceAll(context.Background(), cartID, []cart.Item{
		{ProductUUID: product.UUID("bad"), Quantity: 1},
	})
	c.Check(err, jc.ErrorIs, carterrors.ItemsNotValid)

	_, err = s.service().ReplaceAll(context.Background(), cartID, []cart.Item{
		{ProductUUID: producttesting.GenProductUUID(c), Quantity: 0},
	})
	c.Check(err, jc.ErrorIs, carterrors.QuantityNotValid)

	_, err = s.service().ReplaceAll(context.Background(), cartID, []cart.Item{
		{ProductUUID: producttesting.GenProductUUID(c), Quantity: cart.MaxQuantity + 1},
	})
	c.Check(err, jc.ErrorIs, carterrors.QuantityNotValid)
}

func (s *serviceSuite) TestClear(c *gc.C) {
	defer s.setupMocks(c).Finish()

	cartID := carttesting.GenCartUUID(c)
	s.state.EXPECT().ClearCart(gomock.Any(), cartID, s.clock.Now()).Return(nil)

	err := s.service().Clear(context.Background(), cartID)
	c.Assert(err, jc.ErrorIsNil)
}

func (s *serviceSuite) TestClearNotReserved(c *gc.C) {
	defer s.setupMocks(c).Finish()

	cartID := carttesting.GenCartUUID(c)
	s.state.EXPECT().ClearCart(gomock.Any(), cartID, gomock.Any()).Return(carterrors.CartNotReserved)

	err := s.service().Clear(context.Background(), cartID)
	c.Assert(err, jc.ErrorIs, carterrors.CartNotReserved)
}

func (s *serviceSuite) TestAdvanceState(c *gc.C) {
	defer s.setupMocks(c).Finish()

	cartID := carttesting.GenCartUUID(c)
	s.state.EXPECT().SetCartState(gomock.Any(), cartID, cart.StateDelivered, s.clock.Now()).Return(nil)

	err := s.service().AdvanceState(context.Background(), cartID, cart.StateDelivered)
	c.Assert(err, jc.ErrorIsNil)
}

func (s *serviceSuite) TestAdvanceStateUnknown(c *gc.C) {
	defer s.setupMocks(c).Finish()

	err := s.service().AdvanceState(context.Background(), carttesting.GenCartUUID(c), cart.State("lost"))
	c.Assert(err, jc.ErrorIs, carterrors.StateChangeNotValid)
}
