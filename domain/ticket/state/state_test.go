// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/storefront/core/cart"
	carttesting "github.com/juju/storefront/core/cart/testing"
	"github.com/juju/storefront/core/product"
	producttesting "github.com/juju/storefront/core/product/testing"
	"github.com/juju/storefront/core/ticket"
	tickettesting "github.com/juju/storefront/core/ticket/testing"
	"github.com/juju/storefront/core/user"
	usertesting "github.com/juju/storefront/core/user/testing"
	carterrors "github.com/juju/storefront/domain/cart/errors"
	cartstate "github.com/juju/storefront/domain/cart/state"
	catalogerrors "github.com/juju/storefront/domain/catalog/errors"
	catalogstate "github.com/juju/storefront/domain/catalog/state"
	schematesting "github.com/juju/storefront/domain/schema/testing"
	domainticket "github.com/juju/storefront/domain/ticket"
	ticketerrors "github.com/juju/storefront/domain/ticket/errors"
)

type stateSuite struct {
	schematesting.StorefrontSuite

	now   time.Time
	owner user.UUID
	codes int
}

var _ = gc.Suite(&stateSuite{})

func (s *stateSuite) SetUpTest(c *gc.C) {
	s.StorefrontSuite.SetUpTest(c)
	s.now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.owner = s.addUser(c, "alice@example.com")
}

func (s *stateSuite) addUser(c *gc.C, email string) user.UUID {
	uuid := usertesting.GenUserUUID(c)
	_, err := s.DB().ExecContext(context.Background(), `
INSERT INTO user (uuid, email, first_name, last_name, password_hash, verified, created_at)
VALUES (?, ?, 'First', 'Last', 'hash', TRUE, ?)`, uuid.String(), email, s.now)
	c.Assert(err, jc.ErrorIsNil)
	return uuid
}

func (s *stateSuite) addProduct(c *gc.C, code string, price int64, stock int) product.UUID {
	uuid := producttesting.GenProductUUID(c)
	err := catalogstate.NewState(s.TxnRunnerFactory()).CreateProduct(context.Background(), product.Product{
		UUID:        uuid,
		Code:        code,
		Title:       "Product " + code,
		Description: "Description of " + code,
		Price:       price,
		Stock:       stock,
		Category:    product.CategoryOther,
		Status:      product.StatusAvailable,
		Image:       product.DefaultImage,
		Thumbnails:  []string{product.DefaultThumbnail},
		CreatedAt:   s.now,
		UpdatedAt:   s.now,
	})
	c.Assert(err, jc.ErrorIsNil)
	return uuid
}

func (s *stateSuite) getProduct(c *gc.C, uuid product.UUID) product.Product {
	p, err := catalogstate.NewState(s.TxnRunnerFactory()).GetProduct(context.Background(), uuid)
	c.Assert(err, jc.ErrorIsNil)
	return p
}

func (s *stateSuite) purchaseArgs(c *gc.C, items ...domainticket.PurchaseItem) domainticket.PurchaseArgs {
	s.codes++
	return domainticket.PurchaseArgs{
		UUID:  tickettesting.GenTicketUUID(c),
		Code:  fmt.Sprintf("code-%d", s.codes),
		Owner: s.owner,
		Items: items,
		Now:   s.now,
	}
}

func (s *stateSuite) countTickets(c *gc.C) int {
	var count int
	err := s.DB().QueryRowContext(context.Background(), "SELECT COUNT(*) FROM ticket").Scan(&count)
	c.Assert(err, jc.ErrorIsNil)
	return count
}

func (s *stateSuite) TestPurchase(c *gc.C) {
	st := NewState(s.TxnRunnerFactory())
	p1 := s.addProduct(c, "P1", 250, 10)
	p2 := s.addProduct(c, "P2", 1000, 3)

	args := s.purchaseArgs(c,
		domainticket.PurchaseItem{ProductUUID: p1, Quantity: 4},
		domainticket.PurchaseItem{ProductUUID: p2, Quantity: 3},
	)
	t, err := st.Purchase(context.Background(), args)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(t.UUID, gc.Equals, args.UUID)
	c.Check(t.Owner, gc.Equals, s.owner)
	c.Check(t.Status, gc.Equals, ticket.StatusPending)
	c.Check(t.Total, gc.Equals, int64(4*250+3*1000))
	c.Check(t.Items, gc.DeepEquals, []ticket.Item{
		{ProductUUID: p1, Title: "Product P1", Quantity: 4, Price: 250},
		{ProductUUID: p2, Title: "Product P2", Quantity: 3, Price: 1000},
	})

	c.Check(s.getProduct(c, p1).Stock, gc.Equals, 6)
	c.Check(s.getProduct(c, p1).Status, gc.Equals, product.StatusAvailable)
	c.Check(s.getProduct(c, p2).Stock, gc.Equals, 0)
	c.Check(s.getProduct(c, p2).Status, gc.Equals, product.StatusOutOfStock)

	got, err := st.GetTicket(context.Background(), args.UUID)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(got.Code, gc.Equals, args.Code)
	c.Check(got.Items, gc.DeepEquals, t.Items)
	c.Check(got.Total, gc.Equals, t.Total)
}

func (s *stateSuite) TestPurchaseInsufficientStockChangesNothing(c *gc.C) {
	st := NewState(s.TxnRunnerFactory())
	p1 := s.addProduct(c, "P1", 100, 5)
	p2 := s.addProduct(c, "P2", 100, 1)

	_, err := st.Purchase(context.Background(), s.purchaseArgs(c,
		domainticket.PurchaseItem{ProductUUID: p1, Quantity: 5},
		domainticket.PurchaseItem{ProductUUID: p2, Quantity: 2},
	))
	c.Assert(err, jc.ErrorIs, ticketerrors.InsufficientStock)

	c.Check(s.getProduct(c, p1).Stock, gc.Equals, 5)
	c.Check(s.getProduct(c, p1).Status, gc.Equals, product.StatusAvailable)
	c.Check(s.getProduct(c, p2).Stock, gc.Equals, 1)
	c.Check(s.countTickets(c), gc.Equals, 0)
}

func (s *stateSuite) TestPurchaseProductNotFoundChangesNothing(c *gc.C) {
	st := NewState(s.TxnRunnerFactory())
	p1 := s.addProduct(c, "P1", 100, 5)

	_, err := st.Purchase(context.Background(), s.purchaseArgs(c,
		domainticket.PurchaseItem{ProductUUID: p1, Quantity: 2},
		domainticket.PurchaseItem{ProductUUID: producttesting.GenProductUUID(c), Quantity: 1},
	))
	c.Assert(err, jc.ErrorIs, catalogerrors.ProductNotFound)

	c.Check(s.getProduct(c, p1).Stock, gc.Equals, 5)
	c.Check(s.countTickets(c), gc.Equals, 0)
}

func (s *stateSuite) TestPurchaseTotalOverflowChangesNothing(c *gc.C) {
	st := NewState(s.TxnRunnerFactory())
	p1 := s.addProduct(c, "P1", math.MaxInt64/2, 3)
	p2 := s.addProduct(c, "P2", math.MaxInt64/2+1, 1)

	_, err := st.Purchase(context.Background(), s.purchaseArgs(c,
		domainticket.PurchaseItem{ProductUUID: p1, Quantity: 3},
	))
	c.Check(err, jc.ErrorIs, ticketerrors.ItemsNotValid)

	// Each line fits on its own, but not their sum.
	_, err = st.Purchase(context.Background(), s.purchaseArgs(c,
		domainticket.PurchaseItem{ProductUUID: p1, Quantity: 1},
		domainticket.PurchaseItem{ProductUUID: p2, Quantity: 1},
	))
	c.Check(err, jc.ErrorIs, ticketerrors.ItemsNotValid)

	c.Check(s.getProduct(c, p1).Stock, gc.Equals, 3)
	c.Check(s.getProduct(c, p2).Stock, gc.Equals, 1)
	c.Check(s.countTickets(c), gc.Equals, 0)
}

func (s *stateSuite) TestAddSubtotal(c *gc.C) {
	total, ok := addSubtotal(100, 250, 4)
	c.Check(ok, jc.IsTrue)
	c.Check(total, gc.Equals, int64(1100))

	total, ok = addSubtotal(0, 0, math.MaxInt)
	c.Check(ok, jc.IsTrue)
	c.Check(total, gc.Equals, int64(0))

	_, ok = addSubtotal(1, math.MaxInt64, 1)
	c.Check(ok, jc.IsFalse)

	_, ok = addSubtotal(0, 2, math.MaxInt64/2+1)
	c.Check(ok, jc.IsFalse)
}

func (s *stateSuite) TestPurchaseLastUnitConcurrently(c *gc.C) {
	st := NewState(s.TxnRunnerFactory())
	p := s.addProduct(c, "P1", 100, 1)

	argsA := s.purchaseArgs(c, domainticket.PurchaseItem{ProductUUID: p, Quantity: 1})
	argsB := s.purchaseArgs(c, domainticket.PurchaseItem{ProductUUID: p, Quantity: 1})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, args := range []domainticket.PurchaseArgs{argsA, argsB} {
		wg.Add(1)
		go func(i int, args domainticket.PurchaseArgs) {
			defer wg.Done()
			_, errs[i] = st.Purchase(context.Background(), args)
		}(i, args)
	}
	wg.Wait()

	var succeeded, failed int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		c.Check(err, jc.ErrorIs, ticketerrors.InsufficientStock)
		failed++
	}
	c.Check(succeeded, gc.Equals, 1)
	c.Check(failed, gc.Equals, 1)
	c.Check(s.getProduct(c, p).Stock, gc.Equals, 0)
	c.Check(s.countTickets(c), gc.Equals, 1)
}

func (s *stateSuite) TestTicketIsSnapshot(c *gc.C) {
	st := NewState(s.TxnRunnerFactory())
	p := s.addProduct(c, "P1", 100, 5)

	args := s.purchaseArgs(c, domainticket.PurchaseItem{ProductUUID: p, Quantity: 1})
	_, err := st.Purchase(context.Background(), args)
	c.Assert(err, jc.ErrorIsNil)

	err = catalogstate.NewState(s.TxnRunnerFactory()).DeleteProduct(context.Background(), p)
	c.Assert(err, jc.ErrorIsNil)

	got, err := st.GetTicket(context.Background(), args.UUID)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(got.Items, gc.DeepEquals, []ticket.Item{
		{ProductUUID: p, Title: "Product P1", Quantity: 1, Price: 100},
	})
	c.Check(got.Total, gc.Equals, int64(100))
}

func (s *stateSuite) TestGetTicketNotFound(c *gc.C) {
	st := NewState(s.TxnRunnerFactory())

	_, err := st.GetTicket(context.Background(), tickettesting.GenTicketUUID(c))
	c.Assert(err, jc.ErrorIs, ticketerrors.TicketNotFound)
}

func (s *stateSuite) TestCancelTicketRestocks(c *gc.C) {
	st := NewState(s.TxnRunnerFactory())
	p := s.addProduct(c, "P1", 100, 2)

	args := s.purchaseArgs(c, domainticket.PurchaseItem{ProductUUID: p, Quantity: 2})
	_, err := st.Purchase(context.Background(), args)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(s.getProduct(c, p).Status, gc.Equals, product.StatusOutOfStock)

	t, err := st.CancelTicket(context.Background(), args.UUID, s.now.Add(time.Hour))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(t.Status, gc.Equals, ticket.StatusCancelled)

	restocked := s.getProduct(c, p)
	c.Check(restocked.Stock, gc.Equals, 2)
	c.Check(restocked.Status, gc.Equals, product.StatusAvailable)

	_, err = st.CancelTicket(context.Background(), args.UUID, s.now)
	c.Assert(err, jc.ErrorIs, ticketerrors.StatusChangeNotValid)
	c.Check(s.getProduct(c, p).Stock, gc.Equals, 2)
}

func (s *stateSuite) TestCompleteTicket(c *gc.C) {
	st := NewState(s.TxnRunnerFactory())
	p := s.addProduct(c, "P1", 100, 2)

	args := s.purchaseArgs(c, domainticket.PurchaseItem{ProductUUID: p, Quantity: 1})
	_, err := st.Purchase(context.Background(), args)
	c.Assert(err, jc.ErrorIsNil)

	t, err := st.CompleteTicket(context.Background(), args.UUID, s.now)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(t.Status, gc.Equals, ticket.StatusCompleted)

	_, err = st.CancelTicket(context.Background(), args.UUID, s.now)
	c.Assert(err, jc.ErrorIs, ticketerrors.StatusChangeNotValid)
	c.Check(s.getProduct(c, p).Stock, gc.Equals, 1)
}

func (s *stateSuite) TestListTicketsForUser(c *gc.C) {
	st := NewState(s.TxnRunnerFactory())
	p := s.addProduct(c, "P1", 100, 10)
	other := s.addUser(c, "bob@example.com")

	first := s.purchaseArgs(c, domainticket.PurchaseItem{ProductUUID: p, Quantity: 1})
	_, err := st.Purchase(context.Background(), first)
	c.Assert(err, jc.ErrorIsNil)

	second := s.purchaseArgs(c, domainticket.PurchaseItem{ProductUUID: p, Quantity: 2})
	second.Now = s.now.Add(time.Minute)
	_, err = st.Purchase(context.Background(), second)
	c.Assert(err, jc.ErrorIsNil)

	theirs := s.purchaseArgs(c, domainticket.PurchaseItem{ProductUUID: p, Quantity: 1})
	theirs.Owner = other
	_, err = st.Purchase(context.Background(), theirs)
	c.Assert(err, jc.ErrorIsNil)

	tickets, err := st.ListTicketsForUser(context.Background(), s.owner)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(tickets, gc.HasLen, 2)
	c.Check(tickets[0].UUID, gc.Equals, first.UUID)
	c.Check(tickets[1].UUID, gc.Equals, second.UUID)
	c.Check(tickets[1].Items, gc.HasLen, 1)

	tickets, err = st.ListTicketsForUser(context.Background(), usertesting.GenUserUUID(c))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(tickets, gc.HasLen, 0)
}

func (s *stateSuite) TestPurchaseCart(c *gc.C) {
	st := NewState(s.TxnRunnerFactory())
	carts := cartstate.NewState(s.TxnRunnerFactory())
	p1 := s.addProduct(c, "P1", 100, 10)
	p2 := s.addProduct(c, "P2", 300, 10)

	cartID := carttesting.GenCartUUID(c)
	err := carts.CreateCart(context.Background(), cartID, s.owner, s.now)
	c.Assert(err, jc.ErrorIsNil)
	_, err = carts.AddProduct(context.Background(), cartID, p2, 2, s.now)
	c.Assert(err, jc.ErrorIsNil)
	_, err = carts.AddProduct(context.Background(), cartID, p1, 1, s.now)
	c.Assert(err, jc.ErrorIsNil)

	t, err := st.PurchaseCart(context.Background(), domainticket.PurchaseCartArgs{
		UUID:  tickettesting.GenTicketUUID(c),
		Code:  "cart-code",
		Owner: s.owner,
		Cart:  cartID,
		Now:   s.now,
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(t.Cart, gc.Equals, cartID)
	c.Check(t.Total, gc.Equals, int64(700))
	c.Assert(t.Items, gc.HasLen, 2)
	c.Check(t.Items[0].ProductUUID, gc.Equals, p2)

	got, err := carts.GetCart(context.Background(), cartID)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(got.State, gc.Equals, cart.StatePaid)
	c.Check(s.getProduct(c, p2).Stock, gc.Equals, 8)

	_, err = st.PurchaseCart(context.Background(), domainticket.PurchaseCartArgs{
		UUID:  tickettesting.GenTicketUUID(c),
		Code:  "cart-code-2",
		Owner: s.owner,
		Cart:  cartID,
		Now:   s.now,
	})
	c.Assert(err, jc.ErrorIs, carterrors.CartNotReserved)
}

func (s *stateSuite) TestPurchaseCartErrors(c *gc.C) {
	st := NewState(s.TxnRunnerFactory())
	carts := cartstate.NewState(s.TxnRunnerFactory())
	p := s.addProduct(c, "P1", 100, 1)

	args := func(cartID cart.UUID) domainticket.PurchaseCartArgs {
		return domainticket.PurchaseCartArgs{
			UUID:  tickettesting.GenTicketUUID(c),
			Code:  "code-" + cartID.String(),
			Owner: s.owner,
			Cart:  cartID,
			Now:   s.now,
		}
	}

	_, err := st.PurchaseCart(context.Background(), args(carttesting.GenCartUUID(c)))
	c.Check(err, jc.ErrorIs, carterrors.CartNotFound)

	empty := carttesting.GenCartUUID(c)
	err = carts.CreateCart(context.Background(), empty, "", s.now)
	c.Assert(err, jc.ErrorIsNil)
	_, err = st.PurchaseCart(context.Background(), args(empty))
	c.Check(err, jc.ErrorIs, ticketerrors.EmptyPurchase)

	theirs := carttesting.GenCartUUID(c)
	err = carts.CreateCart(context.Background(), theirs, s.addUser(c, "bob@example.com"), s.now)
	c.Assert(err, jc.ErrorIsNil)
	_, err = carts.AddProduct(context.Background(), theirs, p, 1, s.now)
	c.Assert(err, jc.ErrorIsNil)
	_, err = st.PurchaseCart(context.Background(), args(theirs))
	c.Check(err, jc.ErrorIs, ticketerrors.NotOwner)

	greedy := carttesting.GenCartUUID(c)
	err = carts.CreateCart(context.Background(), greedy, s.owner, s.now)
	c.Assert(err, jc.ErrorIsNil)
	_, err = carts.AddProduct(context.Background(), greedy, p, 2, s.now)
	c.Assert(err, jc.ErrorIsNil)
	_, err = st.PurchaseCart(context.Background(), args(greedy))
	c.Check(err, jc.ErrorIs, ticketerrors.InsufficientStock)

	got, err := carts.GetCart(context.Background(), greedy)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(got.State, gc.Equals, cart.StateReserved)
	c.Check(s.getProduct(c, p).Stock, gc.Equals, 1)
	c.Check(s.countTickets(c), gc.Equals, 0)
}
