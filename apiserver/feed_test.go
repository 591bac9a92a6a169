// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package apiserver_test

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/storefront/apiserver/params"
)

type feedSuite struct {
	baseSuite

	httpServer *httptest.Server
}

var _ = gc.Suite(&feedSuite{})

func (s *feedSuite) SetUpTest(c *gc.C) {
	s.baseSuite.SetUpTest(c)
	s.httpServer = httptest.NewServer(s.server)
	s.AddCleanup(func(*gc.C) { s.httpServer.Close() })
}

func (s *feedSuite) dial(c *gc.C, token string) *websocket.Conn {
	u := "ws" + strings.TrimPrefix(s.httpServer.URL, "http") + "/ws/products"
	if token != "" {
		u += "?token=" + url.QueryEscape(token)
	}
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	c.Assert(err, jc.ErrorIsNil)
	s.AddCleanup(func(*gc.C) { _ = conn.Close() })
	return conn
}

func (s *feedSuite) read(c *gc.C, conn *websocket.Conn) params.FeedMessage {
	err := conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	c.Assert(err, jc.ErrorIsNil)
	var msg params.FeedMessage
	err = conn.ReadJSON(&msg)
	c.Assert(err, jc.ErrorIsNil)
	return msg
}

func productCodes(products []params.Product) []string {
	codes := make([]string, len(products))
	for i, p := range products {
		codes[i] = p.Code
	}
	return codes
}

func (s *feedSuite) TestSnapshotOnConnect(c *gc.C) {
	s.SeedProduct(c, s.factory, "first", 100, 1)
	s.SeedProduct(c, s.factory, "second", 200, 1)

	conn := s.dial(c, "")
	msg := s.read(c, conn)
	c.Check(msg.Type, gc.Equals, params.FeedProducts)
	c.Check(productCodes(msg.Products), jc.DeepEquals, []string{"first", "second"})
}

func (s *feedSuite) TestSnapshotAfterChange(c *gc.C) {
	conn := s.dial(c, "")
	msg := s.read(c, conn)
	c.Check(msg.Products, gc.HasLen, 0)

	s.SeedProduct(c, s.factory, "first", 100, 1)

	msg = s.read(c, conn)
	c.Check(msg.Type, gc.Equals, params.FeedProducts)
	c.Check(productCodes(msg.Products), jc.DeepEquals, []string{"first"})
}

func (s *feedSuite) TestAdminAddAndDelete(c *gc.C) {
	conn := s.dial(c, s.adminToken(c))
	msg := s.read(c, conn)
	c.Check(msg.Products, gc.HasLen, 0)

	code, title, desc, price, stock := "lamp", "Desk lamp", "A lamp for a desk", int64(2500), 4
	err := conn.WriteJSON(params.FeedMessage{
		Type: params.FeedAddProduct,
		Product: &params.ProductArgs{
			Code:        &code,
			Title:       &title,
			Description: &desc,
			Price:       &price,
			Stock:       &stock,
		},
	})
	c.Assert(err, jc.ErrorIsNil)

	msg = s.read(c, conn)
	c.Assert(msg.Type, gc.Equals, params.FeedProducts)
	c.Assert(msg.Products, gc.HasLen, 1)
	c.Check(msg.Products[0].Code, gc.Equals, "lamp")

	err = conn.WriteJSON(params.FeedMessage{
		Type: params.FeedDeleteProduct,
		ID:   msg.Products[0].ID,
	})
	c.Assert(err, jc.ErrorIsNil)

	msg = s.read(c, conn)
	c.Check(msg.Type, gc.Equals, params.FeedProducts)
	c.Check(msg.Products, gc.HasLen, 0)
}

func (s *feedSuite) TestAnonymousCannotChange(c *gc.C) {
	conn := s.dial(c, "")
	s.read(c, conn)

	err := conn.WriteJSON(params.FeedMessage{Type: params.FeedDeleteProduct, ID: "whatever"})
	c.Assert(err, jc.ErrorIsNil)

	msg := s.read(c, conn)
	c.Check(msg.Type, gc.Equals, params.FeedError)
	c.Assert(msg.Error, gc.NotNil)
	c.Check(msg.Error.Code, gc.Equals, "unauthorized")
}

func (s *feedSuite) TestShopperCannotChange(c *gc.C) {
	_, token := s.shopperToken(c, "jo@example.com")
	conn := s.dial(c, token)
	s.read(c, conn)

	err := conn.WriteJSON(params.FeedMessage{Type: params.FeedDeleteProduct, ID: "whatever"})
	c.Assert(err, jc.ErrorIsNil)

	msg := s.read(c, conn)
	c.Check(msg.Type, gc.Equals, params.FeedError)
	c.Assert(msg.Error, gc.NotNil)
	c.Check(msg.Error.Code, gc.Equals, "forbidden")
}

func (s *feedSuite) TestBadMessages(c *gc.C) {
	conn := s.dial(c, s.adminToken(c))
	s.read(c, conn)

	err := conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
	c.Assert(err, jc.ErrorIsNil)
	msg := s.read(c, conn)
	c.Check(msg.Type, gc.Equals, params.FeedError)
	c.Check(msg.Error.Code, gc.Equals, "invalid argument")

	err = conn.WriteJSON(params.FeedMessage{Type: "rename-product"})
	c.Assert(err, jc.ErrorIsNil)
	msg = s.read(c, conn)
	c.Check(msg.Type, gc.Equals, params.FeedError)
	c.Check(msg.Error.Code, gc.Equals, "invalid argument")

	// The connection survives bad requests.
	s.SeedProduct(c, s.factory, "first", 100, 1)
	msg = s.read(c, conn)
	c.Check(msg.Type, gc.Equals, params.FeedProducts)
}

func (s *feedSuite) TestStopClosesFeed(c *gc.C) {
	conn := s.dial(c, "")
	s.read(c, conn)

	s.server.Stop()

	err := conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	c.Assert(err, jc.ErrorIsNil)
	_, _, err = conn.ReadMessage()
	c.Check(websocket.IsCloseError(err, websocket.CloseGoingAway), jc.IsTrue, gc.Commentf("%v", err))
}
