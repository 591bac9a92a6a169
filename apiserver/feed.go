// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package apiserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/errors"

	"github.com/juju/storefront/apiserver/authentication"
	apiservererrors "github.com/juju/storefront/apiserver/errors"
	"github.com/juju/storefront/apiserver/params"
	"github.com/juju/storefront/core/product"
	catalogpubsub "github.com/juju/storefront/internal/pubsub/catalog"
)

const (
	// pongDelay is how long the server waits for a pong from the client
	// before considering the connection gone.
	pongDelay = 90 * time.Second

	// pingPeriod is how often the server pings the client. It must be
	// less than pongDelay.
	pingPeriod = (pongDelay * 8) / 10

	// writeWait bounds every write to the client.
	writeWait = 10 * time.Second
)

var websocketUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// feedHandler serves the realtime product feed. Every client is sent the
// whole catalog on connect and again after every catalog change. Admins
// may add and delete products through the feed.
type feedHandler struct {
	server *Server
}

type feedRequest struct {
	msg params.FeedMessage
	err error
}

// ServeHTTP implements the http.Handler interface.
func (h *feedHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// A client without a valid token may still watch the feed, it is only
	// refused when it tries to change the catalog.
	id, authenticated, err := h.server.optionalIdentity(req)
	if err != nil {
		logger.Debugf("feed client %s not authenticated: %v", req.RemoteAddr, err)
		authenticated = false
	}

	socket, err := websocketUpgrader.Upgrade(w, req, nil)
	if err != nil {
		logger.Errorf("problem initiating websocket: %v", err)
		return
	}
	defer socket.Close()
	defer h.server.config.Metrics.FeedConnected()()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A single pending change is enough, a snapshot covers every change
	// made before it was taken.
	changes := make(chan struct{}, 1)
	unsubscribe := h.server.config.Hub.Subscribe(func(catalogpubsub.ProductsChanged) {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	if err := h.sendProducts(ctx, socket); err != nil {
		logger.Debugf("failed to send products: %v", err)
		return
	}

	// Here we configure the ping/pong handling for the websocket so the
	// server can notice when the client goes away.
	_ = socket.SetReadDeadline(time.Now().Add(pongDelay))
	socket.SetPongHandler(func(string) error {
		return socket.SetReadDeadline(time.Now().Add(pongDelay))
	})
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	requests := h.receiveMessages(ctx, socket)
	for {
		select {
		case <-h.server.stop():
			deadline := time.Now().Add(writeWait)
			_ = socket.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping"), deadline)
			return
		case <-ticker.C:
			deadline := time.Now().Add(writeWait)
			if err := socket.WriteControl(websocket.PingMessage, []byte{}, deadline); err != nil {
				// This error is expected if the other end goes away. By
				// returning we close the socket through the defer call.
				logger.Debugf("failed to write ping: %s", err)
				return
			}
		case <-changes:
			if err := h.sendProducts(ctx, socket); err != nil {
				logger.Debugf("failed to send products: %v", err)
				return
			}
		case r, ok := <-requests:
			if !ok {
				return
			}
			err := r.err
			if err == nil {
				err = h.handleMessage(ctx, r.msg, id, authenticated)
			}
			if err != nil {
				if err := h.sendError(socket, err); err != nil {
					logger.Debugf("failed to send error: %v", err)
					return
				}
			}
		}
	}
}

// receiveMessages reads frames from the client until the socket fails or
// ctx is done, closing the returned channel when the socket fails.
func (h *feedHandler) receiveMessages(ctx context.Context, socket *websocket.Conn) <-chan feedRequest {
	requests := make(chan feedRequest)
	go func() {
		defer close(requests)
		for {
			// ReadMessage blocks until data arrives but will also be
			// unblocked when the handler closes the socket as it finishes.
			_, data, err := socket.ReadMessage()
			if err != nil {
				logger.Tracef("feed receive error: %v", err)
				return
			}

			var r feedRequest
			if err := json.Unmarshal(data, &r.msg); err != nil {
				r.err = errors.Annotatef(errBadRequest, "decoding message: %v", err)
			}
			select {
			case <-ctx.Done():
				return
			case requests <- r:
			}
		}
	}()
	return requests
}

func (h *feedHandler) handleMessage(ctx context.Context, msg params.FeedMessage, id authentication.Identity, authenticated bool) error {
	switch msg.Type {
	case params.FeedAddProduct, params.FeedDeleteProduct:
	default:
		return errors.Annotatef(errBadRequest, "unknown message type %q", msg.Type)
	}

	if !authenticated {
		return errors.Annotate(apiservererrors.ErrUnauthorized, "an admin token is required")
	}
	if err := authentication.AuthorizeAdmin(id); err != nil {
		return errors.Trace(err)
	}

	switch msg.Type {
	case params.FeedAddProduct:
		if msg.Product == nil {
			return errors.Annotate(errBadRequest, "missing product")
		}
		_, err := h.server.config.Catalog.CreateProduct(ctx, toCreateProductArgs(*msg.Product))
		return errors.Trace(err)
	default:
		return errors.Trace(h.server.config.Catalog.DeleteProduct(ctx, product.UUID(msg.ID)))
	}
}

func (h *feedHandler) sendProducts(ctx context.Context, socket *websocket.Conn) error {
	products, err := h.server.config.Catalog.AllProducts(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(h.send(socket, params.FeedMessage{
		Type:     params.FeedProducts,
		Products: toParamsProducts(products),
	}))
}

func (h *feedHandler) sendError(socket *websocket.Conn, err error) error {
	perr, status := apiservererrors.ServerErrorAndStatus(err)
	if status == http.StatusInternalServerError {
		logger.Errorf("feed request failed: %s", errors.Details(err))
	}
	return errors.Trace(h.send(socket, params.FeedMessage{
		Type:  params.FeedError,
		Error: perr,
	}))
}

func (h *feedHandler) send(socket *websocket.Conn, msg params.FeedMessage) error {
	if err := socket.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(socket.WriteJSON(msg))
}
