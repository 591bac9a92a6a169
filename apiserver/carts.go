// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package apiserver

import (
	"net/http"

	"github.com/juju/errors"

	"github.com/juju/storefront/apiserver/authentication"
	"github.com/juju/storefront/apiserver/params"
	"github.com/juju/storefront/core/cart"
	"github.com/juju/storefront/core/product"
	"github.com/juju/storefront/core/user"
)

type cartsHandler struct {
	server *Server
}

// create makes a new cart. Carts created with an access token belong to
// its user, others are anonymous.
func (h *cartsHandler) create(w http.ResponseWriter, req *http.Request) error {
	id, ok, err := h.server.optionalIdentity(req)
	if err != nil {
		return errors.Trace(err)
	}
	var owner user.UUID
	if ok {
		owner = id.UUID
	}

	c, err := h.server.config.Carts.CreateCart(req.Context(), owner)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(sendStatusAndJSON(w, http.StatusCreated, toParamsCart(c)))
}

func (h *cartsHandler) get(w http.ResponseWriter, req *http.Request) error {
	c, err := h.server.config.Carts.GetCartWithProducts(req.Context(), cartParam(req))
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(sendStatusAndJSON(w, http.StatusOK, toParamsCartWithProducts(c)))
}

// addProduct adds one unit of the product to the cart, or the quantity
// given in the optional body.
func (h *cartsHandler) addProduct(w http.ResponseWriter, req *http.Request) error {
	var args params.QuantityArgs
	if err := decodeJSON(req, &args, true); err != nil {
		return errors.Trace(err)
	}
	quantity := 1
	if args.Quantity != nil {
		quantity = *args.Quantity
	}

	cartID := cartParam(req)
	items, err := h.server.config.Carts.AddProduct(req.Context(), cartID, productParam(req), quantity)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(sendCartItems(w, cartID, items))
}

func (h *cartsHandler) updateQuantity(w http.ResponseWriter, req *http.Request) error {
	var args params.QuantityArgs
	if err := decodeJSON(req, &args, false); err != nil {
		return errors.Trace(err)
	}
	if args.Quantity == nil {
		return errors.Annotate(errBadRequest, "quantity is required")
	}

	cartID := cartParam(req)
	items, err := h.server.config.Carts.UpdateQuantity(req.Context(), cartID, productParam(req), *args.Quantity)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(sendCartItems(w, cartID, items))
}

func (h *cartsHandler) removeProduct(w http.ResponseWriter, req *http.Request) error {
	cartID := cartParam(req)
	items, err := h.server.config.Carts.RemoveProduct(req.Context(), cartID, productParam(req))
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(sendCartItems(w, cartID, items))
}

func (h *cartsHandler) replace(w http.ResponseWriter, req *http.Request) error {
	var args params.ReplaceCartArgs
	if err := decodeJSON(req, &args, false); err != nil {
		return errors.Trace(err)
	}
	items := make([]cart.Item, len(args.Products))
	for i, item := range args.Products {
		items[i] = cart.Item{
			ProductUUID: product.UUID(item.Product),
			Quantity:    item.Quantity,
		}
	}

	cartID := cartParam(req)
	result, err := h.server.config.Carts.ReplaceAll(req.Context(), cartID, items)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(sendCartItems(w, cartID, result))
}

func (h *cartsHandler) clear(w http.ResponseWriter, req *http.Request) error {
	cartID := cartParam(req)
	if err := h.server.config.Carts.Clear(req.Context(), cartID); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(sendCartItems(w, cartID, nil))
}

func (h *cartsHandler) setState(w http.ResponseWriter, req *http.Request, _ authentication.Identity) error {
	var args params.CartStateArgs
	if err := decodeJSON(req, &args, false); err != nil {
		return errors.Trace(err)
	}
	if err := h.server.config.Carts.AdvanceState(req.Context(), cartParam(req), cart.State(args.State)); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(sendStatusAndJSON(w, http.StatusOK, params.StatusResult{
		Status:  "success",
		Message: "cart is " + args.State,
	}))
}

func (h *cartsHandler) purchase(w http.ResponseWriter, req *http.Request, id authentication.Identity) error {
	t, err := h.server.config.Tickets.PurchaseCart(req.Context(), id.UUID, cartParam(req))
	h.server.recordPurchase(err)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(sendStatusAndJSON(w, http.StatusCreated, toParamsTicket(t)))
}

func sendCartItems(w http.ResponseWriter, cartID cart.UUID, items []cart.Item) error {
	return sendStatusAndJSON(w, http.StatusOK, params.CartItems{
		ID:       cartID.String(),
		Products: toParamsCartItems(items),
	})
}

func cartParam(req *http.Request) cart.UUID {
	return cart.UUID(pathParam(req, "cid"))
}

func productParam(req *http.Request) product.UUID {
	return product.UUID(pathParam(req, "pid"))
}
