// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package apiserver

import (
	"net/http"

	"github.com/juju/errors"

	"github.com/juju/storefront/apiserver/authentication"
	apiservererrors "github.com/juju/storefront/apiserver/errors"
	"github.com/juju/storefront/apiserver/params"
	"github.com/juju/storefront/core/product"
	"github.com/juju/storefront/core/ticket"
	domainticket "github.com/juju/storefront/domain/ticket"
)

type ticketsHandler struct {
	server *Server
}

func (h *ticketsHandler) purchase(w http.ResponseWriter, req *http.Request, id authentication.Identity) error {
	var args params.PurchaseArgs
	if err := decodeJSON(req, &args, false); err != nil {
		return errors.Trace(err)
	}
	items := make([]domainticket.PurchaseItem, len(args.Products))
	for i, item := range args.Products {
		items[i] = domainticket.PurchaseItem{
			ProductUUID: product.UUID(item.ProductID),
			Quantity:    item.Quantity,
		}
	}

	t, err := h.server.config.Tickets.Purchase(req.Context(), id.UUID, items)
	h.server.recordPurchase(err)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(sendStatusAndJSON(w, http.StatusCreated, toParamsTicket(t)))
}

func (h *ticketsHandler) list(w http.ResponseWriter, req *http.Request, id authentication.Identity) error {
	tickets, err := h.server.config.Tickets.ListTicketsForUser(req.Context(), id.UUID)
	if err != nil {
		return errors.Trace(err)
	}
	result := make([]params.Ticket, len(tickets))
	for i, t := range tickets {
		result[i] = toParamsTicket(t)
	}
	return errors.Trace(sendStatusAndJSON(w, http.StatusOK, result))
}

func (h *ticketsHandler) get(w http.ResponseWriter, req *http.Request, id authentication.Identity) error {
	t, err := h.ownedTicket(req, id)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(sendStatusAndJSON(w, http.StatusOK, toParamsTicket(t)))
}

func (h *ticketsHandler) cancel(w http.ResponseWriter, req *http.Request, id authentication.Identity) error {
	t, err := h.ownedTicket(req, id)
	if err != nil {
		return errors.Trace(err)
	}
	t, err = h.server.config.Tickets.CancelTicket(req.Context(), t.UUID)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(sendStatusAndJSON(w, http.StatusOK, toParamsTicket(t)))
}

func (h *ticketsHandler) complete(w http.ResponseWriter, req *http.Request, _ authentication.Identity) error {
	t, err := h.server.config.Tickets.CompleteTicket(req.Context(), ticket.UUID(pathParam(req, "tid")))
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(sendStatusAndJSON(w, http.StatusOK, toParamsTicket(t)))
}

// ownedTicket returns the ticket named by the request, provided the
// identity owns it or is an admin.
func (h *ticketsHandler) ownedTicket(req *http.Request, id authentication.Identity) (ticket.Ticket, error) {
	t, err := h.server.config.Tickets.GetTicket(req.Context(), ticket.UUID(pathParam(req, "tid")))
	if err != nil {
		return ticket.Ticket{}, errors.Trace(err)
	}
	if err := authentication.AuthorizeOwnerOrAdmin(id, t.Owner); err != nil {
		return ticket.Ticket{}, errors.Trace(err)
	}
	return t, nil
}

// recordPurchase counts the outcome of a purchase attempt.
func (s *Server) recordPurchase(err error) {
	result := "success"
	if err != nil {
		result = apiservererrors.ErrCode(err)
	}
	s.config.Metrics.PurchaseAttempted(result)
}
