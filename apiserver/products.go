// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package apiserver

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/juju/errors"

	"github.com/juju/storefront/apiserver/authentication"
	"github.com/juju/storefront/apiserver/params"
	"github.com/juju/storefront/core/product"
	"github.com/juju/storefront/domain/catalog"
)

type productsHandler struct {
	server *Server
}

func (h *productsHandler) list(w http.ResponseWriter, req *http.Request) error {
	args, err := listArgsFromQuery(req.URL.Query())
	if err != nil {
		return errors.Trace(err)
	}
	page, err := h.server.config.Catalog.ListProducts(req.Context(), args)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(sendStatusAndJSON(w, http.StatusOK, toParamsProductsPage(req.URL.Path, args, page)))
}

func (h *productsHandler) get(w http.ResponseWriter, req *http.Request) error {
	p, err := h.server.config.Catalog.GetProduct(req.Context(), product.UUID(pathParam(req, "pid")))
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(sendStatusAndJSON(w, http.StatusOK, toParamsProduct(p)))
}

func (h *productsHandler) create(w http.ResponseWriter, req *http.Request, _ authentication.Identity) error {
	var args params.ProductArgs
	if err := decodeJSON(req, &args, false); err != nil {
		return errors.Trace(err)
	}
	p, err := h.server.config.Catalog.CreateProduct(req.Context(), toCreateProductArgs(args))
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(sendStatusAndJSON(w, http.StatusCreated, toParamsProduct(p)))
}

func (h *productsHandler) update(w http.ResponseWriter, req *http.Request, _ authentication.Identity) error {
	var args params.ProductArgs
	if err := decodeJSON(req, &args, false); err != nil {
		return errors.Trace(err)
	}
	p, err := h.server.config.Catalog.UpdateProduct(req.Context(), product.UUID(pathParam(req, "pid")), toUpdateProductArgs(args))
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(sendStatusAndJSON(w, http.StatusOK, toParamsProduct(p)))
}

func (h *productsHandler) delete(w http.ResponseWriter, req *http.Request, _ authentication.Identity) error {
	if err := h.server.config.Catalog.DeleteProduct(req.Context(), product.UUID(pathParam(req, "pid"))); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(sendStatusAndJSON(w, http.StatusOK, params.StatusResult{
		Status:  "success",
		Message: "product deleted",
	}))
}

// listArgsFromQuery reads page, limit, query and sort from the query
// string. Missing values take the catalog defaults.
func listArgsFromQuery(values url.Values) (catalog.ListArgs, error) {
	args := catalog.ListArgs{
		Query: values.Get("query"),
		Sort:  catalog.SortOrder(values.Get("sort")),
	}
	var err error
	if v := values.Get("page"); v != "" {
		if args.Page, err = strconv.Atoi(v); err != nil || args.Page < 1 {
			return catalog.ListArgs{}, errors.Annotatef(errBadRequest, "page %q", v)
		}
	}
	if v := values.Get("limit"); v != "" {
		if args.Limit, err = strconv.Atoi(v); err != nil || args.Limit < 1 {
			return catalog.ListArgs{}, errors.Annotatef(errBadRequest, "limit %q", v)
		}
	}
	return args, nil
}

func toParamsProductsPage(path string, args catalog.ListArgs, page catalog.Page) params.ProductsPage {
	result := params.ProductsPage{
		Status:      "success",
		Payload:     toParamsProducts(page.Products),
		TotalPages:  page.TotalPages,
		Page:        page.Page,
		HasPrevPage: page.HasPrev(),
		HasNextPage: page.HasNext(),
	}
	if page.HasPrev() {
		prev := page.PrevPage()
		link := pageLink(path, args, page.Limit, prev)
		result.PrevPage, result.PrevLink = &prev, &link
	}
	if page.HasNext() {
		next := page.NextPage()
		link := pageLink(path, args, page.Limit, next)
		result.NextPage, result.NextLink = &next, &link
	}
	return result
}

func pageLink(path string, args catalog.ListArgs, limit, page int) string {
	values := url.Values{}
	values.Set("page", strconv.Itoa(page))
	values.Set("limit", strconv.Itoa(limit))
	if args.Query != "" {
		values.Set("query", args.Query)
	}
	if args.Sort != catalog.SortNone {
		values.Set("sort", string(args.Sort))
	}
	return path + "?" + values.Encode()
}
