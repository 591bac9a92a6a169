// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package apiserver

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/juju/errors"

	apiservererrors "github.com/juju/storefront/apiserver/errors"
	"github.com/juju/storefront/core/product"
	domaincart "github.com/juju/storefront/domain/cart"
)

//go:embed templates/*.html
var templateFS embed.FS

type viewFunc func(*http.Request) (name string, data interface{}, err error)

// viewsHandler renders the server side HTML pages.
type viewsHandler struct {
	server *Server
}

func (s *Server) viewTemplates() *template.Template {
	return template.Must(template.New("views").Funcs(template.FuncMap{
		"price": formatPrice,
		"count": func(n int) string { return humanize.Comma(int64(n)) },
		"since": func(t time.Time) string {
			return humanize.RelTime(t, s.config.Clock.Now(), "ago", "from now")
		},
	}).ParseFS(templateFS, "templates/*.html"))
}

// handleView renders the template chosen by fn. Errors are rendered as a
// plain text page with the status of the equivalent API error.
func (s *Server) handleView(fn viewFunc) http.Handler {
	templates := s.viewTemplates()
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		name, data, err := fn(req)
		var buf bytes.Buffer
		if err == nil {
			err = templates.ExecuteTemplate(&buf, name, data)
		}
		if err != nil {
			perr, status := apiservererrors.ServerErrorAndStatus(err)
			if status == http.StatusInternalServerError {
				logger.Errorf("rendering %s: %s", req.URL.Path, errors.Details(err))
			}
			http.Error(w, perr.Message, status)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)
	})
}

type productsView struct {
	Title      string
	Products   []product.Product
	Page       int
	TotalPages int
	PrevLink   string
	NextLink   string
}

func (h *viewsHandler) products(req *http.Request) (string, interface{}, error) {
	args, err := listArgsFromQuery(req.URL.Query())
	if err != nil {
		return "", nil, errors.Trace(err)
	}
	page, err := h.server.config.Catalog.ListProducts(req.Context(), args)
	if err != nil {
		return "", nil, errors.Trace(err)
	}
	view := productsView{
		Title:      "Products",
		Products:   page.Products,
		Page:       page.Page,
		TotalPages: page.TotalPages,
	}
	if page.HasPrev() {
		view.PrevLink = pageLink(req.URL.Path, args, page.Limit, page.PrevPage())
	}
	if page.HasNext() {
		view.NextLink = pageLink(req.URL.Path, args, page.Limit, page.NextPage())
	}
	return "products", view, nil
}

type cartView struct {
	Title string
	Cart  domaincart.CartWithProducts
}

func (h *viewsHandler) cart(req *http.Request) (string, interface{}, error) {
	c, err := h.server.config.Carts.GetCartWithProducts(req.Context(), cartParam(req))
	if err != nil {
		return "", nil, errors.Trace(err)
	}
	return "cart", cartView{Title: "Cart", Cart: c}, nil
}

type realtimeProductsView struct {
	Title    string
	FeedPath string
}

func (h *viewsHandler) realtimeProducts(*http.Request) (string, interface{}, error) {
	return "realtimeproducts", realtimeProductsView{
		Title:    "Realtime products",
		FeedPath: "/ws/products",
	}, nil
}

// formatPrice renders minor currency units as a decimal amount.
func formatPrice(minor int64) string {
	return "$" + humanize.FormatFloat("#,###.##", float64(minor)/100)
}
