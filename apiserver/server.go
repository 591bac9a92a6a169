// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package apiserver serves the storefront over HTTP: the JSON API, the
// server rendered views and the realtime product feed.
package apiserver

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/juju/storefront/apiserver/authentication"
	"github.com/juju/storefront/apiserver/observer"
	"github.com/juju/storefront/apiserver/observer/metrics"
	"github.com/juju/storefront/core/cart"
	"github.com/juju/storefront/core/product"
	"github.com/juju/storefront/core/ticket"
	"github.com/juju/storefront/core/user"
	domaincart "github.com/juju/storefront/domain/cart"
	"github.com/juju/storefront/domain/catalog"
	domainticket "github.com/juju/storefront/domain/ticket"
	domainuser "github.com/juju/storefront/domain/user"
	"github.com/juju/storefront/internal/auth"
	"github.com/juju/storefront/internal/mail"
	catalogpubsub "github.com/juju/storefront/internal/pubsub/catalog"
)

var logger = loggo.GetLogger("storefront.apiserver")

// CatalogService provides the product catalog.
type CatalogService interface {
	CreateProduct(context.Context, catalog.CreateProductArgs) (product.Product, error)
	UpdateProduct(context.Context, product.UUID, catalog.UpdateProductArgs) (product.Product, error)
	DeleteProduct(context.Context, product.UUID) error
	GetProduct(context.Context, product.UUID) (product.Product, error)
	ListProducts(context.Context, catalog.ListArgs) (catalog.Page, error)
	AllProducts(context.Context) ([]product.Product, error)
}

// CartService provides shopping carts.
type CartService interface {
	CreateCart(context.Context, user.UUID) (cart.Cart, error)
	GetCartWithProducts(context.Context, cart.UUID) (domaincart.CartWithProducts, error)
	AddProduct(context.Context, cart.UUID, product.UUID, int) ([]cart.Item, error)
	RemoveProduct(context.Context, cart.UUID, product.UUID) ([]cart.Item, error)
	UpdateQuantity(context.Context, cart.UUID, product.UUID, int) ([]cart.Item, error)
	ReplaceAll(context.Context, cart.UUID, []cart.Item) ([]cart.Item, error)
	Clear(context.Context, cart.UUID) error
	AdvanceState(context.Context, cart.UUID, cart.State) error
}

// TicketService provides purchases.
type TicketService interface {
	Purchase(context.Context, user.UUID, []domainticket.PurchaseItem) (ticket.Ticket, error)
	PurchaseCart(context.Context, user.UUID, cart.UUID) (ticket.Ticket, error)
	CancelTicket(context.Context, ticket.UUID) (ticket.Ticket, error)
	CompleteTicket(context.Context, ticket.UUID) (ticket.Ticket, error)
	GetTicket(context.Context, ticket.UUID) (ticket.Ticket, error)
	ListTicketsForUser(context.Context, user.UUID) ([]ticket.Ticket, error)
}

// UserService provides accounts.
type UserService interface {
	Register(context.Context, domainuser.RegisterArgs) (user.UUID, string, error)
	Verify(ctx context.Context, email, code string) error
	Login(context.Context, string, auth.Password) (user.User, error)
	GetUser(context.Context, user.UUID) (user.User, error)
	GetUserResetStamp(context.Context, string) (user.User, string, error)
	SetPassword(context.Context, user.UUID, auth.Password) error
}

// TokenIssuer signs and parses the tokens handed to clients.
type TokenIssuer interface {
	IssueAccess(uuid user.UUID, email string, role user.Role, ttl time.Duration) (string, error)
	IssueVerification(email, code string, ttl time.Duration) (string, error)
	IssueReset(email, stamp string, ttl time.Duration) (string, error)
	Parse(raw string, purpose auth.Purpose) (auth.Claims, error)
}

// ChangeHub reports catalog changes to the realtime feed.
type ChangeHub interface {
	Subscribe(func(catalogpubsub.ProductsChanged)) func()
}

// Config holds the dependencies of a Server.
type Config struct {
	Clock   clock.Clock
	Catalog CatalogService
	Carts   CartService
	Tickets TicketService
	Users   UserService
	Tokens  TokenIssuer
	Mailer  mail.Mailer
	Hub     ChangeHub

	// Metrics collects request and feed metrics.
	Metrics *metrics.Collector

	// MetricsHandler serves the prometheus exposition at /metrics. It is
	// optional.
	MetricsHandler http.Handler

	AccessTokenTTL       time.Duration
	VerificationTokenTTL time.Duration
	ResetTokenTTL        time.Duration

	// FrontendURL is the base of the links sent in emails.
	FrontendURL string
}

// Validate checks that the config is usable.
func (config Config) Validate() error {
	if config.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if config.Catalog == nil {
		return errors.NotValidf("nil Catalog")
	}
	if config.Carts == nil {
		return errors.NotValidf("nil Carts")
	}
	if config.Tickets == nil {
		return errors.NotValidf("nil Tickets")
	}
	if config.Users == nil {
		return errors.NotValidf("nil Users")
	}
	if config.Tokens == nil {
		return errors.NotValidf("nil Tokens")
	}
	if config.Mailer == nil {
		return errors.NotValidf("nil Mailer")
	}
	if config.Hub == nil {
		return errors.NotValidf("nil Hub")
	}
	if config.Metrics == nil {
		return errors.NotValidf("nil Metrics")
	}
	if config.AccessTokenTTL <= 0 {
		return errors.NotValidf("non-positive AccessTokenTTL")
	}
	if config.VerificationTokenTTL <= 0 {
		return errors.NotValidf("non-positive VerificationTokenTTL")
	}
	if config.ResetTokenTTL <= 0 {
		return errors.NotValidf("non-positive ResetTokenTTL")
	}
	if config.FrontendURL == "" {
		return errors.NotValidf("empty FrontendURL")
	}
	return nil
}

// Server is the http.Handler of the storefront.
type Server struct {
	config        Config
	router        *mux.Router
	authenticator *authentication.Authenticator

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewServer returns a Server with every route registered.
func NewServer(config Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	config.FrontendURL = strings.TrimSuffix(config.FrontendURL, "/")

	s := &Server{
		config:        config,
		router:        mux.NewRouter(),
		authenticator: authentication.NewAuthenticator(config.Tokens, config.Users),
		stopCh:        make(chan struct{}),
	}
	s.registerRoutes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.router.ServeHTTP(w, req)
}

// Stop closes every open feed connection. Plain requests are not affected,
// they are drained by the http server.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

func (s *Server) stop() <-chan struct{} {
	return s.stopCh
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(observer.NewRequestObserver(observer.RequestObserverContext{
		Clock:   s.config.Clock,
		Logger:  logger.Child("request"),
		Metrics: s.config.Metrics,
	}).Middleware)
	r.NotFoundHandler = s.handle(func(http.ResponseWriter, *http.Request) error {
		return errors.NotFoundf("route")
	})
	r.MethodNotAllowedHandler = s.handle(func(w http.ResponseWriter, req *http.Request) error {
		return errors.Annotatef(errBadRequest, "method %s not allowed on %s", req.Method, req.URL.Path)
	})

	products := &productsHandler{server: s}
	r.Handle("/products", s.handle(products.list)).Methods("GET")
	r.Handle("/products", s.admin(products.create)).Methods("POST")
	r.Handle("/products/{pid}", s.handle(products.get)).Methods("GET")
	r.Handle("/products/{pid}", s.admin(products.update)).Methods("PUT")
	r.Handle("/products/{pid}", s.admin(products.delete)).Methods("DELETE")

	carts := &cartsHandler{server: s}
	r.Handle("/carts", s.handle(carts.create)).Methods("POST")
	r.Handle("/carts/{cid}", s.handle(carts.get)).Methods("GET")
	r.Handle("/carts/{cid}", s.handle(carts.replace)).Methods("PUT")
	r.Handle("/carts/{cid}", s.handle(carts.clear)).Methods("DELETE")
	r.Handle("/carts/{cid}/state", s.admin(carts.setState)).Methods("PUT")
	r.Handle("/carts/{cid}/purchase", s.authenticated(carts.purchase)).Methods("POST")
	r.Handle("/carts/{cid}/products/{pid}", s.handle(carts.addProduct)).Methods("POST")
	r.Handle("/carts/{cid}/products/{pid}", s.handle(carts.updateQuantity)).Methods("PUT")
	r.Handle("/carts/{cid}/products/{pid}", s.handle(carts.removeProduct)).Methods("DELETE")

	tickets := &ticketsHandler{server: s}
	r.Handle("/tickets", s.authenticated(tickets.list)).Methods("GET")
	r.Handle("/tickets/purchase", s.authenticated(tickets.purchase)).Methods("POST")
	r.Handle("/tickets/{tid}", s.authenticated(tickets.get)).Methods("GET")
	r.Handle("/tickets/{tid}/cancel", s.authenticated(tickets.cancel)).Methods("POST")
	r.Handle("/tickets/{tid}/complete", s.admin(tickets.complete)).Methods("POST")

	users := &usersHandler{server: s}
	r.Handle("/register", s.handle(users.register)).Methods("POST")
	r.Handle("/login", s.handle(users.login)).Methods("POST")
	r.Handle("/logout", s.handle(users.logout)).Methods("POST")
	r.Handle("/verify", s.handle(users.verify)).Methods("POST")
	r.Handle("/verify/{token}", s.handle(users.verifyLink)).Methods("GET")
	r.Handle("/current", s.authenticated(users.current)).Methods("GET")
	r.Handle("/forgot-password", s.handle(users.forgotPassword)).Methods("POST")
	r.Handle("/reset-password/{token}", s.handle(users.resetPassword)).Methods("POST")

	views := &viewsHandler{server: s}
	r.Handle("/views/products", s.handleView(views.products)).Methods("GET")
	r.Handle("/views/carts/{cid}", s.handleView(views.cart)).Methods("GET")
	r.Handle("/views/realtimeproducts", s.handleView(views.realtimeProducts)).Methods("GET")

	r.Handle("/ws/products", &feedHandler{server: s}).Methods("GET")

	if s.config.MetricsHandler != nil {
		r.Handle("/metrics", s.config.MetricsHandler).Methods("GET")
	}
}
