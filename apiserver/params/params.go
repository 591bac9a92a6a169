// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package params holds the JSON bodies exchanged with API clients.
package params

import "time"

// Error is the body of every failed request.
type Error struct {
	Message string `json:"error"`
	Code    string `json:"error-code"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// StatusResult acknowledges a request that returns no other data.
type StatusResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Product is a catalog entry.
type Product struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Stock       int       `json:"stock"`
	Category    string    `json:"category"`
	Status      string    `json:"status"`
	Image       string    `json:"image"`
	Thumbnails  []string  `json:"thumbnails"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProductArgs creates a product, or partially updates one when only some
// fields are set.
type ProductArgs struct {
	Code        *string   `json:"code,omitempty"`
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Price       *int64    `json:"price,omitempty"`
	Stock       *int      `json:"stock,omitempty"`
	Category    *string   `json:"category,omitempty"`
	Status      *string   `json:"status,omitempty"`
	Image       *string   `json:"image,omitempty"`
	Thumbnails  *[]string `json:"thumbnails,omitempty"`
}

// ProductsPage is one page of the catalog.
type ProductsPage struct {
	Status      string    `json:"status"`
	Payload     []Product `json:"payload"`
	TotalPages  int       `json:"totalPages"`
	Page        int       `json:"page"`
	HasPrevPage bool      `json:"hasPrevPage"`
	HasNextPage bool      `json:"hasNextPage"`
	PrevPage    *int      `json:"prevPage"`
	NextPage    *int      `json:"nextPage"`
	PrevLink    *string   `json:"prevLink"`
	NextLink    *string   `json:"nextLink"`
}

// CartItem is a line item of a cart, naming its product by id.
type CartItem struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

// Cart is a cart with unresolved line items.
type Cart struct {
	ID        string     `json:"id"`
	Owner     string     `json:"owner,omitempty"`
	State     string     `json:"state"`
	Products  []CartItem `json:"products"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// CartItems is the result of an operation on the line items of a cart.
type CartItems struct {
	ID       string     `json:"id"`
	Products []CartItem `json:"products"`
}

// CartProduct is a line item resolved against the catalog.
type CartProduct struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
	Subtotal int64   `json:"subtotal"`
}

// CartWithProducts is a cart whose line items are resolved against the
// catalog.
type CartWithProducts struct {
	ID       string        `json:"id"`
	Owner    string        `json:"owner,omitempty"`
	State    string        `json:"state"`
	Products []CartProduct `json:"products"`
	Total    int64         `json:"total"`
}

// QuantityArgs sets or adds to the quantity of a line item.
type QuantityArgs struct {
	Quantity *int `json:"quantity,omitempty"`
}

// ReplaceCartArgs replaces every line item of a cart.
type ReplaceCartArgs struct {
	Products []CartItem `json:"products"`
}

// CartStateArgs moves a cart through its lifecycle.
type CartStateArgs struct {
	State string `json:"state"`
}

// PurchaseItem names a product and quantity to buy.
type PurchaseItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// PurchaseArgs buys the given products.
type PurchaseArgs struct {
	Products []PurchaseItem `json:"products"`
}

// TicketItem is a purchased line item, priced at the time of purchase.
type TicketItem struct {
	ProductID string `json:"productId"`
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
}

// Ticket is the record of a purchase.
type Ticket struct {
	ID          string       `json:"id"`
	Code        string       `json:"code"`
	User        string       `json:"user"`
	Cart        string       `json:"cart,omitempty"`
	Products    []TicketItem `json:"products"`
	TotalAmount int64        `json:"totalAmount"`
	Status      string       `json:"status"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// User describes an account, without any secrets.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      string    `json:"role"`
	Photo     string    `json:"photo"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"createdAt"`
}

// RegisterArgs creates an account.
type RegisterArgs struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Password  string `json:"password"`
	Photo     string `json:"photo,omitempty"`
}

// LoginArgs authenticates with email and password.
type LoginArgs struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult carries the access token issued by a login.
type LoginResult struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	User    User   `json:"user"`
}

// VerifyArgs verifies an account with the code that was mailed to it.
type VerifyArgs struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// ForgotPasswordArgs asks for a password reset link.
type ForgotPasswordArgs struct {
	Email string `json:"email"`
}

// ResetPasswordArgs sets a new password.
type ResetPasswordArgs struct {
	Password string `json:"password"`
}
