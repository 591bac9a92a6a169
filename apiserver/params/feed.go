// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package params

// Message types exchanged over the realtime product feed.
const (
	FeedProducts      = "products"
	FeedAddProduct    = "add-product"
	FeedDeleteProduct = "delete-product"
	FeedError         = "error"
)

// FeedMessage is a single frame on the realtime product feed. Which fields
// are set depends on Type.
type FeedMessage struct {
	Type     string       `json:"type"`
	Products []Product    `json:"products,omitempty"`
	Product  *ProductArgs `json:"product,omitempty"`
	ID       string       `json:"id,omitempty"`
	Error    *Error       `json:"error,omitempty"`
}
