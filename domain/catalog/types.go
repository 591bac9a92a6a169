// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package catalog

import (
	"github.com/juju/storefront/core/product"
)

// CreateProductArgs holds the values of a new product. Empty category,
// status, image or thumbnails take their defaults.
type CreateProductArgs struct {
	Code        string
	Title       string
	Description string
	Price       int64
	Stock       int
	Category    product.Category
	Status      product.Status
	Image       string
	Thumbnails  []string
}

// UpdateProductArgs holds a partial update of a product. Nil fields are left
// unchanged.
type UpdateProductArgs struct {
	Code        *string
	Title       *string
	Description *string
	Price       *int64
	Stock       *int
	Category    *product.Category
	Status      *product.Status
	Image       *string
	Thumbnails  *[]string
}

// SortOrder orders a product listing by price.
type SortOrder string

const (
	SortNone SortOrder = ""
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

const (
	// DefaultPageLimit is the page size used when none is requested.
	DefaultPageLimit = 10

	// MaxPageLimit is the largest page size that may be requested.
	MaxPageLimit = 100

	// MaxPage is the largest page number that may be requested. It keeps
	// the row offset well inside an int64.
	MaxPage = 1<<31 - 1

	// MaxPrice is the largest price, in minor units, a product may carry.
	MaxPrice = 1_000_000_000_000
)

// ListArgs selects a page of the catalog. Query matches title, description,
// category or status without regard to case.
type ListArgs struct {
	Page  int
	Limit int
	Query string
	Sort  SortOrder
}

// Page is one page of a product listing.
type Page struct {
	Products   []product.Product
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

// HasPrev reports whether there is a page before this one.
func (p Page) HasPrev() bool {
	return p.Page > 1
}

// HasNext reports whether there is a page after this one.
func (p Page) HasNext() bool {
	return p.Page < p.TotalPages
}

// PrevPage returns the previous page number, or zero if there is none.
func (p Page) PrevPage() int {
	if !p.HasPrev() {
		return 0
	}
	return p.Page - 1
}

// NextPage returns the next page number, or zero if there is none.
func (p Page) NextPage() int {
	if !p.HasNext() {
		return 0
	}
	return p.Page + 1
}
