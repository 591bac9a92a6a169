// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package product

import (
	"time"

	"github.com/juju/collections/set"
)

// Category groups products in the catalog.
type Category string

const (
	CategoryElectronics Category = "electronics"
	CategoryClothing    Category = "clothing"
	CategoryFood        Category = "food"
	CategoryHome        Category = "home"
	CategoryOther       Category = "other"
)

var categories = set.NewStrings(
	string(CategoryElectronics),
	string(CategoryClothing),
	string(CategoryFood),
	string(CategoryHome),
	string(CategoryOther),
)

// Categories returns every known category, sorted.
func Categories() []Category {
	var result []Category
	for _, name := range categories.SortedValues() {
		result = append(result, Category(name))
	}
	return result
}

// IsValid reports whether the category is one of the known categories.
func (c Category) IsValid() bool {
	return categories.Contains(string(c))
}

// Status is the sale status of a product.
type Status string

const (
	StatusAvailable    Status = "available"
	StatusOutOfStock   Status = "out of stock"
	StatusDiscontinued Status = "discontinued"
)

var statuses = set.NewStrings(
	string(StatusAvailable),
	string(StatusOutOfStock),
	string(StatusDiscontinued),
)

// IsValid reports whether the status is one of the known statuses.
func (s Status) IsValid() bool {
	return statuses.Contains(string(s))
}

const (
	// DefaultImage is used when a product is created without an image.
	DefaultImage = "default-product-img.jpg"

	// DefaultThumbnail is used when a product is created without thumbnails.
	DefaultThumbnail = "default-thumbnail.jpg"
)

// Product is a catalog entry. Prices are held in minor currency units so
// that totals are exact.
type Product struct {
	UUID        UUID
	Code        string
	Title       string
	Description string
	Price       int64
	Stock       int
	Category    Category
	Status      Status
	Image       string
	Thumbnails  []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
