// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"time"

	"github.com/juju/storefront/core/product"
)

// productRow represents a single row from the product table.
type productRow struct {
	UUID        string    `db:"uuid"`
	Code        string    `db:"code"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Price       int64     `db:"price"`
	Stock       int       `db:"stock"`
	Category    string    `db:"category"`
	Status      string    `db:"status"`
	Image       string    `db:"image"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r productRow) toProduct(thumbnails []string) product.Product {
	return product.Product{
		UUID:        product.UUID(r.UUID),
		Code:        r.Code,
		Title:       r.Title,
		Description: r.Description,
		Price:       r.Price,
		Stock:       r.Stock,
		Category:    product.Category(r.Category),
		Status:      product.Status(r.Status),
		Image:       r.Image,
		Thumbnails:  thumbnails,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func fromProduct(p product.Product) productRow {
	return productRow{
		UUID:        p.UUID.String(),
		Code:        p.Code,
		Title:       p.Title,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		Category:    string(p.Category),
		Status:      string(p.Status),
		Image:       p.Image,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// productThumbnail represents a single row from the product_thumbnail table.
type productThumbnail struct {
	ProductUUID string `db:"product_uuid"`
	Position    int    `db:"position"`
	Path        string `db:"path"`
}

type productUUID struct {
	UUID string `db:"uuid"`
}

type productCount struct {
	Count int `db:"count"`
}

// productFilter holds the inputs of a catalog listing. The pattern is
// repeated per matched column.
type productFilter struct {
	Title       string `db:"title"`
	Description string `db:"description"`
	Category    string `db:"category"`
	Status      string `db:"status"`
	Limit       int    `db:"page_limit"`
	Offset      int    `db:"page_offset"`
}
