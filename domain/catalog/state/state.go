// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"context"
	"strings"
	"time"

	"github.com/canonical/sqlair"
	"github.com/juju/errors"

	"github.com/juju/storefront/core/database"
	"github.com/juju/storefront/core/product"
	"github.com/juju/storefront/domain"
	"github.com/juju/storefront/domain/catalog"
	catalogerrors "github.com/juju/storefront/domain/catalog/errors"
	databaseutils "github.com/juju/storefront/internal/database"
)

// State represents a type for interacting with the underlying state.
type State struct {
	*domain.StateBase
}

// NewState returns a new State for interacting with the underlying state.
func NewState(factory database.TxnRunnerFactory) *State {
	return &State{
		StateBase: domain.NewStateBase(factory),
	}
}

// CreateProduct adds the product to the catalog. If a product with the same
// code already exists an error satisfying
// catalogerrors.ProductAlreadyExists is returned.
func (st *State) CreateProduct(ctx context.Context, p product.Product) error {
	db, err := st.DB()
	if err != nil {
		return errors.Annotate(err, "getting DB access")
	}

	insertStmt, err := st.Prepare(`
INSERT INTO product (uuid, code, title, description, price, stock, category, status, image, created_at, updated_at)
VALUES ($productRow.uuid, $productRow.code, $productRow.title, $productRow.description, $productRow.price,
        $productRow.stock, $productRow.category, $productRow.status, $productRow.image,
        $productRow.created_at, $productRow.updated_at)
`, productRow{})
	if err != nil {
		return errors.Annotate(err, "preparing insert product query")
	}

	row := fromProduct(p)
	return db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		if err := tx.Query(ctx, insertStmt, row).Run(); databaseutils.IsErrConstraintUnique(err) {
			return errors.Annotatef(catalogerrors.ProductAlreadyExists, "code %q", p.Code)
		} else if err != nil {
			return errors.Annotatef(err, "inserting product %q", p.Code)
		}
		return errors.Trace(st.setThumbnails(ctx, tx, p.UUID, p.Thumbnails))
	})
}

// UpdateProduct applies the partial update to the product and returns the
// updated product. If the product does not exist an error satisfying
// catalogerrors.ProductNotFound is returned. If the update changes the code
// to one used by another product an error satisfying
// catalogerrors.ProductAlreadyExists is returned.
func (st *State) UpdateProduct(
	ctx context.Context,
	uuid product.UUID,
	args catalog.UpdateProductArgs,
	now time.Time,
) (product.Product, error) {
	db, err := st.DB()
	if err != nil {
		return product.Product{}, errors.Annotate(err, "getting DB access")
	}

	updateStmt, err := st.Prepare(`
UPDATE product
SET    code = $productRow.code,
       title = $productRow.title,
       description = $productRow.description,
       price = $productRow.price,
       stock = $productRow.stock,
       category = $productRow.category,
       status = $productRow.status,
       image = $productRow.image,
       updated_at = $productRow.updated_at
WHERE  uuid = $productRow.uuid
`, productRow{})
	if err != nil {
		return product.Product{}, errors.Annotate(err, "preparing update product query")
	}

	var result product.Product
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		current, err := st.getProduct(ctx, tx, uuid)
		if err != nil {
			return errors.Trace(err)
		}

		applyUpdate(&current, args)
		current.UpdatedAt = now

		err = tx.Query(ctx, updateStmt, fromProduct(current)).Run()
		if databaseutils.IsErrConstraintUnique(err) {
			return errors.Annotatef(catalogerrors.ProductAlreadyExists, "code %q", current.Code)
		} else if err != nil {
			return errors.Annotatef(err, "updating product %q", uuid)
		}

		if args.Thumbnails != nil {
			if err := st.setThumbnails(ctx, tx, uuid, current.Thumbnails); err != nil {
				return errors.Trace(err)
			}
		}
		result = current
		return nil
	})
	if err != nil {
		return product.Product{}, errors.Trace(err)
	}
	return result, nil
}

func applyUpdate(p *product.Product, args catalog.UpdateProductArgs) {
	if args.Code != nil {
		p.Code = *args.Code
	}
	if args.Title != nil {
		p.Title = *args.Title
	}
	if args.Description != nil {
		p.Description = *args.Description
	}
	if args.Price != nil {
		p.Price = *args.Price
	}
	if args.Stock != nil {
		p.Stock = *args.Stock
	}
	if args.Category != nil {
		p.Category = *args.Category
	}
	if args.Status != nil {
		p.Status = *args.Status
	}
	if args.Image != nil {
		p.Image = *args.Image
	}
	if args.Thumbnails != nil {
		p.Thumbnails = *args.Thumbnails
	}
}

// DeleteProduct removes the product from the catalog. Any cart line items
// referencing the product are removed with it. If the product does not
// exist an error satisfying catalogerrors.ProductNotFound is returned.
func (st *State) DeleteProduct(ctx context.Context, uuid product.UUID) error {
	db, err := st.DB()
	if err != nil {
		return errors.Annotate(err, "getting DB access")
	}

	deleteStmt, err := st.Prepare(`
DELETE FROM product
WHERE uuid = $productUUID.uuid
`, productUUID{})
	if err != nil {
		return errors.Annotate(err, "preparing delete product query")
	}

	return db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		var outcome sqlair.Outcome
		if err := tx.Query(ctx, deleteStmt, productUUID{UUID: uuid.String()}).Get(&outcome); err != nil {
			return errors.Annotatef(err, "deleting product %q", uuid)
		}
		affected, err := outcome.Result().RowsAffected()
		if err != nil {
			return errors.Trace(err)
		}
		if affected == 0 {
			return errors.Annotatef(catalogerrors.ProductNotFound, "%q", uuid)
		}
		return nil
	})
}

// GetProduct returns the product with the given uuid. If the product does
// not exist an error satisfying catalogerrors.ProductNotFound is returned.
func (st *State) GetProduct(ctx context.Context, uuid product.UUID) (product.Product, error) {
	db, err := st.DB()
	if err != nil {
		return product.Product{}, errors.Annotate(err, "getting DB access")
	}

	var result product.Product
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		result, err = st.getProduct(ctx, tx, uuid)
		return errors.Trace(err)
	})
	if err != nil {
		return product.Product{}, errors.Trace(err)
	}
	return result, nil
}

// ListProducts returns the page of products selected by args, along with the
// total number of products matching the query. The arguments are expected
// to have been validated.
func (st *State) ListProducts(ctx context.Context, args catalog.ListArgs) ([]product.Product, int, error) {
	db, err := st.DB()
	if err != nil {
		return nil, 0, errors.Annotate(err, "getting DB access")
	}

	const where = `
WHERE title LIKE $productFilter.title ESCAPE '!'
OR    description LIKE $productFilter.description ESCAPE '!'
OR    category LIKE $productFilter.category ESCAPE '!'
OR    status LIKE $productFilter.status ESCAPE '!'
`
	countStmt, err := st.Prepare(`
SELECT COUNT(*) AS &productCount.count
FROM   product`+where, productCount{}, productFilter{})
	if err != nil {
		return nil, 0, errors.Annotate(err, "preparing count products query")
	}

	listStmt, err := st.Prepare(`
SELECT &productRow.*
FROM   product`+where+`
ORDER BY `+orderBy(args.Sort)+`
LIMIT $productFilter.page_limit OFFSET $productFilter.page_offset
`, productRow{}, productFilter{})
	if err != nil {
		return nil, 0, errors.Annotate(err, "preparing list products query")
	}

	pattern := likePattern(args.Query)
	filter := productFilter{
		Title:       pattern,
		Description: pattern,
		Category:    pattern,
		Status:      pattern,
		Limit:       args.Limit,
		Offset:      (args.Page - 1) * args.Limit,
	}

	var (
		products []product.Product
		total    productCount
	)
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		if err := tx.Query(ctx, countStmt, filter).Get(&total); err != nil {
			return errors.Annotate(err, "counting products")
		}

		var rows []productRow
		if err := tx.Query(ctx, listStmt, filter).GetAll(&rows); err != nil && !databaseutils.IsErrNotFound(err) {
			return errors.Annotate(err, "listing products")
		}
		products, err = st.withThumbnails(ctx, tx, rows)
		return errors.Trace(err)
	})
	if err != nil {
		return nil, 0, errors.Trace(err)
	}
	return products, total.Count, nil
}

// AllProducts returns every product in the catalog in insertion order.
func (st *State) AllProducts(ctx context.Context) ([]product.Product, error) {
	db, err := st.DB()
	if err != nil {
		return nil, errors.Annotate(err, "getting DB access")
	}

	stmt, err := st.Prepare(`
SELECT &productRow.*
FROM   product
ORDER BY rowid
`, productRow{})
	if err != nil {
		return nil, errors.Annotate(err, "preparing select products query")
	}

	var products []product.Product
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		var rows []productRow
		if err := tx.Query(ctx, stmt).GetAll(&rows); err != nil && !databaseutils.IsErrNotFound(err) {
			return errors.Annotate(err, "selecting products")
		}
		products, err = st.withThumbnails(ctx, tx, rows)
		return errors.Trace(err)
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return products, nil
}

func (st *State) getProduct(ctx context.Context, tx *sqlair.TX, uuid product.UUID) (product.Product, error) {
	stmt, err := st.Prepare(`
SELECT &productRow.*
FROM   product
WHERE  uuid = $productUUID.uuid
`, productRow{}, productUUID{})
	if err != nil {
		return product.Product{}, errors.Annotate(err, "preparing select product query")
	}

	var row productRow
	err = tx.Query(ctx, stmt, productUUID{UUID: uuid.String()}).Get(&row)
	if databaseutils.IsErrNotFound(err) {
		return product.Product{}, errors.Annotatef(catalogerrors.ProductNotFound, "%q", uuid)
	} else if err != nil {
		return product.Product{}, errors.Annotatef(err, "selecting product %q", uuid)
	}

	thumbnails, err := st.getThumbnails(ctx, tx, row.UUID)
	if err != nil {
		return product.Product{}, errors.Trace(err)
	}
	return row.toProduct(thumbnails), nil
}

func (st *State) withThumbnails(ctx context.Context, tx *sqlair.TX, rows []productRow) ([]product.Product, error) {
	products := make([]product.Product, 0, len(rows))
	for _, row := range rows {
		thumbnails, err := st.getThumbnails(ctx, tx, row.UUID)
		if err != nil {
			return nil, errors.Trace(err)
		}
		products = append(products, row.toProduct(thumbnails))
	}
	return products, nil
}

func (st *State) getThumbnails(ctx context.Context, tx *sqlair.TX, uuid string) ([]string, error) {
	stmt, err := st.Prepare(`
SELECT &productThumbnail.*
FROM   product_thumbnail
WHERE  product_uuid = $productUUID.uuid
ORDER BY position
`, productThumbnail{}, productUUID{})
	if err != nil {
		return nil, errors.Annotate(err, "preparing select thumbnails query")
	}

	var rows []productThumbnail
	err = tx.Query(ctx, stmt, productUUID{UUID: uuid}).GetAll(&rows)
	if err != nil && !databaseutils.IsErrNotFound(err) {
		return nil, errors.Annotatef(err, "selecting thumbnails for %q", uuid)
	}

	thumbnails := make([]string, len(rows))
	for i, row := range rows {
		thumbnails[i] = row.Path
	}
	return thumbnails, nil
}

func (st *State) setThumbnails(ctx context.Context, tx *sqlair.TX, uuid product.UUID, paths []string) error {
	deleteStmt, err := st.Prepare(`
DELETE FROM product_thumbnail
WHERE product_uuid = $productUUID.uuid
`, productUUID{})
	if err != nil {
		return errors.Annotate(err, "preparing delete thumbnails query")
	}
	insertStmt, err := st.Prepare(`
INSERT INTO product_thumbnail (product_uuid, position, path)
VALUES ($productThumbnail.product_uuid, $productThumbnail.position, $productThumbnail.path)
`, productThumbnail{})
	if err != nil {
		return errors.Annotate(err, "preparing insert thumbnail query")
	}

	if err := tx.Query(ctx, deleteStmt, productUUID{UUID: uuid.String()}).Run(); err != nil {
		return errors.Annotatef(err, "removing thumbnails for %q", uuid)
	}
	for i, path := range paths {
		row := productThumbnail{
			ProductUUID: uuid.String(),
			Position:    i,
			Path:        path,
		}
		if err := tx.Query(ctx, insertStmt, row).Run(); err != nil {
			return errors.Annotatef(err, "inserting thumbnail for %q", uuid)
		}
	}
	return nil
}

func orderBy(sort catalog.SortOrder) string {
	switch sort {
	case catalog.SortAsc:
		return "price ASC, rowid"
	case catalog.SortDesc:
		return "price DESC, rowid"
	default:
		return "rowid"
	}
}

var likeEscaper = strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)

// likePattern returns a LIKE pattern matching any value containing query.
// SQLite compares ASCII case-insensitively for LIKE.
func likePattern(query string) string {
	return "%" + likeEscaper.Replace(query) + "%"
}
