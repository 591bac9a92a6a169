// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package service

import (
	"context"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"

	"github.com/juju/storefront/core/product"
	"github.com/juju/storefront/domain/catalog"
	catalogerrors "github.com/juju/storefront/domain/catalog/errors"
)

// State describes retrieval and persistence methods for the product
// catalog.
type State interface {
	// CreateProduct adds the product to the catalog. If a product with the
	// same code already exists an error satisfying
	// catalogerrors.ProductAlreadyExists is returned.
	CreateProduct(context.Context, product.Product) error

	// UpdateProduct applies the partial update to the product and returns
	// the result. If the product does not exist an error satisfying
	// catalogerrors.ProductNotFound is returned.
	UpdateProduct(context.Context, product.UUID, catalog.UpdateProductArgs, time.Time) (product.Product, error)

	// DeleteProduct removes the product. If the product does not exist an
	// error satisfying catalogerrors.ProductNotFound is returned.
	DeleteProduct(context.Context, product.UUID) error

	// GetProduct returns the product. If the product does not exist an error
	// satisfying catalogerrors.ProductNotFound is returned.
	GetProduct(context.Context, product.UUID) (product.Product, error)

	// ListProducts returns one page of products and the total number of
	// products matching the query.
	ListProducts(context.Context, catalog.ListArgs) ([]product.Product, int, error)

	// AllProducts returns every product in the catalog.
	AllProducts(context.Context) ([]product.Product, error)
}

// ChangeNotifier is told about every product whose catalog entry changed.
type ChangeNotifier interface {
	NotifyProductsChanged(uuids ...product.UUID)
}

// Service provides the API for working with the product catalog.
type Service struct {
	st       State
	notifier ChangeNotifier
	clock    clock.Clock
}

// NewService returns a new Service for interacting with the underlying
// catalog state.
func NewService(st State, notifier ChangeNotifier, clock clock.Clock) *Service {
	return &Service{
		st:       st,
		notifier: notifier,
		clock:    clock,
	}
}

// CreateProduct validates and adds a new product to the catalog, returning
// the stored product.
//
// The following error types are possible from this function:
// - catalogerrors.ProductNotValid: When the arguments fail validation.
// - catalogerrors.ProductAlreadyExists: When the code is already in use.
func (s *Service) CreateProduct(ctx context.Context, args catalog.CreateProductArgs) (product.Product, error) {
	if err := validateCreate(args); err != nil {
		return product.Product{}, errors.Trace(err)
	}

	uuid, err := product.NewUUID()
	if err != nil {
		return product.Product{}, errors.Annotatef(err, "generating uuid for product %q", args.Code)
	}

	now := s.clock.Now().UTC()
	p := product.Product{
		UUID:        uuid,
		Code:        strings.TrimSpace(args.Code),
		Title:       strings.TrimSpace(args.Title),
		Description: strings.TrimSpace(args.Description),
		Price:       args.Price,
		Stock:       args.Stock,
		Category:    args.Category,
		Status:      args.Status,
		Image:       args.Image,
		Thumbnails:  args.Thumbnails,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if p.Category == "" {
		p.Category = product.CategoryOther
	}
	if p.Status == "" {
		p.Status = product.StatusAvailable
	}
	if p.Image == "" {
		p.Image = product.DefaultImage
	}
	if len(p.Thumbnails) == 0 {
		p.Thumbnails = []string{product.DefaultThumbnail}
	}

	if err := s.st.CreateProduct(ctx, p); err != nil {
		return product.Product{}, errors.Annotatef(err, "creating product %q", p.Code)
	}

	s.notifier.NotifyProductsChanged(uuid)
	return p, nil
}

// UpdateProduct applies a partial update to a product, returning the
// updated product.
//
// The following error types are possible from this function:
// - catalogerrors.UUIDNotValid: When the uuid is not valid.
// - catalogerrors.ProductNotValid: When any supplied field fails validation.
// - catalogerrors.ProductNotFound: When the product does not exist.
// - catalogerrors.ProductAlreadyExists: When the new code is already in use.
func (s *Service) UpdateProduct(ctx context.Context, uuid product.UUID, args catalog.UpdateProductArgs) (product.Product, error) {
	if err := uuid.Validate(); err != nil {
		return product.Product{}, errors.Annotatef(catalogerrors.UUIDNotValid, "%q", uuid)
	}
	if err := validateUpdate(args); err != nil {
		return product.Product{}, errors.Trace(err)
	}

	p, err := s.st.UpdateProduct(ctx, uuid, args, s.clock.Now().UTC())
	if err != nil {
		return product.Product{}, errors.Annotatef(err, "updating product %q", uuid)
	}

	s.notifier.NotifyProductsChanged(uuid)
	return p, nil
}

// DeleteProduct removes a product from the catalog.
//
// The following error types are possible from this function:
// - catalogerrors.UUIDNotValid: When the uuid is not valid.
// - catalogerrors.ProductNotFound: When the product does not exist.
func (s *Service) DeleteProduct(ctx context.Context, uuid product.UUID) error {
	if err := uuid.Validate(); err != nil {
		return errors.Annotatef(catalogerrors.UUIDNotValid, "%q", uuid)
	}

	if err := s.st.DeleteProduct(ctx, uuid); err != nil {
		return errors.Annotatef(err, "deleting product %q", uuid)
	}

	s.notifier.NotifyProductsChanged(uuid)
	return nil
}

// GetProduct returns the product with the given uuid.
//
// The following error types are possible from this function:
// - catalogerrors.UUIDNotValid: When the uuid is not valid.
// - catalogerrors.ProductNotFound: When the product does not exist.
func (s *Service) GetProduct(ctx context.Context, uuid product.UUID) (product.Product, error) {
	if err := uuid.Validate(); err != nil {
		return product.Product{}, errors.Annotatef(catalogerrors.UUIDNotValid, "%q", uuid)
	}

	p, err := s.st.GetProduct(ctx, uuid)
	if err != nil {
		return product.Product{}, errors.Annotatef(err, "getting product %q", uuid)
	}
	return p, nil
}

// ListProducts returns a page of the catalog. A zero page or limit takes
// the default. If the requested page is past the last page an empty page is
// returned.
//
// The following error types are possible from this function:
// - catalogerrors.ListArgsNotValid: When the page, limit or sort order is
// not valid.
func (s *Service) ListProducts(ctx context.Context, args catalog.ListArgs) (catalog.Page, error) {
	if args.Page == 0 {
		args.Page = 1
	}
	if args.Limit == 0 {
		args.Limit = catalog.DefaultPageLimit
	}
	if args.Page < 1 || args.Page > catalog.MaxPage {
		return catalog.Page{}, errors.Annotatef(catalogerrors.ListArgsNotValid, "page %d", args.Page)
	}
	if args.Limit < 1 || args.Limit > catalog.MaxPageLimit {
		return catalog.Page{}, errors.Annotatef(catalogerrors.ListArgsNotValid, "limit %d", args.Limit)
	}
	switch args.Sort {
	case catalog.SortNone, catalog.SortAsc, catalog.SortDesc:
	default:
		return catalog.Page{}, errors.Annotatef(catalogerrors.ListArgsNotValid, "sort %q", args.Sort)
	}
	args.Query = strings.TrimSpace(args.Query)

	products, total, err := s.st.ListProducts(ctx, args)
	if err != nil {
		return catalog.Page{}, errors.Annotate(err, "listing products")
	}

	totalPages := (total + args.Limit - 1) / args.Limit
	if totalPages == 0 {
		totalPages = 1
	}
	return catalog.Page{
		Products:   products,
		Total:      total,
		Page:       args.Page,
		Limit:      args.Limit,
		TotalPages: totalPages,
	}, nil
}

// AllProducts returns every product in the catalog.
func (s *Service) AllProducts(ctx context.Context) ([]product.Product, error) {
	products, err := s.st.AllProducts(ctx)
	if err != nil {
		return nil, errors.Annotate(err, "getting all products")
	}
	return products, nil
}

func validateCreate(args catalog.CreateProductArgs) error {
	if strings.TrimSpace(args.Code) == "" {
		return errors.Annotate(catalogerrors.ProductNotValid, "code is required")
	}
	if strings.TrimSpace(args.Title) == "" {
		return errors.Annotate(catalogerrors.ProductNotValid, "title is required")
	}
	if strings.TrimSpace(args.Description) == "" {
		return errors.Annotate(catalogerrors.ProductNotValid, "description is required")
	}
	if args.Price < 0 || args.Price > catalog.MaxPrice {
		return errors.Annotatef(catalogerrors.ProductNotValid, "price %d", args.Price)
	}
	if args.Stock < 0 {
		return errors.Annotatef(catalogerrors.ProductNotValid, "stock %d", args.Stock)
	}
	if args.Category != "" && !args.Category.IsValid() {
		return errors.Annotatef(catalogerrors.ProductNotValid, "category %q", args.Category)
	}
	if args.Status != "" && !args.Status.IsValid() {
		return errors.Annotatef(catalogerrors.ProductNotValid, "status %q", args.Status)
	}
	return nil
}

func validateUpdate(args catalog.UpdateProductArgs) error {
	if args.Code != nil && strings.TrimSpace(*args.Code) == "" {
		return errors.Annotate(catalogerrors.ProductNotValid, "code cannot be empty")
	}
	if args.Title != nil && strings.TrimSpace(*args.Title) == "" {
		return errors.Annotate(catalogerrors.ProductNotValid, "title cannot be empty")
	}
	if args.Description != nil && strings.TrimSpace(*args.Description) == "" {
		return errors.Annotate(catalogerrors.ProductNotValid, "description cannot be empty")
	}
	if args.Price != nil && (*args.Price < 0 || *args.Price > catalog.MaxPrice) {
		return errors.Annotatef(catalogerrors.ProductNotValid, "price %d", *args.Price)
	}
	if args.Stock != nil && *args.Stock < 0 {
		return errors.Annotatef(catalogerrors.ProductNotValid, "stock %d", *args.Stock)
	}
	if args.Category != nil && !args.Category.IsValid() {
		return errors.Annotatef(catalogerrors.ProductNotValid, "category %q", *args.Category)
	}
	if args.Status != nil && !args.Status.IsValid() {
		return errors.Annotatef(catalogerrors.ProductNotValid, "status %q", *args.Status)
	}
	return nil
}
