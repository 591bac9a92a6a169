// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/juju/storefront/cmd"
	"github.com/juju/storefront/core/product"
	"github.com/juju/storefront/domain/catalog"
	catalogerrors "github.com/juju/storefront/domain/catalog/errors"
	"github.com/juju/storefront/domain/servicefactory"
	domainuser "github.com/juju/storefront/domain/user"
	usererrors "github.com/juju/storefront/domain/user/errors"
	"github.com/juju/storefront/internal/auth"
	"github.com/juju/storefront/internal/database"
)

const seedDoc = `
seed adds an administrator and a set of sample products to the database.
Records that already exist are left alone, so seed may be run repeatedly.

Examples:

    storefrontd seed --config storefront.yaml
    storefrontd seed --products 0 --admin-email ops@example.com --format json
`

var (
	seedAdjectives = []string{"Classic", "Compact", "Deluxe", "Rustic", "Vintage", "Modern", "Sturdy", "Bright"}
	seedNouns      = map[product.Category][]string{
		product.CategoryElectronics: {"Headphones", "Speaker", "Charger", "Keyboard"},
		product.CategoryClothing:    {"Jacket", "Scarf", "Hoodie", "Boots"},
		product.CategoryFood:        {"Coffee", "Honey", "Granola", "Tea"},
		product.CategoryHome:        {"Lamp", "Mug", "Blanket", "Planter"},
		product.CategoryOther:       {"Notebook", "Backpack", "Umbrella", "Puzzle"},
	}
)

type seedCommand struct {
	configCommandBase

	out           cmd.Output
	adminEmail    string
	adminPassword string
	products      int
}

func newSeedCommand() cmd.Command {
	return &seedCommand{}
}

// Info implements Command.
func (c *seedCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "seed",
		Purpose: "add an administrator and sample products",
		Doc:     seedDoc,
	}
}

// SetFlags implements Command.
func (c *seedCommand) SetFlags(f *gnuflag.FlagSet) {
	c.configCommandBase.SetFlags(f)
	f.StringVar(&c.adminEmail, "admin-email", "admin@example.com", "Email of the administrator")
	f.StringVar(&c.adminPassword, "admin-password", "admin123", "Password of the administrator")
	f.IntVar(&c.products, "products", 40, "Number of sample products")
	c.out.AddFlags(f, "tabular", map[string]cmd.Formatter{
		"yaml":    cmd.FormatYaml,
		"json":    cmd.FormatJson,
		"tabular": formatSeedTabular,
	})
}

// Init implements Command.
func (c *seedCommand) Init(args []string) error {
	if c.adminEmail == "" {
		return errors.New("empty --admin-email")
	}
	if c.products < 0 {
		return errors.Errorf("--products %d is negative", c.products)
	}
	return cmd.CheckEmpty(args)
}

// seedResult is the output of the seed command.
type seedResult struct {
	Admin    seededRecord   `json:"admin" yaml:"admin"`
	Products []seededRecord `json:"products,omitempty" yaml:"products,omitempty"`
}

type seededRecord struct {
	Name    string `json:"name" yaml:"name"`
	Detail  string `json:"detail,omitempty" yaml:"detail,omitempty"`
	Created bool   `json:"created" yaml:"created"`
}

// Run implements Command.
func (c *seedCommand) Run(ctx *cmd.Context) error {
	cfg, err := c.readConfig(ctx)
	if err != nil {
		return errors.Trace(err)
	}

	stdCtx := context.Background()
	db, tracked, err := openDatabase(stdCtx, ctx, cfg)
	if err != nil {
		return errors.Trace(err)
	}
	defer func() { _ = db.Close() }()

	// Nothing is watching the feed while seeding.
	factory := servicefactory.NewServiceFactory(database.TxnRunnerFactory(tracked), nopNotifier{}, clock.WallClock)

	var result seedResult
	result.Admin, err = c.seedAdmin(stdCtx, factory)
	if err != nil {
		return errors.Trace(err)
	}
	for i := 0; i < c.products; i++ {
		record, err := seedProduct(stdCtx, factory, i)
		if err != nil {
			return errors.Trace(err)
		}
		result.Products = append(result.Products, record)
	}
	return c.out.Write(ctx, result)
}

func (c *seedCommand) seedAdmin(ctx context.Context, factory *servicefactory.ServiceFactory) (seededRecord, error) {
	record := seededRecord{Name: c.adminEmail, Detail: "admin"}
	_, err := factory.Users().AddAdmin(ctx, domainuser.RegisterArgs{
		Email:     c.adminEmail,
		FirstName: "Store",
		LastName:  "Admin",
		Password:  auth.NewPassword(c.adminPassword),
	})
	if errors.Is(err, usererrors.AlreadyExists) {
		logger.Infof("admin %q already exists", c.adminEmail)
		return record, nil
	} else if err != nil {
		return seededRecord{}, errors.Annotatef(err, "adding admin %q", c.adminEmail)
	}
	record.Created = true
	return record, nil
}

// seedProduct adds the i'th sample product. The same i always produces the
// same product.
func seedProduct(ctx context.Context, factory *servicefactory.ServiceFactory, i int) (seededRecord, error) {
	categories := product.Categories()
	category := categories[i%len(categories)]
	nouns := seedNouns[category]
	adjective := seedAdjectives[(i/len(categories))%len(seedAdjectives)]
	noun := nouns[(i/len(categories))%len(nouns)]

	args := catalog.CreateProductArgs{
		Code:        fmt.Sprintf("SEED-%04d", i+1),
		Title:       adjective + " " + noun,
		Description: fmt.Sprintf("A %s %s from the sample catalog.", humanize.Ordinal(i+1), noun),
		Price:       int64(499 + (i*737)%19500),
		Stock:       (i * 7) % 50,
		Category:    category,
	}
	if args.Stock == 0 {
		args.Status = product.StatusOutOfStock
	}

	record := seededRecord{
		Name:   args.Code,
		Detail: fmt.Sprintf("%s, %s", args.Title, formatPrice(args.Price)),
	}
	_, err := factory.Catalog().CreateProduct(ctx, args)
	if errors.Is(err, catalogerrors.ProductAlreadyExists) {
		return record, nil
	} else if err != nil {
		return seededRecord{}, errors.Annotatef(err, "adding product %q", args.Code)
	}
	record.Created = true
	return record, nil
}

func formatPrice(minor int64) string {
	return "$" + humanize.FormatFloat("#,###.##", float64(minor)/100)
}

func formatSeedTabular(writer io.Writer, value interface{}) error {
	result, ok := value.(seedResult)
	if !ok {
		return errors.Errorf("expected value of type %T, got %T", result, value)
	}

	table := uitable.New()
	table.MaxColWidth = 50
	table.Wrap = true
	table.AddRow("NAME", "DETAIL", "STATUS")
	for _, record := range append([]seededRecord{result.Admin}, result.Products...) {
		status := "exists"
		if record.Created {
			status = "created"
		}
		table.AddRow(record.Name, record.Detail, status)
	}
	_, err := fmt.Fprintln(writer, table)
	return errors.Trace(err)
}

type nopNotifier struct{}

func (nopNotifier) NotifyProductsChanged(...product.UUID) {}
