// Package seed loads catalog fixtures from YAML.
package seed

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/example/foxyhub/internal/models"
	"github.com/example/foxyhub/internal/repository"
)

// File is the document layout of a catalog seed file.
type File struct {
	Categories []Category `yaml:"categories"`
}

type Category struct {
	Name        string    `yaml:"name"`
	Slug        string    `yaml:"slug"`
	Description string    `yaml:"description"`
	Inactive    bool      `yaml:"inactive"`
	Products    []Product `yaml:"products"`
}

type Product struct {
	Name          string    `yaml:"name"`
	Slug          string    `yaml:"slug"`
	Description   string    `yaml:"description"`
	Type          string    `yaml:"type"`
	Price         string    `yaml:"price"`
	DiscountPrice string    `yaml:"discount_price"`
	Image         string    `yaml:"image"`
	Inactive      bool      `yaml:"inactive"`
	Variants      []Variant `yaml:"variants"`
}

type Variant struct {
	Name           string `yaml:"name"`
	Description    string `yaml:"description"`
	Price          string `yaml:"price"`
	DiscountPrice  string `yaml:"discount_price"`
	DurationMonths int    `yaml:"duration_months"`
	Inactive       bool   `yaml:"inactive"`
}

// Parse decodes a seed document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog seed: %w", err)
	}
	return &f, nil
}

// LoadFile reads path and upserts its contents.
func LoadFile(ctx context.Context, path string, catalog repository.CatalogRepository, log *logrus.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read catalog seed: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return err
	}
	return Apply(ctx, f, catalog, log)
}

// Apply upserts categories, products and variants. Rows are matched by slug,
// variants by product and name, so applying the same file twice is a no-op.
func Apply(ctx context.Context, f *File, catalog repository.CatalogRepository, log *logrus.Logger) error {
	entry := log.WithField("component", "seed")
	products := 0

	for _, c := range f.Categories {
		category := &models.Category{
			Name:        c.Name,
			Slug:        c.Slug,
			Description: c.Description,
			IsActive:    !c.Inactive,
		}
		if err := catalog.UpsertCategory(ctx, category); err != nil {
			return fmt.Errorf("category %s: %w", c.Slug, err)
		}

		for _, p := range c.Products {
			product, err := p.model(category.ID)
			if err != nil {
				return fmt.Errorf("product %s: %w", p.Slug, err)
			}
			if err := catalog.UpsertProduct(ctx, product); err != nil {
				return fmt.Errorf("product %s: %w", p.Slug, err)
			}
			products++

			for _, v := range p.Variants {
				variant, err := v.model(product.ID)
				if err != nil {
					return fmt.Errorf("variant %s/%s: %w", p.Slug, v.Name, err)
				}
				if err := catalog.UpsertVariant(ctx, variant); err != nil {
					return fmt.Errorf("variant %s/%s: %w", p.Slug, v.Name, err)
				}
			}
		}
	}

	entry.WithFields(logrus.Fields{"categories": len(f.Categories), "products": products}).Info("catalog seeded")
	return nil
}

func (p Product) model(categoryID uuid.UUID) (*models.Product, error) {
	price, discount, err := prices(p.Price, p.DiscountPrice)
	if err != nil {
		return nil, err
	}
	productType := p.Type
	if productType == "" {
		productType = models.ProductTypeOther
	}
	return &models.Product{
		Name:          p.Name,
		Slug:          p.Slug,
		Description:   p.Description,
		Price:         price,
		DiscountPrice: discount,
		CategoryID:    categoryID,
		ProductType:   productType,
		Image:         p.Image,
		IsActive:      !p.Inactive,
	}, nil
}

func (v Variant) model(productID uuid.UUID) (*models.ProductVariant, error) {
	price, discount, err := prices(v.Price, v.DiscountPrice)
	if err != nil {
		return nil, err
	}
	return &models.ProductVariant{
		ProductID:      productID,
		Name:           v.Name,
		Description:    v.Description,
		Price:          price,
		DiscountPrice:  discount,
		DurationMonths: v.DurationMonths,
		IsActive:       !v.Inactive,
	}, nil
}

func prices(price, discount string) (decimal.Decimal, *decimal.Decimal, error) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return decimal.Zero, nil, fmt.Errorf("price %q: %w", price, err)
	}
	if discount == "" {
		return p, nil, nil
	}
	d, err := decimal.NewFromString(discount)
	if err != nil {
		return decimal.Zero, nil, fmt.Errorf("discount_price %q: %w", discount, err)
	}
	return p, &d, nil
}
