package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/example/foxyhub/internal/models"
	"github.com/example/foxyhub/internal/repository"
	"github.com/example/foxyhub/internal/services"
)

// CatalogHandler serves the read-only catalog.
type CatalogHandler struct {
	catalog *services.CatalogService
}

// NewCatalogHandler constructs CatalogHandler.
func NewCatalogHandler(catalog *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

type variantView struct {
	models.ProductVariant
	CurrentPrice decimal.Decimal `json:"current_price"`
}

type productView struct {
	models.Product
	CurrentPrice decimal.Decimal `json:"current_price"`
	Variants     []variantView   `json:"variants,omitempty"`
}

func newVariantView(v models.ProductVariant) variantView {
	return variantView{ProductVariant: v, CurrentPrice: v.CurrentPrice()}
}

func newProductView(p models.Product) productView {
	view := productView{Product: p, CurrentPrice: p.CurrentPrice()}
	for _, v := range p.Variants {
		view.Variants = append(view.Variants, newVariantView(v))
	}
	view.Product.Variants = nil
	return view
}

// ListCategories returns active categories.
func (h *CatalogHandler) ListCategories(c *fiber.Ctx) error {
	categories, err := h.catalog.ListCategories(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": categories})
}

// GetCategory returns an active category by slug.
func (h *CatalogHandler) GetCategory(c *fiber.Ctx) error {
	category, err := h.catalog.GetCategory(c.UserContext(), c.Params("slug"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": category})
}

// ListProducts returns active products filtered by category, type and search.
func (h *CatalogHandler) ListProducts(c *fiber.Ctx) error {
	products, err := h.catalog.ListProducts(c.UserContext(), repository.ProductFilter{
		CategorySlug: strings.TrimSpace(c.Query("category")),
		ProductType:  strings.TrimSpace(c.Query("type")),
		Search:       strings.TrimSpace(c.Query("search")),
		Ordering:     strings.TrimSpace(c.Query("ordering")),
	})
	if err != nil {
		return err
	}

	views := make([]productView, 0, len(products))
	for _, p := range products {
		views = append(views, newProductView(p))
	}
	return c.JSON(fiber.Map{"success": true, "data": views})
}

// GetProduct returns an active product with its active variants.
func (h *CatalogHandler) GetProduct(c *fiber.Ctx) error {
	product, err := h.catalog.GetProduct(c.UserContext(), c.Params("slug"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": newProductView(*product)})
}

// ListVariants returns the active variants of a product.
func (h *CatalogHandler) ListVariants(c *fiber.Ctx) error {
	variants, err := h.catalog.ListVariants(c.UserContext(), c.Params("slug"))
	if err != nil {
		return err
	}

	views := make([]variantView, 0, len(variants))
	for _, v := range variants {
		views = append(views, newVariantView(v))
	}
	return c.JSON(fiber.Map{"success": true, "data": views})
}
