package services

import (
	"context"
	"errors"

	"github.com/example/foxyhub/internal/models"
	"github.com/example/foxyhub/internal/repository"
)

// CatalogService serves read access to active catalog entries.
type CatalogService struct {
	catalog repository.CatalogRepository
}

func NewCatalogService(catalog repository.CatalogRepository) *CatalogService {
	return &CatalogService{catalog: catalog}
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.catalog.ListCategories(ctx)
}

func (s *CatalogService) GetCategory(ctx context.Context, slug string) (*models.Category, error) {
	category, err := s.catalog.FindCategoryBySlug(ctx, slug)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrCategoryNotFound
	}
	return category, err
}

// ListProducts returns active products. A product stays listed when its
// category is inactive.
func (s *CatalogService) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]models.Product, error) {
	return s.catalog.ListProducts(ctx, filter)
}

func (s *CatalogService) GetProduct(ctx context.Context, slug string) (*models.Product, error) {
	product, err := s.catalog.FindProductBySlug(ctx, slug)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	return product, err
}

func (s *CatalogService) ListVariants(ctx context.Context, productSlug string) ([]models.ProductVariant, error) {
	return s.catalog.ListVariantsByProductSlug(ctx, productSlug)
}
