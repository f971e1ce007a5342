package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/foxyhub/internal/models"
)

var productOrderings = map[string]string{
	"price":      "products.price",
	"name":       "products.name",
	"created_at": "products.created_at",
}

// GormCatalog implements CatalogRepository on gorm.
type GormCatalog struct {
	db *gorm.DB
}

func NewGormCatalog(db *gorm.DB) *GormCatalog {
	return &GormCatalog{db: db}
}

func (r *GormCatalog) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name asc").
		Find(&categories).Error
	return categories, err
}

func (r *GormCatalog) FindCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).
		Where("slug = ? AND is_active = ?", slug, true).
		First(&category).Error; err != nil {
		return nil, translate(err)
	}
	return &category, nil
}

func (r *GormCatalog) ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error) {
	query := r.db.WithContext(ctx).Model(&models.Product{}).
		Preload("Category").
		Where("products.is_active = ?", true)

	if filter.CategorySlug != "" {
		query = query.Joins("JOIN categories ON categories.id = products.category_id").
			Where("categories.slug = ?", filter.CategorySlug)
	}
	if filter.ProductType != "" {
		query = query.Where("products.product_type = ?", filter.ProductType)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		q := "%" + search + "%"
		query = query.Where("products.name ILIKE ? OR products.description ILIKE ?", q, q)
	}
	query = query.Order(orderClause(filter.Ordering))

	var products []models.Product
	if err := query.Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func orderClause(ordering string) string {
	desc := strings.HasPrefix(ordering, "-")
	column, ok := productOrderings[strings.TrimPrefix(ordering, "-")]
	if !ok {
		return "products.created_at desc"
	}
	if desc {
		return column + " desc"
	}
	return column + " asc"
}

func (r *GormCatalog) FindProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).
		Preload("Category").
		Preload("Variants", "is_active = ?", true).
		Where("slug = ? AND is_active = ?", slug, true).
		First(&product).Error; err != nil {
		return nil, translate(err)
	}
	return &product, nil
}

func (r *GormCatalog) FindActiveProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&product).Error; err != nil {
		return nil, translate(err)
	}
	return &product, nil
}

func (r *GormCatalog) FindActiveVariant(ctx context.Context, productID, variantID uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	if err := r.db.WithContext(ctx).
		Where("id = ? AND product_id = ? AND is_active = ?", variantID, productID, true).
		First(&variant).Error; err != nil {
		return nil, translate(err)
	}
	return &variant, nil
}

func (r *GormCatalog) ListVariantsByProductSlug(ctx context.Context, slug string) ([]models.ProductVariant, error) {
	var variants []models.ProductVariant
	err := r.db.WithContext(ctx).
		Joins("JOIN products ON products.id = product_variants.product_id").
		Where("products.slug = ? AND product_variants.is_active = ?", slug, true).
		Order("product_variants.duration_months asc").
		Find(&variants).Error
	return variants, err
}

func (r *GormCatalog) UpsertCategory(ctx context.Context, category *models.Category) error {
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "is_active", "updated_at"}),
	}).Create(category).Error; err != nil {
		return err
	}
	var stored models.Category
	if err := db.Where("slug = ?", category.Slug).First(&stored).Error; err != nil {
		return err
	}
	*category = stored
	return nil
}

func (r *GormCatalog) UpsertProduct(ctx context.Context, product *models.Product) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "description", "price", "discount_price", "category_id",
			"product_type", "image", "is_active", "updated_at",
		}),
	}).Create(product).Error; err != nil {
		return err
	}
	var stored models.Product
	if err := db.Where("slug = ?", product.Slug).First(&stored).Error; err != nil {
		return err
	}
	*product = stored
	return nil
}

func (r *GormCatalog) UpsertVariant(ctx context.Context, variant *models.ProductVariant) error {
	return r.db.WithContext(ctx).
		Where("product_id = ? AND name = ?", variant.ProductID, variant.Name).
		Assign(map[string]any{
			"description":     variant.Description,
			"price":           variant.Price,
			"discount_price":  variant.DiscountPrice,
			"duration_months": variant.DurationMonths,
			"is_active":       variant.IsActive,
		}).
		FirstOrCreate(variant).Error
}
