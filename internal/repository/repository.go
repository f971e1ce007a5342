// Package repository holds the persistence interfaces used by the services
// together with their gorm implementations.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/example/foxyhub/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// ProfileUpdate carries the optional profile fields a user may change.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Email     *string
}

// Empty reports whether no field is set.
func (u ProfileUpdate) Empty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Email == nil
}

type UserRepository interface {
	// GetOrCreateByPhone returns the user with the phone number, creating it
	// when absent. created reports whether a row was inserted.
	GetOrCreateByPhone(ctx context.Context, phone string) (user *models.User, created bool, err error)
	FindByPhone(ctx context.Context, phone string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	MarkVerified(ctx context.Context, id uuid.UUID) error
	UpdateProfile(ctx context.Context, id uuid.UUID, update ProfileUpdate) error
	SetTelegramID(ctx context.Context, id uuid.UUID, telegramID string) error
}

type OTPRepository interface {
	Create(ctx context.Context, challenge *models.OTPChallenge) error
	// Latest returns the most recently created challenge of the user.
	Latest(ctx context.Context, userID uuid.UUID) (*models.OTPChallenge, error)
	MarkUsed(ctx context.Context, id uuid.UUID) error
}

// ProductFilter narrows product listings. Ordering accepts price, name or
// created_at with an optional "-" prefix for descending order.
type ProductFilter struct {
	CategorySlug string
	ProductType  string
	Search       string
	Ordering     string
}

type CatalogRepository interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	FindCategoryBySlug(ctx context.Context, slug string) (*models.Category, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error)
	// FindProductBySlug loads an active product with its active variants.
	FindProductBySlug(ctx context.Context, slug string) (*models.Product, error)
	FindActiveProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	// FindActiveVariant resolves a variant scoped to its product.
	FindActiveVariant(ctx context.Context, productID, variantID uuid.UUID) (*models.ProductVariant, error)
	ListVariantsByProductSlug(ctx context.Context, slug string) ([]models.ProductVariant, error)

	UpsertCategory(ctx context.Context, category *models.Category) error
	UpsertProduct(ctx context.Context, product *models.Product) error
	UpsertVariant(ctx context.Context, variant *models.ProductVariant) error
}

type OrderRepository interface {
	// CreateWithItems persists the order and all of its items atomically.
	CreateWithItems(ctx context.Context, order *models.Order) error
	// FindByID loads the order with items, their products and variants.
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindForUser(ctx context.Context, userID, id uuid.UUID) (*models.Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]models.Order, int64, error)
	// SaveFulfillment writes status and notes in one update.
	SaveFulfillment(ctx context.Context, order *models.Order) error
}

type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	// FindLatestForOrder returns the newest payment of the order in the given
	// status.
	FindLatestForOrder(ctx context.Context, orderID uuid.UUID, status string) (*models.Payment, error)
	// TransitionStatus moves the payment to status unless it already has it.
	// changed is false when the payment was already in that status.
	TransitionStatus(ctx context.Context, id uuid.UUID, status string) (changed bool, err error)
	// Complete marks the payment completed and moves its order from pending
	// to paid in one transaction. orderPaid is false when the payment was
	// already completed or the order had left pending.
	Complete(ctx context.Context, id uuid.UUID) (orderPaid bool, err error)
	ListPending(ctx context.Context, method string, createdBefore time.Time) ([]models.Payment, error)
}
