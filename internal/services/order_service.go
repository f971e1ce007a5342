package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/example/foxyhub/internal/metrics"
	"github.com/example/foxyhub/internal/models"
	"github.com/example/foxyhub/internal/repository"
)

const maxTelegramIDLength = 20

// OrderService builds orders from catalog items at their current prices.
type OrderService struct {
	orders  repository.OrderRepository
	catalog repository.CatalogRepository
	log     *logrus.Entry
}

func NewOrderService(orders repository.OrderRepository, catalog repository.CatalogRepository, log *logrus.Logger) *OrderService {
	return &OrderService{
		orders:  orders,
		catalog: catalog,
		log:     log.WithField("component", "orders"),
	}
}

// OrderItemInput is one requested line of a new order.
type OrderItemInput struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
}

// CreateOrder validates every item before writing anything, captures each
// item's effective price and persists the order with its items in one
// transaction. The total is never recomputed afterwards.
func (s *OrderService) CreateOrder(ctx context.Context, userID uuid.UUID, inputs []OrderItemInput, telegramID string) (*models.Order, error) {
	telegramID = strings.TrimSpace(telegramID)
	if telegramID == "" {
		return nil, ErrValidation.With("telegram_id is required").Field("telegram_id", "required")
	}
	if len(telegramID) > maxTelegramIDLength {
		return nil, ErrValidation.With("telegram_id must be at most %d characters", maxTelegramIDLength).
			Field("telegram_id", "too long")
	}
	if len(inputs) == 0 {
		return nil, ErrValidation.With("at least one item is required").Field("items", "empty")
	}

	items := make([]models.OrderItem, 0, len(inputs))
	total := decimal.Zero
	for i, in := range inputs {
		item, err := s.resolveItem(ctx, in)
		if err != nil {
			var svcErr *Error
			if errors.As(err, &svcErr) {
				return nil, svcErr.Field(fmt.Sprintf("items[%d]", i), svcErr.Message)
			}
			return nil, err
		}
		total = total.Add(item.TotalPrice())
		items = append(items, *item)
	}

	order := &models.Order{
		UserID:      userID,
		Status:      models.OrderStatusPending,
		TotalAmount: total,
		TelegramID:  telegramID,
		Items:       items,
	}
	if err := s.orders.CreateWithItems(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	metrics.RecordOrderCreated()
	s.log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"user_id":  userID,
		"total":    order.TotalAmount.StringFixed(2),
		"items":    len(order.Items),
	}).Info("order created")

	return order, nil
}

func (s *OrderService) resolveItem(ctx context.Context, in OrderItemInput) (*models.OrderItem, error) {
	product, err := s.catalog.FindActiveProduct(ctx, in.ProductID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidItem.With("product with ID %s does not exist or is not active", in.ProductID)
		}
		return nil, err
	}

	var variant *models.ProductVariant
	if in.VariantID != nil {
		variant, err = s.catalog.FindActiveVariant(ctx, product.ID, *in.VariantID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrInvalidItem.With("variant with ID %s does not exist or is not active", *in.VariantID)
			}
			return nil, err
		}
	}

	if in.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	item := &models.OrderItem{
		ProductID: product.ID,
		Product:   product,
		Quantity:  in.Quantity,
		Price:     product.CurrentPrice(),
	}
	if variant != nil {
		item.VariantID = &variant.ID
		item.Variant = variant
		item.Price = variant.CurrentPrice()
	}
	return item, nil
}

// ListOrders returns a page of the user's own orders.
func (s *OrderService) ListOrders(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]models.Order, int64, error) {
	return s.orders.ListForUser(ctx, userID, status, limit, offset)
}

// GetOrder returns one of the user's own orders.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.FindForUser(ctx, userID, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	return order, err
}
