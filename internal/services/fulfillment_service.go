package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/example/foxyhub/internal/metrics"
	"github.com/example/foxyhub/internal/models"
	"github.com/example/foxyhub/internal/repository"
)

// FulfillmentService delivers the digital goods of a paid order.
type FulfillmentService struct {
	orders   repository.OrderRepository
	provider SubscriptionProvider
	notifier Messenger
	currency string
	log      *logrus.Entry
}

// NewFulfillmentService wires the service. notifier may be nil; currency is
// the one orders are charged in and defaults to USD.
func NewFulfillmentService(orders repository.OrderRepository, provider SubscriptionProvider, notifier Messenger, currency string, log *logrus.Logger) *FulfillmentService {
	if currency == "" {
		currency = "USD"
	}
	return &FulfillmentService{
		orders:   orders,
		provider: provider,
		notifier: notifier,
		currency: currency,
		log:      log.WithField("component", "fulfillment"),
	}
}

// RunFulfillment processes every item of the order. Item failures are noted
// on the order and do not stop the remaining items. The order ends up
// completed when every item succeeded and processing otherwise; status and
// notes are written once at the end.
func (s *FulfillmentService) RunFulfillment(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	logger := s.log.WithField("order_id", order.ID)
	allProcessed := true

	for i := range order.Items {
		item := &order.Items[i]
		if item.Product == nil || !item.Product.RequiresSubscriptionPurchase() {
			continue
		}

		ok := s.purchase(ctx, order, item, logger)
		metrics.RecordFulfillment(item.Product.ProductType, ok)
		if !ok {
			allProcessed = false
		}
	}

	if allProcessed {
		order.Status = models.OrderStatusCompleted
	} else {
		order.Status = models.OrderStatusProcessing
	}

	if err := s.orders.SaveFulfillment(ctx, order); err != nil {
		return nil, fmt.Errorf("save fulfillment: %w", err)
	}
	logger.WithField("status", order.Status).Info("fulfillment finished")

	s.notify(ctx, order, logger)
	return order, nil
}

func (s *FulfillmentService) purchase(ctx context.Context, order *models.Order, item *models.OrderItem, logger *logrus.Entry) bool {
	months := item.DurationMonths()
	result, err := s.provider.PurchaseSubscription(ctx, order.TelegramID, months)
	if err != nil {
		logger.WithError(err).WithField("item_id", item.ID).Error("premium purchase errored")
		order.AppendNote(fmt.Sprintf("Error processing Telegram Premium purchase: %v", err))
		return false
	}
	if !result.Success {
		logger.WithField("item_id", item.ID).Warn("premium purchase failed")
		order.AppendNote(fmt.Sprintf("Telegram Premium purchase failed: %s", result.Message))
		return false
	}
	order.AppendNote(fmt.Sprintf("Telegram Premium purchase successful: %s", result.TransactionID))
	return true
}

func (s *FulfillmentService) notify(ctx context.Context, order *models.Order, logger *logrus.Entry) {
	if s.notifier == nil || order.TelegramID == "" {
		return
	}

	text := fmt.Sprintf("<b>✅ Order %s completed</b>\n<b>💰 Total:</b> %s",
		order.ID, FormatPrice(order.TotalAmount, s.currency))
	if order.Status != models.OrderStatusCompleted {
		text = fmt.Sprintf("<b>⏳ Order %s is being processed</b>\nWe will contact you shortly.", order.ID)
	}

	if _, err := s.notifier.SendMessage(ctx, order.TelegramID, text); err != nil {
		logger.WithError(err).Warn("customer notification failed")
	}
}
