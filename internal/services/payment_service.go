package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/example/foxyhub/internal/metrics"
	"github.com/example/foxyhub/internal/models"
	"github.com/example/foxyhub/internal/repository"
)

// PaymentService opens payment attempts and applies their outcome to orders.
type PaymentService struct {
	orders      repository.OrderRepository
	payments    repository.PaymentRepository
	gateway     PaymentGateway
	fulfillment *FulfillmentService
	currency    string
	inflight    sync.Map
	log         *logrus.Entry
}

func NewPaymentService(
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	gateway PaymentGateway,
	fulfillment *FulfillmentService,
	currency string,
	log *logrus.Logger,
) *PaymentService {
	if currency == "" {
		currency = "USD"
	}
	return &PaymentService{
		orders:      orders,
		payments:    payments,
		gateway:     gateway,
		fulfillment: fulfillment,
		currency:    currency,
		log:         log.WithField("component", "payments"),
	}
}

// CreatePayment opens a gateway session for a pending order of the user and
// records a pending payment. Nothing is written when the gateway fails.
func (s *PaymentService) CreatePayment(ctx context.Context, userID, orderID uuid.UUID, method, callbackURL string) (*models.Payment, string, error) {
	order, err := s.orders.FindForUser(ctx, userID, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", ErrOrderNotFound
		}
		return nil, "", err
	}

	if order.Status != models.OrderStatusPending {
		return nil, "", ErrInvalidState
	}

	method = strings.TrimSpace(method)
	if method == "" {
		return nil, "", ErrValidation.With("payment method is required").Field("payment_method", "required")
	}
	if method != models.PaymentMethodCrypto {
		return nil, "", ErrUnsupportedMethod
	}

	session, err := s.gateway.CreateSession(ctx, SessionRequest{
		Amount:      order.TotalAmount,
		Currency:    s.currency,
		OrderID:     order.ID.String(),
		Description: fmt.Sprintf("Payment for order %s", order.ID),
		CallbackURL: callbackURL,
	})
	if err != nil {
		s.log.WithError(err).WithField("order_id", order.ID).Error("gateway session failed")
		return nil, "", ErrUpstream.With("error creating payment").Wrap(err)
	}

	payment := &models.Payment{
		OrderID:       order.ID,
		Amount:        order.TotalAmount,
		PaymentMethod: models.PaymentMethodCrypto,
		Status:        models.PaymentStatusPending,
		Details:       datatypes.JSON(session.Raw),
	}
	if session.SessionID != "" {
		payment.TransactionID = &session.SessionID
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, "", fmt.Errorf("store payment: %w", err)
	}

	metrics.RecordPaymentTransition(payment.PaymentMethod, payment.Status)
	s.log.WithFields(logrus.Fields{
		"order_id":   order.ID,
		"payment_id": payment.ID,
	}).Info("payment created")

	return payment, session.CheckoutURL, nil
}

// RecordPaymentCompletion marks the payment completed and its order paid in
// one write, then runs fulfillment. A payment that is already completed
// triggers nothing, except when its order is still paid: fulfillment never
// finished for it and is resumed.
func (s *PaymentService) RecordPaymentCompletion(ctx context.Context, paymentID uuid.UUID) (triggered bool, err error) {
	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrPaymentNotFound
		}
		return false, err
	}
	logger := s.log.WithFields(logrus.Fields{"payment_id": payment.ID, "order_id": payment.OrderID})

	orderPaid, err := s.payments.Complete(ctx, payment.ID)
	if err != nil {
		return false, fmt.Errorf("complete payment: %w", err)
	}
	if payment.Status != models.PaymentStatusCompleted {
		metrics.RecordPaymentTransition(payment.PaymentMethod, models.PaymentStatusCompleted)
	}

	if !orderPaid {
		order, err := s.orders.FindByID(ctx, payment.OrderID)
		if err != nil {
			return false, fmt.Errorf("load order: %w", err)
		}
		if order.Status != models.OrderStatusPaid {
			logger.Info("payment already completed")
			return false, nil
		}
		logger.Warn("resuming fulfillment of paid order")
	} else {
		logger.Info("order paid")
	}

	return s.fulfill(ctx, payment.OrderID, logger)
}

// fulfill runs fulfillment unless a run for the same order is in flight.
func (s *PaymentService) fulfill(ctx context.Context, orderID uuid.UUID, logger *logrus.Entry) (bool, error) {
	if _, busy := s.inflight.LoadOrStore(orderID, struct{}{}); busy {
		logger.Info("fulfillment already running")
		return false, nil
	}
	defer s.inflight.Delete(orderID)

	if _, err := s.fulfillment.RunFulfillment(ctx, orderID); err != nil {
		return true, fmt.Errorf("run fulfillment: %w", err)
	}
	return true, nil
}

// RecordPaymentFailure marks the payment failed. The order stays pending so
// the customer can retry with a new payment.
func (s *PaymentService) RecordPaymentFailure(ctx context.Context, paymentID uuid.UUID) error {
	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPaymentNotFound
		}
		return err
	}
	if payment.Status == models.PaymentStatusCompleted {
		return nil
	}
	changed, err := s.payments.TransitionStatus(ctx, payment.ID, models.PaymentStatusFailed)
	if err != nil {
		return fmt.Errorf("fail payment: %w", err)
	}
	if changed {
		metrics.RecordPaymentTransition(payment.PaymentMethod, models.PaymentStatusFailed)
		s.log.WithFields(logrus.Fields{"payment_id": payment.ID, "order_id": payment.OrderID}).Warn("payment failed")
	}
	return nil
}

// HandleNotification verifies a gateway callback and applies the reported
// status to the order's newest pending payment.
func (s *PaymentService) HandleNotification(ctx context.Context, body []byte) error {
	status, err := s.gateway.VerifyNotification(body)
	if err != nil {
		return err
	}
	return s.applyGatewayStatus(ctx, status)
}

func (s *PaymentService) applyGatewayStatus(ctx context.Context, status *GatewayStatus) error {
	orderID, err := uuid.Parse(status.OrderID)
	if err != nil {
		return ErrOrderNotFound.With("unknown order %q", status.OrderID)
	}

	if _, err := s.orders.FindByID(ctx, orderID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrOrderNotFound.With("unknown order %q", status.OrderID)
		}
		return err
	}

	paid, failed := IsPaidStatus(status.Status), IsFailedStatus(status.Status)
	if !paid && !failed {
		return nil
	}

	payment, err := s.payments.FindLatestForOrder(ctx, orderID, models.PaymentStatusPending)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		done, doneErr := s.payments.FindLatestForOrder(ctx, orderID, models.PaymentStatusCompleted)
		if doneErr != nil {
			return ErrPaymentNotFound
		}
		if paid {
			_, err = s.RecordPaymentCompletion(ctx, done.ID)
			return err
		}
		return nil
	}

	if paid {
		_, err = s.RecordPaymentCompletion(ctx, payment.ID)
		return err
	}
	return s.RecordPaymentFailure(ctx, payment.ID)
}

// ReconcilePending polls the gateway for crypto payments that have been
// pending since before olderThan and applies their current status. It
// returns the number of payments it checked.
func (s *PaymentService) ReconcilePending(ctx context.Context, olderThan time.Duration) (int, error) {
	pending, err := s.payments.ListPending(ctx, models.PaymentMethodCrypto, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}

	checked := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			return checked, ctx.Err()
		}
		status, err := s.gateway.GetStatus(ctx, p.OrderID.String())
		if err != nil {
			s.log.WithError(err).WithField("payment_id", p.ID).Warn("status poll failed")
			continue
		}
		checked++
		if err := s.applyGatewayStatus(ctx, status); err != nil {
			s.log.WithError(err).WithField("payment_id", p.ID).Error("apply gateway status failed")
		}
	}
	return checked, nil
}
