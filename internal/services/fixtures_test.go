package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/example/foxyhub/internal/logging"
	"github.com/example/foxyhub/internal/models"
	"github.com/example/foxyhub/internal/repository/memory"
)

const testSecret = "test-secret"

type fakeGateway struct {
	mu       sync.Mutex
	err      error
	statuses map[string]string
	requests []SessionRequest
}

func (g *fakeGateway) CreateSession(_ context.Context, r SessionRequest) (*GatewaySession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.requests = append(g.requests, r)
	return &GatewaySession{
		SessionID:   "sess-" + r.OrderID,
		CheckoutURL: "https://pay.example/" + r.OrderID,
		Raw:         []byte(`{"state":0,"result":{"uuid":"sess-` + r.OrderID + `"}}`),
	}, nil
}

func (g *fakeGateway) GetStatus(_ context.Context, orderID string) (*GatewayStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	status, ok := g.statuses[orderID]
	if !ok {
		return nil, errors.New("unknown order")
	}
	return &GatewayStatus{OrderID: orderID, Status: status}, nil
}

func (g *fakeGateway) VerifyNotification(body []byte) (*GatewayStatus, error) {
	return nil, ErrInvalidSignature
}

type fakeProvider struct {
	mu     sync.Mutex
	calls  []purchaseCall
	result *PurchaseResult
	err    error
}

type purchaseCall struct {
	account string
	months  int
}

func (p *fakeProvider) PurchaseSubscription(_ context.Context, accountID string, months int) (*PurchaseResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, purchaseCall{accountID, months})
	if p.err != nil {
		return nil, p.err
	}
	if p.result != nil {
		return p.result, nil
	}
	return &PurchaseResult{Success: true, TransactionID: "tx-1"}, nil
}

func (p *fakeProvider) Calls() []purchaseCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]purchaseCall(nil), p.calls...)
}

type fakeMessenger struct {
	mu   sync.Mutex
	ok   bool
	err   error
	sent  []string
	texts []string
}

func (m *fakeMessenger) SendMessage(_ context.Context, chatID, text string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, chatID)
	m.texts = append(m.texts, text)
	return m.ok, m.err
}

// store bundles the in-memory repositories with a small seeded catalog.
type store struct {
	users    *memory.Users
	otps     *memory.OTPs
	catalog  *memory.Catalog
	orders   *memory.Orders
	payments *memory.Payments

	productA *models.Product
	productB *models.Product
	variantB *models.ProductVariant
	premium  *models.Product
	premium3 *models.ProductVariant
}

func newStore(t *testing.T) *store {
	t.Helper()
	ctx := context.Background()
	s := &store{
		users:    memory.NewUsers(),
		otps:     memory.NewOTPs(),
		catalog:  memory.NewCatalog(),
		orders:   memory.NewOrders(),
	}
	s.payments = memory.NewPayments(s.orders)

	category := &models.Category{Name: "Subscriptions", Slug: "subscriptions", IsActive: true}
	require.NoError(t, s.catalog.UpsertCategory(ctx, category))

	s.productA = &models.Product{
		Name: "Gift card", Slug: "gift-card", Price: decimal.RequireFromString("10.00"),
		CategoryID: category.ID, ProductType: models.ProductTypeOther, IsActive: true,
	}
	s.productB = &models.Product{
		Name: "Spotify", Slug: "spotify", Price: decimal.RequireFromString("9.00"),
		CategoryID: category.ID, ProductType: models.ProductTypeSpotify, IsActive: true,
	}
	s.premium = &models.Product{
		Name: "Telegram Premium", Slug: "telegram-premium", Price: decimal.RequireFromString("4.99"),
		CategoryID: category.ID, ProductType: models.ProductTypeTelegramPremium, IsActive: true,
	}
	for _, p := range []*models.Product{s.productA, s.productB, s.premium} {
		require.NoError(t, s.catalog.UpsertProduct(ctx, p))
	}

	s.variantB = &models.ProductVariant{
		ProductID: s.productB.ID, Name: "1 month", Price: decimal.RequireFromString("5.00"),
		DurationMonths: 1, IsActive: true,
	}
	s.premium3 = &models.ProductVariant{
		ProductID: s.premium.ID, Name: "3 months", Price: decimal.RequireFromString("12.99"),
		DurationMonths: 3, IsActive: true,
	}
	for _, v := range []*models.ProductVariant{s.variantB, s.premium3} {
		require.NoError(t, s.catalog.UpsertVariant(ctx, v))
	}
	return s
}

func (s *store) orderService() *OrderService {
	return NewOrderService(s.orders, s.catalog, logging.Discard())
}

func (s *store) paymentService(gateway PaymentGateway, provider SubscriptionProvider) *PaymentService {
	fulfillment := NewFulfillmentService(s.orders, provider, nil, "USD", logging.Discard())
	return NewPaymentService(s.orders, s.payments, gateway, fulfillment, "USD", logging.Discard())
}

func (s *store) otpService(ttl time.Duration) *OTPService {
	sessions := NewSessionService(testSecret, time.Hour, 24*time.Hour)
	return NewOTPService(s.users, s.otps, sessions, ttl, logging.Discard())
}

func ptr[T any](v T) *T {
	return &v
}

func mustOrder(t *testing.T, s *store, userID uuid.UUID, items ...OrderItemInput) *models.Order {
	t.Helper()
	order, err := s.orderService().CreateOrder(context.Background(), userID, items, "123456789")
	require.NoError(t, err)
	return order
}

// flakyPayments fails the next failComplete calls to Complete before
// touching any row.
type flakyPayments struct {
	*memory.Payments
	failComplete int
}

func (p *flakyPayments) Complete(ctx context.Context, id uuid.UUID) (bool, error) {
	if p.failComplete > 0 {
		p.failComplete--
		return false, errors.New("connection reset")
	}
	return p.Payments.Complete(ctx, id)
}

// flakyOrders fails the failOn-th call to FindByID.
type flakyOrders struct {
	*memory.Orders
	calls  int
	failOn int
}

func (o *flakyOrders) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	o.calls++
	if o.calls == o.failOn {
		return nil, errors.New("connection reset")
	}
	return o.Orders.FindByID(ctx, id)
}
