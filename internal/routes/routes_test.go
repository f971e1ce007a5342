package routes

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/example/foxyhub/internal/handlers"
	"github.com/example/foxyhub/internal/logging"
	"github.com/example/foxyhub/internal/models"
	"github.com/example/foxyhub/internal/repository/memory"
	"github.com/example/foxyhub/internal/services"
)

type testEnv struct {
	app      *fiber.App
	gateway  *services.CryptomusService
	orders   *memory.Orders
	payments *memory.Payments

	productA uuid.UUID
	productB uuid.UUID
	variantB uuid.UUID
	premium  uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logging.Discard()
	ctx := context.Background()

	gatewaySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		orderID := gjson.GetBytes(body, "order_id").String()
		_, _ = w.Write([]byte(`{"state":0,"result":{"uuid":"inv-` + orderID + `","url":"https://pay.example/` + orderID + `","payment_status":"check"}}`))
	}))
	t.Cleanup(gatewaySrv.Close)

	telegramSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chat := gjson.GetBytes(mustRead(r.Body), "chat_id").String()
		_, _ = w.Write([]byte(`{"ok":` + boolString(chat != "0") + `}`))
	}))
	t.Cleanup(telegramSrv.Close)

	users, otps := memory.NewUsers(), memory.NewOTPs()
	catalog, orders := memory.NewCatalog(), memory.NewOrders()
	payments := memory.NewPayments(orders)

	category := &models.Category{Name: "Digital", Slug: "digital", IsActive: true}
	require.NoError(t, catalog.UpsertCategory(ctx, category))
	a := &models.Product{Name: "Gift card", Slug: "gift-card", Price: decimal.RequireFromString("10.00"),
		CategoryID: category.ID, ProductType: models.ProductTypeOther, IsActive: true}
	b := &models.Product{Name: "Spotify", Slug: "spotify", Price: decimal.RequireFromString("8.00"),
		CategoryID: category.ID, ProductType: models.ProductTypeSpotify, IsActive: true}
	p := &models.Product{Name: "Telegram Premium", Slug: "telegram-premium", Price: decimal.RequireFromString("4.99"),
		CategoryID: category.ID, ProductType: models.ProductTypeTelegramPremium, IsActive: true}
	for _, prod := range []*models.Product{a, b, p} {
		require.NoError(t, catalog.UpsertProduct(ctx, prod))
	}
	vb := &models.ProductVariant{ProductID: b.ID, Name: "1 month", Price: decimal.RequireFromString("6.00"),
		DiscountPrice: decimalPtr("5.00"), DurationMonths: 1, IsActive: true}
	require.NoError(t, catalog.UpsertVariant(ctx, vb))

	telegram := services.NewTelegramService("TOKEN", telegramSrv.URL, log)
	gateway := services.NewCryptomusService(gatewaySrv.URL, "merchant", "api-key")
	sessions := services.NewSessionService("secret", time.Hour, 24*time.Hour)
	fulfillment := services.NewFulfillmentService(orders, services.NewPremiumService("", ""), telegram, "USD", log)

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(log)})
	Register(app, Dependencies{
		Sessions:    sessions,
		OTP:         services.NewOTPService(users, otps, sessions, 5*time.Minute, log),
		Profiles:    services.NewProfileService(users, telegram, log),
		Catalog:     services.NewCatalogService(catalog),
		Orders:      services.NewOrderService(orders, catalog, log),
		Payments:    services.NewPaymentService(orders, payments, gateway, fulfillment, "USD", log),
		EchoOTPCode: true,
		WebhookURL:  "http://localhost/api/v1/orders/webhook",
	})

	return &testEnv{
		app: app, gateway: gateway, orders: orders, payments: payments,
		productA: a.ID, productB: b.ID, variantB: vb.ID, premium: p.ID,
	}
}

// signedCallback appends a sign member to body the way the gateway does:
// md5 over base64 of the body as sent, followed by the api key.
func signedCallback(body string) []byte {
	sum := md5.Sum([]byte(base64.StdEncoding.EncodeToString([]byte(body)) + "api-key"))
	return []byte(strings.TrimSuffix(body, "}") + `,"sign":"` + hex.EncodeToString(sum[:]) + `"}`)
}

func paymentCallback(orderID, status string) string {
	return fmt.Sprintf(`{"type":"payment","uuid":"inv-%s","order_id":"%s","amount":"4.99","currency":"USD","url":"https:\/\/pay.example\/%s","status":"%s"}`,
		orderID, orderID, orderID, status)
}

func mustRead(r io.Reader) []byte {
	b, _ := io.ReadAll(r)
	return b
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, gjson.Result) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch v := body.(type) {
		case []byte:
			reader = bytes.NewReader(v)
		default:
			raw, err := json.Marshal(v)
			require.NoError(t, err)
			reader = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode, gjson.ParseBytes(mustRead(resp.Body))
}

func (e *testEnv) login(t *testing.T, phone string) string {
	t.Helper()
	status, res := e.do(t, fiber.MethodPost, "/api/v1/otp/request", "", fiber.Map{"phone_number": phone})
	require.Equal(t, fiber.StatusOK, status, res.Raw)
	status, res = e.do(t, fiber.MethodPost, "/api/v1/otp/verify", "", fiber.Map{
		"phone_number": phone,
		"otp_code":     res.Get("data.otp_code").String(),
	})
	require.Equal(t, fiber.StatusOK, status, res.Raw)
	return res.Get("data.access_token").String()
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	status, res := env.do(t, fiber.MethodGet, "/health", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", res.Get("status").String())
	assert.Equal(t, "API is running", res.Get("message").String())
}

func TestOTPLoginScenario(t *testing.T) {
	env := newTestEnv(t)

	status, res := env.do(t, fiber.MethodPost, "/api/v1/otp/request", "", fiber.Map{"phone_number": "+15551230000"})
	require.Equal(t, fiber.StatusOK, status)
	code := res.Get("data.otp_code").String()
	assert.Len(t, code, 6)
	assert.True(t, res.Get("data.is_new_user").Bool())

	verify := fiber.Map{"phone_number": "+15551230000", "otp_code": code}
	status, res = env.do(t, fiber.MethodPost, "/api/v1/otp/verify", "", verify)
	require.Equal(t, fiber.StatusOK, status, res.Raw)
	assert.True(t, res.Get("data.user.is_verified").Bool())
	access := res.Get("data.access_token").String()
	refresh := res.Get("data.refresh_token").String()
	assert.NotEmpty(t, access)

	status, res = env.do(t, fiber.MethodPost, "/api/v1/otp/verify", "", verify)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.False(t, res.Get("success").Bool())
	assert.Equal(t, "otp_already_used", res.Get("error.code").String())

	status, res = env.do(t, fiber.MethodPost, "/api/v1/auth/token/refresh", "", fiber.Map{"refresh": refresh})
	require.Equal(t, fiber.StatusOK, status)
	newAccess := res.Get("data.access").String()

	status, res = env.do(t, fiber.MethodGet, "/api/v1/profile", newAccess, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "+15551230000", res.Get("data.phone_number").String())
}

func TestOTPVerifyUnknownPhone(t *testing.T) {
	env := newTestEnv(t)
	status, res := env.do(t, fiber.MethodPost, "/api/v1/otp/verify", "", fiber.Map{
		"phone_number": "+15559999999", "otp_code": "123456",
	})
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "user_not_found", res.Get("error.code").String())
}

func TestCatalogEndpoints(t *testing.T) {
	env := newTestEnv(t)

	status, res := env.do(t, fiber.MethodGet, "/api/v1/categories", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, int64(1), res.Get("data.#").Int())

	status, res = env.do(t, fiber.MethodGet, "/api/v1/products?ordering=price", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "telegram-premium", res.Get("data.0.slug").String())

	status, res = env.do(t, fiber.MethodGet, "/api/v1/products?type=spotify", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, int64(1), res.Get("data.#").Int())

	status, res = env.do(t, fiber.MethodGet, "/api/v1/products/spotify/variants", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	price, err := decimal.NewFromString(res.Get("data.0.current_price").String())
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("5.00").Equal(price))

	status, _ = env.do(t, fiber.MethodGet, "/api/v1/products/missing", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestOrdersRequireAuth(t *testing.T) {
	env := newTestEnv(t)
	status, res := env.do(t, fiber.MethodGet, "/api/v1/orders", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", res.Get("error.code").String())
}

func TestCreateOrderTotal(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "+15551230001")

	status, res := env.do(t, fiber.MethodPost, "/api/v1/orders", token, fiber.Map{
		"telegram_id": "42",
		"items": []fiber.Map{
			{"product_id": env.productA, "quantity": 2},
			{"product_id": env.productB, "variant_id": env.variantB},
		},
	})
	require.Equal(t, fiber.StatusCreated, status, res.Raw)
	total, err := decimal.NewFromString(res.Get("data.total_amount").String())
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("25.00").Equal(total), total.String())
	assert.Equal(t, "pending", res.Get("data.status").String())

	status, res = env.do(t, fiber.MethodGet, "/api/v1/orders", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, int64(1), res.Get("pagination.total_items").Int())

	other := env.login(t, "+15551230002")
	status, _ = env.do(t, fiber.MethodGet, "/api/v1/orders/"+res.Get("data.0.id").String(), other, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestCreateOrderInvalidItem(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "+15551230003")

	status, res := env.do(t, fiber.MethodPost, "/api/v1/orders", token, fiber.Map{
		"telegram_id": "42",
		"items": []fiber.Map{
			{"product_id": env.productA, "quantity": 1},
			{"product_id": uuid.New(), "quantity": 1},
		},
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid_item", res.Get("error.code").String())
	assert.True(t, res.Get("error.fields.items\\[1\\]").Exists(), res.Raw)
	assert.Equal(t, 0, env.orders.Len())
}

func TestPaymentAndWebhookScenario(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "+15551230004")

	status, res := env.do(t, fiber.MethodPost, "/api/v1/orders", token, fiber.Map{
		"telegram_id": "42",
		"items":       []fiber.Map{{"product_id": env.premium, "quantity": 1}},
	})
	require.Equal(t, fiber.StatusCreated, status, res.Raw)
	orderID := res.Get("data.id").String()

	status, res = env.do(t, fiber.MethodPost, "/api/v1/orders/"+orderID+"/create-payment", token, fiber.Map{"payment_method": "bank"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "unsupported_method", res.Get("error.code").String())

	status, res = env.do(t, fiber.MethodPost, "/api/v1/orders/"+orderID+"/create-payment", token, fiber.Map{"payment_method": "crypto"})
	require.Equal(t, fiber.StatusCreated, status, res.Raw)
	assert.Equal(t, "https://pay.example/"+orderID, res.Get("data.payment_url").String())
	assert.Equal(t, "pending", res.Get("data.payment.status").String())

	unsigned := paymentCallback(orderID, "paid")
	status, res = env.do(t, fiber.MethodPost, "/api/v1/orders/webhook", "", []byte(strings.TrimSuffix(unsigned, "}")+`,"sign":"bogus"}`))
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "invalid_signature", res.Get("error.code").String())

	signed := signedCallback(unsigned)
	for i := 0; i < 2; i++ {
		status, res = env.do(t, fiber.MethodPost, "/api/v1/orders/webhook", "", signed)
		require.Equal(t, fiber.StatusOK, status, res.Raw)
	}

	id := uuid.MustParse(orderID)
	order, err := env.orders.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
	assert.Equal(t, 1, strings.Count(order.Notes, "Telegram Premium purchase successful"))

	payments := env.payments.ForOrder(id)
	require.Len(t, payments, 1)
	assert.Equal(t, models.PaymentStatusCompleted, payments[0].Status)

	status, res = env.do(t, fiber.MethodPost, "/api/v1/orders/"+orderID+"/create-payment", token, fiber.Map{"payment_method": "crypto"})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "invalid_state", res.Get("error.code").String())
	assert.Len(t, env.payments.ForOrder(id), 1)
}

func TestWebhookUnknownOrder(t *testing.T) {
	env := newTestEnv(t)
	signed := signedCallback(paymentCallback(uuid.NewString(), "paid"))

	status, _ := env.do(t, fiber.MethodPost, "/api/v1/orders/webhook", "", signed)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestProfileTelegramID(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "+15551230005")

	status, res := env.do(t, fiber.MethodPost, "/api/v1/profile/telegram-id", token, fiber.Map{"telegram_id": "0"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid_telegram_id", res.Get("error.code").String())

	status, res = env.do(t, fiber.MethodPost, "/api/v1/profile/telegram-id", token, fiber.Map{"telegram_id": "777"})
	require.Equal(t, fiber.StatusOK, status, res.Raw)
	assert.Equal(t, "777", res.Get("data.user.telegram_id").String())

	status, res = env.do(t, fiber.MethodPatch, "/api/v1/profile", token, fiber.Map{"first_name": "Ada"})
	require.Equal(t, fiber.StatusOK, status, res.Raw)
	assert.Equal(t, "Ada", res.Get("data.first_name").String())
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "+15551230006")

	resp, err := env.app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(mustRead(resp.Body)), "foxyhub_otp_events_total")
}
