package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/foxyhub/internal/middleware"
	"github.com/example/foxyhub/internal/services"
	"github.com/example/foxyhub/internal/utils"
)

// OrderHandler manages order and payment endpoints.
type OrderHandler struct {
	orders      *services.OrderService
	payments    *services.PaymentService
	callbackURL string
}

// NewOrderHandler constructs OrderHandler. callbackURL is handed to the
// payment gateway for status notifications.
func NewOrderHandler(orders *services.OrderService, payments *services.PaymentService, callbackURL string) *OrderHandler {
	return &OrderHandler{orders: orders, payments: payments, callbackURL: callbackURL}
}

type orderItemRequest struct {
	ProductID string  `json:"product_id"`
	VariantID *string `json:"variant_id"`
	Quantity  *int    `json:"quantity"`
}

type createOrderRequest struct {
	TelegramID string             `json:"telegram_id"`
	Items      []orderItemRequest `json:"items"`
}

// CreateOrder places an order for the authenticated user.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	inputs := make([]services.OrderItemInput, 0, len(req.Items))
	for i, item := range req.Items {
		input, err := item.toInput()
		if err != nil {
			return services.ErrValidation.With("invalid item identifiers").
				Field(itemField(i), err.Error())
		}
		inputs = append(inputs, input)
	}

	order, err := h.orders.CreateOrder(c.UserContext(), userID, inputs, req.TelegramID)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": order})
}

func (r orderItemRequest) toInput() (services.OrderItemInput, error) {
	productID, err := uuid.Parse(r.ProductID)
	if err != nil {
		return services.OrderItemInput{}, fiber.NewError(fiber.StatusBadRequest, "product_id must be a UUID")
	}

	input := services.OrderItemInput{ProductID: productID, Quantity: 1}
	if r.Quantity != nil {
		input.Quantity = *r.Quantity
	}
	if r.VariantID != nil && *r.VariantID != "" {
		variantID, err := uuid.Parse(*r.VariantID)
		if err != nil {
			return services.OrderItemInput{}, fiber.NewError(fiber.StatusBadRequest, "variant_id must be a UUID")
		}
		input.VariantID = &variantID
	}
	return input, nil
}

func itemField(i int) string {
	return fmt.Sprintf("items[%d]", i)
}

// ListOrders returns a page of the caller's orders.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)
	orders, total, err := h.orders.ListOrders(c.UserContext(), userID, c.Query("status"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    orders,
		"pagination": pg.Meta(total),
	})
}

// GetOrder returns one of the caller's orders with items and payments.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	order, err := h.orders.GetOrder(c.UserContext(), userID, orderID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

type createPaymentRequest struct {
	PaymentMethod string `json:"payment_method"`
}

// CreatePayment opens a gateway payment for a pending order.
func (h *OrderHandler) CreatePayment(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req createPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	payment, paymentURL, err := h.payments.CreatePayment(c.UserContext(), userID, orderID, req.PaymentMethod, h.callbackURL)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"payment":     payment,
			"payment_url": paymentURL,
		},
	})
}

// Webhook receives gateway status notifications. It is unauthenticated; the
// payload signature is checked by the payment service.
func (h *OrderHandler) Webhook(c *fiber.Ctx) error {
	if err := h.payments.HandleNotification(c.UserContext(), c.Body()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "status": "ok"})
}
