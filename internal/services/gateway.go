package services

import (
	"context"

	"github.com/shopspring/decimal"
)

// SessionRequest describes a remote payment session to open.
type SessionRequest struct {
	Amount      decimal.Decimal
	Currency    string
	OrderID     string
	Description string
	CallbackURL string
}

// GatewaySession is the gateway's answer to a session request. Raw is the
// untouched response body.
type GatewaySession struct {
	SessionID   string
	CheckoutURL string
	Raw         []byte
}

// GatewayStatus reports a remote payment status for an order.
type GatewayStatus struct {
	OrderID       string
	Status        string
	TransactionID string
	Raw           []byte
}

// PaymentGateway is the external crypto payment provider.
type PaymentGateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*GatewaySession, error)
	GetStatus(ctx context.Context, orderID string) (*GatewayStatus, error)
	// VerifyNotification checks the signature of a callback body and decodes it.
	VerifyNotification(body []byte) (*GatewayStatus, error)
}

// Messenger delivers text messages to a messaging account.
type Messenger interface {
	SendMessage(ctx context.Context, chatID, text string) (bool, error)
}

// PurchaseResult is the fulfillment provider's answer to a purchase.
type PurchaseResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id"`
	Message       string `json:"message"`
}

// SubscriptionProvider buys subscriptions for an external account.
type SubscriptionProvider interface {
	PurchaseSubscription(ctx context.Context, accountID string, months int) (*PurchaseResult, error)
}
