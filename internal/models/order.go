package models

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	OrderStatusPending    = "pending"
	OrderStatusPaid       = "paid"
	OrderStatusProcessing = "processing"
	OrderStatusCompleted  = "completed"
	OrderStatusFailed     = "failed"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRefunded   = "refunded"
)

const (
	PaymentMethodCrypto = "crypto"
	PaymentMethodCard   = "card"
	PaymentMethodOther  = "other"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

type Order struct {
	BaseModel
	UserID      uuid.UUID       `gorm:"type:uuid;index;not null" json:"user_id"`
	Status      string          `gorm:"size:20;index" json:"status"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(10,2)" json:"total_amount"`
	TelegramID  string          `gorm:"size:20" json:"telegram_id"`
	Notes       string          `json:"notes"`
	Items       []OrderItem     `json:"items,omitempty"`
	Payments    []Payment       `json:"payments,omitempty"`
}

// AppendNote adds a line to the fulfillment log kept in Notes.
func (o *Order) AppendNote(line string) {
	o.Notes += "\n" + strings.TrimSpace(line)
}

type OrderItem struct {
	BaseModel
	OrderID   uuid.UUID       `gorm:"type:uuid;index;not null" json:"order_id"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null" json:"product_id"`
	Product   *Product        `json:"product,omitempty"`
	VariantID *uuid.UUID      `gorm:"type:uuid" json:"variant_id"`
	Variant   *ProductVariant `json:"variant,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `gorm:"type:numeric(10,2)" json:"price"`
}

// TotalPrice is the captured unit price times quantity.
func (i *OrderItem) TotalPrice() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// DurationMonths is the subscription length the item buys: the variant's
// duration when a variant was chosen, one month otherwise.
func (i *OrderItem) DurationMonths() int {
	if i.Variant != nil && i.Variant.DurationMonths > 0 {
		return i.Variant.DurationMonths
	}
	return 1
}

type Payment struct {
	BaseModel
	OrderID       uuid.UUID       `gorm:"type:uuid;index;not null" json:"order_id"`
	Amount        decimal.Decimal `gorm:"type:numeric(10,2)" json:"amount"`
	PaymentMethod string          `gorm:"size:20" json:"payment_method"`
	Status        string          `gorm:"size:20;index" json:"status"`
	TransactionID *string         `gorm:"size:255" json:"transaction_id"`
	Details       datatypes.JSON  `gorm:"type:jsonb" json:"-"`
}
