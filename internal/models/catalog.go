package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product type tags. The tag decides how an item is fulfilled after payment.
const (
	ProductTypeTelegramPremium = "telegram_premium"
	ProductTypeTelegramStars   = "telegram_stars"
	ProductTypeSpotify         = "spotify"
	ProductTypeOther           = "other"
)

type Category struct {
	BaseModel
	Name        string `gorm:"size:100" json:"name"`
	Slug        string `gorm:"size:100;uniqueIndex" json:"slug"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
}

type Product struct {
	BaseModel
	Name          string           `gorm:"size:200" json:"name"`
	Slug          string           `gorm:"size:200;uniqueIndex" json:"slug"`
	Description   string           `json:"description"`
	Price         decimal.Decimal  `gorm:"type:numeric(10,2)" json:"price"`
	DiscountPrice *decimal.Decimal `gorm:"type:numeric(10,2)" json:"discount_price"`
	CategoryID    uuid.UUID        `gorm:"type:uuid;index" json:"category_id"`
	Category      *Category        `json:"category,omitempty"`
	ProductType   string           `gorm:"size:20;index" json:"product_type"`
	Image         string           `json:"image"`
	IsActive      bool             `json:"is_active"`
	Variants      []ProductVariant `json:"variants,omitempty"`
}

// CurrentPrice returns the effective price of the product.
func (p *Product) CurrentPrice() decimal.Decimal {
	return EffectivePrice(p.Price, p.DiscountPrice)
}

// RequiresSubscriptionPurchase reports whether fulfillment must buy a
// subscription from the external provider.
func (p *Product) RequiresSubscriptionPurchase() bool {
	return p.ProductType == ProductTypeTelegramPremium
}

type ProductVariant struct {
	BaseModel
	ProductID      uuid.UUID        `gorm:"type:uuid;index" json:"product_id"`
	Name           string           `gorm:"size:100" json:"name"`
	Description    string           `json:"description"`
	Price          decimal.Decimal  `gorm:"type:numeric(10,2)" json:"price"`
	DiscountPrice  *decimal.Decimal `gorm:"type:numeric(10,2)" json:"discount_price"`
	DurationMonths int              `json:"duration_months"`
	IsActive       bool             `json:"is_active"`
}

// CurrentPrice returns the effective price of the variant.
func (v *ProductVariant) CurrentPrice() decimal.Decimal {
	return EffectivePrice(v.Price, v.DiscountPrice)
}

// EffectivePrice returns discount when it is set and price otherwise. The
// discount is not clamped to the list price.
func EffectivePrice(price decimal.Decimal, discount *decimal.Decimal) decimal.Decimal {
	if discount != nil {
		return *discount
	}
	return price
}
