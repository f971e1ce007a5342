package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a customer identity keyed by phone number.
type User struct {
	BaseModel
	PhoneNumber string  `gorm:"size:15;uniqueIndex;not null" json:"phone_number"`
	Email       *string `gorm:"size:254" json:"email"`
	TelegramID  *string `gorm:"size:20" json:"telegram_id"`
	FirstName   string  `gorm:"size:150" json:"first_name"`
	LastName    string  `gorm:"size:150" json:"last_name"`
	IsVerified  bool    `json:"is_verified"`
}

// OTPChallenge is a one-time code issued to a user. Only the hash of the
// code is stored.
type OTPChallenge struct {
	BaseModel
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	CodeHash  string    `json:"-"`
	IsUsed    bool      `json:"is_used"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsValid reports whether the challenge is unused and not yet expired at now.
func (o *OTPChallenge) IsValid(now time.Time) bool {
	return !o.IsUsed && now.Before(o.ExpiresAt)
}

// IsExpired reports whether the expiry timestamp has passed at now.
func (o *OTPChallenge) IsExpired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}
