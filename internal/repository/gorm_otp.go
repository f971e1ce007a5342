package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/foxyhub/internal/models"
)

// GormOTPs implements OTPRepository on gorm.
type GormOTPs struct {
	db *gorm.DB
}

func NewGormOTPs(db *gorm.DB) *GormOTPs {
	return &GormOTPs{db: db}
}

func (r *GormOTPs) Create(ctx context.Context, challenge *models.OTPChallenge) error {
	return r.db.WithContext(ctx).Create(challenge).Error
}

func (r *GormOTPs) Latest(ctx context.Context, userID uuid.UUID) (*models.OTPChallenge, error) {
	var challenge models.OTPChallenge
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		First(&challenge).Error; err != nil {
		return nil, translate(err)
	}
	return &challenge, nil
}

func (r *GormOTPs) MarkUsed(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.OTPChallenge{}).
		Where("id = ?", id).
		Update("is_used", true).Error
}
