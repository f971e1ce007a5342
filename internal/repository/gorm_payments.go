package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/foxyhub/internal/models"
)

// GormPayments implements PaymentRepository on gorm.
type GormPayments struct {
	db *gorm.DB
}

func NewGormPayments(db *gorm.DB) *GormPayments {
	return &GormPayments{db: db}
}

func (r *GormPayments) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *GormPayments) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &payment, nil
}

func (r *GormPayments) FindLatestForOrder(ctx context.Context, orderID uuid.UUID, status string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, status).
		Order("created_at desc").
		First(&payment).Error; err != nil {
		return nil, translate(err)
	}
	return &payment, nil
}

// TransitionStatus is a conditional update so that concurrent deliveries of
// the same gateway notification change the row only once.
func (r *GormPayments) TransitionStatus(ctx context.Context, id uuid.UUID, status string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status <> ?", id, status).
		Updates(map[string]any{
			"status":     status,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Payment{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, ErrNotFound
	}
	return false, nil
}

func (r *GormPayments) Complete(ctx context.Context, id uuid.UUID) (bool, error) {
	orderPaid := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payment models.Payment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&payment, "id = ?", id).Error; err != nil {
			return translate(err)
		}
		if payment.Status == models.PaymentStatusCompleted {
			return nil
		}

		now := time.Now()
		if err := tx.Model(&models.Payment{}).Where("id = ?", payment.ID).
			Updates(map[string]any{"status": models.PaymentStatusCompleted, "updated_at": now}).Error; err != nil {
			return err
		}
		result := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", payment.OrderID, models.OrderStatusPending).
			Updates(map[string]any{"status": models.OrderStatusPaid, "updated_at": now})
		if result.Error != nil {
			return result.Error
		}
		orderPaid = result.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return orderPaid, nil
}

func (r *GormPayments) ListPending(ctx context.Context, method string, createdBefore time.Time) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("status = ? AND payment_method = ? AND created_at < ?", models.PaymentStatusPending, method, createdBefore).
		Order("created_at asc").
		Find(&payments).Error
	return payments, err
}
