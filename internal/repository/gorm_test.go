package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/foxyhub/internal/models"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Discard,
	})
	require.NoError(t, err)
	return db, mock
}

func TestCreateWithItemsRollsBack(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "orders"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "order_items"`).WillReturnError(errors.New("foreign key violation"))
	mock.ExpectRollback()

	order := &models.Order{
		UserID:      uuid.New(),
		Status:      models.OrderStatusPending,
		TotalAmount: decimal.RequireFromString("25.00"),
		TelegramID:  "42",
		Items: []models.OrderItem{
			{ProductID: uuid.New(), Quantity: 2, Price: decimal.RequireFromString("10.00")},
			{ProductID: uuid.New(), Quantity: 1, Price: decimal.RequireFromString("5.00")},
		},
	}
	err := NewGormOrders(db).CreateWithItems(context.Background(), order)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithItemsCommits(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "orders"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "order_items"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	order := &models.Order{
		UserID: uuid.New(),
		Status: models.OrderStatusPending,
		Items:  []models.OrderItem{{ProductID: uuid.New(), Quantity: 1}},
	}
	require.NoError(t, NewGormOrders(db).CreateWithItems(context.Background(), order))
	assert.NotEqual(t, uuid.Nil, order.ID)
	assert.Equal(t, order.ID, order.Items[0].OrderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestOTPQuery(t *testing.T) {
	db, mock := newMockDB(t)
	userID := uuid.New()
	id := uuid.New()
	expires := time.Now().Add(5 * time.Minute)

	rows := sqlmock.NewRows([]string{"id", "created_at", "updated_at", "user_id", "code_hash", "is_used", "expires_at"}).
		AddRow(id.String(), time.Now(), time.Now(), userID.String(), "hash", false, expires)
	mock.ExpectQuery(`SELECT \* FROM "otp_challenges" WHERE user_id = \$1 ORDER BY created_at desc`).
		WillReturnRows(rows)

	challenge, err := NewGormOTPs(db).Latest(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, id, challenge.ID)
	assert.Equal(t, "hash", challenge.CodeHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestOTPNotFound(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "otp_challenges"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := NewGormOTPs(db).Latest(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionStatusIsConditional(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormPayments(db)
	id := uuid.New()

	mock.ExpectExec(`UPDATE "payments" SET .* WHERE id = \$\d+ AND status <> \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	changed, err := repo.TransitionStatus(context.Background(), id, models.PaymentStatusCompleted)
	require.NoError(t, err)
	assert.True(t, changed)

	mock.ExpectExec(`UPDATE "payments" SET .* WHERE id = \$\d+ AND status <> \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "payments" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	changed, err = repo.TransitionStatus(context.Background(), id, models.PaymentStatusCompleted)
	require.NoError(t, err)
	assert.False(t, changed)

	mock.ExpectExec(`UPDATE "payments"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "payments"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	_, err = repo.TransitionStatus(context.Background(), uuid.New(), models.PaymentStatusCompleted)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func paymentRow(id, orderID uuid.UUID, status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "order_id", "status", "payment_method"}).
		AddRow(id.String(), orderID.String(), status, models.PaymentMethodCrypto)
}

func TestCompletePaymentRollsBackWhenOrderUpdateFails(t *testing.T) {
	db, mock := newMockDB(t)
	id, orderID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "payments" WHERE id = \$1 .*FOR UPDATE`).
		WillReturnRows(paymentRow(id, orderID, models.PaymentStatusPending))
	mock.ExpectExec(`UPDATE "payments" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "orders" SET .* WHERE id = \$\d+ AND status = \$\d+`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	paid, err := NewGormPayments(db).Complete(context.Background(), id)
	require.Error(t, err)
	assert.False(t, paid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompletePaymentCommitsBothRows(t *testing.T) {
	db, mock := newMockDB(t)
	id, orderID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "payments" WHERE id = \$1 .*FOR UPDATE`).
		WillReturnRows(paymentRow(id, orderID, models.PaymentStatusPending))
	mock.ExpectExec(`UPDATE "payments" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "orders" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	paid, err := NewGormPayments(db).Complete(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, paid)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "payments"`).
		WillReturnRows(paymentRow(id, orderID, models.PaymentStatusCompleted))
	mock.ExpectCommit()

	paid, err = NewGormPayments(db).Complete(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, paid)
	assert.NoError(t, mock.ExpectationsWereMet())
}
