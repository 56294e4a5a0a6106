package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yaokouame/pos-payments/models"
	"github.com/yaokouame/pos-payments/providers"
)

func createStalePayment(t *testing.T, db *gorm.DB, key, status string, age time.Duration) *models.Payment {
	t.Helper()
	order := createTestOrder(t, db, 1, 15000)
	payment := &models.Payment{
		IdempotencyKey: key,
		OrderID:        order.ID,
		BusinessID:     1,
		Amount:         15000,
		Currency:       "XOF",
		ProviderCode:   providers.CodeCash,
		Status:         status,
		CreatedAt:      time.Now().Add(-age),
	}
	require.NoError(t, db.Create(payment).Error)
	return payment
}

func TestSweepExpiresStaleProcessingPayment(t *testing.T) {
	db := newTestDB(t)
	payments := newTestPaymentService(t, db)
	sweeper := NewExpirySweeper(payments, db, 30*time.Minute)

	stale := createStalePayment(t, db, "sweep-processing", models.PaymentStatusProcessing, time.Hour)
	sweeper.Sweep(context.Background())

	var reloaded models.Payment
	require.NoError(t, db.First(&reloaded, stale.ID).Error)
	assert.Equal(t, models.PaymentStatusExpired, reloaded.Status)
	require.NotNil(t, reloaded.CompletedAt)
}

func TestSweepExpiresStalePendingThroughProcessing(t *testing.T) {
	db := newTestDB(t)
	payments := newTestPaymentService(t, db)
	sweeper := NewExpirySweeper(payments, db, 30*time.Minute)

	// PENDING ne peut pas expirer directement, la passe le fait transiter
	stale := createStalePayment(t, db, "sweep-pending", models.PaymentStatusPending, time.Hour)
	sweeper.Sweep(context.Background())

	var reloaded models.Payment
	require.NoError(t, db.First(&reloaded, stale.ID).Error)
	assert.Equal(t, models.PaymentStatusExpired, reloaded.Status)
}

func TestSweepLeavesFreshPaymentsAlone(t *testing.T) {
	db := newTestDB(t)
	payments := newTestPaymentService(t, db)
	sweeper := NewExpirySweeper(payments, db, 30*time.Minute)

	fresh := createStalePayment(t, db, "sweep-fresh", models.PaymentStatusProcessing, time.Minute)
	sweeper.Sweep(context.Background())

	var reloaded models.Payment
	require.NoError(t, db.First(&reloaded, fresh.ID).Error)
	assert.Equal(t, models.PaymentStatusProcessing, reloaded.Status)
	assert.Nil(t, reloaded.CompletedAt)
}
