package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaokouame/pos-payments/models"
	"github.com/yaokouame/pos-payments/providers"
)

func newRefundFixture(t *testing.T) (*RefundService, *PaymentService, *models.Payment) {
	t.Helper()

	db := newTestDB(t)
	payments := newTestPaymentService(t, db)
	refunds := NewRefundService(payments, db, payments.registry)

	order := createTestOrder(t, db, 1, 10000)
	out, err := payments.Initiate(context.Background(), InitiateInput{
		OrderID:      order.ID,
		BusinessID:   1,
		ProviderCode: providers.CodeCash,
	})
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusSuccess, out.Payment.Status)

	return refunds, payments, out.Payment
}

func TestRefundPartialThenFullPromotion(t *testing.T) {
	refunds, payments, payment := newRefundFixture(t)

	out, err := refunds.Refund(context.Background(), 1, payment.ID, 3000, "article abime")
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "partial", out.RefundType)
	assert.Equal(t, int64(3000), out.RefundedAmount)
	assert.Equal(t, int64(7000), out.RemainingAmount)
	assert.Equal(t, models.PaymentStatusPartiallyRefunded, out.Payment.Status)

	out, err = refunds.Refund(context.Background(), 1, payment.ID, 4000, "deuxieme article")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPartiallyRefunded, out.Payment.Status)
	assert.Equal(t, int64(7000), out.Payment.RefundedAmount)

	// le dernier partiel atteint le total: statut REFUNDED
	out, err = refunds.Refund(context.Background(), 1, payment.ID, 3000, "solde")
	require.NoError(t, err)
	assert.Equal(t, "full", out.RefundType)
	assert.Equal(t, models.PaymentStatusRefunded, out.Payment.Status)
	assert.Equal(t, int64(0), out.RemainingAmount)

	reloaded, err := payments.Get(1, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), reloaded.RefundedAmount)
}

func TestRefundZeroAmountMeansFullBalance(t *testing.T) {
	refunds, _, payment := newRefundFixture(t)

	out, err := refunds.Refund(context.Background(), 1, payment.ID, 0, "annulation complete")
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "full", out.RefundType)
	assert.Equal(t, int64(10000), out.RefundedAmount)
	assert.Equal(t, models.PaymentStatusRefunded, out.Payment.Status)
}

func TestRefundRejectsOverRemaining(t *testing.T) {
	refunds, _, payment := newRefundFixture(t)

	_, err := refunds.Refund(context.Background(), 1, payment.ID, 6000, "premier")
	require.NoError(t, err)

	_, err = refunds.Refund(context.Background(), 1, payment.ID, 5000, "trop")
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestRefundRejectsNonSuccessPayment(t *testing.T) {
	db := newTestDB(t)
	payments := newTestPaymentService(t, db)
	refunds := NewRefundService(payments, db, payments.registry)

	payment := models.Payment{
		IdempotencyKey: "pending-refund",
		BusinessID:     1,
		Amount:         5000,
		Currency:       "XOF",
		ProviderCode:   providers.CodeWave,
		Status:         models.PaymentStatusProcessing,
	}
	require.NoError(t, db.Create(&payment).Error)

	_, err := refunds.Refund(context.Background(), 1, payment.ID, 0, "")
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestRefundWritesAuditRow(t *testing.T) {
	refunds, payments, payment := newRefundFixture(t)

	_, err := refunds.Refund(context.Background(), 1, payment.ID, 2500, "geste commercial")
	require.NoError(t, err)

	var rows []models.Refund
	require.NoError(t, payments.db.Where("payment_id = ?", payment.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2500), rows[0].Amount)
	assert.Equal(t, "geste commercial", rows[0].Reason)
	assert.Equal(t, uint(1), rows[0].BusinessID)
}

func TestRefundCrossTenantIsNotFound(t *testing.T) {
	refunds, _, payment := newRefundFixture(t)

	_, err := refunds.Refund(context.Background(), 2, payment.ID, 1000, "")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}
