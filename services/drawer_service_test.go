package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaokouame/pos-payments/models"
	"github.com/yaokouame/pos-payments/providers"
)

func TestDrawerOpenRejectsSecondOpenSession(t *testing.T) {
	db := newTestDB(t)
	drawers := NewDrawerService(db)

	_, err := drawers.Open(1, 10, 25000)
	require.NoError(t, err)

	_, err = drawers.Open(1, 10, 5000)
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)

	// un autre caissier ouvre librement
	_, err = drawers.Open(1, 11, 5000)
	require.NoError(t, err)
}

func TestDrawerExpectedBalanceTracksCashPayments(t *testing.T) {
	db := newTestDB(t)
	payments := newTestPaymentService(t, db)
	drawers := NewDrawerService(db)

	session, err := drawers.Open(1, 10, 25000)
	require.NoError(t, err)

	// sans encaissement, l'attendu est le fonds d'ouverture
	current, err := drawers.Current(1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(25000), current.ExpectedBalance)

	for _, amount := range []int64{15000, 7000} {
		order := createTestOrder(t, db, 1, amount)
		out, err := payments.Initiate(context.Background(), InitiateInput{
			OrderID:      order.ID,
			BusinessID:   1,
			ProviderCode: providers.CodeCash,
		})
		require.NoError(t, err)
		require.Equal(t, models.PaymentStatusSuccess, out.Payment.Status)
	}

	current, err = drawers.Current(1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(47000), current.ExpectedBalance)

	closed, err := drawers.Close(1, 10, session.ID, 46500, "billet manquant")
	require.NoError(t, err)
	assert.Equal(t, int64(47000), closed.ExpectedBalance)
	assert.Equal(t, int64(-500), closed.Variance)
	assert.Equal(t, "billet manquant", closed.VarianceNotes)
	require.NotNil(t, closed.ClosedAt)
}

func TestDrawerExpectedBalanceSubtractsCashRefunds(t *testing.T) {
	db := newTestDB(t)
	payments := newTestPaymentService(t, db)
	refunds := NewRefundService(payments, db, payments.registry)
	drawers := NewDrawerService(db)

	_, err := drawers.Open(1, 10, 10000)
	require.NoError(t, err)

	order := createTestOrder(t, db, 1, 8000)
	out, err := payments.Initiate(context.Background(), InitiateInput{
		OrderID:      order.ID,
		BusinessID:   1,
		ProviderCode: providers.CodeCash,
	})
	require.NoError(t, err)

	_, err = refunds.Refund(context.Background(), 1, out.Payment.ID, 3000, "retour article")
	require.NoError(t, err)

	current, err := drawers.Current(1, 10)
	require.NoError(t, err)
	// 10000 + 8000 encaisses - 3000 rendus
	assert.Equal(t, int64(15000), current.ExpectedBalance)
}

func TestDrawerCloseIsFinal(t *testing.T) {
	db := newTestDB(t)
	drawers := NewDrawerService(db)

	session, err := drawers.Open(1, 10, 5000)
	require.NoError(t, err)

	_, err = drawers.Close(1, 10, session.ID, 5000, "")
	require.NoError(t, err)

	// une session close ne se referme pas
	_, err = drawers.Close(1, 10, session.ID, 5000, "")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)

	_, err = drawers.Current(1, 10)
	require.ErrorAs(t, err, &notFound)
}

func TestDrawerCloseRejectsOtherCashiersSession(t *testing.T) {
	db := newTestDB(t)
	drawers := NewDrawerService(db)

	session, err := drawers.Open(1, 42, 5000)
	require.NoError(t, err)

	// meme tenant, autre caissier: la session reste ouverte
	_, err = drawers.Close(1, 10, session.ID, 5000, "")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)

	current, err := drawers.Current(1, 42)
	require.NoError(t, err)
	assert.Nil(t, current.ClosedAt)

	closed, err := drawers.Close(1, 42, session.ID, 5000, "")
	require.NoError(t, err)
	require.NotNil(t, closed.ClosedAt)
}
