package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yaokouame/pos-payments/models"
	"github.com/yaokouame/pos-payments/providers"
)

const waveTestSecret = "whsec_test_123"

func newWebhookFixture(t *testing.T) (*WebhookProcessor, *gorm.DB, *models.Payment) {
	t.Helper()

	db := newTestDB(t)
	payments := newTestPaymentService(t, db)
	processor := NewWebhookProcessor(payments, db, payments.registry)

	method := models.PaymentMethod{
		BusinessID:   1,
		ProviderCode: providers.CodeWave,
		Active:       true,
		Config:       fmt.Sprintf(`{"webhook_secret":%q}`, waveTestSecret),
	}
	require.NoError(t, db.Create(&method).Error)

	order := createTestOrder(t, db, 1, 15000)
	payment := models.Payment{
		IdempotencyKey:    "wh-key-1",
		OrderID:           order.ID,
		BusinessID:        1,
		Amount:            15000,
		Currency:          "XOF",
		ProviderCode:      providers.CodeWave,
		ProviderReference: "cs-abc123",
		Status:            models.PaymentStatusProcessing,
	}
	require.NoError(t, db.Create(&payment).Error)

	return processor, db, &payment
}

func signWaveBody(body []byte) http.Header {
	ts := fmt.Sprintf("%d", time.Now().Unix())
	mac := hmac.New(sha256.New, []byte(waveTestSecret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)

	headers := http.Header{}
	headers.Set("Wave-Signature", fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil))))
	return headers
}

func waveSuccessBody(reference string, amount int64) []byte {
	return []byte(fmt.Sprintf(
		`{"type":"checkout.session.completed","data":{"id":%q,"payment_status":"succeeded","client_reference":"wh-key-1","amount":"%d","currency":"XOF"}}`,
		reference, amount))
}

func TestWebhookSuccessConfirmsPayment(t *testing.T) {
	processor, db, payment := newWebhookFixture(t)

	body := waveSuccessBody(payment.ProviderReference, payment.Amount)
	outcome := processor.Process(WebhookJob{
		ProviderCode: providers.CodeWave,
		Headers:      signWaveBody(body),
		Body:         body,
		ReceivedAt:   time.Now(),
	})
	assert.Equal(t, WebhookOutcomeProcessed, outcome)

	var reloaded models.Payment
	require.NoError(t, db.First(&reloaded, payment.ID).Error)
	assert.Equal(t, models.PaymentStatusSuccess, reloaded.Status)
	require.NotNil(t, reloaded.CompletedAt)

	var order models.Order
	require.NoError(t, db.First(&order, payment.OrderID).Error)
	assert.Equal(t, models.OrderStatusPaid, order.Status)
}

func TestWebhookInvalidSignatureIsDropped(t *testing.T) {
	processor, db, payment := newWebhookFixture(t)

	body := waveSuccessBody(payment.ProviderReference, payment.Amount)
	headers := http.Header{}
	headers.Set("Wave-Signature", "t=123,v1=deadbeef")

	outcome := processor.Process(WebhookJob{
		ProviderCode: providers.CodeWave,
		Headers:      headers,
		Body:         body,
	})
	assert.Equal(t, WebhookOutcomeInvalidSignature, outcome)

	var reloaded models.Payment
	require.NoError(t, db.First(&reloaded, payment.ID).Error)
	assert.Equal(t, models.PaymentStatusProcessing, reloaded.Status)
}

func TestWebhookRedeliveryIsIdempotent(t *testing.T) {
	processor, db, payment := newWebhookFixture(t)

	body := waveSuccessBody(payment.ProviderReference, payment.Amount)
	job := WebhookJob{
		ProviderCode: providers.CodeWave,
		Headers:      signWaveBody(body),
		Body:         body,
	}

	require.Equal(t, WebhookOutcomeProcessed, processor.Process(job))

	// le provider re-livre: no-op, pas de double transition
	job.Headers = signWaveBody(body)
	assert.Equal(t, WebhookOutcomeIgnoredTerminal, processor.Process(job))

	var reloaded models.Payment
	require.NoError(t, db.First(&reloaded, payment.ID).Error)
	assert.Equal(t, models.PaymentStatusSuccess, reloaded.Status)
}

func TestWebhookFailureMarksPaymentFailed(t *testing.T) {
	processor, db, payment := newWebhookFixture(t)

	body := []byte(fmt.Sprintf(
		`{"type":"checkout.session.payment_failed","data":{"id":%q,"payment_status":"failed","client_reference":"wh-key-1","amount":"15000","currency":"XOF"}}`,
		payment.ProviderReference))

	outcome := processor.Process(WebhookJob{
		ProviderCode: providers.CodeWave,
		Headers:      signWaveBody(body),
		Body:         body,
	})
	assert.Equal(t, WebhookOutcomeProcessed, outcome)

	var reloaded models.Payment
	require.NoError(t, db.First(&reloaded, payment.ID).Error)
	assert.Equal(t, models.PaymentStatusFailed, reloaded.Status)
	assert.Equal(t, "provider_error", reloaded.ErrorCode)
}

func TestWebhookAmountMismatchRefusesConfirmation(t *testing.T) {
	processor, db, payment := newWebhookFixture(t)

	body := waveSuccessBody(payment.ProviderReference, 99999)
	outcome := processor.Process(WebhookJob{
		ProviderCode: providers.CodeWave,
		Headers:      signWaveBody(body),
		Body:         body,
	})
	assert.Equal(t, WebhookOutcomeProcessed, outcome)

	var reloaded models.Payment
	require.NoError(t, db.First(&reloaded, payment.ID).Error)
	assert.Equal(t, models.PaymentStatusFailed, reloaded.Status)
	assert.Equal(t, "amount_mismatch", reloaded.ErrorCode)
}

func TestWebhookUnknownReferenceIsNotFound(t *testing.T) {
	processor, _, _ := newWebhookFixture(t)

	body := []byte(`{"type":"checkout.session.completed","data":{"id":"cs-unknown","payment_status":"succeeded","client_reference":"no-such-key","amount":"1000","currency":"XOF"}}`)
	outcome := processor.Process(WebhookJob{
		ProviderCode: providers.CodeWave,
		Headers:      signWaveBody(body),
		Body:         body,
	})
	assert.Equal(t, WebhookOutcomeNotFound, outcome)
}

func TestWebhookForgedStatusDoesNotConfirmPayment(t *testing.T) {
	db := newTestDB(t)
	payments := newTestPaymentService(t, db)
	processor := NewWebhookProcessor(payments, db, payments.registry)

	// MTN repond PENDING pour cette reference
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"PENDING","amount":"15000","currency":"XOF"}`)
	}))
	defer server.Close()

	method := models.PaymentMethod{
		BusinessID:   1,
		ProviderCode: providers.CodeMTNMoMo,
		Active:       true,
		Config:       fmt.Sprintf(`{"api_key":"k","api_secret":"s","base_url":%q}`, server.URL),
	}
	require.NoError(t, db.Create(&method).Error)

	order := createTestOrder(t, db, 1, 15000)
	payment := models.Payment{
		IdempotencyKey:    "mtn-key-1",
		OrderID:           order.ID,
		BusinessID:        1,
		Amount:            15000,
		Currency:          "XOF",
		ProviderCode:      providers.CodeMTNMoMo,
		ProviderReference: "ref-123",
		Status:            models.PaymentStatusProcessing,
	}
	require.NoError(t, db.Create(&payment).Error)

	// le corps pretend SUCCESSFUL sur une reference reelle
	outcome := processor.Process(WebhookJob{
		ProviderCode: providers.CodeMTNMoMo,
		Headers:      http.Header{},
		Body:         []byte(`{"referenceId":"ref-123","status":"SUCCESSFUL","amount":"15000","currency":"XOF"}`),
		ReceivedAt:   time.Now(),
	})
	assert.Equal(t, WebhookOutcomeInvalidSignature, outcome)

	var reloaded models.Payment
	require.NoError(t, db.First(&reloaded, payment.ID).Error)
	assert.Equal(t, models.PaymentStatusProcessing, reloaded.Status)

	var reloadedOrder models.Order
	require.NoError(t, db.First(&reloadedOrder, order.ID).Error)
	assert.Equal(t, models.OrderStatusPendingPayment, reloadedOrder.Status)
}

func TestWebhookMalformedBodyIsRejected(t *testing.T) {
	processor, _, _ := newWebhookFixture(t)

	body := []byte(`{not json`)
	outcome := processor.Process(WebhookJob{
		ProviderCode: providers.CodeWave,
		Headers:      signWaveBody(body),
		Body:         body,
	})
	assert.Equal(t, WebhookOutcomeMalformed, outcome)
}
