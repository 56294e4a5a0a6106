package providers

import (
	"context"
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
)

func signWave(secret string, ts int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d", ts)))
	mac.Write([]byte("."))
	mac.Write(body)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestWaveVerifyWebhook(t *testing.T) {
	p := NewWaveProvider(Config{WebhookSecret: "secret"})
	body := []byte(`{"type":"checkout.session.completed"}`)

	headers := http.Header{}
	headers.Set("Wave-Signature", signWave("secret", time.Now().Unix(), body))
	assert.True(t, p.VerifyWebhook(headers, body))

	// mauvais secret
	headers.Set("Wave-Signature", signWave("wrong", time.Now().Unix(), body))
	assert.False(t, p.VerifyWebhook(headers, body))

	// corps altere apres signature
	headers.Set("Wave-Signature", signWave("secret", time.Now().Unix(), body))
	assert.False(t, p.VerifyWebhook(headers, []byte(`{"tampered":true}`)))

	// header absent
	assert.False(t, p.VerifyWebhook(http.Header{}, body))
}

func TestWaveVerifyWebhookRejectsReplay(t *testing.T) {
	p := NewWaveProvider(Config{WebhookSecret: "secret"})
	p.now = func() time.Time { return time.Unix(10_000, 0) }

	body := []byte(`{}`)
	headers := http.Header{}

	// dans la fenetre
	headers.Set("Wave-Signature", signWave("secret", 9_800, body))
	assert.True(t, p.VerifyWebhook(headers, body))

	// au-dela de 300s: replay
	headers.Set("Wave-Signature", signWave("secret", 9_000, body))
	assert.False(t, p.VerifyWebhook(headers, body))
}

func TestWaveParseWebhook(t *testing.T) {
	p := NewWaveProvider(Config{})

	event, err := p.ParseWebhook([]byte(
		`{"type":"checkout.session.completed","data":{"id":"cs-1","payment_status":"succeeded","client_reference":"key-1","amount":"15000","currency":"XOF"}}`))
	require.NoError(t, err)
	assert.Equal(t, WebhookStatusSuccess, event.Status)
	assert.Equal(t, "cs-1", event.PaymentReference)
	assert.Equal(t, "key-1", event.OrderReference)
	assert.Equal(t, int64(15000), event.Amount)

	event, err = p.ParseWebhook([]byte(
		`{"type":"checkout.session.payment_failed","data":{"id":"cs-2","payment_status":"failed"}}`))
	require.NoError(t, err)
	assert.Equal(t, WebhookStatusFailed, event.Status)

	_, err = p.ParseWebhook([]byte(`not json`))
	require.Error(t, err)
}

func TestWaveInitiateParsesCheckoutSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer wave_sk", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"id":"cs-new","wave_launch_url":"https://pay.wave.com/c/cs-new","payment_status":"processing"}`)
	}))
	defer server.Close()

	p := NewWaveProvider(Config{APIKey: "wave_sk", BaseURL: server.URL})
	result := p.Initiate(context.Background(), InitiateRequest{
		Amount:         15000,
		Currency:       "XOF",
		IdempotencyKey: "key-1",
	})

	assert.Equal(t, StatusPending, result.Status)
	assert.Equal(t, "cs-new", result.ProviderReference)
	assert.Equal(t, "https://pay.wave.com/c/cs-new", result.RedirectURL)
}

func TestWaveInitiateNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connexion refusee

	p := NewWaveProvider(Config{APIKey: "wave_sk", BaseURL: server.URL})
	result := p.Initiate(context.Background(), InitiateRequest{Amount: 1000, Currency: "XOF"})

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, ErrCodeNetwork, result.ErrorCode)
}

func TestWaveCheckStatusMapsStatuses(t *testing.T) {
	status := "succeeded"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"id":"cs-1","payment_status":%q}`, status)
	}))
	defer server.Close()

	p := NewWaveProvider(Config{APIKey: "wave_sk", BaseURL: server.URL})

	result := p.CheckStatus(context.Background(), "cs-1")
	assert.Equal(t, StatusSuccess, result.Status)

	status = "cancelled"
	result = p.CheckStatus(context.Background(), "cs-1")
	assert.Equal(t, StatusFailed, result.Status)

	status = "processing"
	result = p.CheckStatus(context.Background(), "cs-1")
	assert.Equal(t, StatusPending, result.Status)
}
