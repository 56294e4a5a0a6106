package providers

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
)

const paystackBaseURL = "https://api.paystack.co"

// PaystackProvider pilote l'API transaction de Paystack. Les montants
// circulent en sous-unites (x100) meme pour le XOF qui n'a pas de
// decimales: la conversion reste strictement locale a cet adapteur.
// Webhook signe HMAC-SHA512 du corps brut dans x-paystack-signature.
type PaystackProvider struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
}

func NewPaystackProvider(cfg Config) *PaystackProvider {
	base := cfg.BaseURL
	if base == "" {
		base = paystackBaseURL
	}
	return &PaystackProvider{cfg: cfg, baseURL: base, httpClient: newHTTPClient()}
}

func (p *PaystackProvider) Code() string { return CodePaystack }

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type paystackInitData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

func (p *PaystackProvider) Initiate(ctx context.Context, req InitiateRequest) InitiateResult {
	payload := map[string]interface{}{
		"email":        fmt.Sprintf("order-%s@pos.local", req.OrderReference),
		"amount":       req.Amount * 100, // sous-unites
		"currency":     req.Currency,
		"reference":    req.IdempotencyKey,
		"callback_url": req.SuccessURL,
	}

	code, raw, err := doJSON(ctx, p.httpClient, http.MethodPost,
		p.baseURL+"/transaction/initialize",
		map[string]string{"Authorization": "Bearer " + p.cfg.APISecret},
		payload)
	if err != nil {
		return networkInitiateFailure(err)
	}

	var env paystackEnvelope
	if jsonErr := json.Unmarshal(raw, &env); jsonErr != nil || code >= 400 || !env.Status {
		msg := env.Message
		if msg == "" {
			msg = string(raw)
		}
		return InitiateResult{
			Status:       StatusFailed,
			ErrorCode:    classifyProviderMessage(msg),
			ErrorMessage: msg,
			Raw:          string(raw),
		}
	}

	var data paystackInitData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return InitiateResult{
			Status:       StatusFailed,
			ErrorCode:    "provider_error",
			ErrorMessage: "unexpected initialize payload",
			Raw:          string(raw),
		}
	}

	return InitiateResult{
		ProviderReference: data.Reference,
		Status:            StatusPending,
		RedirectURL:       data.AuthorizationURL,
		Raw:               string(raw),
	}
}

type paystackVerifyData struct {
	Status   string `json:"status"` // success | failed | abandoned | pending
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Message  string `json:"gateway_response"`
}

func (p *PaystackProvider) CheckStatus(ctx context.Context, providerRef string) StatusResult {
	code, raw, err := doJSON(ctx, p.httpClient, http.MethodGet,
		p.baseURL+"/transaction/verify/"+providerRef,
		map[string]string{"Authorization": "Bearer " + p.cfg.APISecret}, nil)
	if err != nil {
		return networkStatusFailure(providerRef, err)
	}

	var env paystackEnvelope
	if jsonErr := json.Unmarshal(raw, &env); jsonErr != nil || code >= 400 || !env.Status {
		return StatusResult{
			ProviderReference: providerRef,
			Status:            StatusFailed,
			ErrorCode:         "provider_error",
			ErrorMessage:      env.Message,
			Raw:               string(raw),
		}
	}

	var data paystackVerifyData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return StatusResult{
			ProviderReference: providerRef,
			Status:            StatusFailed,
			ErrorCode:         "provider_error",
			ErrorMessage:      "unexpected verify payload",
			Raw:               string(raw),
		}
	}

	var status string
	switch data.Status {
	case "success":
		status = StatusSuccess
	case "failed", "abandoned", "reversed":
		status = StatusFailed
	default:
		status = StatusPending
	}

	return StatusResult{
		ProviderReference: providerRef,
		Status:            status,
		ErrorMessage:      data.Message,
		Raw:               string(raw),
	}
}

func (p *PaystackProvider) ProcessRefund(ctx context.Context, providerRef string, amount int64) RefundResult {
	payload := map[string]interface{}{
		"transaction": providerRef,
	}
	if amount > 0 {
		payload["amount"] = amount * 100
	}

	code, raw, err := doJSON(ctx, p.httpClient, http.MethodPost,
		p.baseURL+"/refund",
		map[string]string{"Authorization": "Bearer " + p.cfg.APISecret},
		payload)
	if err != nil {
		return RefundResult{Success: false, ErrorMessage: err.Error()}
	}

	var env paystackEnvelope
	if jsonErr := json.Unmarshal(raw, &env); jsonErr != nil || code >= 400 || !env.Status {
		msg := env.Message
		if msg == "" {
			msg = string(raw)
		}
		return RefundResult{Success: false, ErrorMessage: msg}
	}

	return RefundResult{Success: true, ProviderReference: providerRef}
}

func (p *PaystackProvider) VerifyWebhook(headers http.Header, rawBody []byte) bool {
	sig := headers.Get("x-paystack-signature")
	if sig == "" || p.cfg.APISecret == "" {
		return false
	}

	mac := hmac.New(sha512.New, []byte(p.cfg.APISecret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(sig))
}

type paystackWebhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
	} `json:"data"`
}

func (p *PaystackProvider) ParseWebhook(rawBody []byte) (WebhookEvent, error) {
	var payload paystackWebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return WebhookEvent{}, fmt.Errorf("malformed paystack webhook: %w", err)
	}

	status := WebhookStatusPending
	switch payload.Event {
	case "charge.success":
		status = WebhookStatusSuccess
	case "charge.failed":
		status = WebhookStatusFailed
	}

	return WebhookEvent{
		EventType:        payload.Event,
		PaymentReference: payload.Data.Reference,
		OrderReference:   payload.Data.Reference,
		Status:           status,
		Amount:           payload.Data.Amount / 100, // retour aux unites XOF
		Currency:         payload.Data.Currency,
		Raw:              string(rawBody),
	}, nil
}
