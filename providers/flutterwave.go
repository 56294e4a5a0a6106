package providers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

const flutterwaveBaseURL = "https://api.flutterwave.com/v3"

// FlutterwaveProvider pilote l'API Payments (lien de paiement heberge).
// Webhook authentifie par comparaison du header verif-hash avec le secret
// partage configure dans le dashboard.
type FlutterwaveProvider struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
}

func NewFlutterwaveProvider(cfg Config) *FlutterwaveProvider {
	base := cfg.BaseURL
	if base == "" {
		base = flutterwaveBaseURL
	}
	return &FlutterwaveProvider{cfg: cfg, baseURL: base, httpClient: newHTTPClient()}
}

func (p *FlutterwaveProvider) Code() string { return CodeFlutterwave }

type flutterwaveEnvelope struct {
	Status  string          `json:"status"` // "success" | "error"
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (p *FlutterwaveProvider) Initiate(ctx context.Context, req InitiateRequest) InitiateResult {
	payload := map[string]interface{}{
		"tx_ref":       req.IdempotencyKey,
		"amount":       req.Amount,
		"currency":     req.Currency,
		"redirect_url": req.SuccessURL,
		"customer": map[string]string{
			"phonenumber": req.CustomerPhone,
			"email":       fmt.Sprintf("order-%s@pos.local", req.OrderReference),
		},
		"meta": map[string]string{
			"order_reference": req.OrderReference,
		},
	}

	code, raw, err := doJSON(ctx, p.httpClient, http.MethodPost,
		p.baseURL+"/payments",
		map[string]string{"Authorization": "Bearer " + p.cfg.APISecret},
		payload)
	if err != nil {
		return networkInitiateFailure(err)
	}

	var env flutterwaveEnvelope
	if jsonErr := json.Unmarshal(raw, &env); jsonErr != nil || code >= 400 || env.Status != "success" {
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

	var data struct {
		Link string `json:"link"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return InitiateResult{
			Status:       StatusFailed,
			ErrorCode:    "provider_error",
			ErrorMessage: "unexpected payments payload",
			Raw:          string(raw),
		}
	}

	return InitiateResult{
		// le tx_ref marchand sert de reference: l'id numerique flw arrive
		// seulement avec le webhook ou la verification
		ProviderReference: req.IdempotencyKey,
		Status:            StatusPending,
		RedirectURL:       data.Link,
		Raw:               string(raw),
	}
}

type flutterwaveTxData struct {
	ID       int64  `json:"id"`
	TxRef    string `json:"tx_ref"`
	FlwRef   string `json:"flw_ref"`
	Status   string `json:"status"` // successful | failed | pending
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func (p *FlutterwaveProvider) CheckStatus(ctx context.Context, providerRef string) StatusResult {
	code, raw, err := doJSON(ctx, p.httpClient, http.MethodGet,
		p.baseURL+"/transactions/verify_by_reference?tx_ref="+url.QueryEscape(providerRef),
		map[string]string{"Authorization": "Bearer " + p.cfg.APISecret}, nil)
	if err != nil {
		return networkStatusFailure(providerRef, err)
	}

	var env flutterwaveEnvelope
	if jsonErr := json.Unmarshal(raw, &env); jsonErr != nil || code >= 400 || env.Status != "success" {
		return StatusResult{
			ProviderReference: providerRef,
			Status:            StatusFailed,
			ErrorCode:         "provider_error",
			ErrorMessage:      env.Message,
			Raw:               string(raw),
		}
	}

	var data flutterwaveTxData
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
	case "successful":
		status = StatusSuccess
	case "failed", "cancelled":
		status = StatusFailed
	default:
		status = StatusPending
	}

	return StatusResult{ProviderReference: providerRef, Status: status, Raw: string(raw)}
}

func (p *FlutterwaveProvider) ProcessRefund(ctx context.Context, providerRef string, amount int64) RefundResult {
	// Le refund exige l'id numerique de la transaction: on le recupere via
	// la verification par tx_ref.
	verify := p.CheckStatus(ctx, providerRef)
	if verify.ErrorCode != "" {
		return RefundResult{Success: false, ErrorMessage: verify.ErrorMessage}
	}

	var env flutterwaveEnvelope
	var data flutterwaveTxData
	if err := json.Unmarshal([]byte(verify.Raw), &env); err != nil {
		return RefundResult{Success: false, ErrorMessage: "unexpected verify payload"}
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return RefundResult{Success: false, ErrorMessage: "unexpected verify payload"}
	}

	payload := map[string]interface{}{}
	if amount > 0 {
		payload["amount"] = amount
	}

	code, raw, err := doJSON(ctx, p.httpClient, http.MethodPost,
		fmt.Sprintf("%s/transactions/%d/refund", p.baseURL, data.ID),
		map[string]string{"Authorization": "Bearer " + p.cfg.APISecret},
		payload)
	if err != nil {
		return RefundResult{Success: false, ErrorMessage: err.Error()}
	}

	var refundEnv flutterwaveEnvelope
	if jsonErr := json.Unmarshal(raw, &refundEnv); jsonErr != nil || code >= 400 || refundEnv.Status != "success" {
		msg := refundEnv.Message
		if msg == "" {
			msg = string(raw)
		}
		return RefundResult{Success: false, ErrorMessage: msg}
	}

	return RefundResult{Success: true, ProviderReference: providerRef}
}

func (p *FlutterwaveProvider) VerifyWebhook(headers http.Header, rawBody []byte) bool {
	hash := headers.Get("verif-hash")
	if hash == "" || p.cfg.WebhookSecret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(hash), []byte(p.cfg.WebhookSecret)) == 1
}

type flutterwaveWebhookPayload struct {
	Event string            `json:"event"`
	Data  flutterwaveTxData `json:"data"`
}

func (p *FlutterwaveProvider) ParseWebhook(rawBody []byte) (WebhookEvent, error) {
	var payload flutterwaveWebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return WebhookEvent{}, fmt.Errorf("malformed flutterwave webhook: %w", err)
	}

	status := WebhookStatusPending
	if payload.Event == "charge.completed" {
		switch payload.Data.Status {
		case "successful":
			status = WebhookStatusSuccess
		case "failed", "cancelled":
			status = WebhookStatusFailed
		}
	}

	return WebhookEvent{
		EventType:        payload.Event,
		PaymentReference: payload.Data.TxRef,
		OrderReference:   payload.Data.TxRef,
		Status:           status,
		Amount:           payload.Data.Amount,
		Currency:         payload.Data.Currency,
		Raw:              string(rawBody),
	}, nil
}
