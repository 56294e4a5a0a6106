package providers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	digitalpayeBaseURL         = "https://api.digitalpaye.com"
	digitalpayeSignatureMaxAge = 300 * time.Second
)

// DigitalPayeProvider est un agregateur mobile money unique derriere trois
// codes provider (digitalpaye_orange, digitalpaye_mtn, digitalpaye_moov): un
// seul adapteur, parametre par l'operateur. Webhook signe HMAC-SHA256 sur
// "timestamp.body" dans X-Digitalpaye-Signature ("t=...,s=...").
type DigitalPayeProvider struct {
	code       string
	operator   string
	cfg        Config
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

func NewDigitalPayeProvider(code string, cfg Config) *DigitalPayeProvider {
	base := cfg.BaseURL
	if base == "" {
		base = digitalpayeBaseURL
	}

	operator := cfg.Operator
	if operator == "" {
		// le code d'enregistrement porte l'operateur: digitalpaye_<operateur>
		operator = strings.ToUpper(strings.TrimPrefix(code, "digitalpaye_"))
	}

	return &DigitalPayeProvider{
		code:       code,
		operator:   operator,
		cfg:        cfg,
		baseURL:    base,
		httpClient: newHTTPClient(),
		now:        time.Now,
	}
}

func (p *DigitalPayeProvider) Code() string { return p.code }

type digitalpayeTxResponse struct {
	TransactionID string `json:"transaction_id"`
	PaymentURL    string `json:"payment_url"`
	Status        string `json:"status"` // INITIATED | PENDING | SUCCESS | FAILED | EXPIRED
	Message       string `json:"message"`
}

func (p *DigitalPayeProvider) Initiate(ctx context.Context, req InitiateRequest) InitiateResult {
	payload := map[string]interface{}{
		"amount":       req.Amount,
		"currency":     req.Currency,
		"operator":     p.operator,
		"phone":        req.CustomerPhone,
		"reference":    req.IdempotencyKey,
		"callback_url": req.CallbackURL,
	}

	code, raw, err := doJSON(ctx, p.httpClient, http.MethodPost,
		p.baseURL+"/v1/payments",
		map[string]string{"Authorization": "Bearer " + p.cfg.APIKey},
		payload)
	if err != nil {
		return networkInitiateFailure(err)
	}

	var resp digitalpayeTxResponse
	if jsonErr := json.Unmarshal(raw, &resp); jsonErr != nil || code >= 400 || resp.TransactionID == "" {
		msg := resp.Message
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

	return InitiateResult{
		ProviderReference: resp.TransactionID,
		Status:            digitalpayeStatus(resp.Status),
		RedirectURL:       resp.PaymentURL,
		Raw:               string(raw),
	}
}

func (p *DigitalPayeProvider) CheckStatus(ctx context.Context, providerRef string) StatusResult {
	code, raw, err := doJSON(ctx, p.httpClient, http.MethodGet,
		p.baseURL+"/v1/payments/"+providerRef,
		map[string]string{"Authorization": "Bearer " + p.cfg.APIKey}, nil)
	if err != nil {
		return networkStatusFailure(providerRef, err)
	}

	var resp digitalpayeTxResponse
	if jsonErr := json.Unmarshal(raw, &resp); jsonErr != nil || code >= 400 {
		return StatusResult{
			ProviderReference: providerRef,
			Status:            StatusFailed,
			ErrorCode:         "provider_error",
			ErrorMessage:      string(raw),
			Raw:               string(raw),
		}
	}

	return StatusResult{
		ProviderReference: providerRef,
		Status:            digitalpayeStatus(resp.Status),
		Raw:               string(raw),
	}
}

func (p *DigitalPayeProvider) ProcessRefund(ctx context.Context, providerRef string, amount int64) RefundResult {
	payload := map[string]interface{}{}
	if amount > 0 {
		payload["amount"] = amount
	}

	code, raw, err := doJSON(ctx, p.httpClient, http.MethodPost,
		p.baseURL+"/v1/payments/"+providerRef+"/refund",
		map[string]string{"Authorization": "Bearer " + p.cfg.APIKey},
		payload)
	if err != nil {
		return RefundResult{Success: false, ErrorMessage: err.Error()}
	}
	if code >= 400 {
		return RefundResult{Success: false, ErrorMessage: string(raw)}
	}
	return RefundResult{Success: true, ProviderReference: providerRef}
}

func (p *DigitalPayeProvider) VerifyWebhook(headers http.Header, rawBody []byte) bool {
	sig := headers.Get("X-Digitalpaye-Signature")
	if sig == "" || p.cfg.WebhookSecret == "" {
		return false
	}

	var ts, s string
	for _, part := range strings.Split(sig, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts = kv[1]
		case "s":
			s = kv[1]
		}
	}
	if ts == "" || s == "" {
		return false
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	if p.now().Sub(time.Unix(unix, 0)) > digitalpayeSignatureMaxAge {
		return false
	}

	mac := hmac.New(sha256.New, []byte(p.cfg.WebhookSecret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(s))
}

type digitalpayeWebhookPayload struct {
	Event         string `json:"event"`
	TransactionID string `json:"transaction_id"`
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
}

func (p *DigitalPayeProvider) ParseWebhook(rawBody []byte) (WebhookEvent, error) {
	var payload digitalpayeWebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return WebhookEvent{}, fmt.Errorf("malformed digitalpaye webhook: %w", err)
	}

	var status string
	switch payload.Status {
	case "SUCCESS":
		status = WebhookStatusSuccess
	case "FAILED":
		status = WebhookStatusFailed
	case "EXPIRED":
		status = WebhookStatusExpired
	default:
		status = WebhookStatusPending
	}

	return WebhookEvent{
		EventType:        payload.Event,
		PaymentReference: payload.TransactionID,
		OrderReference:   payload.Reference,
		Status:           status,
		Amount:           payload.Amount,
		Currency:         payload.Currency,
		Raw:              string(rawBody),
	}, nil
}

func digitalpayeStatus(s string) string {
	switch s {
	case "SUCCESS":
		return StatusSuccess
	case "FAILED", "EXPIRED", "CANCELLED":
		return StatusFailed
	default:
		return StatusPending
	}
}
