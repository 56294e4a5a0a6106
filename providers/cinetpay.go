package providers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

const cinetpayBaseURL = "https://api-checkout.cinetpay.com/v2"

// CinetPayProvider pilote le checkout CinetPay. La notification porte un
// header x-token compare au secret partage; le montant circule en entier.
type CinetPayProvider struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
}

func NewCinetPayProvider(cfg Config) *CinetPayProvider {
	base := cfg.BaseURL
	if base == "" {
		base = cinetpayBaseURL
	}
	return &CinetPayProvider{cfg: cfg, baseURL: base, httpClient: newHTTPClient()}
}

func (p *CinetPayProvider) Code() string { return CodeCinetPay }

type cinetpayEnvelope struct {
	Code        string          `json:"code"` // "201" = cree, "00" = succes check
	Message     string          `json:"message"`
	Description string          `json:"description"`
	Data        json.RawMessage `json:"data"`
}

func (p *CinetPayProvider) Initiate(ctx context.Context, req InitiateRequest) InitiateResult {
	payload := map[string]interface{}{
		"apikey":         p.cfg.APIKey,
		"site_id":        p.cfg.SiteID,
		"transaction_id": req.IdempotencyKey,
		"amount":         req.Amount,
		"currency":       req.Currency,
		"description":    "Commande " + req.OrderReference,
		"notify_url":     req.CallbackURL,
		"return_url":     req.SuccessURL,
		"channels":       "ALL",
		"customer_phone_number": req.CustomerPhone,
	}

	code, raw, err := doJSON(ctx, p.httpClient, http.MethodPost,
		p.baseURL+"/payment", nil, payload)
	if err != nil {
		return networkInitiateFailure(err)
	}

	var env cinetpayEnvelope
	if jsonErr := json.Unmarshal(raw, &env); jsonErr != nil || code >= 400 || env.Code != "201" {
		msg := env.Description
		if msg == "" {
			msg = env.Message
		}
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
		PaymentURL   string `json:"payment_url"`
		PaymentToken string `json:"payment_token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return InitiateResult{
			Status:       StatusFailed,
			ErrorCode:    "provider_error",
			ErrorMessage: "unexpected payment payload",
			Raw:          string(raw),
		}
	}

	return InitiateResult{
		// CinetPay reutilise le transaction_id marchand comme reference
		ProviderReference: req.IdempotencyKey,
		Status:            StatusPending,
		RedirectURL:       data.PaymentURL,
		Raw:               string(raw),
	}
}

func (p *CinetPayProvider) CheckStatus(ctx context.Context, providerRef string) StatusResult {
	payload := map[string]interface{}{
		"apikey":         p.cfg.APIKey,
		"site_id":        p.cfg.SiteID,
		"transaction_id": providerRef,
	}

	code, raw, err := doJSON(ctx, p.httpClient, http.MethodPost,
		p.baseURL+"/payment/check", nil, payload)
	if err != nil {
		return networkStatusFailure(providerRef, err)
	}

	var env cinetpayEnvelope
	if jsonErr := json.Unmarshal(raw, &env); jsonErr != nil || code >= 400 {
		return StatusResult{
			ProviderReference: providerRef,
			Status:            StatusFailed,
			ErrorCode:         "provider_error",
			ErrorMessage:      string(raw),
			Raw:               string(raw),
		}
	}

	var data struct {
		Status string `json:"status"` // ACCEPTED | REFUSED | PENDING | EXPIRED
	}
	_ = json.Unmarshal(env.Data, &data)

	var status string
	switch data.Status {
	case "ACCEPTED":
		status = StatusSuccess
	case "REFUSED", "EXPIRED", "CANCELLED":
		status = StatusFailed
	default:
		status = StatusPending
	}

	return StatusResult{ProviderReference: providerRef, Status: status, Raw: string(raw)}
}

func (p *CinetPayProvider) ProcessRefund(ctx context.Context, providerRef string, amount int64) RefundResult {
	// Les remboursements CinetPay passent par le back-office marchand.
	return unsupportedRefund(CodeCinetPay)
}

func (p *CinetPayProvider) VerifyWebhook(headers http.Header, rawBody []byte) bool {
	token := headers.Get("x-token")
	if token == "" || p.cfg.WebhookSecret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(p.cfg.WebhookSecret)) == 1
}

type cinetpayWebhookPayload struct {
	TransactionID string `json:"cpm_trans_id"`
	SiteID        string `json:"cpm_site_id"`
	Amount        string `json:"cpm_amount"`
	Currency      string `json:"cpm_currency"`
	ErrorMessage  string `json:"cpm_error_message"` // "SUCCES" | "PAIEMENT ECHOUE" | ...
	Status        string `json:"cpm_result"`        // "00" = succes
}

func (p *CinetPayProvider) ParseWebhook(rawBody []byte) (WebhookEvent, error) {
	var payload cinetpayWebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return WebhookEvent{}, fmt.Errorf("malformed cinetpay webhook: %w", err)
	}

	status := WebhookStatusFailed
	if payload.Status == "00" {
		status = WebhookStatusSuccess
	}
	if containsFold(payload.ErrorMessage, "attente") {
		status = WebhookStatusPending
	}
	if containsFold(payload.ErrorMessage, "expire") {
		status = WebhookStatusExpired
	}

	amount, _ := strconv.ParseInt(payload.Amount, 10, 64)

	return WebhookEvent{
		EventType:        "payment.notification",
		PaymentReference: payload.TransactionID,
		OrderReference:   payload.TransactionID,
		Status:           status,
		Amount:           amount,
		Currency:         payload.Currency,
		Raw:              string(rawBody),
	}, nil
}
