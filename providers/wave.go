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
	waveProductionURL = "https://api.wave.com"
	// Fenetre de fraicheur de la signature: au-dela, l'evenement est
	// considere comme un replay et rejete.
	waveSignatureMaxAge = 300 * time.Second
)

// WaveProvider pilote l'API checkout de Wave. L'initiation rend une URL de
// redirection (launch_url); la confirmation arrive par webhook signe
// HMAC-SHA256 sur "timestamp.body".
type WaveProvider struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

func NewWaveProvider(cfg Config) *WaveProvider {
	base := cfg.BaseURL
	if base == "" {
		base = waveProductionURL
	}
	return &WaveProvider{
		cfg:        cfg,
		baseURL:    base,
		httpClient: newHTTPClient(),
		now:        time.Now,
	}
}

func (p *WaveProvider) Code() string { return CodeWave }

type waveCheckoutResponse struct {
	ID            string `json:"id"`
	LaunchURL     string `json:"wave_launch_url"`
	PaymentStatus string `json:"payment_status"`
	ErrorCode     string `json:"error_code"`
	ErrorMessage  string `json:"error_message"`
}

func (p *WaveProvider) Initiate(ctx context.Context, req InitiateRequest) InitiateResult {
	payload := map[string]interface{}{
		// Wave attend le montant en string
		"amount":           strconv.FormatInt(req.Amount, 10),
		"currency":         req.Currency,
		"client_reference": req.IdempotencyKey,
		"success_url":      req.SuccessURL,
		"error_url":        req.ErrorURL,
	}

	code, raw, err := doJSON(ctx, p.httpClient, http.MethodPost,
		p.baseURL+"/v1/checkout/sessions",
		map[string]string{"Authorization": "Bearer " + p.cfg.APIKey},
		payload)
	if err != nil {
		return networkInitiateFailure(err)
	}

	var resp waveCheckoutResponse
	if jsonErr := json.Unmarshal(raw, &resp); jsonErr != nil || code >= 400 {
		msg := resp.ErrorMessage
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
		ProviderReference: resp.ID,
		Status:            waveStatus(resp.PaymentStatus),
		RedirectURL:       resp.LaunchURL,
		Raw:               string(raw),
	}
}

func (p *WaveProvider) CheckStatus(ctx context.Context, providerRef string) StatusResult {
	code, raw, err := doJSON(ctx, p.httpClient, http.MethodGet,
		p.baseURL+"/v1/checkout/sessions/"+providerRef,
		map[string]string{"Authorization": "Bearer " + p.cfg.APIKey}, nil)
	if err != nil {
		return networkStatusFailure(providerRef, err)
	}

	var resp waveCheckoutResponse
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
		Status:            waveStatus(resp.PaymentStatus),
		Raw:               string(raw),
	}
}

func (p *WaveProvider) ProcessRefund(ctx context.Context, providerRef string, amount int64) RefundResult {
	payload := map[string]interface{}{}
	if amount > 0 {
		payload["amount"] = strconv.FormatInt(amount, 10)
	}

	code, raw, err := doJSON(ctx, p.httpClient, http.MethodPost,
		p.baseURL+"/v1/checkout/sessions/"+providerRef+"/refund",
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

// VerifyWebhook valide l'en-tete Wave-Signature: "t=<unix>,v1=<hex>".
// La signature est HMAC-SHA256(secret, timestamp + "." + body) et doit etre
// plus recente que waveSignatureMaxAge.
func (p *WaveProvider) VerifyWebhook(headers http.Header, rawBody []byte) bool {
	sig := headers.Get("Wave-Signature")
	if sig == "" || p.cfg.WebhookSecret == "" {
		return false
	}

	var ts string
	var v1 []string
	for _, part := range strings.Split(sig, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts = kv[1]
		case "v1":
			v1 = append(v1, kv[1])
		}
	}
	if ts == "" || len(v1) == 0 {
		return false
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	if p.now().Sub(time.Unix(unix, 0)) > waveSignatureMaxAge {
		return false // replay
	}

	mac := hmac.New(sha256.New, []byte(p.cfg.WebhookSecret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, candidate := range v1 {
		if hmac.Equal([]byte(expected), []byte(candidate)) {
			return true
		}
	}
	return false
}

type waveWebhookPayload struct {
	Type string `json:"type"`
	Data struct {
		ID              string `json:"id"`
		PaymentStatus   string `json:"payment_status"`
		ClientReference string `json:"client_reference"`
		Amount          string `json:"amount"`
		Currency        string `json:"currency"`
	} `json:"data"`
}

func (p *WaveProvider) ParseWebhook(rawBody []byte) (WebhookEvent, error) {
	var payload waveWebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return WebhookEvent{}, fmt.Errorf("malformed wave webhook: %w", err)
	}

	amount, _ := strconv.ParseInt(payload.Data.Amount, 10, 64)

	status := WebhookStatusPending
	switch payload.Type {
	case "checkout.session.completed":
		status = webhookStatusFromWave(payload.Data.PaymentStatus)
	case "checkout.session.payment_failed":
		status = WebhookStatusFailed
	}

	return WebhookEvent{
		EventType:        payload.Type,
		PaymentReference: payload.Data.ID,
		OrderReference:   payload.Data.ClientReference,
		Status:           status,
		Amount:           amount,
		Currency:         payload.Data.Currency,
		Raw:              string(rawBody),
	}, nil
}

func waveStatus(s string) string {
	switch s {
	case "succeeded":
		return StatusSuccess
	case "cancelled", "failed":
		return StatusFailed
	default: // "processing", "open", ""
		return StatusPending
	}
}

func webhookStatusFromWave(s string) string {
	switch s {
	case "succeeded":
		return WebhookStatusSuccess
	case "cancelled", "failed":
		return WebhookStatusFailed
	case "expired":
		return WebhookStatusExpired
	default:
		return WebhookStatusPending
	}
}
