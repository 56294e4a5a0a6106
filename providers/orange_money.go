package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const (
	orangeProductionURL = "https://api.orange.com/orange-money-webpay/cm/v1"
	orangeSandboxURL    = "https://api.orange.com/orange-money-webpay/dev/v1"
)

// OrangeMoneyProvider pilote le Web Payment d'Orange Money. L'initiation rend
// un pay_token + une URL de paiement; le statut se consulte via
// transactionstatus.
//
// Orange ne documente aucune authentification sur ses notifications: la
// verification webhook consulte donc transactionstatus avec le pay_token du
// corps et n'accepte que les statuts qu'Orange confirme lui-meme. Un faux
// webhook ne peut au pire que provoquer une consultation superflue.
type OrangeMoneyProvider struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
}

func NewOrangeMoneyProvider(cfg Config) *OrangeMoneyProvider {
	base := cfg.BaseURL
	if base == "" {
		if cfg.Sandbox {
			base = orangeSandboxURL
		} else {
			base = orangeProductionURL
		}
	}
	return &OrangeMoneyProvider{cfg: cfg, baseURL: base, httpClient: newHTTPClient()}
}

func (p *OrangeMoneyProvider) Code() string { return CodeOrangeMoney }

type orangeWebPaymentResponse struct {
	PayToken   string `json:"pay_token"`
	PaymentURL string `json:"payment_url"`
	Message    string `json:"message"`
	Status     int    `json:"status"`
}

func (p *OrangeMoneyProvider) Initiate(ctx context.Context, req InitiateRequest) InitiateResult {
	payload := map[string]interface{}{
		"merchant_key": p.cfg.MerchantID,
		// sandbox: Orange n'accepte que la devise "OUV"
		"currency":   p.wireCurrency(req.Currency),
		"order_id":   req.OrderReference,
		"amount":     req.Amount,
		"return_url": req.SuccessURL,
		"cancel_url": req.ErrorURL,
		"notif_url":  req.CallbackURL,
		"lang":       "fr",
	}

	code, raw, err := doJSON(ctx, p.httpClient, http.MethodPost,
		p.baseURL+"/webpayment",
		map[string]string{"Authorization": "Bearer " + p.cfg.APIKey},
		payload)
	if err != nil {
		return networkInitiateFailure(err)
	}

	var resp orangeWebPaymentResponse
	if jsonErr := json.Unmarshal(raw, &resp); jsonErr != nil || code >= 400 || resp.PayToken == "" {
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
		ProviderReference: resp.PayToken,
		Status:            StatusPending,
		RedirectURL:       resp.PaymentURL,
		Raw:               string(raw),
	}
}

type orangeStatusResponse struct {
	Status  string `json:"status"` // INITIATED | PENDING | SUCCESS | FAILED | EXPIRED
	TxnID   string `json:"txnid"`
	Message string `json:"message"`
}

func (p *OrangeMoneyProvider) CheckStatus(ctx context.Context, providerRef string) StatusResult {
	payload := map[string]interface{}{
		"pay_token": providerRef,
	}

	code, raw, err := doJSON(ctx, p.httpClient, http.MethodPost,
		p.baseURL+"/transactionstatus",
		map[string]string{"Authorization": "Bearer " + p.cfg.APIKey},
		payload)
	if err != nil {
		return networkStatusFailure(providerRef, err)
	}

	var resp orangeStatusResponse
	if jsonErr := json.Unmarshal(raw, &resp); jsonErr != nil || code >= 400 {
		return StatusResult{
			ProviderReference: providerRef,
			Status:            StatusFailed,
			ErrorCode:         "provider_error",
			ErrorMessage:      string(raw),
			Raw:               string(raw),
		}
	}

	var status string
	switch resp.Status {
	case "SUCCESS", "SUCCESSFULL": // l'API a historiquement les deux orthographes
		status = StatusSuccess
	case "FAILED", "EXPIRED":
		status = StatusFailed
	default:
		status = StatusPending
	}

	return StatusResult{ProviderReference: providerRef, Status: status, Raw: string(raw)}
}

func (p *OrangeMoneyProvider) ProcessRefund(ctx context.Context, providerRef string, amount int64) RefundResult {
	// Pas d'API de remboursement cote Orange Money Web Payment.
	return unsupportedRefund(CodeOrangeMoney)
}

// VerifyWebhook recoupe le statut annonce avec celui que retourne
// transactionstatus pour le meme pay_token. Voir la note sur le type.
func (p *OrangeMoneyProvider) VerifyWebhook(headers http.Header, rawBody []byte) bool {
	var payload orangeWebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return false
	}
	if payload.PayToken == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	code, raw, err := doJSON(ctx, p.httpClient, http.MethodPost,
		p.baseURL+"/transactionstatus",
		map[string]string{"Authorization": "Bearer " + p.cfg.APIKey},
		map[string]interface{}{"pay_token": payload.PayToken})
	if err != nil || code >= 400 {
		return false
	}

	var resp orangeStatusResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return false
	}
	return normalizeOrangeStatus(resp.Status) == normalizeOrangeStatus(payload.Status)
}

// normalizeOrangeStatus absorbe la double orthographe historique de l'API.
func normalizeOrangeStatus(s string) string {
	if s == "SUCCESSFULL" {
		return "SUCCESS"
	}
	return s
}

type orangeWebhookPayload struct {
	Status   string `json:"status"`
	PayToken string `json:"pay_token"`
	OrderID  string `json:"order_id"`
	TxnID    string `json:"txnid"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func (p *OrangeMoneyProvider) ParseWebhook(rawBody []byte) (WebhookEvent, error) {
	var payload orangeWebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return WebhookEvent{}, fmt.Errorf("malformed orange money webhook: %w", err)
	}

	var status string
	switch payload.Status {
	case "SUCCESS", "SUCCESSFULL":
		status = WebhookStatusSuccess
	case "FAILED":
		status = WebhookStatusFailed
	case "EXPIRED":
		status = WebhookStatusExpired
	default:
		status = WebhookStatusPending
	}

	return WebhookEvent{
		EventType:        "payment.notification",
		PaymentReference: payload.PayToken,
		OrderReference:   payload.OrderID,
		Status:           status,
		Amount:           payload.Amount,
		Currency:         payload.Currency,
		Raw:              string(rawBody),
	}, nil
}

func (p *OrangeMoneyProvider) wireCurrency(currency string) string {
	if p.cfg.Sandbox {
		return "OUV"
	}
	return currency
}
