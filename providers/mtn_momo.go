package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

const (
	mtnProductionURL = "https://proxy.momoapi.mtn.com"
	mtnSandboxURL    = "https://sandbox.momodeveloper.mtn.com"
)

// MTNMoMoProvider pilote l'API Collections (requesttopay). Le client recoit
// une invite USSD sur son telephone, il n'y a pas d'URL de redirection.
// La reference transaction (X-Reference-Id) est generee cote marchand.
//
// MTN ne signe pas ses callbacks: VerifyWebhook consulte le statut authentifie
// de la reference contenue dans le corps et exige que le statut annonce y
// corresponde. Un webhook forge ne peut donc pas faire avancer un paiement que
// MTN ne confirme pas lui-meme.
type MTNMoMoProvider struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
}

func NewMTNMoMoProvider(cfg Config) *MTNMoMoProvider {
	base := cfg.BaseURL
	if base == "" {
		if cfg.Sandbox {
			base = mtnSandboxURL
		} else {
			base = mtnProductionURL
		}
	}
	return &MTNMoMoProvider{cfg: cfg, baseURL: base, httpClient: newHTTPClient()}
}

func (p *MTNMoMoProvider) Code() string { return CodeMTNMoMo }

func (p *MTNMoMoProvider) headers() map[string]string {
	return map[string]string{
		"Authorization":             "Bearer " + p.cfg.APIKey,
		"Ocp-Apim-Subscription-Key": p.cfg.APISecret,
		"X-Target-Environment":      p.targetEnvironment(),
	}
}

func (p *MTNMoMoProvider) targetEnvironment() string {
	if p.cfg.Sandbox {
		return "sandbox"
	}
	return "mtncotedivoire"
}

func (p *MTNMoMoProvider) Initiate(ctx context.Context, req InitiateRequest) InitiateResult {
	referenceID := uuid.New().String()

	payload := map[string]interface{}{
		"amount":     strconv.FormatInt(req.Amount, 10), // montant en string
		"currency":   p.wireCurrency(req.Currency),
		"externalId": req.OrderReference,
		"payer": map[string]string{
			"partyIdType": "MSISDN",
			"partyId":     req.CustomerPhone,
		},
		"payerMessage": "Paiement commande " + req.OrderReference,
		"payeeNote":    req.IdempotencyKey,
	}

	headers := p.headers()
	headers["X-Reference-Id"] = referenceID

	code, raw, err := doJSON(ctx, p.httpClient, http.MethodPost,
		p.baseURL+"/collection/v1_0/requesttopay", headers, payload)
	if err != nil {
		return networkInitiateFailure(err)
	}

	// 202 Accepted = push envoye, la suite arrive par polling ou callback
	if code != http.StatusAccepted {
		msg := string(raw)
		return InitiateResult{
			Status:       StatusFailed,
			ErrorCode:    classifyProviderMessage(msg),
			ErrorMessage: msg,
			Raw:          msg,
		}
	}

	return InitiateResult{
		ProviderReference: referenceID,
		Status:            StatusPending,
		Raw:               string(raw),
	}
}

type mtnStatusResponse struct {
	Status  string `json:"status"` // PENDING | SUCCESSFUL | FAILED
	Reason  string `json:"reason"`
	Amount  string `json:"amount"`
	Payer   any    `json:"payer"`
	Message string `json:"message"`
}

func (p *MTNMoMoProvider) CheckStatus(ctx context.Context, providerRef string) StatusResult {
	code, raw, err := doJSON(ctx, p.httpClient, http.MethodGet,
		p.baseURL+"/collection/v1_0/requesttopay/"+providerRef, p.headers(), nil)
	if err != nil {
		return networkStatusFailure(providerRef, err)
	}

	var resp mtnStatusResponse
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
	case "SUCCESSFUL":
		status = StatusSuccess
	case "FAILED", "TIMEOUT", "REJECTED":
		status = StatusFailed
	default:
		status = StatusPending
	}

	return StatusResult{
		ProviderReference: providerRef,
		Status:            status,
		ErrorMessage:      resp.Reason,
		Raw:               string(raw),
	}
}

func (p *MTNMoMoProvider) ProcessRefund(ctx context.Context, providerRef string, amount int64) RefundResult {
	// L'API Disbursements est un produit contractuel separe, hors perimetre.
	return unsupportedRefund(CodeMTNMoMo)
}

// VerifyWebhook: la verification EST la consultation de statut authentifiee.
// Le statut annonce par le corps doit etre celui que MTN retourne lui-meme
// pour la reference, sinon le webhook est rejete.
func (p *MTNMoMoProvider) VerifyWebhook(headers http.Header, rawBody []byte) bool {
	var payload mtnWebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return false
	}
	ref := payload.ReferenceID
	if ref == "" {
		ref = payload.ExternalID
	}
	if ref == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	code, raw, err := doJSON(ctx, p.httpClient, http.MethodGet,
		p.baseURL+"/collection/v1_0/requesttopay/"+ref, p.headers(), nil)
	if err != nil || code >= 400 {
		return false
	}

	var resp mtnStatusResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return false
	}
	return resp.Status == payload.Status
}

type mtnWebhookPayload struct {
	ReferenceID string `json:"referenceId"`
	ExternalID  string `json:"externalId"`
	Status      string `json:"status"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Reason      string `json:"reason"`
}

func (p *MTNMoMoProvider) ParseWebhook(rawBody []byte) (WebhookEvent, error) {
	var payload mtnWebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return WebhookEvent{}, fmt.Errorf("malformed mtn momo webhook: %w", err)
	}

	var status string
	switch payload.Status {
	case "SUCCESSFUL":
		status = WebhookStatusSuccess
	case "FAILED", "REJECTED":
		status = WebhookStatusFailed
	case "TIMEOUT":
		status = WebhookStatusExpired
	default:
		status = WebhookStatusPending
	}

	amount, _ := strconv.ParseInt(payload.Amount, 10, 64)

	return WebhookEvent{
		EventType:        "requesttopay.status",
		PaymentReference: payload.ReferenceID,
		OrderReference:   payload.ExternalID,
		Status:           status,
		Amount:           amount,
		Currency:         payload.Currency,
		Raw:              string(rawBody),
	}, nil
}

func (p *MTNMoMoProvider) wireCurrency(currency string) string {
	if p.cfg.Sandbox {
		return "EUR" // la sandbox MTN refuse le XOF
	}
	return currency
}
