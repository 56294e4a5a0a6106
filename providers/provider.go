// Package providers contient l'abstraction gateway et les sept adapteurs
// (cash, Wave, Orange Money, MTN MoMo, Paystack, Flutterwave, CinetPay,
// DigitalPaye x3 operateurs). Les bizarreries de chaque API (montants en
// string, sous-unites, vocabulaire d'evenements) restent locales a l'adapteur
// et ne remontent jamais dans le modele.
package providers

import (
	"context"
	"fmt"
	"net/http"
)

// Statuts normalises d'initiation/consultation.
const (
	StatusPending = "PENDING"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// Statuts normalises des webhooks.
const (
	WebhookStatusSuccess = "success"
	WebhookStatusFailed  = "failed"
	WebhookStatusPending = "pending"
	WebhookStatusExpired = "expired"
)

// Codes provider enregistres dans le registre.
const (
	CodeCash             = "cash"
	CodeWave             = "wave"
	CodeOrangeMoney      = "orange_money"
	CodeMTNMoMo          = "mtn_momo"
	CodePaystack         = "paystack"
	CodeFlutterwave      = "flutterwave"
	CodeCinetPay         = "cinetpay"
	CodeDigitalPayeOM    = "digitalpaye_orange"
	CodeDigitalPayeMTN   = "digitalpaye_mtn"
	CodeDigitalPayeMoov  = "digitalpaye_moov"
)

// ErrCodeNetwork est le code d'erreur normalise des pannes transport
// (timeout, connexion refusee). L'appelant recoit toujours un resultat
// structure, jamais l'erreur transport brute.
const ErrCodeNetwork = "network_error"

// InitiateRequest carries everything an adapter may need to open a payment.
type InitiateRequest struct {
	Amount         int64
	Currency       string
	OrderReference string
	CustomerPhone  string
	IdempotencyKey string
	CallbackURL    string
	SuccessURL     string
	ErrorURL       string
}

// InitiateResult is the uniform shape returned by Initiate.
type InitiateResult struct {
	ProviderReference string
	Status            string // PENDING | SUCCESS | FAILED
	RedirectURL       string
	ErrorCode         string
	ErrorMessage      string
	Raw               string // reponse brute pour audit
}

// StatusResult is the uniform shape returned by CheckStatus.
type StatusResult struct {
	ProviderReference string
	Status            string
	ErrorCode         string
	ErrorMessage      string
	Raw               string
}

// RefundResult is the uniform shape returned by ProcessRefund.
type RefundResult struct {
	Success           bool
	ProviderReference string
	ErrorMessage      string
}

// WebhookEvent is the normalized form of a provider notification.
type WebhookEvent struct {
	EventType        string
	PaymentReference string // reference transaction cote provider
	OrderReference   string // reference commande/cle embarquee, fallback de lookup
	Status           string // success | failed | pending | expired
	Amount           int64
	Currency         string
	Raw              string
}

// Provider est le jeu de capacites implemente par chaque adapteur.
type Provider interface {
	Code() string
	Initiate(ctx context.Context, req InitiateRequest) InitiateResult
	CheckStatus(ctx context.Context, providerRef string) StatusResult
	// ProcessRefund with amount==0 means full refund. Adapters whose gateway
	// has no refund API always return Success=false with a message pointing
	// to manual processing; this is a documented limitation, not a bug.
	ProcessRefund(ctx context.Context, providerRef string, amount int64) RefundResult
	VerifyWebhook(headers http.Header, rawBody []byte) bool
	ParseWebhook(rawBody []byte) (WebhookEvent, error)
}

// Config est le contenu decode de PaymentMethod.Config. Chaque adapteur n'en
// lit que les champs qui le concernent.
type Config struct {
	APIKey        string `json:"api_key"`
	APISecret     string `json:"api_secret"`
	WebhookSecret string `json:"webhook_secret"`
	MerchantID    string `json:"merchant_id"`
	SiteID        string `json:"site_id"`
	Operator      string `json:"operator"` // digitalpaye: ORANGE | MTN | MOOV
	BaseURL       string `json:"base_url"` // surcharge pour sandbox/tests
	Sandbox       bool   `json:"sandbox"`
}

// classifyProviderMessage applique les heuristiques ad hoc de classement des
// messages gateway. Best effort: la taxonomie n'est pas garantie complete.
func classifyProviderMessage(msg string) string {
	switch {
	case containsFold(msg, "duplicate"), containsFold(msg, "already exists"),
		containsFold(msg, "transaction existe"):
		return "duplicate_transaction"
	case containsFold(msg, "insufficient"), containsFold(msg, "solde insuffisant"),
		containsFold(msg, "balance"):
		return "insufficient_funds"
	default:
		return "provider_error"
	}
}

func unsupportedRefund(code string) RefundResult {
	return RefundResult{
		Success:      false,
		ErrorMessage: fmt.Sprintf("%s does not support programmatic refunds, process manually via the provider dashboard", code),
	}
}
