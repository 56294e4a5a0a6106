package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
)

// CashProvider encaisse au point de vente: pas d'aller-retour reseau, la
// confirmation est immediate. Le service de paiement enchaine
// start_processing puis mark_success de facon synchrone.
type CashProvider struct{}

func NewCashProvider() *CashProvider {
	return &CashProvider{}
}

func (p *CashProvider) Code() string { return CodeCash }

func (p *CashProvider) Initiate(ctx context.Context, req InitiateRequest) InitiateResult {
	return InitiateResult{
		ProviderReference: "CSH-" + uuid.New().String(),
		Status:            StatusSuccess,
	}
}

func (p *CashProvider) CheckStatus(ctx context.Context, providerRef string) StatusResult {
	// L'argent est dans le tiroir, il n'y a rien a consulter.
	return StatusResult{ProviderReference: providerRef, Status: StatusSuccess}
}

func (p *CashProvider) ProcessRefund(ctx context.Context, providerRef string, amount int64) RefundResult {
	// Remboursement en especes: pure ecriture comptable locale.
	return RefundResult{Success: true, ProviderReference: providerRef}
}

func (p *CashProvider) VerifyWebhook(headers http.Header, rawBody []byte) bool {
	return false // cash n'emet pas de webhooks
}

func (p *CashProvider) ParseWebhook(rawBody []byte) (WebhookEvent, error) {
	return WebhookEvent{}, errors.New("cash provider does not emit webhooks")
}
