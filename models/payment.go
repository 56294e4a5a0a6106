package models

import (
	"time"
)

// Statuts possibles d'un paiement. Toute transition passe par la FSM
// (services.NextState), jamais par une affectation directe du champ Status.
const (
	PaymentStatusPending           = "PENDING"
	PaymentStatusProcessing        = "PROCESSING"
	PaymentStatusSuccess           = "SUCCESS"
	PaymentStatusFailed            = "FAILED"
	PaymentStatusExpired           = "EXPIRED"
	PaymentStatusRefunded          = "REFUNDED"
	PaymentStatusPartiallyRefunded = "PARTIALLY_REFUNDED"
)

// Payment represents one attempt to collect money for one order via one provider.
// Rows are never deleted (audit trail).
type Payment struct {
	ID                uint       `json:"id" gorm:"primaryKey"`
	IdempotencyKey    string     `json:"idempotency_key" gorm:"uniqueIndex;size:64"`
	OrderID           uint       `json:"order_id" gorm:"index"`
	BusinessID        uint       `json:"business_id" gorm:"index"`
	Amount            int64      `json:"amount"` // XOF, pas de decimales
	Currency          string     `json:"currency" gorm:"size:3;default:'XOF'"`
	ProviderCode      string     `json:"provider_code" gorm:"index;size:32"`
	ProviderReference string     `json:"provider_reference" gorm:"index;size:128"` // id transaction externe, vide tant que le provider n'a pas repondu
	ProviderResponse  string     `json:"provider_response"`                        // blob JSON brut pour audit/debug
	Status            string     `json:"status" gorm:"size:24;default:'PENDING';index"`
	ErrorCode         string     `json:"error_code" gorm:"size:64"`
	ErrorMessage      string     `json:"error_message"`
	RefundedAmount    int64      `json:"refunded_amount"`
	CompletedAt       *time.Time `json:"completed_at"` // pose une seule fois, premiere transition terminale
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// IsTerminal reports whether the payment reached a terminal outcome
// (refund statuses included: no automatic transition leaves them either).
func (p *Payment) IsTerminal() bool {
	switch p.Status {
	case PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusExpired,
		PaymentStatusRefunded, PaymentStatusPartiallyRefunded:
		return true
	}
	return false
}

// RemainingRefundable retourne le montant encore remboursable.
func (p *Payment) RemainingRefundable() int64 {
	return p.Amount - p.RefundedAmount
}
