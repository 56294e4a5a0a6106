package models

import "time"

// Refund est la trace d'audit d'un remboursement applique. La reconciliation
// journaliere agrege ces lignes par date de creation, independamment du statut
// courant du paiement.
type Refund struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	PaymentID   uint      `json:"payment_id" gorm:"index"`
	BusinessID  uint      `json:"business_id" gorm:"index"`
	Amount      int64     `json:"amount"`
	Reason      string    `json:"reason"`
	ProviderRef string    `json:"provider_ref" gorm:"size:128"`
	CreatedAt   time.Time `json:"created_at" gorm:"index"`
}
