package models

import "time"

// PaymentMethod is the per-tenant provider configuration. Owned by the
// admin/config side of the system, read-only at payment time.
type PaymentMethod struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	BusinessID   uint      `json:"business_id" gorm:"uniqueIndex:idx_business_provider"`
	ProviderCode string    `json:"provider_code" gorm:"uniqueIndex:idx_business_provider;size:32"`
	DisplayName  string    `json:"display_name"`
	Active       bool      `json:"active" gorm:"default:true"`
	Config       string    `json:"-"` // JSON opaque: cles API, secrets webhook, operateur, urls
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
