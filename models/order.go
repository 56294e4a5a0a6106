package models

import "time"

// Order status values consumed/mutated by the payment core. Order creation and
// pricing live outside this module; we only flip the status on payment outcome.
const (
	OrderStatusPendingPayment = "pending_payment"
	OrderStatusPaid           = "paid"
	OrderStatusCancelled      = "cancelled"
)

// Order is the narrow shape of an order the payment core consumes: identity,
// tenant, total and currency.
type Order struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	BusinessID  uint      `json:"business_id" gorm:"index"`
	Reference   string    `json:"reference" gorm:"size:64"`
	TotalAmount int64     `json:"total_amount"`
	Currency    string    `json:"currency" gorm:"size:3;default:'XOF'"`
	Status      string    `json:"status" gorm:"size:32;default:'pending_payment'"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
