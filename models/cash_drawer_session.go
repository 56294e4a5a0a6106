package models

import "time"

// CashDrawerSession is one cash-handling period for one cashier.
// Invariant: at most one open session (ClosedAt == nil) per cashier.
// A session is mutated exactly once, on close, and never reopened.
type CashDrawerSession struct {
	ID              uint       `json:"id" gorm:"primaryKey"`
	CashierID       uint       `json:"cashier_id" gorm:"index"`
	BusinessID      uint       `json:"business_id" gorm:"index"`
	OpeningBalance  int64      `json:"opening_balance"`
	OpenedAt        time.Time  `json:"opened_at"`
	ClosedAt        *time.Time `json:"closed_at"`
	ClosingBalance  int64      `json:"closing_balance"`
	ExpectedBalance int64      `json:"expected_balance"`
	Variance        int64      `json:"variance"` // closing - expected
	VarianceNotes   string     `json:"variance_notes"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
