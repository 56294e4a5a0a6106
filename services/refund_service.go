package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/yaokouame/pos-payments/events"
	"github.com/yaokouame/pos-payments/metrics"
	"github.com/yaokouame/pos-payments/models"
	"github.com/yaokouame/pos-payments/providers"
	"github.com/yaokouame/pos-payments/utils"
)

// RefundService porte les remboursements totaux et partiels. L'ecriture du
// cumul et la ligne d'audit partagent la transaction de la transition: le
// rapport de reconciliation ne voit jamais un remboursement a moitie ecrit.
type RefundService struct {
	payments *PaymentService
	db       *gorm.DB
	registry *providers.Registry
}

func NewRefundService(payments *PaymentService, db *gorm.DB, registry *providers.Registry) *RefundService {
	return &RefundService{payments: payments, db: db, registry: registry}
}

// RefundOutcome decrit l'issue d'une demande de remboursement. Un refus du
// provider n'est pas une erreur Go: Success=false et le paiement reste intact.
type RefundOutcome struct {
	Success           bool            `json:"success"`
	RefundType        string          `json:"refund_type"` // full | partial
	RefundedAmount    int64           `json:"refunded_amount"`
	RemainingAmount   int64           `json:"remaining_amount"`
	ProviderReference string          `json:"provider_reference,omitempty"`
	ErrorMessage      string          `json:"error_message,omitempty"`
	Payment           *models.Payment `json:"payment"`
}

// Refund rembourse un paiement, en totalite (amount=0) ou partiellement.
// Le provider est appele avant toute transition: un refus gateway laisse le
// paiement tel quel.
func (s *RefundService) Refund(ctx context.Context, businessID, paymentID uint, amount int64, reason string) (*RefundOutcome, error) {
	payment, err := s.payments.Get(businessID, paymentID)
	if err != nil {
		return nil, err
	}

	if payment.Status != models.PaymentStatusSuccess &&
		payment.Status != models.PaymentStatusPartiallyRefunded {
		return nil, NewValidationError("payment %d cannot be refunded from status %s", payment.ID, payment.Status)
	}

	remaining := payment.RemainingRefundable()
	if amount < 0 {
		return nil, NewValidationError("refund amount must not be negative, got %d", amount)
	}
	if amount == 0 {
		amount = remaining // remboursement du solde complet
	}
	if amount > remaining {
		return nil, NewValidationError("refund amount %d exceeds remaining refundable %d", amount, remaining)
	}

	refundType := "partial"
	if payment.RefundedAmount+amount == payment.Amount {
		refundType = "full"
	}

	var providerRef string
	if payment.ProviderCode != providers.CodeCash {
		method, err := s.payments.methodFor(businessID, payment.ProviderCode)
		if err != nil {
			return nil, err
		}
		adapter, err := s.registry.Build(method.ProviderCode, method.Config)
		if err != nil {
			return nil, err
		}

		callCtx, cancel := context.WithTimeout(ctx, providerCallTimeout)
		defer cancel()

		refundAmount := amount
		if refundType == "full" && payment.RefundedAmount == 0 {
			refundAmount = 0 // convention adapteur: 0 = remboursement integral
		}
		result := adapter.ProcessRefund(callCtx, payment.ProviderReference, refundAmount)
		if !result.Success {
			metrics.Refunds.WithLabelValues(payment.ProviderCode, "rejected").Inc()
			utils.ErrorLogger.Printf("Refund of payment %d rejected by %s: %s",
				payment.ID, payment.ProviderCode, result.ErrorMessage)
			return &RefundOutcome{
				Success:         false,
				RefundType:      refundType,
				RemainingAmount: remaining,
				ErrorMessage:    result.ErrorMessage,
				Payment:         payment,
			}, nil
		}
		providerRef = result.ProviderReference
	}

	delta := amount
	updated, err := s.payments.applyLocked(payment.ID, func(tx *gorm.DB, p *models.Payment) error {
		if err := MarkPartiallyRefunded(p, delta); err != nil {
			return err
		}
		// ligne d'audit dans la meme transaction que la transition
		return tx.Create(&models.Refund{
			PaymentID:   p.ID,
			BusinessID:  p.BusinessID,
			Amount:      delta,
			Reason:      reason,
			ProviderRef: providerRef,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	metrics.Refunds.WithLabelValues(payment.ProviderCode, "succeeded").Inc()
	events.BroadcastPayment(*updated)
	utils.InfoLogger.Printf("Refunded %s of payment %d (%s), status %s",
		utils.FormatAmountXOF(delta), updated.ID, refundType, updated.Status)

	return &RefundOutcome{
		Success:           true,
		RefundType:        refundType,
		RefundedAmount:    delta,
		RemainingAmount:   updated.RemainingRefundable(),
		ProviderReference: providerRef,
		Payment:           updated,
	}, nil
}
