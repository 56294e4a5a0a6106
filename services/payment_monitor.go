package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/yaokouame/pos-payments/events"
	"github.com/yaokouame/pos-payments/metrics"
	"github.com/yaokouame/pos-payments/models"
	"github.com/yaokouame/pos-payments/utils"
)

const (
	sweepInterval     = 5 * time.Minute
	defaultPaymentTTL = 30 * time.Minute
)

// ExpirySweeper fait vieillir les paiements restes en attente: un client qui
// abandonne son paiement mobile money ne laisse aucun webhook derriere lui.
// Chaque passe re-interroge d'abord le provider, puis expire ce qui depasse
// le TTL.
type ExpirySweeper struct {
	payments *PaymentService
	db       *gorm.DB
	ttl      time.Duration
	quit     chan struct{}
}

func NewExpirySweeper(payments *PaymentService, db *gorm.DB, ttl time.Duration) *ExpirySweeper {
	if ttl <= 0 {
		ttl = defaultPaymentTTL
	}
	return &ExpirySweeper{
		payments: payments,
		db:       db,
		ttl:      ttl,
		quit:     make(chan struct{}),
	}
}

// Start lance le balayage periodique en arriere-plan.
func (s *ExpirySweeper) Start() {
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()

		utils.InfoLogger.Printf("Payment expiry sweeper started (ttl %s)", s.ttl)
		for {
			select {
			case <-s.quit:
				return
			case <-ticker.C:
				s.Sweep(context.Background())
			}
		}
	}()
}

func (s *ExpirySweeper) Stop() {
	close(s.quit)
}

// Sweep traite une passe complete. Exporte pour les tests.
func (s *ExpirySweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.ttl)

	var stale []models.Payment
	err := s.db.Where("status IN ? AND created_at < ?",
		[]string{models.PaymentStatusPending, models.PaymentStatusProcessing}, cutoff).
		Limit(200).
		Find(&stale).Error
	if err != nil {
		utils.ErrorLogger.Printf("Expiry sweep query failed: %v", err)
		return
	}

	for _, payment := range stale {
		if payment.Status == models.PaymentStatusProcessing {
			// derniere chance: le webhook a pu se perdre, on re-interroge
			refreshed, err := s.payments.CheckStatus(ctx, payment.BusinessID, payment.ID)
			if err == nil && refreshed.IsTerminal() {
				utils.InfoLogger.Printf("Sweep resolved payment %d via polling: %s", refreshed.ID, refreshed.Status)
				continue
			}
		}

		updated, err := s.payments.applyLocked(payment.ID, func(tx *gorm.DB, p *models.Payment) error {
			if p.IsTerminal() {
				return nil
			}
			if p.Status == models.PaymentStatusPending {
				if err := StartProcessing(p); err != nil {
					return err
				}
			}
			return MarkExpired(p)
		})
		if err != nil {
			utils.ErrorLogger.Printf("Expiring payment %d failed: %v", payment.ID, err)
			continue
		}
		if updated.Status == models.PaymentStatusExpired {
			metrics.ExpiredPayments.Inc()
			events.BroadcastPayment(*updated)
			utils.InfoLogger.Printf("Payment %d expired after %s without confirmation", updated.ID, s.ttl)
		}
	}
}
