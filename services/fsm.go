package services

import (
	"time"

	"github.com/yaokouame/pos-payments/models"
)

// Evenements de la machine a etats des paiements.
const (
	EventStartProcessing   = "start_processing"
	EventMarkSuccess       = "mark_success"
	EventMarkFailed        = "mark_failed"
	EventMarkExpired       = "mark_expired"
	EventMarkRefunded      = "mark_refunded"
	EventMarkPartialRefund = "mark_partially_refunded"
)

// transitions est le graphe legal complet. Tout couple (etat, evenement)
// absent de cette table est illegal et rejete, jamais ignore en silence.
var transitions = map[string]map[string]string{
	models.PaymentStatusPending: {
		EventStartProcessing: models.PaymentStatusProcessing,
	},
	models.PaymentStatusProcessing: {
		EventMarkSuccess: models.PaymentStatusSuccess,
		EventMarkFailed:  models.PaymentStatusFailed,
		EventMarkExpired: models.PaymentStatusExpired,
	},
	models.PaymentStatusSuccess: {
		EventMarkRefunded:      models.PaymentStatusRefunded,
		EventMarkPartialRefund: models.PaymentStatusPartiallyRefunded,
	},
	models.PaymentStatusPartiallyRefunded: {
		EventMarkRefunded:      models.PaymentStatusRefunded,
		EventMarkPartialRefund: models.PaymentStatusPartiallyRefunded,
	},
}

// NextState est une fonction pure: elle calcule l'etat suivant sans toucher
// au paiement ni a la base. La serialisation par verrou de ligne reste la
// protection principale, ceci est la derniere ligne de defense.
func NextState(current, event string) (string, error) {
	if byEvent, ok := transitions[current]; ok {
		if next, ok := byEvent[event]; ok {
			return next, nil
		}
	}
	return "", &IllegalTransitionError{From: current, Event: event}
}

// applyTransition mute le paiement en memoire apres validation par NextState.
// CompletedAt est pose une seule fois, a la premiere transition terminale.
func applyTransition(p *models.Payment, event string, now time.Time) error {
	next, err := NextState(p.Status, event)
	if err != nil {
		return err
	}

	p.Status = next
	switch next {
	case models.PaymentStatusSuccess, models.PaymentStatusFailed, models.PaymentStatusExpired:
		if p.CompletedAt == nil {
			t := now
			p.CompletedAt = &t
		}
	}
	return nil
}

// StartProcessing: PENDING -> PROCESSING. Aucun effet sur CompletedAt.
func StartProcessing(p *models.Payment) error {
	return applyTransition(p, EventStartProcessing, time.Now())
}

// MarkSuccess: PROCESSING -> SUCCESS.
func MarkSuccess(p *models.Payment) error {
	return applyTransition(p, EventMarkSuccess, time.Now())
}

// MarkFailed: PROCESSING -> FAILED, enregistre le code et le message d'erreur.
func MarkFailed(p *models.Payment, code, message string) error {
	if err := applyTransition(p, EventMarkFailed, time.Now()); err != nil {
		return err
	}
	p.ErrorCode = code
	p.ErrorMessage = message
	return nil
}

// MarkExpired: PROCESSING -> EXPIRED.
func MarkExpired(p *models.Payment) error {
	return applyTransition(p, EventMarkExpired, time.Now())
}

// MarkRefunded: SUCCESS|PARTIALLY_REFUNDED -> REFUNDED, solde le remboursement.
func MarkRefunded(p *models.Payment) error {
	if err := applyTransition(p, EventMarkRefunded, time.Now()); err != nil {
		return err
	}
	p.RefundedAmount = p.Amount
	return nil
}

// MarkPartiallyRefunded ajoute delta au cumul rembourse. Si le cumul atteint
// le montant total, la transition devient REFUNDED au lieu de
// PARTIALLY_REFUNDED, meme si l'appel ne visait qu'un partiel.
func MarkPartiallyRefunded(p *models.Payment, delta int64) error {
	if delta <= 0 {
		return NewValidationError("refund delta must be positive, got %d", delta)
	}
	if p.RefundedAmount+delta > p.Amount {
		return NewValidationError("refund delta %d exceeds remaining balance %d", delta, p.RemainingRefundable())
	}
	if p.RefundedAmount+delta == p.Amount {
		if err := applyTransition(p, EventMarkRefunded, time.Now()); err != nil {
			return err
		}
		p.RefundedAmount = p.Amount
		return nil
	}
	if err := applyTransition(p, EventMarkPartialRefund, time.Now()); err != nil {
		return err
	}
	p.RefundedAmount += delta
	return nil
}
