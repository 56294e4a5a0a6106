package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/yaokouame/pos-payments/events"
	"github.com/yaokouame/pos-payments/models"
	"github.com/yaokouame/pos-payments/providers"
	"github.com/yaokouame/pos-payments/utils"
)

// DrawerService gere les sessions de caisse: ouverture avec fonds initial,
// cloture avec comptage et calcul d'ecart. Au plus une session ouverte par
// caissier.
type DrawerService struct {
	db *gorm.DB
}

func NewDrawerService(db *gorm.DB) *DrawerService {
	return &DrawerService{db: db}
}

// Open demarre une session pour un caissier. Une session deja ouverte bloque.
func (s *DrawerService) Open(businessID, cashierID uint, openingBalance int64) (*models.CashDrawerSession, error) {
	if openingBalance < 0 {
		return nil, NewValidationError("opening balance must not be negative, got %d", openingBalance)
	}

	var session models.CashDrawerSession
	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("cashier_id = ? AND closed_at IS NULL", cashierID).
			First(&models.CashDrawerSession{}).Error
		if err == nil {
			return NewValidationError("cashier %d already has an open drawer session", cashierID)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		session = models.CashDrawerSession{
			CashierID:      cashierID,
			BusinessID:     businessID,
			OpeningBalance: openingBalance,
			OpenedAt:       time.Now(),
		}
		return tx.Create(&session).Error
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.Printf("Drawer session %d opened by cashier %d with %s",
		session.ID, cashierID, utils.FormatAmountXOF(openingBalance))
	return &session, nil
}

// Current retourne la session ouverte du caissier, avec le solde attendu
// recalcule a l'instant de l'appel.
func (s *DrawerService) Current(businessID, cashierID uint) (*models.CashDrawerSession, error) {
	var session models.CashDrawerSession
	err := s.db.Where("business_id = ? AND cashier_id = ? AND closed_at IS NULL", businessID, cashierID).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "drawer session", ID: cashierID}
		}
		return nil, err
	}

	expected, err := s.expectedBalance(&session, time.Now())
	if err != nil {
		return nil, err
	}
	session.ExpectedBalance = expected
	return &session, nil
}

// Close arrete la session: fige le solde attendu, enregistre le comptage et
// l'ecart. L'ecart n'est jamais bloquant, il est trace et notifie. Une session
// deja close, hors tenant ou ouverte par un autre caissier est un 404.
func (s *DrawerService) Close(businessID, cashierID, sessionID uint, closingBalance int64, notes string) (*models.CashDrawerSession, error) {
	if closingBalance < 0 {
		return nil, NewValidationError("closing balance must not be negative, got %d", closingBalance)
	}

	var session models.CashDrawerSession
	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND business_id = ? AND cashier_id = ? AND closed_at IS NULL",
			sessionID, businessID, cashierID).
			First(&session).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "drawer session", ID: sessionID}
			}
			return err
		}

		now := time.Now()
		expected, err := s.expectedBalance(&session, now)
		if err != nil {
			return err
		}

		session.ClosedAt = &now
		session.ClosingBalance = closingBalance
		session.ExpectedBalance = expected
		session.Variance = closingBalance - expected
		session.VarianceNotes = notes
		return tx.Save(&session).Error
	})
	if err != nil {
		return nil, err
	}

	if session.Variance != 0 {
		utils.ErrorLogger.Printf("Drawer session %d closed with variance %s (expected %s, counted %s)",
			session.ID, utils.FormatAmountXOF(session.Variance),
			utils.FormatAmountXOF(session.ExpectedBalance), utils.FormatAmountXOF(session.ClosingBalance))
	} else {
		utils.InfoLogger.Printf("Drawer session %d closed, balanced at %s",
			session.ID, utils.FormatAmountXOF(session.ClosingBalance))
	}

	events.BroadcastDrawerClosed(session)
	return &session, nil
}

// expectedBalance = fonds d'ouverture + encaissements cash aboutis pendant la
// session, moins les remboursements cash rendus depuis le tiroir.
func (s *DrawerService) expectedBalance(session *models.CashDrawerSession, until time.Time) (int64, error) {
	var cashIn int64
	err := s.db.Model(&models.Payment{}).
		Where("business_id = ? AND provider_code = ? AND completed_at >= ? AND completed_at <= ?",
			session.BusinessID, providers.CodeCash, session.OpenedAt, until).
		Where("status IN ?", []string{
			models.PaymentStatusSuccess,
			models.PaymentStatusRefunded,
			models.PaymentStatusPartiallyRefunded,
		}).
		Select("COALESCE(SUM(amount), 0)").Scan(&cashIn).Error
	if err != nil {
		return 0, err
	}

	var cashOut int64
	err = s.db.Model(&models.Refund{}).
		Joins("JOIN payments ON payments.id = refunds.payment_id").
		Where("refunds.business_id = ? AND payments.provider_code = ?", session.BusinessID, providers.CodeCash).
		Where("refunds.created_at >= ? AND refunds.created_at <= ?", session.OpenedAt, until).
		Select("COALESCE(SUM(refunds.amount), 0)").Scan(&cashOut).Error
	if err != nil {
		return 0, err
	}

	return session.OpeningBalance + cashIn - cashOut, nil
}
