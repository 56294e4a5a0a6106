package services

import (
	"time"

	"gorm.io/gorm"

	"github.com/yaokouame/pos-payments/models"
	"github.com/yaokouame/pos-payments/utils"
)

// Borne haute d'une requete de rapport par plage.
const maxReportRangeDays = 90

// ReconciliationService construit les rapports de caisse journaliers: volumes
// par provider, encaisse brute, remboursements et net.
//
// Les montants bruts sont groupes par jour de creation du paiement et statut
// courant: seul SUCCESS compte dans l'encaisse, PROCESSING dans l'attente,
// FAILED dans les echecs. Un paiement rembourse (meme partiellement) le jour
// meme sort donc du brut alors que sa ligne de remboursement se deduit aussi:
// le net du jour porte deux fois le mouvement. C'est le comportement de
// rapprochement assume, la ligne d'audit refunds fait foi pour le detail.
type ReconciliationService struct {
	db *gorm.DB
}

func NewReconciliationService(db *gorm.DB) *ReconciliationService {
	return &ReconciliationService{db: db}
}

// ProviderBucket agrege les paiements aboutis d'un provider.
type ProviderBucket struct {
	Count int64 `json:"count"`
	Total int64 `json:"total"`
}

// AmountBucket agrege un nombre de lignes et leur montant cumule.
type AmountBucket struct {
	Count  int64 `json:"count"`
	Amount int64 `json:"amount"`
}

// DailyReport est le rapport de rapprochement d'une journee.
type DailyReport struct {
	Date         string                    `json:"date"`
	Providers    map[string]ProviderBucket `json:"providers"`
	Collected    AmountBucket              `json:"collected"`
	Pending      AmountBucket              `json:"pending"`
	Failed       AmountBucket              `json:"failed"`
	Refunds      AmountBucket              `json:"refunds"`
	NetAmount    int64                     `json:"net_amount"`
	NetFormatted string                    `json:"net_formatted"`
}

// Daily construit le rapport d'une journee pour un tenant.
func (s *ReconciliationService) Daily(businessID uint, day time.Time) (*DailyReport, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return s.window(businessID, start, start.Add(24*time.Hour))
}

// Range construit un rapport par jour sur [from, to] inclus. La plage est
// bornee a 90 jours pour garder la requete raisonnable.
func (s *ReconciliationService) Range(businessID uint, from, to time.Time) ([]DailyReport, error) {
	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	to = time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, to.Location())
	if to.Before(from) {
		return nil, NewValidationError("report range is inverted: %s is before %s",
			to.Format("2006-01-02"), from.Format("2006-01-02"))
	}
	days := int(to.Sub(from).Hours()/24) + 1
	if days > maxReportRangeDays {
		return nil, NewValidationError("report range of %d days exceeds the %d day limit", days, maxReportRangeDays)
	}

	reports := make([]DailyReport, 0, days)
	for cursor := from; !cursor.After(to); cursor = cursor.Add(24 * time.Hour) {
		report, err := s.window(businessID, cursor, cursor.Add(24*time.Hour))
		if err != nil {
			return nil, err
		}
		reports = append(reports, *report)
	}
	return reports, nil
}

func (s *ReconciliationService) window(businessID uint, start, end time.Time) (*DailyReport, error) {
	report := DailyReport{
		Date:      start.Format("2006-01-02"),
		Providers: make(map[string]ProviderBucket),
	}

	var rows []struct {
		ProviderCode string
		Count        int64
		Total        int64
	}
	err := s.db.Model(&models.Payment{}).
		Where("business_id = ? AND created_at >= ? AND created_at < ?", businessID, start, end).
		Where("status = ?", models.PaymentStatusSuccess).
		Select("provider_code, COUNT(*) as count, COALESCE(SUM(amount), 0) as total").
		Group("provider_code").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		report.Providers[row.ProviderCode] = ProviderBucket{Count: row.Count, Total: row.Total}
		report.Collected.Count += row.Count
		report.Collected.Amount += row.Total
	}

	if err := s.bucket(businessID, start, end, models.PaymentStatusProcessing, &report.Pending); err != nil {
		return nil, err
	}
	if err := s.bucket(businessID, start, end, models.PaymentStatusFailed, &report.Failed); err != nil {
		return nil, err
	}

	err = s.db.Model(&models.Refund{}).
		Where("business_id = ? AND created_at >= ? AND created_at < ?", businessID, start, end).
		Select("COUNT(*) as count, COALESCE(SUM(amount), 0) as amount").
		Scan(&report.Refunds).Error
	if err != nil {
		return nil, err
	}

	report.NetAmount = report.Collected.Amount - report.Refunds.Amount
	report.NetFormatted = utils.FormatAmountXOF(report.NetAmount)
	return &report, nil
}

func (s *ReconciliationService) bucket(businessID uint, start, end time.Time, status string, out *AmountBucket) error {
	return s.db.Model(&models.Payment{}).
		Where("business_id = ? AND created_at >= ? AND created_at < ?", businessID, start, end).
		Where("status = ?", status).
		Select("COUNT(*) as count, COALESCE(SUM(amount), 0) as amount").
		Scan(out).Error
}
