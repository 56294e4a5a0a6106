package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yaokouame/pos-payments/events"
	"github.com/yaokouame/pos-payments/idempotency"
	"github.com/yaokouame/pos-payments/metrics"
	"github.com/yaokouame/pos-payments/models"
	"github.com/yaokouame/pos-payments/providers"
	"github.com/yaokouame/pos-payments/utils"
)

// Timeout des appels gateway declenches par le service (initiation, polling).
const providerCallTimeout = 30 * time.Second

// lockPrefix marque une entree provisoire du coordinateur d'idempotence:
// le verrou est pris mais le paiement n'est pas encore durable.
const lockPrefix = "lock:"

// PaymentService porte l'initiation, la consultation et la coordination
// d'idempotence. Toute mutation de Payment passe par applyLocked: verrou de
// ligne FOR UPDATE puis transitions FSM, jamais d'affectation directe.
type PaymentService struct {
	db          *gorm.DB
	registry    *providers.Registry
	idem        idempotency.Store
	callbackURL string // base publique pour les notify/return URLs
}

func NewPaymentService(db *gorm.DB, registry *providers.Registry, idem idempotency.Store, callbackURL string) *PaymentService {
	return &PaymentService{
		db:          db,
		registry:    registry,
		idem:        idem,
		callbackURL: strings.TrimRight(callbackURL, "/"),
	}
}

// InitiateInput est la requete d'initiation cote service.
type InitiateInput struct {
	OrderID        uint
	BusinessID     uint
	ProviderCode   string
	IdempotencyKey string // genere si vide
	CustomerPhone  string
}

// InitiateOutput est le resultat: paiement (nouveau ou existant), URL de
// redirection eventuelle et indicateur de doublon.
type InitiateOutput struct {
	Payment     *models.Payment
	RedirectURL string
	IsDuplicate bool
}

// Initiate garantit au-plus-un paiement par cle d'idempotence, meme sous
// soumissions concurrentes. Un doublon n'est pas une erreur: le paiement du
// gagnant est rendu avec IsDuplicate=true.
func (s *PaymentService) Initiate(ctx context.Context, in InitiateInput) (*InitiateOutput, error) {
	if in.ProviderCode == "" {
		return nil, NewValidationError("provider_code is required")
	}
	if !s.registry.Known(in.ProviderCode) {
		return nil, NewValidationError("unknown provider code %q", in.ProviderCode)
	}

	key := in.IdempotencyKey
	if key == "" {
		key = uuid.New().String()
	}

	// check d'abord: une cle deja servie rend le paiement existant
	if existing, err := s.Check(key); err != nil {
		return nil, err
	} else if existing != nil {
		metrics.DuplicateInitiations.Inc()
		return &InitiateOutput{Payment: existing, IsDuplicate: true}, nil
	}

	// acquire: un seul gagnant par cle
	provisional := lockPrefix + uuid.New().String()
	won, err := s.idem.Acquire(key, provisional, idempotency.DefaultTTL)
	if err != nil {
		return nil, err
	}
	if !won {
		// perdant de la course: relire et servir le paiement du gagnant
		for i := 0; i < 20; i++ {
			if existing, err := s.Check(key); err == nil && existing != nil {
				metrics.DuplicateInitiations.Inc()
				return &InitiateOutput{Payment: existing, IsDuplicate: true}, nil
			}
			time.Sleep(50 * time.Millisecond)
		}
		return nil, NewValidationError("initiation for key %s still in progress, retry", key)
	}

	var order models.Order
	if err := s.db.First(&order, in.OrderID).Error; err != nil {
		s.idem.Release(key)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "order", ID: in.OrderID}
		}
		return nil, err
	}
	if order.BusinessID != in.BusinessID {
		s.idem.Release(key)
		return nil, &NotFoundError{Resource: "order", ID: in.OrderID}
	}

	method, err := s.methodFor(in.BusinessID, in.ProviderCode)
	if err != nil {
		s.idem.Release(key)
		return nil, err
	}
	adapter, err := s.registry.Build(method.ProviderCode, method.Config)
	if err != nil {
		s.idem.Release(key)
		return nil, err
	}

	payment := models.Payment{
		IdempotencyKey: key,
		OrderID:        order.ID,
		BusinessID:     in.BusinessID,
		Amount:         order.TotalAmount,
		Currency:       order.Currency,
		ProviderCode:   method.ProviderCode,
		Status:         models.PaymentStatusPending,
	}
	if err := s.db.Create(&payment).Error; err != nil {
		s.idem.Release(key)
		return nil, err
	}

	// le paiement est durable: le cache pointe desormais l'id reel.
	// A partir d'ici on ne Release plus jamais la cle.
	if err := s.idem.Put(key, strconv.FormatUint(uint64(payment.ID), 10), idempotency.DefaultTTL); err != nil {
		utils.ErrorLogger.Printf("Failed to repoint idempotency key %s: %v", key, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, providerCallTimeout)
	defer cancel()

	orderRef := order.Reference
	if orderRef == "" {
		orderRef = strconv.FormatUint(uint64(order.ID), 10)
	}

	result := adapter.Initiate(callCtx, providers.InitiateRequest{
		Amount:         payment.Amount,
		Currency:       payment.Currency,
		OrderReference: orderRef,
		CustomerPhone:  in.CustomerPhone,
		IdempotencyKey: key,
		CallbackURL:    s.callbackURL + "/webhooks/" + method.ProviderCode,
		SuccessURL:     s.callbackURL + "/payments/return/success",
		ErrorURL:       s.callbackURL + "/payments/return/error",
	})

	updated, err := s.applyLocked(payment.ID, func(tx *gorm.DB, p *models.Payment) error {
		p.ProviderReference = result.ProviderReference
		p.ProviderResponse = result.Raw

		// tout passe par PROCESSING, y compris le cash qui confirme
		// immediatement apres
		if err := StartProcessing(p); err != nil {
			return err
		}
		switch result.Status {
		case providers.StatusSuccess:
			return MarkSuccess(p)
		case providers.StatusFailed:
			return MarkFailed(p, result.ErrorCode, result.ErrorMessage)
		default:
			return nil // PENDING: la suite arrive par webhook ou polling
		}
	})
	if err != nil {
		return nil, err
	}

	metrics.PaymentInitiations.WithLabelValues(method.ProviderCode, result.Status).Inc()
	events.BroadcastPayment(*updated)
	utils.InfoLogger.Printf("Payment %d initiated for order #%d via %s: %s",
		updated.ID, order.ID, method.ProviderCode, updated.Status)

	return &InitiateOutput{
		Payment:     updated,
		RedirectURL: result.RedirectURL,
		IsDuplicate: false,
	}, nil
}

// Check est le chemin de lecture du coordinateur: cache rapide d'abord,
// repli sur la table payments (source de verite), avec re-peuplement du
// cache pour guerir une eviction ou un redemarrage.
func (s *PaymentService) Check(key string) (*models.Payment, error) {
	value, found, err := s.idem.Get(key)
	if err != nil {
		return nil, err
	}
	if found && !strings.HasPrefix(value, lockPrefix) {
		if id, perr := strconv.ParseUint(value, 10, 64); perr == nil {
			var payment models.Payment
			if err := s.db.First(&payment, uint(id)).Error; err == nil {
				return &payment, nil
			}
		}
	}

	var payment models.Payment
	err = s.db.Where("idempotency_key = ?", key).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if err := s.idem.Put(key, strconv.FormatUint(uint64(payment.ID), 10), idempotency.DefaultTTL); err != nil {
		utils.ErrorLogger.Printf("Failed to repopulate idempotency key %s: %v", key, err)
	}
	return &payment, nil
}

// Get retourne un paiement du tenant. Un id d'un autre tenant est un 404,
// jamais un 403: on ne revele pas l'existence de la ligne.
func (s *PaymentService) Get(businessID, paymentID uint) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.First(&payment, paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "payment", ID: paymentID}
		}
		return nil, err
	}
	if payment.BusinessID != businessID {
		return nil, &NotFoundError{Resource: "payment", ID: paymentID}
	}
	return &payment, nil
}

// List retourne les paiements du tenant, filtres par statut, pagines.
func (s *PaymentService) List(businessID uint, status string, page, perPage int) ([]models.Payment, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	query := s.db.Model(&models.Payment{}).Where("business_id = ?", businessID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var payments []models.Payment
	err := query.Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&payments).Error
	return payments, total, err
}

// CheckStatus interroge le provider pour un paiement encore PROCESSING et
// applique la transition correspondante. Utilise quand le webhook tarde.
func (s *PaymentService) CheckStatus(ctx context.Context, businessID, paymentID uint) (*models.Payment, error) {
	payment, err := s.Get(businessID, paymentID)
	if err != nil {
		return nil, err
	}

	if payment.Status != models.PaymentStatusProcessing || payment.ProviderCode == providers.CodeCash {
		return payment, nil
	}

	method, err := s.methodFor(businessID, payment.ProviderCode)
	if err != nil {
		return nil, err
	}
	adapter, err := s.registry.Build(method.ProviderCode, method.Config)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, providerCallTimeout)
	defer cancel()
	result := adapter.CheckStatus(callCtx, payment.ProviderReference)

	switch result.Status {
	case providers.StatusSuccess:
		payment, err = s.applyLocked(payment.ID, func(tx *gorm.DB, p *models.Payment) error {
			if p.IsTerminal() {
				return nil // un webhook est passe entre temps
			}
			return MarkSuccess(p)
		})
	case providers.StatusFailed:
		if result.ErrorCode == providers.ErrCodeNetwork {
			// un poll qui timeoute ne condamne pas le paiement: le balayage
			// d'expiration tranchera
			return payment, nil
		}
		payment, err = s.applyLocked(payment.ID, func(tx *gorm.DB, p *models.Payment) error {
			if p.IsTerminal() {
				return nil
			}
			return MarkFailed(p, result.ErrorCode, result.ErrorMessage)
		})
	default:
		return payment, nil
	}
	if err != nil {
		return nil, err
	}

	events.BroadcastPayment(*payment)
	return payment, nil
}

// applyLocked serialise une transition: SELECT ... FOR UPDATE sur la ligne,
// mutation via la FSM, sauvegarde et bascule de la commande dans la meme
// transaction. C'est l'unique chemin d'ecriture d'un Payment.
func (s *PaymentService) applyLocked(paymentID uint, fn func(tx *gorm.DB, p *models.Payment) error) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&payment, paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "payment", ID: paymentID}
			}
			return err
		}

		wasSuccess := payment.Status == models.PaymentStatusSuccess
		if err := fn(tx, &payment); err != nil {
			return err
		}
		if err := tx.Save(&payment).Error; err != nil {
			return err
		}

		if !wasSuccess && payment.Status == models.PaymentStatusSuccess {
			if err := tx.Model(&models.Order{}).
				Where("id = ?", payment.OrderID).
				Update("status", models.OrderStatusPaid).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// methodFor charge la configuration provider du tenant. Le cash marche sans
// configuration prealable: encaisser des especes ne demande pas de cles API.
func (s *PaymentService) methodFor(businessID uint, code string) (*models.PaymentMethod, error) {
	var method models.PaymentMethod
	err := s.db.Where("business_id = ? AND provider_code = ?", businessID, code).First(&method).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if code == providers.CodeCash {
			return &models.PaymentMethod{BusinessID: businessID, ProviderCode: code, Active: true}, nil
		}
		return nil, NewValidationError("payment method %s is not configured for this business", code)
	}
	if err != nil {
		return nil, err
	}
	if !method.Active {
		return nil, NewValidationError("payment method %s is disabled", code)
	}
	return &method, nil
}
