package services

import (
	"errors"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/yaokouame/pos-payments/events"
	"github.com/yaokouame/pos-payments/metrics"
	"github.com/yaokouame/pos-payments/models"
	"github.com/yaokouame/pos-payments/providers"
	"github.com/yaokouame/pos-payments/utils"
)

// Issues du traitement d'un webhook, exportees vers les compteurs Prometheus.
const (
	WebhookOutcomeProcessed        = "processed"
	WebhookOutcomeInvalidSignature = "invalid_signature"
	WebhookOutcomeMalformed        = "malformed_payload"
	WebhookOutcomeNotFound         = "payment_not_found"
	WebhookOutcomeIgnoredTerminal  = "ignored_terminal"
	WebhookOutcomeIgnoredPending   = "ignored_pending"
	WebhookOutcomeError            = "error"
)

// WebhookJob est un webhook brut capture par la phase de reception: corps et
// headers intacts, aucune interpretation avant la phase de traitement.
type WebhookJob struct {
	ProviderCode string
	Headers      http.Header
	Body         []byte
	ReceivedAt   time.Time
}

// WebhookProcessor traite les webhooks en deux phases. La reception (HTTP)
// valide uniquement que le provider existe, capture le brut et repond 200
// immediatement: un provider qui ne recoit pas son 200 re-livre, et une
// re-livraison d'un paiement deja terminal est un no-op. Le traitement reel
// (verification de signature, parsing, transition) tourne ici, en arriere-plan.
type WebhookProcessor struct {
	payments *PaymentService
	db       *gorm.DB
	registry *providers.Registry
	jobs     chan WebhookJob
	quit     chan struct{}
}

func NewWebhookProcessor(payments *PaymentService, db *gorm.DB, registry *providers.Registry) *WebhookProcessor {
	return &WebhookProcessor{
		payments: payments,
		db:       db,
		registry: registry,
		jobs:     make(chan WebhookJob, 256),
		quit:     make(chan struct{}),
	}
}

// Start lance les workers de traitement.
func (w *WebhookProcessor) Start(workers int) {
	if workers < 1 {
		workers = 2
	}
	for i := 0; i < workers; i++ {
		go w.run()
	}
	utils.InfoLogger.Printf("Webhook processor started with %d workers", workers)
}

// Stop arrete les workers. Les jobs deja en file sont perdus: le provider
// re-livrera, et le traitement est idempotent.
func (w *WebhookProcessor) Stop() {
	close(w.quit)
}

// Enqueue depose un webhook pour traitement asynchrone. Une file pleine est
// signalee mais la reception repond quand meme 200: la re-livraison du
// provider vaut mieux qu'un blocage du handler HTTP.
func (w *WebhookProcessor) Enqueue(job WebhookJob) bool {
	select {
	case w.jobs <- job:
		return true
	default:
		utils.ErrorLogger.Printf("Webhook queue full, dropping %s delivery", job.ProviderCode)
		return false
	}
}

func (w *WebhookProcessor) run() {
	for {
		select {
		case <-w.quit:
			return
		case job := <-w.jobs:
			outcome := w.Process(job)
			metrics.WebhookEvents.WithLabelValues(job.ProviderCode, outcome).Inc()
		}
	}
}

// Process execute la phase de traitement d'un webhook et retourne l'issue.
// Exporte pour que la suite de tests puisse traiter de facon synchrone.
func (w *WebhookProcessor) Process(job WebhookJob) string {
	adapter, businessID, ok := w.verify(job)
	if !ok {
		utils.ErrorLogger.Printf("Webhook %s rejected: signature did not verify for any configured business", job.ProviderCode)
		return WebhookOutcomeInvalidSignature
	}

	event, err := adapter.ParseWebhook(job.Body)
	if err != nil {
		utils.ErrorLogger.Printf("Webhook %s rejected: %v", job.ProviderCode, err)
		return WebhookOutcomeMalformed
	}

	payment, err := w.locate(job.ProviderCode, businessID, event)
	if err != nil {
		utils.ErrorLogger.Printf("Webhook %s for reference %s: %v", job.ProviderCode, event.PaymentReference, err)
		return WebhookOutcomeNotFound
	}

	if payment.IsTerminal() {
		// re-livraison apres completion: no-op idempotent
		return WebhookOutcomeIgnoredTerminal
	}
	if event.Status == providers.WebhookStatusPending && payment.Status == models.PaymentStatusProcessing {
		return WebhookOutcomeIgnoredPending
	}

	updated, err := w.payments.applyLocked(payment.ID, func(tx *gorm.DB, p *models.Payment) error {
		if p.IsTerminal() {
			return nil
		}
		if p.Status == models.PaymentStatusPending {
			if err := StartProcessing(p); err != nil {
				return err
			}
		}
		if p.ProviderResponse == "" {
			p.ProviderResponse = event.Raw
		}

		if event.Amount > 0 && event.Amount != p.Amount {
			// montant du webhook incoherent avec le paiement: on refuse de
			// confirmer et on trace le litige
			return MarkFailed(p, "amount_mismatch", "webhook amount does not match payment amount")
		}

		switch event.Status {
		case providers.WebhookStatusSuccess:
			return MarkSuccess(p)
		case providers.WebhookStatusFailed:
			return MarkFailed(p, "provider_error", "payment failed at provider")
		case providers.WebhookStatusExpired:
			return MarkExpired(p)
		default:
			return nil
		}
	})
	if err != nil {
		utils.ErrorLogger.Printf("Webhook %s for payment %d: %v", job.ProviderCode, payment.ID, err)
		return WebhookOutcomeError
	}

	events.BroadcastPayment(*updated)
	utils.InfoLogger.Printf("Webhook %s processed: payment %d is now %s",
		job.ProviderCode, updated.ID, updated.Status)
	return WebhookOutcomeProcessed
}

// verify essaie la signature contre chaque configuration tenant du provider.
// Le webhook n'embarque aucun identifiant tenant exploitable avant
// verification, donc on tente chaque secret configure; le premier qui
// verifie designe le business.
func (w *WebhookProcessor) verify(job WebhookJob) (providers.Provider, uint, bool) {
	var methods []models.PaymentMethod
	if err := w.db.Where("provider_code = ? AND active = ?", job.ProviderCode, true).
		Find(&methods).Error; err != nil {
		utils.ErrorLogger.Printf("Webhook %s: loading payment methods: %v", job.ProviderCode, err)
		return nil, 0, false
	}

	for _, method := range methods {
		adapter, err := w.registry.Build(method.ProviderCode, method.Config)
		if err != nil {
			utils.ErrorLogger.Printf("Webhook %s: building adapter for business %d: %v",
				job.ProviderCode, method.BusinessID, err)
			continue
		}
		if adapter.VerifyWebhook(job.Headers, job.Body) {
			return adapter, method.BusinessID, true
		}
	}
	return nil, 0, false
}

// locate retrouve le paiement vise: reference provider d'abord, puis cle
// d'idempotence (plusieurs gateways renvoient la reference marchande).
func (w *WebhookProcessor) locate(providerCode string, businessID uint, event providers.WebhookEvent) (*models.Payment, error) {
	var payment models.Payment

	if event.PaymentReference != "" {
		err := w.db.Where("provider_code = ? AND provider_reference = ?",
			providerCode, event.PaymentReference).First(&payment).Error
		if err == nil {
			return &payment, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	ref := event.OrderReference
	if ref == "" {
		ref = event.PaymentReference
	}
	if ref == "" {
		return nil, &NotFoundError{Resource: "payment", ID: "(no reference)"}
	}

	err := w.db.Where("business_id = ? AND idempotency_key = ?", businessID, ref).
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "payment", ID: ref}
		}
		return nil, err
	}
	return &payment, nil
}
