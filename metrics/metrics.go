// Package metrics expose les compteurs Prometheus du payment core,
// servis sur /metrics par promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// PaymentInitiations compte les initiations par provider et statut final
	// de l'appel synchrone (PENDING/SUCCESS/FAILED).
	PaymentInitiations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_payment_initiations_total",
			Help: "Payment initiations by provider and synchronous outcome.",
		},
		[]string{"provider", "status"},
	)

	// DuplicateInitiations compte les requetes servies depuis le coordinateur
	// d'idempotence sans creer de paiement.
	DuplicateInitiations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pos_payment_duplicate_initiations_total",
			Help: "Initiation requests answered from the idempotency coordinator.",
		},
	)

	// WebhookEvents compte les webhooks par provider et issue du traitement
	// asynchrone (processed, invalid_signature, not_found, ignored...).
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_webhook_events_total",
			Help: "Webhook deliveries by provider and processing outcome.",
		},
		[]string{"provider", "outcome"},
	)

	// Refunds compte les remboursements par provider et resultat.
	Refunds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_refunds_total",
			Help: "Refund attempts by provider and result.",
		},
		[]string{"provider", "result"},
	)

	// ExpiredPayments compte les paiements expires par le balayage.
	ExpiredPayments = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pos_payments_expired_total",
			Help: "Payments expired by the background sweep.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		PaymentInitiations,
		DuplicateInitiations,
		WebhookEvents,
		Refunds,
		ExpiredPayments,
	)
}
