// Package idempotency fournit le magasin rapide de deduplication des
// initiations de paiement. Le magasin n'est qu'un cache avec TTL: la table
// payments (index unique sur idempotency_key) reste la source de verite
// permanente, le coordinateur y retombe sur un miss.
package idempotency

import (
	"time"
)

// DefaultTTL borne la fraicheur d'une entree du cache. Au-dela, la table
// payments fait foi.
const DefaultTTL = 24 * time.Hour

type entry struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (e entry) expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Store est le contrat du chemin rapide. Acquire est un check-and-set
// atomique: un seul appelant gagne la course pour une cle donnee, les
// perdants doivent relire via Get et servir le paiement du gagnant.
type Store interface {
	// Get returns the value bound to key, if present and fresh.
	Get(key string) (string, bool, error)

	// Acquire atomically binds key to value when the key is absent (or its
	// entry has expired). Returns true only to the single winning caller.
	Acquire(key, value string, ttl time.Duration) (bool, error)

	// Put overwrites the value for key, used to swap the provisional marker
	// for the durable payment id once the row exists.
	Put(key, value string, ttl time.Duration) error

	// Release drops the entry. Only used on failure paths before a payment
	// was durably created, to avoid a permanent false lock.
	Release(key string) error

	Close() error
}
