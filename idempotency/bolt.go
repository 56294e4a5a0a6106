package idempotency

import (
	"encoding/json"
	"time"

	bolt "github.com/boltdb/bolt"
)

const bucketName = "idempotency_keys"

// BoltStore est l'implementation embarquee du chemin rapide. Les transactions
// Update de Bolt sont serialisees par fichier, ce qui donne le check-and-set
// atomique sans dependre d'un service externe.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the database file and ensures the bucket
// exists. Safe to call on every startup.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(key string) (string, bool, error) {
	var value string
	var found bool

	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(bucketName)).Get([]byte(key))
		if raw == nil {
			return nil
		}
		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return err
		}
		if e.expired(time.Now()) {
			// entree perimee: traitee comme absente, ecrasee au prochain Acquire
			return nil
		}
		value = e.Value
		found = true
		return nil
	})
	return value, found, err
}

func (s *BoltStore) Acquire(key, value string, ttl time.Duration) (bool, error) {
	var won bool

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		now := time.Now()

		if raw := b.Get([]byte(key)); raw != nil {
			var e entry
			if err := json.Unmarshal(raw, &e); err == nil && !e.expired(now) {
				return nil // perdant: la cle est deja tenue
			}
		}

		raw, err := json.Marshal(entry{Value: value, ExpiresAt: now.Add(ttl)})
		if err != nil {
			return err
		}
		if err := b.Put([]byte(key), raw); err != nil {
			return err
		}
		won = true
		return nil
	})
	return won, err
}

func (s *BoltStore) Put(key, value string, ttl time.Duration) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		raw, err := json.Marshal(entry{Value: value, ExpiresAt: time.Now().Add(ttl)})
		if err != nil {
			return err
		}
		return tx.Bucket([]byte(bucketName)).Put([]byte(key), raw)
	})
}

func (s *BoltStore) Release(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(key))
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
