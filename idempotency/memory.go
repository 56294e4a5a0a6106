package idempotency

import (
	"sync"
	"time"
)

// MemoryStore est l'equivalent en memoire du BoltStore, utilise par les tests
// et les deploiements mono-processus sans fichier.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]entry)}
}

func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.expired(time.Now()) {
		return "", false, nil
	}
	return e.Value, true, nil
}

func (s *MemoryStore) Acquire(key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if e, ok := s.entries[key]; ok && !e.expired(now) {
		return false, nil
	}
	s.entries[key] = entry{Value: value, ExpiresAt: now.Add(ttl)}
	return true, nil
}

func (s *MemoryStore) Put(key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = entry{Value: value, ExpiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Release(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
