package idempotency

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore fait passer le meme contrat aux deux implementations.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()

	// cle absente
	_, found, err := store.Get("missing")
	require.NoError(t, err)
	assert.False(t, found)

	// premier acquire gagne
	won, err := store.Acquire("key-1", "lock:abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, won)

	// le second perd tant que la cle est tenue
	won, err = store.Acquire("key-1", "lock:def", time.Minute)
	require.NoError(t, err)
	assert.False(t, won)

	value, found, err := store.Get("key-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "lock:abc", value)

	// Put ecrase la valeur provisoire par l'id definitif
	require.NoError(t, store.Put("key-1", "42", time.Minute))
	value, found, err = store.Get("key-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "42", value)

	// Release libere pour un nouvel acquire
	require.NoError(t, store.Release("key-1"))
	won, err = store.Acquire("key-1", "lock:ghi", time.Minute)
	require.NoError(t, err)
	assert.True(t, won)
}

func TestMemoryStoreContract(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestBoltStoreContract(t *testing.T) {
	store, err := NewBoltStore(filepath.Join(t.TempDir(), "idem.db"))
	require.NoError(t, err)
	defer store.Close()

	exerciseStore(t, store)
}

func TestExpiredEntryIsReacquirable(t *testing.T) {
	store := NewMemoryStore()

	won, err := store.Acquire("key", "first", 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, won)

	time.Sleep(20 * time.Millisecond)

	// perimee: invisible en lecture, ecrasable en ecriture
	_, found, err := store.Get("key")
	require.NoError(t, err)
	assert.False(t, found)

	won, err = store.Acquire("key", "second", time.Minute)
	require.NoError(t, err)
	assert.True(t, won)
}

func TestAcquireHasSingleWinnerUnderConcurrency(t *testing.T) {
	store := NewMemoryStore()

	const workers = 16
	var wg sync.WaitGroup
	wins := make([]bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			won, err := store.Acquire("contested", "lock", time.Minute)
			require.NoError(t, err)
			wins[i] = won
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, won := range wins {
		if won {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

func TestBoltStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idem.db")

	store, err := NewBoltStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Put("key", "42", time.Hour))
	require.NoError(t, store.Close())

	reopened, err := NewBoltStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	value, found, err := reopened.Get("key")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "42", value)
}
