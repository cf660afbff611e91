package storage

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func openMem(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	return store
}

func TestMarkIfNew(t *testing.T) {
	t.Parallel()
	store := openMem(t)

	fresh, err := store.MarkIfNew("key-a")
	require.NoError(t, err)
	require.True(t, fresh)

	fresh, err = store.MarkIfNew("key-a")
	require.NoError(t, err)
	require.False(t, fresh)

	fresh, err = store.MarkIfNew("key-b")
	require.NoError(t, err)
	require.True(t, fresh)

	require.Equal(t, 2, store.Len())

	keys, err := store.Keys()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"key-a", "key-b"}, keys)
}

func TestMarkIfNewEmptyKey(t *testing.T) {
	t.Parallel()
	store := openMem(t)

	fresh, err := store.MarkIfNew("")
	require.NoError(t, err)
	require.False(t, fresh)
	require.Equal(t, 0, store.Len())
}

func TestMarkIfNewConcurrent(t *testing.T) {
	t.Parallel()
	store := openMem(t)

	var wins int64
	var mu sync.Mutex
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fresh, err := store.MarkIfNew("contested")
			require.NoError(t, err)
			if fresh {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int64(1), wins, "exactly one caller wins the insert")
	require.Equal(t, 1, store.Len())
}

func TestGetSetRoundTrip(t *testing.T) {
	t.Parallel()
	store := openMem(t)

	_, ok, err := store.Get("cache:absent")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set("cache:page", []byte("<html>hi</html>")))
	val, ok, err := store.Get("cache:page")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("<html>hi</html>"), val)

	// cache entries never count as dedup keys
	require.Equal(t, 0, store.Len())
}

func TestPersistenceAcrossReopen(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	store, err := Open(Options{Dir: dir})
	require.NoError(t, err)
	for i := range 5 {
		fresh, err := store.MarkIfNew(fmt.Sprintf("key-%d", i))
		require.NoError(t, err)
		require.True(t, fresh)
	}
	require.NoError(t, store.Close())

	reopened, err := Open(Options{Dir: dir})
	require.NoError(t, err)
	defer reopened.Close()

	require.Equal(t, 5, reopened.Len(), "key count is rebuilt on open")
	fresh, err := reopened.MarkIfNew("key-3")
	require.NoError(t, err)
	require.False(t, fresh, "persisted keys stay marked")
}

func TestResetClearsExistingData(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	store, err := Open(Options{Dir: dir})
	require.NoError(t, err)
	_, err = store.MarkIfNew("stale")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	fresh, err := Open(Options{Dir: dir, Reset: true})
	require.NoError(t, err)
	defer fresh.Close()

	require.Equal(t, 0, fresh.Len())
	first, err := fresh.MarkIfNew("stale")
	require.NoError(t, err)
	require.True(t, first)
}
