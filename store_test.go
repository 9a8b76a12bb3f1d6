package server

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreGetOrCreateIsIdempotent(t *testing.T) {
	store := NewMatchStore()
	now := time.Unix(1000, 0)

	first, created := store.getOrCreate("m1", "alice", "bob", now)
	require.True(t, created)
	require.NotNil(t, first)

	second, created := store.getOrCreate("m1", "carol", "dave", now)
	assert.False(t, created)
	assert.Same(t, first, second)
	assert.Equal(t, "alice", second.leftID, "existing identities must survive a duplicate create")
}

func TestStoreRemoveUnknownIsNoOp(t *testing.T) {
	store := NewMatchStore()
	store.getOrCreate("m1", "alice", "bob", time.Unix(1000, 0))

	store.remove("missing")
	store.remove("m1")
	store.remove("m1")

	assert.Equal(t, 0, store.len())
	_, ok := store.get("m1")
	assert.False(t, ok)
}

func TestStoreSnapshotIsIterationSafe(t *testing.T) {
	store := NewMatchStore()
	now := time.Unix(1000, 0)
	for i := 0; i < 8; i++ {
		store.getOrCreate(fmt.Sprintf("m%d", i), "a", "b", now)
	}

	snapshot := store.snapshot()
	require.Len(t, snapshot, 8)

	// Mutating the store must not disturb the copy already taken.
	store.remove("m0")
	assert.Len(t, snapshot, 8)
	assert.Equal(t, 7, store.len())
}

func TestStoreConcurrentCreateSingleWinner(t *testing.T) {
	store := NewMatchStore()
	now := time.Unix(1000, 0)

	var wg sync.WaitGroup
	results := make([]*matchState, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, _ := store.getOrCreate("m1", "alice", "bob", now)
			results[i] = m
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, store.len())
	for _, m := range results {
		assert.Same(t, results[0], m)
	}
}
