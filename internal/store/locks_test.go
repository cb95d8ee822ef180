package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formdoc/internal/lock"
)

func TestLocks_InsertUnique(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	ok, err := s.InsertUnique(ctx, "formdoc", "f1", "a", nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.InsertUnique(ctx, "formdoc", "f1", "b", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	// Same key in another namespace is a different lock.
	ok, err = s.InsertUnique(ctx, "other", "f1", "c", nil)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.DeleteWhere(ctx, "formdoc", "f1"))
	ok, err = s.InsertUnique(ctx, "formdoc", "f1", "d", nil)
	require.NoError(t, err)
	assert.True(t, ok)

	// Deleting a missing row is fine.
	assert.NoError(t, s.DeleteWhere(ctx, "formdoc", "missing"))
}

func TestLocks_DeleteOwned(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	_, err := s.InsertUnique(ctx, "formdoc", "f1", "successor", nil)
	require.NoError(t, err)

	require.NoError(t, s.DeleteOwned(ctx, "formdoc", "f1", "expired-holder"))
	ok, err := s.InsertUnique(ctx, "formdoc", "f1", "x", nil)
	require.NoError(t, err)
	assert.False(t, ok, "row owned by another token survives")

	require.NoError(t, s.DeleteOwned(ctx, "formdoc", "f1", "successor"))
	ok, err = s.InsertUnique(ctx, "formdoc", "f1", "x", nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocks_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	exp := now.Add(time.Minute)

	_, err := s.InsertUnique(ctx, "formdoc", "leased", "a", &exp)
	require.NoError(t, err)
	_, err = s.InsertUnique(ctx, "formdoc", "forever", "b", nil)
	require.NoError(t, err)

	require.NoError(t, s.DeleteExpired(ctx, "formdoc", "leased", now))
	ok, err := s.InsertUnique(ctx, "formdoc", "leased", "c", nil)
	require.NoError(t, err)
	assert.False(t, ok, "lease has not run out yet")

	require.NoError(t, s.DeleteExpired(ctx, "formdoc", "leased", exp))
	require.NoError(t, s.DeleteExpired(ctx, "formdoc", "forever", now.Add(24*time.Hour)))

	ok, err = s.InsertUnique(ctx, "formdoc", "leased", "c", nil)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.InsertUnique(ctx, "formdoc", "forever", "d", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocks_TableLockOverSQLite(t *testing.T) {
	s := createTestStore(t)
	l := lock.NewTableLock(s, lock.Options{MaxAttempts: 500, BaseDelay: time.Millisecond})

	var mu sync.Mutex
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				tok, err := l.Acquire(context.Background(), "f1")
				if !assert.NoError(t, err) {
					return
				}
				// Unsynchronized read-modify-write guarded only by the lock row.
				mu.Lock()
				v := counter
				mu.Unlock()
				time.Sleep(100 * time.Microsecond)
				mu.Lock()
				counter = v + 1
				mu.Unlock()
				l.Release(context.Background(), tok)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 40, counter)
}
