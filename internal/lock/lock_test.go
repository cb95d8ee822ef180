package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordSleeps replaces the real sleep so tests run instantly.
func recordSleeps(l *TableLock) *[]time.Duration {
	var mu sync.Mutex
	var waits []time.Duration
	l.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		waits = append(waits, d)
		mu.Unlock()
		return ctx.Err()
	}
	return &waits
}

func TestAcquireRelease(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	l := NewTableLock(backend, DefaultOptions())

	tok, err := l.Acquire(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "f1", tok.Key)
	assert.NotEmpty(t, tok.Value)
	assert.True(t, backend.Held(Namespace, "f1"))

	// Other keys are independent.
	other, err := l.Acquire(ctx, "f2")
	require.NoError(t, err)

	l.Release(ctx, tok)
	assert.False(t, backend.Held(Namespace, "f1"))
	assert.True(t, backend.Held(Namespace, "f2"))
	l.Release(ctx, other)
}

func TestAcquire_TimeoutWithLinearBackoff(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	l := NewTableLock(backend, Options{MaxAttempts: 4, BaseDelay: 10 * time.Millisecond})
	waits := recordSleeps(l)

	_, err := l.Acquire(ctx, "f1")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "f1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond}, *waits)
}

func TestAcquire_SucceedsWhenHolderReleases(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	l := NewTableLock(backend, DefaultOptions())

	held, err := l.Acquire(ctx, "f1")
	require.NoError(t, err)

	attempts := 0
	l.sleep = func(context.Context, time.Duration) error {
		attempts++
		if attempts == 3 {
			l.Release(ctx, held)
		}
		return nil
	}

	tok, err := l.Acquire(ctx, "f1")
	require.NoError(t, err)
	assert.NotEqual(t, held.Value, tok.Value)
	assert.Equal(t, 3, attempts)
}

func TestAcquire_ContextCancelled(t *testing.T) {
	backend := NewMemoryBackend()
	l := NewTableLock(backend, Options{MaxAttempts: 100, BaseDelay: time.Hour})

	_, err := l.Acquire(context.Background(), "f1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Acquire(ctx, "f1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrLockTimeout)
}

func TestAcquire_ExpiredLeaseIsPurged(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	l := NewTableLock(backend, Options{MaxAttempts: 2, BaseDelay: time.Millisecond, LeaseTTL: time.Minute})
	recordSleeps(l)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	// Holder crashes without releasing.
	_, err := l.Acquire(ctx, "f1")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "f1")
	assert.ErrorIs(t, err, ErrLockTimeout)

	now = now.Add(2 * time.Minute)
	_, err = l.Acquire(ctx, "f1")
	assert.NoError(t, err)
}

func TestRelease_ExpiredHolderKeepsSuccessorLock(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	opts := Options{MaxAttempts: 1, BaseDelay: time.Millisecond, LeaseTTL: time.Minute}
	a := NewTableLock(backend, opts)
	c := NewTableLock(backend, opts)
	third := NewTableLock(backend, opts)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, l := range []*TableLock{a, c, third} {
		l.now = func() time.Time { return now }
	}

	tokA, err := a.Acquire(ctx, "f1")
	require.NoError(t, err)

	// A overruns its lease and C takes over.
	now = now.Add(2 * time.Minute)
	tokC, err := c.Acquire(ctx, "f1")
	require.NoError(t, err)

	a.Release(ctx, tokA)
	assert.True(t, backend.Held(Namespace, "f1"), "C still holds the lock")

	_, err = third.Acquire(ctx, "f1")
	assert.ErrorIs(t, err, ErrLockTimeout)

	c.Release(ctx, tokC)
	assert.False(t, backend.Held(Namespace, "f1"))
}

func TestNewTableLock_RaisesShortLease(t *testing.T) {
	l := NewTableLock(NewMemoryBackend(), Options{LeaseTTL: time.Second})
	assert.Equal(t, MinLeaseTTL, l.opts.LeaseTTL)

	l = NewTableLock(NewMemoryBackend(), DefaultOptions())
	assert.Zero(t, l.opts.LeaseTTL)
}

func TestAcquire_NoLeaseNeverExpires(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	_, err := backend.InsertUnique(ctx, Namespace, "f1", "stale", nil)
	require.NoError(t, err)
	require.NoError(t, backend.DeleteExpired(ctx, Namespace, "f1", time.Now().Add(24*time.Hour)))
	assert.True(t, backend.Held(Namespace, "f1"))
}

type failingBackend struct {
	*MemoryBackend
	insertErr error
	deleteErr error
}

func (f failingBackend) InsertUnique(ctx context.Context, ns, key, value string, exp *time.Time) (bool, error) {
	if f.insertErr != nil {
		return false, f.insertErr
	}
	return f.MemoryBackend.InsertUnique(ctx, ns, key, value, exp)
}

func (f failingBackend) DeleteWhere(ctx context.Context, ns, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.MemoryBackend.DeleteWhere(ctx, ns, key)
}

func TestAcquire_BackendErrorPropagates(t *testing.T) {
	boom := errors.New("database is gone")
	l := NewTableLock(failingBackend{MemoryBackend: NewMemoryBackend(), insertErr: boom}, DefaultOptions())

	_, err := l.Acquire(context.Background(), "f1")
	assert.ErrorIs(t, err, boom)
}

func TestRelease_SwallowsErrors(t *testing.T) {
	backend := failingBackend{MemoryBackend: NewMemoryBackend(), deleteErr: errors.New("read-only")}
	l := NewTableLock(backend, DefaultOptions())

	tok, err := l.Acquire(context.Background(), "f1")
	require.NoError(t, err)
	assert.NotPanics(t, func() { l.Release(context.Background(), tok) })
	assert.NotPanics(t, func() { l.Release(context.Background(), Token{}) })
}

func TestMutualExclusion(t *testing.T) {
	backend := NewMemoryBackend()
	l := NewTableLock(backend, Options{MaxAttempts: 1000, BaseDelay: 50 * time.Microsecond})

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				tok, err := l.Acquire(context.Background(), "f1")
				if !assert.NoError(t, err) {
					return
				}
				n := inside.Add(1)
				for {
					m := maxInside.Load()
					if n <= m || maxInside.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(10 * time.Microsecond)
				inside.Add(-1)
				l.Release(context.Background(), tok)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
	assert.False(t, backend.Held(Namespace, "f1"))
}
