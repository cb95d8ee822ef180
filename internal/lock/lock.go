// Package lock provides a per-key mutual-exclusion lock backed by a table
// with a unique constraint on (namespace, key).
//
// Holders never talk to each other: the first writer to insert the row owns
// the lock until it deletes it. Contenders retry with linearly increasing
// backoff and give up after a bounded number of attempts.
//
// Rows can optionally carry a lease. A holder that crashes without releasing
// leaves its row behind; with LeaseTTL > 0 the row expires and the next
// contender purges it before trying to insert. Leases are never renewed, so
// LeaseTTL must exceed the longest guarded operation. A leased row is
// released only by the token that inserted it.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ErrLockTimeout is returned when the lock could not be acquired within
// MaxAttempts.
var ErrLockTimeout = errors.New("lock timeout")

// Namespace is the default namespace for form document locks.
const Namespace = "formdoc"

// Backend is the storage for lock rows.
type Backend interface {
	// InsertUnique inserts a row for (namespace, key). It returns false
	// without error when the row already exists.
	InsertUnique(ctx context.Context, namespace, key, value string, expiresAt *time.Time) (bool, error)

	// DeleteWhere removes the row for (namespace, key), if any.
	DeleteWhere(ctx context.Context, namespace, key string) error

	// DeleteOwned removes the row for (namespace, key) only if it still
	// carries value.
	DeleteOwned(ctx context.Context, namespace, key, value string) error

	// DeleteExpired removes the row for (namespace, key) if it carries an
	// expiry at or before now.
	DeleteExpired(ctx context.Context, namespace, key string, now time.Time) error
}

// Token identifies a held lock.
type Token struct {
	Key   string
	Value string
}

// Locker acquires and releases per-key locks.
type Locker interface {
	Acquire(ctx context.Context, key string) (Token, error)
	Release(ctx context.Context, tok Token)
}

// Options configures a TableLock.
type Options struct {
	Namespace   string
	MaxAttempts int
	BaseDelay   time.Duration
	// LeaseTTL bounds how long a row stays valid. Zero means rows never
	// expire. A non-zero TTL below MinLeaseTTL is raised to it.
	LeaseTTL time.Duration
}

// MinLeaseTTL is the shortest lease a TableLock grants.
const MinLeaseTTL = 5 * time.Second

// DefaultOptions returns 30 attempts with a 100ms linear backoff step and
// no lease.
func DefaultOptions() Options {
	return Options{
		Namespace:   Namespace,
		MaxAttempts: 30,
		BaseDelay:   100 * time.Millisecond,
	}
}

// TableLock implements Locker on top of a Backend.
type TableLock struct {
	backend Backend
	opts    Options
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewTableLock returns a lock over backend. Zero-valued options fall back to
// DefaultOptions.
func NewTableLock(backend Backend, opts Options) *TableLock {
	def := DefaultOptions()
	if opts.Namespace == "" {
		opts.Namespace = def.Namespace
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = def.BaseDelay
	}
	if opts.LeaseTTL > 0 && opts.LeaseTTL < MinLeaseTTL {
		opts.LeaseTTL = MinLeaseTTL
	}
	return &TableLock{
		backend: backend,
		opts:    opts,
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// Acquire blocks until the lock for key is held, the attempts are exhausted
// (ErrLockTimeout) or ctx is done. Attempt n waits BaseDelay*n before the
// next try.
func (l *TableLock) Acquire(ctx context.Context, key string) (Token, error) {
	tok := Token{Key: key, Value: uuid.NewString()}

	for attempt := 1; ; attempt++ {
		var expiresAt *time.Time
		if l.opts.LeaseTTL > 0 {
			now := l.now()
			if err := l.backend.DeleteExpired(ctx, l.opts.Namespace, key, now); err != nil {
				return Token{}, fmt.Errorf("acquire lock %s: purge expired: %w", key, err)
			}
			exp := now.Add(l.opts.LeaseTTL)
			expiresAt = &exp
		}

		ok, err := l.backend.InsertUnique(ctx, l.opts.Namespace, key, tok.Value, expiresAt)
		if err != nil {
			return Token{}, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			if attempt > 1 {
				slog.Debug("lock acquired after contention", "key", key, "attempts", attempt)
			}
			return tok, nil
		}

		if attempt >= l.opts.MaxAttempts {
			slog.Warn("lock acquisition gave up", "key", key, "attempts", attempt)
			return Token{}, fmt.Errorf("%w: %s after %d attempts", ErrLockTimeout, key, attempt)
		}
		if err := l.sleep(ctx, l.opts.BaseDelay*time.Duration(attempt)); err != nil {
			return Token{}, fmt.Errorf("acquire lock %s: %w", key, err)
		}
	}
}

// Release deletes the lock row. Without a lease the row is deleted
// unconditionally; with one, only a row still carrying tok's value is
// deleted, so a holder whose lease expired cannot free a successor's lock.
// Failures are logged, not returned.
func (l *TableLock) Release(ctx context.Context, tok Token) {
	if tok.Key == "" {
		return
	}
	// Release runs after the guarded work, which may have ended because ctx
	// was cancelled. The row must still go.
	ctx = context.WithoutCancel(ctx)
	var err error
	if l.opts.LeaseTTL > 0 {
		err = l.backend.DeleteOwned(ctx, l.opts.Namespace, tok.Key, tok.Value)
	} else {
		err = l.backend.DeleteWhere(ctx, l.opts.Namespace, tok.Key)
	}
	if err != nil {
		slog.Error("lock release failed", "key", tok.Key, "error", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
