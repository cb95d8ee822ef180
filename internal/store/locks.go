package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/formdoc/internal/lock"
)

var _ lock.Backend = (*Store)(nil)

// InsertUnique claims the lock row for (namespace, key).
// Uses ON CONFLICT DO NOTHING so a held lock is reported as false rather
// than as a constraint error.
func (s *Store) InsertUnique(ctx context.Context, namespace, key, value string, expiresAt *time.Time) (bool, error) {
	var exp any
	if expiresAt != nil {
		exp = expiresAt.UnixNano()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO locks (namespace, key, value, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO NOTHING
	`, namespace, key, value, exp, s.now().UnixNano())
	if err != nil {
		return false, fmt.Errorf("insert lock %s/%s: %w", namespace, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert lock %s/%s: %w", namespace, key, err)
	}
	return n == 1, nil
}

// DeleteWhere removes the lock row regardless of holder.
func (s *Store) DeleteWhere(ctx context.Context, namespace, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM locks WHERE namespace = ? AND key = ?`, namespace, key)
	if err != nil {
		return fmt.Errorf("delete lock %s/%s: %w", namespace, key, err)
	}
	return nil
}

// DeleteOwned removes the lock row only while it still holds value.
func (s *Store) DeleteOwned(ctx context.Context, namespace, key, value string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM locks WHERE namespace = ? AND key = ? AND value = ?`, namespace, key, value)
	if err != nil {
		return fmt.Errorf("release lock %s/%s: %w", namespace, key, err)
	}
	return nil
}

// DeleteExpired removes the lock row if its lease ran out at or before now.
// Rows without a lease never expire.
func (s *Store) DeleteExpired(ctx context.Context, namespace, key string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM locks
		WHERE namespace = ? AND key = ? AND expires_at IS NOT NULL AND expires_at <= ?
	`, namespace, key, now.UnixNano())
	if err != nil {
		return fmt.Errorf("purge expired lock %s/%s: %w", namespace, key, err)
	}
	return nil
}
