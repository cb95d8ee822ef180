package lock

import (
	"context"
	"sync"
	"time"
)

type memoryRow struct {
	value     string
	expiresAt *time.Time
}

// MemoryBackend is an in-process Backend. It only excludes holders within
// one process.
type MemoryBackend struct {
	mu   sync.Mutex
	rows map[[2]string]memoryRow
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{rows: map[[2]string]memoryRow{}}
}

func (m *MemoryBackend) InsertUnique(_ context.Context, namespace, key, value string, expiresAt *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := [2]string{namespace, key}
	if _, held := m.rows[k]; held {
		return false, nil
	}
	m.rows[k] = memoryRow{value: value, expiresAt: expiresAt}
	return true, nil
}

func (m *MemoryBackend) DeleteWhere(_ context.Context, namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, [2]string{namespace, key})
	return nil
}

func (m *MemoryBackend) DeleteOwned(_ context.Context, namespace, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := [2]string{namespace, key}
	if row, ok := m.rows[k]; ok && row.value == value {
		delete(m.rows, k)
	}
	return nil
}

func (m *MemoryBackend) DeleteExpired(_ context.Context, namespace, key string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := [2]string{namespace, key}
	if row, ok := m.rows[k]; ok && row.expiresAt != nil && !row.expiresAt.After(now) {
		delete(m.rows, k)
	}
	return nil
}

// Held reports whether a row exists for (namespace, key).
func (m *MemoryBackend) Held(namespace, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[[2]string{namespace, key}]
	return ok
}
