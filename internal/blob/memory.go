package blob

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

type memoryBlob struct {
	data     []byte
	owner    string
	touched  time.Time
	versions map[int64][]byte
	nextSeq  int64
}

// MemoryStore is an in-process Store and VersionPurger. When versioning is
// enabled every WriteAtomic keeps the previous content as a version, so the
// purge path can be exercised without a database.
type MemoryStore struct {
	mu         sync.RWMutex
	blobs      map[string]*memoryBlob
	versioning bool
}

// NewMemoryStore returns an empty store.
func NewMemoryStore(versioning bool) *MemoryStore {
	return &MemoryStore{blobs: map[string]*memoryBlob{}, versioning: versioning}
}

func (m *MemoryStore) Read(_ context.Context, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[id]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", id, ErrNotFound)
	}
	return append([]byte(nil), b.data...), nil
}

func (m *MemoryStore) WriteAtomic(_ context.Context, id string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[id]
	if !ok {
		return fmt.Errorf("write %s: %w", id, ErrNotFound)
	}
	if m.versioning {
		if b.versions == nil {
			b.versions = map[int64][]byte{}
		}
		b.versions[b.nextSeq] = b.data
		b.nextSeq++
	}
	b.data = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStore) Touch(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[id]
	if !ok {
		return fmt.Errorf("touch %s: %w", id, ErrNotFound)
	}
	b.touched = time.Now()
	return nil
}

func (m *MemoryStore) Exists(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[id]
	return ok, nil
}

func (m *MemoryStore) Create(_ context.Context, id, owner string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[id]; ok {
		return fmt.Errorf("create %s: %w", id, ErrExists)
	}
	m.blobs[id] = &memoryBlob{data: append([]byte(nil), data...), owner: owner, touched: time.Now()}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[id]; !ok {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	delete(m.blobs, id)
	return nil
}

func (m *MemoryStore) Owner(_ context.Context, id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[id]
	if !ok {
		return "", fmt.Errorf("owner %s: %w", id, ErrNotFound)
	}
	return b.owner, nil
}

// ListVersions returns the retained versions of id, oldest first.
func (m *MemoryStore) ListVersions(_ context.Context, id string) ([]Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[id]
	if !ok {
		return nil, nil
	}
	out := make([]Version, 0, len(b.versions))
	for seq := range b.versions {
		out = append(out, Version{BlobID: id, Seq: seq})
	}
	slices.SortFunc(out, func(a, b Version) int { return cmp.Compare(a.Seq, b.Seq) })
	return out, nil
}

// DeleteVersion drops a version. Unknown versions are ignored.
func (m *MemoryStore) DeleteVersion(_ context.Context, v Version) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.blobs[v.BlobID]; ok {
		delete(b.versions, v.Seq)
	}
	return nil
}

// Touched returns when id was last touched or created.
func (m *MemoryStore) Touched(id string) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[id]
	if !ok {
		return time.Time{}, false
	}
	return b.touched, true
}
