package blobstore

import (
	"bytes"
	"context"
	"iter"
	"maps"
	"slices"
	"strings"
	"sync"
)

// MemoryStore keeps blobs in a map. It backs tests and the mem:// store of
// the CLI, and is safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]byteBlob
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: map[string]byteBlob{}}
}

// Open returns a handle on the content stored under name. Later writes to
// name do not affect an open handle.
func (m *MemoryStore) Open(_ context.Context, name string) (Blob, error) {
	m.mu.RLock()
	b, ok := m.blobs[name]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return b, nil
}

// Put stores a copy of data under name.
func (m *MemoryStore) Put(_ context.Context, name string, data []byte) error {
	b := byteBlob(bytes.Clone(data))

	m.mu.Lock()
	m.blobs[name] = b
	m.mu.Unlock()
	return nil
}

// Delete removes name if present.
func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	delete(m.blobs, name)
	m.mu.Unlock()
	return nil
}

// List returns the names starting with prefix in ascending order.
func (m *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Sorted(withPrefix(maps.Keys(m.blobs), prefix)), nil
}

func withPrefix(names iter.Seq[string], prefix string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for n := range names {
			if strings.HasPrefix(n, prefix) && !yield(n) {
				return
			}
		}
	}
}
