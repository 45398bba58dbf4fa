// Package storagetest provides an in-memory blob store for exercising the
// pipeline without an object store.
package storagetest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/NayerAli/v2-ocr-sub002/internal/core"
	"github.com/NayerAli/v2-ocr-sub002/internal/storage"
)

// MemoryStore implements core.BlobStore over a map. It is safe for
// concurrent use.
type MemoryStore struct {
	mu           sync.RWMutex
	objects      map[string][]byte
	contentTypes map[string]string

	putErr error
	getErr error
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
	}
}

// SetPutErr makes every Put fail with err until reset with nil.
func (m *MemoryStore) SetPutErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putErr = err
}

// SetGetErr makes every Get fail with err until reset with nil.
func (m *MemoryStore) SetGetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getErr = err
}

// Put implements core.BlobStore.
func (m *MemoryStore) Put(_ context.Context, params core.PutBlobParams) error {
	if params.Path == "" {
		return fmt.Errorf("blob path is required")
	}
	if params.Reader == nil {
		return fmt.Errorf("blob reader is required")
	}

	data, err := io.ReadAll(params.Reader)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.objects[params.Path] = data
	m.contentTypes[params.Path] = params.ContentType
	return nil
}

// Get implements core.BlobStore.
func (m *MemoryStore) Get(_ context.Context, path string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.objects[path]
	if !ok {
		return nil, fmt.Errorf("get object %s: %w", path, storage.ErrBlobNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete implements core.BlobStore. Deleting a missing key is not an error.
func (m *MemoryStore) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, path)
	delete(m.contentTypes, path)
	return nil
}

// DeletePrefix implements core.BlobStore.
func (m *MemoryStore) DeletePrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			delete(m.objects, key)
			delete(m.contentTypes, key)
		}
	}
	return nil
}

// PresignGet implements core.BlobStore with a fake scheme.
func (m *MemoryStore) PresignGet(_ context.Context, path string, _ time.Duration) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.objects[path]; !ok {
		return "", fmt.Errorf("presign object %s: %w", path, storage.ErrBlobNotFound)
	}
	return "memory://" + path, nil
}

// Object returns a stored object's bytes, or nil when absent.
func (m *MemoryStore) Object(path string) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[path]
	if !ok {
		return nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out
}

// ContentType returns a stored object's content type.
func (m *MemoryStore) ContentType(path string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.contentTypes[path]
}

// Exists reports whether a key is present.
func (m *MemoryStore) Exists(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[path]
	return ok
}

// Keys returns all stored keys in sorted order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
