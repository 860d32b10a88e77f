package persist

import (
	"context"
	"sync"
)

// MemoryStorage keeps blobs for the lifetime of the process.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

func (m *MemoryStorage) Load(_ context.Context, namespace string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.data[namespace]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStorage) Save(_ context.Context, namespace string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[namespace] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, namespace)
	return nil
}

func (m *MemoryStorage) Close() error { return nil }
