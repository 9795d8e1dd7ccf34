package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// memStore is an in-memory ObjectStore for stage tests. Latest uses put
// order as the recency order.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	order   []string
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (m *memStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.objects[key]; !exists {
		m.order = append(m.order, key)
	}
	m.objects[key] = data
	return nil
}

func (m *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such key: %s", key)
	}
	return data, nil
}

func (m *memStore) Latest(ctx context.Context, prefix string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest := ""
	for _, key := range m.order {
		if strings.HasPrefix(key, prefix) {
			latest = key
		}
	}
	return latest, nil
}
