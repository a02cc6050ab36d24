package kvstore

import (
	"context"
	"sync"

	"github.com/dave-morgan/signalkv/errors"
)

// MemoryEngine is a map-backed Engine used as the zero-config default and in
// tests. Keys enumerate in insertion order, which keeps namespace-filtered
// listings deterministic.
type MemoryEngine struct {
	mu     sync.RWMutex
	values map[string][]byte
	order  []string
	closed bool
}

// NewMemoryEngine creates an empty in-memory engine.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		values: make(map[string][]byte),
	}
}

// MemoryOpener returns an Opener producing a fresh MemoryEngine per instance.
func MemoryOpener() Opener {
	return func(string) (Engine, error) {
		return NewMemoryEngine(), nil
	}
}

func (m *MemoryEngine) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.ErrEngineClosed
	}
	if _, exists := m.values[key]; !exists {
		m.order = append(m.order, key)
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	m.values[key] = stored
	return nil
}

func (m *MemoryEngine) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, errors.ErrEngineClosed
	}
	value, exists := m.values[key]
	if !exists {
		return nil, errors.ErrKeyNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (m *MemoryEngine) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.ErrEngineClosed
	}
	if _, exists := m.values[key]; !exists {
		return nil
	}
	delete(m.values, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemoryEngine) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, errors.ErrEngineClosed
	}
	keys := make([]string, len(m.order))
	copy(keys, m.order)
	return keys, nil
}

func (m *MemoryEngine) Contains(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false, errors.ErrEngineClosed
	}
	_, exists := m.values[key]
	return exists, nil
}

func (m *MemoryEngine) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, errors.ErrEngineClosed
	}
	return len(m.values), nil
}

func (m *MemoryEngine) TotalSize(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, errors.ErrEngineClosed
	}
	var size int64
	for k, v := range m.values {
		size += int64(len(k) + len(v))
	}
	return size, nil
}

func (m *MemoryEngine) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.ErrEngineClosed
	}
	m.values = make(map[string][]byte)
	m.order = nil
	return nil
}

func (m *MemoryEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
