package kv

import (
	"context"
	"encoding/json"
	"sync"
)

// Memory is an in-process Store. Documents are kept JSON-encoded so callers
// never share memory with what is stored, matching the remote backends.
type Memory struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{docs: map[string][]byte{}}
}

func (m *Memory) Get(_ context.Context, key string, out any) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	m.mu.RLock()
	b, ok := m.docs[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, out)
}

func (m *Memory) Set(_ context.Context, key string, v any) error {
	if key == "" {
		return ErrEmptyKey
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.docs[key] = b
	m.mu.Unlock()
	return nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.docs[key]
	return ok, nil
}

// Keys lists stored keys. Intended for tests and debugging.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.docs))
	for k := range m.docs {
		out = append(out, k)
	}
	return out
}
