// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sync"

	"github.com/kozaktomas/faceauth/internal/facematch"
)

// MockKeyValueStore is a mock implementation of database.KeyValueStore
type MockKeyValueStore struct {
	mu     sync.RWMutex
	values map[string][]byte
	sets   int

	// Error injection
	GetError    error
	SetError    error
	DeleteError error
}

// NewMockKeyValueStore creates a new empty mock key-value store
func NewMockKeyValueStore() *MockKeyValueStore {
	return &MockKeyValueStore{
		values: make(map[string][]byte),
	}
}

// Get returns the value stored under key
func (m *MockKeyValueStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

// Set stores value under key
func (m *MockKeyValueStore) Set(ctx context.Context, key string, value []byte) error {
	if m.SetError != nil {
		return m.SetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	m.sets++
	return nil
}

// Delete removes key
func (m *MockKeyValueStore) Delete(ctx context.Context, key string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Keys returns the number of stored keys
func (m *MockKeyValueStore) Keys() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

// SetCalls returns how many successful writes happened
func (m *MockKeyValueStore) SetCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sets
}

// MockTemplateMirror is a mock implementation of database.TemplateMirror
type MockTemplateMirror struct {
	mu       sync.Mutex
	mirrored []facematch.FaceTemplate

	// Error injection
	MirrorError error
}

// NewMockTemplateMirror creates a new mock mirror
func NewMockTemplateMirror() *MockTemplateMirror {
	return &MockTemplateMirror{}
}

// MirrorTemplate records the template
func (m *MockTemplateMirror) MirrorTemplate(ctx context.Context, tmpl *facematch.FaceTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mirrored = append(m.mirrored, *tmpl)
	return m.MirrorError
}

// Mirrored returns all templates received so far
func (m *MockTemplateMirror) Mirrored() []facematch.FaceTemplate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]facematch.FaceTemplate(nil), m.mirrored...)
}
