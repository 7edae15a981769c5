package database

import (
	"context"
	"fmt"
	"sync"
)

var (
	backendName    string
	keyValueStore  func() KeyValueStore
	templateMirror func() TemplateMirror
	initialized    bool
	providerMu     sync.RWMutex
)

// RegisterBackend registers the key-value store constructor of the active
// storage backend. This is called from cmd to avoid import cycles.
func RegisterBackend(name string, kv func() KeyValueStore) {
	providerMu.Lock()
	defer providerMu.Unlock()
	backendName = name
	keyValueStore = kv
	initialized = true
}

// RegisterTemplateMirror registers an optional mirror for saved templates.
func RegisterTemplateMirror(mirror func() TemplateMirror) {
	providerMu.Lock()
	defer providerMu.Unlock()
	templateMirror = mirror
}

// IsInitialized returns whether a storage backend has been registered.
func IsInitialized() bool {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return initialized
}

// BackendName returns the name of the registered backend.
func BackendName() string {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return backendName
}

// GetKeyValueStore returns the key-value store of the registered backend
func GetKeyValueStore(ctx context.Context) (KeyValueStore, error) {
	providerMu.RLock()
	defer providerMu.RUnlock()
	if !initialized {
		return nil, fmt.Errorf("storage backend not initialized: STORAGE_BACKEND is required")
	}
	if keyValueStore == nil {
		return nil, fmt.Errorf("key-value store not registered")
	}
	return keyValueStore(), nil
}

// GetTemplateStore returns a template store over the registered backend
func GetTemplateStore(ctx context.Context) (TemplateStore, error) {
	kv, err := GetKeyValueStore(ctx)
	if err != nil {
		return nil, err
	}
	store := NewKVTemplateStore(kv)

	providerMu.RLock()
	mirror := templateMirror
	providerMu.RUnlock()
	if mirror != nil {
		store.WithMirror(mirror())
	}
	return store, nil
}

// GetUserStore returns a current user store over the registered backend
func GetUserStore(ctx context.Context) (*UserStore, error) {
	kv, err := GetKeyValueStore(ctx)
	if err != nil {
		return nil, err
	}
	return NewUserStore(kv), nil
}
