// Package mock provides a scriptable vision.Engine for testing.
package mock

import (
	"context"
	"sync"

	"github.com/kozaktomas/faceauth/internal/config"
	"github.com/kozaktomas/faceauth/internal/facematch"
	"github.com/kozaktomas/faceauth/internal/vision"
)

// MockEngine is a mock implementation of vision.Engine
type MockEngine struct {
	mu          sync.Mutex
	loaded      bool
	detectCalls int
	loadCalls   int

	// Detection is returned by DetectSingleFace; nil means no face found
	Detection *vision.Detection

	// LoadGate, when set, blocks LoadModels until closed or ctx is done
	LoadGate chan struct{}
	// DetectGate, when set, blocks DetectSingleFace until closed or ctx is done
	DetectGate chan struct{}

	// Error injection
	LoadError   error
	DetectError error
}

// NewMockEngine creates a mock engine that detects the given descriptor.
func NewMockEngine(descriptor facematch.Descriptor) *MockEngine {
	m := &MockEngine{}
	if descriptor != nil {
		m.Detection = &vision.Detection{Descriptor: descriptor}
	}
	return m
}

// Name returns the backend name.
func (m *MockEngine) Name() string {
	return "mock"
}

// LoadModels marks the engine loaded unless LoadError is set.
func (m *MockEngine) LoadModels(ctx context.Context, basePath string, manifest config.ModelManifest) error {
	m.mu.Lock()
	m.loadCalls++
	gate := m.LoadGate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadError != nil {
		return m.LoadError
	}
	m.loaded = true
	return nil
}

// DetectSingleFace returns the configured detection.
func (m *MockEngine) DetectSingleFace(ctx context.Context, img []byte) (*vision.Detection, error) {
	m.mu.Lock()
	m.detectCalls++
	gate := m.DetectGate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded {
		return nil, vision.ErrModelsNotLoaded
	}
	if m.DetectError != nil {
		return nil, m.DetectError
	}
	if m.Detection == nil {
		return nil, vision.ErrNoFaceDetected
	}
	det := *m.Detection
	return &det, nil
}

// Distance returns the euclidean distance.
func (m *MockEngine) Distance(a, b facematch.Descriptor) float64 {
	return facematch.EuclideanDistance(a, b)
}

// Close is a no-op.
func (m *MockEngine) Close() error {
	return nil
}

// SetDetection replaces the detection returned by later calls.
func (m *MockEngine) SetDetection(det *vision.Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Detection = det
}

// DetectCalls returns how many times DetectSingleFace was called.
func (m *MockEngine) DetectCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detectCalls
}

// LoadCalls returns how many times LoadModels was called.
func (m *MockEngine) LoadCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadCalls
}
