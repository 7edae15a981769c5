package vision

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/faceauth/internal/config"
	"github.com/kozaktomas/faceauth/internal/constants"
	log "github.com/sirupsen/logrus"
)

// ErrLoaderNotStarted is returned by Wait before Start was called.
var ErrLoaderNotStarted = errors.New("model loading not started")

// LoaderStatus is a point-in-time view of model loading.
type LoaderStatus struct {
	Engine   string     `json:"engine"`
	Models   []string   `json:"models"`
	Ready    bool       `json:"ready"`
	Loading  bool       `json:"loading"`
	Error    string     `json:"error,omitempty"`
	LoadedAt *time.Time `json:"loaded_at,omitempty"`
}

// ModelLoader loads the engine's models once, in the background.
// A failure is recorded and never retried; readiness then stays false
// until the process restarts.
type ModelLoader struct {
	engine   Engine
	manifest config.ModelManifest
	basePath string

	once     sync.Once
	started  atomic.Bool
	ready    atomic.Bool
	done     chan struct{}
	mu       sync.RWMutex
	err      error
	loadedAt time.Time
}

// NewModelLoader creates a loader for the manifest's models under basePath.
func NewModelLoader(engine Engine, manifest config.ModelManifest, basePath string) *ModelLoader {
	return &ModelLoader{
		engine:   engine,
		manifest: manifest,
		basePath: basePath,
		done:     make(chan struct{}),
	}
}

// Start launches loading asynchronously. Later calls are no-ops.
func (l *ModelLoader) Start(ctx context.Context) {
	l.once.Do(func() {
		l.started.Store(true)
		go l.load(ctx)
	})
}

func (l *ModelLoader) load(ctx context.Context) {
	defer close(l.done)

	ctx, cancel := context.WithTimeout(ctx, constants.ModelLoadTimeoutSeconds*time.Second)
	defer cancel()

	logger := log.WithFields(log.Fields{
		"engine": l.engine.Name(),
		"path":   l.basePath,
	})
	logger.Infof("Loading %d face models: %v", len(l.manifest.Models), l.manifest.Names())

	start := time.Now()
	if err := l.engine.LoadModels(ctx, l.basePath, l.manifest); err != nil {
		l.mu.Lock()
		l.err = err
		l.mu.Unlock()
		logger.WithError(err).Error("Error loading models, face capture disabled until restart")
		return
	}

	l.mu.Lock()
	l.loadedAt = time.Now()
	l.mu.Unlock()
	l.ready.Store(true)
	logger.Infof("Face models loaded in %s", time.Since(start).Round(time.Millisecond))
}

// Ready reports whether all models are loaded.
func (l *ModelLoader) Ready() bool {
	return l.ready.Load()
}

// Err returns the recorded load failure, if any.
func (l *ModelLoader) Err() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.err
}

// Wait blocks until loading finished or ctx is done, and returns the load error.
func (l *ModelLoader) Wait(ctx context.Context) error {
	if !l.started.Load() {
		return ErrLoaderNotStarted
	}
	select {
	case <-l.done:
		return l.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the current loading status.
func (l *ModelLoader) Status() LoaderStatus {
	status := LoaderStatus{
		Engine: l.engine.Name(),
		Models: l.manifest.Names(),
		Ready:  l.Ready(),
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.err != nil {
		status.Error = l.err.Error()
	}
	if status.Ready {
		loadedAt := l.loadedAt
		status.LoadedAt = &loadedAt
	}
	status.Loading = l.started.Load() && !status.Ready && l.err == nil
	return status
}
