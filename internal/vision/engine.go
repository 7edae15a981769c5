// Package vision wraps the face inference backends behind one Engine contract:
// single-face detection with landmarks and descriptor, plus descriptor distance.
package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sort"
	"sync"

	"github.com/kozaktomas/faceauth/internal/config"
	"github.com/kozaktomas/faceauth/internal/facematch"
)

var (
	// ErrNoFaceDetected is returned when the engine finds no face in the image.
	ErrNoFaceDetected = errors.New("no face detected")

	// ErrModelsNotLoaded is returned when detection is attempted before LoadModels succeeded.
	ErrModelsNotLoaded = errors.New("face models not loaded")
)

// Detection is a single detected face.
type Detection struct {
	Descriptor facematch.Descriptor `json:"descriptor"`
	Landmarks  []image.Point        `json:"landmarks"`
	Box        image.Rectangle      `json:"box"`
	Score      float64              `json:"score"`
}

// Engine is the face inference capability the workflows depend on.
type Engine interface {
	// Name identifies the backend (remote, dlib, ...).
	Name() string
	// LoadModels makes the manifest's models available from basePath.
	LoadModels(ctx context.Context, basePath string, manifest config.ModelManifest) error
	// DetectSingleFace returns the best single face in an encoded image,
	// or ErrNoFaceDetected.
	DetectSingleFace(ctx context.Context, img []byte) (*Detection, error)
	// Distance compares two descriptors of equal length.
	Distance(a, b facematch.Descriptor) float64
	// Close releases backend resources.
	Close() error
}

// Factory creates an engine from configuration.
type Factory func(cfg *config.Config) (Engine, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// Register makes an engine backend available under name.
// Backends needing cgo register themselves from files behind build tags.
func Register(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Available returns the registered backend names.
func Available() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates the engine selected by VISION_ENGINE.
func New(cfg *config.Config) (Engine, error) {
	factoriesMu.RLock()
	f, ok := factories[cfg.Vision.Engine]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("vision engine %q not available (compiled in: %v)", cfg.Vision.Engine, Available())
	}
	engine, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating %s engine: %w", cfg.Vision.Engine, err)
	}
	return engine, nil
}

func init() {
	Register("remote", func(cfg *config.Config) (Engine, error) {
		return NewRemoteEngine(cfg.Vision.URL), nil
	})
}
