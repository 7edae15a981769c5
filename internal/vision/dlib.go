//go:build dlib

package vision

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/Kagami/go-face"
	"github.com/kozaktomas/faceauth/internal/config"
	"github.com/kozaktomas/faceauth/internal/facematch"
)

func init() {
	Register("dlib", func(cfg *config.Config) (Engine, error) {
		return NewDlibEngine(), nil
	})
}

// DlibEngine runs detection in-process with dlib via go-face.
// go-face only decodes JPEG; frames are JPEG-encoded by the capture session.
type DlibEngine struct {
	rec *face.Recognizer
	mu  sync.Mutex // go-face recognizers are not safe for concurrent use
}

// NewDlibEngine creates an engine with no models loaded.
func NewDlibEngine() *DlibEngine {
	return &DlibEngine{}
}

// Name returns the backend name.
func (e *DlibEngine) Name() string {
	return "dlib"
}

// LoadModels checks the manifest's dlib files exist and opens the recognizer.
func (e *DlibEngine) LoadModels(ctx context.Context, basePath string, manifest config.ModelManifest) error {
	for _, file := range manifest.FilesFor("dlib") {
		if _, err := os.Stat(filepath.Join(basePath, file)); err != nil {
			return fmt.Errorf("model file %s: %w", file, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rec, err := face.NewRecognizer(basePath)
	if err != nil {
		return fmt.Errorf("failed to load models: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec != nil {
		e.rec.Close()
	}
	e.rec = rec
	return nil
}

type dlibResult struct {
	face *face.Face
	err  error
}

// DetectSingleFace recognizes the single best face in a JPEG image.
// The cgo call cannot be interrupted; on cancellation its result is dropped.
func (e *DlibEngine) DetectSingleFace(ctx context.Context, img []byte) (*Detection, error) {
	resultCh := make(chan dlibResult, 1)
	go func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.rec == nil {
			resultCh <- dlibResult{err: ErrModelsNotLoaded}
			return
		}
		f, err := e.rec.RecognizeSingle(img)
		resultCh <- dlibResult{face: f, err: err}
	}()

	var res dlibResult
	select {
	case res = <-resultCh:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if res.err != nil {
		if res.err == ErrModelsNotLoaded {
			return nil, res.err
		}
		return nil, fmt.Errorf("face recognition failed: %w", res.err)
	}
	if res.face == nil {
		return nil, ErrNoFaceDetected
	}

	descriptor := make(facematch.Descriptor, len(res.face.Descriptor))
	copy(descriptor, res.face.Descriptor[:])

	return &Detection{
		Descriptor: descriptor,
		Landmarks:  res.face.Shapes,
		Box:        res.face.Rectangle,
		Score:      1.0, // go-face doesn't provide confidence
	}, nil
}

// Distance returns the euclidean distance between two 128-d descriptors.
func (e *DlibEngine) Distance(a, b facematch.Descriptor) float64 {
	var da, db face.Descriptor
	if len(a) != len(da) || len(b) != len(db) {
		return math.Inf(1)
	}
	copy(da[:], a)
	copy(db[:], b)
	return math.Sqrt(face.SquaredEuclideanDistance(da, db))
}

// Close releases the recognizer.
func (e *DlibEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec != nil {
		e.rec.Close()
		e.rec = nil
	}
	return nil
}
