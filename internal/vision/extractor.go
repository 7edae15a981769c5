package vision

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/kozaktomas/faceauth/internal/capture"
	"github.com/kozaktomas/faceauth/internal/overlay"
)

// Extraction is a detection together with its overlay rendering.
type Extraction struct {
	*Detection
	// Overlay is a PNG the size of the source frame with the face geometry drawn on it.
	Overlay []byte
	Width   int
	Height  int
}

// Extractor turns captured frames into descriptors.
type Extractor struct {
	engine Engine
}

// NewExtractor creates an extractor on top of engine.
func NewExtractor(engine Engine) *Extractor {
	return &Extractor{engine: engine}
}

// Extract runs single-face detection on frame. It returns ErrNoFaceDetected
// when the engine finds nothing; no overlay is produced in that case.
func (x *Extractor) Extract(ctx context.Context, frame *capture.Frame) (*Extraction, error) {
	if frame == nil || len(frame.Data) == 0 {
		return nil, errors.New("empty frame")
	}

	det, err := x.engine.DetectSingleFace(ctx, frame.Data)
	if err != nil {
		if errors.Is(err, ErrNoFaceDetected) || errors.Is(err, ErrModelsNotLoaded) {
			return nil, err
		}
		return nil, fmt.Errorf("face detection failed: %w", err)
	}
	if len(det.Descriptor) == 0 {
		return nil, ErrNoFaceDetected
	}

	// engines may report a box partly or wholly outside the picture
	det.Box = det.Box.Intersect(image.Rect(0, 0, frame.Width, frame.Height))

	png, err := overlay.EncodePNG(frame.Width, frame.Height, det.Box, det.Landmarks)
	if err != nil {
		return nil, err
	}

	return &Extraction{
		Detection: det,
		Overlay:   png,
		Width:     frame.Width,
		Height:    frame.Height,
	}, nil
}
