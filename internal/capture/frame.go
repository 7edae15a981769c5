// Package capture manages the camera lifecycle and produces still frames
// ready for face detection.
package capture

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/kozaktomas/faceauth/internal/constants"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var (
	// ErrInvalidDataURL is returned for malformed data URLs.
	ErrInvalidDataURL = errors.New("invalid image data URL")
	// ErrFrameTooLarge is returned for pictures above constants.MaxFramePixels.
	ErrFrameTooLarge = errors.New("frame dimensions too large")
)

// CheckFrame reads only the image header. It rejects unknown formats and
// pictures whose declared size exceeds constants.MaxFramePixels, before any
// pixel memory is allocated.
func CheckFrame(data []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("invalid frame dimensions %dx%d", cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > constants.MaxFramePixels {
		return fmt.Errorf("%w: %dx%d", ErrFrameTooLarge, cfg.Width, cfg.Height)
	}
	return nil
}

// Frame is a single still image taken from a source.
// Data is always JPEG so every vision backend can consume it.
type Frame struct {
	Data       []byte
	Image      image.Image
	Width      int
	Height     int
	CapturedAt time.Time
}

// NewFrame decodes raw image bytes, downscales them to fit maxSize
// (width or height) keeping aspect ratio, and re-encodes as JPEG.
func NewFrame(data []byte, maxSize int) (*Frame, error) {
	if err := CheckFrame(data); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	img = fit(img, maxSize)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	bounds := img.Bounds()
	return &Frame{
		Data:       buf.Bytes(),
		Image:      img,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		CapturedAt: time.Now(),
	}, nil
}

// fit scales img down so neither side exceeds maxSize. maxSize <= 0 disables scaling.
func fit(img image.Image, maxSize int) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if maxSize <= 0 || (width <= maxSize && height <= maxSize) {
		return img
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = int(float64(height) * float64(maxSize) / float64(width))
	} else {
		newHeight = maxSize
		newWidth = int(float64(width) * float64(maxSize) / float64(height))
	}

	resized := image.NewRGBA(image.Rect(0, 0, max(newWidth, 1), max(newHeight, 1)))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
	return resized
}

// DecodeDataURL extracts the image bytes from a "data:image/...;base64," URL,
// the format browser webcam screenshots are delivered in.
func DecodeDataURL(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	header, payload, ok := strings.Cut(s, ",")
	if !ok || !strings.HasPrefix(header, "data:image/") || !strings.HasSuffix(header, ";base64") {
		return nil, ErrInvalidDataURL
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return data, nil
}
