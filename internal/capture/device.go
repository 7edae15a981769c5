//go:build gocv

package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// DeviceSource reads frames from a local camera through OpenCV.
type DeviceSource struct {
	device int
	mu     sync.Mutex
	webcam *gocv.VideoCapture
}

// NewDeviceSource creates a source for the camera at index device.
func NewDeviceSource(device int) (Source, error) {
	return &DeviceSource{device: device}, nil
}

// Open acquires the camera handle.
func (d *DeviceSource) Open(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.webcam != nil {
		return nil
	}
	webcam, err := gocv.OpenVideoCapture(d.device)
	if err != nil {
		return fmt.Errorf("opening camera %d: %w", d.device, err)
	}
	d.webcam = webcam
	return nil
}

// Grab reads one frame and encodes it as JPEG.
func (d *DeviceSource) Grab(ctx context.Context) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.webcam == nil {
		return nil, ErrSourceClosed
	}

	img := gocv.NewMat()
	defer img.Close()

	if ok := d.webcam.Read(&img); !ok || img.Empty() {
		return nil, errors.New("camera returned an empty frame")
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), nil
}

// Close releases the camera handle.
func (d *DeviceSource) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.webcam == nil {
		return nil
	}
	err := d.webcam.Close()
	d.webcam = nil
	if err != nil {
		return fmt.Errorf("closing camera: %w", err)
	}
	return nil
}
