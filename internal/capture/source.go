package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
)

// ErrSourceClosed is returned when frames are pushed to a closed source.
var ErrSourceClosed = errors.New("camera source is closed")

// PushSource receives frames from a remote camera, typically the browser
// webcam, and hands out the most recent one.
type PushSource struct {
	mu    sync.Mutex
	open  bool
	frame []byte
}

// NewPushSource creates a closed push source.
func NewPushSource() *PushSource {
	return &PushSource{}
}

// Open starts accepting frames.
func (p *PushSource) Open(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = true
	p.frame = nil
	return nil
}

// Push stores the latest frame.
func (p *PushSource) Push(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return ErrSourceClosed
	}
	if len(data) == 0 {
		return ErrNoFrame
	}
	p.frame = data
	return nil
}

// Grab returns the latest pushed frame.
func (p *PushSource) Grab(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return nil, ErrSourceClosed
	}
	if p.frame == nil {
		return nil, ErrNoFrame
	}
	return p.frame, nil
}

// Close stops accepting frames and discards the last one.
func (p *PushSource) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = false
	p.frame = nil
	return nil
}

// FileSource serves a still image from disk as the camera feed.
type FileSource struct {
	path string
}

// NewFileSource creates a source reading path on every grab.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Open checks the file exists.
func (f *FileSource) Open(ctx context.Context) error {
	info, err := os.Stat(f.path)
	if err != nil {
		return fmt.Errorf("image file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("image file %s is a directory", f.path)
	}
	return nil
}

// Grab reads the file.
func (f *FileSource) Grab(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("reading image file: %w", err)
	}
	return data, nil
}

// Close is a no-op.
func (f *FileSource) Close() error {
	return nil
}
