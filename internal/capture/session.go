package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrCameraInactive is returned when a frame is requested while the camera is off.
	ErrCameraInactive = errors.New("camera is not active")

	// ErrNoFrame is returned when the source has not produced a frame yet.
	ErrNoFrame = errors.New("no frame available")
)

// Source is a camera that can be opened, read one still at a time, and released.
type Source interface {
	Open(ctx context.Context) error
	Grab(ctx context.Context) ([]byte, error)
	Close() error
}

// Session owns a Source while the camera is on. Every Start begins a new
// generation with its own lifetime context; Stop cancels that context and
// releases the source, so work bound to an older generation is abandoned.
type Session struct {
	source  Source
	maxSize int

	mu     sync.Mutex
	active bool
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSession creates an inactive session over source.
func NewSession(source Source, maxSize int) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return &Session{
		source:  source,
		maxSize: maxSize,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start activates the camera. Starting an active session is a no-op.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return nil
	}

	if err := s.source.Open(ctx); err != nil {
		// Release whatever the source may have acquired before failing.
		_ = s.source.Close()
		return fmt.Errorf("opening camera: %w", err)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.active = true
	s.gen++
	return nil
}

// Stop deactivates the camera, cancels in-flight work and releases the source.
// Stopping an inactive session is a no-op.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return nil
	}

	s.cancel()
	s.active = false
	s.gen++

	if err := s.source.Close(); err != nil {
		return fmt.Errorf("releasing camera: %w", err)
	}
	return nil
}

// Active reports whether the camera is on.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Generation identifies the current activation. It changes on every Start and Stop.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Bind derives a context that is cancelled when parent is done or the
// session is stopped, whichever comes first. The returned generation lets
// callers check the session was not restarted before publishing results.
func (s *Session) Bind(parent context.Context) (context.Context, context.CancelFunc, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return nil, nil, 0, ErrCameraInactive
	}

	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}, s.gen, nil
}

// CaptureFrame returns one still frame from the live source.
func (s *Session) CaptureFrame(ctx context.Context) (*Frame, error) {
	bound, cancel, _, err := s.Bind(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	data, err := s.source.Grab(bound)
	if err != nil {
		return nil, fmt.Errorf("grabbing frame: %w", err)
	}
	if err := bound.Err(); err != nil {
		return nil, err
	}
	return NewFrame(data, s.maxSize)
}
