package flow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/faceauth/internal/capture"
	"github.com/kozaktomas/faceauth/internal/constants"
	log "github.com/sirupsen/logrus"
)

// ErrPushUnsupported is returned when frames are pushed to a flow reading a local camera.
var ErrPushUnsupported = errors.New("flow camera does not accept pushed frames")

// SourceFactory creates the camera for a new flow.
type SourceFactory func() (capture.Source, error)

// ManagerOptions configure a Manager.
type ManagerOptions struct {
	// NewSource defaults to a push source fed by the browser webcam.
	NewSource    SourceFactory
	MaxFrameSize int
	IdleTimeout  time.Duration
}

type managedFlow struct {
	ctrl   *Controller
	source capture.Source
	events *Broadcaster
}

// Manager keeps the open flows by ID.
type Manager struct {
	deps Deps
	opts ManagerOptions

	flows map[string]*managedFlow
	mu    sync.RWMutex
}

// NewManager creates a manager. deps.Language is replaced per flow.
func NewManager(deps Deps, opts ManagerOptions) *Manager {
	if opts.NewSource == nil {
		opts.NewSource = func() (capture.Source, error) {
			return capture.NewPushSource(), nil
		}
	}
	if opts.MaxFrameSize <= 0 {
		opts.MaxFrameSize = constants.MaxFrameSize
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = constants.DefaultFlowIdleMinutes * time.Minute
	}
	return &Manager{
		deps:  deps,
		opts:  opts,
		flows: make(map[string]*managedFlow),
	}
}

// Create opens a new idle flow. language is the client's Accept-Language.
func (m *Manager) Create(workflow Workflow, language string) (*Controller, error) {
	source, err := m.opts.NewSource()
	if err != nil {
		return nil, err
	}

	deps := m.deps
	deps.Language = language

	id := uuid.New().String()
	ctrl := NewController(id, workflow, capture.NewSession(source, m.opts.MaxFrameSize), deps)
	mf := &managedFlow{ctrl: ctrl, source: source, events: &Broadcaster{}}
	ctrl.onChange = func(s SessionState) {
		mf.events.SendEvent(Event{Type: EventState, Data: s})
	}

	m.mu.Lock()
	m.flows[id] = mf
	m.mu.Unlock()

	log.WithFields(log.Fields{"flow_id": id, "workflow": workflow}).Debug("Flow created")
	return ctrl, nil
}

func (m *Manager) lookup(id string) (*managedFlow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mf, ok := m.flows[id]
	if !ok {
		return nil, ErrFlowNotFound
	}
	return mf, nil
}

// Get returns the flow with id.
func (m *Manager) Get(id string) (*Controller, error) {
	mf, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return mf.ctrl, nil
}

// Events returns the broadcaster of a flow's state changes.
func (m *Manager) Events(id string) (*Broadcaster, error) {
	mf, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return mf.events, nil
}

// PushFrame hands a webcam still to the flow's camera.
func (m *Manager) PushFrame(id string, data []byte) error {
	mf, err := m.lookup(id)
	if err != nil {
		return err
	}
	push, ok := mf.source.(*capture.PushSource)
	if !ok {
		return ErrPushUnsupported
	}
	if !mf.ctrl.Camera().Active() {
		return ErrCameraInactive
	}
	return push.Push(data)
}

// Delete closes a flow, releasing its camera, and forgets it.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	mf, ok := m.flows[id]
	delete(m.flows, id)
	m.mu.Unlock()
	if !ok {
		return ErrFlowNotFound
	}
	return m.close(mf)
}

func (m *Manager) close(mf *managedFlow) error {
	err := mf.ctrl.Close()
	mf.events.CloseAll(Event{Type: EventClosed, Message: "Flow closed"})
	return err
}

// Len returns the number of open flows.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.flows)
}

// ExpireIdle closes flows whose state has not changed since before now minus
// the idle timeout, and returns how many were closed.
func (m *Manager) ExpireIdle(now time.Time) int {
	cutoff := now.Add(-m.opts.IdleTimeout)

	m.mu.Lock()
	var expired []*managedFlow
	for id, mf := range m.flows {
		if mf.ctrl.lastActivity().Before(cutoff) {
			expired = append(expired, mf)
			delete(m.flows, id)
		}
	}
	m.mu.Unlock()

	for _, mf := range expired {
		if err := m.close(mf); err != nil {
			log.WithError(err).WithField("flow_id", mf.ctrl.ID()).Warn("Failed to close idle flow")
		}
	}
	if len(expired) > 0 {
		log.WithField("count", len(expired)).Info("Closed idle flows")
	}
	return len(expired)
}

// Run expires idle flows until ctx is done, then closes all remaining flows.
func (m *Manager) Run(ctx context.Context) {
	interval := m.opts.IdleTimeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Shutdown()
			return
		case now := <-ticker.C:
			m.ExpireIdle(now)
		}
	}
}

// Shutdown closes every flow.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	flows := m.flows
	m.flows = make(map[string]*managedFlow)
	m.mu.Unlock()

	for _, mf := range flows {
		if err := m.close(mf); err != nil {
			log.WithError(err).WithField("flow_id", mf.ctrl.ID()).Warn("Failed to close flow")
		}
	}
}
