package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kozaktomas/faceauth/internal/capture"
	"github.com/kozaktomas/faceauth/internal/database"
	"github.com/kozaktomas/faceauth/internal/events"
	"github.com/kozaktomas/faceauth/internal/facematch"
	"github.com/kozaktomas/faceauth/internal/i18n"
	"github.com/kozaktomas/faceauth/internal/vision"
	log "github.com/sirupsen/logrus"
)

const publishTimeout = 5 * time.Second

// Loader reports whether the face models can be used.
type Loader interface {
	Ready() bool
	Err() error
}

// Extractor detects a single face in a captured frame.
type Extractor interface {
	Extract(ctx context.Context, frame *capture.Frame) (*vision.Extraction, error)
}

// Comparer decides whether a descriptor matches the registered template.
type Comparer interface {
	Compare(fresh facematch.Descriptor, tmpl *facematch.FaceTemplate) (*facematch.Decision, error)
}

// Localizer resolves user-visible message IDs.
type Localizer interface {
	Localize(messageID string, langs ...string) string
}

// Deps are the components a controller coordinates.
type Deps struct {
	Loader     Loader
	Extractor  Extractor
	Comparer   Comparer
	Templates  database.TemplateStore
	Users      *database.UserStore // optional, login records the signed-in user here
	Publisher  events.Publisher    // optional
	Translator Localizer
	Language   string // Accept-Language of the client that created the flow
}

// SessionState is what the screen renders.
type SessionState struct {
	FlowID        string    `json:"flow_id"`
	Workflow      Workflow  `json:"workflow"`
	State         State     `json:"state"`
	CameraActive  bool      `json:"camera_active"`
	ModelsLoaded  bool      `json:"models_loaded"`
	Matched       *bool     `json:"matched,omitempty"`
	ErrorMessage  string    `json:"error,omitempty"`
	Message       string    `json:"message,omitempty"`
	Username      string    `json:"username,omitempty"`
	HasDescriptor bool      `json:"has_descriptor"`
	HasOverlay    bool      `json:"has_overlay"`
	Distance      *float64  `json:"distance,omitempty"`
	Version       uint64    `json:"version"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Controller owns the state of one registration or login screen.
// All component outcomes are applied under mu; detection itself runs unlocked
// and its result is dropped if the camera was closed in the meantime.
type Controller struct {
	id       string
	workflow Workflow
	camera   *capture.Session
	deps     Deps

	mu        sync.Mutex
	state     State
	matched   *bool
	errMsg    string
	message   string
	username  string
	pending   facematch.Descriptor
	overlay   []byte
	distance  *float64
	closed    bool
	version   uint64
	updatedAt time.Time

	onChange func(SessionState)
}

// NewController creates an idle flow over camera.
func NewController(id string, workflow Workflow, camera *capture.Session, deps Deps) *Controller {
	if deps.Publisher == nil {
		deps.Publisher = events.NoopPublisher{}
	}
	return &Controller{
		id:        id,
		workflow:  workflow,
		camera:    camera,
		deps:      deps,
		state:     StateIdle,
		updatedAt: time.Now(),
	}
}

// ID returns the flow ID.
func (c *Controller) ID() string {
	return c.id
}

// Workflow returns the workflow the flow implements.
func (c *Controller) Workflow() Workflow {
	return c.workflow
}

// Camera returns the capture session frames are pushed into.
func (c *Controller) Camera() *capture.Session {
	return c.camera
}

func (c *Controller) logger() *log.Entry {
	return log.WithFields(log.Fields{
		"flow_id":  c.id,
		"workflow": c.workflow,
		"state":    c.state,
	})
}

func (c *Controller) localize(messageID string) string {
	if c.deps.Translator == nil {
		return messageID
	}
	return c.deps.Translator.Localize(messageID, c.deps.Language)
}

// snapshotLocked builds the public state. Caller holds mu.
func (c *Controller) snapshotLocked() SessionState {
	s := SessionState{
		FlowID:        c.id,
		Workflow:      c.workflow,
		State:         c.state,
		CameraActive:  c.camera.Active(),
		ModelsLoaded:  c.deps.Loader != nil && c.deps.Loader.Ready(),
		ErrorMessage:  c.errMsg,
		Message:       c.message,
		Username:      c.username,
		HasDescriptor: len(c.pending) > 0,
		HasOverlay:    len(c.overlay) > 0,
		Version:       c.version,
		UpdatedAt:     c.updatedAt,
	}
	if c.matched != nil {
		m := *c.matched
		s.Matched = &m
	}
	if c.distance != nil {
		d := *c.distance
		s.Distance = &d
	}
	return s
}

// commitLocked records a change and returns the new snapshot. Caller holds mu.
func (c *Controller) commitLocked() SessionState {
	c.version++
	c.updatedAt = time.Now()
	return c.snapshotLocked()
}

func (c *Controller) notify(s SessionState) {
	if c.onChange != nil {
		c.onChange(s)
	}
}

// unlockAndNotify releases mu and broadcasts the committed state.
func (c *Controller) unlockAndNotify() SessionState {
	s := c.commitLocked()
	c.mu.Unlock()
	c.notify(s)
	return s
}

// clearResultLocked forgets the previous attempt. Caller holds mu.
func (c *Controller) clearResultLocked() {
	c.matched = nil
	c.errMsg = ""
	c.message = ""
	c.pending = nil
	c.overlay = nil
	c.distance = nil
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Overlay returns the landmark PNG of the last detection, or nil.
func (c *Controller) Overlay() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.overlay) == 0 {
		return nil
	}
	out := make([]byte, len(c.overlay))
	copy(out, c.overlay)
	return out
}

// OpenCamera turns the camera on and resets the previous attempt.
func (c *Controller) OpenCamera(ctx context.Context) (SessionState, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return SessionState{}, ErrFlowClosed
	}
	if c.state == StateCameraOn && c.camera.Active() {
		s := c.snapshotLocked()
		c.mu.Unlock()
		return s, nil
	}
	if !CanTransition(c.workflow, c.state, StateCameraOn) {
		s := c.snapshotLocked()
		c.mu.Unlock()
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.State, StateCameraOn)
	}

	if err := c.camera.Start(ctx); err != nil {
		c.logger().WithError(err).Warn("Failed to open camera")
		c.state = StateIdle
		c.errMsg = c.localize(i18n.CameraInactive)
		s := c.unlockAndNotify()
		return s, err
	}

	c.clearResultLocked()
	c.state = StateCameraOn
	c.logger().Debug("Camera opened")
	return c.unlockAndNotify(), nil
}

// CloseCamera turns the camera off from any state. Messages of the last
// attempt stay visible; a pending registration descriptor is dropped.
func (c *Controller) CloseCamera() (SessionState, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return SessionState{}, ErrFlowClosed
	}

	err := c.camera.Stop()
	c.state = StateIdle
	c.pending = nil
	c.overlay = nil
	c.logger().Debug("Camera closed")
	s := c.unlockAndNotify()
	if err != nil {
		return s, fmt.Errorf("closing camera: %w", err)
	}
	return s, nil
}

// SetUsername stores the name a registration will be saved under.
func (c *Controller) SetUsername(name string) (SessionState, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return SessionState{}, ErrFlowClosed
	}
	if c.workflow != WorkflowRegistration {
		s := c.snapshotLocked()
		c.mu.Unlock()
		return s, ErrWrongWorkflow
	}
	c.username = name
	return c.unlockAndNotify(), nil
}

type detectResult struct {
	extraction *vision.Extraction
	decision   *facematch.Decision
	err        error
}

// CaptureAndDetect grabs a frame, extracts a face descriptor and, for a login
// flow, compares it against the registered template.
//
// With models not ready it returns ErrModelsNotReady without touching the
// camera or the detector; only the error message changes.
func (c *Controller) CaptureAndDetect(ctx context.Context) (SessionState, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return SessionState{}, ErrFlowClosed
	}

	if c.deps.Loader == nil || !c.deps.Loader.Ready() {
		messageID := i18n.ModelsNotReady
		if c.deps.Loader != nil && c.deps.Loader.Err() != nil {
			messageID = i18n.ModelsLoadFailed
		}
		c.errMsg = c.localize(messageID)
		return c.unlockAndNotify(), ErrModelsNotReady
	}

	if c.state == StateDetecting {
		s := c.snapshotLocked()
		c.mu.Unlock()
		return s, fmt.Errorf("%w: detection already running", ErrInvalidTransition)
	}

	bound, cancel, gen, err := c.camera.Bind(ctx)
	if err != nil {
		c.errMsg = c.localize(i18n.CameraInactive)
		s := c.unlockAndNotify()
		return s, err
	}
	defer cancel()

	if !CanTransition(c.workflow, c.state, StateDetecting) {
		s := c.snapshotLocked()
		c.mu.Unlock()
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.State, StateDetecting)
	}

	c.clearResultLocked()
	c.state = StateDetecting
	c.unlockAndNotify()

	res := c.detect(bound)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return SessionState{}, ErrFlowClosed
	}
	if c.state != StateDetecting || c.camera.Generation() != gen {
		c.logger().Debug("Dropping detection result of a closed camera")
		s := c.snapshotLocked()
		c.mu.Unlock()
		return s, fmt.Errorf("%w: camera closed during detection", ErrCameraInactive)
	}

	outcome := c.applyLocked(res)
	s := c.unlockAndNotify()

	if c.workflow == WorkflowLogin && res.err == nil && c.deps.Users != nil {
		if err := c.deps.Users.SetCurrent(ctx, s.Username); err != nil {
			log.WithError(err).WithField("flow_id", c.id).Warn("Failed to record signed-in user")
		}
	}
	c.publish(ctx, outcome)

	return s, res.err
}

// detect runs the slow part of a capture without holding mu.
func (c *Controller) detect(ctx context.Context) detectResult {
	frame, err := c.camera.CaptureFrame(ctx)
	if err != nil {
		return detectResult{err: fmt.Errorf("%w: %w", ErrDetectionFailed, err)}
	}

	extraction, err := c.deps.Extractor.Extract(ctx, frame)
	if err != nil {
		if errors.Is(err, vision.ErrNoFaceDetected) {
			return detectResult{err: err}
		}
		return detectResult{err: fmt.Errorf("%w: %w", ErrDetectionFailed, err)}
	}
	res := detectResult{extraction: extraction}

	if c.workflow == WorkflowRegistration {
		return res
	}

	tmpl, err := c.deps.Templates.Load(ctx)
	if err != nil {
		res.err = fmt.Errorf("%w: %w", ErrStorage, err)
		return res
	}

	decision, err := c.deps.Comparer.Compare(extraction.Descriptor, tmpl)
	if err != nil {
		res.err = err
		return res
	}
	res.decision = decision
	if !decision.Accepted {
		res.err = ErrNoMatch
	}
	return res
}

// applyLocked moves the flow to the state matching a detection result and
// returns the outcome to publish. Caller holds mu.
func (c *Controller) applyLocked(res detectResult) events.Outcome {
	if res.extraction != nil {
		c.overlay = res.extraction.Overlay
	}
	if res.decision != nil {
		d := res.decision.Best.Distance
		c.distance = &d
	}

	switch {
	case res.err == nil && c.workflow == WorkflowRegistration:
		c.pending = res.extraction.Descriptor
		c.state = StateCaptured
	case res.err == nil:
		matched := true
		c.matched = &matched
		c.username = res.decision.TemplateLabel
		c.message = c.localize(i18n.LoginSuccessful)
		c.state = StateMatched
	case errors.Is(res.err, ErrNoMatch),
		errors.Is(res.err, ErrNoTemplateRegistered),
		errors.Is(res.err, ErrDescriptorLengthMismatch):
		matched := false
		c.matched = &matched
		c.errMsg = c.localize(MessageID(res.err))
		c.state = StateRejected
	default:
		if c.workflow == WorkflowLogin {
			matched := false
			c.matched = &matched
		}
		c.errMsg = c.localize(MessageID(res.err))
		c.state = StateDetectionFailed
	}

	entry := c.logger()
	if c.distance != nil {
		entry = entry.WithField("distance", *c.distance)
	}
	if res.err != nil {
		entry.WithError(res.err).Info("Face capture finished without a match")
	} else {
		entry.Info("Face capture finished")
	}

	return events.Outcome{
		FlowID:    c.id,
		Workflow:  string(c.workflow),
		Result:    string(c.state),
		Username:  c.username,
		Distance:  c.distance,
		Message:   c.errMsg + c.message,
		Timestamp: time.Now(),
	}
}

// Register saves the pending descriptor under the entered username.
func (c *Controller) Register(ctx context.Context) (SessionState, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return SessionState{}, ErrFlowClosed
	}
	if c.workflow != WorkflowRegistration {
		s := c.snapshotLocked()
		c.mu.Unlock()
		return s, ErrWrongWorkflow
	}

	if len(c.pending) == 0 || facematch.NormalizeUsername(c.username) == "" {
		c.message = ""
		c.errMsg = c.localize(i18n.MissingRegistrationInput)
		s := c.unlockAndNotify()
		return s, ErrMissingRegistrationInput
	}
	if !CanTransition(c.workflow, c.state, StateRegistered) {
		s := c.snapshotLocked()
		c.mu.Unlock()
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.State, StateRegistered)
	}

	if err := c.deps.Templates.Save(ctx, c.username, c.pending); err != nil {
		c.message = ""
		if errors.Is(err, ErrMissingRegistrationInput) {
			c.errMsg = c.localize(i18n.MissingRegistrationInput)
			s := c.unlockAndNotify()
			return s, err
		}
		c.logger().WithError(err).Error("Failed to save face template")
		c.errMsg = c.localize(i18n.StorageError)
		s := c.unlockAndNotify()
		return s, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	c.pending = nil
	c.errMsg = ""
	c.message = c.localize(i18n.RegistrationSuccessful)
	c.state = StateRegistered
	c.logger().WithField("username", c.username).Info("Face registered")
	outcome := events.Outcome{
		FlowID:    c.id,
		Workflow:  string(c.workflow),
		Result:    string(StateRegistered),
		Username:  facematch.NormalizeUsername(c.username),
		Message:   c.message,
		Timestamp: time.Now(),
	}
	s := c.unlockAndNotify()

	c.publish(ctx, outcome)
	return s, nil
}

// publish delivers an outcome. Delivery failures are logged and never change the flow.
func (c *Controller) publish(ctx context.Context, outcome events.Outcome) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := c.deps.Publisher.Publish(ctx, outcome); err != nil {
		log.WithError(err).WithField("flow_id", c.id).Warn("Failed to publish outcome")
	}
}

// Close releases the camera and rejects any further action.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	err := c.camera.Stop()
	c.closed = true
	c.state = StateIdle
	c.pending = nil
	c.overlay = nil
	c.unlockAndNotify()
	if err != nil {
		return fmt.Errorf("closing camera: %w", err)
	}
	return nil
}

// Closed reports whether Close was called.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// lastActivity is when the state last changed.
func (c *Controller) lastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updatedAt
}
