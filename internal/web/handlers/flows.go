package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/faceauth/internal/capture"
	"github.com/kozaktomas/faceauth/internal/constants"
	"github.com/kozaktomas/faceauth/internal/facematch"
	"github.com/kozaktomas/faceauth/internal/flow"
	"github.com/kozaktomas/faceauth/internal/web/middleware"
	log "github.com/sirupsen/logrus"
)

// FlowsHandler serves the face registration and face login screens.
type FlowsHandler struct {
	manager        *flow.Manager
	sessionManager *middleware.SessionManager
}

// NewFlowsHandler creates a new flows handler
func NewFlowsHandler(manager *flow.Manager, sm *middleware.SessionManager) *FlowsHandler {
	return &FlowsHandler{
		manager:        manager,
		sessionManager: sm,
	}
}

// FlowResponse is returned by every flow endpoint.
type FlowResponse struct {
	State   *flow.SessionState      `json:"state,omitempty"`
	Error   string                  `json:"error,omitempty"`
	Session *middleware.SessionData `json:"session,omitempty"`
}

type createFlowRequest struct {
	Workflow string `json:"workflow"`
}

type usernameRequest struct {
	Username string `json:"username"`
}

type frameRequest struct {
	Image string `json:"image"` // data URL as produced by a canvas screenshot
}

// flowStatus maps a flow error to the HTTP status returned with it.
func flowStatus(err error) int {
	switch {
	case errors.Is(err, flow.ErrFlowNotFound):
		return http.StatusNotFound
	case errors.Is(err, flow.ErrFlowClosed):
		return http.StatusGone
	case errors.Is(err, flow.ErrModelsNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, flow.ErrCameraInactive), errors.Is(err, flow.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, flow.ErrWrongWorkflow), errors.Is(err, flow.ErrPushUnsupported):
		return http.StatusBadRequest
	case flow.IsOutcome(err):
		// a rejected face or a missing username is a normal screen state
		return http.StatusOK
	}
	return http.StatusInternalServerError
}

// respondFlow writes the flow state, mapping err to a status code.
func respondFlow(w http.ResponseWriter, s flow.SessionState, err error) {
	resp := FlowResponse{}
	if s.FlowID != "" {
		resp.State = &s
	}
	if err == nil {
		respondJSON(w, http.StatusOK, resp)
		return
	}

	status := flowStatus(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).WithField("flow_id", s.FlowID).Error("Flow request failed")
	}
	resp.Error = s.ErrorMessage
	if resp.Error == "" {
		resp.Error = err.Error()
	}
	respondJSON(w, status, resp)
}

func (h *FlowsHandler) controller(w http.ResponseWriter, r *http.Request) (*flow.Controller, bool) {
	ctrl, err := h.manager.Get(chi.URLParam(r, "flowId"))
	if err != nil {
		respondError(w, http.StatusNotFound, "flow not found")
		return nil, false
	}
	return ctrl, true
}

// Create opens a new registration or login flow.
func (h *FlowsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createFlowRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	workflow, err := flow.ParseWorkflow(req.Workflow)
	if err != nil {
		respondError(w, http.StatusBadRequest, "workflow must be registration or login")
		return
	}

	ctrl, err := h.manager.Create(workflow, requestLanguage(r))
	if err != nil {
		log.WithError(err).Error("Failed to create flow")
		respondError(w, http.StatusInternalServerError, "failed to create flow")
		return
	}

	s := ctrl.Snapshot()
	respondJSON(w, http.StatusCreated, FlowResponse{State: &s})
}

// Get returns the flow state.
func (h *FlowsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	respondFlow(w, ctrl.Snapshot(), nil)
}

// Delete closes the flow and releases its camera.
func (h *FlowsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Delete(chi.URLParam(r, "flowId")); err != nil {
		if errors.Is(err, flow.ErrFlowNotFound) {
			respondError(w, http.StatusNotFound, "flow not found")
			return
		}
		log.WithError(err).Warn("Flow closed with error")
	}
	w.WriteHeader(http.StatusNoContent)
}

// OpenCamera turns the flow's camera on.
func (h *FlowsHandler) OpenCamera(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	s, err := ctrl.OpenCamera(r.Context())
	respondFlow(w, s, err)
}

// CloseCamera turns the flow's camera off.
func (h *FlowsHandler) CloseCamera(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	s, err := ctrl.CloseCamera()
	respondFlow(w, s, err)
}

// PushFrame accepts the latest webcam still as a raw image body, a
// multipart "frame" file, or JSON {"image": "data:image/jpeg;base64,..."}.
func (h *FlowsHandler) PushFrame(w http.ResponseWriter, r *http.Request) {
	flowID := chi.URLParam(r, "flowId")
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxFrameUploadSize)

	data, err := readFrame(r)
	if err != nil {
		log.WithError(err).WithField("flow_id", sanitizeForLog(flowID)).Debug("Rejected frame")
		respondError(w, http.StatusBadRequest, "invalid frame")
		return
	}
	if err := capture.CheckFrame(data); err != nil {
		log.WithError(err).WithField("flow_id", sanitizeForLog(flowID)).Debug("Rejected frame")
		if errors.Is(err, capture.ErrFrameTooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "frame too large")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid frame")
		return
	}

	if err := h.manager.PushFrame(flowID, data); err != nil {
		switch {
		case errors.Is(err, capture.ErrNoFrame):
			respondError(w, http.StatusBadRequest, "empty frame")
		case errors.Is(err, capture.ErrSourceClosed):
			respondError(w, http.StatusConflict, flow.ErrCameraInactive.Error())
		default:
			respondError(w, flowStatus(err), err.Error())
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func readFrame(r *http.Request) ([]byte, error) {
	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "multipart/form-data"):
		file, _, err := r.FormFile("frame")
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return io.ReadAll(file)
	case strings.HasPrefix(contentType, "application/json"):
		var req frameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, err
		}
		return capture.DecodeDataURL(req.Image)
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(http.DetectContentType(data), "image/") {
		return nil, errors.New("body is not an image")
	}
	return data, nil
}

// Capture grabs the current frame and runs detection. A successful face
// login also signs the browser in.
func (h *FlowsHandler) Capture(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}

	s, err := ctrl.CaptureAndDetect(r.Context())
	if err != nil || s.State != flow.StateMatched {
		respondFlow(w, s, err)
		return
	}

	session, err := h.sessionManager.CreateSession(s.Username)
	if err != nil {
		log.WithError(err).Error("Failed to create session after face login")
		respondFlow(w, s, nil)
		return
	}
	if err := h.sessionManager.SetSessionCookie(w, r, session); err != nil {
		log.WithError(err).Error("Failed to set session cookie")
	}
	data := session.ToJSON()
	respondJSON(w, http.StatusOK, FlowResponse{State: &s, Session: &data})
}

// SetUsername stores the name entered on the registration screen.
func (h *FlowsHandler) SetUsername(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}

	var req usernameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s, err := ctrl.SetUsername(req.Username)
	respondFlow(w, s, err)
}

// Register saves the captured face under the entered username.
func (h *FlowsHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	s, err := ctrl.Register(r.Context())
	if err == nil && s.State == flow.StateRegistered && h.sessionManager != nil {
		if n := h.sessionManager.RevokeOtherUsers(facematch.NormalizeUsername(s.Username)); n > 0 {
			log.WithField("count", n).Info("Signed out users of the replaced face")
		}
	}
	respondFlow(w, s, err)
}

// Overlay returns the landmark drawing of the last detection.
func (h *FlowsHandler) Overlay(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	img := ctrl.Overlay()
	if img == nil {
		respondError(w, http.StatusNotFound, "no overlay")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

// Events streams flow state changes until the flow closes or the client leaves.
func (h *FlowsHandler) Events(w http.ResponseWriter, r *http.Request) {
	flowID := chi.URLParam(r, "flowId")
	ctrl, err := h.manager.Get(flowID)
	if err != nil {
		respondError(w, http.StatusNotFound, "flow not found")
		return
	}
	broadcaster, err := h.manager.Events(flowID)
	if err != nil {
		respondError(w, http.StatusNotFound, "flow not found")
		return
	}

	flusher, ok := setupSSEConnection(w)
	if !ok {
		return
	}

	eventCh := broadcaster.AddListener()
	defer broadcaster.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, flow.EventState, flow.Event{Type: flow.EventState, Data: ctrl.Snapshot()})

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, event.Type, event)
			if event.Type == flow.EventClosed {
				return
			}
		}
	}
}
