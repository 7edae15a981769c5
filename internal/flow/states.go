// Package flow drives the face registration and face login screens. A
// Controller owns one screen's state machine and funnels camera, model,
// detection and storage outcomes into a single SessionState.
package flow

import (
	"fmt"
	"strings"
)

// State is a step of a registration or login flow.
type State string

const (
	StateIdle            State = "idle"
	StateCameraOn        State = "camera_on"
	StateDetecting       State = "detecting"
	StateCaptured        State = "captured"
	StateMatched         State = "matched"
	StateRejected        State = "rejected"
	StateDetectionFailed State = "detection_failed"
	StateRegistered      State = "registered"
)

// Workflow selects which screen a flow implements.
type Workflow string

const (
	WorkflowRegistration Workflow = "registration"
	WorkflowLogin        Workflow = "login"
)

// ParseWorkflow accepts the workflow name in any case.
func ParseWorkflow(s string) (Workflow, error) {
	switch Workflow(strings.ToLower(strings.TrimSpace(s))) {
	case WorkflowRegistration:
		return WorkflowRegistration, nil
	case WorkflowLogin:
		return WorkflowLogin, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownWorkflow, s)
}

// terminal states can be left by reopening the camera or capturing again.
func (s State) terminal() bool {
	switch s {
	case StateMatched, StateRejected, StateDetectionFailed, StateRegistered:
		return true
	}
	return false
}

var detectionResults = map[Workflow][]State{
	WorkflowLogin:        {StateMatched, StateRejected, StateDetectionFailed},
	WorkflowRegistration: {StateCaptured, StateDetectionFailed},
}

// CanTransition reports whether a flow of workflow w may move from one state to another.
func CanTransition(w Workflow, from, to State) bool {
	switch to {
	case StateIdle:
		return true
	case StateCameraOn:
		return from == StateIdle || from == StateCaptured || from.terminal()
	case StateDetecting:
		// a pending registration descriptor may be replaced by a new capture
		return from == StateCameraOn || from.terminal() ||
			(w == WorkflowRegistration && from == StateCaptured)
	case StateRegistered:
		return w == WorkflowRegistration && from == StateCaptured
	}

	if from != StateDetecting {
		return false
	}
	for _, s := range detectionResults[w] {
		if s == to {
			return true
		}
	}
	return false
}
