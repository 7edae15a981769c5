package flow

import (
	"errors"

	"github.com/kozaktomas/faceauth/internal/capture"
	"github.com/kozaktomas/faceauth/internal/database"
	"github.com/kozaktomas/faceauth/internal/facematch"
	"github.com/kozaktomas/faceauth/internal/i18n"
	"github.com/kozaktomas/faceauth/internal/vision"
)

var (
	ErrModelsNotReady    = errors.New("face models are not loaded")
	ErrNoMatch           = errors.New("face not recognized")
	ErrInvalidTransition = errors.New("action not allowed in current state")
	ErrWrongWorkflow     = errors.New("action not available in this workflow")
	ErrUnknownWorkflow   = errors.New("unknown workflow")
	ErrFlowClosed        = errors.New("flow closed")
	ErrFlowNotFound      = errors.New("flow not found")
	ErrDetectionFailed   = errors.New("face detection failed")
	ErrStorage           = errors.New("storage failed")

	ErrNoFaceDetected           = vision.ErrNoFaceDetected
	ErrNoTemplateRegistered     = facematch.ErrNoTemplateRegistered
	ErrDescriptorLengthMismatch = facematch.ErrDescriptorLengthMismatch
	ErrMissingRegistrationInput = database.ErrMissingRegistrationInput
	ErrCameraInactive           = capture.ErrCameraInactive
)

var messageIDs = []struct {
	err error
	id  string
}{
	{ErrModelsNotReady, i18n.ModelsNotReady},
	{ErrNoMatch, i18n.FaceNotRecognized},
	{ErrNoFaceDetected, i18n.NoFaceDetected},
	{ErrNoTemplateRegistered, i18n.NoTemplateRegistered},
	{ErrDescriptorLengthMismatch, i18n.DescriptorLengthMismatch},
	{ErrMissingRegistrationInput, i18n.MissingRegistrationInput},
	{ErrCameraInactive, i18n.CameraInactive},
	{ErrInvalidTransition, i18n.ActionNotAllowed},
	{ErrWrongWorkflow, i18n.ActionNotAllowed},
	{ErrStorage, i18n.StorageError},
}

// MessageID returns the i18n message shown to the user for err.
func MessageID(err error) string {
	for _, m := range messageIDs {
		if errors.Is(err, m.err) {
			return m.id
		}
	}
	return i18n.DetectionError
}

// IsOutcome reports whether err is a regular result of a capture or
// registration attempt rather than a failure of the request itself.
func IsOutcome(err error) bool {
	for _, target := range []error{
		ErrNoMatch,
		ErrNoFaceDetected,
		ErrNoTemplateRegistered,
		ErrDescriptorLengthMismatch,
		ErrMissingRegistrationInput,
		ErrDetectionFailed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
