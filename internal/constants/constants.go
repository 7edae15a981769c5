// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Face matching constants
const (
	// MatchDistanceThreshold is the euclidean distance below which a fresh
	// descriptor is considered the same person as the registered template.
	// Comparison is strict: a distance equal to the threshold is rejected.
	MatchDistanceThreshold = 0.6

	// DescriptorDim is the descriptor length produced by the recognition network
	DescriptorDim = 128

	// UnknownLabel is the label reported when no labeled descriptor is close enough
	UnknownLabel = "unknown"

	// MatcherCandidates is the number of nearest descriptors inspected per query
	MatcherCandidates = 16
)

// Storage keys
const (
	// TemplateKey is the key under which the single face template is stored
	TemplateKey = "registeredFaceDescriptor"

	// CurrentUserKey is the key of the current user record shown in the navigation bar
	CurrentUserKey = "HisabbookUser"
)

// Capture constants
const (
	// MaxFrameSize is the maximum dimension (width or height) of a frame sent to detection
	MaxFrameSize = 1280

	// MaxFrameUploadSize is the maximum accepted size of a pushed webcam frame (10MB)
	MaxFrameUploadSize = 10 << 20

	// MaxFramePixels bounds the declared picture size checked before decoding.
	// A compressed upload can declare far more pixels than its byte size suggests.
	MaxFramePixels = 4096 * 4096
)

// Flow constants
const (
	// EventChannelBuffer is the buffer size for flow event channels
	EventChannelBuffer = 100

	// DefaultFlowIdleMinutes is how long an untouched flow is kept before it is closed
	DefaultFlowIdleMinutes = 15

	// ModelLoadTimeoutSeconds bounds a single model load attempt
	ModelLoadTimeoutSeconds = 120
)
