// Package facematch decides whether a freshly captured face descriptor belongs
// to the registered user. It owns the labeled-descriptor matcher and the
// fixed-threshold acceptance rule shared between CLI and web flows.
package facematch

import "errors"

// Descriptor is a fixed-length face embedding produced by the vision engine.
type Descriptor []float32

// LabeledDescriptors groups the descriptors registered under one label.
type LabeledDescriptors struct {
	Label       string       `json:"label"`
	Descriptors []Descriptor `json:"descriptors"`
}

// FaceTemplate is the single persisted enrollment. Its JSON form is the
// storage format: {"label": "<username>", "descriptors": [[...floats]]}.
type FaceTemplate = LabeledDescriptors

// Dim returns the descriptor length of the template, or 0 when it holds none.
func (l *LabeledDescriptors) Dim() int {
	if l == nil || len(l.Descriptors) == 0 {
		return 0
	}
	return len(l.Descriptors[0])
}

// BestMatch is the nearest label found for a query descriptor.
type BestMatch struct {
	Label    string  `json:"label"`
	Distance float64 `json:"distance"`
}

// Decision is the outcome of comparing a descriptor against the template.
type Decision struct {
	Accepted      bool      `json:"accepted"`
	Best          BestMatch `json:"best"`
	TemplateLabel string    `json:"template_label"`
}

// DistanceFunc computes the distance between two descriptors of equal length.
type DistanceFunc func(a, b Descriptor) float64

var (
	// ErrNoTemplateRegistered is returned when a login is attempted with nothing stored.
	ErrNoTemplateRegistered = errors.New("no registered face descriptor found")

	// ErrDescriptorLengthMismatch is returned when fresh and stored descriptors differ in length.
	ErrDescriptorLengthMismatch = errors.New("descriptor lengths do not match")

	// ErrNoLabeledDescriptors is returned when a matcher is built without reference descriptors.
	ErrNoLabeledDescriptors = errors.New("no labeled descriptors")
)
