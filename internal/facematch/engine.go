package facematch

import (
	"fmt"

	"github.com/kozaktomas/faceauth/internal/constants"
)

// BestMatchFinder returns the nearest label for a query descriptor.
type BestMatchFinder interface {
	FindBestMatch(query Descriptor) (BestMatch, error)
}

// MatcherFactory builds a BestMatchFinder over reference descriptors.
type MatcherFactory func(labeled []LabeledDescriptors) (BestMatchFinder, error)

// Engine compares fresh descriptors against the registered template.
// A new matcher is built for every comparison so template changes are
// always observed.
type Engine struct {
	newMatcher MatcherFactory
}

// NewEngine creates an engine using the labeled-descriptor matcher with the given distance.
func NewEngine(distance DistanceFunc) *Engine {
	return NewEngineWithMatcher(func(labeled []LabeledDescriptors) (BestMatchFinder, error) {
		return NewMatcher(labeled, distance, constants.MatchDistanceThreshold)
	})
}

// NewEngineWithMatcher creates an engine with a custom matcher factory.
func NewEngineWithMatcher(factory MatcherFactory) *Engine {
	return &Engine{newMatcher: factory}
}

// Compare checks a freshly extracted descriptor against the template.
// Length is validated before any distance is computed.
func (e *Engine) Compare(fresh Descriptor, tmpl *FaceTemplate) (*Decision, error) {
	if tmpl == nil || tmpl.Dim() == 0 {
		return nil, ErrNoTemplateRegistered
	}
	if len(fresh) != tmpl.Dim() {
		return nil, fmt.Errorf("%w: fresh %d, stored %d", ErrDescriptorLengthMismatch, len(fresh), tmpl.Dim())
	}

	matcher, err := e.newMatcher([]LabeledDescriptors{*tmpl})
	if err != nil {
		return nil, fmt.Errorf("building matcher: %w", err)
	}

	best, err := matcher.FindBestMatch(fresh)
	if err != nil {
		return nil, fmt.Errorf("finding best match: %w", err)
	}

	return &Decision{
		Accepted:      Decide(best, tmpl.Label),
		Best:          best,
		TemplateLabel: tmpl.Label,
	}, nil
}

// Decide applies the acceptance rule: the matched label must equal the
// template label and the distance must be strictly below the threshold.
func Decide(best BestMatch, templateLabel string) bool {
	return best.Label == templateLabel && best.Distance < constants.MatchDistanceThreshold
}
