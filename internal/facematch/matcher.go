package facematch

import (
	"fmt"
	"math"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/faceauth/internal/constants"
)

// Matcher finds the label whose descriptors are nearest to a query.
// The distance to a label is the mean distance to all of its descriptors;
// when the best mean reaches the threshold the label is reported as unknown.
//
// Candidate labels come from an HNSW graph over every reference descriptor,
// so the matcher scales to many labels while the returned distance stays exact.
type Matcher struct {
	labeled   []LabeledDescriptors
	distance  DistanceFunc
	threshold float64
	dim       int
	size      int
	graph     *hnsw.Graph[int]
	owner     map[int]int // graph node key -> index into labeled
}

// NewMatcher builds a matcher over the given labeled descriptors.
// All descriptors must share one length.
func NewMatcher(labeled []LabeledDescriptors, distance DistanceFunc, threshold float64) (*Matcher, error) {
	if distance == nil {
		distance = EuclideanDistance
	}

	m := &Matcher{
		labeled:   labeled,
		distance:  distance,
		threshold: threshold,
		owner:     make(map[int]int),
	}

	g := hnsw.NewGraph[int]()
	g.Distance = func(a, b []float32) float32 {
		return float32(distance(a, b))
	}

	key := 0
	for i, l := range labeled {
		for _, d := range l.Descriptors {
			if len(d) == 0 {
				continue
			}
			if m.dim == 0 {
				m.dim = len(d)
			} else if len(d) != m.dim {
				return nil, fmt.Errorf("label %q: %w", l.Label, ErrDescriptorLengthMismatch)
			}
			g.Add(hnsw.MakeNode(key, []float32(d)))
			m.owner[key] = i
			key++
		}
	}
	if key == 0 {
		return nil, ErrNoLabeledDescriptors
	}

	m.graph = g
	m.size = key
	return m, nil
}

// Dim returns the descriptor length the matcher was built with.
func (m *Matcher) Dim() int {
	return m.dim
}

// FindBestMatch returns the nearest label for the query descriptor.
func (m *Matcher) FindBestMatch(query Descriptor) (BestMatch, error) {
	if len(query) != m.dim {
		return BestMatch{}, ErrDescriptorLengthMismatch
	}

	k := min(constants.MatcherCandidates, m.size)
	candidates := make(map[int]struct{})
	for _, n := range m.graph.Search([]float32(query), k) {
		candidates[m.owner[n.Key]] = struct{}{}
	}

	best := BestMatch{Label: constants.UnknownLabel, Distance: math.Inf(1)}
	bestLabel := ""
	for idx := range candidates {
		d := m.meanDistance(query, m.labeled[idx])
		if d < best.Distance {
			best.Distance = d
			bestLabel = m.labeled[idx].Label
		}
	}

	if best.Distance < m.threshold {
		best.Label = bestLabel
	}
	return best, nil
}

// meanDistance averages the distance from query to each descriptor of a label.
func (m *Matcher) meanDistance(query Descriptor, l LabeledDescriptors) float64 {
	var sum float64
	var n int
	for _, d := range l.Descriptors {
		if len(d) == 0 {
			continue
		}
		sum += m.distance(query, d)
		n++
	}
	if n == 0 {
		return math.Inf(1)
	}
	return sum / float64(n)
}
