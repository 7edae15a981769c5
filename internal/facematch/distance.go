package facematch

import "math"

// EuclideanDistance returns the L2 distance between two descriptors.
// Descriptors of different length yield +Inf.
func EuclideanDistance(a, b Descriptor) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
