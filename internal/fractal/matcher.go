// Package fractal implements the spatial factor: fuzzy positional matching of
// claimant-chosen coordinate triples against the registered fractal key.
package fractal

import (
	"math"

	"github.com/fractalauth/fractalauth/internal/credential"
)

// Tolerance is the maximum Euclidean distance, in the coordinate plane of the
// rendered pattern, at which a submitted marker still matches its registered
// counterpart.
const Tolerance = 0.08

// Match reports whether a submitted marker triple matches the stored one.
// Comparison is positional: marker i is compared only against stored marker i,
// and all pairs must fall within Tolerance. A length mismatch fails closed.
func Match(stored, submitted []credential.Marker) bool {
	if len(stored) != len(submitted) {
		return false
	}
	for i, s := range stored {
		dx := s.FX - submitted[i].FX
		dy := s.FY - submitted[i].FY
		if math.Sqrt(dx*dx+dy*dy) > Tolerance {
			return false
		}
	}
	return true
}
