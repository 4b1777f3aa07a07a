package fractal

import (
	"testing"

	"github.com/fractalauth/fractalauth/internal/credential"
)

func markers(coords ...[2]float64) []credential.Marker {
	out := make([]credential.Marker, 0, len(coords))
	for _, c := range coords {
		out = append(out, credential.Marker{FX: c[0], FY: c[1]})
	}
	return out
}

func TestMatchExact(t *testing.T) {
	stored := markers([2]float64{0.25, -0.5}, [2]float64{1.0, 1.0}, [2]float64{-1.2, 0.3})
	if !Match(stored, stored) {
		t.Fatalf("identical markers must match")
	}
}

func TestMatchWithinTolerance(t *testing.T) {
	stored := markers([2]float64{0, 0}, [2]float64{1, 1}, [2]float64{-1, 1})
	submitted := markers([2]float64{0.05, 0.02}, [2]float64{1.03, 0.97}, [2]float64{-1.01, 1.04})
	if !Match(stored, submitted) {
		t.Fatalf("markers within tolerance must match")
	}
}

func TestMatchSingleMarkerBeyondTolerance(t *testing.T) {
	stored := markers([2]float64{0, 0}, [2]float64{1, 1}, [2]float64{-1, 1})
	submitted := markers([2]float64{0.05, 0.02}, [2]float64{1.03, 0.97}, [2]float64{-1.1, 1.04})
	if Match(stored, submitted) {
		t.Fatalf("one marker beyond tolerance must fail the whole comparison")
	}
}

func TestMatchIsPositional(t *testing.T) {
	stored := markers([2]float64{0, 0}, [2]float64{1, 1}, [2]float64{-1, 1})
	permuted := markers([2]float64{1, 1}, [2]float64{-1, 1}, [2]float64{0, 0})
	if Match(stored, permuted) {
		t.Fatalf("permuting a correct triple must not match")
	}
}

func TestMatchLengthMismatchFailsClosed(t *testing.T) {
	stored := markers([2]float64{0, 0}, [2]float64{1, 1}, [2]float64{-1, 1})
	if Match(stored, stored[:2]) {
		t.Fatalf("length mismatch must fail closed")
	}
	if Match(stored, nil) {
		t.Fatalf("empty submission must fail closed")
	}
}
