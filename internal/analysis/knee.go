package analysis

import (
	"math"

	"github.com/helios-data/yield.report/internal/monitoring"
)

// KneePointValue estimates the elbow of a sorted k-distance curve and
// returns the value at that point, intended as an epsilon suggestion for
// density clustering. It returns -1 when no knee can be determined: fewer
// than three values, non-finite boundaries, or a flat curve.
//
// Indices and values are normalized to [0,1] and the knee is the point
// with the largest vertical distance below the diagonal through the first
// and last value. NaN entries are skipped.
func KneePointValue(values []float64) float64 {
	n := len(values)
	if n < 3 {
		monitoring.Logf("knee estimation skipped: need at least 3 values, got %d", n)
		return -1
	}
	first := values[0]
	last := values[n-1]
	if math.IsNaN(first) || math.IsNaN(last) || math.IsInf(first, 0) || math.IsInf(last, 0) {
		monitoring.Logf("knee estimation skipped: non-finite boundary values")
		return -1
	}
	valueRange := last - first
	if math.Abs(valueRange) < nearZero {
		monitoring.Logf("knee estimation skipped: flat curve")
		return -1
	}

	bestIdx := -1
	bestDist := math.Inf(-1)
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		xNorm := float64(i) / float64(n-1)
		yNorm := (v - first) / valueRange
		d := math.Abs(xNorm - yNorm)
		if d > bestDist {
			bestDist = d
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return -1
	}
	monitoring.Logf("knee estimated at index %d of %d (value %.4f)", bestIdx, n, values[bestIdx])
	return values[bestIdx]
}
