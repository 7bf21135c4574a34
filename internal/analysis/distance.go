package analysis

import (
	"math"

	"github.com/helios-data/yield.report/internal/monitoring"
)

// DistanceFunc computes the symmetric distance between two points of the
// candidate slice it was built over, addressed by index. It returns +Inf
// for out-of-range indices, nil points, and coordinates that could not be
// computed, so density region queries naturally exclude them.
type DistanceFunc func(i, j int) float64

// BuildDistanceFunc builds a pairwise Euclidean distance function over the
// x/y coordinates of the given candidate points.
//
// For ScalingNone the coordinates are extracted on the fly. Otherwise a
// dense [x,y] matrix is extracted once, scaled with ScaleMatrix, and the
// returned function measures distance over the scaled matrix. If scaling
// turns out to be a no-op for a non-NONE type the function falls back to
// unscaled distances with a logged warning rather than failing the run.
func BuildDistanceFunc(points []*Point, t ScalingType, x, y FeatureExtractor) DistanceFunc {
	if t == ScalingNone {
		return rawDistanceFunc(points, x, y)
	}
	if len(points) == 0 {
		return func(i, j int) float64 { return math.Inf(1) }
	}

	raw := make([][]float64, len(points))
	for i, p := range points {
		if p == nil {
			raw[i] = []float64{math.NaN(), math.NaN()}
			continue
		}
		raw[i] = []float64{x(p), y(p)}
	}

	scaled := ScaleMatrix(raw, t)
	if len(scaled) > 0 && len(raw) > 0 && &scaled[0] == &raw[0] {
		// ScaleMatrix returned the input unchanged even though a scaling
		// type was requested; fall back to unscaled distances.
		monitoring.Logf("scaling %v was a no-op for %d points; falling back to unscaled distances", t, len(points))
		return rawDistanceFunc(points, x, y)
	}

	return func(i, j int) float64 {
		if i < 0 || j < 0 || i >= len(scaled) || j >= len(scaled) {
			return math.Inf(1)
		}
		x1, y1 := scaled[i][0], scaled[i][1]
		x2, y2 := scaled[j][0], scaled[j][1]
		if math.IsNaN(x1) || math.IsNaN(y1) || math.IsNaN(x2) || math.IsNaN(y2) {
			return math.Inf(1)
		}
		return math.Hypot(x1-x2, y1-y2)
	}
}

// rawDistanceFunc measures plain Euclidean distance on unscaled coordinates.
func rawDistanceFunc(points []*Point, x, y FeatureExtractor) DistanceFunc {
	return func(i, j int) float64 {
		if i < 0 || j < 0 || i >= len(points) || j >= len(points) {
			return math.Inf(1)
		}
		p1, p2 := points[i], points[j]
		if p1 == nil || p2 == nil {
			return math.Inf(1)
		}
		x1, y1 := x(p1), y(p1)
		x2, y2 := x(p2), y(p2)
		if math.IsNaN(x1) || math.IsNaN(y1) || math.IsNaN(x2) || math.IsNaN(y2) {
			return math.Inf(1)
		}
		return math.Hypot(x1-x2, y1-y2)
	}
}

// regionQuery collects all indices within eps of index i, including i
// itself. Brute-force O(n) scan; no spatial index is used at the expected
// scale of tens to low hundreds of trackers.
func regionQuery(n int, i int, eps float64, dist DistanceFunc) []int {
	neighbors := make([]int, 0, 8)
	for j := 0; j < n; j++ {
		d := dist(i, j)
		if !math.IsNaN(d) && !math.IsInf(d, 0) && d <= eps {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}
