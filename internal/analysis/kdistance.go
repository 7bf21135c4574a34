package analysis

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/helios-data/yield.report/internal/monitoring"
)

// KDistances computes the sorted k-distance curve for a point set: for
// every point with at least k finite distances to other points, the
// distance to its k-th nearest neighbor. The result is sorted ascending
// and feeds KneePointValue for epsilon estimation.
//
// Points with fewer than k finite neighbor distances contribute nothing.
// Returns an empty slice when len(points) <= k.
func KDistances(ctx context.Context, points []*Point, k int, scaling ScalingType, x, y FeatureExtractor) ([]float64, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	n := len(points)
	if n <= k {
		monitoring.Logf("k-distance: not enough points (%d) for k=%d", n, k)
		return []float64{}, nil
	}

	dist := BuildDistanceFunc(points, scaling, x, y)

	// Each worker writes only its own stride of slots, NaN marks a point
	// without enough finite neighbors.
	slots := make([]float64, n)
	workers := runtime.NumCPU()
	if workers > n {
		workers = n
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(start int) {
			defer wg.Done()
			for i := start; i < n; i += workers {
				if ctx.Err() != nil {
					return
				}
				slots[i] = kthNeighborDistance(i, n, k, dist)
			}
		}(w)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := make([]float64, 0, n)
	for _, d := range slots {
		if !math.IsNaN(d) {
			result = append(result, d)
		}
	}
	sort.Float64s(result)
	monitoring.Logf("k-distance: computed %d of %d distances for k=%d", len(result), n, k)
	return result, nil
}

// KDistanceCurve prepares the snapshot for cfg and computes the k-distance
// curve over its valid points, together with the knee estimate (-1 when no
// knee exists). k is typically minPts-1 of the algorithm being tuned.
func (s *Service) KDistanceCurve(ctx context.Context, cfg Config, k int, scaling ScalingType) ([]float64, float64, error) {
	if err := cfg.Validate(); err != nil {
		return nil, -1, err
	}
	x, _ := VariableByName(cfg.XVariable)
	y, _ := VariableByName(cfg.YVariable)
	points, err := s.prepare(ctx, cfg)
	if err != nil {
		return nil, -1, err
	}
	valid := validPoints(points, x, y)
	curve, err := KDistances(ctx, valid, k, scaling, x, y)
	if err != nil {
		return nil, -1, err
	}
	return curve, KneePointValue(curve), nil
}

// kthNeighborDistance returns the k-th smallest finite distance from point
// i to the other points, or NaN when fewer than k exist.
func kthNeighborDistance(i, n, k int, dist DistanceFunc) float64 {
	distances := make([]float64, 0, n-1)
	for j := 0; j < n; j++ {
		if j == i {
			continue
		}
		d := dist(i, j)
		if !math.IsNaN(d) && !math.IsInf(d, 0) {
			distances = append(distances, d)
		}
	}
	if len(distances) < k {
		return math.NaN()
	}
	sort.Float64s(distances)
	return distances[k-1]
}
