package analysis

import (
	"context"
	"math"
	"sort"

	"github.com/helios-data/yield.report/internal/monitoring"
)

const (
	statusUnclassified = -2
	statusNoise        = -1
)

// runDBSCAN flags density outliers among n points. The returned slice has
// one entry per index; true marks a point that ended up unclassified or as
// noise. Cancellation is checked before each unvisited point and inside the
// cluster expansion loop.
func runDBSCAN(ctx context.Context, n int, eps float64, minPts int, dist DistanceFunc) ([]bool, error) {
	status := make([]int, n)
	for i := range status {
		status[i] = statusUnclassified
	}

	nextID := 0
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if status[i] != statusUnclassified {
			continue
		}
		if expandCluster(ctx, i, nextID, eps, minPts, n, dist, status) {
			nextID++
		} else if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	outliers := make([]bool, n)
	count := 0
	for i, s := range status {
		if s < 0 {
			outliers[i] = true
			count++
		}
	}
	monitoring.Logf("dbscan finished: %d points, %d clusters, %d outliers", n, nextID, count)
	return outliers, nil
}

// expandCluster attempts to grow a cluster from a seed point, returning
// true when the seed was a core point and the cluster id was consumed.
func expandCluster(ctx context.Context, seed, id int, eps float64, minPts, n int, dist DistanceFunc, status []int) bool {
	seeds := regionQuery(n, seed, eps, dist)
	if len(seeds) < minPts {
		status[seed] = statusNoise
		return false
	}

	queued := make(map[int]bool, len(seeds))
	for _, s := range seeds {
		status[s] = id
		queued[s] = true
	}

	// Breadth-first expansion over the region queries of newly claimed
	// core candidates.
	for head := 0; head < len(seeds); head++ {
		if ctx.Err() != nil {
			return false
		}
		cur := seeds[head]
		result := regionQuery(n, cur, eps, dist)
		if len(result) < minPts {
			continue
		}
		for _, nb := range result {
			switch status[nb] {
			case statusUnclassified:
				status[nb] = id
				if !queued[nb] {
					queued[nb] = true
					seeds = append(seeds, nb)
				}
			case statusNoise:
				// Noise reachable from a core point becomes a
				// border point of this cluster.
				status[nb] = id
			}
		}
	}
	return true
}

// medianFinite returns the median of the finite values in vs, or NaN when
// none exist. Even-length inputs use the mean of the two middle values.
func medianFinite(vs []float64) float64 {
	finite := make([]float64, 0, len(vs))
	for _, v := range vs {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return math.NaN()
	}
	sort.Float64s(finite)
	n := len(finite)
	if n%2 == 1 {
		return finite[n/2]
	}
	return (finite[n/2-1] + finite[n/2]) / 2
}
