package analysis

import (
	"container/heap"
	"context"
	"math"
	"sort"

	"github.com/helios-data/yield.report/internal/monitoring"
)

// ClusterNoise is the cluster id of points not assigned to any cluster.
const ClusterNoise = -1

// undefined marks an unknown core or reachability distance.
var undefined = math.Inf(1)

// opticsResult is the pure outcome of one OPTICS run over n points.
type opticsResult struct {
	// order lists point indices in processing order.
	order []int
	// clusters holds the per-index cluster id (ClusterNoise for noise).
	clusters []int
}

// opticsRun holds the per-run state of the ordering pass. All bookkeeping
// is keyed by index into the candidate slice the distance function was
// built over.
type opticsRun struct {
	n      int
	eps    float64
	minPts int
	dist   DistanceFunc

	coreDist  []float64
	reach     []float64
	processed []bool
	order     []int
	clusters  []int
	current   int
}

// runOPTICS computes a density cluster ordering over n points and assigns
// cluster ids in one global pass. Cancellation is checked at the top of the
// outer loop, the seed-queue drain loop, and the seed-update loop; on
// cancellation the context error is returned and the partial result must be
// discarded.
//
// Cluster ids are assigned with a simplified ordering rule rather than full
// reachability-plot segmentation: a point whose reachability is below eps
// continues the current cluster, unless its predecessor in the ordering had
// undefined or >= eps reachability, in which case a new cluster id starts.
// All other points are noise.
func runOPTICS(ctx context.Context, n int, eps float64, minPts int, dist DistanceFunc) (*opticsResult, error) {
	r := &opticsRun{
		n:         n,
		eps:       eps,
		minPts:    minPts,
		dist:      dist,
		coreDist:  make([]float64, n),
		reach:     make([]float64, n),
		processed: make([]bool, n),
		order:     make([]int, 0, n),
		clusters:  make([]int, n),
		current:   -1,
	}
	for i := 0; i < n; i++ {
		r.coreDist[i] = undefined
		r.reach[i] = undefined
		r.clusters[i] = ClusterNoise
	}

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r.processed[i] {
			continue
		}
		if err := r.expandOrder(ctx, i); err != nil {
			return nil, err
		}
	}

	monitoring.Logf("optics finished: %d points ordered, %d cluster ids", len(r.order), r.current+1)
	return &opticsResult{order: r.order, clusters: r.clusters}, nil
}

// expandOrder processes one seed point and drains its reachability queue.
func (r *opticsRun) expandOrder(ctx context.Context, start int) error {
	neighbors := regionQuery(r.n, start, r.eps, r.dist)
	r.processed[start] = true
	r.order = append(r.order, start)
	r.coreDist[start] = r.calcCoreDistance(start, neighbors)
	r.assignClusterID(start, undefined)

	if math.IsInf(r.coreDist[start], 1) {
		return nil
	}

	seeds := newReachHeap(r.reach)
	if err := r.updateSeeds(ctx, seeds, start, neighbors); err != nil {
		return err
	}

	for seeds.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		cur := seeds.popMin()
		if r.processed[cur] {
			continue
		}
		curNeighbors := regionQuery(r.n, cur, r.eps, r.dist)
		r.processed[cur] = true
		r.order = append(r.order, cur)
		r.assignClusterID(cur, r.reach[cur])
		r.coreDist[cur] = r.calcCoreDistance(cur, curNeighbors)
		if !math.IsInf(r.coreDist[cur], 1) {
			if err := r.updateSeeds(ctx, seeds, cur, curNeighbors); err != nil {
				return err
			}
		}
	}
	return nil
}

// updateSeeds lowers the reachability of every unprocessed neighbor of a
// core point and (re)queues it.
func (r *opticsRun) updateSeeds(ctx context.Context, seeds *reachHeap, core int, neighbors []int) error {
	coreDist := r.coreDist[core]
	for _, nb := range neighbors {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.processed[nb] {
			continue
		}
		d := r.dist(core, nb)
		if math.IsNaN(d) || math.IsInf(d, 0) {
			monitoring.Logf("optics: invalid distance between %d and %d, skipping seed update", core, nb)
			continue
		}
		newReach := math.Max(coreDist, d)
		if newReach < r.reach[nb] {
			r.reach[nb] = newReach
			seeds.update(nb)
		}
	}
	return nil
}

// assignClusterID applies the simplified cluster-continuation rule for the
// point just appended to the ordering.
func (r *opticsRun) assignClusterID(i int, reach float64) {
	prevNoiseOrUndefined := true
	if len(r.order) >= 2 {
		prev := r.order[len(r.order)-2]
		prevReach := r.reach[prev]
		prevNoiseOrUndefined = prevReach >= r.eps || math.IsInf(prevReach, 1)
	}
	if reach < r.eps && !math.IsInf(reach, 1) {
		if prevNoiseOrUndefined {
			r.current++
		}
		r.clusters[i] = r.current
	} else {
		r.clusters[i] = ClusterNoise
	}
}

// calcCoreDistance computes the distance to the (minPts-1)-th nearest
// neighbor, defined only when enough neighbors exist and the distance is
// within eps. The neighbor list includes the point itself.
func (r *opticsRun) calcCoreDistance(i int, neighbors []int) float64 {
	if len(neighbors) < r.minPts {
		return undefined
	}
	if r.minPts < 2 {
		// A point is trivially core with respect to itself.
		return 0
	}
	distances := make([]float64, 0, len(neighbors))
	for _, nb := range neighbors {
		if nb == i {
			continue
		}
		d := r.dist(i, nb)
		if !math.IsNaN(d) && !math.IsInf(d, 0) {
			distances = append(distances, d)
		}
	}
	if len(distances) < r.minPts-1 {
		return undefined
	}
	sort.Float64s(distances)
	coreDist := distances[r.minPts-2]
	if coreDist <= r.eps {
		return coreDist
	}
	return undefined
}

// reachHeap is a min-heap of point indices keyed by their current
// reachability distance, with decrease-key support via heap.Fix.
type reachHeap struct {
	items []int
	pos   map[int]int
	reach []float64
}

func newReachHeap(reach []float64) *reachHeap {
	return &reachHeap{pos: make(map[int]int), reach: reach}
}

func (h *reachHeap) Len() int { return len(h.items) }

func (h *reachHeap) Less(i, j int) bool { return h.reach[h.items[i]] < h.reach[h.items[j]] }

func (h *reachHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.pos[h.items[i]] = i
	h.pos[h.items[j]] = j
}

func (h *reachHeap) Push(x any) {
	idx := x.(int)
	h.pos[idx] = len(h.items)
	h.items = append(h.items, idx)
}

func (h *reachHeap) Pop() any {
	last := len(h.items) - 1
	idx := h.items[last]
	h.items = h.items[:last]
	delete(h.pos, idx)
	return idx
}

// update requeues a point after its reachability was lowered, pushing it
// if not yet queued.
func (h *reachHeap) update(idx int) {
	if p, ok := h.pos[idx]; ok {
		heap.Fix(h, p)
		return
	}
	heap.Push(h, idx)
}

// popMin removes and returns the index with the smallest reachability.
func (h *reachHeap) popMin() int {
	return heap.Pop(h).(int)
}
