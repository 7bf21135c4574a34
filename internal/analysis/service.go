package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/helios-data/yield.report/internal/monitoring"
	"github.com/helios-data/yield.report/internal/plant"
)

// Performance labels assigned relative to the orientation median of
// specific power.
const (
	LabelHigh   = "hoch"
	LabelLow    = "niedrig"
	LabelMedian = "median"
)

// minPowerThresholdKW is the minimum DC power for a measurement to count
// as production in interval mode.
const minPowerThresholdKW = 0.05

// Mode selects how the analysis snapshot is assembled from the time series.
type Mode int

const (
	// ModeSingleTimestamp analyzes the measurements of one timestamp.
	ModeSingleTimestamp Mode = iota
	// ModeMaxVectorInterval picks, per tracker, the measurement with the
	// highest rescaled power within a time interval.
	ModeMaxVectorInterval
)

func (m Mode) String() string {
	switch m {
	case ModeSingleTimestamp:
		return "single_timestamp"
	case ModeMaxVectorInterval:
		return "max_vector_interval"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode maps the wire names of the analysis modes.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "single_timestamp":
		return ModeSingleTimestamp, nil
	case "max_vector_interval":
		return ModeMaxVectorInterval, nil
	default:
		return ModeSingleTimestamp, &ConfigError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", s)}
	}
}

// ConfigError reports an invalid analysis configuration. Handlers map it
// to a client error instead of a server fault.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid analysis config: %s: %s", e.Field, e.Reason)
}

// Config carries the parameters of one analysis run.
type Config struct {
	Mode          Mode
	Timestamp     string
	IntervalStart string
	IntervalEnd   string

	XVariable string
	YVariable string

	OPTICSEpsilon float64
	OPTICSMinPts  int
	OPTICSScaling ScalingType

	DBSCANEpsilon float64
	DBSCANMinPts  int
	DBSCANScaling ScalingType
}

// DefaultConfig returns the stock parameter set used when a request leaves
// tuning values unset.
func DefaultConfig() Config {
	return Config{
		Mode:          ModeSingleTimestamp,
		XVariable:     VarSpecificPower,
		YVariable:     VarDCVoltage,
		OPTICSEpsilon: 10.0,
		OPTICSMinPts:  5,
		OPTICSScaling: ScalingNone,
		DBSCANEpsilon: 0.05,
		DBSCANMinPts:  3,
		DBSCANScaling: ScalingMinMax,
	}
}

// Validate checks the parameter ranges and mode inputs that do not require
// the dataset.
func (c Config) Validate() error {
	if c.OPTICSEpsilon <= 0 {
		return &ConfigError{Field: "optics_epsilon", Reason: "must be positive"}
	}
	if c.OPTICSMinPts < 1 {
		return &ConfigError{Field: "optics_min_pts", Reason: "must be at least 1"}
	}
	if c.DBSCANEpsilon <= 0 {
		return &ConfigError{Field: "dbscan_epsilon", Reason: "must be positive"}
	}
	if c.DBSCANMinPts < 1 {
		return &ConfigError{Field: "dbscan_min_pts", Reason: "must be at least 1"}
	}
	if _, err := VariableByName(c.XVariable); err != nil {
		return &ConfigError{Field: "x_variable", Reason: err.Error()}
	}
	if _, err := VariableByName(c.YVariable); err != nil {
		return &ConfigError{Field: "y_variable", Reason: err.Error()}
	}
	return nil
}

// Service runs the analysis pipeline over one plant dataset.
type Service struct {
	data *plant.Data
}

// NewService wraps a loaded dataset for analysis runs. The service itself
// is stateless between runs.
func NewService(data *plant.Data) *Service {
	return &Service{data: data}
}

// Result is the outcome of one full analysis run.
type Result struct {
	RunID         string
	Mode          Mode
	Points        []*Point
	ClusterCount  int
	OutliersFound bool

	byOrientation map[string][]*Point
	orientNames   []string
}

// Orientations lists the orientation groups in order of first appearance
// among the name-sorted points.
func (r *Result) Orientations() []string {
	out := make([]string, len(r.orientNames))
	copy(out, r.orientNames)
	return out
}

// PointsForOrientation returns the points of one orientation group, nil
// for unknown orientations.
func (r *Result) PointsForOrientation(orientation string) []*Point {
	return r.byOrientation[orientation]
}

// Outliers returns the points flagged by outlier detection.
func (r *Result) Outliers() []*Point {
	var out []*Point
	for _, p := range r.Points {
		if p.Outlier {
			out = append(out, p)
		}
	}
	return out
}

// Run executes the full pipeline: snapshot preparation, density
// clustering, per-orientation outlier detection, and performance labeling.
// On cancellation the partially computed flags are reset before the
// context error is returned.
func (s *Service) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	xExtract, _ := VariableByName(cfg.XVariable)
	yExtract, _ := VariableByName(cfg.YVariable)

	monitoring.Logf("analysis run starting: mode=%s x=%s y=%s", cfg.Mode, cfg.XVariable, cfg.YVariable)

	points, err := s.prepare(ctx, cfg)
	if err != nil {
		return nil, err
	}
	result := &Result{
		RunID:  uuid.NewString(),
		Mode:   cfg.Mode,
		Points: points,
	}
	if len(points) == 0 {
		monitoring.Logf("analysis aborted: no processable data for mode %s", cfg.Mode)
		result.byOrientation = map[string][]*Point{}
		return result, nil
	}

	for _, p := range points {
		p.resetAnalysisOutputs()
	}
	result.orientNames, result.byOrientation = groupByOrientation(points)

	clusterCount, err := s.cluster(ctx, points, cfg, xExtract, yExtract)
	if err != nil {
		resetAll(points)
		return nil, err
	}
	result.ClusterCount = clusterCount

	outliersFound, err := s.detectOutliers(ctx, result, cfg, xExtract, yExtract)
	if err != nil {
		resetAll(points)
		return nil, err
	}
	result.OutliersFound = outliersFound

	if err := ctx.Err(); err != nil {
		resetAll(points)
		return nil, err
	}
	applyPerformanceLabels(result.orientNames, result.byOrientation)

	monitoring.Logf("analysis run %s finished: %d points, %d clusters, outliers=%v",
		result.RunID, len(points), clusterCount, outliersFound)
	return result, nil
}

// prepare builds the per-tracker point snapshot for the configured mode.
func (s *Service) prepare(ctx context.Context, cfg Config) ([]*Point, error) {
	switch cfg.Mode {
	case ModeSingleTimestamp:
		if cfg.Timestamp == "" || !s.data.HasTimestamp(cfg.Timestamp) {
			return nil, &ConfigError{Field: "timestamp", Reason: fmt.Sprintf("timestamp %q not present in dataset", cfg.Timestamp)}
		}
		return s.prepareSingle(cfg.Timestamp), nil
	case ModeMaxVectorInterval:
		return s.prepareInterval(ctx, cfg.IntervalStart, cfg.IntervalEnd)
	default:
		return nil, &ConfigError{Field: "mode", Reason: fmt.Sprintf("unknown mode %d", int(cfg.Mode))}
	}
}

func (s *Service) prepareSingle(ts string) []*Point {
	module := s.data.Module()
	points := make([]*Point, 0, s.data.TrackerCount())
	for _, name := range s.data.TrackerNames() {
		tracker, _ := s.data.Tracker(name)
		powerKW := s.data.Value(ts, name, plant.MetricPowerKW)
		voltageV := s.data.Value(ts, name, plant.MetricVoltageV)
		points = append(points, NewPoint(name, powerKW, voltageV, tracker, module, ts))
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Name < points[j].Name })
	return points
}

// prepareInterval finds, per tracker, the measurement with the highest
// min-max rescaled power inside the interval. Rescaling bounds come from a
// first pass over all trackers; a tracker without a qualifying measurement
// is omitted.
func (s *Service) prepareInterval(ctx context.Context, start, end string) ([]*Point, error) {
	startIdx := s.data.TimestampIndex(start)
	endIdx := s.data.TimestampIndex(end)
	if startIdx < 0 || endIdx < 0 {
		return nil, &ConfigError{Field: "interval", Reason: "interval boundaries not present in dataset"}
	}
	startTime, err := plant.ParseTimestamp(start)
	if err != nil {
		return nil, &ConfigError{Field: "interval_start", Reason: err.Error()}
	}
	endTime, err := plant.ParseTimestamp(end)
	if err != nil {
		return nil, &ConfigError{Field: "interval_end", Reason: err.Error()}
	}
	if startTime.After(endTime) {
		return nil, &ConfigError{Field: "interval", Reason: "interval start must not be after interval end"}
	}

	names := s.data.TrackerNames()

	// Pass 1: global power bounds over all producing measurements.
	minPower, maxPower := math.Inf(1), math.Inf(-1)
	found := false
	for i := startIdx; i <= endIdx; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, name := range names {
			powerKW := s.data.ValueAt(i, name, plant.MetricPowerKW)
			voltageV := s.data.ValueAt(i, name, plant.MetricVoltageV)
			if math.IsNaN(powerKW) || math.IsNaN(voltageV) || powerKW <= minPowerThresholdKW {
				continue
			}
			minPower = math.Min(minPower, powerKW)
			maxPower = math.Max(maxPower, powerKW)
			found = true
		}
	}
	if !found {
		monitoring.Logf("interval %s..%s: no measurements above %.2f kW", start, end, minPowerThresholdKW)
		return nil, nil
	}
	powerRange := maxPower - minPower
	powerConstant := math.Abs(powerRange) < nearZero

	// Pass 2: per tracker, the measurement maximizing rescaled power.
	module := s.data.Module()
	timestamps := s.data.Timestamps()
	points := make([]*Point, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tracker, _ := s.data.Tracker(name)
		bestScaled := -1.0
		bestPower, bestVoltage := math.NaN(), math.NaN()
		bestTS := ""
		for i := startIdx; i <= endIdx; i++ {
			powerKW := s.data.ValueAt(i, name, plant.MetricPowerKW)
			voltageV := s.data.ValueAt(i, name, plant.MetricVoltageV)
			if math.IsNaN(powerKW) || math.IsNaN(voltageV) || powerKW <= minPowerThresholdKW {
				continue
			}
			scaled := 0.5
			if !powerConstant {
				scaled = (powerKW - minPower) / powerRange
			}
			if scaled > bestScaled {
				bestScaled = scaled
				bestPower = powerKW
				bestVoltage = voltageV
				bestTS = timestamps[i]
			}
		}
		if bestTS == "" {
			monitoring.Logf("interval %s..%s: tracker %s has no qualifying measurement, skipping", start, end, name)
			continue
		}
		points = append(points, NewPoint(name, bestPower, bestVoltage, tracker, module, bestTS))
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Name < points[j].Name })
	return points, nil
}

// cluster runs global density clustering and returns the number of
// distinct cluster ids assigned.
func (s *Service) cluster(ctx context.Context, points []*Point, cfg Config, x, y FeatureExtractor) (int, error) {
	valid := validPoints(points, x, y)
	if len(valid) < cfg.OPTICSMinPts {
		monitoring.Logf("clustering skipped: %d valid points < minPts %d", len(valid), cfg.OPTICSMinPts)
		return 0, nil
	}
	dist := BuildDistanceFunc(valid, cfg.OPTICSScaling, x, y)
	res, err := runOPTICS(ctx, len(valid), cfg.OPTICSEpsilon, cfg.OPTICSMinPts, dist)
	if err != nil {
		return 0, err
	}
	ids := map[int]bool{}
	for i, p := range valid {
		p.ClusterID = res.clusters[i]
		if p.ClusterID >= 0 {
			ids[p.ClusterID] = true
		}
	}
	return len(ids), nil
}

// detectOutliers runs outlier detection per orientation group. A group
// where more than half the points are flagged has its flags discarded.
// Returns whether any group kept at least one outlier.
func (s *Service) detectOutliers(ctx context.Context, result *Result, cfg Config, x, y FeatureExtractor) (bool, error) {
	anyFound := false
	for _, orientation := range result.orientNames {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		group := result.byOrientation[orientation]
		valid := validPoints(group, x, y)
		if len(valid) < cfg.DBSCANMinPts {
			monitoring.Logf("outlier detection skipped for %q: %d valid points < minPts %d",
				orientation, len(valid), cfg.DBSCANMinPts)
			continue
		}
		dist := BuildDistanceFunc(valid, cfg.DBSCANScaling, x, y)
		outliers, err := runDBSCAN(ctx, len(valid), cfg.DBSCANEpsilon, cfg.DBSCANMinPts, dist)
		if err != nil {
			return false, err
		}
		count := 0
		for i, p := range valid {
			p.Outlier = outliers[i]
			if outliers[i] {
				count++
			}
		}
		if count*2 > len(valid) {
			monitoring.Logf("orientation %q: %d of %d points flagged, discarding outlier flags",
				orientation, count, len(valid))
			for _, p := range valid {
				p.Outlier = false
			}
		} else if count > 0 {
			anyFound = true
		}
	}
	return anyFound, nil
}

// applyPerformanceLabels labels each point against the median specific
// power of its orientation group.
func applyPerformanceLabels(orientations []string, byOrientation map[string][]*Point) {
	for _, orientation := range orientations {
		group := byOrientation[orientation]
		values := make([]float64, 0, len(group))
		for _, p := range group {
			values = append(values, p.SpecificPower)
		}
		median := medianFinite(values)
		if math.IsNaN(median) {
			monitoring.Logf("no finite specific power values for orientation %q", orientation)
			for _, p := range group {
				p.PerformanceLabel = ""
			}
			continue
		}
		for _, p := range group {
			switch {
			case math.IsNaN(p.SpecificPower):
				p.PerformanceLabel = ""
			case p.SpecificPower > median+nearZero:
				p.PerformanceLabel = LabelHigh
			case p.SpecificPower < median-nearZero:
				p.PerformanceLabel = LabelLow
			default:
				p.PerformanceLabel = LabelMedian
			}
		}
	}
}

// groupByOrientation partitions points by orientation, preserving the
// order of first appearance.
func groupByOrientation(points []*Point) ([]string, map[string][]*Point) {
	var order []string
	groups := make(map[string][]*Point)
	for _, p := range points {
		if _, ok := groups[p.Orientation]; !ok {
			order = append(order, p.Orientation)
		}
		groups[p.Orientation] = append(groups[p.Orientation], p)
	}
	return order, groups
}

// validPoints filters points whose configured feature values are both
// finite.
func validPoints(points []*Point, x, y FeatureExtractor) []*Point {
	valid := make([]*Point, 0, len(points))
	for _, p := range points {
		if p == nil {
			continue
		}
		xv, yv := x(p), y(p)
		if math.IsNaN(xv) || math.IsNaN(yv) || math.IsInf(xv, 0) || math.IsInf(yv, 0) {
			continue
		}
		valid = append(valid, p)
	}
	return valid
}

func resetAll(points []*Point) {
	for _, p := range points {
		p.resetAnalysisOutputs()
	}
}
