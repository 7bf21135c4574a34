package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/helios-data/yield.report/internal/monitoring"
)

// ScalingType selects the per-column normalization applied before distance
// computation.
type ScalingType int

const (
	// ScalingNone leaves values unscaled.
	ScalingNone ScalingType = iota
	// ScalingMinMax maps each column linearly to [0,1].
	ScalingMinMax
	// ScalingZScore standardizes each column to mean 0, stddev 1.
	ScalingZScore
)

// String returns the configuration-surface name of the scaling type.
func (t ScalingType) String() string {
	switch t {
	case ScalingNone:
		return "none"
	case ScalingMinMax:
		return "min-max"
	case ScalingZScore:
		return "z-score"
	default:
		return fmt.Sprintf("ScalingType(%d)", int(t))
	}
}

// ParseScalingType resolves a configuration-surface name to a ScalingType.
func ParseScalingType(s string) (ScalingType, error) {
	switch s {
	case "", "none":
		return ScalingNone, nil
	case "min-max", "minmax":
		return ScalingMinMax, nil
	case "z-score", "zscore":
		return ScalingZScore, nil
	default:
		return ScalingNone, fmt.Errorf("unknown scaling type %q", s)
	}
}

// ScaleMatrix scales a rows×cols matrix per column. It never mutates the
// input: for MIN_MAX and Z_SCORE it returns a scaled deep copy. For
// ScalingNone, empty input, or structurally inconsistent input (ragged
// rows) the original slice is returned unchanged, which callers detect as
// a scaling no-op.
//
// NaN entries are ignored when computing column statistics and preserved
// at their positions in the output.
func ScaleMatrix(data [][]float64, t ScalingType) [][]float64 {
	if t == ScalingNone || len(data) == 0 {
		return data
	}
	if len(data[0]) == 0 {
		monitoring.Logf("scaling skipped: input has zero columns")
		return data
	}
	cols := len(data[0])

	scaled := make([][]float64, len(data))
	for i, row := range data {
		if row == nil || len(row) != cols {
			monitoring.Logf("scaling skipped: inconsistent column count at row %d (expected %d)", i, cols)
			return data
		}
		scaled[i] = append([]float64(nil), row...)
	}

	switch t {
	case ScalingMinMax:
		minMaxScale(scaled, cols)
	case ScalingZScore:
		zScoreStandardize(scaled, cols)
	default:
		monitoring.Logf("unknown scaling type %v, returning unscaled data", t)
		return data
	}
	return scaled
}

// columnValid collects the non-NaN entries of one column.
func columnValid(data [][]float64, col int) []float64 {
	valid := make([]float64, 0, len(data))
	for _, row := range data {
		if !math.IsNaN(row[col]) {
			valid = append(valid, row[col])
		}
	}
	return valid
}

func minMaxScale(data [][]float64, cols int) {
	for j := 0; j < cols; j++ {
		valid := columnValid(data, j)
		if len(valid) == 0 {
			continue
		}
		min := floats.Min(valid)
		max := floats.Max(valid)
		rng := max - min

		if math.Abs(rng) < nearZero {
			// Constant column: valid entries map to the interval midpoint.
			for i := range data {
				if !math.IsNaN(data[i][j]) {
					data[i][j] = 0.5
				}
			}
			continue
		}
		for i := range data {
			if !math.IsNaN(data[i][j]) {
				data[i][j] = (data[i][j] - min) / rng
			}
		}
	}
}

func zScoreStandardize(data [][]float64, cols int) {
	for j := 0; j < cols; j++ {
		valid := columnValid(data, j)
		if len(valid) == 0 {
			continue
		}
		mean := stat.Mean(valid, nil)
		stdDev := stat.PopStdDev(valid, nil)

		if len(valid) < 2 || math.Abs(stdDev) < nearZero {
			// Undefined or zero spread: valid entries standardize to 0.
			for i := range data {
				if !math.IsNaN(data[i][j]) {
					data[i][j] = 0.0
				}
			}
			continue
		}
		for i := range data {
			if !math.IsNaN(data[i][j]) {
				data[i][j] = (data[i][j] - mean) / stdDev
			}
		}
	}
}
