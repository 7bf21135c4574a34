package analysis

import (
	"math"
	"testing"
)

func TestParseScalingType(t *testing.T) {
	tests := []struct {
		in      string
		want    ScalingType
		wantErr bool
	}{
		{"", ScalingNone, false},
		{"none", ScalingNone, false},
		{"min-max", ScalingMinMax, false},
		{"minmax", ScalingMinMax, false},
		{"z-score", ScalingZScore, false},
		{"zscore", ScalingZScore, false},
		{"robust", ScalingNone, true},
	}
	for _, tt := range tests {
		got, err := ParseScalingType(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseScalingType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseScalingType(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestScaleMatrix_NoneReturnsInput(t *testing.T) {
	data := [][]float64{{1, 2}, {3, 4}}
	scaled := ScaleMatrix(data, ScalingNone)
	if &scaled[0] != &data[0] {
		t.Error("expected ScalingNone to return the input slice unchanged")
	}
}

func TestScaleMatrix_EmptyReturnsInput(t *testing.T) {
	if got := ScaleMatrix(nil, ScalingMinMax); got != nil {
		t.Errorf("expected nil passthrough, got %v", got)
	}
}

func TestScaleMatrix_RaggedReturnsInput(t *testing.T) {
	data := [][]float64{{1, 2}, {3}}
	scaled := ScaleMatrix(data, ScalingMinMax)
	if &scaled[0] != &data[0] {
		t.Error("expected ragged input to be returned unchanged")
	}
}

func TestScaleMatrix_MinMax(t *testing.T) {
	data := [][]float64{{0, 10}, {5, 20}, {10, 30}}
	scaled := ScaleMatrix(data, ScalingMinMax)

	want := [][]float64{{0, 0}, {0.5, 0.5}, {1, 1}}
	for i := range want {
		for j := range want[i] {
			if math.Abs(scaled[i][j]-want[i][j]) > 1e-12 {
				t.Errorf("scaled[%d][%d] = %v, want %v", i, j, scaled[i][j], want[i][j])
			}
		}
	}
	// Input must not be mutated.
	if data[0][0] != 0 || data[2][1] != 30 {
		t.Error("input matrix was mutated")
	}
}

func TestScaleMatrix_MinMaxConstantColumn(t *testing.T) {
	data := [][]float64{{7, 1}, {7, 2}, {7, 3}}
	scaled := ScaleMatrix(data, ScalingMinMax)
	for i := range scaled {
		if scaled[i][0] != 0.5 {
			t.Errorf("constant column row %d = %v, want 0.5", i, scaled[i][0])
		}
	}
}

func TestScaleMatrix_MinMaxPreservesNaN(t *testing.T) {
	data := [][]float64{{1, math.NaN()}, {3, 4}}
	scaled := ScaleMatrix(data, ScalingMinMax)

	if scaled[0][0] != 0 || scaled[1][0] != 1 {
		t.Errorf("column 0 = [%v %v], want [0 1]", scaled[0][0], scaled[1][0])
	}
	if !math.IsNaN(scaled[0][1]) {
		t.Errorf("NaN entry was rewritten to %v", scaled[0][1])
	}
	// The single valid entry of column 1 counts as a constant column.
	if scaled[1][1] != 0.5 {
		t.Errorf("single-value column = %v, want 0.5", scaled[1][1])
	}
}

func TestScaleMatrix_ZScore(t *testing.T) {
	// Column 0 has mean 5 and population stddev 2.
	col := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	data := make([][]float64, len(col))
	for i, v := range col {
		data[i] = []float64{v, 1}
	}
	scaled := ScaleMatrix(data, ScalingZScore)

	var sum, sumSq float64
	for i, v := range col {
		want := (v - 5) / 2
		if math.Abs(scaled[i][0]-want) > 1e-12 {
			t.Errorf("scaled[%d][0] = %v, want %v", i, scaled[i][0], want)
		}
		sum += scaled[i][0]
		sumSq += scaled[i][0] * scaled[i][0]
		// Constant column standardizes to 0.
		if scaled[i][1] != 0 {
			t.Errorf("constant column row %d = %v, want 0", i, scaled[i][1])
		}
	}
	n := float64(len(col))
	mean := sum / n
	stdDev := math.Sqrt(sumSq/n - mean*mean)
	if math.Abs(mean) > 1e-6 || math.Abs(stdDev-1) > 1e-6 {
		t.Errorf("standardized column has mean %v stddev %v, want 0 and 1", mean, stdDev)
	}
}

func TestScaleMatrix_ZScoreSingleRow(t *testing.T) {
	data := [][]float64{{42, 7}}
	scaled := ScaleMatrix(data, ScalingZScore)
	if scaled[0][0] != 0 || scaled[0][1] != 0 {
		t.Errorf("single row = %v, want zeros", scaled[0])
	}
}
