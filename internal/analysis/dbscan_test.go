package analysis

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
)

func TestRunDBSCAN_FlagsIsolatedPoint(t *testing.T) {
	points := []*Point{
		powerPoint("a", 1.0), powerPoint("b", 1.1), powerPoint("c", 1.2),
		powerPoint("d", 1.3), powerPoint("e", 1.4),
		powerPoint("lonely", 50.0),
	}
	dist := powerDistance(t, points)

	outliers, err := runDBSCAN(context.Background(), len(points), 0.5, 3, dist)
	if err != nil {
		t.Fatalf("runDBSCAN failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		if outliers[i] {
			t.Errorf("point %d flagged as outlier, want cluster member", i)
		}
	}
	if !outliers[5] {
		t.Error("isolated point not flagged as outlier")
	}
}

func TestRunDBSCAN_NoiseBecomesBorderPoint(t *testing.T) {
	// p0 is not a core point (only p1 within eps) and is first classified
	// as noise, then claimed as a border point when p1's cluster expands.
	points := []*Point{
		powerPoint("p0", 0.0),
		powerPoint("p1", 0.1),
		powerPoint("p2", 0.2),
		powerPoint("lonely", 10.0),
	}
	dist := powerDistance(t, points)

	outliers, err := runDBSCAN(context.Background(), len(points), 0.10000000001, 3, dist)
	if err != nil {
		t.Fatalf("runDBSCAN failed: %v", err)
	}

	want := []bool{false, false, false, true}
	if !reflect.DeepEqual(outliers, want) {
		t.Errorf("outliers = %v, want %v", outliers, want)
	}
}

func TestRunDBSCAN_AllNoiseWhenSparse(t *testing.T) {
	points := []*Point{
		powerPoint("a", 0), powerPoint("b", 10), powerPoint("c", 20),
	}
	dist := powerDistance(t, points)

	outliers, err := runDBSCAN(context.Background(), len(points), 1.0, 2, dist)
	if err != nil {
		t.Fatalf("runDBSCAN failed: %v", err)
	}
	for i, o := range outliers {
		if !o {
			t.Errorf("point %d not flagged, want all outliers", i)
		}
	}
}

func TestRunDBSCAN_Deterministic(t *testing.T) {
	points := []*Point{
		powerPoint("a", 1.0), powerPoint("b", 1.1), powerPoint("c", 1.2),
		powerPoint("d", 7.0), powerPoint("e", 7.1),
		powerPoint("f", 42.0),
	}
	dist := powerDistance(t, points)

	first, err := runDBSCAN(context.Background(), len(points), 0.3, 2, dist)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	second, err := runDBSCAN(context.Background(), len(points), 0.3, 2, dist)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("outlier flags differ between runs: %v vs %v", first, second)
	}
}

func TestRunDBSCAN_Cancelled(t *testing.T) {
	points := []*Point{powerPoint("a", 1), powerPoint("b", 2)}
	dist := powerDistance(t, points)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runDBSCAN(ctx, len(points), 1.0, 2, dist)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestMedianFinite(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want float64
	}{
		{"odd count", []float64{5, 1, 3}, 3},
		{"even count", []float64{4, 1, 3, 2}, 2.5},
		{"nan skipped", []float64{math.NaN(), 2, 1, 3}, 2},
		{"single", []float64{7}, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := medianFinite(tt.in); got != tt.want {
				t.Errorf("medianFinite(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
	if got := medianFinite([]float64{math.NaN()}); !math.IsNaN(got) {
		t.Errorf("medianFinite(all NaN) = %v, want NaN", got)
	}
}
