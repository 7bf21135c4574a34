package analysis

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
)

func kDistanceVariables(t *testing.T) (FeatureExtractor, FeatureExtractor) {
	t.Helper()
	x, err := VariableByName(VarDCPower)
	if err != nil {
		t.Fatal(err)
	}
	y, err := VariableByName(VarDCVoltage)
	if err != nil {
		t.Fatal(err)
	}
	return x, y
}

func TestKDistances_NearestNeighborCurve(t *testing.T) {
	points := []*Point{
		powerPoint("a", 0), powerPoint("b", 1),
		powerPoint("c", 3), powerPoint("d", 7),
	}
	x, y := kDistanceVariables(t)

	got, err := KDistances(context.Background(), points, 1, ScalingNone, x, y)
	if err != nil {
		t.Fatalf("KDistances failed: %v", err)
	}
	want := []float64{1, 1, 2, 4}
	if len(got) != len(want) {
		t.Fatalf("got %d distances, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("distance[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestKDistances_SkipsPointsWithoutEnoughNeighbors(t *testing.T) {
	// The NaN point has no finite neighbor distances and contributes
	// nothing; the remaining points still see each other.
	points := []*Point{
		powerPoint("a", 0), powerPoint("b", 1), powerPoint("nan", math.NaN()),
	}
	x, y := kDistanceVariables(t)

	got, err := KDistances(context.Background(), points, 1, ScalingNone, x, y)
	if err != nil {
		t.Fatalf("KDistances failed: %v", err)
	}
	if want := []float64{1, 1}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestKDistances_TooFewPoints(t *testing.T) {
	points := []*Point{powerPoint("a", 0), powerPoint("b", 1)}
	x, y := kDistanceVariables(t)

	got, err := KDistances(context.Background(), points, 2, ScalingNone, x, y)
	if err != nil {
		t.Fatalf("KDistances failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want empty curve", got)
	}
}

func TestKDistances_InvalidK(t *testing.T) {
	points := []*Point{powerPoint("a", 0)}
	x, y := kDistanceVariables(t)

	if _, err := KDistances(context.Background(), points, 0, ScalingNone, x, y); err == nil {
		t.Error("expected error for k=0")
	}
	if _, err := KDistances(context.Background(), points, -1, ScalingNone, x, y); err == nil {
		t.Error("expected error for negative k")
	}
}

func TestKDistances_Cancelled(t *testing.T) {
	points := []*Point{
		powerPoint("a", 0), powerPoint("b", 1), powerPoint("c", 2),
	}
	x, y := kDistanceVariables(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := KDistances(ctx, points, 1, ScalingNone, x, y)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
