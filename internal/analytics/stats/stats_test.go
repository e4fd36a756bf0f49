package stats

import (
	"math"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestMeanAndStd(t *testing.T) {
	x := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	if got := Mean(x); !near(got, 5) {
		t.Fatalf("mean = %v", got)
	}
	// sample std of the classic example is sqrt(32/7)
	if got := SampleStd(x); !near(got, math.Sqrt(32.0/7.0)) {
		t.Fatalf("std = %v", got)
	}
	if !math.IsNaN(Mean(nil)) || !math.IsNaN(SampleStd([]float64{1})) {
		t.Fatal("degenerate input should give NaN")
	}
}

func TestSlope(t *testing.T) {
	if got := Slope([]float64{1, 3, 5, 7}); !near(got, 2) {
		t.Fatalf("slope = %v", got)
	}
	if got := Slope([]float64{4, 4, 4}); !near(got, 0) {
		t.Fatalf("flat slope = %v", got)
	}
	if !math.IsNaN(Slope([]float64{1})) {
		t.Fatal("single point should give NaN")
	}
}

func TestRollingMean(t *testing.T) {
	got := RollingMean([]float64{2, 4, 6, 8}, 2)
	want := []float64{2, 3, 5, 7}
	for i := range want {
		if !near(got[i], want[i]) {
			t.Fatalf("rolling mean = %v, want %v", got, want)
		}
	}
}

func TestHelpers(t *testing.T) {
	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"round 2", Round(1.23456, 2), 1.23},
		{"round 0", Round(2.5, 0), 3},
		{"clamp low", Clamp(-3, 0, 100), 0},
		{"clamp high", Clamp(130, 0, 100), 100},
		{"clamp nan", Clamp(math.NaN(), 0, 100), 0},
		{"sum", Sum([]float64{1, 2, 3.5}), 6.5},
	}
	for _, tt := range tests {
		if !near(tt.got, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
	if Usable(0) || Usable(math.NaN()) || Usable(math.Inf(1)) || !Usable(0.5) {
		t.Fatal("unexpected Usable result")
	}
}
