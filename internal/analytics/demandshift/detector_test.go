package demandshift

import (
	"math"
	"testing"
	"time"

	"github.com/andresuchdata/invengine/internal/config"
	"github.com/andresuchdata/invengine/internal/domain"
)

var testKey = domain.Key{ItemID: "SKU-1", LocationID: "LOC-1"}

func weekly(values ...float64) []domain.TimeSeriesPoint {
	start := time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)
	points := make([]domain.TimeSeriesPoint, len(values))
	for i, v := range values {
		points[i] = domain.TimeSeriesPoint{
			ItemID:     testKey.ItemID,
			LocationID: testKey.LocationID,
			WeekEnding: start.AddDate(0, 0, 7*i),
			QtySold:    v,
		}
	}
	return points
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func concat(parts ...[]float64) []float64 {
	var out []float64
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func defaultDetector() *Detector {
	return NewDetector(config.DefaultEngineConfig().DemandShift)
}

func TestDetectInsufficientData(t *testing.T) {
	d := defaultDetector()
	for n := 0; n < 12; n++ {
		res := d.Detect(testKey, weekly(repeat(100, n)...))
		if res.ShiftDetected {
			t.Fatalf("n=%d: expected no shift for short series", n)
		}
		if res.Reason != ReasonInsufficientData {
			t.Fatalf("n=%d: expected reason %q, got %q", n, ReasonInsufficientData, res.Reason)
		}
		if res.ShiftDirection != domain.DirectionStable {
			t.Fatalf("n=%d: expected stable direction, got %s", n, res.ShiftDirection)
		}
	}
}

func TestDetectStepDown(t *testing.T) {
	res := defaultDetector().Detect(testKey, weekly(concat(repeat(100, 10), repeat(20, 10))...))

	if !res.ShiftDetected {
		t.Fatal("expected shift to be detected")
	}
	if res.ShiftDirection != domain.DirectionDecrease {
		t.Fatalf("expected decrease, got %s", res.ShiftDirection)
	}
	if math.Abs(res.ShiftMagnitude-(-80)) > 0.01 {
		t.Fatalf("expected magnitude -80, got %v", res.ShiftMagnitude)
	}
	if res.BaselineDemand != 100 || res.CurrentDemand != 20 {
		t.Fatalf("unexpected demand levels %v -> %v", res.BaselineDemand, res.CurrentDemand)
	}
	if !res.MACrossoverSignal {
		t.Fatal("expected moving-average crossover to fire")
	}
	if res.CUSUMSignal || res.ZScoreSignal || res.TrendChangeSignal {
		t.Fatalf("unexpected signals: %+v", res)
	}
	if res.ShiftType != domain.ShiftSustained {
		t.Fatalf("expected sustained shift, got %q", res.ShiftType)
	}
	if res.ConfidenceScore != 65 {
		t.Fatalf("expected confidence 65, got %v", res.ConfidenceScore)
	}
}

func TestDetectFlatSeries(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
	}{
		{"constant demand", repeat(50, 24)},
		{"all zero", repeat(0, 12)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := defaultDetector().Detect(testKey, weekly(tt.values...))
			if res.ShiftDetected {
				t.Fatalf("expected no shift, got %+v", res)
			}
			if res.ShiftMagnitude != 0 || res.ConfidenceScore != 0 {
				t.Fatalf("expected zero magnitude/confidence, got %v/%v", res.ShiftMagnitude, res.ConfidenceScore)
			}
			if res.ShiftType != domain.ShiftNone {
				t.Fatalf("expected no shift type, got %q", res.ShiftType)
			}
		})
	}
}

func TestDetectSpike(t *testing.T) {
	res := defaultDetector().Detect(testKey, weekly(concat(repeat(10, 22), []float64{100})...))

	if !res.ZScoreSignal || res.AnomalyCount != 1 {
		t.Fatalf("expected one z-score anomaly, got signal=%v count=%d", res.ZScoreSignal, res.AnomalyCount)
	}
	if res.CUSUMSignal {
		t.Fatal("zero-variance baseline must not fire cusum")
	}
	if res.ShiftType != domain.ShiftSpike {
		t.Fatalf("expected spike, got %q", res.ShiftType)
	}
	if res.ShiftDirection != domain.DirectionIncrease {
		t.Fatalf("expected increase, got %s", res.ShiftDirection)
	}
	if res.ConfidenceScore != 100 {
		t.Fatalf("expected confidence capped at 100, got %v", res.ConfidenceScore)
	}
}

func alternating(a, b float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = a
		} else {
			out[i] = b
		}
	}
	return out
}

func TestDetectSustainedStepUp(t *testing.T) {
	res := defaultDetector().Detect(testKey, weekly(concat(alternating(9, 11, 12), repeat(20, 12))...))

	if !res.CUSUMSignal {
		t.Fatal("expected cusum to fire")
	}
	if res.ShiftType != domain.ShiftSustained {
		t.Fatalf("expected sustained, got %q", res.ShiftType)
	}
	if res.ShiftDirection != domain.DirectionIncrease {
		t.Fatalf("expected increase, got %s", res.ShiftDirection)
	}
	if math.Abs(res.ShiftMagnitude-100) > 0.01 {
		t.Fatalf("expected magnitude 100, got %v", res.ShiftMagnitude)
	}
}

func TestDetectTrendReversal(t *testing.T) {
	var values []float64
	for i := 0; i < 12; i++ {
		values = append(values, float64(10+i))
	}
	for i := 0; i < 12; i++ {
		values = append(values, float64(21-i))
	}

	res := defaultDetector().Detect(testKey, weekly(values...))
	if !res.TrendChangeSignal {
		t.Fatalf("expected trend change, slopes %v/%v", res.TrendSlopeFirst, res.TrendSlopeSecond)
	}
	if res.TrendSlopeFirst <= 0 || res.TrendSlopeSecond >= 0 {
		t.Fatalf("unexpected slopes %v/%v", res.TrendSlopeFirst, res.TrendSlopeSecond)
	}
}

func TestTrendChangeNeedsTwiceMinPoints(t *testing.T) {
	var values []float64
	for i := 0; i < 11; i++ {
		values = append(values, float64(10+i))
	}
	for i := 0; i < 11; i++ {
		values = append(values, float64(20-i))
	}

	res := defaultDetector().Detect(testKey, weekly(values...))
	if res.TrendChangeSignal {
		t.Fatal("trend change must not fire below 2x min data points")
	}
}

func TestCUSUMThresholdMonotonic(t *testing.T) {
	series := [][]float64{
		concat(repeat(100, 10), repeat(20, 10)),
		concat(alternating(9, 11, 12), repeat(20, 12)),
		concat(alternating(40, 60, 14), repeat(45, 10)),
		concat(alternating(5, 7, 12), repeat(6, 6), repeat(12, 6)),
		repeat(30, 20),
	}
	thresholds := []float64{0.25, 0.5, 1, 2, 4, 8, 1000}

	for si, values := range series {
		prevFired := true
		for _, th := range thresholds {
			cfg := config.DefaultEngineConfig().DemandShift
			cfg.CUSUMThreshold = th
			fired := NewDetector(cfg).Detect(testKey, weekly(values...)).CUSUMSignal
			if fired && !prevFired {
				t.Fatalf("series %d: cusum fired at threshold %v but not at a lower one", si, th)
			}
			prevFired = fired
		}
	}

	cfg := config.DefaultEngineConfig().DemandShift
	cfg.CUSUMThreshold = 1000
	if NewDetector(cfg).Detect(testKey, weekly(series[1]...)).CUSUMSignal {
		t.Fatal("expected a very high threshold to suppress cusum")
	}
}

func TestConfidenceBounds(t *testing.T) {
	d := defaultDetector()
	inputs := [][]float64{
		concat(repeat(1, 12), repeat(1000, 12)),
		concat(repeat(1000, 12), repeat(0, 12)),
		concat(repeat(0, 12), repeat(5, 12)),
	}
	for _, values := range inputs {
		res := d.Detect(testKey, weekly(values...))
		if res.ConfidenceScore < 0 || res.ConfidenceScore > 100 {
			t.Fatalf("confidence out of range: %v", res.ConfidenceScore)
		}
	}
}

func TestSignificant(t *testing.T) {
	results := []domain.DemandShiftResult{
		{ItemID: "a", ShiftDetected: true, ConfidenceScore: 40},
		{ItemID: "b", ShiftDetected: true, ConfidenceScore: 90},
		{ItemID: "c", ShiftDetected: false, ConfidenceScore: 95},
		{ItemID: "d", ShiftDetected: true, ConfidenceScore: 60},
	}

	got := Significant(results, 50)
	if len(got) != 2 || got[0].ItemID != "b" || got[1].ItemID != "d" {
		t.Fatalf("unexpected significant shifts: %+v", got)
	}

	sum := Summarize(results)
	if sum.ShiftsDetected != 3 || sum.TotalSeries != 4 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestMACrossoverIgnoresZeroedShortAverage(t *testing.T) {
	sig := defaultDetector().Signals(concat(repeat(10, 14), repeat(0, 6)))
	if sig.MACrossover {
		t.Fatalf("expected no crossover once the short average is zero, got pct %v", sig.MAPctChange)
	}
	if sig.MAPctChange != 0 || sig.MADirection != domain.DirectionStable {
		t.Fatalf("expected neutral crossover values, got %+v", sig)
	}
}
