package config

import (
	"errors"
	"fmt"
	"math"
	"runtime"
)

var (
	ErrInvalidWeights        = errors.New("scoring weights must sum to 1.0")
	ErrInvalidThresholdWeeks = errors.New("non-moving threshold must be 12, 26 or 52 weeks")
	ErrInvalidEngineConfig   = errors.New("invalid engine configuration")
)

const weightTolerance = 1e-6

// Supported inactivity thresholds for the non-moving detector.
var AllowedThresholdWeeks = []int{12, 26, 52}

// EngineConfig is built once per process (or per test) and handed to each
// detector's constructor. Nothing in the engine reads configuration from
// globals.
type EngineConfig struct {
	DemandShift  DemandShiftConfig
	NonMoving    NonMovingConfig
	Segmentation SegmentationConfig
	Scoring      ScoringConfig
	Workers      int // Number of concurrent per-key workers
}

type DemandShiftConfig struct {
	CUSUMThreshold  float64
	MAShortWindow   int
	MALongWindow    int
	ZScoreThreshold float64
	MinDataPoints   int
}

type NonMovingConfig struct {
	ThresholdWeeks     int
	ForecastWeeksAhead int
	ReviewWeeks        int // inactive this long with zero forecast -> obsolescence review
	ObsoleteWeeks      int // inactive this long with zero forecast -> mark obsolete
}

type SegmentationConfig struct {
	ABCAPercentile float64
	ABCBPercentile float64
	XYZXCV         float64
	XYZYCV         float64
}

type ScoringWeights struct {
	DemandShift float64
	NonMoving   float64
	ShelfLife   float64
	Lifecycle   float64
	Inventory   float64
}

func (w ScoringWeights) Sum() float64 {
	return w.DemandShift + w.NonMoving + w.ShelfLife + w.Lifecycle + w.Inventory
}

type ScoringConfig struct {
	Weights ScoringWeights
	// MaxWeeksOfSupply caps weeks of supply when there is stock but no
	// current demand to divide by.
	MaxWeeksOfSupply float64
}

// DefaultEngineConfig returns the stock detector settings.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DemandShift: DemandShiftConfig{
			CUSUMThreshold:  2.0,
			MAShortWindow:   4,
			MALongWindow:    12,
			ZScoreThreshold: 2.5,
			MinDataPoints:   12,
		},
		NonMoving: NonMovingConfig{
			ThresholdWeeks:     12,
			ForecastWeeksAhead: 12,
			ReviewWeeks:        26,
			ObsoleteWeeks:      52,
		},
		Segmentation: SegmentationConfig{
			ABCAPercentile: 0.8,
			ABCBPercentile: 0.5,
			XYZXCV:         0.5,
			XYZYCV:         1.0,
		},
		Scoring: ScoringConfig{
			Weights: ScoringWeights{
				DemandShift: 0.25,
				NonMoving:   0.30,
				ShelfLife:   0.20,
				Lifecycle:   0.15,
				Inventory:   0.10,
			},
			MaxWeeksOfSupply: 52,
		},
		Workers: runtime.NumCPU(),
	}
}

// ValidThresholdWeeks reports whether weeks is one of the supported thresholds.
func ValidThresholdWeeks(weeks int) bool {
	for _, w := range AllowedThresholdWeeks {
		if w == weeks {
			return true
		}
	}
	return false
}

// Validate checks the invariants every detector relies on.
func (c EngineConfig) Validate() error {
	w := c.Scoring.Weights
	for name, v := range map[string]float64{
		"demand_shift": w.DemandShift,
		"non_moving":   w.NonMoving,
		"shelf_life":   w.ShelfLife,
		"lifecycle":    w.Lifecycle,
		"inventory":    w.Inventory,
	} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: weight %s is %v", ErrInvalidWeights, name, v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("%w: got %.6f", ErrInvalidWeights, sum)
	}

	if !ValidThresholdWeeks(c.NonMoving.ThresholdWeeks) {
		return fmt.Errorf("%w: got %d", ErrInvalidThresholdWeeks, c.NonMoving.ThresholdWeeks)
	}

	ds := c.DemandShift
	switch {
	case ds.MinDataPoints < 2:
		return fmt.Errorf("%w: min data points must be at least 2", ErrInvalidEngineConfig)
	case ds.MAShortWindow < 1 || ds.MALongWindow < ds.MAShortWindow:
		return fmt.Errorf("%w: moving average windows %d/%d", ErrInvalidEngineConfig, ds.MAShortWindow, ds.MALongWindow)
	case ds.CUSUMThreshold <= 0 || ds.ZScoreThreshold <= 0:
		return fmt.Errorf("%w: detection thresholds must be positive", ErrInvalidEngineConfig)
	}

	seg := c.Segmentation
	if seg.ABCBPercentile <= 0 || seg.ABCAPercentile >= 1 || seg.ABCBPercentile >= seg.ABCAPercentile {
		return fmt.Errorf("%w: abc percentiles %.2f/%.2f", ErrInvalidEngineConfig, seg.ABCAPercentile, seg.ABCBPercentile)
	}
	if seg.XYZXCV <= 0 || seg.XYZYCV <= seg.XYZXCV {
		return fmt.Errorf("%w: xyz cv bounds %.2f/%.2f", ErrInvalidEngineConfig, seg.XYZXCV, seg.XYZYCV)
	}

	if c.NonMoving.ForecastWeeksAhead < 1 || c.NonMoving.ReviewWeeks > c.NonMoving.ObsoleteWeeks {
		return fmt.Errorf("%w: non-moving horizons", ErrInvalidEngineConfig)
	}
	if c.Scoring.MaxWeeksOfSupply <= 0 {
		return fmt.Errorf("%w: max weeks of supply must be positive", ErrInvalidEngineConfig)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1", ErrInvalidEngineConfig)
	}

	return nil
}
