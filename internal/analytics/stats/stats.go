// Package stats holds the small numeric helpers shared by the detectors.
// Every helper returns NaN rather than panicking on degenerate input, and
// callers treat NaN as "no signal".
package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean returns the arithmetic mean, NaN for an empty slice.
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return stat.Mean(x, nil)
}

// SampleStd returns the n-1 standard deviation, NaN for fewer than two values.
func SampleStd(x []float64) float64 {
	if len(x) < 2 {
		return math.NaN()
	}
	return stat.StdDev(x, nil)
}

// Sum adds up x.
func Sum(x []float64) float64 {
	var s float64
	for _, v := range x {
		s += v
	}
	return s
}

// Slope is the least-squares slope of y against positions 0..n-1.
func Slope(y []float64) float64 {
	if len(y) < 2 {
		return math.NaN()
	}
	x := make([]float64, len(y))
	for i := range x {
		x[i] = float64(i)
	}
	_, beta := stat.LinearRegression(x, y, nil, false)
	return beta
}

// RollingMean is a trailing moving average where the first window-1 values
// average over however many points are available.
func RollingMean(x []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}
	out := make([]float64, len(x))
	var sum float64
	for i, v := range x {
		sum += v
		if i >= window {
			sum -= x[i-window]
		}
		n := i + 1
		if n > window {
			n = window
		}
		out[i] = sum / float64(n)
	}
	return out
}

// Usable reports whether v can be used as a divisor or comparison operand.
func Usable(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v != 0
}

// Round rounds v to the given number of decimal places.
func Round(v float64, decimals int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	if decimals <= 0 {
		return math.Round(v)
	}
	factor := math.Pow(10, float64(decimals))
	return math.Round(v*factor) / factor
}

// Clamp bounds v to [lo, hi]; NaN becomes lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
