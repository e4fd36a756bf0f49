package demandshift

import (
	"math"

	"github.com/andresuchdata/invengine/internal/analytics/stats"
	"github.com/andresuchdata/invengine/internal/config"
	"github.com/andresuchdata/invengine/internal/domain"
)

const (
	ReasonInsufficientData = "insufficient data"

	cusumDrift = 0.5

	// moving-average crossover
	recentShortPoints    = 3
	crossoverSignalPct   = 0.25
	crossoverDirectional = 0.10

	trendChangeRatio = 0.5

	// Anomalies within this many trailing points classify a spike or drop.
	recentAnomalyWindow = 4

	sustainedCUSUMMagnitude = 25.0
	sustainedMagnitude      = 20.0
	directionMagnitude      = 10.0
)

// Detector finds changes in weekly demand using four independent signals:
// CUSUM, moving-average crossover, z-score anomalies and trend change.
type Detector struct {
	cfg config.DemandShiftConfig
}

func NewDetector(cfg config.DemandShiftConfig) *Detector {
	return &Detector{cfg: cfg}
}

// Signals holds the raw output of each test before they are combined.
type Signals struct {
	CUSUM          bool
	MACrossover    bool
	MADirection    domain.ShiftDirection
	MAPctChange    float64
	ZScore         bool
	AnomalyIndices []int
	AnomalyZ       []float64
	TrendChange    bool
	SlopeFirst     float64
	SlopeSecond    float64
}

// Detect evaluates one (item, location) series. Short series yield a neutral
// result instead of an error.
func (d *Detector) Detect(key domain.Key, series []domain.TimeSeriesPoint) domain.DemandShiftResult {
	res := domain.DemandShiftResult{
		ItemID:         key.ItemID,
		LocationID:     key.LocationID,
		ShiftDirection: domain.DirectionStable,
		DataPoints:     len(series),
	}

	if len(series) < d.cfg.MinDataPoints || len(series) == 0 {
		res.Reason = ReasonInsufficientData
		return res
	}

	qty := make([]float64, len(series))
	for i, p := range series {
		qty[i] = p.QtySold
	}
	last := series[len(series)-1].WeekEnding
	res.DetectionDate = &last

	sig := d.Signals(qty)
	res.CUSUMSignal = sig.CUSUM
	res.MACrossoverSignal = sig.MACrossover
	res.ZScoreSignal = sig.ZScore
	res.TrendChangeSignal = sig.TrendChange
	res.AnomalyCount = len(sig.AnomalyIndices)
	res.TrendSlopeFirst = stats.Round(zeroIfNaN(sig.SlopeFirst), 4)
	res.TrendSlopeSecond = stats.Round(zeroIfNaN(sig.SlopeSecond), 4)

	baseline, current := d.demandLevels(qty)
	magnitude := shiftMagnitude(baseline, current)

	res.BaselineDemand = stats.Round(baseline, 2)
	res.CurrentDemand = stats.Round(current, 2)
	res.ShiftMagnitude = stats.Round(magnitude, 2)
	res.ShiftDirection = directionOf(magnitude)

	signals := res.SignalCount()
	res.ShiftDetected = signals > 0
	if res.ShiftDetected {
		res.ShiftType = classify(sig, magnitude, len(qty))
	}
	res.ConfidenceScore = stats.Round(math.Min(25*float64(signals)+0.5*math.Abs(magnitude), 100), 2)

	return res
}

// Signals runs the four tests on a quantity series.
func (d *Detector) Signals(qty []float64) Signals {
	var s Signals
	s.CUSUM = d.cusum(qty)
	s.MACrossover, s.MADirection, s.MAPctChange = d.maCrossover(qty)
	s.AnomalyIndices, s.AnomalyZ = d.zScoreAnomalies(qty)
	s.ZScore = len(s.AnomalyIndices) > 0
	s.TrendChange, s.SlopeFirst, s.SlopeSecond = d.trendChange(qty)
	return s
}

// cusum standardises the series against a baseline window and accumulates
// drift-adjusted deviations in both directions.
func (d *Detector) cusum(qty []float64) bool {
	n := len(qty)
	baselineLen := n / 2
	if baselineLen < d.cfg.MinDataPoints {
		baselineLen = d.cfg.MinDataPoints
	}
	if baselineLen > n {
		baselineLen = n
	}

	baseline := qty[:baselineLen]
	mean := stats.Mean(baseline)
	std := stats.SampleStd(baseline)
	if !stats.Usable(std) || math.IsNaN(mean) {
		return false
	}

	var pos, neg, maxPos, minNeg float64
	for i := 1; i < n; i++ {
		z := (qty[i] - mean) / std
		pos = math.Max(0, pos+z-cusumDrift)
		neg = math.Min(0, neg+z+cusumDrift)
		maxPos = math.Max(maxPos, pos)
		minNeg = math.Min(minNeg, neg)
	}

	limit := d.cfg.CUSUMThreshold * std
	return maxPos > limit || minNeg < -limit
}

func (d *Detector) maCrossover(qty []float64) (bool, domain.ShiftDirection, float64) {
	n := len(qty)
	short := stats.RollingMean(qty, d.cfg.MAShortWindow)

	recentFrom := n - recentShortPoints
	if recentFrom < 0 {
		recentFrom = 0
	}
	recentShort := stats.Mean(short[recentFrom:])

	baselineLen := d.baselineLen(n)
	var baseline float64
	if baselineLen > 0 {
		baseline = stats.Mean(qty[:baselineLen])
	} else {
		baseline = stats.Mean(qty)
	}

	// a short average that has dropped to zero carries no crossover signal
	if math.IsNaN(baseline) || baseline <= 0 || math.IsNaN(recentShort) || recentShort <= 0 {
		return false, domain.DirectionStable, 0
	}

	pct := (recentShort - baseline) / baseline
	direction := domain.DirectionStable
	switch {
	case pct > crossoverDirectional:
		direction = domain.DirectionIncrease
	case pct < -crossoverDirectional:
		direction = domain.DirectionDecrease
	}
	return math.Abs(pct) > crossoverSignalPct, direction, pct
}

func (d *Detector) zScoreAnomalies(qty []float64) ([]int, []float64) {
	mean := stats.Mean(qty)
	std := stats.SampleStd(qty)
	if !stats.Usable(std) || math.IsNaN(mean) {
		return nil, nil
	}

	var idx []int
	var zs []float64
	for i, v := range qty {
		z := (v - mean) / std
		if math.Abs(z) > d.cfg.ZScoreThreshold {
			idx = append(idx, i)
			zs = append(zs, z)
		}
	}
	return idx, zs
}

func (d *Detector) trendChange(qty []float64) (bool, float64, float64) {
	n := len(qty)
	if n < 2*d.cfg.MinDataPoints {
		return false, math.NaN(), math.NaN()
	}

	mid := n / 2
	s1 := stats.Slope(qty[:mid])
	s2 := stats.Slope(qty[mid:])
	if math.IsNaN(s1) || math.IsNaN(s2) {
		return false, s1, s2
	}

	if s1*s2 < 0 {
		return true, s1, s2
	}
	if s1 != 0 && math.Abs(s2-s1)/math.Abs(s1) > trendChangeRatio {
		return true, s1, s2
	}
	return false, s1, s2
}

// baselineLen is the number of leading points used as the demand baseline.
func (d *Detector) baselineLen(n int) int {
	l := d.cfg.MALongWindow
	if half := n / 2; half < l {
		l = half
	}
	return l
}

func (d *Detector) demandLevels(qty []float64) (baseline, current float64) {
	n := len(qty)
	if bl := d.baselineLen(n); bl > 0 {
		baseline = stats.Mean(qty[:bl])
	} else {
		baseline = stats.Mean(qty)
	}

	from := n - d.cfg.MAShortWindow
	if from < 0 {
		from = 0
	}
	current = stats.Mean(qty[from:])
	return zeroIfNaN(baseline), zeroIfNaN(current)
}

func shiftMagnitude(baseline, current float64) float64 {
	if baseline == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return (current - baseline) / baseline * 100
}

func directionOf(magnitude float64) domain.ShiftDirection {
	switch {
	case magnitude > directionMagnitude:
		return domain.DirectionIncrease
	case magnitude < -directionMagnitude:
		return domain.DirectionDecrease
	default:
		return domain.DirectionStable
	}
}

func classify(sig Signals, magnitude float64, n int) domain.ShiftType {
	absMag := math.Abs(magnitude)

	if sig.CUSUM && absMag > sustainedCUSUMMagnitude {
		return domain.ShiftSustained
	}

	if sig.ZScore {
		var recent []float64
		for i, idx := range sig.AnomalyIndices {
			if idx >= n-recentAnomalyWindow {
				recent = append(recent, sig.AnomalyZ[i])
			}
		}
		if len(recent) > 0 {
			if stats.Mean(recent) > 0 {
				return domain.ShiftSpike
			}
			return domain.ShiftDrop
		}
	}

	if sig.TrendChange {
		return domain.ShiftTrendChange
	}
	if absMag > sustainedMagnitude {
		return domain.ShiftSustained
	}
	return domain.ShiftNone
}

func zeroIfNaN(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
