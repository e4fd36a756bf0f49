package demandshift

import (
	"sort"

	"github.com/andresuchdata/invengine/internal/analytics/stats"
	"github.com/andresuchdata/invengine/internal/domain"
)

type Summary struct {
	TotalSeries      int                           `json:"total_series"`
	ShiftsDetected   int                           `json:"shifts_detected"`
	InsufficientData int                           `json:"insufficient_data"`
	ByDirection      map[domain.ShiftDirection]int `json:"by_direction"`
	ByType           map[domain.ShiftType]int      `json:"by_type"`
	AvgConfidence    float64                       `json:"avg_confidence"`
}

// Summarize counts detected shifts by direction and type.
func Summarize(results []domain.DemandShiftResult) Summary {
	s := Summary{
		TotalSeries: len(results),
		ByDirection: make(map[domain.ShiftDirection]int),
		ByType:      make(map[domain.ShiftType]int),
	}

	var confidence float64
	for _, r := range results {
		if r.Reason == ReasonInsufficientData {
			s.InsufficientData++
		}
		if !r.ShiftDetected {
			continue
		}
		s.ShiftsDetected++
		s.ByDirection[r.ShiftDirection]++
		s.ByType[r.ShiftType]++
		confidence += r.ConfidenceScore
	}
	if s.ShiftsDetected > 0 {
		s.AvgConfidence = stats.Round(confidence/float64(s.ShiftsDetected), 2)
	}
	return s
}

// Significant returns detected shifts at or above minConfidence, most
// confident first.
func Significant(results []domain.DemandShiftResult, minConfidence float64) []domain.DemandShiftResult {
	out := make([]domain.DemandShiftResult, 0)
	for _, r := range results {
		if r.ShiftDetected && r.ConfidenceScore >= minConfidence {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ConfidenceScore > out[j].ConfidenceScore
	})
	return out
}
