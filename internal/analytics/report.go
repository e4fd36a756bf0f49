package analytics

import (
	"time"

	"github.com/andresuchdata/invengine/internal/alerts"
	"github.com/andresuchdata/invengine/internal/analytics/demandshift"
	"github.com/andresuchdata/invengine/internal/analytics/nonmoving"
	"github.com/andresuchdata/invengine/internal/analytics/scoring"
	"github.com/andresuchdata/invengine/internal/analytics/segmentation"
	"github.com/andresuchdata/invengine/internal/domain"
)

// Report is the full output of one engine run. Per-key tables follow the
// dataset's sorted key order.
type Report struct {
	RunID          string        `json:"run_id"`
	AnalysisDate   time.Time     `json:"analysis_date"`
	ThresholdWeeks int           `json:"threshold_weeks"`
	ByLocation     bool          `json:"by_location"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration_ns"`
	DataFrom       time.Time     `json:"data_from"`
	DataTo         time.Time     `json:"data_to"`
	TotalKeys      int           `json:"total_keys"`

	DemandShifts []domain.DemandShiftResult  `json:"demand_shifts"`
	NonMoving    []domain.NonMovingResult    `json:"non_moving"`
	Segmentation []domain.SegmentationResult `json:"segmentation"`
	RiskScores   []domain.RiskScore          `json:"risk_scores"`
	Alerts       []alerts.Alert              `json:"alerts"`

	Summary Summary `json:"summary"`
}

// Summary gathers the per-detector rollups of a report.
type Summary struct {
	RunID          string                      `json:"run_id"`
	AnalysisDate   string                      `json:"analysis_date"`
	ThresholdWeeks int                         `json:"threshold_weeks"`
	TotalKeys      int                         `json:"total_keys"`
	DemandShift    demandshift.Summary         `json:"demand_shift"`
	NonMoving      nonmoving.Summary           `json:"non_moving"`
	Segmentation   []segmentation.SegmentStats `json:"segmentation"`
	SegmentMatrix  segmentation.Matrix         `json:"segment_matrix"`
	Scoring        scoring.Summary             `json:"scoring"`
	Alerts         alerts.Summary              `json:"alerts"`
}

func summarize(r *Report) Summary {
	return Summary{
		RunID:          r.RunID,
		AnalysisDate:   r.AnalysisDate.Format("2006-01-02"),
		ThresholdWeeks: r.ThresholdWeeks,
		TotalKeys:      r.TotalKeys,
		DemandShift:    demandshift.Summarize(r.DemandShifts),
		NonMoving:      nonmoving.Summarize(r.NonMoving),
		Segmentation:   segmentation.Summary(r.Segmentation),
		SegmentMatrix:  segmentation.BuildMatrix(r.Segmentation),
		Scoring:        scoring.Summarize(r.RiskScores),
		Alerts:         alerts.Summarize(r.Alerts),
	}
}

// Run returns the tracking record for a finished report.
func (r *Report) Run(source string) domain.AnalysisRun {
	completed := r.StartedAt.Add(r.Duration)
	return domain.AnalysisRun{
		ID:             r.RunID,
		Source:         source,
		AnalysisDate:   r.AnalysisDate,
		ThresholdWeeks: r.ThresholdWeeks,
		Status:         domain.RunCompleted,
		TotalKeys:      r.TotalKeys,
		AlertCount:     len(r.Alerts),
		StartedAt:      r.StartedAt,
		CompletedAt:    &completed,
	}
}
