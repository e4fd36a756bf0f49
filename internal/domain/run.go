package domain

import "time"

// RunStatus is the lifecycle state of one analysis run.
type RunStatus string

const (
	RunPending    RunStatus = "pending"
	RunProcessing RunStatus = "processing"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
)

// AnalysisRun tracks a single execution of the engine.
type AnalysisRun struct {
	ID             string     `json:"id" db:"id"`
	Source         string     `json:"source" db:"source"`
	AnalysisDate   time.Time  `json:"analysis_date" db:"analysis_date"`
	ThresholdWeeks int        `json:"threshold_weeks" db:"threshold_weeks"`
	Status         RunStatus  `json:"status" db:"status"`
	TotalKeys      int        `json:"total_keys" db:"total_keys"`
	AlertCount     int        `json:"alert_count" db:"alert_count"`
	StartedAt      time.Time  `json:"started_at" db:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	ErrorMessage   string     `json:"error_message,omitempty" db:"error_message"`
}
