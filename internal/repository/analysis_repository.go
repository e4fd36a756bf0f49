package repository

import (
	"context"
	"errors"

	"github.com/andresuchdata/invengine/internal/analytics"
	"github.com/andresuchdata/invengine/internal/domain"
)

var ErrRunNotFound = errors.New("analysis run not found")

// AnalysisRepository persists run records and the result tables of a report.
type AnalysisRepository interface {
	EnsureSchema(ctx context.Context) error
	CreateRun(ctx context.Context, run *domain.AnalysisRun) error
	UpdateRun(ctx context.Context, run *domain.AnalysisRun) error
	GetRun(ctx context.Context, id string) (*domain.AnalysisRun, error)
	ListRuns(ctx context.Context, limit int) ([]domain.AnalysisRun, error)
	SaveReport(ctx context.Context, report *analytics.Report) error
}
