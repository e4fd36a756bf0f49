package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/invengine/internal/analytics"
	"github.com/andresuchdata/invengine/internal/cache"
	"github.com/andresuchdata/invengine/internal/domain"
	"github.com/andresuchdata/invengine/internal/export"
	"github.com/andresuchdata/invengine/internal/repository"
	"github.com/andresuchdata/invengine/internal/storage"
)

var (
	ErrRunInProgress  = errors.New("an analysis run is already in progress")
	ErrNoReport       = errors.New("no analysis has been run yet")
	ErrNoRepository   = errors.New("run history requires a database")
	ErrUploadDisabled = errors.New("upload requested but object storage is not configured")
)

// Options wires the optional collaborators. Only Engine is required.
type Options struct {
	Engine       *analytics.Engine
	Repo         repository.AnalysisRepository
	Cache        cache.SummaryCache
	Exporter     *export.Exporter
	Store        storage.ObjectStorage
	ExportPrefix string
}

// RunRequest describes one analysis.
type RunRequest struct {
	Source  DatasetSource
	Options analytics.RunOptions
	Persist bool
	Export  bool
	Upload  bool
}

// AnalysisService runs the engine and keeps the latest report for readers.
type AnalysisService struct {
	opts    Options
	running atomic.Bool

	mu     sync.RWMutex
	latest *analytics.Report
}

func NewAnalysisService(opts Options) *AnalysisService {
	if opts.Cache == nil {
		opts.Cache = cache.NewNoopSummaryCache()
	}
	return &AnalysisService{opts: opts}
}

// Run loads the dataset, runs the engine and fans the report out to the
// configured sinks. Only one run executes at a time.
func (s *AnalysisService) Run(ctx context.Context, req RunRequest) (*analytics.Report, error) {
	if req.Source == nil {
		return nil, fmt.Errorf("dataset source is required")
	}
	if req.Persist && s.opts.Repo == nil {
		return nil, ErrNoRepository
	}
	if req.Upload && s.opts.Store == nil {
		return nil, ErrUploadDisabled
	}
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer s.running.Store(false)

	logger := log.With().Str("source", req.Source.Name()).Logger()

	loadStart := time.Now()
	ds, err := req.Source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	logger.Info().Int("keys", ds.Len()).Dur("duration", time.Since(loadStart)).Msg("analysis: dataset loaded")

	report, err := s.opts.Engine.Run(ctx, ds, req.Options)
	if err != nil {
		return nil, err
	}

	if req.Persist {
		if err := s.persist(ctx, req.Source.Name(), report); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	s.latest = report
	s.mu.Unlock()

	if err := s.opts.Cache.SetSummary(ctx, report.Summary); err != nil {
		logger.Warn().Err(err).Msg("analysis: cache set summary failed")
	}

	if req.Export || req.Upload {
		s.export(ctx, report, req.Upload)
	}

	return report, nil
}

func (s *AnalysisService) persist(ctx context.Context, source string, report *analytics.Report) error {
	run := report.Run(source)
	run.Status = domain.RunProcessing
	run.CompletedAt = nil
	if err := s.opts.Repo.CreateRun(ctx, &run); err != nil {
		return err
	}

	if saveErr := s.opts.Repo.SaveReport(ctx, report); saveErr != nil {
		now := time.Now().UTC()
		run.Status = domain.RunFailed
		run.CompletedAt = &now
		run.ErrorMessage = saveErr.Error()
		if err := s.opts.Repo.UpdateRun(ctx, &run); err != nil {
			log.Error().Err(err).Str("run_id", run.ID).Msg("analysis: could not mark run failed")
		}
		return fmt.Errorf("persist report: %w", saveErr)
	}

	done := report.Run(source)
	return s.opts.Repo.UpdateRun(ctx, &done)
}

func (s *AnalysisService) export(ctx context.Context, report *analytics.Report, upload bool) {
	if s.opts.Exporter == nil {
		log.Warn().Msg("analysis: export requested but no exporter configured")
		return
	}
	files, err := s.opts.Exporter.Write(report)
	if err != nil {
		log.Warn().Err(err).Msg("analysis: export failed")
		return
	}
	if !upload {
		return
	}
	if err := export.Upload(ctx, s.opts.Store, s.opts.ExportPrefix, report.RunID, files); err != nil {
		log.Warn().Err(err).Msg("analysis: upload failed")
	}
}

// Latest returns the most recent report held in memory.
func (s *AnalysisService) Latest() (*analytics.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil, ErrNoReport
	}
	return s.latest, nil
}

// LatestSummary prefers the cached summary of the latest run, which survives
// restarts of this process.
func (s *AnalysisService) LatestSummary(ctx context.Context) (*analytics.Summary, error) {
	if id, ok, err := s.opts.Cache.LatestRunID(ctx); err == nil && ok {
		if summary, ok, err := s.opts.Cache.GetSummary(ctx, id); err == nil && ok {
			return summary, nil
		} else if err != nil {
			log.Warn().Err(err).Msg("analysis: cache get summary failed")
		}
	} else if err != nil {
		log.Warn().Err(err).Msg("analysis: cache get latest run failed")
	}

	report, err := s.Latest()
	if err != nil {
		return nil, err
	}
	return &report.Summary, nil
}

// Runs lists persisted runs, newest first.
func (s *AnalysisService) Runs(ctx context.Context, limit int) ([]domain.AnalysisRun, error) {
	if s.opts.Repo == nil {
		return nil, ErrNoRepository
	}
	return s.opts.Repo.ListRuns(ctx, limit)
}

// RunRecord returns one persisted run.
func (s *AnalysisService) RunRecord(ctx context.Context, id string) (*domain.AnalysisRun, error) {
	if s.opts.Repo == nil {
		return nil, ErrNoRepository
	}
	return s.opts.Repo.GetRun(ctx, id)
}

// Running reports whether a run is in flight.
func (s *AnalysisService) Running() bool {
	return s.running.Load()
}
