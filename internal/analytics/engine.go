package analytics

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/invengine/internal/alerts"
	"github.com/andresuchdata/invengine/internal/analytics/demandshift"
	"github.com/andresuchdata/invengine/internal/analytics/nonmoving"
	"github.com/andresuchdata/invengine/internal/analytics/scoring"
	"github.com/andresuchdata/invengine/internal/analytics/segmentation"
	"github.com/andresuchdata/invengine/internal/config"
	"github.com/andresuchdata/invengine/internal/dataset"
	"github.com/andresuchdata/invengine/internal/domain"
)

// ReasonComputationFailed marks a neutral result that replaced a key whose
// computation panicked.
const ReasonComputationFailed = "computation failed"

// RunOptions are the per-run knobs. Zero values fall back to the engine
// configuration and the dataset's latest week.
type RunOptions struct {
	AnalysisDate   time.Time
	ThresholdWeeks int
	ByLocation     bool
}

// Engine runs the four detectors over a dataset and assembles a Report.
type Engine struct {
	cfg          config.EngineConfig
	demandShift  *demandshift.Detector
	nonMoving    *nonmoving.Detector
	segmenter    *segmentation.Segmenter
	scorer       *scoring.Scorer
	newGenerator func() *alerts.Generator
}

func NewEngine(cfg config.EngineConfig) *Engine {
	return &Engine{
		cfg:          cfg,
		demandShift:  demandshift.NewDetector(cfg.DemandShift),
		nonMoving:    nonmoving.NewDetector(cfg.NonMoving),
		segmenter:    segmentation.NewSegmenter(cfg.Segmentation),
		scorer:       scoring.NewScorer(cfg.Scoring),
		newGenerator: alerts.NewGenerator,
	}
}

// WithAlertClock pins the clock used for alert ids and timestamps.
func (e *Engine) WithAlertClock(now func() time.Time) *Engine {
	e.newGenerator = func() *alerts.Generator { return alerts.NewGenerator().WithClock(now) }
	return e
}

// Run executes one analysis. The dataset is only read.
func (e *Engine) Run(ctx context.Context, ds *dataset.Dataset, opts RunOptions) (*Report, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}

	nmOpts, err := e.nonMoving.Resolve(ds, nonmoving.Options{
		AnalysisDate:   opts.AnalysisDate,
		ThresholdWeeks: opts.ThresholdWeeks,
	})
	if err != nil {
		return nil, err
	}

	started := time.Now()
	report := &Report{
		RunID:          uuid.NewString(),
		AnalysisDate:   nmOpts.AnalysisDate,
		ThresholdWeeks: nmOpts.ThresholdWeeks,
		ByLocation:     opts.ByLocation,
		StartedAt:      started.UTC(),
		DataFrom:       ds.FirstWeek(),
		DataTo:         ds.LatestWeek(),
		TotalKeys:      ds.Len(),
	}

	logger := log.With().Str("run_id", report.RunID).Logger()
	logger.Info().
		Int("keys", ds.Len()).
		Int("workers", e.cfg.Workers).
		Str("analysis_date", nmOpts.AnalysisDate.Format("2006-01-02")).
		Int("threshold_weeks", nmOpts.ThresholdWeeks).
		Msg("engine: run started")

	keys := ds.Keys()

	// Stage 1: per-key detectors
	report.DemandShifts = make([]domain.DemandShiftResult, len(keys))
	report.NonMoving = make([]domain.NonMovingResult, len(keys))
	err = e.forEachKey(ctx, keys, func(i int, key domain.Key) {
		report.DemandShifts[i] = e.detectShift(ds, key)
		report.NonMoving[i] = e.detectNonMoving(ds, key, nmOpts)
	})
	if err != nil {
		return nil, err
	}
	logger.Debug().Int("keys", len(keys)).Msg("engine: detectors finished")

	// Stage 2: segmentation
	report.Segmentation, err = e.segmenter.Segment(ctx, ds, opts.ByLocation, e.cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("segmentation: %w", err)
	}
	logger.Debug().Int("rows", len(report.Segmentation)).Msg("engine: segmentation finished")

	// Stage 3: scoring joins stage 1 by index
	report.RiskScores = make([]domain.RiskScore, len(keys))
	err = e.forEachKey(ctx, keys, func(i int, key domain.Key) {
		report.RiskScores[i] = e.score(ds, key, &report.DemandShifts[i], &report.NonMoving[i], nmOpts.AnalysisDate)
	})
	if err != nil {
		return nil, err
	}

	gen := e.newGenerator()
	report.Alerts = alerts.Consolidate(
		gen.FromDemandShifts(report.DemandShifts, alerts.DefaultMinShiftConfidence),
		gen.FromNonMoving(report.NonMoving, alerts.DefaultMinNonMovingRisk),
		gen.FromRiskScores(report.RiskScores, alerts.DefaultMinOverallScore),
	)

	report.Summary = summarize(report)
	report.Duration = time.Since(started)

	logger.Info().
		Int("shifts_detected", report.Summary.DemandShift.ShiftsDetected).
		Int("non_moving", report.Summary.NonMoving.NonMoving).
		Int("on_hold", report.Summary.NonMoving.OnHold).
		Int("segments", len(report.Segmentation)).
		Int("critical", report.Summary.Scoring.CriticalItems).
		Int("alerts", len(report.Alerts)).
		Dur("duration", report.Duration).
		Msg("engine: run completed")

	return report, nil
}

// forEachKey runs fn for every key with at most cfg.Workers in flight. Each
// call owns slot i of whatever slices fn writes. Wait always cancels gctx, so
// only the caller's ctx decides whether the run was cancelled.
func (e *Engine) forEachKey(ctx context.Context, keys []domain.Key, fn func(i int, key domain.Key)) error {
	g, gctx := errgroup.WithContext(ctx)
	if e.cfg.Workers > 0 {
		g.SetLimit(e.cfg.Workers)
	}
	for i, key := range keys {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(i, key)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (e *Engine) detectShift(ds *dataset.Dataset, key domain.Key) (res domain.DemandShiftResult) {
	defer func() {
		if r := recover(); r != nil {
			logPanic("demand_shift", key, r)
			res = domain.DemandShiftResult{
				ItemID:         key.ItemID,
				LocationID:     key.LocationID,
				ShiftDirection: domain.DirectionStable,
				DataPoints:     len(ds.Series(key)),
				Reason:         ReasonComputationFailed,
			}
		}
	}()
	return e.demandShift.Detect(key, ds.Series(key))
}

func (e *Engine) detectNonMoving(ds *dataset.Dataset, key domain.Key, opts nonmoving.Options) (res domain.NonMovingResult) {
	defer func() {
		if r := recover(); r != nil {
			logPanic("non_moving", key, r)
			res = domain.NonMovingResult{
				ItemID:             key.ItemID,
				LocationID:         key.LocationID,
				MovementStatus:     domain.StatusActive,
				RecommendedActions: []string{string(domain.ActionMonitor)},
				ThresholdWeeksUsed: opts.ThresholdWeeks,
			}
		}
	}()
	return e.nonMoving.Detect(ds, key, opts)
}

func (e *Engine) score(ds *dataset.Dataset, key domain.Key, shift *domain.DemandShiftResult, nm *domain.NonMovingResult, asOf time.Time) (res domain.RiskScore) {
	in := scoring.Input{
		Key:          key,
		DemandShift:  shift,
		NonMoving:    nm,
		OnHand:       ds.CurrentOnHand(key),
		AnalysisDate: asOf,
	}
	if item, ok := ds.Item(key.ItemID); ok {
		in.Item = &item
	}
	if policy, ok := ds.Policy(key); ok {
		in.Policy = &policy
	}

	defer func() {
		if r := recover(); r != nil {
			logPanic("risk_score", key, r)
			res = domain.RiskScore{
				ItemID:            key.ItemID,
				LocationID:        key.LocationID,
				RiskLevel:         scoring.Level(0),
				PrimaryRiskFactor: domain.FactorDemandShift,
				OnHandQty:         in.OnHand,
				StockPosition:     scoring.Position(in.OnHand, in.Policy),
			}
		}
	}()
	return e.scorer.Score(in)
}

func logPanic(stage string, key domain.Key, r any) {
	log.Error().
		Str("stage", stage).
		Str("item_id", key.ItemID).
		Str("location_id", key.LocationID).
		Interface("panic", r).
		Bytes("stack", debug.Stack()).
		Msg("engine: key computation panicked, using neutral result")
}
