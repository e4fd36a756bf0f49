package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/invengine/internal/analytics"
	"github.com/andresuchdata/invengine/internal/domain"
	"github.com/andresuchdata/invengine/internal/repository"
)

//go:embed schema.sql
var schemaSQL string

type analysisRepository struct {
	db *DB
}

func NewAnalysisRepository(db *DB) repository.AnalysisRepository {
	return &analysisRepository{db: db}
}

// EnsureSchema creates the input and result tables if they are missing.
func (r *analysisRepository) EnsureSchema(ctx context.Context) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
		return nil
	})
}

func (r *analysisRepository) CreateRun(ctx context.Context, run *domain.AnalysisRun) error {
	query := `
		INSERT INTO analysis_runs (
			id, source, analysis_date, threshold_weeks, status,
			total_keys, alert_count, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.Source, run.AnalysisDate, run.ThresholdWeeks, run.Status,
		run.TotalKeys, run.AlertCount, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create analysis run: %w", err)
	}
	return nil
}

func (r *analysisRepository) UpdateRun(ctx context.Context, run *domain.AnalysisRun) error {
	query := `
		UPDATE analysis_runs
		SET status = $1, total_keys = $2, alert_count = $3,
		    completed_at = $4, error_message = $5
		WHERE id = $6
	`
	res, err := r.db.ExecContext(ctx, query,
		run.Status, run.TotalKeys, run.AlertCount,
		run.CompletedAt, run.ErrorMessage, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update analysis run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", repository.ErrRunNotFound, run.ID)
	}
	return nil
}

const runColumns = `id, source, analysis_date, threshold_weeks, status, total_keys,
	alert_count, started_at, completed_at, error_message`

func (r *analysisRepository) GetRun(ctx context.Context, id string) (*domain.AnalysisRun, error) {
	run := &domain.AnalysisRun{}
	err := r.db.GetContext(ctx, run, `SELECT `+runColumns+` FROM analysis_runs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", repository.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis run: %w", err)
	}
	return run, nil
}

func (r *analysisRepository) ListRuns(ctx context.Context, limit int) ([]domain.AnalysisRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	runs := make([]domain.AnalysisRun, 0)
	err := r.db.SelectContext(ctx, &runs,
		`SELECT `+runColumns+` FROM analysis_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis runs: %w", err)
	}
	return runs, nil
}

// SaveReport writes every result table of a report in one transaction.
func (r *analysisRepository) SaveReport(ctx context.Context, report *analytics.Report) error {
	start := time.Now()
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := insertDemandShifts(ctx, tx, report.RunID, report.DemandShifts); err != nil {
			return err
		}
		if err := insertNonMoving(ctx, tx, report.RunID, report.NonMoving); err != nil {
			return err
		}
		if err := insertSegmentation(ctx, tx, report.RunID, report.Segmentation); err != nil {
			return err
		}
		if err := insertRiskScores(ctx, tx, report.RunID, report.RiskScores); err != nil {
			return err
		}
		return insertAlerts(ctx, tx, report)
	})
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			log.Error().Str("code", string(pqErr.Code)).Str("table", pqErr.Table).Msg("postgres: save report failed")
		}
		return err
	}

	log.Info().
		Str("run_id", report.RunID).
		Int("rows", len(report.DemandShifts)+len(report.NonMoving)+len(report.Segmentation)+len(report.RiskScores)+len(report.Alerts)).
		Dur("duration", time.Since(start)).
		Msg("postgres: report saved")
	return nil
}

func prepare(ctx context.Context, tx *sqlx.Tx, table, query string) (*sqlx.Stmt, error) {
	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("prepare %s insert: %w", table, err)
	}
	return stmt, nil
}

func insertDemandShifts(ctx context.Context, tx *sqlx.Tx, runID string, rows []domain.DemandShiftResult) error {
	stmt, err := prepare(ctx, tx, "demand_shifts", `
		INSERT INTO demand_shifts (
			run_id, item_id, location_id, shift_detected, shift_type, shift_direction, shift_magnitude,
			confidence_score, baseline_demand, current_demand, cusum_signal, ma_crossover_signal,
			zscore_signal, trend_change_signal, anomaly_count, data_points, detection_date, reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, d := range rows {
		_, err := stmt.ExecContext(ctx,
			runID, d.ItemID, d.LocationID, d.ShiftDetected, d.ShiftType, d.ShiftDirection, d.ShiftMagnitude,
			d.ConfidenceScore, d.BaselineDemand, d.CurrentDemand, d.CUSUMSignal, d.MACrossoverSignal,
			d.ZScoreSignal, d.TrendChangeSignal, d.AnomalyCount, d.DataPoints, d.DetectionDate, d.Reason,
		)
		if err != nil {
			return fmt.Errorf("insert demand shift %s/%s: %w", d.ItemID, d.LocationID, err)
		}
	}
	return nil
}

func insertNonMoving(ctx context.Context, tx *sqlx.Tx, runID string, rows []domain.NonMovingResult) error {
	stmt, err := prepare(ctx, tx, "non_moving_inventory", `
		INSERT INTO non_moving_inventory (
			run_id, item_id, location_id, movement_status, weeks_since_movement, weeks_since_sale,
			weeks_since_receipt, last_sale_week, last_receipt_week, has_open_po, open_po_qty, open_po_count,
			current_inventory, category, shelf_life_at_risk, risk_score, threshold_weeks_used, recommended_actions
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, n := range rows {
		_, err := stmt.ExecContext(ctx,
			runID, n.ItemID, n.LocationID, n.MovementStatus, n.WeeksSinceMovement, n.WeeksSinceSale,
			n.WeeksSinceReceipt, n.LastSaleWeek, n.LastReceiptWeek, n.HasOpenPO, n.OpenPOQty, n.OpenPOCount,
			n.CurrentInventory, n.Category, n.ShelfLifeAtRisk, n.RiskScore, n.ThresholdWeeksUsed,
			pq.Array(nonNil(n.RecommendedActions)),
		)
		if err != nil {
			return fmt.Errorf("insert non-moving %s/%s: %w", n.ItemID, n.LocationID, err)
		}
	}
	return nil
}

func insertSegmentation(ctx context.Context, tx *sqlx.Tx, runID string, rows []domain.SegmentationResult) error {
	stmt, err := prepare(ctx, tx, "segmentation", `
		INSERT INTO segmentation (
			run_id, item_id, location_id, abc_class, xyz_class, segment, total_qty, avg_qty, std_qty,
			cv, weeks_with_data, weeks_with_sales, volume_pct, cumulative_pct
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range rows {
		_, err := stmt.ExecContext(ctx,
			runID, s.ItemID, s.LocationID, s.ABCClass, s.XYZClass, s.Segment, s.TotalQty, s.AvgQty, s.StdQty,
			s.CV, s.WeeksWithData, s.WeeksWithSales, s.VolumePct, s.CumulativePct,
		)
		if err != nil {
			return fmt.Errorf("insert segmentation %s/%s: %w", s.ItemID, s.LocationID, err)
		}
	}
	return nil
}

func insertRiskScores(ctx context.Context, tx *sqlx.Tx, runID string, rows []domain.RiskScore) error {
	stmt, err := prepare(ctx, tx, "risk_scores", `
		INSERT INTO risk_scores (
			run_id, item_id, location_id, overall_score, risk_level, primary_risk_factor,
			demand_shift_score, non_moving_score, shelf_life_score, lifecycle_score, inventory_score,
			on_hand_qty, category, stock_position, alerts, recommendations
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range rows {
		flags := make([]string, len(s.Alerts))
		for i, a := range s.Alerts {
			flags[i] = string(a)
		}
		_, err := stmt.ExecContext(ctx,
			runID, s.ItemID, s.LocationID, s.OverallScore, s.RiskLevel, s.PrimaryRiskFactor,
			s.DemandShift, s.NonMoving, s.ShelfLife, s.Lifecycle, s.Inventory,
			s.OnHandQty, s.Category, s.StockPosition, pq.Array(flags), pq.Array(nonNil(s.Recommendations)),
		)
		if err != nil {
			return fmt.Errorf("insert risk score %s/%s: %w", s.ItemID, s.LocationID, err)
		}
	}
	return nil
}

func insertAlerts(ctx context.Context, tx *sqlx.Tx, report *analytics.Report) error {
	stmt, err := prepare(ctx, tx, "alerts", `
		INSERT INTO alerts (
			alert_id, run_id, item_id, location_id, priority, category, title,
			description, risk_score, created_at, recommendations
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range report.Alerts {
		_, err := stmt.ExecContext(ctx,
			a.AlertID, report.RunID, a.ItemID, a.LocationID, a.Priority, a.Category, a.Title,
			a.Description, a.RiskScore, a.CreatedAt, pq.Array(nonNil(a.Recommendations)),
		)
		if err != nil {
			return fmt.Errorf("insert alert %s: %w", a.AlertID, err)
		}
	}
	return nil
}

// nonNil keeps NOT NULL array columns from receiving NULL.
func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
