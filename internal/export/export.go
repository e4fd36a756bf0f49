package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/invengine/internal/alerts"
	"github.com/andresuchdata/invengine/internal/analytics"
	"github.com/andresuchdata/invengine/internal/domain"
	"github.com/andresuchdata/invengine/internal/storage"
)

const (
	listSeparator = "; "
	dateLayout    = "2006-01-02"
	stampLayout   = "20060102_150405"

	TableDemandShifts = "demand_shifts"
	TableNonMoving    = "non_moving"
	TableSegmentation = "segmentation"
	TableRiskScores   = "risk_scores"
	TableAlerts       = "alerts"
	TableSummary      = "summary"
)

// File is one written export.
type File struct {
	Table string
	Path  string
}

// Exporter writes reports as one CSV per table plus a JSON summary.
type Exporter struct {
	dir string
	now func() time.Time
}

func NewExporter(dir string) *Exporter {
	return &Exporter{dir: dir, now: time.Now}
}

// Write exports every table of the report into the output directory.
func (e *Exporter) Write(report *analytics.Report) ([]File, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	stamp := e.now().UTC().Format(stampLayout)

	tables := []struct {
		name string
		head []string
		rows [][]string
	}{
		{TableDemandShifts, demandShiftHeader, demandShiftRows(report.DemandShifts)},
		{TableNonMoving, nonMovingHeader, nonMovingRows(report.NonMoving)},
		{TableSegmentation, segmentationHeader, segmentationRows(report.Segmentation)},
		{TableRiskScores, riskScoreHeader, riskScoreRows(report.RiskScores)},
		{TableAlerts, alertHeader, alertRows(report.Alerts)},
	}

	files := make([]File, 0, len(tables)+1)
	for _, t := range tables {
		path := filepath.Join(e.dir, fmt.Sprintf("%s_%s.csv", t.name, stamp))
		if err := writeCSV(path, t.head, t.rows); err != nil {
			return files, fmt.Errorf("write %s: %w", t.name, err)
		}
		files = append(files, File{Table: t.name, Path: path})
	}

	path := filepath.Join(e.dir, fmt.Sprintf("%s_%s.json", TableSummary, stamp))
	data, err := json.MarshalIndent(report.Summary, "", "  ")
	if err != nil {
		return files, fmt.Errorf("encode summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return files, fmt.Errorf("write summary: %w", err)
	}
	files = append(files, File{Table: TableSummary, Path: path})

	log.Info().Str("dir", e.dir).Int("files", len(files)).Msg("export: report written")
	return files, nil
}

// Upload copies written files to object storage under prefix/runID.
func Upload(ctx context.Context, store storage.ObjectStorage, prefix, runID string, files []File) error {
	for _, f := range files {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return fmt.Errorf("read %s: %w", f.Path, err)
		}
		contentType := "text/csv"
		if filepath.Ext(f.Path) == ".json" {
			contentType = "application/json"
		}
		key := storage.JoinKey(prefix, runID, filepath.Base(f.Path))
		if err := store.UploadObject(ctx, key, data, contentType); err != nil {
			return err
		}
		log.Debug().Str("key", key).Int("bytes", len(data)).Msg("export: uploaded")
	}
	return nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return err
	}
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return file.Sync()
}

var demandShiftHeader = []string{
	"item_id", "location_id", "shift_detected", "shift_type", "shift_direction", "shift_magnitude",
	"confidence_score", "baseline_demand", "current_demand", "cusum_signal", "ma_crossover_signal",
	"zscore_signal", "trend_change_signal", "anomaly_count", "data_points", "detection_date", "reason",
}

func demandShiftRows(results []domain.DemandShiftResult) [][]string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.ItemID, r.LocationID, fmtBool(r.ShiftDetected), string(r.ShiftType), string(r.ShiftDirection),
			fmtFloat(r.ShiftMagnitude), fmtFloat(r.ConfidenceScore), fmtFloat(r.BaselineDemand), fmtFloat(r.CurrentDemand),
			fmtBool(r.CUSUMSignal), fmtBool(r.MACrossoverSignal), fmtBool(r.ZScoreSignal), fmtBool(r.TrendChangeSignal),
			strconv.Itoa(r.AnomalyCount), strconv.Itoa(r.DataPoints), fmtDate(r.DetectionDate), r.Reason,
		})
	}
	return rows
}

var nonMovingHeader = []string{
	"item_id", "location_id", "movement_status", "weeks_since_movement", "weeks_since_sale", "weeks_since_receipt",
	"last_sale_week", "last_receipt_week", "has_open_po", "open_po_qty", "open_po_count", "current_inventory",
	"category", "shelf_life_at_risk", "risk_score", "threshold_weeks_used", "recommended_actions",
}

func nonMovingRows(results []domain.NonMovingResult) [][]string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.ItemID, r.LocationID, string(r.MovementStatus), strconv.Itoa(r.WeeksSinceMovement),
			strconv.Itoa(r.WeeksSinceSale), strconv.Itoa(r.WeeksSinceReceipt),
			fmtDate(r.LastSaleWeek), fmtDate(r.LastReceiptWeek), fmtBool(r.HasOpenPO), fmtFloat(r.OpenPOQty),
			strconv.Itoa(r.OpenPOCount), fmtFloat(r.CurrentInventory), string(r.Category), fmtBool(r.ShelfLifeAtRisk),
			fmtFloat(r.RiskScore), strconv.Itoa(r.ThresholdWeeksUsed), strings.Join(r.RecommendedActions, listSeparator),
		})
	}
	return rows
}

var segmentationHeader = []string{
	"item_id", "location_id", "abc_class", "xyz_class", "segment", "total_qty", "avg_qty", "std_qty", "cv",
	"weeks_with_data", "weeks_with_sales", "volume_pct", "cumulative_pct",
}

func segmentationRows(results []domain.SegmentationResult) [][]string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.ItemID, r.LocationID, string(r.ABCClass), string(r.XYZClass), string(r.Segment),
			fmtFloat(r.TotalQty), fmtFloat(r.AvgQty), fmtFloat(r.StdQty), fmtFloat(r.CV),
			strconv.Itoa(r.WeeksWithData), strconv.Itoa(r.WeeksWithSales), fmtFloat(r.VolumePct), fmtFloat(r.CumulativePct),
		})
	}
	return rows
}

var riskScoreHeader = []string{
	"item_id", "location_id", "overall_score", "risk_level", "primary_risk_factor", "demand_shift_score",
	"non_moving_score", "shelf_life_score", "lifecycle_score", "inventory_score", "on_hand_qty", "category",
	"stock_position", "alerts", "recommendations",
}

func riskScoreRows(scores []domain.RiskScore) [][]string {
	rows := make([][]string, 0, len(scores))
	for _, r := range scores {
		flags := make([]string, len(r.Alerts))
		for i, a := range r.Alerts {
			flags[i] = string(a)
		}
		rows = append(rows, []string{
			r.ItemID, r.LocationID, fmtFloat(r.OverallScore), string(r.RiskLevel), string(r.PrimaryRiskFactor),
			fmtFloat(r.DemandShift), fmtFloat(r.NonMoving), fmtFloat(r.ShelfLife), fmtFloat(r.Lifecycle),
			fmtFloat(r.Inventory), fmtFloat(r.OnHandQty), string(r.Category), string(r.StockPosition),
			strings.Join(flags, listSeparator), strings.Join(r.Recommendations, listSeparator),
		})
	}
	return rows
}

var alertHeader = []string{
	"alert_id", "item_id", "location_id", "priority", "category", "title", "description", "risk_score",
	"created_at", "recommendations",
}

func alertRows(list []alerts.Alert) [][]string {
	rows := make([][]string, 0, len(list))
	for _, a := range list {
		rows = append(rows, []string{
			a.AlertID, a.ItemID, a.LocationID, string(a.Priority), string(a.Category), a.Title, a.Description,
			fmtFloat(a.RiskScore), a.CreatedAt.Format(time.RFC3339), strings.Join(a.Recommendations, listSeparator),
		})
	}
	return rows
}

func fmtFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func fmtBool(v bool) string { return strconv.FormatBool(v) }

func fmtDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}
