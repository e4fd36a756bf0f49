package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andresuchdata/invengine/internal/alerts"
	"github.com/andresuchdata/invengine/internal/analytics"
	"github.com/andresuchdata/invengine/internal/domain"
	"github.com/andresuchdata/invengine/internal/storage"
)

func sampleReport() *analytics.Report {
	lastSale := time.Date(2024, 2, 4, 0, 0, 0, 0, time.UTC)
	return &analytics.Report{
		RunID: "run-1",
		DemandShifts: []domain.DemandShiftResult{
			{ItemID: "A", LocationID: "L1", ShiftDetected: true, ShiftType: domain.ShiftSustained,
				ShiftDirection: domain.DirectionIncrease, ShiftMagnitude: 42.5, ConfidenceScore: 71.25},
		},
		NonMoving: []domain.NonMovingResult{
			{ItemID: "A", LocationID: "L1", MovementStatus: domain.StatusNonMoving, WeeksSinceMovement: 14,
				LastSaleWeek: &lastSale, RecommendedActions: []string{"check_forecast: review", "sales_strategy: promote"}},
		},
		Segmentation: []domain.SegmentationResult{
			{ItemID: "A", LocationID: domain.AllLocations, ABCClass: domain.ClassA, XYZClass: domain.ClassX, Segment: "AX"},
		},
		RiskScores: []domain.RiskScore{
			{ItemID: "A", LocationID: "L1", OverallScore: 55, RiskLevel: domain.RiskMedium,
				Alerts: []domain.RiskAlert{domain.AlertSlowMoving, domain.AlertOverstock}},
		},
		Alerts: []alerts.Alert{
			{AlertID: "ALT-1", ItemID: "A", LocationID: "L1", Priority: alerts.PriorityHigh, Category: alerts.CategoryInventoryRisk,
				Title: "Non-Moving Inventory - A", Recommendations: []string{"one", "two"}},
		},
		Summary: analytics.Summary{RunID: "run-1", TotalKeys: 1},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rows
}

func column(t *testing.T, header []string, name string) int {
	t.Helper()
	for i, h := range header {
		if h == name {
			return i
		}
	}
	t.Fatalf("column %s not found in %v", name, header)
	return -1
}

func TestWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	e := NewExporter(dir)
	e.now = func() time.Time { return time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC) }

	files, err := e.Write(sampleReport())
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(files) != 6 {
		t.Fatalf("expected 6 files, got %d", len(files))
	}
	byTable := make(map[string]string)
	for _, f := range files {
		byTable[f.Table] = f.Path
	}
	if filepath.Base(byTable[TableNonMoving]) != "non_moving_20240601_083000.csv" {
		t.Fatalf("unexpected file name %s", byTable[TableNonMoving])
	}

	nm := readCSV(t, byTable[TableNonMoving])
	if len(nm) != 2 {
		t.Fatalf("expected header and one row, got %d rows", len(nm))
	}
	if got := nm[1][column(t, nm[0], "recommended_actions")]; got != "check_forecast: review; sales_strategy: promote" {
		t.Fatalf("unexpected actions column %q", got)
	}
	if got := nm[1][column(t, nm[0], "last_sale_week")]; got != "2024-02-04" {
		t.Fatalf("unexpected last sale week %q", got)
	}

	rs := readCSV(t, byTable[TableRiskScores])
	if got := rs[1][column(t, rs[0], "alerts")]; got != "slow_moving; overstock" {
		t.Fatalf("unexpected alerts column %q", got)
	}

	ds := readCSV(t, byTable[TableDemandShifts])
	if got := ds[1][column(t, ds[0], "confidence_score")]; got != "71.25" {
		t.Fatalf("unexpected confidence %q", got)
	}

	data, err := os.ReadFile(byTable[TableSummary])
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	var summary analytics.Summary
	if err := json.Unmarshal(data, &summary); err != nil || summary.RunID != "run-1" {
		t.Fatalf("unexpected summary %s: %v", data, err)
	}
}

type recordingStore struct {
	uploads map[string]string
}

func (r *recordingStore) ListObjects(context.Context, string) ([]storage.ObjectInfo, error) {
	return nil, nil
}

func (r *recordingStore) DownloadObject(context.Context, string, string) error { return nil }

func (r *recordingStore) UploadObject(_ context.Context, key string, _ []byte, contentType string) error {
	r.uploads[key] = contentType
	return nil
}

func TestUpload(t *testing.T) {
	e := NewExporter(t.TempDir())
	e.now = func() time.Time { return time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC) }
	files, err := e.Write(sampleReport())
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	store := &recordingStore{uploads: make(map[string]string)}
	if err := Upload(context.Background(), store, "exports/", "run-1", files); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(store.uploads) != 6 {
		t.Fatalf("expected 6 uploads, got %d", len(store.uploads))
	}
	if ct := store.uploads["exports/run-1/summary_20240601_083000.json"]; ct != "application/json" {
		t.Fatalf("unexpected summary upload %q", ct)
	}
	if ct := store.uploads["exports/run-1/alerts_20240601_083000.csv"]; ct != "text/csv" {
		t.Fatalf("unexpected alerts upload %q", ct)
	}
}
