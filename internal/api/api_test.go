package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/invengine/internal/analytics"
	"github.com/andresuchdata/invengine/internal/config"
	"github.com/andresuchdata/invengine/internal/dataset"
	"github.com/andresuchdata/invengine/internal/domain"
	"github.com/andresuchdata/invengine/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type builtSource struct {
	ds *dataset.Dataset
}

func (s *builtSource) Name() string { return "test" }

func (s *builtSource) Load(context.Context) (*dataset.Dataset, error) { return s.ds, nil }

func fixtureDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	start := time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)
	b := dataset.NewBuilder()
	for i := 0; i < 4; i++ {
		item := fmt.Sprintf("SKU%d", i)
		for w := 0; w < 20; w++ {
			qty := float64((i + 1) * 10)
			if i == 3 {
				qty = 0
			}
			b.AddSales(domain.SalesRecord{ItemID: item, LocationID: "L1", WeekEnding: start.AddDate(0, 0, 7*w), QtySold: qty})
		}
		b.AddInventory(domain.InventoryRecord{ItemID: item, LocationID: "L1", WeekEnding: start.AddDate(0, 0, 7*19), OnHandQty: 25})
	}
	ds, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return ds
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	ds := fixtureDataset(t)
	svc := service.NewAnalysisService(service.Options{Engine: analytics.NewEngine(config.DefaultEngineConfig())})
	resolve := func(name, _ string) (service.DatasetSource, error) {
		if name != service.SourceCSV {
			return nil, fmt.Errorf("unsupported source %q", name)
		}
		return &builtSource{ds: ds}, nil
	}
	return NewRouter(&Services{AnalysisService: svc, ResolveSource: resolve}, nil)
}

func do(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type listResponse struct {
	RunID string            `json:"run_id"`
	Count int               `json:"count"`
	Items []json.RawMessage `json:"items"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestBeforeAnyRun(t *testing.T) {
	r := newTestRouter(t)

	for _, path := range []string{
		"/api/v1/analysis/latest/summary",
		"/api/v1/analysis/latest/demand_shifts",
		"/api/v1/analysis/latest/non_moving",
		"/api/v1/analysis/latest/segmentation",
		"/api/v1/analysis/latest/risk_scores",
		"/api/v1/analysis/latest/alerts",
	} {
		if w := do(t, r, http.MethodGet, path, ""); w.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404 before a run, got %d", path, w.Code)
		}
	}

	w := do(t, r, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK || strings.Contains(w.Body.String(), "latest_run_id") {
		t.Fatalf("unexpected health response %d %s", w.Code, w.Body.String())
	}

	if w := do(t, r, http.MethodGet, "/api/v1/analysis/runs", ""); w.Code != http.StatusNotImplemented {
		t.Fatalf("runs without a database should be 501, got %d", w.Code)
	}
	if w := do(t, r, http.MethodGet, "/api/v1/analysis/runs/abc", ""); w.Code != http.StatusNotImplemented {
		t.Fatalf("run lookup without a database should be 501, got %d", w.Code)
	}
}

func TestRunAndRead(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/api/v1/analysis/run", `{"source":"csv","threshold_weeks":12}`)
	if w.Code != http.StatusOK {
		t.Fatalf("run: %d %s", w.Code, w.Body.String())
	}
	run := decode[struct {
		RunID          string `json:"run_id"`
		ThresholdWeeks int    `json:"threshold_weeks"`
		AnalysisDate   string `json:"analysis_date"`
	}](t, w)
	if run.RunID == "" || run.ThresholdWeeks != 12 || run.AnalysisDate != "2024-05-19" {
		t.Fatalf("unexpected run response %+v", run)
	}

	summary := decode[analytics.Summary](t, do(t, r, http.MethodGet, "/api/v1/analysis/latest/summary", ""))
	if summary.RunID != run.RunID || summary.TotalKeys != 4 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	nm := decode[listResponse](t, do(t, r, http.MethodGet, "/api/v1/analysis/latest/non_moving?status=non_moving", ""))
	if nm.Count != 1 || nm.RunID != run.RunID {
		t.Fatalf("expected one non-moving key, got %+v", nm)
	}

	rs := decode[listResponse](t, do(t, r, http.MethodGet, "/api/v1/analysis/latest/risk_scores?limit=2", ""))
	if rs.Count != 2 {
		t.Fatalf("expected limit to apply, got %d", rs.Count)
	}

	seg := decode[listResponse](t, do(t, r, http.MethodGet, "/api/v1/analysis/latest/segmentation", ""))
	if seg.Count != 4 {
		t.Fatalf("expected 4 segmentation rows, got %d", seg.Count)
	}

	ds := decode[listResponse](t, do(t, r, http.MethodGet, "/api/v1/analysis/latest/demand_shifts", ""))
	if ds.Count != 4 {
		t.Fatalf("expected 4 demand shift rows, got %d", ds.Count)
	}

	w = do(t, r, http.MethodGet, "/health", "")
	if !strings.Contains(w.Body.String(), run.RunID) {
		t.Fatalf("health should report the latest run, got %s", w.Body.String())
	}
}

func TestBadRequests(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"bad json", http.MethodPost, "/api/v1/analysis/run", `{"source":`, http.StatusBadRequest},
		{"bad date", http.MethodPost, "/api/v1/analysis/run", `{"analysis_date":"06/01/2024"}`, http.StatusBadRequest},
		{"unknown source", http.MethodPost, "/api/v1/analysis/run", `{"source":"ftp"}`, http.StatusBadRequest},
		{"bad threshold", http.MethodPost, "/api/v1/analysis/run", `{"threshold_weeks":13}`, http.StatusUnprocessableEntity},
		{"persist without db", http.MethodPost, "/api/v1/analysis/run", `{"persist":true}`, http.StatusUnprocessableEntity},
		{"bad segment", http.MethodGet, "/api/v1/analysis/segments/QQ/profile", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(t, r, tt.method, tt.path, tt.body); w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}

	if w := do(t, r, http.MethodPost, "/api/v1/analysis/run", ""); w.Code != http.StatusOK {
		t.Fatalf("empty body should use defaults, got %d %s", w.Code, w.Body.String())
	}
	for _, path := range []string{
		"/api/v1/analysis/latest/non_moving?status=sleeping",
		"/api/v1/analysis/latest/risk_scores?level=severe",
		"/api/v1/analysis/latest/risk_scores?limit=0",
		"/api/v1/analysis/latest/alerts?priority=urgent",
		"/api/v1/analysis/latest/segmentation?segment=AQ",
	} {
		if w := do(t, r, http.MethodGet, path, ""); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, w.Code)
		}
	}
}

func TestSegmentProfile(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/api/v1/analysis/segments/az/profile", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	profile := decode[map[string]string](t, w)
	if profile["segment"] != "AZ" || profile["priority"] == "" {
		t.Fatalf("unexpected profile %v", profile)
	}
}

func TestNormalizeAllowedOrigins(t *testing.T) {
	got, all := normalizeAllowedOrigins([]string{"https://a.example, https://b.example", " "})
	if all || len(got) != 2 || got[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v %v", got, all)
	}
	if _, all := normalizeAllowedOrigins([]string{"*"}); !all {
		t.Fatal("expected wildcard to allow all")
	}
}
