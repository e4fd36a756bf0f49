package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/andresuchdata/invengine/internal/config"
	"github.com/andresuchdata/invengine/internal/domain"
)

var (
	asOf = time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	key  = domain.Key{ItemID: "SKU-1", LocationID: "LOC-1"}
)

func newScorer() *Scorer {
	return NewScorer(config.DefaultEngineConfig().Scoring)
}

func daysBefore(n int) *time.Time {
	t := asOf.AddDate(0, 0, -n)
	return &t
}

func approx(a, b float64) bool { return math.Abs(a-b) < 0.01 }

func TestScoreDemandDrop(t *testing.T) {
	res := newScorer().Score(Input{
		Key: key,
		DemandShift: &domain.DemandShiftResult{
			ShiftDetected:   true,
			ShiftDirection:  domain.DirectionDecrease,
			ShiftMagnitude:  -80,
			ConfidenceScore: 65,
			CurrentDemand:   20,
		},
		AnalysisDate: asOf,
	})

	// (40 + 19.5) * 1.2
	if !approx(res.DemandShift, 71.4) {
		t.Fatalf("expected demand score 71.4, got %v", res.DemandShift)
	}
	if res.Lifecycle != unknownLifecycleScore {
		t.Fatalf("expected unknown lifecycle score, got %v", res.Lifecycle)
	}
	if !approx(res.OverallScore, 21.6) {
		t.Fatalf("expected overall 21.6, got %v", res.OverallScore)
	}
	if res.RiskLevel != domain.RiskLow {
		t.Fatalf("expected low risk, got %s", res.RiskLevel)
	}
	if res.PrimaryRiskFactor != domain.FactorDemandShift {
		t.Fatalf("expected demand_shift primary, got %s", res.PrimaryRiskFactor)
	}
	if res.StockPosition != domain.PositionUnknown {
		t.Fatalf("expected unknown position without policy, got %s", res.StockPosition)
	}
	if len(res.Alerts) != 1 || res.Alerts[0] != domain.AlertDemandDrop {
		t.Fatalf("expected demand_drop alert, got %v", res.Alerts)
	}
	if len(res.Recommendations) != 1 {
		t.Fatalf("expected one recommendation, got %v", res.Recommendations)
	}
}

func TestScoreEverythingWrong(t *testing.T) {
	res := newScorer().Score(Input{
		Key: key,
		DemandShift: &domain.DemandShiftResult{
			ShiftDetected: true, ShiftDirection: domain.DirectionDecrease,
			ShiftMagnitude: -200, ConfidenceScore: 100, CurrentDemand: 0,
		},
		NonMoving: &domain.NonMovingResult{
			MovementStatus: domain.StatusNonMoving, WeeksSinceMovement: 60, ThresholdWeeksUsed: 12,
		},
		Item: &domain.Item{
			ItemID: "SKU-1", Category: domain.CategoryDeclining, ShelfLifeDays: 90,
			LaunchDate: daysBefore(400), ObsoleteDate: daysBefore(1),
		},
		Policy:       &domain.ReorderPolicy{ItemID: "SKU-1", MinQty: 5, MaxQty: 10},
		OnHand:       500,
		AnalysisDate: asOf,
	})

	want := domain.ComponentScores{DemandShift: 96, NonMoving: 100, ShelfLife: 100, Lifecycle: 100, Inventory: 100}
	if res.ComponentScores != want {
		t.Fatalf("unexpected components %+v", res.ComponentScores)
	}
	if !approx(res.OverallScore, 99) || res.RiskLevel != domain.RiskCritical {
		t.Fatalf("expected critical 99, got %s %v", res.RiskLevel, res.OverallScore)
	}
	if res.PrimaryRiskFactor != domain.FactorNonMoving {
		t.Fatalf("expected non_moving primary, got %s", res.PrimaryRiskFactor)
	}

	wantAlerts := []domain.RiskAlert{domain.AlertDemandDrop, domain.AlertDeadStock, domain.AlertShelfLifeRisk, domain.AlertOverstock}
	if len(res.Alerts) != len(wantAlerts) {
		t.Fatalf("unexpected alerts %v", res.Alerts)
	}
	for i, a := range wantAlerts {
		if res.Alerts[i] != a {
			t.Fatalf("alert %d: want %s, got %s", i, a, res.Alerts[i])
		}
	}
	last := res.Recommendations[len(res.Recommendations)-1]
	if last != recDiscontinuation {
		t.Fatalf("expected discontinuation planning for declining item, got %q", last)
	}
}

func TestInventoryScoreWeeksOfSupplyCap(t *testing.T) {
	s := newScorer()
	policy := &domain.ReorderPolicy{MinQty: 0, MaxQty: 20}

	tests := []struct {
		name   string
		onHand float64
		policy *domain.ReorderPolicy
		demand float64
		want   float64
	}{
		{"no stock", 0, policy, 0, 0},
		{"no demand uses cap", 10, nil, 0, 50},
		{"negative demand uses cap", 10, nil, -3, 50},
		{"healthy cover", 10, nil, 1, 0},
		{"long cover", 10, nil, 0.2, 46.15},
		{"overstock only", 30, policy, 10, 25},
		{"zero max counts as full overstock", 5, &domain.ReorderPolicy{MaxQty: 0}, 5, 50},
		{"overstock and cap", 100, policy, 0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.InventoryScore(tt.onHand, tt.policy, tt.demand)
			if !approx(got, tt.want) {
				t.Fatalf("want %v, got %v", tt.want, got)
			}
		})
	}

	cfg := config.DefaultEngineConfig().Scoring
	cfg.MaxWeeksOfSupply = 26
	if got := NewScorer(cfg).InventoryScore(10, nil, 0); got != 0 {
		t.Fatalf("a 26 week cap must not score weeks of supply, got %v", got)
	}
}

func TestNonMovingScore(t *testing.T) {
	tests := []struct {
		name   string
		res    *domain.NonMovingResult
		onHand float64
		want   float64
	}{
		{"no result", nil, 10, 0},
		{"no stock", &domain.NonMovingResult{MovementStatus: domain.StatusNonMoving, WeeksSinceMovement: 60}, 0, 0},
		{"dead stock", &domain.NonMovingResult{MovementStatus: domain.StatusNonMoving, WeeksSinceMovement: 52}, 1, 100},
		{"non moving", &domain.NonMovingResult{MovementStatus: domain.StatusNonMoving, WeeksSinceMovement: 20}, 1, 75},
		{"on hold", &domain.NonMovingResult{MovementStatus: domain.StatusOnHold, WeeksSinceMovement: 80}, 1, 40},
		{"active", &domain.NonMovingResult{MovementStatus: domain.StatusActive, WeeksSinceMovement: 6, ThresholdWeeksUsed: 12}, 1, 10},
	}
	for _, tt := range tests {
		if got := NonMovingScore(tt.res, tt.onHand); got != tt.want {
			t.Errorf("%s: want %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestShelfLifeScore(t *testing.T) {
	tests := []struct {
		launchedDaysAgo int
		want            float64
	}{
		{10, 0},
		{30, 20},
		{60, 50},
		{95, 80},
		{120, 100},
	}
	for _, tt := range tests {
		item := &domain.Item{ShelfLifeDays: 120, LaunchDate: daysBefore(tt.launchedDaysAgo)}
		if got := ShelfLifeScore(item, 5, asOf); got != tt.want {
			t.Errorf("%d days: want %v, got %v", tt.launchedDaysAgo, tt.want, got)
		}
	}

	if got := ShelfLifeScore(&domain.Item{ShelfLifeDays: 120}, 5, asOf); got != 0 {
		t.Fatalf("missing launch date must score 0, got %v", got)
	}
}

func TestPrimaryFactorTieBreak(t *testing.T) {
	tests := []struct {
		c    domain.ComponentScores
		want domain.RiskFactor
	}{
		{domain.ComponentScores{}, domain.FactorDemandShift},
		{domain.ComponentScores{NonMoving: 40, Lifecycle: 40}, domain.FactorNonMoving},
		{domain.ComponentScores{ShelfLife: 20, Inventory: 50}, domain.FactorInventory},
	}
	for _, tt := range tests {
		if got := PrimaryFactor(tt.c); got != tt.want {
			t.Errorf("%+v: want %s, got %s", tt.c, tt.want, got)
		}
	}
}

func TestScoresStayInRange(t *testing.T) {
	s := newScorer()
	magnitudes := []float64{-1000, -50, 0, 30, 5000}
	statuses := []domain.MovementStatus{domain.StatusActive, domain.StatusNonMoving, domain.StatusOnHold}
	onHands := []float64{-5, 0, 1, 1e6}
	categories := []domain.Category{domain.CategoryDeclining, domain.CategoryStaple, domain.CategoryUnknown}

	for _, m := range magnitudes {
		for _, st := range statuses {
			for _, oh := range onHands {
				for _, cat := range categories {
					res := s.Score(Input{
						Key: key,
						DemandShift: &domain.DemandShiftResult{
							ShiftDetected: true, ShiftMagnitude: m, ConfidenceScore: 100,
							ShiftDirection: domain.DirectionDecrease, CurrentDemand: 0.5,
						},
						NonMoving: &domain.NonMovingResult{
							MovementStatus: st, WeeksSinceMovement: 9999, ThresholdWeeksUsed: 12,
						},
						Item: &domain.Item{
							Category: cat, ShelfLifeDays: 30, LaunchDate: daysBefore(1000), ObsoleteDate: daysBefore(1),
						},
						Policy:       &domain.ReorderPolicy{MaxQty: 0},
						OnHand:       oh,
						AnalysisDate: asOf,
					})
					for _, f := range domain.RiskFactors {
						if v := res.Get(f); v < 0 || v > 100 {
							t.Fatalf("%s out of range: %v", f, v)
						}
					}
					if res.OverallScore < 0 || res.OverallScore > 100 {
						t.Fatalf("overall out of range: %v", res.OverallScore)
					}
				}
			}
		}
	}
}

func TestRecommendationsSeasonal(t *testing.T) {
	recs := Recommendations(nil, domain.RiskMinimal, domain.CategorySeasonal)
	if len(recs) != 1 || recs[0] != recSeasonalReview {
		t.Fatalf("expected seasonal review, got %v", recs)
	}
	if recs := Recommendations(nil, domain.RiskMedium, domain.CategoryDeclining); len(recs) != 0 {
		t.Fatalf("medium risk declining items need no planning, got %v", recs)
	}
}

func TestSummarizeAndPriority(t *testing.T) {
	scores := []domain.RiskScore{
		{ItemID: "b", OverallScore: 85, RiskLevel: domain.RiskCritical, PrimaryRiskFactor: domain.FactorNonMoving},
		{ItemID: "a", OverallScore: 65, RiskLevel: domain.RiskHigh, PrimaryRiskFactor: domain.FactorNonMoving},
		{ItemID: "c", OverallScore: 85, RiskLevel: domain.RiskCritical, PrimaryRiskFactor: domain.FactorShelfLife},
		{ItemID: "d", OverallScore: 5, RiskLevel: domain.RiskMinimal, PrimaryRiskFactor: domain.FactorDemandShift},
	}

	sum := Summarize(scores)
	if sum.CriticalItems != 2 || sum.HighRiskItems != 3 || sum.AvgScore != 60 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if sum.ByPrimaryFactor[domain.FactorNonMoving] != 2 {
		t.Fatalf("unexpected factor counts %v", sum.ByPrimaryFactor)
	}

	top := PriorityItems(scores, 2)
	if len(top) != 2 || top[0].ItemID != "b" || top[1].ItemID != "c" {
		t.Fatalf("unexpected priority items %+v", top)
	}
	if scores[0].ItemID != "b" || scores[1].ItemID != "a" {
		t.Fatal("PriorityItems must not reorder its input")
	}
}
