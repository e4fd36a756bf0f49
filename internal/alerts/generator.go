package alerts

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/invengine/internal/analytics/nonmoving"
	"github.com/andresuchdata/invengine/internal/domain"
)

const (
	DefaultMinShiftConfidence = 50.0
	DefaultMinNonMovingRisk   = 40.0
	DefaultMinOverallScore    = 50.0

	deadStockWeeks = 52
)

var factorTitles = map[domain.RiskFactor]string{
	domain.FactorDemandShift: "Demand Pattern Change",
	domain.FactorNonMoving:   "Inventory Movement Risk",
	domain.FactorShelfLife:   "Shelf Life Concern",
	domain.FactorLifecycle:   "Product Lifecycle Risk",
	domain.FactorInventory:   "Inventory Level Issue",
}

// Generator turns detector output into alerts.
type Generator struct {
	now   func() time.Time
	newID func(time.Time) string
}

func NewGenerator() *Generator {
	return &Generator{now: time.Now, newID: newAlertID}
}

// WithClock fixes the timestamp used for alert ids and created_at.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

func (g *Generator) alert(itemID, locationID string) Alert {
	now := g.now().UTC()
	return Alert{
		AlertID:    g.newID(now),
		ItemID:     itemID,
		LocationID: locationID,
		CreatedAt:  now,
	}
}

// FromDemandShifts alerts on detected shifts with confidence at or above
// minConfidence.
func (g *Generator) FromDemandShifts(results []domain.DemandShiftResult, minConfidence float64) []Alert {
	out := make([]Alert, 0)
	for _, r := range results {
		if !r.ShiftDetected || r.ConfidenceScore < minConfidence {
			continue
		}

		a := g.alert(r.ItemID, r.LocationID)
		a.Category = CategoryDemandShift
		a.Priority = PriorityFromScore(r.ConfidenceScore)
		a.RiskScore = r.ConfidenceScore

		verb := "decreased"
		switch r.ShiftDirection {
		case domain.DirectionIncrease:
			verb = "increased"
			a.Title = "Demand Surge Detected - " + r.ItemID
			a.Recommendations = []string{
				"Review and raise safety stock levels",
				"Consider expediting pending orders",
				"Check capacity for the higher demand",
			}
		case domain.DirectionDecrease, domain.DirectionStable:
			a.Title = "Demand Drop Detected - " + r.ItemID
			a.Recommendations = []string{
				"Review open purchase orders for reduction",
				"Reduce future order quantities",
				"Investigate the cause of the decline",
			}
		}
		a.Description = fmt.Sprintf(
			"Demand for %s at %s has %s by %.1f%% against baseline. Current weekly demand: %.0f, baseline: %.0f.",
			r.ItemID, r.LocationID, verb, abs(r.ShiftMagnitude), r.CurrentDemand, r.BaselineDemand)
		a.Metadata = map[string]any{
			"shift_type":          r.ShiftType,
			"shift_magnitude":     r.ShiftMagnitude,
			"shift_direction":     r.ShiftDirection,
			"baseline_demand":     r.BaselineDemand,
			"current_demand":      r.CurrentDemand,
			"cusum_signal":        r.CUSUMSignal,
			"ma_crossover_signal": r.MACrossoverSignal,
		}
		out = append(out, a)
	}
	log.Debug().Int("alerts", len(out)).Msg("alerts: demand shift alerts generated")
	return out
}

// FromNonMoving alerts on idle stock that scores at least minRisk.
func (g *Generator) FromNonMoving(results []domain.NonMovingResult, minRisk float64) []Alert {
	out := make([]Alert, 0)
	for _, r := range results {
		if r.RiskScore < minRisk || r.CurrentInventory <= 0 {
			continue
		}

		a := g.alert(r.ItemID, r.LocationID)
		a.Category = CategoryInventoryRisk
		a.RiskScore = r.RiskScore
		idle := describeIdle(r.WeeksSinceMovement)

		switch r.MovementStatus {
		case domain.StatusNonMoving:
			if r.WeeksSinceMovement >= deadStockWeeks {
				a.Priority = PriorityCritical
				a.Title = "Dead Stock Alert - " + r.ItemID
				a.Description = fmt.Sprintf("%s at %s has %s with %.0f units on hand and is at high risk of obsolescence.",
					r.ItemID, r.LocationID, idle, r.CurrentInventory)
				a.Recommendations = []string{
					"Evaluate for disposal or write-off",
					"Consider clearance pricing or markdown",
					"Stop all pending supply orders",
				}
			} else {
				a.Priority = PriorityHigh
				a.Title = "Non-Moving Inventory - " + r.ItemID
				a.Description = fmt.Sprintf("%s at %s has %s with %.0f units on hand.",
					r.ItemID, r.LocationID, idle, r.CurrentInventory)
				a.Recommendations = []string{
					"Review for promotional opportunities",
					"Consider stock transfers to other locations",
				}
			}
		case domain.StatusOnHold:
			a.Priority = PriorityMedium
			a.Category = CategorySupplyRisk
			a.Title = "Idle Stock With Open Orders - " + r.ItemID
			a.Description = fmt.Sprintf("%s at %s has %s with %.0f units on hand and %.0f units on order.",
				r.ItemID, r.LocationID, idle, r.CurrentInventory, r.OpenPOQty)
			a.Recommendations = []string{
				"Put open supply orders on hold",
				"Review pricing strategy",
				"Reduce reorder quantities",
			}
		case domain.StatusActive:
			continue
		}

		a.Metadata = map[string]any{
			"movement_status":      r.MovementStatus,
			"weeks_since_movement": r.WeeksSinceMovement,
			"current_inventory":    r.CurrentInventory,
			"has_open_po":          r.HasOpenPO,
			"shelf_life_at_risk":   r.ShelfLifeAtRisk,
			"product_category":     r.Category,
		}
		out = append(out, a)
	}
	log.Debug().Int("alerts", len(out)).Msg("alerts: non-moving alerts generated")
	return out
}

// FromRiskScores alerts on keys whose overall score is at least minScore.
func (g *Generator) FromRiskScores(scores []domain.RiskScore, minScore float64) []Alert {
	out := make([]Alert, 0)
	for _, r := range scores {
		if r.OverallScore < minScore {
			continue
		}

		a := g.alert(r.ItemID, r.LocationID)
		a.Category = riskCategory(r.PrimaryRiskFactor)
		a.Priority = PriorityFromScore(r.OverallScore)
		a.RiskScore = r.OverallScore

		title, ok := factorTitles[r.PrimaryRiskFactor]
		if !ok {
			title = "Risk Alert"
		}
		a.Title = title + " - " + r.ItemID
		a.Description = fmt.Sprintf("%s at %s has an overall risk score of %.1f. Primary concern: %s. Current inventory: %.0f units.",
			r.ItemID, r.LocationID, r.OverallScore, r.PrimaryRiskFactor, r.OnHandQty)
		if r.HasAlert(domain.AlertShelfLifeRisk) {
			a.Description += " Shelf life at risk."
		}
		if r.HasAlert(domain.AlertDeadStock) {
			a.Description += " Classified as dead stock."
		}
		a.Recommendations = append([]string(nil), r.Recommendations...)
		a.Metadata = map[string]any{
			"primary_risk_factor": r.PrimaryRiskFactor,
			"demand_shift_score":  r.DemandShift,
			"non_moving_score":    r.NonMoving,
			"shelf_life_score":    r.ShelfLife,
			"lifecycle_score":     r.Lifecycle,
			"inventory_score":     r.Inventory,
			"alerts":              r.Alerts,
		}
		out = append(out, a)
	}
	log.Debug().Int("alerts", len(out)).Msg("alerts: risk alerts generated")
	return out
}

func riskCategory(f domain.RiskFactor) Category {
	switch f {
	case domain.FactorDemandShift:
		return CategoryDemandShift
	case domain.FactorShelfLife:
		return CategoryShelfLife
	case domain.FactorInventory:
		return CategoryOptimization
	case domain.FactorNonMoving, domain.FactorLifecycle:
		return CategoryInventoryRisk
	}
	return CategoryInventoryRisk
}

// Consolidate keeps the first alert per (item, location, category) across
// the given lists, then sorts by priority and descending score.
func Consolidate(lists ...[]Alert) []Alert {
	type dedupKey struct {
		item, loc string
		cat       Category
	}
	seen := make(map[dedupKey]struct{})
	out := make([]Alert, 0)
	for _, list := range lists {
		for _, a := range list {
			k := dedupKey{a.ItemID, a.LocationID, a.Category}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, a)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if ri, rj := out[i].Priority.Rank(), out[j].Priority.Rank(); ri != rj {
			return ri < rj
		}
		return out[i].RiskScore > out[j].RiskScore
	})
	return out
}

// Summary counts alerts by priority and category.
type Summary struct {
	Total           int              `json:"total"`
	ByPriority      map[Priority]int `json:"by_priority"`
	ByCategory      map[Category]int `json:"by_category"`
	CriticalCount   int              `json:"critical_count"`
	HighCount       int              `json:"high_count"`
	UniqueItems     int              `json:"unique_items"`
	UniqueLocations int              `json:"unique_locations"`
}

func Summarize(alerts []Alert) Summary {
	s := Summary{
		Total:      len(alerts),
		ByPriority: make(map[Priority]int),
		ByCategory: make(map[Category]int),
	}
	items := make(map[string]struct{})
	locs := make(map[string]struct{})
	for _, a := range alerts {
		s.ByPriority[a.Priority]++
		s.ByCategory[a.Category]++
		items[a.ItemID] = struct{}{}
		locs[a.LocationID] = struct{}{}
	}
	s.CriticalCount = s.ByPriority[PriorityCritical]
	s.HighCount = s.ByPriority[PriorityHigh]
	s.UniqueItems = len(items)
	s.UniqueLocations = len(locs)
	return s
}

// FilterPriority keeps alerts with the given priority.
func FilterPriority(alerts []Alert, p Priority) []Alert {
	out := make([]Alert, 0)
	for _, a := range alerts {
		if a.Priority == p {
			out = append(out, a)
		}
	}
	return out
}

func describeIdle(weeks int) string {
	if weeks >= nonmoving.NoActivityWeeks {
		return "no recorded movement"
	}
	return fmt.Sprintf("had no movement for %d weeks", weeks)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
