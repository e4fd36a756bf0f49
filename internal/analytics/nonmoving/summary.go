package nonmoving

import (
	"sort"
	"strings"

	"github.com/andresuchdata/invengine/internal/analytics/stats"
	"github.com/andresuchdata/invengine/internal/domain"
)

type Summary struct {
	TotalKeys        int     `json:"total_keys"`
	Active           int     `json:"active"`
	NonMoving        int     `json:"non_moving"`
	OnHold           int     `json:"on_hold"`
	WithOpenPO       int     `json:"with_open_po"`
	ShelfLifeAtRisk  int     `json:"shelf_life_at_risk"`
	InventoryAtRisk  float64 `json:"inventory_at_risk"`
	AvgRiskScore     float64 `json:"avg_risk_score"`
	ThresholdWeeks   int     `json:"threshold_weeks"`
	TransferCount    int     `json:"transfer_candidates"`
	ObsoleteCount    int     `json:"obsolete_candidates"`
	TotalOpenPOQty   float64 `json:"total_open_po_qty"`
	NonMovingPercent float64 `json:"non_moving_percent"`
}

// Summarize rolls up a detection run.
func Summarize(results []domain.NonMovingResult) Summary {
	s := Summary{TotalKeys: len(results)}
	var risk float64
	for _, r := range results {
		switch r.MovementStatus {
		case domain.StatusActive:
			s.Active++
		case domain.StatusNonMoving:
			s.NonMoving++
			s.InventoryAtRisk += r.CurrentInventory
		case domain.StatusOnHold:
			s.OnHold++
			s.InventoryAtRisk += r.CurrentInventory
		}
		if r.HasOpenPO {
			s.WithOpenPO++
			s.TotalOpenPOQty += r.OpenPOQty
		}
		if r.ShelfLifeAtRisk {
			s.ShelfLifeAtRisk++
		}
		if hasAction(r, domain.ActionInterplantTransfer) {
			s.TransferCount++
		}
		if hasAction(r, domain.ActionMarkObsolete) {
			s.ObsoleteCount++
		}
		risk += r.RiskScore
		s.ThresholdWeeks = r.ThresholdWeeksUsed
	}
	if len(results) > 0 {
		s.AvgRiskScore = stats.Round(risk/float64(len(results)), 2)
		s.NonMovingPercent = stats.Round(float64(s.NonMoving+s.OnHold)/float64(len(results))*100, 2)
	}
	return s
}

// GroupStats aggregates results sharing a location or category.
type GroupStats struct {
	Group           string  `json:"group"`
	Total           int     `json:"total"`
	NonMoving       int     `json:"non_moving"`
	OnHold          int     `json:"on_hold"`
	InventoryAtRisk float64 `json:"inventory_at_risk"`
	AvgRiskScore    float64 `json:"avg_risk_score"`
}

func ByLocation(results []domain.NonMovingResult) []GroupStats {
	return groupBy(results, func(r domain.NonMovingResult) string { return r.LocationID })
}

func ByCategory(results []domain.NonMovingResult) []GroupStats {
	return groupBy(results, func(r domain.NonMovingResult) string {
		if r.Category == domain.CategoryUnknown {
			return "Unknown"
		}
		return string(r.Category)
	})
}

func groupBy(results []domain.NonMovingResult, keyFn func(domain.NonMovingResult) string) []GroupStats {
	groups := make(map[string]*GroupStats)
	risk := make(map[string]float64)
	for _, r := range results {
		k := keyFn(r)
		g, ok := groups[k]
		if !ok {
			g = &GroupStats{Group: k}
			groups[k] = g
		}
		g.Total++
		switch r.MovementStatus {
		case domain.StatusNonMoving:
			g.NonMoving++
			g.InventoryAtRisk += r.CurrentInventory
		case domain.StatusOnHold:
			g.OnHold++
			g.InventoryAtRisk += r.CurrentInventory
		case domain.StatusActive:
		}
		risk[k] += r.RiskScore
	}

	out := make([]GroupStats, 0, len(groups))
	for k, g := range groups {
		g.AvgRiskScore = stats.Round(risk[k]/float64(g.Total), 2)
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Group < out[j].Group })
	return out
}

// HighRisk returns keys scoring at least minScore, riskiest first.
func HighRisk(results []domain.NonMovingResult, minScore float64) []domain.NonMovingResult {
	return filterSorted(results, func(r domain.NonMovingResult) bool { return r.RiskScore >= minScore })
}

func WithOpenPO(results []domain.NonMovingResult) []domain.NonMovingResult {
	return filterSorted(results, func(r domain.NonMovingResult) bool { return r.HasOpenPO })
}

// ForTransfer returns non-active keys with demand at another location.
func ForTransfer(results []domain.NonMovingResult) []domain.NonMovingResult {
	return filterSorted(results, func(r domain.NonMovingResult) bool {
		return hasAction(r, domain.ActionInterplantTransfer)
	})
}

// ForObsolete returns keys recommended for obsolescence marking or review.
func ForObsolete(results []domain.NonMovingResult) []domain.NonMovingResult {
	return filterSorted(results, func(r domain.NonMovingResult) bool {
		return hasAction(r, domain.ActionMarkObsolete)
	})
}

func filterSorted(results []domain.NonMovingResult, keep func(domain.NonMovingResult) bool) []domain.NonMovingResult {
	out := make([]domain.NonMovingResult, 0)
	for _, r := range results {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RiskScore > out[j].RiskScore })
	return out
}

func hasAction(r domain.NonMovingResult, kind domain.ActionKind) bool {
	for _, a := range r.RecommendedActions {
		if domain.ActionKindOf(a) == kind {
			return true
		}
	}
	return false
}

// JoinActions renders the action list as one line.
func JoinActions(actions []string) string {
	return strings.Join(actions, " | ")
}
