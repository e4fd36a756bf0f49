package segmentation

import (
	"sort"

	"github.com/andresuchdata/invengine/internal/analytics/stats"
	"github.com/andresuchdata/invengine/internal/domain"
)

// SegmentProfile is the planning guidance attached to a segment.
type SegmentProfile struct {
	Segment         domain.Segment `json:"segment"`
	Priority        string         `json:"priority"`
	ReorderStrategy string         `json:"reorder_strategy"`
	ForecastMethod  string         `json:"forecast_method"`
	InventoryPolicy string         `json:"inventory_policy"`
	Attention       string         `json:"attention"`
}

var profiles = map[domain.Segment]SegmentProfile{
	"AX": {
		Priority:        "Critical",
		ReorderStrategy: "Continuous review with tight safety stock",
		ForecastMethod:  "Advanced time-series (high accuracy needed)",
		InventoryPolicy: "Low safety stock, frequent replenishment",
		Attention:       "High - revenue drivers with predictable demand",
	},
	"AY": {
		Priority:        "High",
		ReorderStrategy: "Periodic review with moderate safety stock",
		ForecastMethod:  "Statistical methods with demand sensing",
		InventoryPolicy: "Moderate safety stock",
		Attention:       "High - revenue drivers with some variability",
	},
	"AZ": {
		Priority:        "High",
		ReorderStrategy: "Careful management, higher safety stock",
		ForecastMethod:  "Collaborative forecasting",
		InventoryPolicy: "Higher safety stock or supplier flexibility",
		Attention:       "High - revenue drivers but unpredictable",
	},
	"BX": {
		Priority:        "Medium",
		ReorderStrategy: "Periodic review",
		ForecastMethod:  "Simple statistical methods",
		InventoryPolicy: "Standard safety stock",
		Attention:       "Medium - stable moderate movers",
	},
	"BY": {
		Priority:        "Medium",
		ReorderStrategy: "Periodic review with some buffer",
		ForecastMethod:  "Moving averages",
		InventoryPolicy: "Moderate safety stock",
		Attention:       "Medium - typical B items",
	},
	"BZ": {
		Priority:        "Medium-Low",
		ReorderStrategy: "Higher reorder points",
		ForecastMethod:  "Simple methods, focus on safety stock",
		InventoryPolicy: "Higher safety stock",
		Attention:       "Medium - erratic B items need buffer",
	},
	"CX": {
		Priority:        "Low",
		ReorderStrategy: "Simple min-max or kanban",
		ForecastMethod:  "Simple average",
		InventoryPolicy: "Minimal investment",
		Attention:       "Low - stable but low volume",
	},
	"CY": {
		Priority:        "Low",
		ReorderStrategy: "Larger lot sizes, less frequent orders",
		ForecastMethod:  "Simple methods",
		InventoryPolicy: "Balance carrying cost vs ordering",
		Attention:       "Low - review for rationalization",
	},
	"CZ": {
		Priority:        "Minimal",
		ReorderStrategy: "Make to order or discontinue",
		ForecastMethod:  "Not recommended - order based",
		InventoryPolicy: "Consider not stocking",
		Attention:       "Review for discontinuation",
	},
}

// Profile looks up the planning guidance for a segment.
func Profile(seg domain.Segment) (SegmentProfile, bool) {
	p, ok := profiles[seg]
	if !ok {
		return SegmentProfile{}, false
	}
	p.Segment = seg
	return p, true
}

// Profiles returns all nine profiles in AX..CZ order.
func Profiles() []SegmentProfile {
	out := make([]SegmentProfile, 0, len(profiles))
	for _, abc := range domain.ABCClasses {
		for _, xyz := range domain.XYZClasses {
			p, _ := Profile(domain.NewSegment(abc, xyz))
			out = append(out, p)
		}
	}
	return out
}

// SegmentStats summarises one segment.
type SegmentStats struct {
	Segment     domain.Segment `json:"segment"`
	SKUCount    int            `json:"sku_count"`
	TotalVolume float64        `json:"total_volume"`
	AvgDemand   float64        `json:"avg_demand"`
	AvgCV       float64        `json:"avg_cv"`
	SKUPct      float64        `json:"sku_pct"`
	VolumePct   float64        `json:"volume_pct"`
}

// Summary groups results by segment, sorted by segment label.
func Summary(results []domain.SegmentationResult) []SegmentStats {
	if len(results) == 0 {
		return nil
	}

	bySeg := make(map[domain.Segment]*SegmentStats)
	var totalVolume float64
	for _, r := range results {
		s, ok := bySeg[r.Segment]
		if !ok {
			s = &SegmentStats{Segment: r.Segment}
			bySeg[r.Segment] = s
		}
		s.SKUCount++
		s.TotalVolume += r.TotalQty
		s.AvgDemand += r.AvgQty
		s.AvgCV += r.CV
		totalVolume += r.TotalQty
	}

	out := make([]SegmentStats, 0, len(bySeg))
	for _, s := range bySeg {
		n := float64(s.SKUCount)
		s.AvgDemand = stats.Round(s.AvgDemand/n, 2)
		s.AvgCV = stats.Round(s.AvgCV/n, 4)
		s.SKUPct = stats.Round(n/float64(len(results))*100, 2)
		if totalVolume > 0 {
			s.VolumePct = stats.Round(s.TotalVolume/totalVolume*100, 2)
		}
		s.TotalVolume = stats.Round(s.TotalVolume, 2)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Segment < out[j].Segment })
	return out
}

// Matrix is an ABC by XYZ count grid, rows A..C and columns X..Z.
type Matrix [3][3]int

// BuildMatrix counts results into the ABC-XYZ grid.
func BuildMatrix(results []domain.SegmentationResult) Matrix {
	var m Matrix
	for _, r := range results {
		m[abcIndex(r.ABCClass)][xyzIndex(r.XYZClass)]++
	}
	return m
}

// Total is the number of classified results.
func (m Matrix) Total() int {
	var n int
	for _, row := range m {
		for _, c := range row {
			n += c
		}
	}
	return n
}

func abcIndex(c domain.ABCClass) int {
	switch c {
	case domain.ClassA:
		return 0
	case domain.ClassB:
		return 1
	case domain.ClassC:
		return 2
	}
	return 2
}

func xyzIndex(c domain.XYZClass) int {
	switch c {
	case domain.ClassX:
		return 0
	case domain.ClassY:
		return 1
	case domain.ClassZ:
		return 2
	}
	return 2
}
