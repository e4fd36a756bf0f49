package alerts

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Priority string

const (
	PriorityCritical Priority = "P1_CRITICAL"
	PriorityHigh     Priority = "P2_HIGH"
	PriorityMedium   Priority = "P3_MEDIUM"
	PriorityLow      Priority = "P4_LOW"
	PriorityInfo     Priority = "P5_INFO"
)

// Priorities lists every priority, most urgent first.
var Priorities = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow, PriorityInfo}

// Rank orders priorities; lower is more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	case PriorityInfo:
		return 4
	}
	return len(Priorities)
}

func ParsePriority(label string) (Priority, bool) {
	p := Priority(strings.ToUpper(strings.TrimSpace(label)))
	for _, known := range Priorities {
		if p == known {
			return p, true
		}
	}
	return "", false
}

// PriorityFromScore buckets a 0-100 score.
func PriorityFromScore(score float64) Priority {
	switch {
	case score >= 80:
		return PriorityCritical
	case score >= 60:
		return PriorityHigh
	case score >= 40:
		return PriorityMedium
	case score >= 20:
		return PriorityLow
	default:
		return PriorityInfo
	}
}

type Category string

const (
	CategoryDemandShift   Category = "demand_shift"
	CategoryInventoryRisk Category = "inventory_risk"
	CategoryShelfLife     Category = "shelf_life"
	CategorySupplyRisk    Category = "supply_risk"
	CategoryOptimization  Category = "optimization"
)

// Alert is one actionable notification for an (item, location).
type Alert struct {
	AlertID         string         `json:"alert_id" db:"alert_id"`
	ItemID          string         `json:"item_id" db:"item_id"`
	LocationID      string         `json:"location_id" db:"location_id"`
	Priority        Priority       `json:"priority" db:"priority"`
	Category        Category       `json:"category" db:"category"`
	Title           string         `json:"title" db:"title"`
	Description     string         `json:"description" db:"description"`
	RiskScore       float64        `json:"risk_score" db:"risk_score"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	Metadata        map[string]any `json:"metadata,omitempty" db:"-"`
	Recommendations []string       `json:"recommendations" db:"recommendations"`
}

func newAlertID(now time.Time) string {
	return fmt.Sprintf("ALT-%s-%s", now.Format("20060102150405"), uuid.NewString()[:8])
}
