package domain

import (
	"fmt"
	"strings"
)

// Category is the product lifecycle category of an item.
type Category string

const (
	CategoryDeclining Category = "Declining"
	CategoryStaple    Category = "Staple"
	CategorySeasonal  Category = "Seasonal"
	CategoryNewLaunch Category = "NewLaunch"
	CategorySlowMover Category = "SlowMover"
	// CategoryUnknown marks keys with no item master row.
	CategoryUnknown Category = ""
)

var categoryCodes = map[string]Category{
	"declining":  CategoryDeclining,
	"staple":     CategoryStaple,
	"seasonal":   CategorySeasonal,
	"newlaunch":  CategoryNewLaunch,
	"new_launch": CategoryNewLaunch,
	"new launch": CategoryNewLaunch,
	"slowmover":  CategorySlowMover,
	"slow_mover": CategorySlowMover,
	"slow mover": CategorySlowMover,
}

// ParseCategory returns the category for a label (case-insensitive).
func ParseCategory(label string) (Category, error) {
	if c, ok := categoryCodes[strings.ToLower(strings.TrimSpace(label))]; ok {
		return c, nil
	}
	return CategoryUnknown, fmt.Errorf("unknown category %q", label)
}

// ShiftDirection is the sign of a detected demand change.
type ShiftDirection string

const (
	DirectionIncrease ShiftDirection = "increase"
	DirectionDecrease ShiftDirection = "decrease"
	DirectionStable   ShiftDirection = "stable"
)

// ShiftType classifies a detected demand shift.
type ShiftType string

const (
	ShiftNone        ShiftType = ""
	ShiftSustained   ShiftType = "sustained"
	ShiftSpike       ShiftType = "spike"
	ShiftDrop        ShiftType = "drop"
	ShiftTrendChange ShiftType = "trend_change"
)

// MovementStatus is the state of an (item, location) in the non-moving
// state machine.
type MovementStatus string

const (
	StatusActive    MovementStatus = "active"
	StatusNonMoving MovementStatus = "non_moving"
	StatusOnHold    MovementStatus = "on_hold"
)

var movementStatusCodes = map[string]MovementStatus{
	"active":     StatusActive,
	"non_moving": StatusNonMoving,
	"on_hold":    StatusOnHold,
}

func ParseMovementStatus(label string) (MovementStatus, bool) {
	s, ok := movementStatusCodes[strings.ToLower(strings.TrimSpace(label))]
	return s, ok
}

type ABCClass string

const (
	ClassA ABCClass = "A"
	ClassB ABCClass = "B"
	ClassC ABCClass = "C"
)

type XYZClass string

const (
	ClassX XYZClass = "X"
	ClassY XYZClass = "Y"
	ClassZ XYZClass = "Z"
)

var (
	ABCClasses = []ABCClass{ClassA, ClassB, ClassC}
	XYZClasses = []XYZClass{ClassX, ClassY, ClassZ}
)

// Segment is the two-letter ABC-XYZ label, e.g. "AX".
type Segment string

func NewSegment(abc ABCClass, xyz XYZClass) Segment {
	return Segment(string(abc) + string(xyz))
}

// ParseSegment validates a two-letter segment label.
func ParseSegment(label string) (Segment, error) {
	label = strings.ToUpper(strings.TrimSpace(label))
	if len(label) != 2 {
		return "", fmt.Errorf("invalid segment %q", label)
	}
	abc, xyz := ABCClass(label[:1]), XYZClass(label[1:])
	switch abc {
	case ClassA, ClassB, ClassC:
	default:
		return "", fmt.Errorf("invalid abc class in segment %q", label)
	}
	switch xyz {
	case ClassX, ClassY, ClassZ:
	default:
		return "", fmt.Errorf("invalid xyz class in segment %q", label)
	}
	return NewSegment(abc, xyz), nil
}

type RiskLevel string

const (
	RiskCritical RiskLevel = "critical"
	RiskHigh     RiskLevel = "high"
	RiskMedium   RiskLevel = "medium"
	RiskLow      RiskLevel = "low"
	RiskMinimal  RiskLevel = "minimal"
)

var RiskLevels = []RiskLevel{RiskCritical, RiskHigh, RiskMedium, RiskLow, RiskMinimal}

func ParseRiskLevel(label string) (RiskLevel, bool) {
	l := RiskLevel(strings.ToLower(strings.TrimSpace(label)))
	for _, known := range RiskLevels {
		if l == known {
			return l, true
		}
	}
	return "", false
}

// RiskFactor names one of the five scoring components.
type RiskFactor string

const (
	FactorDemandShift RiskFactor = "demand_shift"
	FactorNonMoving   RiskFactor = "non_moving"
	FactorShelfLife   RiskFactor = "shelf_life"
	FactorLifecycle   RiskFactor = "lifecycle"
	FactorInventory   RiskFactor = "inventory"
)

// RiskFactors is the tie-break order for the primary risk factor.
var RiskFactors = []RiskFactor{FactorDemandShift, FactorNonMoving, FactorShelfLife, FactorLifecycle, FactorInventory}

type StockPosition string

const (
	PositionOverstocked  StockPosition = "overstocked"
	PositionUnderstocked StockPosition = "understocked"
	PositionOptimal      StockPosition = "optimal"
	PositionUnknown      StockPosition = "unknown"
)

// RiskAlert is a threshold rule that fired during scoring.
type RiskAlert string

const (
	AlertDemandSurge   RiskAlert = "demand_surge"
	AlertDemandDrop    RiskAlert = "demand_drop"
	AlertDeadStock     RiskAlert = "dead_stock"
	AlertSlowMoving    RiskAlert = "slow_moving"
	AlertShelfLifeRisk RiskAlert = "shelf_life_risk"
	AlertOverstock     RiskAlert = "overstock"
	AlertUnderstock    RiskAlert = "understock"
)

// ActionKind prefixes each recommended action of the non-moving detector.
type ActionKind string

const (
	ActionMonitor            ActionKind = "monitor"
	ActionCheckForecast      ActionKind = "check_forecast"
	ActionInterplantTransfer ActionKind = "interplant_transfer"
	ActionSalesStrategy      ActionKind = "sales_strategy"
	ActionMarkObsolete       ActionKind = "mark_obsolete"
)

// FormatAction renders an action as "kind: detail", or just the kind when
// there is no detail.
func FormatAction(kind ActionKind, detail string) string {
	if detail == "" {
		return string(kind)
	}
	return string(kind) + ": " + detail
}

// ActionKindOf extracts the kind prefix of a formatted action.
func ActionKindOf(action string) ActionKind {
	if i := strings.Index(action, ":"); i >= 0 {
		return ActionKind(action[:i])
	}
	return ActionKind(action)
}
