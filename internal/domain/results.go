package domain

import "time"

// DemandShiftResult is the demand shift verdict for one (item, location).
type DemandShiftResult struct {
	ItemID          string         `json:"item_id" db:"item_id"`
	LocationID      string         `json:"location_id" db:"location_id"`
	ShiftDetected   bool           `json:"shift_detected" db:"shift_detected"`
	ShiftType       ShiftType      `json:"shift_type,omitempty" db:"shift_type"`
	ShiftDirection  ShiftDirection `json:"shift_direction" db:"shift_direction"`
	ShiftMagnitude  float64        `json:"shift_magnitude" db:"shift_magnitude"`
	ConfidenceScore float64        `json:"confidence_score" db:"confidence_score"`
	BaselineDemand  float64        `json:"baseline_demand" db:"baseline_demand"`
	CurrentDemand   float64        `json:"current_demand" db:"current_demand"`

	CUSUMSignal       bool `json:"cusum_signal" db:"cusum_signal"`
	MACrossoverSignal bool `json:"ma_crossover_signal" db:"ma_crossover_signal"`
	ZScoreSignal      bool `json:"zscore_signal" db:"zscore_signal"`
	TrendChangeSignal bool `json:"trend_change_signal" db:"trend_change_signal"`

	AnomalyCount     int        `json:"anomaly_count" db:"anomaly_count"`
	TrendSlopeFirst  float64    `json:"trend_slope_first" db:"trend_slope_first"`
	TrendSlopeSecond float64    `json:"trend_slope_second" db:"trend_slope_second"`
	DataPoints       int        `json:"data_points" db:"data_points"`
	DetectionDate    *time.Time `json:"detection_date,omitempty" db:"detection_date"`
	Reason           string     `json:"reason,omitempty" db:"reason"`
}

func (r DemandShiftResult) Key() Key { return Key{ItemID: r.ItemID, LocationID: r.LocationID} }

// SignalCount is the number of detection signals that fired.
func (r DemandShiftResult) SignalCount() int {
	n := 0
	for _, s := range []bool{r.CUSUMSignal, r.MACrossoverSignal, r.ZScoreSignal, r.TrendChangeSignal} {
		if s {
			n++
		}
	}
	return n
}

// NonMovingResult is the movement classification for one (item, location).
type NonMovingResult struct {
	ItemID             string         `json:"item_id" db:"item_id"`
	LocationID         string         `json:"location_id" db:"location_id"`
	WeeksSinceMovement int            `json:"weeks_since_movement" db:"weeks_since_movement"`
	WeeksSinceSale     int            `json:"weeks_since_sale" db:"weeks_since_sale"`
	WeeksSinceReceipt  int            `json:"weeks_since_receipt" db:"weeks_since_receipt"`
	LastSaleWeek       *time.Time     `json:"last_sale_week,omitempty" db:"last_sale_week"`
	LastReceiptWeek    *time.Time     `json:"last_receipt_week,omitempty" db:"last_receipt_week"`
	MovementStatus     MovementStatus `json:"movement_status" db:"movement_status"`
	HasOpenPO          bool           `json:"has_open_po" db:"has_open_po"`
	OpenPOQty          float64        `json:"open_po_qty" db:"open_po_qty"`
	OpenPOCount        int            `json:"open_po_count" db:"open_po_count"`
	CurrentInventory   float64        `json:"current_inventory" db:"current_inventory"`
	Category           Category       `json:"category,omitempty" db:"category"`
	ShelfLifeAtRisk    bool           `json:"shelf_life_at_risk" db:"shelf_life_at_risk"`
	RiskScore          float64        `json:"risk_score" db:"risk_score"`
	RecommendedActions []string       `json:"recommended_actions" db:"recommended_actions"`
	ThresholdWeeksUsed int            `json:"threshold_weeks_used" db:"threshold_weeks_used"`
	TotalQtySold       float64        `json:"total_qty_sold" db:"total_qty_sold"`
}

func (r NonMovingResult) Key() Key { return Key{ItemID: r.ItemID, LocationID: r.LocationID} }

// SegmentationResult is the ABC-XYZ class of an item within one scope.
type SegmentationResult struct {
	ItemID         string   `json:"item_id" db:"item_id"`
	LocationID     string   `json:"location_id" db:"location_id"`
	ABCClass       ABCClass `json:"abc_class" db:"abc_class"`
	XYZClass       XYZClass `json:"xyz_class" db:"xyz_class"`
	Segment        Segment  `json:"segment" db:"segment"`
	TotalQty       float64  `json:"total_qty" db:"total_qty"`
	AvgQty         float64  `json:"avg_qty" db:"avg_qty"`
	StdQty         float64  `json:"std_qty" db:"std_qty"`
	CV             float64  `json:"cv" db:"cv"`
	WeeksWithData  int      `json:"weeks_with_data" db:"weeks_with_data"`
	WeeksWithSales int      `json:"weeks_with_sales" db:"weeks_with_sales"`
	VolumePct      float64  `json:"volume_pct" db:"volume_pct"`
	CumulativePct  float64  `json:"cumulative_pct" db:"cumulative_pct"`
}

// ComponentScores are the five risk components, each in [0, 100].
type ComponentScores struct {
	DemandShift float64 `json:"demand_shift_score" db:"demand_shift_score"`
	NonMoving   float64 `json:"non_moving_score" db:"non_moving_score"`
	ShelfLife   float64 `json:"shelf_life_score" db:"shelf_life_score"`
	Lifecycle   float64 `json:"lifecycle_score" db:"lifecycle_score"`
	Inventory   float64 `json:"inventory_score" db:"inventory_score"`
}

// Get returns the score of one factor.
func (c ComponentScores) Get(f RiskFactor) float64 {
	switch f {
	case FactorDemandShift:
		return c.DemandShift
	case FactorNonMoving:
		return c.NonMoving
	case FactorShelfLife:
		return c.ShelfLife
	case FactorLifecycle:
		return c.Lifecycle
	case FactorInventory:
		return c.Inventory
	}
	return 0
}

// RiskScore is the fused risk assessment for one (item, location).
type RiskScore struct {
	ItemID     string `json:"item_id" db:"item_id"`
	LocationID string `json:"location_id" db:"location_id"`
	ComponentScores
	OverallScore      float64       `json:"overall_score" db:"overall_score"`
	RiskLevel         RiskLevel     `json:"risk_level" db:"risk_level"`
	PrimaryRiskFactor RiskFactor    `json:"primary_risk_factor" db:"primary_risk_factor"`
	OnHandQty         float64       `json:"on_hand_qty" db:"on_hand_qty"`
	Category          Category      `json:"category,omitempty" db:"category"`
	StockPosition     StockPosition `json:"stock_position" db:"stock_position"`
	Alerts            []RiskAlert   `json:"alerts" db:"alerts"`
	Recommendations   []string      `json:"recommendations" db:"recommendations"`
}

func (r RiskScore) Key() Key { return Key{ItemID: r.ItemID, LocationID: r.LocationID} }

// HasAlert reports whether a scoring alert fired.
func (r RiskScore) HasAlert(a RiskAlert) bool {
	for _, x := range r.Alerts {
		if x == a {
			return true
		}
	}
	return false
}
