package scoring

import (
	"math"
	"time"

	"github.com/andresuchdata/invengine/internal/analytics/stats"
	"github.com/andresuchdata/invengine/internal/config"
	"github.com/andresuchdata/invengine/internal/domain"
)

const (
	deadStockWeeks = 52
	wosThreshold   = 26.0
)

var lifecycleScores = map[domain.Category]float64{
	domain.CategoryDeclining: 80,
	domain.CategorySlowMover: 60,
	domain.CategorySeasonal:  30,
	domain.CategoryNewLaunch: 20,
	domain.CategoryStaple:    10,
}

const unknownLifecycleScore = 25.0

var alertRecommendations = map[domain.RiskAlert]string{
	domain.AlertDemandSurge:   "Increase reorder quantity and review safety stock",
	domain.AlertDemandDrop:    "Reduce reorder quantities and pause open orders where possible",
	domain.AlertDeadStock:     "Evaluate for disposal, markdown or write-off",
	domain.AlertSlowMoving:    "Review pricing and promotions to speed up sell-through",
	domain.AlertShelfLifeRisk: "URGENT: clear inventory before expiry, consider markdowns",
	domain.AlertOverstock:     "Reduce incoming supply and consider stock transfers",
	domain.AlertUnderstock:    "Expedite replenishment orders",
}

const (
	recDiscontinuation = "Plan for SKU discontinuation"
	recSeasonalReview  = "Review seasonal patterns and adjust forecasts"
)

// Input is everything the scorer needs for one (item, location). Nil
// pointers mean the detector produced nothing or reference data is missing.
type Input struct {
	Key          domain.Key
	DemandShift  *domain.DemandShiftResult
	NonMoving    *domain.NonMovingResult
	Item         *domain.Item
	Policy       *domain.ReorderPolicy
	OnHand       float64
	AnalysisDate time.Time
}

// Scorer fuses the detector outputs into one weighted risk score.
type Scorer struct {
	cfg config.ScoringConfig
}

func NewScorer(cfg config.ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score is a pure function of its input.
func (s *Scorer) Score(in Input) domain.RiskScore {
	c := domain.ComponentScores{
		DemandShift: DemandShiftScore(in.DemandShift),
		NonMoving:   NonMovingScore(in.NonMoving, in.OnHand),
		ShelfLife:   ShelfLifeScore(in.Item, in.OnHand, in.AnalysisDate),
		Lifecycle:   LifecycleScore(in.Item),
		Inventory:   s.InventoryScore(in.OnHand, in.Policy, currentDemand(in.DemandShift)),
	}

	w := s.cfg.Weights
	overall := stats.Clamp(
		c.DemandShift*w.DemandShift+
			c.NonMoving*w.NonMoving+
			c.ShelfLife*w.ShelfLife+
			c.Lifecycle*w.Lifecycle+
			c.Inventory*w.Inventory,
		0, 100)
	overall = stats.Round(overall, 2)

	res := domain.RiskScore{
		ItemID:     in.Key.ItemID,
		LocationID: in.Key.LocationID,
		ComponentScores: domain.ComponentScores{
			DemandShift: stats.Round(c.DemandShift, 2),
			NonMoving:   stats.Round(c.NonMoving, 2),
			ShelfLife:   stats.Round(c.ShelfLife, 2),
			Lifecycle:   stats.Round(c.Lifecycle, 2),
			Inventory:   stats.Round(c.Inventory, 2),
		},
		OverallScore:      overall,
		RiskLevel:         Level(overall),
		PrimaryRiskFactor: PrimaryFactor(c),
		OnHandQty:         in.OnHand,
		StockPosition:     Position(in.OnHand, in.Policy),
	}
	if in.Item != nil {
		res.Category = in.Item.Category
	}

	direction := domain.DirectionStable
	if in.DemandShift != nil {
		direction = in.DemandShift.ShiftDirection
	}
	res.Alerts = Alerts(c, direction, res.StockPosition)
	res.Recommendations = Recommendations(res.Alerts, res.RiskLevel, res.Category)
	return res
}

// DemandShiftScore rates a detected shift; decreases weigh 1.2x.
func DemandShiftScore(r *domain.DemandShiftResult) float64 {
	if r == nil || !r.ShiftDetected {
		return 0
	}
	magnitude := math.Min(math.Abs(r.ShiftMagnitude)/100*50, 50)
	confidence := r.ConfidenceScore / 100 * 30

	multiplier := 1.0
	switch r.ShiftDirection {
	case domain.DirectionDecrease:
		multiplier = 1.2
	case domain.DirectionIncrease, domain.DirectionStable:
	}
	return stats.Clamp((magnitude+confidence)*multiplier, 0, 100)
}

// NonMovingScore maps the movement status onto a score. Stock that has been
// idle a full year counts as dead.
func NonMovingScore(r *domain.NonMovingResult, onHand float64) float64 {
	if r == nil || onHand <= 0 {
		return 0
	}
	switch r.MovementStatus {
	case domain.StatusNonMoving:
		if r.WeeksSinceMovement >= deadStockWeeks {
			return 100
		}
		return 75
	case domain.StatusOnHold:
		return 40
	case domain.StatusActive:
		if r.ThresholdWeeksUsed <= 0 {
			return 0
		}
		return math.Min(float64(r.WeeksSinceMovement)/float64(r.ThresholdWeeksUsed)*20, 20)
	}
	return 0
}

// ShelfLifeScore grades how much of the shelf life has elapsed since launch.
func ShelfLifeScore(item *domain.Item, onHand float64, asOf time.Time) float64 {
	if onHand <= 0 || item == nil || item.ShelfLifeDays <= 0 || item.LaunchDate == nil {
		return 0
	}
	days := math.Floor(asOf.Sub(*item.LaunchDate).Hours() / 24)
	consumed := days / float64(item.ShelfLifeDays)
	switch {
	case consumed >= 1:
		return 100
	case consumed >= 0.75:
		return 80
	case consumed >= 0.5:
		return 50
	case consumed >= 0.25:
		return 20
	default:
		return 0
	}
}

func LifecycleScore(item *domain.Item) float64 {
	if item == nil {
		return unknownLifecycleScore
	}
	score, ok := lifecycleScores[item.Category]
	if !ok {
		score = unknownLifecycleScore
	}
	if item.ObsoleteDate != nil {
		score = math.Min(score+20, 100)
	}
	return score
}

// InventoryScore combines overstock against the policy maximum with excess
// weeks of supply. Without current demand, weeks of supply is capped.
func (s *Scorer) InventoryScore(onHand float64, policy *domain.ReorderPolicy, demand float64) float64 {
	if onHand <= 0 {
		return 0
	}

	var overstock float64
	if policy != nil && onHand > policy.MaxQty {
		ratio := 1.0
		if policy.MaxQty > 0 {
			ratio = (onHand - policy.MaxQty) / policy.MaxQty
		}
		overstock = math.Min(ratio*50, 50)
	}

	wos := s.WeeksOfSupply(onHand, demand)
	var wosTerm float64
	if wos > wosThreshold {
		wosTerm = math.Min((wos-wosThreshold)/wosThreshold*50, 50)
	}

	return math.Min(overstock+wosTerm, 100)
}

// WeeksOfSupply divides stock by weekly demand, falling back to the
// configured cap when there is no demand.
func (s *Scorer) WeeksOfSupply(onHand, demand float64) float64 {
	if demand <= 0 {
		return s.cfg.MaxWeeksOfSupply
	}
	return onHand / demand
}

func currentDemand(r *domain.DemandShiftResult) float64 {
	if r == nil {
		return 0
	}
	return r.CurrentDemand
}

func Level(score float64) domain.RiskLevel {
	switch {
	case score >= 80:
		return domain.RiskCritical
	case score >= 60:
		return domain.RiskHigh
	case score >= 40:
		return domain.RiskMedium
	case score >= 20:
		return domain.RiskLow
	default:
		return domain.RiskMinimal
	}
}

// PrimaryFactor returns the highest component; ties go to the earlier
// factor in domain.RiskFactors.
func PrimaryFactor(c domain.ComponentScores) domain.RiskFactor {
	best := domain.RiskFactors[0]
	for _, f := range domain.RiskFactors[1:] {
		if c.Get(f) > c.Get(best) {
			best = f
		}
	}
	return best
}

// Position compares stock with the reorder policy.
func Position(onHand float64, policy *domain.ReorderPolicy) domain.StockPosition {
	switch {
	case policy == nil:
		return domain.PositionUnknown
	case onHand > policy.MaxQty:
		return domain.PositionOverstocked
	case onHand < policy.MinQty:
		return domain.PositionUnderstocked
	default:
		return domain.PositionOptimal
	}
}

func Alerts(c domain.ComponentScores, direction domain.ShiftDirection, pos domain.StockPosition) []domain.RiskAlert {
	alerts := make([]domain.RiskAlert, 0)

	if c.DemandShift >= 50 {
		switch direction {
		case domain.DirectionIncrease:
			alerts = append(alerts, domain.AlertDemandSurge)
		case domain.DirectionDecrease:
			alerts = append(alerts, domain.AlertDemandDrop)
		case domain.DirectionStable:
		}
	}

	switch {
	case c.NonMoving >= 75:
		alerts = append(alerts, domain.AlertDeadStock)
	case c.NonMoving >= 40:
		alerts = append(alerts, domain.AlertSlowMoving)
	}

	if c.ShelfLife >= 50 {
		alerts = append(alerts, domain.AlertShelfLifeRisk)
	}

	switch pos {
	case domain.PositionOverstocked:
		alerts = append(alerts, domain.AlertOverstock)
	case domain.PositionUnderstocked:
		alerts = append(alerts, domain.AlertUnderstock)
	case domain.PositionOptimal, domain.PositionUnknown:
	}
	return alerts
}

func Recommendations(alerts []domain.RiskAlert, level domain.RiskLevel, category domain.Category) []string {
	recs := make([]string, 0, len(alerts)+1)
	for _, a := range alerts {
		if r, ok := alertRecommendations[a]; ok {
			recs = append(recs, r)
		}
	}

	switch category {
	case domain.CategoryDeclining:
		if level == domain.RiskHigh || level == domain.RiskCritical {
			recs = append(recs, recDiscontinuation)
		}
	case domain.CategorySeasonal:
		recs = append(recs, recSeasonalReview)
	case domain.CategoryStaple, domain.CategoryNewLaunch, domain.CategorySlowMover, domain.CategoryUnknown:
	}
	return recs
}
