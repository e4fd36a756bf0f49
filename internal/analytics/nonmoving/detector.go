package nonmoving

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/invengine/internal/config"
	"github.com/andresuchdata/invengine/internal/dataset"
	"github.com/andresuchdata/invengine/internal/domain"
)

// NoActivityWeeks stands in for "never" when a key has no sale or receipt.
const NoActivityWeeks = 9999

const (
	shelfLifeRiskShare = 0.5
	maxRiskScore       = 100.0
)

// Detector classifies each (item, location) as active, non_moving or on_hold
// and proposes remediation actions.
type Detector struct {
	cfg config.NonMovingConfig
}

func NewDetector(cfg config.NonMovingConfig) *Detector {
	return &Detector{cfg: cfg}
}

// Options fixes the analysis date and inactivity threshold for one run.
type Options struct {
	AnalysisDate   time.Time
	ThresholdWeeks int
}

// Resolve fills unset options: the analysis date defaults to the latest
// sales week and the threshold to the configured one. The date is truncated
// to midnight UTC.
func (d *Detector) Resolve(ds *dataset.Dataset, opts Options) (Options, error) {
	if opts.AnalysisDate.IsZero() {
		opts.AnalysisDate = ds.LatestWeek()
	}
	// weeks in the dataset are whole UTC days
	y, m, day := opts.AnalysisDate.Date()
	opts.AnalysisDate = time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	if opts.ThresholdWeeks == 0 {
		opts.ThresholdWeeks = d.cfg.ThresholdWeeks
	}
	if !config.ValidThresholdWeeks(opts.ThresholdWeeks) {
		return opts, fmt.Errorf("%w: got %d", config.ErrInvalidThresholdWeeks, opts.ThresholdWeeks)
	}
	return opts, nil
}

// Detect classifies one key. opts must already be resolved.
func (d *Detector) Detect(ds *dataset.Dataset, key domain.Key, opts Options) domain.NonMovingResult {
	asOf := opts.AnalysisDate
	series := ds.Series(key)

	res := domain.NonMovingResult{
		ItemID:             key.ItemID,
		LocationID:         key.LocationID,
		WeeksSinceSale:     NoActivityWeeks,
		WeeksSinceReceipt:  NoActivityWeeks,
		CurrentInventory:   ds.CurrentOnHand(key),
		ThresholdWeeksUsed: opts.ThresholdWeeks,
	}

	// 1. Last activity
	for _, p := range series {
		res.TotalQtySold += p.QtySold
		if p.QtySold > 0 && !p.WeekEnding.After(asOf) {
			w := p.WeekEnding
			res.LastSaleWeek = &w
		}
	}
	if res.LastSaleWeek != nil {
		res.WeeksSinceSale = weeksBetween(*res.LastSaleWeek, asOf)
	}
	if rw, ok := ds.LastReceipt(key); ok && !rw.After(asOf) {
		res.LastReceiptWeek = &rw
		res.WeeksSinceReceipt = weeksBetween(rw, asOf)
	}
	res.WeeksSinceMovement = min(res.WeeksSinceSale, res.WeeksSinceReceipt)

	// 2. Open purchase orders
	for _, po := range ds.PurchaseOrders(key) {
		if po.IsOpen(asOf) {
			res.HasOpenPO = true
			res.OpenPOQty += po.QtyOrdered
			res.OpenPOCount++
		}
	}

	// 3. Status
	res.MovementStatus = Classify(res.WeeksSinceMovement, opts.ThresholdWeeks, res.HasOpenPO)

	// 4. Item attributes
	item, hasItem := ds.Item(key.ItemID)
	if hasItem {
		res.Category = item.Category
		res.ShelfLifeAtRisk = item.ShelfLifeDays > 0 &&
			float64(res.WeeksSinceMovement*7) > float64(item.ShelfLifeDays)*shelfLifeRiskShare &&
			res.CurrentInventory > 0
	}

	// 5. Actions and risk
	res.RecommendedActions = d.actions(ds, key, res, opts)
	res.RiskScore = RiskScore(res)

	return res
}

// Classify applies the movement transition rule.
func Classify(weeksSinceMovement, thresholdWeeks int, hasOpenPO bool) domain.MovementStatus {
	switch {
	case weeksSinceMovement < thresholdWeeks:
		return domain.StatusActive
	case hasOpenPO:
		return domain.StatusOnHold
	default:
		return domain.StatusNonMoving
	}
}

type forecastCheck struct {
	isZero bool
	total  float64
}

func (d *Detector) checkForecast(ds *dataset.Dataset, key domain.Key, asOf time.Time) forecastCheck {
	horizon := asOf.AddDate(0, 0, 7*d.cfg.ForecastWeeksAhead)
	var total float64
	for _, f := range ds.Forecasts(key) {
		if f.WeekEnding.Before(asOf) || f.WeekEnding.After(horizon) {
			continue
		}
		total += f.ForecastQty
	}
	return forecastCheck{isZero: total == 0, total: total}
}

type interplantCheck struct {
	locations []string
	totalQty  float64
}

// checkInterplant looks for other locations that sold the item recently
// enough to absorb a transfer.
func checkInterplant(ds *dataset.Dataset, key domain.Key, thresholdWeeks int) interplantCheck {
	cutoff := ds.LatestWeek().AddDate(0, 0, -7*thresholdWeeks)

	var out interplantCheck
	for _, other := range ds.ItemKeys(key.ItemID) {
		if other.LocationID == key.LocationID {
			continue
		}
		var lastSale time.Time
		var sold float64
		for _, p := range ds.Series(other) {
			if p.QtySold > 0 {
				sold += p.QtySold
				lastSale = p.WeekEnding
			}
		}
		if lastSale.IsZero() || lastSale.Before(cutoff) {
			continue
		}
		out.locations = append(out.locations, other.LocationID)
		out.totalQty += sold
	}
	return out
}

func (d *Detector) actions(ds *dataset.Dataset, key domain.Key, res domain.NonMovingResult, opts Options) []string {
	switch res.MovementStatus {
	case domain.StatusActive:
		return []string{string(domain.ActionMonitor)}
	case domain.StatusNonMoving, domain.StatusOnHold:
	}

	var actions []string

	fc := d.checkForecast(ds, key, opts.AnalysisDate)
	if fc.isZero {
		actions = append(actions, domain.FormatAction(domain.ActionCheckForecast,
			fmt.Sprintf("forecast is zero for the next %d weeks, review for discontinuation", d.cfg.ForecastWeeksAhead)))
	} else {
		actions = append(actions, domain.FormatAction(domain.ActionCheckForecast,
			fmt.Sprintf("forecast of %s units over the next %d weeks, review demand pattern", formatQty(fc.total), d.cfg.ForecastWeeksAhead)))
	}

	if ip := checkInterplant(ds, key, opts.ThresholdWeeks); len(ip.locations) > 0 {
		actions = append(actions, domain.FormatAction(domain.ActionInterplantTransfer,
			fmt.Sprintf("demand at %s (%s units)", strings.Join(ip.locations, ", "), formatQty(ip.totalQty))))
	}

	if res.CurrentInventory > 0 {
		actions = append(actions, domain.FormatAction(domain.ActionSalesStrategy,
			fmt.Sprintf("run promotion or discount to clear %s units", formatQty(res.CurrentInventory))))
	}

	if fc.isZero {
		switch weeks := res.WeeksSinceMovement; {
		case weeks >= d.cfg.ObsoleteWeeks:
			actions = append(actions, domain.FormatAction(domain.ActionMarkObsolete,
				fmt.Sprintf("%s and zero forecast, mark obsolete", describeInactivity(weeks))))
		case weeks >= d.cfg.ReviewWeeks:
			actions = append(actions, domain.FormatAction(domain.ActionMarkObsolete,
				fmt.Sprintf("%s and zero forecast, review for obsolescence", describeInactivity(weeks))))
		}
	}

	if len(actions) == 0 {
		return []string{string(domain.ActionMonitor)}
	}
	return actions
}

// RiskScore rates how urgently a non-moving key needs attention. Active keys
// score zero.
func RiskScore(res domain.NonMovingResult) float64 {
	var score float64
	switch res.MovementStatus {
	case domain.StatusActive:
		return 0
	case domain.StatusOnHold:
		score += 10
	case domain.StatusNonMoving:
		score += 20
	}

	switch w := res.WeeksSinceMovement; {
	case w >= 52:
		score += 40
	case w >= 26:
		score += 30
	case w >= 12:
		score += 20
	}

	if res.CurrentInventory > 0 {
		score += 30
	}

	switch res.Category {
	case domain.CategoryDeclining:
		score += 10
	case domain.CategorySlowMover:
		score += 5
	case domain.CategoryStaple, domain.CategorySeasonal, domain.CategoryNewLaunch, domain.CategoryUnknown:
	}

	return math.Min(score, maxRiskScore)
}

func weeksBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24 / 7)
}

func formatQty(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

func describeInactivity(w int) string {
	if w >= NoActivityWeeks {
		return "no recorded activity"
	}
	return "inactive " + strconv.Itoa(w) + " weeks"
}
