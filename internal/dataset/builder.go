package dataset

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/andresuchdata/invengine/internal/domain"
)

// Builder merges the raw input tables into a Dataset: one point per
// (item, location, week) taken from sales, with on-hand and forecast
// quantities joined on the same week.
type Builder struct {
	points    []domain.TimeSeriesPoint
	sales     []domain.SalesRecord
	inventory []domain.InventoryRecord
	forecasts []domain.Forecast
	items     []domain.Item
	policies  []domain.ReorderPolicy
	orders    []domain.PurchaseOrder
	receipts  []domain.Receipt
}

func NewBuilder() *Builder {
	return &Builder{}
}

// AddPoints adds rows that are already merged.
func (b *Builder) AddPoints(points ...domain.TimeSeriesPoint) *Builder {
	b.points = append(b.points, points...)
	return b
}

func (b *Builder) AddSales(records ...domain.SalesRecord) *Builder {
	b.sales = append(b.sales, records...)
	return b
}

func (b *Builder) AddInventory(records ...domain.InventoryRecord) *Builder {
	b.inventory = append(b.inventory, records...)
	return b
}

func (b *Builder) AddForecasts(records ...domain.Forecast) *Builder {
	b.forecasts = append(b.forecasts, records...)
	return b
}

func (b *Builder) AddItems(items ...domain.Item) *Builder {
	b.items = append(b.items, items...)
	return b
}

func (b *Builder) AddPolicies(policies ...domain.ReorderPolicy) *Builder {
	b.policies = append(b.policies, policies...)
	return b
}

func (b *Builder) AddPurchaseOrders(orders ...domain.PurchaseOrder) *Builder {
	b.orders = append(b.orders, orders...)
	return b
}

func (b *Builder) AddReceipts(receipts ...domain.Receipt) *Builder {
	b.receipts = append(b.receipts, receipts...)
	return b
}

type weekKey struct {
	key  domain.Key
	week time.Time
}

func newWeekKey(itemID, locationID string, week time.Time) weekKey {
	return weekKey{
		key:  domain.Key{ItemID: itemID, LocationID: locationID},
		week: truncateDay(week),
	}
}

// Build validates and indexes the accumulated tables.
func (b *Builder) Build() (*Dataset, error) {
	onHandByWeek := make(map[weekKey]float64, len(b.inventory))
	var latestInventory time.Time
	for _, rec := range b.inventory {
		if err := checkRow(rec.ItemID, rec.LocationID, rec.WeekEnding, rec.OnHandQty); err != nil {
			return nil, fmt.Errorf("inventory: %w", err)
		}
		wk := newWeekKey(rec.ItemID, rec.LocationID, rec.WeekEnding)
		if _, dup := onHandByWeek[wk]; dup {
			return nil, fmt.Errorf("inventory %s %s: %w", wk.key, wk.week.Format(dateLayout), ErrDuplicatePoint)
		}
		onHandByWeek[wk] = rec.OnHandQty
		if wk.week.After(latestInventory) {
			latestInventory = wk.week
		}
	}

	forecastByWeek := make(map[weekKey]float64, len(b.forecasts))
	forecasts := make(map[domain.Key][]domain.Forecast)
	for _, f := range b.forecasts {
		if err := checkRow(f.ItemID, f.LocationID, f.WeekEnding, f.ForecastQty); err != nil {
			return nil, fmt.Errorf("forecast: %w", err)
		}
		wk := newWeekKey(f.ItemID, f.LocationID, f.WeekEnding)
		forecastByWeek[wk] += f.ForecastQty
		f.WeekEnding = wk.week
		forecasts[wk.key] = append(forecasts[wk.key], f)
	}

	seen := make(map[weekKey]struct{}, len(b.sales)+len(b.points))
	series := make(map[domain.Key][]domain.TimeSeriesPoint)
	addPoint := func(p domain.TimeSeriesPoint) error {
		wk := newWeekKey(p.ItemID, p.LocationID, p.WeekEnding)
		if _, dup := seen[wk]; dup {
			return fmt.Errorf("%s %s: %w", wk.key, wk.week.Format(dateLayout), ErrDuplicatePoint)
		}
		seen[wk] = struct{}{}
		p.WeekEnding = wk.week
		series[wk.key] = append(series[wk.key], p)
		return nil
	}

	for _, p := range b.points {
		if err := checkRow(p.ItemID, p.LocationID, p.WeekEnding, p.QtySold); err != nil {
			return nil, fmt.Errorf("time series: %w", err)
		}
		if err := addPoint(p); err != nil {
			return nil, err
		}
		// Pre-merged rows double as inventory snapshots.
		wk := newWeekKey(p.ItemID, p.LocationID, p.WeekEnding)
		if _, ok := onHandByWeek[wk]; !ok {
			onHandByWeek[wk] = p.OnHandQty
			if wk.week.After(latestInventory) {
				latestInventory = wk.week
			}
		}
	}

	for _, s := range b.sales {
		if err := checkRow(s.ItemID, s.LocationID, s.WeekEnding, s.QtySold); err != nil {
			return nil, fmt.Errorf("sales: %w", err)
		}
		wk := newWeekKey(s.ItemID, s.LocationID, s.WeekEnding)
		p := domain.TimeSeriesPoint{
			ItemID:      s.ItemID,
			LocationID:  s.LocationID,
			WeekEnding:  wk.week,
			QtySold:     s.QtySold,
			OnHandQty:   onHandByWeek[wk],
			ForecastQty: forecastByWeek[wk],
		}
		if err := addPoint(p); err != nil {
			return nil, err
		}
	}

	ds := &Dataset{
		series:    series,
		items:     make(map[string]domain.Item, len(b.items)),
		policies:  make(map[domain.Key]domain.ReorderPolicy, len(b.policies)),
		orders:    make(map[domain.Key][]domain.PurchaseOrder),
		forecasts: forecasts,
		receipts:  make(map[domain.Key]time.Time, len(b.receipts)),
		onHand:    make(map[domain.Key]float64),
		byItem:    make(map[string][]domain.Key),
	}

	locations := make(map[string]struct{})
	for k, pts := range series {
		sort.Slice(pts, func(i, j int) bool { return pts[i].WeekEnding.Before(pts[j].WeekEnding) })
		ds.keys = append(ds.keys, k)
		locations[k.LocationID] = struct{}{}

		first, last := pts[0].WeekEnding, pts[len(pts)-1].WeekEnding
		if ds.firstWeek.IsZero() || first.Before(ds.firstWeek) {
			ds.firstWeek = first
		}
		if last.After(ds.latestWeek) {
			ds.latestWeek = last
		}
	}
	sortKeys(ds.keys)
	for _, k := range ds.keys {
		ds.byItem[k.ItemID] = append(ds.byItem[k.ItemID], k)
	}
	for loc := range locations {
		ds.locations = append(ds.locations, loc)
	}
	sort.Strings(ds.locations)

	for wk, qty := range onHandByWeek {
		if wk.week.Equal(latestInventory) {
			ds.onHand[wk.key] = qty
		}
	}

	for _, it := range b.items {
		if strings.TrimSpace(it.ItemID) == "" {
			return nil, fmt.Errorf("item: empty item_id: %w", ErrInvalidValue)
		}
		ds.items[it.ItemID] = it
	}

	for _, p := range b.policies {
		if strings.TrimSpace(p.ItemID) == "" {
			return nil, fmt.Errorf("reorder policy: empty item_id: %w", ErrInvalidValue)
		}
		ds.policies[domain.Key{ItemID: p.ItemID, LocationID: p.LocationID}] = p
	}

	for _, po := range b.orders {
		if err := checkRow(po.ItemID, po.LocationID, po.ExpectedWeek, po.QtyOrdered); err != nil {
			return nil, fmt.Errorf("purchase order %s: %w", po.POID, err)
		}
		po.ExpectedWeek = truncateDay(po.ExpectedWeek)
		k := domain.Key{ItemID: po.ItemID, LocationID: po.LocationID}
		ds.orders[k] = append(ds.orders[k], po)
	}

	for _, r := range b.receipts {
		if r.LastReceiptWeek.IsZero() {
			continue
		}
		k := domain.Key{ItemID: r.ItemID, LocationID: r.LocationID}
		week := truncateDay(r.LastReceiptWeek)
		if cur, ok := ds.receipts[k]; !ok || week.After(cur) {
			ds.receipts[k] = week
		}
	}

	for k, fs := range ds.forecasts {
		sort.Slice(fs, func(i, j int) bool { return fs[i].WeekEnding.Before(fs[j].WeekEnding) })
		ds.forecasts[k] = fs
	}

	return ds, nil
}

func checkRow(itemID, locationID string, week time.Time, qty float64) error {
	switch {
	case strings.TrimSpace(itemID) == "":
		return fmt.Errorf("empty item_id: %w", ErrInvalidValue)
	case strings.TrimSpace(locationID) == "":
		return fmt.Errorf("empty location_id for %s: %w", itemID, ErrInvalidValue)
	case week.IsZero():
		return fmt.Errorf("missing week for %s@%s: %w", itemID, locationID, ErrInvalidValue)
	case math.IsNaN(qty) || math.IsInf(qty, 0):
		return fmt.Errorf("non-finite quantity for %s@%s: %w", itemID, locationID, ErrInvalidValue)
	case qty < 0:
		return fmt.Errorf("negative quantity %v for %s@%s: %w", qty, itemID, locationID, ErrInvalidValue)
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
