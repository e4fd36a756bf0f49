package dataset

import (
	"errors"
	"sort"
	"time"

	"github.com/andresuchdata/invengine/internal/domain"
)

var (
	ErrDuplicatePoint = errors.New("duplicate time series point")
	ErrMissingColumn  = errors.New("missing required column")
	ErrInvalidValue   = errors.New("invalid value")
	ErrEmptyDataset   = errors.New("dataset has no time series")
)

// Dataset is the merged, validated, read-only input of one analysis run.
// All lookups are safe for concurrent use once Build has returned.
type Dataset struct {
	keys      []domain.Key
	series    map[domain.Key][]domain.TimeSeriesPoint
	items     map[string]domain.Item
	policies  map[domain.Key]domain.ReorderPolicy
	orders    map[domain.Key][]domain.PurchaseOrder
	forecasts map[domain.Key][]domain.Forecast
	receipts  map[domain.Key]time.Time
	onHand    map[domain.Key]float64
	byItem    map[string][]domain.Key
	locations []string

	firstWeek  time.Time
	latestWeek time.Time
}

// Keys returns every (item, location) in item/location order.
func (d *Dataset) Keys() []domain.Key { return d.keys }

func (d *Dataset) Len() int { return len(d.keys) }

// Series returns the chronologically ordered points of one key.
func (d *Dataset) Series(k domain.Key) []domain.TimeSeriesPoint { return d.series[k] }

func (d *Dataset) Item(itemID string) (domain.Item, bool) {
	it, ok := d.items[itemID]
	return it, ok
}

// Policy returns the location-specific reorder policy of a key, falling back
// to the item-level policy.
func (d *Dataset) Policy(k domain.Key) (domain.ReorderPolicy, bool) {
	if p, ok := d.policies[k]; ok {
		return p, true
	}
	p, ok := d.policies[domain.Key{ItemID: k.ItemID}]
	return p, ok
}

func (d *Dataset) PurchaseOrders(k domain.Key) []domain.PurchaseOrder { return d.orders[k] }

func (d *Dataset) Forecasts(k domain.Key) []domain.Forecast { return d.forecasts[k] }

func (d *Dataset) LastReceipt(k domain.Key) (time.Time, bool) {
	t, ok := d.receipts[k]
	return t, ok
}

// CurrentOnHand is the on-hand quantity at the latest inventory snapshot
// week; keys missing from that snapshot hold nothing.
func (d *Dataset) CurrentOnHand(k domain.Key) float64 { return d.onHand[k] }

// ItemKeys returns every location series of an item.
func (d *Dataset) ItemKeys(itemID string) []domain.Key { return d.byItem[itemID] }

func (d *Dataset) Locations() []string { return d.locations }

func (d *Dataset) FirstWeek() time.Time { return d.firstWeek }

// LatestWeek is the last sales week; it is the default analysis date.
func (d *Dataset) LatestWeek() time.Time { return d.latestWeek }

// Validate rejects datasets the engine cannot run on.
func (d *Dataset) Validate() error {
	if d == nil || len(d.keys) == 0 {
		return ErrEmptyDataset
	}
	return nil
}

func sortKeys(keys []domain.Key) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}
