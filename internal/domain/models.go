package domain

import (
	"fmt"
	"time"
)

// AllLocations is the location id used for segmentation results aggregated
// across every location.
const AllLocations = "ALL"

// Key identifies one (item, location) series.
type Key struct {
	ItemID     string `json:"item_id" db:"item_id"`
	LocationID string `json:"location_id" db:"location_id"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s@%s", k.ItemID, k.LocationID)
}

// Less orders keys by item then location.
func (k Key) Less(o Key) bool {
	if k.ItemID != o.ItemID {
		return k.ItemID < o.ItemID
	}
	return k.LocationID < o.LocationID
}

// TimeSeriesPoint is one merged weekly row for an (item, location).
type TimeSeriesPoint struct {
	ItemID      string    `json:"item_id" db:"item_id"`
	LocationID  string    `json:"location_id" db:"location_id"`
	WeekEnding  time.Time `json:"week_ending" db:"week_ending"`
	QtySold     float64   `json:"qty_sold" db:"qty_sold"`
	OnHandQty   float64   `json:"on_hand_qty" db:"on_hand_qty"`
	ForecastQty float64   `json:"forecast_qty" db:"forecast_qty"`
}

func (p TimeSeriesPoint) Key() Key {
	return Key{ItemID: p.ItemID, LocationID: p.LocationID}
}

// Item is the item master record.
type Item struct {
	ItemID        string     `json:"item_id" db:"item_id"`
	Category      Category   `json:"category" db:"category"`
	ShelfLifeDays int        `json:"shelf_life_days" db:"shelf_life_days"`
	LaunchDate    *time.Time `json:"launch_date,omitempty" db:"launch_date"`
	ObsoleteDate  *time.Time `json:"obsolete_date,omitempty" db:"obsolete_date"`
}

// ReorderPolicy holds min/max stock bounds. An empty LocationID applies the
// policy to every location of the item.
type ReorderPolicy struct {
	ItemID     string  `json:"item_id" db:"item_id"`
	LocationID string  `json:"location_id,omitempty" db:"location_id"`
	MinQty     float64 `json:"min_qty" db:"min_qty"`
	MaxQty     float64 `json:"max_qty" db:"max_qty"`
}

// PurchaseOrder is an inbound replenishment order.
type PurchaseOrder struct {
	POID         string    `json:"po_id" db:"po_id"`
	ItemID       string    `json:"item_id" db:"item_id"`
	LocationID   string    `json:"location_id" db:"location_id"`
	OrderWeek    time.Time `json:"order_week" db:"order_week"`
	ExpectedWeek time.Time `json:"expected_week" db:"expected_week"`
	QtyOrdered   float64   `json:"qty_ordered" db:"qty_ordered"`
}

// IsOpen reports whether the order is still in flight at the given date.
func (po PurchaseOrder) IsOpen(asOf time.Time) bool {
	return !po.ExpectedWeek.Before(asOf)
}

// Forecast is one forecasted week. Forecast rows may extend past the last
// observed sales week.
type Forecast struct {
	ItemID      string    `json:"item_id" db:"item_id"`
	LocationID  string    `json:"location_id" db:"location_id"`
	WeekEnding  time.Time `json:"week_ending" db:"week_ending"`
	ForecastQty float64   `json:"forecast_qty" db:"forecast_qty"`
}

// Receipt records the last goods receipt for an (item, location).
type Receipt struct {
	ItemID          string    `json:"item_id" db:"item_id"`
	LocationID      string    `json:"location_id" db:"location_id"`
	LastReceiptWeek time.Time `json:"last_receipt_week" db:"last_receipt_week"`
}

// SalesRecord, InventoryRecord feed the dataset builder.
type SalesRecord struct {
	ItemID     string    `json:"item_id" db:"item_id"`
	LocationID string    `json:"location_id" db:"location_id"`
	WeekEnding time.Time `json:"week_ending" db:"week_ending"`
	QtySold    float64   `json:"qty_sold" db:"qty_sold"`
}

type InventoryRecord struct {
	ItemID     string    `json:"item_id" db:"item_id"`
	LocationID string    `json:"location_id" db:"location_id"`
	WeekEnding time.Time `json:"week_ending" db:"week_ending"`
	OnHandQty  float64   `json:"on_hand_qty" db:"on_hand_qty"`
}
