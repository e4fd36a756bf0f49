package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/invengine/internal/dataset"
	"github.com/andresuchdata/invengine/internal/domain"
)

// DatasetLoader reads the input tables into a dataset.
type DatasetLoader struct {
	db *DB
}

func NewDatasetLoader(db *DB) *DatasetLoader {
	return &DatasetLoader{db: db}
}

type weeklyRow struct {
	ItemID     string          `db:"item_id"`
	LocationID string          `db:"location_id"`
	WeekEnding time.Time       `db:"week_ending"`
	Qty        sql.NullFloat64 `db:"qty"`
}

type itemRow struct {
	ItemID        string         `db:"item_id"`
	Category      sql.NullString `db:"category"`
	ShelfLifeDays sql.NullInt64  `db:"shelf_life_days"`
	LaunchDate    sql.NullTime   `db:"launch_date"`
	ObsoleteDate  sql.NullTime   `db:"obsolete_date"`
}

type policyRow struct {
	ItemID string          `db:"item_id"`
	MinQty sql.NullFloat64 `db:"min_qty"`
	MaxQty sql.NullFloat64 `db:"max_qty"`
}

type orderRow struct {
	POID         string          `db:"po_id"`
	ItemID       string          `db:"item_id"`
	LocationID   string          `db:"location_id"`
	OrderWeek    sql.NullTime    `db:"order_week"`
	ExpectedWeek sql.NullTime    `db:"expected_week"`
	QtyOrdered   sql.NullFloat64 `db:"qty_ordered"`
}

type receiptRow struct {
	ItemID          string       `db:"item_id"`
	LocationID      string       `db:"location_id"`
	LastReceiptWeek sql.NullTime `db:"last_receipt_week"`
}

const (
	salesQuery     = `SELECT item_id, location_id, week_ending, qty_sold AS qty FROM sales_weekly ORDER BY item_id, location_id, week_ending`
	inventoryQuery = `SELECT item_id, location_id, week_ending, on_hand_qty AS qty FROM inventory_snapshots ORDER BY item_id, location_id, week_ending`
	forecastQuery  = `SELECT item_id, location_id, week_ending, forecast_qty AS qty FROM forecasts_weekly ORDER BY item_id, location_id, week_ending`
	itemsQuery     = `SELECT item_id, category, shelf_life_days, launch_date, obsolete_date FROM items`
	policyQuery    = `SELECT item_id, min_qty, max_qty FROM reorder_policy`
	ordersQuery    = `SELECT po_id, item_id, location_id, order_week, expected_week, qty_ordered FROM purchase_orders`
	receiptsQuery  = `SELECT item_id, location_id, last_receipt_week FROM non_moving_candidates WHERE last_receipt_week IS NOT NULL`
)

// Load reads every input table and builds the dataset.
func (l *DatasetLoader) Load(ctx context.Context) (*dataset.Dataset, error) {
	b := dataset.NewBuilder()

	var sales []weeklyRow
	if err := l.db.SelectContext(ctx, &sales, salesQuery); err != nil {
		return nil, fmt.Errorf("load sales_weekly: %w", err)
	}
	for _, r := range sales {
		b.AddSales(domain.SalesRecord{ItemID: r.ItemID, LocationID: r.LocationID, WeekEnding: r.WeekEnding, QtySold: r.Qty.Float64})
	}

	var inventory []weeklyRow
	if err := l.db.SelectContext(ctx, &inventory, inventoryQuery); err != nil {
		return nil, fmt.Errorf("load inventory_snapshots: %w", err)
	}
	for _, r := range inventory {
		b.AddInventory(domain.InventoryRecord{ItemID: r.ItemID, LocationID: r.LocationID, WeekEnding: r.WeekEnding, OnHandQty: r.Qty.Float64})
	}

	var forecasts []weeklyRow
	if err := l.db.SelectContext(ctx, &forecasts, forecastQuery); err != nil {
		return nil, fmt.Errorf("load forecasts_weekly: %w", err)
	}
	for _, r := range forecasts {
		b.AddForecasts(domain.Forecast{ItemID: r.ItemID, LocationID: r.LocationID, WeekEnding: r.WeekEnding, ForecastQty: r.Qty.Float64})
	}

	var items []itemRow
	if err := l.db.SelectContext(ctx, &items, itemsQuery); err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	for _, r := range items {
		item, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		b.AddItems(item)
	}

	var policies []policyRow
	if err := l.db.SelectContext(ctx, &policies, policyQuery); err != nil {
		return nil, fmt.Errorf("load reorder_policy: %w", err)
	}
	for _, r := range policies {
		b.AddPolicies(domain.ReorderPolicy{ItemID: r.ItemID, MinQty: r.MinQty.Float64, MaxQty: r.MaxQty.Float64})
	}

	var orders []orderRow
	if err := l.db.SelectContext(ctx, &orders, ordersQuery); err != nil {
		return nil, fmt.Errorf("load purchase_orders: %w", err)
	}
	for _, r := range orders {
		b.AddPurchaseOrders(domain.PurchaseOrder{
			POID:         r.POID,
			ItemID:       r.ItemID,
			LocationID:   r.LocationID,
			OrderWeek:    r.OrderWeek.Time,
			ExpectedWeek: r.ExpectedWeek.Time,
			QtyOrdered:   r.QtyOrdered.Float64,
		})
	}

	var receipts []receiptRow
	if err := l.db.SelectContext(ctx, &receipts, receiptsQuery); err != nil {
		return nil, fmt.Errorf("load non_moving_candidates: %w", err)
	}
	for _, r := range receipts {
		b.AddReceipts(domain.Receipt{ItemID: r.ItemID, LocationID: r.LocationID, LastReceiptWeek: r.LastReceiptWeek.Time})
	}

	log.Info().
		Int("sales", len(sales)).
		Int("inventory", len(inventory)).
		Int("forecasts", len(forecasts)).
		Int("items", len(items)).
		Int("orders", len(orders)).
		Int("receipts", len(receipts)).
		Msg("postgres: input tables loaded")

	return b.Build()
}

func (r itemRow) toDomain() (domain.Item, error) {
	item := domain.Item{ItemID: r.ItemID, ShelfLifeDays: int(r.ShelfLifeDays.Int64)}
	if r.Category.Valid && r.Category.String != "" {
		cat, err := domain.ParseCategory(r.Category.String)
		if err != nil {
			return item, fmt.Errorf("%w: item %s: %v", dataset.ErrInvalidValue, r.ItemID, err)
		}
		item.Category = cat
	}
	if r.LaunchDate.Valid {
		t := r.LaunchDate.Time
		item.LaunchDate = &t
	}
	if r.ObsoleteDate.Valid {
		t := r.ObsoleteDate.Time
		item.ObsoleteDate = &t
	}
	return item, nil
}
