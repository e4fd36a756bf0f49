package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/invengine/internal/dataset"
	"github.com/andresuchdata/invengine/internal/domain"
)

// Seeder upserts parsed input files into the input tables, so the postgres
// source can read what was delivered as CSV.
type Seeder struct {
	db *DB
}

func NewSeeder(db *DB) *Seeder {
	return &Seeder{db: db}
}

// SeedCounts reports how many rows were written per table.
type SeedCounts map[string]int

type upsert struct {
	table string
	query string
	rows  [][]any
}

// Seed writes every table in one transaction. Rows that already exist are
// updated in place.
func (s *Seeder) Seed(ctx context.Context, t *dataset.Tables) (SeedCounts, error) {
	start := time.Now()
	batches := seedBatches(t)
	counts := make(SeedCounts, len(batches))

	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, b := range batches {
			if len(b.rows) == 0 {
				continue
			}
			stmt, err := prepare(ctx, tx, b.table, b.query)
			if err != nil {
				return err
			}
			for i, args := range b.rows {
				if _, err := stmt.ExecContext(ctx, args...); err != nil {
					stmt.Close()
					return fmt.Errorf("upsert %s row %d: %w", b.table, i+1, err)
				}
			}
			stmt.Close()
			counts[b.table] = len(b.rows)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Interface("rows", counts).Dur("duration", time.Since(start)).Msg("postgres: input tables seeded")
	return counts, nil
}

func seedBatches(t *dataset.Tables) []upsert {
	items := upsert{table: "items", query: `
		INSERT INTO items (item_id, category, shelf_life_days, launch_date, obsolete_date)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (item_id) DO UPDATE SET
			category = EXCLUDED.category,
			shelf_life_days = EXCLUDED.shelf_life_days,
			launch_date = EXCLUDED.launch_date,
			obsolete_date = EXCLUDED.obsolete_date`}
	for _, it := range t.Items {
		items.rows = append(items.rows, []any{it.ItemID, nullString(string(it.Category)), it.ShelfLifeDays, it.LaunchDate, it.ObsoleteDate})
	}

	sales := weeklyUpsert("sales_weekly", "qty_sold")
	for _, r := range t.Sales {
		sales.rows = append(sales.rows, []any{r.WeekEnding, r.ItemID, r.LocationID, r.QtySold})
	}

	inventory := weeklyUpsert("inventory_snapshots", "on_hand_qty")
	for _, r := range t.Inventory {
		inventory.rows = append(inventory.rows, []any{r.WeekEnding, r.ItemID, r.LocationID, r.OnHandQty})
	}

	forecasts := weeklyUpsert("forecasts_weekly", "forecast_qty")
	for _, r := range t.Forecasts {
		forecasts.rows = append(forecasts.rows, []any{r.WeekEnding, r.ItemID, r.LocationID, r.ForecastQty})
	}

	policies := upsert{table: "reorder_policy", query: `
		INSERT INTO reorder_policy (item_id, min_qty, max_qty)
		VALUES ($1, $2, $3)
		ON CONFLICT (item_id) DO UPDATE SET min_qty = EXCLUDED.min_qty, max_qty = EXCLUDED.max_qty`}
	for _, p := range itemLevelPolicies(t.Policies) {
		policies.rows = append(policies.rows, []any{p.ItemID, p.MinQty, p.MaxQty})
	}

	orders := upsert{table: "purchase_orders", query: `
		INSERT INTO purchase_orders (po_id, order_week, expected_week, item_id, location_id, qty_ordered)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (po_id) DO UPDATE SET
			order_week = EXCLUDED.order_week,
			expected_week = EXCLUDED.expected_week,
			item_id = EXCLUDED.item_id,
			location_id = EXCLUDED.location_id,
			qty_ordered = EXCLUDED.qty_ordered`}
	for _, o := range t.Orders {
		orders.rows = append(orders.rows, []any{o.POID, nullTime(o.OrderWeek), nullTime(o.ExpectedWeek), o.ItemID, o.LocationID, o.QtyOrdered})
	}

	receipts := upsert{table: "non_moving_candidates", query: `
		INSERT INTO non_moving_candidates (item_id, location_id, last_receipt_week)
		VALUES ($1, $2, $3)
		ON CONFLICT (item_id, location_id) DO UPDATE SET last_receipt_week = EXCLUDED.last_receipt_week`}
	for _, r := range t.Receipts {
		receipts.rows = append(receipts.rows, []any{r.ItemID, r.LocationID, r.LastReceiptWeek})
	}

	return []upsert{items, sales, inventory, forecasts, policies, orders, receipts}
}

func weeklyUpsert(table, column string) upsert {
	return upsert{table: table, query: fmt.Sprintf(`
		INSERT INTO %s (week_ending, item_id, location_id, %s)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (week_ending, item_id, location_id) DO UPDATE SET %s = EXCLUDED.%s`,
		table, column, column, column)}
}

// itemLevelPolicies keeps one policy per item. The table has no location
// column; an item-level row wins over location rows, otherwise the first
// location row is kept.
func itemLevelPolicies(policies []domain.ReorderPolicy) []domain.ReorderPolicy {
	idx := make(map[string]int)
	var out []domain.ReorderPolicy
	for _, p := range policies {
		i, seen := idx[p.ItemID]
		switch {
		case !seen:
			idx[p.ItemID] = len(out)
			out = append(out, domain.ReorderPolicy{ItemID: p.ItemID, MinQty: p.MinQty, MaxQty: p.MaxQty})
		case p.LocationID == "":
			out[i] = domain.ReorderPolicy{ItemID: p.ItemID, MinQty: p.MinQty, MaxQty: p.MaxQty}
		}
	}
	return out
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
