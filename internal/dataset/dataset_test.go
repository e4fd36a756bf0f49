package dataset

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andresuchdata/invengine/internal/domain"
)

func day(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestBuildMergesTables(t *testing.T) {
	ds, err := NewBuilder().
		AddSales(
			domain.SalesRecord{ItemID: "B", LocationID: "L2", WeekEnding: day("2024-01-14"), QtySold: 4},
			domain.SalesRecord{ItemID: "A", LocationID: "L1", WeekEnding: day("2024-01-14"), QtySold: 2},
			domain.SalesRecord{ItemID: "A", LocationID: "L1", WeekEnding: day("2024-01-07"), QtySold: 1},
		).
		AddInventory(
			domain.InventoryRecord{ItemID: "A", LocationID: "L1", WeekEnding: day("2024-01-07"), OnHandQty: 50},
			domain.InventoryRecord{ItemID: "A", LocationID: "L1", WeekEnding: day("2024-01-14"), OnHandQty: 40},
		).
		AddForecasts(domain.Forecast{ItemID: "A", LocationID: "L1", WeekEnding: day("2024-01-14"), ForecastQty: 3}).
		AddPolicies(
			domain.ReorderPolicy{ItemID: "A", MinQty: 5, MaxQty: 60},
			domain.ReorderPolicy{ItemID: "B", LocationID: "L2", MinQty: 1, MaxQty: 2},
		).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	keys := ds.Keys()
	if len(keys) != 2 || keys[0].ItemID != "A" || keys[1].ItemID != "B" {
		t.Fatalf("unexpected key order %v", keys)
	}

	a := ds.Series(keys[0])
	if len(a) != 2 || !a[0].WeekEnding.Before(a[1].WeekEnding) {
		t.Fatalf("series must be chronological: %+v", a)
	}
	if a[1].OnHandQty != 40 || a[1].ForecastQty != 3 {
		t.Fatalf("expected merged inventory and forecast, got %+v", a[1])
	}

	if got := ds.CurrentOnHand(keys[0]); got != 40 {
		t.Fatalf("expected on hand 40, got %v", got)
	}
	if got := ds.CurrentOnHand(keys[1]); got != 0 {
		t.Fatalf("key missing from the latest snapshot holds nothing, got %v", got)
	}

	if p, ok := ds.Policy(keys[0]); !ok || p.MaxQty != 60 {
		t.Fatalf("expected item-level policy fallback, got %+v %v", p, ok)
	}
	if p, ok := ds.Policy(keys[1]); !ok || p.MaxQty != 2 {
		t.Fatalf("expected location policy, got %+v %v", p, ok)
	}
	if _, ok := ds.Policy(domain.Key{ItemID: "C", LocationID: "L1"}); ok {
		t.Fatal("unexpected policy for unknown item")
	}

	if locs := ds.Locations(); len(locs) != 2 || locs[0] != "L1" {
		t.Fatalf("unexpected locations %v", locs)
	}
	if !ds.FirstWeek().Equal(day("2024-01-07")) || !ds.LatestWeek().Equal(day("2024-01-14")) {
		t.Fatalf("unexpected range %v..%v", ds.FirstWeek(), ds.LatestWeek())
	}
}

func TestBuildRejectsBadRows(t *testing.T) {
	week := day("2024-01-07")
	tests := []struct {
		name string
		b    *Builder
		want error
	}{
		{
			"duplicate sales week",
			NewBuilder().AddSales(
				domain.SalesRecord{ItemID: "A", LocationID: "L1", WeekEnding: week, QtySold: 1},
				domain.SalesRecord{ItemID: "A", LocationID: "L1", WeekEnding: week.Add(3 * time.Hour), QtySold: 2},
			),
			ErrDuplicatePoint,
		},
		{
			"duplicate across points and sales",
			NewBuilder().
				AddPoints(domain.TimeSeriesPoint{ItemID: "A", LocationID: "L1", WeekEnding: week}).
				AddSales(domain.SalesRecord{ItemID: "A", LocationID: "L1", WeekEnding: week}),
			ErrDuplicatePoint,
		},
		{
			"missing location",
			NewBuilder().AddSales(domain.SalesRecord{ItemID: "A", WeekEnding: week}),
			ErrInvalidValue,
		},
		{
			"missing week",
			NewBuilder().AddSales(domain.SalesRecord{ItemID: "A", LocationID: "L1"}),
			ErrInvalidValue,
		},
		{
			"non-finite quantity",
			NewBuilder().AddSales(domain.SalesRecord{ItemID: "A", LocationID: "L1", WeekEnding: week, QtySold: math.NaN()}),
			ErrInvalidValue,
		},
		{
			"negative sales",
			NewBuilder().AddSales(domain.SalesRecord{ItemID: "A", LocationID: "L1", WeekEnding: week, QtySold: -2}),
			ErrInvalidValue,
		},
		{
			"negative on hand",
			NewBuilder().
				AddSales(domain.SalesRecord{ItemID: "A", LocationID: "L1", WeekEnding: week, QtySold: 1}).
				AddInventory(domain.InventoryRecord{ItemID: "A", LocationID: "L1", WeekEnding: week, OnHandQty: -5}),
			ErrInvalidValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.b.Build(); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateEmpty(t *testing.T) {
	ds, err := NewBuilder().Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !errors.Is(ds.Validate(), ErrEmptyDataset) {
		t.Fatal("expected empty dataset error")
	}
}

func TestReceiptsKeepLatest(t *testing.T) {
	key := domain.Key{ItemID: "A", LocationID: "L1"}
	ds, err := NewBuilder().
		AddSales(domain.SalesRecord{ItemID: "A", LocationID: "L1", WeekEnding: day("2024-01-07")}).
		AddReceipts(
			domain.Receipt{ItemID: "A", LocationID: "L1", LastReceiptWeek: day("2023-11-05")},
			domain.Receipt{ItemID: "A", LocationID: "L1", LastReceiptWeek: day("2023-12-03")},
			domain.Receipt{ItemID: "A", LocationID: "L1"},
		).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	got, ok := ds.LastReceipt(key)
	if !ok || !got.Equal(day("2023-12-03")) {
		t.Fatalf("expected latest receipt, got %v %v", got, ok)
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadCSVDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileSales, "\ufeffItem ID,Location-ID,Week Ending,Qty Sold\n"+
		"SKU1,LOC1,2024-01-07,5\n"+
		"SKU1,LOC1,2024-01-14,\"1,200\"\n"+
		"SKU2,LOC1,2024/01/14,0\n")
	writeFile(t, dir, FileInventory, "item_id,location_id,week_ending,on_hand_qty\n"+
		"SKU1,LOC1,2024-01-14,30\n")
	writeFile(t, dir, FileItems, "item_id,category,shelf_life_days,launch_date,obsolete_date\n"+
		"SKU1,slow mover,180,2023-06-01,\n"+
		"SKU2,,0,,\n")
	writeFile(t, dir, FilePurchaseOrders, "po_number,item_id,location_id,order_date,expected_date,quantity\n"+
		"PO-9,SKU2,LOC1,2024-01-01,2024-02-04,12\n")

	ds, err := LoadCSVDir(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("expected 2 keys, got %d", ds.Len())
	}

	sku1 := domain.Key{ItemID: "SKU1", LocationID: "LOC1"}
	s := ds.Series(sku1)
	if len(s) != 2 || s[1].QtySold != 1200 {
		t.Fatalf("expected thousands separator to parse, got %+v", s)
	}
	if ds.CurrentOnHand(sku1) != 30 {
		t.Fatalf("expected on hand 30, got %v", ds.CurrentOnHand(sku1))
	}

	item, ok := ds.Item("SKU1")
	if !ok || item.Category != domain.CategorySlowMover || item.ShelfLifeDays != 180 || item.LaunchDate == nil || item.ObsoleteDate != nil {
		t.Fatalf("unexpected item %+v", item)
	}

	pos := ds.PurchaseOrders(domain.Key{ItemID: "SKU2", LocationID: "LOC1"})
	if len(pos) != 1 || pos[0].POID != "PO-9" || pos[0].QtyOrdered != 12 {
		t.Fatalf("unexpected purchase orders %+v", pos)
	}
}

func TestLoadCSVDirErrors(t *testing.T) {
	t.Run("missing sales file", func(t *testing.T) {
		if _, err := LoadCSVDir(t.TempDir()); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("expected not-exist error, got %v", err)
		}
	})

	t.Run("missing column", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, FileSales, "item_id,location_id,qty_sold\nA,L1,3\n")
		if _, err := LoadCSVDir(dir); !errors.Is(err, ErrMissingColumn) {
			t.Fatalf("expected ErrMissingColumn, got %v", err)
		}
	})

	t.Run("bad date", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, FileSales, "item_id,location_id,week_ending,qty_sold\nA,L1,last week,3\n")
		if _, err := LoadCSVDir(dir); !errors.Is(err, ErrInvalidValue) {
			t.Fatalf("expected ErrInvalidValue, got %v", err)
		}
	})

	t.Run("unknown category", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, FileSales, "item_id,location_id,week_ending,qty_sold\nA,L1,2024-01-07,3\n")
		writeFile(t, dir, FileItems, "item_id,category\nA,Evergreen\n")
		if _, err := LoadCSVDir(dir); !errors.Is(err, ErrInvalidValue) {
			t.Fatalf("expected ErrInvalidValue, got %v", err)
		}
	})

	t.Run("duplicate rows", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, FileSales, "item_id,location_id,week_ending,qty_sold\nA,L1,2024-01-07,3\nA,L1,2024-01-07,4\n")
		if _, err := LoadCSVDir(dir); !errors.Is(err, ErrDuplicatePoint) {
			t.Fatalf("expected ErrDuplicatePoint, got %v", err)
		}
	})
}

func TestReadCSVDirKeepsRawTables(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileSales, "item_id,location_id,week_ending,qty_sold\nA,L1,2024-01-07,3\nA,L1,2024-01-07,4\n")
	writeFile(t, dir, FileReorderPolicy, "item_id,min_qty,max_qty\nA,5,20\n")

	tables, err := ReadCSVDir(dir)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(tables.Sales) != 2 || len(tables.Policies) != 1 || len(tables.Items) != 0 {
		t.Fatalf("unexpected tables %+v", tables)
	}
	if _, err := tables.Builder().Build(); !errors.Is(err, ErrDuplicatePoint) {
		t.Fatalf("duplicates should surface at build time, got %v", err)
	}
}
