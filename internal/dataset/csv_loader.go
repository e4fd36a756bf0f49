package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/invengine/internal/domain"
	"github.com/rs/zerolog/log"
)

const dateLayout = "2006-01-02"

// Input file names understood by LoadCSVDir. Only sales is required.
const (
	FileSales          = "sales.csv"
	FileInventory      = "inventory.csv"
	FileForecasts      = "forecasts.csv"
	FileItems          = "items.csv"
	FileReorderPolicy  = "reorder_policy.csv"
	FilePurchaseOrders = "purchase_orders.csv"
	FileReceipts       = "receipts.csv"
)

// InputFiles lists every file LoadCSVDir looks for.
var InputFiles = []string{
	FileSales, FileInventory, FileForecasts, FileItems,
	FileReorderPolicy, FilePurchaseOrders, FileReceipts,
}

var dateLayouts = []string{
	dateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"02/01/2006",
}

// Tables holds the parsed input files before they are indexed.
type Tables struct {
	Sales     []domain.SalesRecord
	Inventory []domain.InventoryRecord
	Forecasts []domain.Forecast
	Items     []domain.Item
	Policies  []domain.ReorderPolicy
	Orders    []domain.PurchaseOrder
	Receipts  []domain.Receipt
}

// Builder feeds every table into a fresh Builder.
func (t *Tables) Builder() *Builder {
	return NewBuilder().
		AddSales(t.Sales...).
		AddInventory(t.Inventory...).
		AddForecasts(t.Forecasts...).
		AddItems(t.Items...).
		AddPolicies(t.Policies...).
		AddPurchaseOrders(t.Orders...).
		AddReceipts(t.Receipts...)
}

// LoadCSVDir reads the input tables from dir and builds a Dataset.
func LoadCSVDir(dir string) (*Dataset, error) {
	t, err := ReadCSVDir(dir)
	if err != nil {
		return nil, err
	}
	return t.Builder().Build()
}

// ReadCSVDir parses the input files found in dir. Only sales.csv is required.
func ReadCSVDir(dir string) (*Tables, error) {
	out := &Tables{}

	type loader struct {
		file     string
		required bool
		load     func(*table) error
	}

	loaders := []loader{
		{FileSales, true, func(t *table) (err error) {
			out.Sales, err = parseSales(t)
			return err
		}},
		{FileInventory, false, func(t *table) (err error) {
			out.Inventory, err = parseInventory(t)
			return err
		}},
		{FileForecasts, false, func(t *table) (err error) {
			out.Forecasts, err = parseForecasts(t)
			return err
		}},
		{FileItems, false, func(t *table) (err error) {
			out.Items, err = parseItems(t)
			return err
		}},
		{FileReorderPolicy, false, func(t *table) (err error) {
			out.Policies, err = parsePolicies(t)
			return err
		}},
		{FilePurchaseOrders, false, func(t *table) (err error) {
			out.Orders, err = parseOrders(t)
			return err
		}},
		{FileReceipts, false, func(t *table) (err error) {
			out.Receipts, err = parseReceipts(t)
			return err
		}},
	}

	for _, l := range loaders {
		path := filepath.Join(dir, l.file)
		t, err := readTable(path)
		if errors.Is(err, os.ErrNotExist) && !l.required {
			log.Debug().Str("file", path).Msg("dataset: optional input not found")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", l.file, err)
		}
		if err := l.load(t); err != nil {
			return nil, fmt.Errorf("parse %s: %w", l.file, err)
		}
		log.Info().Str("file", l.file).Int("rows", len(t.records)).Msg("dataset: loaded input")
	}

	return out, nil
}

// table is a CSV file with loosely matched headers.
type table struct {
	name    string
	header  []string
	records [][]string
}

func readTable(path string) (*table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &table{name: filepath.Base(path)}, nil
		}
		return nil, err
	}
	// Excel exports prepend a BOM to the first header.
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	t := &table{name: filepath.Base(path), header: header}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		t.records = append(t.records, record)
	}
	return t, nil
}

// colIndex returns the position of the first header matching any of names.
func (t *table) colIndex(names ...string) int {
	targets := make(map[string]struct{}, len(names))
	for _, name := range names {
		targets[normalizeColumnName(name)] = struct{}{}
	}
	for i, h := range t.header {
		if _, ok := targets[normalizeColumnName(h)]; ok {
			return i
		}
	}
	return -1
}

func (t *table) require(names ...string) (int, error) {
	idx := t.colIndex(names...)
	if idx < 0 {
		return -1, fmt.Errorf("%s: %q: %w", t.name, names[0], ErrMissingColumn)
	}
	return idx, nil
}

var columnNameSanitizer = strings.NewReplacer(" ", "", "_", "", ".", "", "-", "", "/", "")

func normalizeColumnName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	return columnNameSanitizer.Replace(name)
}

// row wraps one record with typed accessors that remember the first error.
type row struct {
	t      *table
	line   int
	record []string
	err    error
}

func (r *row) str(idx int) string {
	if idx < 0 || idx >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[idx])
}

func (r *row) float(idx int) float64 {
	v := r.str(idx)
	if v == "" {
		return 0
	}
	v = strings.ReplaceAll(v, ",", "")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("%s line %d: number %q: %w", r.t.name, r.line, v, ErrInvalidValue)
	}
	return f
}

func (r *row) date(idx int) time.Time {
	v := r.str(idx)
	if v == "" {
		if r.err == nil {
			r.err = fmt.Errorf("%s line %d: empty date: %w", r.t.name, r.line, ErrInvalidValue)
		}
		return time.Time{}
	}
	t, ok := parseDate(v)
	if !ok && r.err == nil {
		r.err = fmt.Errorf("%s line %d: date %q: %w", r.t.name, r.line, v, ErrInvalidValue)
	}
	return t
}

func (r *row) optionalDate(idx int) *time.Time {
	v := r.str(idx)
	if v == "" || strings.EqualFold(v, "null") || strings.EqualFold(v, "nat") {
		return nil
	}
	t := r.date(idx)
	if t.IsZero() {
		return nil
	}
	return &t
}

func parseDate(v string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (t *table) each(fn func(r *row)) error {
	for i, record := range t.records {
		r := &row{t: t, line: i + 2, record: record}
		fn(r)
		if r.err != nil {
			return r.err
		}
	}
	return nil
}

func keyColumns(t *table) (item, loc int, err error) {
	if item, err = t.require("item_id", "sku", "item"); err != nil {
		return
	}
	loc, err = t.require("location_id", "location", "store")
	return
}

func parseSales(t *table) ([]domain.SalesRecord, error) {
	idxItem, idxLoc, err := keyColumns(t)
	if err != nil {
		return nil, err
	}
	idxWeek, err := t.require("week_ending", "week")
	if err != nil {
		return nil, err
	}
	idxQty, err := t.require("qty_sold", "quantity_sold", "sales_qty")
	if err != nil {
		return nil, err
	}

	recs := make([]domain.SalesRecord, 0, len(t.records))
	err = t.each(func(r *row) {
		recs = append(recs, domain.SalesRecord{
			ItemID:     r.str(idxItem),
			LocationID: r.str(idxLoc),
			WeekEnding: r.date(idxWeek),
			QtySold:    r.float(idxQty),
		})
	})
	return recs, err
}

func parseInventory(t *table) ([]domain.InventoryRecord, error) {
	idxItem, idxLoc, err := keyColumns(t)
	if err != nil {
		return nil, err
	}
	idxWeek, err := t.require("week_ending", "week", "snapshot_date")
	if err != nil {
		return nil, err
	}
	idxQty, err := t.require("on_hand_qty", "on_hand", "stock")
	if err != nil {
		return nil, err
	}

	recs := make([]domain.InventoryRecord, 0, len(t.records))
	err = t.each(func(r *row) {
		recs = append(recs, domain.InventoryRecord{
			ItemID:     r.str(idxItem),
			LocationID: r.str(idxLoc),
			WeekEnding: r.date(idxWeek),
			OnHandQty:  r.float(idxQty),
		})
	})
	return recs, err
}

func parseForecasts(t *table) ([]domain.Forecast, error) {
	idxItem, idxLoc, err := keyColumns(t)
	if err != nil {
		return nil, err
	}
	idxWeek, err := t.require("week_ending", "week")
	if err != nil {
		return nil, err
	}
	idxQty, err := t.require("forecast_qty", "forecast")
	if err != nil {
		return nil, err
	}

	recs := make([]domain.Forecast, 0, len(t.records))
	err = t.each(func(r *row) {
		recs = append(recs, domain.Forecast{
			ItemID:      r.str(idxItem),
			LocationID:  r.str(idxLoc),
			WeekEnding:  r.date(idxWeek),
			ForecastQty: r.float(idxQty),
		})
	})
	return recs, err
}

func parseItems(t *table) ([]domain.Item, error) {
	idxItem, err := t.require("item_id", "sku", "item")
	if err != nil {
		return nil, err
	}
	idxCategory := t.colIndex("category", "lifecycle_category")
	idxShelf := t.colIndex("shelf_life_days", "shelf_life")
	idxLaunch := t.colIndex("launch_date")
	idxObsolete := t.colIndex("obsolete_date")

	recs := make([]domain.Item, 0, len(t.records))
	err = t.each(func(r *row) {
		it := domain.Item{
			ItemID:        r.str(idxItem),
			ShelfLifeDays: int(r.float(idxShelf)),
			LaunchDate:    r.optionalDate(idxLaunch),
			ObsoleteDate:  r.optionalDate(idxObsolete),
		}
		if label := r.str(idxCategory); label != "" {
			c, err := domain.ParseCategory(label)
			if err != nil && r.err == nil {
				r.err = fmt.Errorf("%s line %d: %v: %w", t.name, r.line, err, ErrInvalidValue)
			}
			it.Category = c
		}
		recs = append(recs, it)
	})
	return recs, err
}

func parsePolicies(t *table) ([]domain.ReorderPolicy, error) {
	idxItem, err := t.require("item_id", "sku", "item")
	if err != nil {
		return nil, err
	}
	idxLoc := t.colIndex("location_id", "location", "store")
	idxMin, err := t.require("min_qty", "min")
	if err != nil {
		return nil, err
	}
	idxMax, err := t.require("max_qty", "max")
	if err != nil {
		return nil, err
	}

	recs := make([]domain.ReorderPolicy, 0, len(t.records))
	err = t.each(func(r *row) {
		recs = append(recs, domain.ReorderPolicy{
			ItemID:     r.str(idxItem),
			LocationID: r.str(idxLoc),
			MinQty:     r.float(idxMin),
			MaxQty:     r.float(idxMax),
		})
	})
	return recs, err
}

func parseOrders(t *table) ([]domain.PurchaseOrder, error) {
	idxItem, idxLoc, err := keyColumns(t)
	if err != nil {
		return nil, err
	}
	idxExpected, err := t.require("expected_week", "expected_date")
	if err != nil {
		return nil, err
	}
	idxQty, err := t.require("qty_ordered", "order_qty", "quantity")
	if err != nil {
		return nil, err
	}
	idxPO := t.colIndex("po_id", "po_number", "po")
	idxOrder := t.colIndex("order_week", "order_date")

	recs := make([]domain.PurchaseOrder, 0, len(t.records))
	err = t.each(func(r *row) {
		po := domain.PurchaseOrder{
			POID:         r.str(idxPO),
			ItemID:       r.str(idxItem),
			LocationID:   r.str(idxLoc),
			ExpectedWeek: r.date(idxExpected),
			QtyOrdered:   r.float(idxQty),
		}
		if ow := r.optionalDate(idxOrder); ow != nil {
			po.OrderWeek = *ow
		}
		recs = append(recs, po)
	})
	return recs, err
}

func parseReceipts(t *table) ([]domain.Receipt, error) {
	idxItem, idxLoc, err := keyColumns(t)
	if err != nil {
		return nil, err
	}
	idxWeek, err := t.require("last_receipt_week", "receipt_week", "week_ending")
	if err != nil {
		return nil, err
	}

	recs := make([]domain.Receipt, 0, len(t.records))
	err = t.each(func(r *row) {
		rec := domain.Receipt{ItemID: r.str(idxItem), LocationID: r.str(idxLoc)}
		if w := r.optionalDate(idxWeek); w != nil {
			rec.LastReceiptWeek = *w
		}
		recs = append(recs, rec)
	})
	return recs, err
}
