package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"retail-dashboard/internal/models"
)

const (
	TableProducts  = "products"
	TableStores    = "stores"
	TableCalendar  = "calendar"
	TableInventory = "inventory"
	TableSales     = "sales"
)

// schema declares the columns a table must carry and how one row decodes.
type schema[T any] struct {
	table   string
	columns []string
	decode  func(c *cells) T
}

var productSchema = schema[models.Product]{
	table:   TableProducts,
	columns: []string{"Product_ID", "Product_Name", "Category"},
	decode: func(c *cells) models.Product {
		return models.Product{
			ProductID:   c.key("Product_ID"),
			ProductName: c.str("Product_Name"),
			Category:    c.str("Category"),
		}
	},
}

var storeSchema = schema[models.Store]{
	table:   TableStores,
	columns: []string{"Store_ID", "Store_Name"},
	decode: func(c *cells) models.Store {
		return models.Store{
			StoreID:   c.key("Store_ID"),
			StoreName: c.str("Store_Name"),
		}
	},
}

var calendarSchema = schema[models.CalendarDay]{
	table:   TableCalendar,
	columns: []string{"Date", "Is_Holiday", "Day_Of_Week"},
	decode: func(c *cells) models.CalendarDay {
		return models.CalendarDay{
			Date:      c.date("Date"),
			IsHoliday: c.boolean("Is_Holiday"),
			DayOfWeek: c.str("Day_Of_Week"),
		}
	},
}

var inventorySchema = schema[models.InventoryRecord]{
	table:   TableInventory,
	columns: []string{"Store_ID", "Product_ID", "Date", "Closing_Stock"},
	decode: func(c *cells) models.InventoryRecord {
		return models.InventoryRecord{
			StoreID:      c.key("Store_ID"),
			ProductID:    c.key("Product_ID"),
			Date:         c.date("Date"),
			ClosingStock: c.count("Closing_Stock"),
		}
	},
}

var salesSchema = schema[models.SalesRecord]{
	table:   TableSales,
	columns: []string{"Store_ID", "Product_ID", "Date", "Units_Sold", "Net_Sales_AED", "Promotion_Flag"},
	decode: func(c *cells) models.SalesRecord {
		return models.SalesRecord{
			StoreID:       c.key("Store_ID"),
			ProductID:     c.key("Product_ID"),
			Date:          c.date("Date"),
			UnitsSold:     c.nonNegative("Units_Sold"),
			NetSalesAED:   c.number("Net_Sales_AED"),
			PromotionFlag: strings.ToUpper(c.str("Promotion_Flag")),
		}
	},
}

// readTable decodes a whole CSV source against s. The first bad row aborts
// the read; rows are never skipped.
func readTable[T any](r io.Reader, s schema[T], locator, dateLayout string) ([]T, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &LoadError{Table: s.table, Locator: locator, Err: ErrEmptySource}
	}
	if err != nil {
		return nil, &LoadError{Table: s.table, Locator: locator, Row: 1, Err: fmt.Errorf("read header: %w", err)}
	}

	index := make(map[string]int, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		index[h] = i
	}
	for _, col := range s.columns {
		if _, ok := index[col]; !ok {
			return nil, &LoadError{Table: s.table, Locator: locator, Column: col, Err: ErrMissingColumn}
		}
	}

	c := &cells{index: index, dateLayout: dateLayout}
	var rows []T
	for rowNum := 2; ; rowNum++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &LoadError{Table: s.table, Locator: locator, Row: rowNum, Err: err}
		}

		c.reset(record)
		row := s.decode(c)
		if c.err != nil {
			return nil, &LoadError{Table: s.table, Locator: locator, Row: rowNum, Column: c.errColumn, Err: c.err}
		}
		rows = append(rows, row)
	}

	if rows == nil {
		rows = []T{}
	}
	return rows, nil
}

// cells reads typed values from one record. The first conversion failure
// sticks; later reads return zero values.
type cells struct {
	index      map[string]int
	record     []string
	dateLayout string

	err       error
	errColumn string
}

func (c *cells) reset(record []string) {
	c.record = record
	c.err = nil
	c.errColumn = ""
}

func (c *cells) fail(col string, err error) {
	if c.err == nil {
		c.err = err
		c.errColumn = col
	}
}

func (c *cells) str(col string) string {
	i := c.index[col]
	if i >= len(c.record) {
		return ""
	}
	return strings.TrimSpace(c.record[i])
}

func (c *cells) key(col string) string {
	v := c.str(col)
	if v == "" {
		c.fail(col, ErrEmptyKey)
	}
	return v
}

func (c *cells) number(col string) float64 {
	raw := c.str(col)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		c.fail(col, fmt.Errorf("invalid number %q", raw))
		return 0
	}
	return v
}

func (c *cells) nonNegative(col string) float64 {
	v := c.number(col)
	if v < 0 {
		c.fail(col, fmt.Errorf("negative value %v", v))
	}
	return v
}

func (c *cells) count(col string) int {
	raw := c.str(col)
	v, err := strconv.Atoi(raw)
	if err != nil {
		// Exports sometimes write integral counts as "12.0".
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || f != float64(int(f)) {
			c.fail(col, fmt.Errorf("invalid integer %q", raw))
			return 0
		}
		v = int(f)
	}
	if v < 0 {
		c.fail(col, fmt.Errorf("negative value %d", v))
	}
	return v
}

func (c *cells) date(col string) time.Time {
	raw := c.str(col)
	d, err := time.Parse(c.dateLayout, raw)
	if err != nil {
		c.fail(col, fmt.Errorf("invalid date %q", raw))
		return time.Time{}
	}
	return truncateDay(d)
}

func (c *cells) boolean(col string) bool {
	raw := c.str(col)
	switch strings.ToLower(raw) {
	case "true", "1", "y", "yes", "t":
		return true
	case "false", "0", "n", "no", "f":
		return false
	}
	c.fail(col, fmt.Errorf("invalid boolean %q", raw))
	return false
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
