// Package testutil builds in-memory retail tables for tests.
package testutil

import (
	"time"

	"retail-dashboard/internal/models"
)

// Day returns 2024-01-01 plus offset days at UTC midnight.
func Day(offset int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

// TablesBuilder assembles a models.Tables fixture row by row.
type TablesBuilder struct {
	products  []models.Product
	stores    []models.Store
	calendar  []models.CalendarDay
	inventory []models.InventoryRecord
	sales     []models.SalesRecord
}

func NewTablesBuilder() *TablesBuilder {
	return &TablesBuilder{
		products:  []models.Product{},
		stores:    []models.Store{},
		calendar:  []models.CalendarDay{},
		inventory: []models.InventoryRecord{},
		sales:     []models.SalesRecord{},
	}
}

func (b *TablesBuilder) Product(id, name, category string) *TablesBuilder {
	b.products = append(b.products, models.Product{ProductID: id, ProductName: name, Category: category})
	return b
}

func (b *TablesBuilder) Store(id, name string) *TablesBuilder {
	b.stores = append(b.stores, models.Store{StoreID: id, StoreName: name})
	return b
}

func (b *TablesBuilder) Day(date time.Time, holiday bool, dow string) *TablesBuilder {
	b.calendar = append(b.calendar, models.CalendarDay{Date: date, IsHoliday: holiday, DayOfWeek: dow})
	return b
}

func (b *TablesBuilder) Stock(storeID, productID string, date time.Time, closing int) *TablesBuilder {
	b.inventory = append(b.inventory, models.InventoryRecord{StoreID: storeID, ProductID: productID, Date: date, ClosingStock: closing})
	return b
}

func (b *TablesBuilder) Sale(storeID, productID string, date time.Time, units, net float64, promo string) *TablesBuilder {
	b.sales = append(b.sales, models.SalesRecord{
		StoreID:       storeID,
		ProductID:     productID,
		Date:          date,
		UnitsSold:     units,
		NetSalesAED:   net,
		PromotionFlag: promo,
	})
	return b
}

func (b *TablesBuilder) Build() *models.Tables {
	return models.NewTables(b.products, b.stores, b.calendar, b.inventory, b.sales)
}

// SampleTables is a small two-store, three-product dataset spanning 12 days.
// P1 (Widget) sells 5..16 units on consecutive days at S1, which is enough
// history to forecast.
func SampleTables() *models.Tables {
	b := NewTablesBuilder().
		Product("P1", "Widget", "Hardware").
		Product("P2", "Gadget", "Hardware").
		Product("P3", "Apple Juice", "Beverages").
		Store("S1", "Dubai Mall").
		Store("S2", "Abu Dhabi")

	days := []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}
	for i := range 12 {
		b.Day(Day(i), i == 0, days[i%7])
	}

	for i := range 12 {
		units := float64(5 + i)
		promo := "N"
		if i%3 == 0 {
			promo = "Y"
		}
		b.Sale("S1", "P1", Day(i), units, units*10, promo)
		b.Stock("S1", "P1", Day(i), 40-i)
	}

	b.Sale("S1", "P2", Day(0), 2, 30, "N").
		Sale("S2", "P2", Day(1), 1, 15, "Y").
		Sale("S2", "P3", Day(2), 3, 12, "N").
		Stock("S1", "P2", Day(0), 0).
		Stock("S2", "P2", Day(1), 4).
		Stock("S2", "P3", Day(2), 0)

	return b.Build()
}
