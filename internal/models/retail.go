package models

import "time"

type Product struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Category    string `json:"category"`
}

type Store struct {
	StoreID   string `json:"store_id"`
	StoreName string `json:"store_name"`
}

type CalendarDay struct {
	Date      time.Time `json:"date"`
	IsHoliday bool      `json:"is_holiday"`
	DayOfWeek string    `json:"day_of_week"`
}

type InventoryRecord struct {
	StoreID      string    `json:"store_id"`
	ProductID    string    `json:"product_id"`
	Date         time.Time `json:"date"`
	ClosingStock int       `json:"closing_stock"`
}

type SalesRecord struct {
	StoreID       string    `json:"store_id"`
	ProductID     string    `json:"product_id"`
	Date          time.Time `json:"date"`
	UnitsSold     float64   `json:"units_sold"`
	NetSalesAED   float64   `json:"net_sales_aed"`
	PromotionFlag string    `json:"promotion_flag"`
}

// PromotionFlagYes marks a sale made under a promotional price.
const PromotionFlagYes = "Y"

func (s SalesRecord) Promoted() bool {
	return s.PromotionFlag == PromotionFlagYes
}

// Tables holds the five loaded datasets. Nothing mutates a Tables value
// after NewTables returns; stages derive new slices from it.
type Tables struct {
	Products  []Product
	Stores    []Store
	Calendar  []CalendarDay
	Inventory []InventoryRecord
	Sales     []SalesRecord

	LoadedAt time.Time

	productsByID  map[string]Product
	storesByName  map[string]Store
	calendarByDay map[time.Time]CalendarDay
	categories    []string
}

func NewTables(products []Product, stores []Store, calendar []CalendarDay, inventory []InventoryRecord, sales []SalesRecord) *Tables {
	t := &Tables{
		Products:      products,
		Stores:        stores,
		Calendar:      calendar,
		Inventory:     inventory,
		Sales:         sales,
		LoadedAt:      time.Now(),
		productsByID:  make(map[string]Product, len(products)),
		storesByName:  make(map[string]Store, len(stores)),
		calendarByDay: make(map[time.Time]CalendarDay, len(calendar)),
	}

	seen := make(map[string]bool)
	for _, p := range products {
		t.productsByID[p.ProductID] = p
		if !seen[p.Category] {
			seen[p.Category] = true
			t.categories = append(t.categories, p.Category)
		}
	}
	for _, s := range stores {
		t.storesByName[s.StoreName] = s
	}
	for _, d := range calendar {
		t.calendarByDay[d.Date] = d
	}

	return t
}

func (t *Tables) Product(id string) (Product, bool) {
	p, ok := t.productsByID[id]
	return p, ok
}

func (t *Tables) StoreByName(name string) (Store, bool) {
	s, ok := t.storesByName[name]
	return s, ok
}

func (t *Tables) StoreByID(id string) (Store, bool) {
	for _, s := range t.Stores {
		if s.StoreID == id {
			return s, true
		}
	}
	return Store{}, false
}

func (t *Tables) CalendarDay(date time.Time) (CalendarDay, bool) {
	d, ok := t.calendarByDay[date]
	return d, ok
}

// Categories returns category names in first-appearance order of the product master.
func (t *Tables) Categories() []string {
	out := make([]string, len(t.categories))
	copy(out, t.categories)
	return out
}

func (t *Tables) ProductIDsInCategory(category string) map[string]bool {
	ids := make(map[string]bool)
	for _, p := range t.Products {
		if p.Category == category {
			ids[p.ProductID] = true
		}
	}
	return ids
}
