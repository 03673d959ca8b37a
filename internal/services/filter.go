package services

import (
	"strings"
	"time"

	"retail-dashboard/internal/models"
)

// All is the selector value that disables a store or category predicate.
const All = "All"

// Filters narrows sales and inventory. Zero Start or End leaves that side of
// the date range open; both bounds are inclusive.
type Filters struct {
	Store    string
	Category string
	Start    time.Time
	End      time.Time
}

type FilteredTables struct {
	Sales     []models.SalesRecord
	Inventory []models.InventoryRecord
}

func isAll(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, All)
}

// Filter applies the store, category and date predicates to both
// transaction tables. Predicates are ANDed and row order is kept.
func Filter(t *models.Tables, f Filters) (FilteredTables, error) {
	if !f.Start.IsZero() && !f.End.IsZero() && f.End.Before(f.Start) {
		return FilteredTables{}, invalidArgument("end date %s is before start date %s",
			f.End.Format(time.DateOnly), f.Start.Format(time.DateOnly))
	}

	var storeID string
	if !isAll(f.Store) {
		s, err := resolveStore(t, f.Store)
		if err != nil {
			return FilteredTables{}, err
		}
		storeID = s.StoreID
	}

	var productIDs map[string]bool
	if !isAll(f.Category) {
		productIDs = t.ProductIDsInCategory(strings.TrimSpace(f.Category))
		if len(productIDs) == 0 {
			return FilteredTables{}, &LookupError{Kind: "category", Key: f.Category}
		}
	}

	keep := func(store, product string, date time.Time) bool {
		if storeID != "" && store != storeID {
			return false
		}
		if productIDs != nil && !productIDs[product] {
			return false
		}
		if !f.Start.IsZero() && date.Before(f.Start) {
			return false
		}
		if !f.End.IsZero() && date.After(f.End) {
			return false
		}
		return true
	}

	out := FilteredTables{
		Sales:     make([]models.SalesRecord, 0, len(t.Sales)),
		Inventory: make([]models.InventoryRecord, 0, len(t.Inventory)),
	}
	for _, s := range t.Sales {
		if keep(s.StoreID, s.ProductID, s.Date) {
			out.Sales = append(out.Sales, s)
		}
	}
	for _, inv := range t.Inventory {
		if keep(inv.StoreID, inv.ProductID, inv.Date) {
			out.Inventory = append(out.Inventory, inv)
		}
	}

	return out, nil
}

// resolveStore accepts a store name or, failing that, a store ID.
func resolveStore(t *models.Tables, key string) (models.Store, error) {
	key = strings.TrimSpace(key)
	if s, ok := t.StoreByName(key); ok {
		return s, nil
	}
	if s, ok := t.StoreByID(key); ok {
		return s, nil
	}
	return models.Store{}, &LookupError{Kind: "store", Key: key}
}
