package services

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"retail-dashboard/internal/models"
)

// Uncategorized labels sales whose product is missing from the master.
const Uncategorized = "Uncategorized"

// DailySales totals net sales and units per day, ascending by date.
func DailySales(sales []models.SalesRecord) []models.DailyPoint {
	byDate := make(map[time.Time]int)
	out := make([]models.DailyPoint, 0)
	for _, s := range sales {
		i, ok := byDate[s.Date]
		if !ok {
			i = len(out)
			byDate[s.Date] = i
			out = append(out, models.DailyPoint{Date: s.Date})
		}
		out[i].NetSalesAED += s.NetSalesAED
		out[i].UnitsSold += s.UnitsSold
	}

	slices.SortFunc(out, func(a, b models.DailyPoint) int {
		return a.Date.Compare(b.Date)
	})
	return out
}

// CategoryShare totals net sales per category, largest first and then by
// name, with each category's percentage of the grand total. A zero total
// leaves every share undefined.
func CategoryShare(sales []models.SalesRecord, catalog ProductCatalog) []models.CategoryShare {
	byCategory := make(map[string]int)
	out := make([]models.CategoryShare, 0)
	var total float64

	for _, s := range sales {
		category := Uncategorized
		if catalog != nil {
			if p, ok := catalog.Product(s.ProductID); ok && p.Category != "" {
				category = p.Category
			}
		}
		i, ok := byCategory[category]
		if !ok {
			i = len(out)
			byCategory[category] = i
			out = append(out, models.CategoryShare{Category: category})
		}
		out[i].NetSalesAED += s.NetSalesAED
		total += s.NetSalesAED
	}

	for i := range out {
		if total == 0 {
			out[i].SharePct = models.UndefinedMetric()
			continue
		}
		out[i].SharePct = models.DefinedMetric(100 * out[i].NetSalesAED / total)
	}

	slices.SortFunc(out, func(a, b models.CategoryShare) int {
		if c := cmp.Compare(b.NetSalesAED, a.NetSalesAED); c != 0 {
			return c
		}
		return strings.Compare(a.Category, b.Category)
	})
	return out
}
