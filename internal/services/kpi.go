package services

import (
	"time"

	"retail-dashboard/internal/models"
)

type stockKey struct {
	storeID   string
	productID string
	date      time.Time
}

// ComputeKPIs reduces already-filtered tables to the dashboard's headline
// figures. Degenerate inputs yield undefined metrics, never a panic.
func ComputeKPIs(inventory []models.InventoryRecord, sales []models.SalesRecord) models.KPIs {
	var k models.KPIs

	var promoSales float64
	unitsByKey := make(map[stockKey]float64, len(sales))
	skus := make(map[string]struct{})
	stores := make(map[string]struct{})

	for _, s := range sales {
		k.TotalSales += s.NetSalesAED
		k.TotalUnits += s.UnitsSold
		if s.Promoted() {
			promoSales += s.NetSalesAED
		}
		unitsByKey[stockKey{s.StoreID, s.ProductID, s.Date}] += s.UnitsSold
		skus[s.ProductID] = struct{}{}
		stores[s.StoreID] = struct{}{}
	}
	k.ActiveSKUs = len(skus)
	k.ActiveStores = len(stores)

	var coverSum float64
	var coverRows int
	for _, inv := range inventory {
		if inv.ClosingStock == 0 {
			k.StockoutCount++
		}
		units := unitsByKey[stockKey{inv.StoreID, inv.ProductID, inv.Date}]
		if units == 0 {
			continue
		}
		coverSum += float64(inv.ClosingStock) / units
		coverRows++
	}

	if coverRows > 0 {
		k.AvgStockDays = models.DefinedMetric(coverSum / float64(coverRows))
	} else {
		k.AvgStockDays = models.UndefinedMetric()
	}

	if k.TotalSales != 0 {
		k.PromoPct = models.DefinedMetric(100 * promoSales / k.TotalSales)
	} else {
		k.PromoPct = models.UndefinedMetric()
	}

	return k
}
