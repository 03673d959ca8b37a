package services

import (
	"cmp"
	"slices"
	"strings"

	"retail-dashboard/internal/models"
)

type RankMetric string

const (
	MetricNetSales  RankMetric = "net_sales"
	MetricUnitsSold RankMetric = "units_sold"
)

func ParseRankMetric(s string) (RankMetric, error) {
	switch RankMetric(strings.ToLower(strings.TrimSpace(s))) {
	case "", MetricNetSales:
		return MetricNetSales, nil
	case MetricUnitsSold:
		return MetricUnitsSold, nil
	}
	return "", invalidArgument("unknown ranking metric %q", s)
}

func (m RankMetric) value(s models.SalesRecord) float64 {
	if m == MetricUnitsSold {
		return s.UnitsSold
	}
	return s.NetSalesAED
}

type Order string

const (
	Descending Order = "top"
	Ascending  Order = "bottom"
)

func ParseOrder(s string) (Order, error) {
	switch Order(strings.ToLower(strings.TrimSpace(s))) {
	case "", Descending:
		return Descending, nil
	case Ascending:
		return Ascending, nil
	}
	return "", invalidArgument("unknown ranking direction %q", s)
}

// ProductCatalog resolves product IDs to master rows.
type ProductCatalog interface {
	Product(id string) (models.Product, bool)
}

// RankProducts sums metric per product and returns the first n groups in
// the requested order. Ties keep the order in which each product first
// appears in sales. n <= 0 returns every group.
func RankProducts(sales []models.SalesRecord, catalog ProductCatalog, metric RankMetric, n int, order Order) ([]models.RankedProduct, error) {
	if metric != MetricNetSales && metric != MetricUnitsSold {
		return nil, invalidArgument("unknown ranking metric %q", metric)
	}
	if order != Descending && order != Ascending {
		return nil, invalidArgument("unknown ranking direction %q", order)
	}

	index := make(map[string]int)
	groups := make([]models.RankedProduct, 0)
	for _, s := range sales {
		i, ok := index[s.ProductID]
		if !ok {
			i = len(groups)
			index[s.ProductID] = i
			groups = append(groups, models.RankedProduct{ProductID: s.ProductID})
		}
		groups[i].Value += metric.value(s)
	}

	slices.SortStableFunc(groups, func(a, b models.RankedProduct) int {
		if order == Ascending {
			return cmp.Compare(a.Value, b.Value)
		}
		return cmp.Compare(b.Value, a.Value)
	})

	if n > 0 && n < len(groups) {
		groups = groups[:n]
	}

	for i := range groups {
		groups[i].Rank = i + 1
		if catalog != nil {
			if p, ok := catalog.Product(groups[i].ProductID); ok {
				groups[i].ProductName = p.ProductName
			}
		}
	}

	return groups, nil
}
