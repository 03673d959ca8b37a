package services

import (
	"slices"
	"time"

	"retail-dashboard/internal/models"
)

// CalendarLookup resolves a date to its calendar attributes.
type CalendarLookup interface {
	CalendarDay(date time.Time) (models.CalendarDay, bool)
}

// BuildTimeSeries aggregates one product's sales by day, optionally limited
// to a single store, and attaches calendar attributes. Dates missing from
// the calendar keep nil attributes. The result is ascending by date.
func BuildTimeSeries(sales []models.SalesRecord, calendar CalendarLookup, productID, storeID string) []models.SeriesPoint {
	byDate := make(map[time.Time]int)
	series := make([]models.SeriesPoint, 0)

	for _, s := range sales {
		if s.ProductID != productID {
			continue
		}
		if storeID != "" && s.StoreID != storeID {
			continue
		}
		i, ok := byDate[s.Date]
		if !ok {
			i = len(series)
			byDate[s.Date] = i
			series = append(series, models.SeriesPoint{Date: s.Date})
		}
		series[i].UnitsSold += s.UnitsSold
		series[i].NetSalesAED += s.NetSalesAED
	}

	slices.SortFunc(series, func(a, b models.SeriesPoint) int {
		return a.Date.Compare(b.Date)
	})

	if calendar != nil {
		for i := range series {
			day, ok := calendar.CalendarDay(series[i].Date)
			if !ok {
				continue
			}
			holiday, dow := day.IsHoliday, day.DayOfWeek
			series[i].IsHoliday = &holiday
			series[i].DayOfWeek = &dow
		}
	}

	return series
}
