package models

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"time"
)

// ErrUndefinedMetric is reported by a Metric whose inputs were degenerate,
// such as a percentage of zero total sales.
var ErrUndefinedMetric = errors.New("metric undefined for the selected data")

// Metric is a KPI value that may be undefined. Undefined metrics encode as
// JSON null and display as "N/A".
type Metric struct {
	Value   float64
	Defined bool
}

func DefinedMetric(v float64) Metric {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return UndefinedMetric()
	}
	return Metric{Value: v, Defined: true}
}

func UndefinedMetric() Metric {
	return Metric{Value: math.NaN()}
}

func (m Metric) Err() error {
	if !m.Defined {
		return ErrUndefinedMetric
	}
	return nil
}

func (m Metric) String() string {
	if !m.Defined {
		return "N/A"
	}
	return strconv.FormatFloat(m.Value, 'f', 2, 64)
}

func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(m.Value)
}

func (m *Metric) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = UndefinedMetric()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = DefinedMetric(v)
	return nil
}

type KPIs struct {
	TotalSales    float64 `json:"total_sales"`
	TotalUnits    float64 `json:"total_units"`
	StockoutCount int     `json:"stockout_count"`
	AvgStockDays  Metric  `json:"avg_stock_days"`
	PromoPct      Metric  `json:"promo_pct"`
	ActiveSKUs    int     `json:"active_skus"`
	ActiveStores  int     `json:"active_stores"`
}

type RankedProduct struct {
	Rank        int     `json:"rank"`
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Value       float64 `json:"value"`
}

type SeriesPoint struct {
	Date        time.Time `json:"date"`
	UnitsSold   float64   `json:"units_sold"`
	NetSalesAED float64   `json:"net_sales_aed"`
	IsHoliday   *bool     `json:"is_holiday"`
	DayOfWeek   *string   `json:"day_of_week"`
}

type DailyPoint struct {
	Date        time.Time `json:"date"`
	NetSalesAED float64   `json:"net_sales_aed"`
	UnitsSold   float64   `json:"units_sold"`
}

type CategoryShare struct {
	Category    string  `json:"category"`
	NetSalesAED float64 `json:"net_sales_aed"`
	SharePct    Metric  `json:"share_pct"`
}

type ForecastPoint struct {
	Date      time.Time `json:"date"`
	UnitsSold float64   `json:"units_sold"`
}

const (
	TagActual   = "Actual"
	TagForecast = "Forecast"
)

// ChartPoint is one row of the combined actual/forecast chart series.
type ChartPoint struct {
	Date      time.Time `json:"date"`
	UnitsSold float64   `json:"units_sold"`
	Tag       string    `json:"tag"`
}

type Forecast struct {
	ProductID string          `json:"product_id"`
	StoreID   string          `json:"store_id,omitempty"`
	Slope     float64         `json:"slope"`
	Intercept float64         `json:"intercept"`
	Actual    []SeriesPoint   `json:"actual"`
	Points    []ForecastPoint `json:"forecast"`
}

// Chart merges the observed and predicted units into one date-ordered series.
func (f *Forecast) Chart() []ChartPoint {
	out := make([]ChartPoint, 0, len(f.Actual)+len(f.Points))
	for _, p := range f.Actual {
		out = append(out, ChartPoint{Date: p.Date, UnitsSold: p.UnitsSold, Tag: TagActual})
	}
	for _, p := range f.Points {
		out = append(out, ChartPoint{Date: p.Date, UnitsSold: p.UnitsSold, Tag: TagForecast})
	}
	return out
}

// Values returns the predicted units in horizon order.
func (f *Forecast) Values() []float64 {
	out := make([]float64, len(f.Points))
	for i, p := range f.Points {
		out[i] = p.UnitsSold
	}
	return out
}
