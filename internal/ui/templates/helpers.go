// Package templates renders the dashboard page and the fragments the SSE
// handlers patch into it. The *_templ.go files are generated from the
// .templ sources next to them.
package templates

//go:generate templ generate

import (
	"encoding/json"
	"fmt"
	"strconv"

	"retail-dashboard/internal/models"
)

// Element IDs targeted by datastar patches.
const (
	KPIsID          = "kpi-cards"
	TopRankingID    = "top-products"
	BottomRankingID = "bottom-products"
	ForecastID      = "forecast-panel"
	StatusID        = "status-banner"
)

// PageData fills the selector options of the dashboard page.
type PageData struct {
	Stores     []models.Store
	Categories []string
	Products   []models.Product
	Horizon    int
	MaxHorizon int
}

// signals mirrors the query parameters read by the SSE handlers. Field order
// is the order datastar sees.
type signals struct {
	Store     string `json:"store"`
	Category  string `json:"category"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Metric    string `json:"metric"`
	N         int    `json:"n"`
	ProductID string `json:"productId"`
	Periods   int    `json:"periods"`
}

func pageSignals(data PageData) string {
	b, err := json.Marshal(signals{
		Store:    "All",
		Category: "All",
		Metric:   "net_sales",
		N:        10,
		Periods:  data.Horizon,
	})
	if err != nil {
		return "{}"
	}
	return string(b)
}

func money(v float64) string {
	return fmt.Sprintf("AED %.2f", v)
}

func count(n int) string {
	return strconv.Itoa(n)
}

func units(v float64) string {
	return fmt.Sprintf("%.0f", v)
}

// promoShare appends a percent sign only to defined values, so an undefined
// share reads "N/A".
func promoShare(m models.Metric) string {
	if !m.Defined {
		return m.String()
	}
	return m.String() + "%"
}

func rankValue(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func productLabel(p models.Product) string {
	return p.ProductID + " " + p.ProductName
}

func forecastSummary(fc *models.Forecast) string {
	return fmt.Sprintf("trend %+.2f units/day, next %d days", fc.Slope, len(fc.Points))
}

func forecastLine(p models.ForecastPoint) string {
	return fmt.Sprintf("%s: %.1f", p.Date.Format("2006-01-02"), p.UnitsSold)
}

const chartScript = `<script>
(function(){
  const charts = {};
  function draw(id, type, labels, datasets){
    const el = document.getElementById(id);
    if (!el) return;
    if (charts[id]) charts[id].destroy();
    charts[id] = new Chart(el, {type, data: {labels, datasets}, options: {responsive: true}});
  }
  window.drawTrend = function(points){
    if (!points) return;
    draw('trend-chart', 'line', points.map(p => p.date.slice(0,10)),
      [{label: 'Net Sales (AED)', data: points.map(p => p.net_sales_aed)}]);
  };
  window.drawCategories = function(shares){
    if (!shares) return;
    draw('category-chart', 'bar', shares.map(s => s.category),
      [{label: 'Net Sales (AED)', data: shares.map(s => s.net_sales_aed)}]);
  };
  window.drawForecast = function(points){
    if (!points) return;
    const labels = points.map(p => p.date.slice(0,10));
    draw('forecast-chart', 'line', labels, [
      {label: 'Actual', data: points.map(p => p.tag === 'Actual' ? p.units_sold : null)},
      {label: 'Forecast', data: points.map(p => p.tag === 'Forecast' ? p.units_sold : null), borderDash: [6,4]}
    ]);
  };
})();
</script>`
