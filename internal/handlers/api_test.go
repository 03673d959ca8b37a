package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retail-dashboard/internal/loader"
	"retail-dashboard/internal/models"
	"retail-dashboard/internal/services"
	"retail-dashboard/internal/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createTestAnalytics() *services.Analytics {
	return services.NewAnalytics(services.StaticSource{Tables: testutil.SampleTables()}, services.Options{})
}

type brokenSource struct{}

func (brokenSource) Get(context.Context, loader.Locators) (*models.Tables, error) {
	return nil, &loader.LoadError{Table: loader.TableSales, Locator: "sales.csv", Err: errors.New("connection refused")}
}

func (brokenSource) Invalidate(loader.Locators) {}

func newTestRouter(a *services.Analytics) http.Handler {
	logger := testLogger()
	api := NewAPIHandlers(a, logger)
	export := NewExportHandlers(a, logger)

	r := chi.NewRouter()
	r.Get("/health", api.HandleHealth)
	r.Get("/admin/stats", api.HandleStats)
	r.Post("/admin/reload", api.HandleReload)
	r.Get("/api/stores", api.HandleStores)
	r.Get("/api/categories", api.HandleCategories)
	r.Get("/api/products", api.HandleProducts)
	r.Get("/api/kpis", api.HandleKPIs)
	r.Get("/api/rankings/{direction}", api.HandleRankings)
	r.Get("/api/sales-trend", api.HandleSalesTrend)
	r.Get("/api/category-share", api.HandleCategoryShare)
	r.Get("/api/products/{productID}/timeseries", api.HandleProductSeries)
	r.Get("/api/products/{productID}/forecast", api.HandleForecast)
	r.Get("/api/export/rankings.xlsx", export.HandleRankings)
	return r
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

func doGet(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func TestAPIHandlers_HandleHealth(t *testing.T) {
	w, env := doGet(t, newTestRouter(createTestAnalytics()), "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)

	var health map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &health))
	assert.Equal(t, "healthy", health["status"])
	assert.NotEmpty(t, health["timestamp"])
}

func TestAPIHandlers_HandleKPIs(t *testing.T) {
	router := newTestRouter(createTestAnalytics())

	w, env := doGet(t, router, "/api/kpis")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "private, no-cache", w.Header().Get("Cache-Control"))

	var k models.KPIs
	require.NoError(t, json.Unmarshal(env.Data, &k))
	assert.InDelta(t, 1317.0, k.TotalSales, 1e-9)
	assert.Equal(t, 2, k.StockoutCount)

	_, env = doGet(t, router, "/api/kpis?store=Abu+Dhabi&start=2024-01-02&end=2024-01-02")
	require.NoError(t, json.Unmarshal(env.Data, &k))
	assert.InDelta(t, 15.0, k.TotalSales, 1e-9)
	assert.True(t, k.PromoPct.Defined)
	assert.InDelta(t, 100.0, k.PromoPct.Value, 1e-9)
}

func TestAPIHandlers_UndefinedMetricsEncodeAsNull(t *testing.T) {
	router := newTestRouter(createTestAnalytics())

	w, env := doGet(t, router, "/api/kpis?start=2025-01-01")
	require.Equal(t, http.StatusOK, w.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &raw))
	assert.Nil(t, raw["promo_pct"])
	assert.Nil(t, raw["avg_stock_days"])
	assert.Equal(t, 0.0, raw["total_sales"])
}

func TestAPIHandlers_HandleRankings(t *testing.T) {
	router := newTestRouter(createTestAnalytics())

	tests := []struct {
		target string
		want   []string
	}{
		{"/api/rankings/top", []string{"P1", "P2", "P3"}},
		{"/api/rankings/bottom?n=2", []string{"P3", "P2"}},
		{"/api/rankings/top?metric=units_sold&n=1", []string{"P1"}},
		{"/api/rankings/top?category=Beverages", []string{"P3"}},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			w, env := doGet(t, router, tt.target)
			require.Equal(t, http.StatusOK, w.Code)

			var ranked []models.RankedProduct
			require.NoError(t, json.Unmarshal(env.Data, &ranked))
			ids := make([]string, len(ranked))
			for i, r := range ranked {
				ids[i] = r.ProductID
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestAPIHandlers_ErrorMapping(t *testing.T) {
	router := newTestRouter(createTestAnalytics())

	tests := []struct {
		name   string
		target string
		status int
		code   string
	}{
		{"unknown store", "/api/kpis?store=Mars", http.StatusNotFound, "NOT_FOUND"},
		{"unknown category", "/api/sales-trend?category=Toys", http.StatusNotFound, "NOT_FOUND"},
		{"bad date", "/api/kpis?start=01-02-2024", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"inverted range", "/api/kpis?start=2024-01-05&end=2024-01-01", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad metric", "/api/rankings/top?metric=margin", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad n", "/api/rankings/top?n=ten", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"negative n", "/api/rankings/top?n=-1", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad direction", "/api/rankings/sideways", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown product", "/api/products/P404/timeseries", http.StatusNotFound, "NOT_FOUND"},
		{"short history", "/api/products/P2/forecast", http.StatusUnprocessableEntity, "INSUFFICIENT_DATA"},
		{"horizon too long", "/api/products/P1/forecast?periods=500", http.StatusBadRequest, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := doGet(t, router, tt.target)
			assert.Equal(t, tt.status, w.Code)
			assert.False(t, env.Success)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestAPIHandlers_LoadFailure(t *testing.T) {
	a := services.NewAnalytics(brokenSource{}, services.Options{})
	router := newTestRouter(a)

	w, env := doGet(t, router, "/api/stores")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "LOAD_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Details, "sales.csv")

	req := httptest.NewRequest(http.MethodPost, "/admin/reload", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAPIHandlers_MasterLists(t *testing.T) {
	router := newTestRouter(createTestAnalytics())

	_, env := doGet(t, router, "/api/stores")
	var stores []models.Store
	require.NoError(t, json.Unmarshal(env.Data, &stores))
	assert.Len(t, stores, 2)

	_, env = doGet(t, router, "/api/categories")
	var categories []string
	require.NoError(t, json.Unmarshal(env.Data, &categories))
	assert.Equal(t, []string{"Hardware", "Beverages"}, categories)

	_, env = doGet(t, router, "/api/products?category=Hardware")
	var products []models.Product
	require.NoError(t, json.Unmarshal(env.Data, &products))
	assert.Len(t, products, 2)
}

func TestAPIHandlers_TrendAndShare(t *testing.T) {
	router := newTestRouter(createTestAnalytics())

	_, env := doGet(t, router, "/api/sales-trend?end=2024-01-02")
	var trend []models.DailyPoint
	require.NoError(t, json.Unmarshal(env.Data, &trend))
	require.Len(t, trend, 2)
	assert.InDelta(t, 80.0, trend[0].NetSalesAED, 1e-9)

	_, env = doGet(t, router, "/api/category-share")
	var shares []models.CategoryShare
	require.NoError(t, json.Unmarshal(env.Data, &shares))
	require.Len(t, shares, 2)
	assert.Equal(t, "Hardware", shares[0].Category)
}

func TestAPIHandlers_SeriesAndForecast(t *testing.T) {
	router := newTestRouter(createTestAnalytics())

	_, env := doGet(t, router, "/api/products/P1/timeseries?store=Dubai+Mall")
	var series []models.SeriesPoint
	require.NoError(t, json.Unmarshal(env.Data, &series))
	require.Len(t, series, 12)
	require.NotNil(t, series[0].IsHoliday)
	assert.True(t, *series[0].IsHoliday)

	w, env := doGet(t, router, "/api/products/P1/forecast?periods=3")
	require.Equal(t, http.StatusOK, w.Code)

	var fc struct {
		ProductID string                 `json:"product_id"`
		Slope     float64                `json:"slope"`
		Points    []models.ForecastPoint `json:"forecast"`
		Chart     []models.ChartPoint    `json:"chart"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &fc))
	assert.Equal(t, "P1", fc.ProductID)
	assert.InDelta(t, 1.0, fc.Slope, 1e-9)
	require.Len(t, fc.Points, 3)
	assert.InDelta(t, 17.0, fc.Points[0].UnitsSold, 1e-6)
	assert.Len(t, fc.Chart, 15)
	assert.Equal(t, models.TagForecast, fc.Chart[14].Tag)
}

func TestAPIHandlers_StatsAndReload(t *testing.T) {
	router := newTestRouter(createTestAnalytics())

	req := httptest.NewRequest(http.MethodPost, "/admin/reload", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	_, env := doGet(t, router, "/admin/stats")
	var stats services.Stats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 15, stats.Rows[loader.TableSales])
	assert.Equal(t, services.DefaultHorizon, stats.HorizonDays)
}

func BenchmarkAPIHandlers_HandleKPIs(b *testing.B) {
	router := newTestRouter(createTestAnalytics())
	req := httptest.NewRequest(http.MethodGet, "/api/kpis?store=Dubai+Mall", nil)

	for b.Loop() {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}
}
