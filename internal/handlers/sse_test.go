package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retail-dashboard/internal/ui/templates"
)

func sseRequest(path, signals string) *http.Request {
	target := path
	if signals != "" {
		target += "?datastar=" + url.QueryEscape(signals)
	}
	return httptest.NewRequest(http.MethodGet, target, nil)
}

func TestSSEHandlers_HandleKPIs(t *testing.T) {
	handlers := NewSSEHandlers(createTestAnalytics(), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleKPIs(w, sseRequest("/sse/kpis", `{"store":"All","category":"All"}`))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")

	body := w.Body.String()
	assert.Contains(t, body, `id="`+templates.KPIsID+`"`)
	assert.Contains(t, body, "AED 1317.00")
}

func TestSSEHandlers_HandleKPIs_UndefinedMetrics(t *testing.T) {
	handlers := NewSSEHandlers(createTestAnalytics(), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleKPIs(w, sseRequest("/sse/kpis", `{"start":"2030-01-01"}`))

	body := w.Body.String()
	assert.Contains(t, body, "N/A")
	assert.NotContains(t, body, "NaN")
}

func TestSSEHandlers_HandleRankings(t *testing.T) {
	handlers := NewSSEHandlers(createTestAnalytics(), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleRankings(w, sseRequest("/sse/rankings", `{"metric":"net_sales","n":1}`))

	body := w.Body.String()
	assert.Contains(t, body, `id="`+templates.TopRankingID+`"`)
	assert.Contains(t, body, `id="`+templates.BottomRankingID+`"`)
	assert.Contains(t, body, "Widget")
	assert.Contains(t, body, "Apple Juice")
}

func TestSSEHandlers_HandleSalesTrend(t *testing.T) {
	handlers := NewSSEHandlers(createTestAnalytics(), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleSalesTrend(w, sseRequest("/sse/sales-trend", ""))

	body := w.Body.String()
	assert.Contains(t, body, "trendData")
	assert.Contains(t, body, "categoryData")
}

func TestSSEHandlers_HandleForecast(t *testing.T) {
	handlers := NewSSEHandlers(createTestAnalytics(), testLogger())

	t.Run("fitted", func(t *testing.T) {
		w := httptest.NewRecorder()
		handlers.HandleForecast(w, sseRequest("/sse/forecast", `{"productId":"P1","periods":3}`))

		body := w.Body.String()
		assert.Contains(t, body, `id="`+templates.ForecastID+`"`)
		assert.Contains(t, body, "forecastData")
		assert.Contains(t, body, "2024-01-13")
	})

	t.Run("insufficient history", func(t *testing.T) {
		w := httptest.NewRecorder()
		handlers.HandleForecast(w, sseRequest("/sse/forecast", `{"productId":"P3"}`))

		assert.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, "Cannot forecast this product")
		assert.Contains(t, body, "have 1 observations, need 10")
	})

	t.Run("no product", func(t *testing.T) {
		w := httptest.NewRecorder()
		handlers.HandleForecast(w, sseRequest("/sse/forecast", `{"productId":""}`))

		assert.Contains(t, w.Body.String(), "Select a product first")
	})

	t.Run("unknown product", func(t *testing.T) {
		w := httptest.NewRecorder()
		handlers.HandleForecast(w, sseRequest("/sse/forecast", `{"productId":"P404"}`))

		body := w.Body.String()
		assert.Contains(t, body, `id="`+templates.StatusID+`"`)
		assert.Contains(t, body, "P404")
	})
}

func TestSSEHandlers_HandleRefreshAll(t *testing.T) {
	handlers := NewSSEHandlers(createTestAnalytics(), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleRefreshAll(w, sseRequest("/sse/refresh-all", `{"store":"Dubai Mall","category":"All","n":10}`))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	for _, id := range []string{templates.KPIsID, templates.TopRankingID, templates.BottomRankingID, templates.StatusID} {
		assert.Contains(t, body, `id="`+id+`"`)
	}
	assert.Contains(t, body, "trendData")
	assert.NotContains(t, body, "Abu Dhabi")
}

func TestSSEHandlers_BadSignals(t *testing.T) {
	handlers := NewSSEHandlers(createTestAnalytics(), testLogger())

	tests := []struct {
		name    string
		signals string
		want    string
	}{
		{"bad date", `{"start":"yesterday"}`, "YYYY-MM-DD"},
		{"bad metric", `{"metric":"margin"}`, "metric must be one of"},
		{"unknown store", `{"store":"Mars"}`, "unknown store"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handlers.HandleRefreshAll(w, sseRequest("/sse/refresh-all", tt.signals))

			body := w.Body.String()
			assert.Contains(t, body, `id="`+templates.StatusID+`"`)
			assert.Contains(t, body, tt.want)
			assert.False(t, strings.Contains(body, templates.KPIsID))
		})
	}
}

func BenchmarkSSEHandlers_HandleRefreshAll(b *testing.B) {
	handlers := NewSSEHandlers(createTestAnalytics(), testLogger())
	req := sseRequest("/sse/refresh-all", `{"store":"All"}`)

	for b.Loop() {
		w := httptest.NewRecorder()
		handlers.HandleRefreshAll(w, req)
	}
}
