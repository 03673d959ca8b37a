package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"retail-dashboard/internal/errors"
	"retail-dashboard/internal/models"
	"retail-dashboard/internal/services"
)

// Source tables can be reloaded at any time, so clients always revalidate.
const cacheControl = "private, no-cache"

var cacheHeaders = map[string]string{
	"Cache-Control": cacheControl,
}

type APIHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
	queries   queryParser
}

func NewAPIHandlers(analytics *services.Analytics, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		analytics: analytics,
		logger:    logger.With("component", "api"),
		queries:   newQueryParser(),
	}
}

func (h *APIHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	errors.WriteError(w, r, h.logger, err)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	errors.WriteSuccess(w, r, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, r, h.analytics.Stats())
}

func (h *APIHandlers) HandleReload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if _, err := h.analytics.Reload(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}

	errors.WriteSuccess(w, r, map[string]any{
		"reloaded": true,
		"duration": time.Since(start).String(),
		"stats":    h.analytics.Stats(),
	})
}

func (h *APIHandlers) HandleStores(w http.ResponseWriter, r *http.Request) {
	stores, err := h.analytics.Stores(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, r, stores, cacheHeaders)
}

func (h *APIHandlers) HandleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.analytics.Categories(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, r, categories, cacheHeaders)
}

func (h *APIHandlers) HandleProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.analytics.Products(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, r, products, cacheHeaders)
}

func (h *APIHandlers) HandleKPIs(w http.ResponseWriter, r *http.Request) {
	q, err := h.queries.fromURL(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	kpis, err := h.analytics.KPIs(r.Context(), q.filters())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, r, kpis, cacheHeaders)
}

func (h *APIHandlers) HandleRankings(w http.ResponseWriter, r *http.Request) {
	q, err := h.queries.fromURL(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rq, err := q.rankQuery(chi.URLParam(r, "direction"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ranked, err := h.analytics.Rankings(r.Context(), q.filters(), rq)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, r, ranked, cacheHeaders)
}

func (h *APIHandlers) HandleSalesTrend(w http.ResponseWriter, r *http.Request) {
	q, err := h.queries.fromURL(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	trend, err := h.analytics.SalesTrend(r.Context(), q.filters())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, r, trend, cacheHeaders)
}

func (h *APIHandlers) HandleCategoryShare(w http.ResponseWriter, r *http.Request) {
	q, err := h.queries.fromURL(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	shares, err := h.analytics.CategoryShare(r.Context(), q.filters())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, r, shares, cacheHeaders)
}

func (h *APIHandlers) HandleProductSeries(w http.ResponseWriter, r *http.Request) {
	series, err := h.analytics.ProductSeries(r.Context(), chi.URLParam(r, "productID"), r.URL.Query().Get("store"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, r, series, cacheHeaders)
}

type forecastResponse struct {
	*models.Forecast
	Chart []models.ChartPoint `json:"chart"`
}

func (h *APIHandlers) HandleForecast(w http.ResponseWriter, r *http.Request) {
	q, err := h.queries.fromURL(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	fc, err := h.analytics.Forecast(r.Context(), chi.URLParam(r, "productID"), q.Store, q.Periods)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, r, forecastResponse{Forecast: fc, Chart: fc.Chart()}, cacheHeaders)
}
