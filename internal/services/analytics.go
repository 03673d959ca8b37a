package services

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"retail-dashboard/internal/loader"
	"retail-dashboard/internal/models"
	"retail-dashboard/internal/observability"
)

// TableSource hands out the loaded tables for a set of locators.
type TableSource interface {
	Get(ctx context.Context, locs loader.Locators) (*models.Tables, error)
	Invalidate(locs loader.Locators)
}

// StaticSource serves a fixed table set regardless of locators.
type StaticSource struct {
	Tables *models.Tables
}

func (s StaticSource) Get(context.Context, loader.Locators) (*models.Tables, error) {
	return s.Tables, nil
}

func (StaticSource) Invalidate(loader.Locators) {}

type Options struct {
	Locators        loader.Locators
	MinObservations int
	Horizon         int
	MaxHorizon      int
	Logger          *slog.Logger
	Metrics         *observability.Metrics
}

// RankQuery selects the ranking metric, direction and length.
type RankQuery struct {
	Metric RankMetric
	Order  Order
	N      int
}

// Analytics runs the filter and reduction stages over the current tables.
type Analytics struct {
	source     TableSource
	locators   loader.Locators
	forecaster *Forecaster
	horizon    int
	maxHorizon int
	logger     *slog.Logger
	metrics    *observability.Metrics

	mu          sync.RWMutex
	lastLoaded  time.Time
	rows        map[string]int
	queries     atomic.Int64
	forecasts   atomic.Int64
	loadFailure atomic.Int64
}

const (
	DefaultHorizon    = 14
	DefaultMaxHorizon = 90
	DefaultRankN      = 10
)

func NewAnalytics(source TableSource, opts Options) *Analytics {
	a := &Analytics{
		source:     source,
		locators:   opts.Locators,
		forecaster: NewForecaster(opts.MinObservations),
		horizon:    opts.Horizon,
		maxHorizon: opts.MaxHorizon,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
	}
	if a.horizon <= 0 {
		a.horizon = DefaultHorizon
	}
	if a.maxHorizon <= 0 {
		a.maxHorizon = DefaultMaxHorizon
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.logger = a.logger.With("component", "analytics")
	return a
}

// Tables returns the current table set, loading it on first use.
func (a *Analytics) Tables(ctx context.Context) (*models.Tables, error) {
	t, err := a.source.Get(ctx, a.locators)
	if err != nil {
		a.loadFailure.Add(1)
		return nil, err
	}
	a.mu.Lock()
	if a.rows == nil || !t.LoadedAt.Equal(a.lastLoaded) {
		a.lastLoaded = t.LoadedAt
		a.rows = map[string]int{
			loader.TableProducts:  len(t.Products),
			loader.TableStores:    len(t.Stores),
			loader.TableCalendar:  len(t.Calendar),
			loader.TableInventory: len(t.Inventory),
			loader.TableSales:     len(t.Sales),
		}
	}
	a.mu.Unlock()
	return t, nil
}

// Reload drops the cached tables and loads them again.
func (a *Analytics) Reload(ctx context.Context) (*models.Tables, error) {
	a.source.Invalidate(a.locators)
	t, err := a.Tables(ctx)
	if err != nil {
		a.logger.ErrorContext(ctx, "reload failed", "error", err)
		return nil, err
	}
	a.logger.InfoContext(ctx, "tables reloaded",
		"sales", len(t.Sales),
		"inventory", len(t.Inventory),
		"products", len(t.Products),
	)
	return t, nil
}

func (a *Analytics) filtered(ctx context.Context, f Filters) (*models.Tables, FilteredTables, error) {
	a.queries.Add(1)
	t, err := a.Tables(ctx)
	if err != nil {
		return nil, FilteredTables{}, err
	}
	ft, err := Filter(t, f)
	if err != nil {
		return nil, FilteredTables{}, err
	}
	return t, ft, nil
}

func filterAttrs(f Filters) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("filter.store", f.Store),
		attribute.String("filter.category", f.Category),
	}
}

func (a *Analytics) KPIs(ctx context.Context, f Filters) (k models.KPIs, err error) {
	ctx, span := observability.StartSpan(ctx, "analytics.KPIs", filterAttrs(f)...)
	defer func() { observability.EndSpan(span, err) }()

	_, ft, err := a.filtered(ctx, f)
	if err != nil {
		return models.KPIs{}, err
	}
	return ComputeKPIs(ft.Inventory, ft.Sales), nil
}

func (a *Analytics) Rankings(ctx context.Context, f Filters, q RankQuery) (out []models.RankedProduct, err error) {
	ctx, span := observability.StartSpan(ctx, "analytics.Rankings", filterAttrs(f)...)
	defer func() { observability.EndSpan(span, err) }()

	t, ft, err := a.filtered(ctx, f)
	if err != nil {
		return nil, err
	}
	return RankProducts(ft.Sales, t, q.Metric, q.N, q.Order)
}

func (a *Analytics) SalesTrend(ctx context.Context, f Filters) ([]models.DailyPoint, error) {
	_, ft, err := a.filtered(ctx, f)
	if err != nil {
		return nil, err
	}
	return DailySales(ft.Sales), nil
}

func (a *Analytics) CategoryShare(ctx context.Context, f Filters) ([]models.CategoryShare, error) {
	t, ft, err := a.filtered(ctx, f)
	if err != nil {
		return nil, err
	}
	return CategoryShare(ft.Sales, t), nil
}

// ProductSeries builds the daily series for a product, optionally limited
// to one store given by name or ID.
func (a *Analytics) ProductSeries(ctx context.Context, productID, store string) ([]models.SeriesPoint, error) {
	a.queries.Add(1)
	t, err := a.Tables(ctx)
	if err != nil {
		return nil, err
	}
	series, _, err := seriesFor(t, productID, store)
	return series, err
}

func seriesFor(t *models.Tables, productID, store string) ([]models.SeriesPoint, string, error) {
	productID = strings.TrimSpace(productID)
	if _, ok := t.Product(productID); !ok {
		return nil, "", &LookupError{Kind: "product", Key: productID}
	}
	var storeID string
	if !isAll(store) {
		s, err := resolveStore(t, store)
		if err != nil {
			return nil, "", err
		}
		storeID = s.StoreID
	}
	return BuildTimeSeries(t.Sales, t, productID, storeID), storeID, nil
}

// Horizon clamps a requested forecast length. Zero selects the default.
func (a *Analytics) Horizon(periods int) (int, error) {
	switch {
	case periods == 0:
		return a.horizon, nil
	case periods < 0:
		return 0, invalidArgument("forecast periods must be positive, got %d", periods)
	case periods > a.maxHorizon:
		return 0, invalidArgument("forecast periods %d exceeds maximum %d", periods, a.maxHorizon)
	}
	return periods, nil
}

// Forecast projects units sold for a product. periods of zero uses the
// configured horizon.
func (a *Analytics) Forecast(ctx context.Context, productID, store string, periods int) (fc *models.Forecast, err error) {
	ctx, span := observability.StartSpan(ctx, "analytics.Forecast",
		attribute.String("product.id", productID),
		attribute.Int("periods", periods),
	)
	defer func() {
		observability.EndSpan(span, err)
		a.metrics.ObserveForecast(forecastOutcome(err))
	}()

	a.forecasts.Add(1)
	periods, err = a.Horizon(periods)
	if err != nil {
		return nil, err
	}
	t, err := a.Tables(ctx)
	if err != nil {
		return nil, err
	}
	series, storeID, err := seriesFor(t, productID, store)
	if err != nil {
		return nil, err
	}

	fc, err = a.forecaster.Forecast(series, periods)
	if err != nil {
		a.logger.DebugContext(ctx, "forecast refused", "product_id", productID, "error", err)
		return nil, err
	}
	fc.ProductID = strings.TrimSpace(productID)
	fc.StoreID = storeID
	return fc, nil
}

func forecastOutcome(err error) string {
	switch err.(type) {
	case nil:
		return "ok"
	case *InsufficientDataError:
		return "insufficient_data"
	}
	return "error"
}

func (a *Analytics) Stores(ctx context.Context) ([]models.Store, error) {
	t, err := a.Tables(ctx)
	if err != nil {
		return nil, err
	}
	return t.Stores, nil
}

func (a *Analytics) Categories(ctx context.Context) ([]string, error) {
	t, err := a.Tables(ctx)
	if err != nil {
		return nil, err
	}
	return t.Categories(), nil
}

// Products lists the product master, optionally limited to one category.
func (a *Analytics) Products(ctx context.Context, category string) ([]models.Product, error) {
	t, err := a.Tables(ctx)
	if err != nil {
		return nil, err
	}
	if isAll(category) {
		return t.Products, nil
	}
	category = strings.TrimSpace(category)
	out := make([]models.Product, 0)
	for _, p := range t.Products {
		if p.Category == category {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, &LookupError{Kind: "category", Key: category}
	}
	return out, nil
}

type Stats struct {
	LoadedAt        time.Time      `json:"loaded_at"`
	Rows            map[string]int `json:"rows"`
	Queries         int64          `json:"queries"`
	Forecasts       int64          `json:"forecasts"`
	LoadFailures    int64          `json:"load_failures"`
	MinObservations int            `json:"min_forecast_observations"`
	HorizonDays     int            `json:"forecast_horizon_days"`
	MaxHorizonDays  int            `json:"forecast_max_horizon_days"`
}

// Stats reports row counts of the cached tables and query counters. It does
// not trigger a load.
func (a *Analytics) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	rows := make(map[string]int, len(a.rows))
	for k, v := range a.rows {
		rows[k] = v
	}
	return Stats{
		LoadedAt:        a.lastLoaded,
		Rows:            rows,
		Queries:         a.queries.Load(),
		Forecasts:       a.forecasts.Load(),
		LoadFailures:    a.loadFailure.Load(),
		MinObservations: a.forecaster.required(),
		HorizonDays:     a.horizon,
		MaxHorizonDays:  a.maxHorizon,
	}
}
