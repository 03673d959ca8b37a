// Package loader reads the five retail source tables from files or URLs
// into typed, validated in-memory tables.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"retail-dashboard/internal/models"
	"retail-dashboard/internal/observability"
)

const (
	DefaultDateLayout  = "2006-01-02"
	DefaultLoadTimeout = 30 * time.Second
)

var (
	ErrEmptySource   = errors.New("source is empty")
	ErrMissingColumn = errors.New("required column missing")
	ErrEmptyKey      = errors.New("key column is empty")
)

// LoadError reports an unreachable or malformed source.
type LoadError struct {
	Table   string
	Locator string
	Row     int
	Column  string
	Err     error
}

func (e *LoadError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "load %s from %q", e.Table, e.Locator)
	if e.Row > 0 {
		fmt.Fprintf(&b, " row %d", e.Row)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " column %s", e.Column)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Locators names the five sources. It is comparable and keys the Cache.
type Locators struct {
	Products  string
	Stores    string
	Calendar  string
	Inventory string
	Sales     string
}

func (l Locators) key() string {
	return strings.Join([]string{l.Products, l.Stores, l.Calendar, l.Inventory, l.Sales}, "\x00")
}

type Options struct {
	DateLayout string
	// LoadTimeout bounds a load shared through the Cache, which does not
	// inherit any single caller's deadline.
	LoadTimeout time.Duration
	HTTPClient  *http.Client
	Logger      *slog.Logger
	Metrics     *observability.Metrics
}

type Loader struct {
	dateLayout  string
	loadTimeout time.Duration
	client      *http.Client
	logger      *slog.Logger
	metrics     *observability.Metrics
}

func New(opts Options) *Loader {
	l := &Loader{
		dateLayout:  opts.DateLayout,
		loadTimeout: opts.LoadTimeout,
		client:      opts.HTTPClient,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
	}
	if l.dateLayout == "" {
		l.dateLayout = DefaultDateLayout
	}
	if l.loadTimeout <= 0 {
		l.loadTimeout = DefaultLoadTimeout
	}
	if l.client == nil {
		l.client = &http.Client{Timeout: 30 * time.Second}
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	l.logger = l.logger.With("component", "loader")
	return l
}

// Load reads all five tables concurrently. Any failure aborts the whole load;
// there are no partial results and no retries.
func (l *Loader) Load(ctx context.Context, locs Locators) (tables *models.Tables, err error) {
	ctx, span := observability.StartSpan(ctx, "loader.Load",
		attribute.String("locator.sales", locs.Sales),
	)
	start := time.Now()
	defer func() {
		l.metrics.ObserveLoad(err, time.Since(start))
		observability.EndSpan(span, err)
	}()

	var (
		products  []models.Product
		stores    []models.Store
		calendar  []models.CalendarDay
		inventory []models.InventoryRecord
		sales     []models.SalesRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		products, err = loadTable(gctx, l, locs.Products, productSchema)
		return err
	})
	g.Go(func() (err error) {
		stores, err = loadTable(gctx, l, locs.Stores, storeSchema)
		return err
	})
	g.Go(func() (err error) {
		calendar, err = loadTable(gctx, l, locs.Calendar, calendarSchema)
		return err
	})
	g.Go(func() (err error) {
		inventory, err = loadTable(gctx, l, locs.Inventory, inventorySchema)
		return err
	})
	g.Go(func() (err error) {
		sales, err = loadTable(gctx, l, locs.Sales, salesSchema)
		return err
	})

	if err := g.Wait(); err != nil {
		l.logger.ErrorContext(ctx, "dataset load failed", "error", err)
		return nil, err
	}

	tables = models.NewTables(products, stores, calendar, inventory, sales)

	l.metrics.SetRows(TableProducts, len(products))
	l.metrics.SetRows(TableStores, len(stores))
	l.metrics.SetRows(TableCalendar, len(calendar))
	l.metrics.SetRows(TableInventory, len(inventory))
	l.metrics.SetRows(TableSales, len(sales))

	l.logger.InfoContext(ctx, "dataset loaded",
		"products", len(products),
		"stores", len(stores),
		"calendar_days", len(calendar),
		"inventory_rows", len(inventory),
		"sales_rows", len(sales),
		"duration", time.Since(start),
	)

	return tables, nil
}

func loadTable[T any](ctx context.Context, l *Loader, locator string, s schema[T]) ([]T, error) {
	rc, err := l.open(ctx, locator)
	if err != nil {
		return nil, &LoadError{Table: s.table, Locator: locator, Err: err}
	}
	defer rc.Close()

	return readTable(rc, s, locator, l.dateLayout)
}

func (l *Loader) open(ctx context.Context, locator string) (io.ReadCloser, error) {
	if strings.TrimSpace(locator) == "" {
		return nil, errors.New("empty locator")
	}

	if !isURL(locator) {
		return os.Open(locator)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch: unexpected status %s", resp.Status)
	}

	return resp.Body, nil
}

func isURL(locator string) bool {
	lower := strings.ToLower(locator)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
