package loader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureLocators() Locators {
	return Locators{
		Products:  filepath.Join("testdata", "products.csv"),
		Stores:    filepath.Join("testdata", "stores.csv"),
		Calendar:  filepath.Join("testdata", "calendar.csv"),
		Inventory: filepath.Join("testdata", "inventory.csv"),
		Sales:     filepath.Join("testdata", "sales.csv"),
	}
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "table.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_Load(t *testing.T) {
	l := New(Options{})

	tables, err := l.Load(context.Background(), fixtureLocators())
	require.NoError(t, err)

	assert.Len(t, tables.Products, 3)
	assert.Len(t, tables.Stores, 2)
	assert.Len(t, tables.Calendar, 3)
	assert.Len(t, tables.Inventory, 3)
	assert.Len(t, tables.Sales, 4)

	first := tables.Sales[0]
	assert.Equal(t, "S1", first.StoreID)
	assert.Equal(t, "P1", first.ProductID)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), first.Date)
	assert.Equal(t, 5.0, first.UnitsSold)
	assert.Equal(t, 50.5, first.NetSalesAED)
	assert.True(t, first.Promoted())

	assert.True(t, tables.Calendar[0].IsHoliday)
	assert.False(t, tables.Calendar[1].IsHoliday)
	assert.Equal(t, 0, tables.Inventory[1].ClosingStock)

	p, ok := tables.Product("P3")
	require.True(t, ok)
	assert.Equal(t, "Beverages", p.Category)
	assert.Equal(t, []string{"Hardware", "Beverages"}, tables.Categories())
}

func TestLoader_Load_FromURL(t *testing.T) {
	locs := fixtureLocators()
	files := map[string]string{
		"/products.csv":  locs.Products,
		"/stores.csv":    locs.Stores,
		"/calendar.csv":  locs.Calendar,
		"/inventory.csv": locs.Inventory,
		"/sales.csv":     locs.Sales,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, path)
	}))
	defer srv.Close()

	l := New(Options{HTTPClient: srv.Client()})
	tables, err := l.Load(context.Background(), Locators{
		Products:  srv.URL + "/products.csv",
		Stores:    srv.URL + "/stores.csv",
		Calendar:  srv.URL + "/calendar.csv",
		Inventory: srv.URL + "/inventory.csv",
		Sales:     srv.URL + "/sales.csv",
	})
	require.NoError(t, err)
	assert.Len(t, tables.Sales, 4)

	_, err = l.Load(context.Background(), Locators{
		Products:  srv.URL + "/missing.csv",
		Stores:    srv.URL + "/stores.csv",
		Calendar:  srv.URL + "/calendar.csv",
		Inventory: srv.URL + "/inventory.csv",
		Sales:     srv.URL + "/sales.csv",
	})
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, TableProducts, loadErr.Table)
	assert.Contains(t, loadErr.Error(), "404")
}

func TestLoader_Load_Malformed(t *testing.T) {
	tests := []struct {
		name       string
		sales      string
		wantColumn string
		wantRow    int
		wantErr    error
	}{
		{
			name:    "empty file",
			sales:   "",
			wantErr: ErrEmptySource,
		},
		{
			name:       "missing column",
			sales:      "Store_ID,Product_ID,Date,Units_Sold,Promotion_Flag\nS1,P1,2024-01-01,5,Y\n",
			wantColumn: "Net_Sales_AED",
			wantErr:    ErrMissingColumn,
		},
		{
			name:       "invalid number",
			sales:      "Store_ID,Product_ID,Date,Units_Sold,Net_Sales_AED,Promotion_Flag\nS1,P1,2024-01-01,five,10,Y\n",
			wantColumn: "Units_Sold",
			wantRow:    2,
		},
		{
			name:       "non-finite number",
			sales:      "Store_ID,Product_ID,Date,Units_Sold,Net_Sales_AED,Promotion_Flag\nS1,P1,2024-01-01,NaN,10,Y\n",
			wantColumn: "Units_Sold",
			wantRow:    2,
		},
		{
			name:       "infinite net sales",
			sales:      "Store_ID,Product_ID,Date,Units_Sold,Net_Sales_AED,Promotion_Flag\nS1,P1,2024-01-01,5,10,Y\nS1,P1,2024-01-02,5,-Inf,N\n",
			wantColumn: "Net_Sales_AED",
			wantRow:    3,
		},
		{
			name:       "invalid date",
			sales:      "Store_ID,Product_ID,Date,Units_Sold,Net_Sales_AED,Promotion_Flag\nS1,P1,01/02/2024,5,10,Y\n",
			wantColumn: "Date",
			wantRow:    2,
		},
		{
			name:       "negative units",
			sales:      "Store_ID,Product_ID,Date,Units_Sold,Net_Sales_AED,Promotion_Flag\nS1,P1,2024-01-01,5,10,Y\nS1,P1,2024-01-02,-1,10,N\n",
			wantColumn: "Units_Sold",
			wantRow:    3,
		},
		{
			name:       "empty key",
			sales:      "Store_ID,Product_ID,Date,Units_Sold,Net_Sales_AED,Promotion_Flag\nS1,,2024-01-01,5,10,Y\n",
			wantColumn: "Product_ID",
			wantRow:    2,
			wantErr:    ErrEmptyKey,
		},
		{
			name:    "ragged row",
			sales:   "Store_ID,Product_ID,Date,Units_Sold,Net_Sales_AED,Promotion_Flag\nS1,P1,2024-01-01,5\n",
			wantRow: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locs := fixtureLocators()
			locs.Sales = writeTemp(t, tt.sales)

			tables, err := New(Options{}).Load(context.Background(), locs)
			require.Error(t, err)
			assert.Nil(t, tables)

			var loadErr *LoadError
			require.ErrorAs(t, err, &loadErr)
			assert.Equal(t, TableSales, loadErr.Table)
			assert.Equal(t, tt.wantColumn, loadErr.Column)
			assert.Equal(t, tt.wantRow, loadErr.Row)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
		})
	}
}

func TestLoader_Load_MissingFile(t *testing.T) {
	locs := fixtureLocators()
	locs.Calendar = filepath.Join(t.TempDir(), "nope.csv")

	_, err := New(Options{}).Load(context.Background(), locs)

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, TableCalendar, loadErr.Table)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoader_Load_HeaderOnly(t *testing.T) {
	locs := fixtureLocators()
	locs.Inventory = writeTemp(t, "Store_ID,Product_ID,Date,Closing_Stock\n")

	tables, err := New(Options{}).Load(context.Background(), locs)
	require.NoError(t, err)
	assert.NotNil(t, tables.Inventory)
	assert.Empty(t, tables.Inventory)
}

func TestLoader_Load_ColumnOrderAndExtras(t *testing.T) {
	locs := fixtureLocators()
	locs.Products = writeTemp(t, "\ufeffCategory,Notes,Product_ID,Product_Name\nToys,x,P9,Ball\n")

	tables, err := New(Options{}).Load(context.Background(), locs)
	require.NoError(t, err)
	require.Len(t, tables.Products, 1)
	assert.Equal(t, "P9", tables.Products[0].ProductID)
	assert.Equal(t, "Ball", tables.Products[0].ProductName)
	assert.Equal(t, "Toys", tables.Products[0].Category)
}

func TestLoader_Load_CustomDateLayout(t *testing.T) {
	locs := fixtureLocators()
	locs.Calendar = writeTemp(t, "Date,Is_Holiday,Day_Of_Week\n02/01/2024,no,Tuesday\n")
	locs.Sales = writeTemp(t, "Store_ID,Product_ID,Date,Units_Sold,Net_Sales_AED,Promotion_Flag\nS1,P1,02/01/2024,1,1,y\n")
	locs.Inventory = writeTemp(t, "Store_ID,Product_ID,Date,Closing_Stock\nS1,P1,02/01/2024,3.0\n")

	tables, err := New(Options{DateLayout: "02/01/2006"}).Load(context.Background(), locs)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), tables.Sales[0].Date)
	assert.True(t, tables.Sales[0].Promoted())
	assert.Equal(t, 3, tables.Inventory[0].ClosingStock)
}

func TestCache_LoadsOncePerKey(t *testing.T) {
	cache := NewCache(New(Options{}))
	locs := fixtureLocators()

	var wg sync.WaitGroup
	results := make(chan error, 20)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Get(context.Background(), locs)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	for err := range results {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), cache.Loads())
	assert.Equal(t, 1, cache.Len())

	first, err := cache.Get(context.Background(), locs)
	require.NoError(t, err)
	second, err := cache.Get(context.Background(), locs)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, int64(1), cache.Loads())
}

func TestCache_InvalidateForcesReload(t *testing.T) {
	cache := NewCache(New(Options{}))
	locs := fixtureLocators()

	first, err := cache.Get(context.Background(), locs)
	require.NoError(t, err)

	cache.Invalidate(locs)
	second, err := cache.Get(context.Background(), locs)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, int64(2), cache.Loads())

	cache.Purge()
	assert.Equal(t, 0, cache.Len())
}

func TestCache_FailuresAreNotCached(t *testing.T) {
	dir := t.TempDir()
	locs := fixtureLocators()
	locs.Stores = filepath.Join(dir, "stores.csv")
	cache := NewCache(New(Options{}))

	_, err := cache.Get(context.Background(), locs)
	require.Error(t, err)
	assert.Equal(t, 0, cache.Len())

	content, err := os.ReadFile(fixtureLocators().Stores)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(locs.Stores, content, 0o644))

	tables, err := cache.Get(context.Background(), locs)
	require.NoError(t, err)
	assert.Len(t, tables.Stores, 2)
	assert.Equal(t, int64(2), cache.Loads())
}

func TestLoadError_Message(t *testing.T) {
	err := &LoadError{Table: TableSales, Locator: "s.csv", Row: 4, Column: "Date", Err: errors.New("invalid date \"x\"")}
	msg := err.Error()
	for _, want := range []string{"sales", "s.csv", "row 4", "column Date", "invalid date"} {
		assert.True(t, strings.Contains(msg, want), "missing %q in %q", want, msg)
	}
}

func TestCache_SharedLoadSurvivesCallerCancel(t *testing.T) {
	locs := fixtureLocators()
	release := make(chan struct{})
	salesPath := locs.Sales
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
			http.ServeFile(w, r, salesPath)
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	locs.Sales = srv.URL + "/sales.csv"

	cache := NewCache(New(Options{HTTPClient: srv.Client(), LoadTimeout: 5 * time.Second}))

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := cache.Get(ctxA, locs)
		errA <- err
	}()

	// Wait until A's flight has started before B joins it.
	require.Eventually(t, func() bool { return cache.Loads() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		sales int
		err   error
	}
	resB := make(chan result, 1)
	go func() {
		tables, err := cache.Get(context.Background(), locs)
		if err != nil {
			resB <- result{err: err}
			return
		}
		resB <- result{sales: len(tables.Sales)}
	}()

	cancelA()
	select {
	case err := <-errA:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting on the shared load")
	}

	close(release)
	select {
	case res := <-resB:
		require.NoError(t, res.err)
		assert.Equal(t, 4, res.sales)
	case <-time.After(5 * time.Second):
		t.Fatal("shared load did not finish")
	}
	assert.Equal(t, int64(1), cache.Loads())
	assert.Equal(t, 1, cache.Len())
}

func TestCache_SharedLoadTimeout(t *testing.T) {
	locs := fixtureLocators()
	release := make(chan struct{})
	defer close(release)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	locs.Sales = srv.URL + "/sales.csv"

	cache := NewCache(New(Options{HTTPClient: srv.Client(), LoadTimeout: 50 * time.Millisecond}))

	_, err := cache.Get(context.Background(), locs)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, cache.Len())
}
