package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"retail-dashboard/internal/config"
	"retail-dashboard/internal/loader"
	"retail-dashboard/internal/observability"
	"retail-dashboard/internal/services"
)

type rootFlags struct {
	locators   loader.Locators
	dateLayout string
	timeout    time.Duration
	logLevel   string

	store    string
	category string
	start    string
	end      string
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:          "retailctl",
		Short:        "Query retail KPIs, rankings and forecasts from the source CSVs",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.locators.Products, "products", cfg.Data.Products, "Products master file or URL")
	pf.StringVar(&flags.locators.Stores, "stores", cfg.Data.Stores, "Stores master file or URL")
	pf.StringVar(&flags.locators.Calendar, "calendar", cfg.Data.Calendar, "Calendar master file or URL")
	pf.StringVar(&flags.locators.Inventory, "inventory", cfg.Data.Inventory, "Inventory transactions file or URL")
	pf.StringVar(&flags.locators.Sales, "sales", cfg.Data.Sales, "Sales transactions file or URL")
	pf.StringVar(&flags.dateLayout, "date-layout", cfg.Data.DateLayout, "Date layout of the source files")
	pf.DurationVar(&flags.timeout, "timeout", cfg.Data.LoadTimeout, "Load timeout")
	pf.StringVar(&flags.logLevel, "log-level", "error", "Log level (debug, info, warn, error)")
	pf.StringVar(&flags.store, "store", services.All, "Store name or ID")
	pf.StringVar(&flags.category, "category", services.All, "Product category")
	pf.StringVar(&flags.start, "start", "", "First day included (YYYY-MM-DD)")
	pf.StringVar(&flags.end, "end", "", "Last day included (YYYY-MM-DD)")

	root.AddCommand(
		newKPIsCmd(flags, cfg),
		newRankCmd(flags, cfg),
		newTrendCmd(flags, cfg),
		newCategoriesCmd(flags, cfg),
		newForecastCmd(flags, cfg),
	)
	return root
}

func (f *rootFlags) analytics(cmd *cobra.Command, cfg *config.Config) *services.Analytics {
	logger := observability.NewLogger(config.LoggerConfig{Level: f.logLevel, Format: "text"}, cmd.ErrOrStderr())
	cache := loader.NewCache(loader.New(loader.Options{
		DateLayout:  f.dateLayout,
		LoadTimeout: f.timeout,
		Logger:      logger,
	}))
	return services.NewAnalytics(cache, services.Options{
		Locators:        f.locators,
		MinObservations: cfg.Forecast.MinObservations,
		Horizon:         cfg.Forecast.Horizon,
		MaxHorizon:      cfg.Forecast.MaxHorizon,
		Logger:          logger,
	})
}

func (f *rootFlags) filters() (services.Filters, error) {
	out := services.Filters{Store: f.store, Category: f.category}
	var err error
	if out.Start, err = parseDay("start", f.start); err != nil {
		return out, err
	}
	if out.End, err = parseDay("end", f.end); err != nil {
		return out, err
	}
	return out, nil
}

func parseDay(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be a date in YYYY-MM-DD form: %w", name, err)
	}
	return t, nil
}

func newTable(w io.Writer, header ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	return tw
}

func newKPIsCmd(flags *rootFlags, cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "kpis",
		Short: "Print the headline KPIs for the selected filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := flags.filters()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd, flags.timeout)
			defer cancel()

			k, err := flags.analytics(cmd, cfg).KPIs(ctx, f)
			if err != nil {
				return err
			}

			promo := k.PromoPct.String()
			if k.PromoPct.Defined {
				promo += "%"
			}
			tw := newTable(cmd.OutOrStdout(), "METRIC", "VALUE")
			fmt.Fprintf(tw, "Total Net Sales (AED)\t%.2f\n", k.TotalSales)
			fmt.Fprintf(tw, "Units Sold\t%.0f\n", k.TotalUnits)
			fmt.Fprintf(tw, "Stockouts\t%d\n", k.StockoutCount)
			fmt.Fprintf(tw, "Avg Stock Days\t%s\n", k.AvgStockDays)
			fmt.Fprintf(tw, "Promo Sales\t%s\n", promo)
			fmt.Fprintf(tw, "Active SKUs\t%d\n", k.ActiveSKUs)
			fmt.Fprintf(tw, "Active Stores\t%d\n", k.ActiveStores)
			return tw.Flush()
		},
	}
}

func newRankCmd(flags *rootFlags, cfg *config.Config) *cobra.Command {
	var (
		metric string
		n      int
	)
	cmd := &cobra.Command{
		Use:       "rank [top|bottom]",
		Short:     "Rank products by net sales or units sold",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(services.Descending), string(services.Ascending)},
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := string(services.Descending)
			if len(args) == 1 {
				direction = args[0]
			}
			order, err := services.ParseOrder(direction)
			if err != nil {
				return err
			}
			m, err := services.ParseRankMetric(metric)
			if err != nil {
				return err
			}
			f, err := flags.filters()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd, flags.timeout)
			defer cancel()

			rows, err := flags.analytics(cmd, cfg).Rankings(ctx, f, services.RankQuery{Metric: m, Order: order, N: n})
			if err != nil {
				return err
			}

			tw := newTable(cmd.OutOrStdout(), "RANK", "PRODUCT ID", "PRODUCT", strings.ToUpper(string(m)))
			for _, r := range rows {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\n", r.Rank, r.ProductID, r.ProductName, r.Value)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&metric, "metric", string(services.MetricNetSales), "Ranking metric (net_sales, units_sold)")
	cmd.Flags().IntVarP(&n, "n", "n", services.DefaultRankN, "Number of products; 0 lists all")
	return cmd
}

func newTrendCmd(flags *rootFlags, cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "trend",
		Short: "Print daily net sales for the selected filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := flags.filters()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd, flags.timeout)
			defer cancel()

			points, err := flags.analytics(cmd, cfg).SalesTrend(ctx, f)
			if err != nil {
				return err
			}

			tw := newTable(cmd.OutOrStdout(), "DATE", "NET SALES (AED)", "UNITS")
			for _, p := range points {
				fmt.Fprintf(tw, "%s\t%.2f\t%.0f\n", p.Date.Format(time.DateOnly), p.NetSalesAED, p.UnitsSold)
			}
			return tw.Flush()
		},
	}
}

func newCategoriesCmd(flags *rootFlags, cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "Print net sales and share per product category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := flags.filters()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd, flags.timeout)
			defer cancel()

			shares, err := flags.analytics(cmd, cfg).CategoryShare(ctx, f)
			if err != nil {
				return err
			}

			tw := newTable(cmd.OutOrStdout(), "CATEGORY", "NET SALES (AED)", "SHARE %")
			for _, s := range shares {
				fmt.Fprintf(tw, "%s\t%.2f\t%s\n", s.Category, s.NetSalesAED, s.SharePct)
			}
			return tw.Flush()
		},
	}
}

func newForecastCmd(flags *rootFlags, cfg *config.Config) *cobra.Command {
	var periods int
	cmd := &cobra.Command{
		Use:   "forecast <product-id>",
		Short: "Forecast daily units sold for a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd, flags.timeout)
			defer cancel()

			fc, err := flags.analytics(cmd, cfg).Forecast(ctx, args[0], flags.store, periods)
			var insufficient *services.InsufficientDataError
			if errors.As(err, &insufficient) {
				fmt.Fprintf(cmd.OutOrStdout(), "Cannot forecast %s: %v\n", args[0], insufficient)
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Product %s: trend %+.2f units/day\n", fc.ProductID, fc.Slope)
			tw := newTable(cmd.OutOrStdout(), "DATE", "UNITS", "SERIES")
			for _, p := range fc.Chart() {
				fmt.Fprintf(tw, "%s\t%.2f\t%s\n", p.Date.Format(time.DateOnly), p.UnitsSold, p.Tag)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&periods, "periods", "p", 0, "Days to forecast; 0 uses the configured horizon")
	return cmd
}

func withTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(cmd.Context())
	}
	return context.WithTimeout(cmd.Context(), d)
}
