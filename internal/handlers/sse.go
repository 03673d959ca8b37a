package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/starfederation/datastar-go/datastar"
	"golang.org/x/sync/errgroup"

	"retail-dashboard/internal/errors"
	"retail-dashboard/internal/models"
	"retail-dashboard/internal/services"
	"retail-dashboard/internal/ui/templates"
)

type SSEHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
	queries   queryParser
}

func NewSSEHandlers(analytics *services.Analytics, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		logger:    logger.With("component", "sse"),
		queries:   newQueryParser(),
	}
}

func renderComponent(ctx context.Context, c templ.Component) (string, error) {
	var buf strings.Builder
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (h *SSEHandlers) patch(ctx context.Context, sse *datastar.ServerSentEventGenerator, c templ.Component) {
	html, err := renderComponent(ctx, c)
	if err != nil {
		h.logger.ErrorContext(ctx, "render fragment", "error", err)
		return
	}
	if err := sse.PatchElements(html); err != nil {
		h.logger.WarnContext(ctx, "patch elements", "error", err)
	}
}

func (h *SSEHandlers) signals(ctx context.Context, sse *datastar.ServerSentEventGenerator, values map[string]any) {
	data, err := json.Marshal(values)
	if err != nil {
		h.logger.ErrorContext(ctx, "marshal signals", "error", err)
		return
	}
	if err := sse.PatchSignals(data); err != nil {
		h.logger.WarnContext(ctx, "patch signals", "error", err)
	}
}

// status reports a failure in the page banner instead of an HTTP error,
// since the SSE stream is already open.
func (h *SSEHandlers) status(ctx context.Context, sse *datastar.ServerSentEventGenerator, err error) {
	appErr := errors.FromDomain(err)
	level := "error"
	if appErr.StatusCode < 500 {
		level = "warn"
	}
	h.logger.Log(ctx, slogLevel(level), "sse request failed", "error_code", appErr.Code, "cause", appErr.Cause)

	msg := appErr.Message
	if appErr.Details != "" {
		msg += ": " + appErr.Details
	}
	h.patch(ctx, sse, templates.StatusBanner(level, msg))
}

func slogLevel(level string) slog.Level {
	if level == "error" {
		return slog.LevelError
	}
	return slog.LevelWarn
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *SSEHandlers) HandleKPIs(w http.ResponseWriter, r *http.Request) {
	q, qErr := h.queries.fromSignals(r)
	sse := datastar.NewSSE(w, r)
	ctx := r.Context()
	if qErr != nil {
		h.status(ctx, sse, qErr)
		return
	}

	kpis, err := h.analytics.KPIs(ctx, q.filters())
	if err != nil {
		h.status(ctx, sse, err)
		return
	}
	h.patch(ctx, sse, templates.KPICards(kpis))
	flush(w)
}

func (h *SSEHandlers) rankings(ctx context.Context, q dashboardQuery) (top, bottom []models.RankedProduct, err error) {
	topQ, err := q.rankQuery(string(services.Descending))
	if err != nil {
		return nil, nil, err
	}
	bottomQ := topQ
	bottomQ.Order = services.Ascending

	f := q.filters()
	if top, err = h.analytics.Rankings(ctx, f, topQ); err != nil {
		return nil, nil, err
	}
	if bottom, err = h.analytics.Rankings(ctx, f, bottomQ); err != nil {
		return nil, nil, err
	}
	return top, bottom, nil
}

func (h *SSEHandlers) HandleRankings(w http.ResponseWriter, r *http.Request) {
	q, qErr := h.queries.fromSignals(r)
	sse := datastar.NewSSE(w, r)
	ctx := r.Context()
	if qErr != nil {
		h.status(ctx, sse, qErr)
		return
	}

	top, bottom, err := h.rankings(ctx, q)
	if err != nil {
		h.status(ctx, sse, err)
		return
	}
	h.patch(ctx, sse, templates.RankingTable(templates.TopRankingID, "Top Products", top))
	h.patch(ctx, sse, templates.RankingTable(templates.BottomRankingID, "Bottom Products", bottom))
	flush(w)
}

func (h *SSEHandlers) HandleSalesTrend(w http.ResponseWriter, r *http.Request) {
	q, qErr := h.queries.fromSignals(r)
	sse := datastar.NewSSE(w, r)
	ctx := r.Context()
	if qErr != nil {
		h.status(ctx, sse, qErr)
		return
	}

	trend, err := h.analytics.SalesTrend(ctx, q.filters())
	if err != nil {
		h.status(ctx, sse, err)
		return
	}
	shares, err := h.analytics.CategoryShare(ctx, q.filters())
	if err != nil {
		h.status(ctx, sse, err)
		return
	}
	h.signals(ctx, sse, map[string]any{
		"trendData":    trend,
		"categoryData": shares,
	})
	flush(w)
}

// HandleForecast patches the forecast panel. Too little history is not an
// error here: the panel shows a notice and the chart signal is cleared.
func (h *SSEHandlers) HandleForecast(w http.ResponseWriter, r *http.Request) {
	q, qErr := h.queries.fromSignals(r)
	sse := datastar.NewSSE(w, r)
	ctx := r.Context()
	if qErr != nil {
		h.status(ctx, sse, qErr)
		return
	}
	if strings.TrimSpace(q.ProductID) == "" {
		h.patch(ctx, sse, templates.ForecastUnavailable("Select a product first"))
		return
	}

	fc, err := h.analytics.Forecast(ctx, q.ProductID, q.Store, q.Periods)
	var insufficient *services.InsufficientDataError
	switch {
	case stderrors.As(err, &insufficient):
		h.patch(ctx, sse, templates.ForecastUnavailable(insufficient.Error()))
		h.signals(ctx, sse, map[string]any{"forecastData": []models.ChartPoint{}})
	case err != nil:
		h.status(ctx, sse, err)
	default:
		h.patch(ctx, sse, templates.ForecastPanel(fc))
		h.signals(ctx, sse, map[string]any{"forecastData": fc.Chart()})
	}
	flush(w)
}

// HandleRefreshAll recomputes every filter-driven panel in parallel and
// sends them on one stream.
func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	q, qErr := h.queries.fromSignals(r)
	sse := datastar.NewSSE(w, r)
	ctx := r.Context()
	if qErr != nil {
		h.status(ctx, sse, qErr)
		return
	}

	var (
		kpis        models.KPIs
		top, bottom []models.RankedProduct
		trend       []models.DailyPoint
		shares      []models.CategoryShare
	)
	f := q.filters()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		kpis, err = h.analytics.KPIs(gctx, f)
		return err
	})
	g.Go(func() (err error) {
		top, bottom, err = h.rankings(gctx, q)
		return err
	})
	g.Go(func() (err error) {
		trend, err = h.analytics.SalesTrend(gctx, f)
		return err
	})
	g.Go(func() (err error) {
		shares, err = h.analytics.CategoryShare(gctx, f)
		return err
	})
	if err := g.Wait(); err != nil {
		h.status(ctx, sse, err)
		return
	}

	h.patch(ctx, sse, templates.StatusBanner("ok", ""))
	h.patch(ctx, sse, templates.KPICards(kpis))
	h.patch(ctx, sse, templates.RankingTable(templates.TopRankingID, "Top Products", top))
	h.patch(ctx, sse, templates.RankingTable(templates.BottomRankingID, "Bottom Products", bottom))
	h.signals(ctx, sse, map[string]any{
		"trendData":    trend,
		"categoryData": shares,
	})
	flush(w)
}
