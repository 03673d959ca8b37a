package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"retail-dashboard/internal/handlers"
	"retail-dashboard/internal/middleware"
	"retail-dashboard/internal/observability"
	"retail-dashboard/internal/services"
)

type Server struct {
	analytics      *services.Analytics
	router         chi.Router
	logger         *slog.Logger
	metrics        *observability.Metrics
	apiHandlers    *handlers.APIHandlers
	sseHandlers    *handlers.SSEHandlers
	exportHandlers *handlers.ExportHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

func NewServer(analytics *services.Analytics, logger *slog.Logger, metrics *observability.Metrics, templateHandlers *TemplateHandlers) *Server {
	s := &Server{
		analytics:      analytics,
		router:         chi.NewRouter(),
		logger:         logger,
		metrics:        metrics,
		apiHandlers:    handlers.NewAPIHandlers(analytics, logger),
		sseHandlers:    handlers.NewSSEHandlers(analytics, logger),
		exportHandlers: handlers.NewExportHandlers(analytics, logger),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	r := s.router
	r.Use(middleware.Metrics(s.metrics))

	// Dashboard and operations
	if templateHandlers != nil && templateHandlers.Dashboard != nil {
		r.Get("/", templateHandlers.Dashboard)
	}
	r.Get("/health", s.apiHandlers.HandleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	r.Route("/admin", func(r chi.Router) {
		r.Get("/stats", s.apiHandlers.HandleStats)
		r.Post("/reload", s.apiHandlers.HandleReload)
	})

	// REST API endpoints
	r.Route("/api", func(r chi.Router) {
		r.Get("/stores", s.apiHandlers.HandleStores)
		r.Get("/categories", s.apiHandlers.HandleCategories)
		r.Get("/products", s.apiHandlers.HandleProducts)
		r.Get("/products/{productID}/timeseries", s.apiHandlers.HandleProductSeries)
		r.Get("/products/{productID}/forecast", s.apiHandlers.HandleForecast)
		r.Get("/kpis", s.apiHandlers.HandleKPIs)
		r.Get("/rankings/{direction}", s.apiHandlers.HandleRankings)
		r.Get("/sales-trend", s.apiHandlers.HandleSalesTrend)
		r.Get("/category-share", s.apiHandlers.HandleCategoryShare)
		r.Get("/export/rankings.xlsx", s.exportHandlers.HandleRankings)
	})

	// Datastar SSE endpoints
	r.Route("/sse", func(r chi.Router) {
		r.Get("/kpis", s.sseHandlers.HandleKPIs)
		r.Get("/rankings", s.sseHandlers.HandleRankings)
		r.Get("/sales-trend", s.sseHandlers.HandleSalesTrend)
		r.Get("/forecast", s.sseHandlers.HandleForecast)
		r.Get("/refresh-all", s.sseHandlers.HandleRefreshAll)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
