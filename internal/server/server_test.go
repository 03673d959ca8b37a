package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retail-dashboard/internal/config"
	"retail-dashboard/internal/observability"
	"retail-dashboard/internal/services"
	"retail-dashboard/internal/testutil"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := services.NewAnalytics(services.StaticSource{Tables: testutil.SampleTables()}, services.Options{})
	dashboard := func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "dashboard")
	}
	return NewServer(a, logger, observability.NewMetrics(), &TemplateHandlers{Dashboard: dashboard})
}

func TestServer_Routes(t *testing.T) {
	srv := testServer(t)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/admin/stats", http.StatusOK},
		{http.MethodPost, "/admin/reload", http.StatusOK},
		{http.MethodGet, "/api/stores", http.StatusOK},
		{http.MethodGet, "/api/categories", http.StatusOK},
		{http.MethodGet, "/api/products", http.StatusOK},
		{http.MethodGet, "/api/kpis", http.StatusOK},
		{http.MethodGet, "/api/rankings/top", http.StatusOK},
		{http.MethodGet, "/api/rankings/bottom", http.StatusOK},
		{http.MethodGet, "/api/sales-trend", http.StatusOK},
		{http.MethodGet, "/api/category-share", http.StatusOK},
		{http.MethodGet, "/api/products/P1/timeseries", http.StatusOK},
		{http.MethodGet, "/api/products/P1/forecast", http.StatusOK},
		{http.MethodGet, "/api/export/rankings.xlsx", http.StatusOK},
		{http.MethodGet, "/sse/kpis", http.StatusOK},
		{http.MethodGet, "/sse/refresh-all", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/missing", http.StatusNotFound},
		{http.MethodPost, "/api/kpis", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestServer_MetricsExposeRoutes(t *testing.T) {
	srv := testServer(t)

	srv.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/rankings/top", nil))

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), `route="/api/rankings/{direction}"`)
}

func TestGracefulServer_ShutdownOnCancel(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.ServerConfig{ShutdownTimeout: 5 * time.Second}
	httpServer := &http.Server{Handler: testServer(t)}
	gs := NewGracefulServer(httpServer, logger, cfg)

	var hookRan atomic.Bool
	gs.RegisterShutdownHook(func(ctx context.Context) error {
		hookRan.Store(true)
		return nil
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gs.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.True(t, hookRan.Load())
}

func TestGracefulServer_HookError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gs := NewGracefulServer(&http.Server{Handler: http.NotFoundHandler()}, logger, config.ServerConfig{ShutdownTimeout: time.Second})
	hookErr := errors.New("flush failed")
	gs.RegisterShutdownHook(func(ctx context.Context) error { return hookErr })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = gs.Serve(ctx, ln)
	assert.ErrorIs(t, err, hookErr)
}
