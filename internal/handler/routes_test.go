package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"ollama-edge-proxy/internal/metrics"
)

func TestRegisterRoutes_Wiring(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			t.Errorf("upstream path = %q, want /api/ prefix", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	svc := newTestService(t, testConfig(upstream.URL))
	proxy := NewProxyHandler(svc, discardLogger())
	health := NewHealthHandler(svc, "test")

	e := echo.New()
	RegisterRoutes(e, proxy, health)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"GET /healthz", http.MethodGet, "/healthz", http.StatusOK},
		{"GET /proxy/status", http.MethodGet, "/proxy/status", http.StatusOK},
		{"GET /", http.MethodGet, "/", http.StatusOK},
		{"GET /tags", http.MethodGet, "/tags", http.StatusOK},
		{"POST /generate", http.MethodPost, "/generate?stream=false", http.StatusOK},
		{"POST /api/chat", http.MethodPost, "/api/chat", http.StatusOK},
		{"PUT /api/create", http.MethodPut, "/api/create", http.StatusOK},
		{"PATCH /anything", http.MethodPatch, "/anything", http.StatusOK},
		{"DELETE /api/delete", http.MethodDelete, "/api/delete", http.StatusOK},
		{"OPTIONS /generate", http.MethodOptions, "/generate", http.StatusNoContent},
		{"OPTIONS /", http.MethodOptions, "/", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRegisterMetrics(t *testing.T) {
	m := metrics.New()

	t.Run("enabled", func(t *testing.T) {
		cfg := testConfig("")
		cfg.Metrics.Enabled = true
		cfg.Metrics.Path = "/metrics"

		e := echo.New()
		RegisterMetrics(e, cfg, m)

		req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		if !strings.Contains(rec.Body.String(), "go_goroutines") {
			t.Error("expected Go runtime metrics in /metrics output")
		}
	})

	t.Run("disabled", func(t *testing.T) {
		cfg := testConfig("")
		cfg.Metrics.Path = "/metrics"

		e := echo.New()
		RegisterMetrics(e, cfg, m)

		req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})
}
