package routes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sugarcraft/academy-backend/pkg/config"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{Env: "test", Port: "8080"},
	}
	return NewRouter(cfg, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, prometheus.NewRegistry())
}

func TestRouter_HealthLive(t *testing.T) {
	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Sugarcraft-Env") != "test" {
		t.Fatalf("env header missing")
	}
}

func TestRouter_MetricsExposed(t *testing.T) {
	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRouter_WebhookRouteRegistered(t *testing.T) {
	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/stripe-webhook", strings.NewReader("{}"))
	router.ServeHTTP(rec, req)
	// Wired with no services in this test; the route must exist and refuse
	// rather than 404.
	if rec.Code == http.StatusNotFound {
		t.Fatalf("webhook route not registered")
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
