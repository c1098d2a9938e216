package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMiddlewareRecordsRequests(t *testing.T) {
	metrics := NewMetrics()
	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/stock-levels", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTeapot, rec.Code)

	metricsReq := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	metricsRec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(metricsRec, metricsReq)

	body := metricsRec.Body.String()
	require.Contains(t, body, "stocktrail_http_requests_total")
	require.Contains(t, body, `code="418"`)
}

func TestDomainMetrics(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveAdjustment("receive")
	metrics.SetDivergentKeys(3)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	require.Contains(t, body, `stocktrail_ledger_adjustments_total{type="receive"} 1`)
	require.True(t, strings.Contains(body, "stocktrail_ledger_divergent_keys 3"))
}

func TestNilMetricsSafe(t *testing.T) {
	var metrics *Metrics
	metrics.ObserveAdjustment("receive")
	metrics.SetDivergentKeys(1)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
