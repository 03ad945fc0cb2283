package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/lzjever/mbos-devbox/internal/observability"
)

func TestMetricsSkipsLatencyForUpgrades(t *testing.T) {
	var inFlight float64
	handler := Metrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inFlight = testutil.ToFloat64(observability.ActiveRequests)
		w.WriteHeader(http.StatusNoContent)
	}))

	idle := testutil.ToFloat64(observability.ActiveRequests)
	series := testutil.CollectAndCount(observability.HTTPRequestDuration)

	req := httptest.NewRequest("GET", "/upgrade-only", nil)
	req.Header.Set("Upgrade", "websocket")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if inFlight != idle {
		t.Errorf("upgrade counted as in-flight request: %v, want %v", inFlight, idle)
	}
	if got := testutil.CollectAndCount(observability.HTTPRequestDuration); got != series {
		t.Errorf("upgrade recorded request latency: %d series, want %d", got, series)
	}
	if got := testutil.ToFloat64(observability.HTTPRequestsTotal.WithLabelValues("/upgrade-only", "GET", "204")); got != 1 {
		t.Errorf("upgrade requests total = %v, want 1", got)
	}

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/plain", nil))
	if inFlight != idle+1 {
		t.Errorf("plain request in-flight = %v, want %v", inFlight, idle+1)
	}
	if got := testutil.CollectAndCount(observability.HTTPRequestDuration); got != series+1 {
		t.Errorf("plain request latency series = %d, want %d", got, series+1)
	}
}
