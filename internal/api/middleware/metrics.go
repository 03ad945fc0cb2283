package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lzjever/mbos-devbox/internal/observability"
)

// Metrics records HTTP metrics for each request. Websocket upgrades are
// counted like any request, but their lifetime goes to a separate histogram
// so long sessions stay out of request latency.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		upgrade := isUpgrade(r)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		if !upgrade {
			observability.ActiveRequests.Inc()
			defer observability.ActiveRequests.Dec()
		}

		next.ServeHTTP(ww, r)

		duration := time.Since(start).Seconds()
		route := getRoutePattern(r)
		status := strconv.Itoa(ww.Status())

		observability.HTTPRequestsTotal.WithLabelValues(route, r.Method, status).Inc()
		if upgrade {
			observability.SocketConnectionDuration.Observe(duration)
			return
		}
		observability.HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(duration)
	})
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func getRoutePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := rctx.RoutePattern()
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}
