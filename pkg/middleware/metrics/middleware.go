package metrics

import (
	"net/http"
	"strconv"
	"time"

	chimd "github.com/go-chi/chi/v5/middleware"
)

// Collect produces the HTTP middleware that records the wire-level
// counters/histogram. Per-function labels come from ObserveInvocation
// inside the router, which knows the resolved name.
func Collect() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimd.NewWrapResponseWriter(w, r.ProtoMajor)
			startTime := time.Now()

			defer func() {
				if isSkipPath(r) {
					return
				}
				totalHttpRequests.WithLabelValues(strconv.Itoa(ww.Status()), r.Method).Inc()
				responseTime.Observe(time.Since(startTime).Seconds())
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// Skip self-scrape and liveness noise.
func isSkipPath(r *http.Request) bool {
	return r.URL.Path == "/metrics" || r.URL.Path == "/ping"
}
