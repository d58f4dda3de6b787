package middleware

import (
	"net/http"
	"time"
)

// unmatchedRoute labels requests that no pattern matched.
const unmatchedRoute = "unmatched"

// Observer records served requests.
type Observer interface {
	ObserveHTTP(method, route string, code int, elapsed time.Duration)
}

// Metrics reports request counts and latencies per route pattern.
type Metrics struct {
	observer Observer
}

// NewMetrics creates a new Metrics middleware.
func NewMetrics(observer Observer) *Metrics {
	return &Metrics{observer: observer}
}

// Handle wraps next. It must sit outside the ServeMux so that the matched
// pattern is known once next returns.
func (m *Metrics) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newStatusRecorder(w)

		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" || route == "/" {
			route = unmatchedRoute
		}
		m.observer.ObserveHTTP(r.Method, route, rec.status, time.Since(start))
	})
}
