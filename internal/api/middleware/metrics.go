package middleware

import (
	"net/http"

	"github.com/voterprime/catmatch/internal/metrics"
)

// Metrics counts requests by method and status.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := wrap(w, r)
			next.ServeHTTP(ww, r)
			m.ObserveHTTP(r.Method, statusOf(ww))
		})
	}
}
