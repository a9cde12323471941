package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/pbspread/pkg/metrics"
)

// MetricsMiddleware wraps HTTP handlers to record Prometheus metrics.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		status := strconv.Itoa(wrapped.statusCode)
		metrics.RecordHTTPRequest(endpoint, r.Method, status, float64(time.Since(start).Milliseconds()))
		if wrapped.statusCode >= http.StatusBadRequest {
			metrics.RecordErrorByEndpoint(endpoint, r.Method, errorType(wrapped.statusCode))
		}
	}
}

// errorType buckets an error status for metrics.
func errorType(statusCode int) string {
	switch {
	case statusCode == http.StatusServiceUnavailable:
		return "unavailable"
	case statusCode >= http.StatusInternalServerError:
		return "server_error"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limit"
	case statusCode == http.StatusNotFound:
		return "not_found"
	case statusCode >= http.StatusBadRequest:
		return "client_error"
	default:
		return "unknown"
	}
}

// responseWriter captures the status code written by the handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
