package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// responseWriter wraps http.ResponseWriter to capture status code and response size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// getEndpointPattern extracts chi route pattern to avoid high-cardinality paths
func getEndpointPattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}

	switch path := r.URL.Path; path {
	case "/health", "/health/live", "/health/ready":
		return "/health/*"
	case "/status", "/version", "/metrics", "/":
		return path
	default:
		return "/unknown"
	}
}

// RequestMetrics emits per-request counters and durations to sys and logs
// each completed request at debug level. A nil sys only logs.
func RequestMetrics(sys *telemetry.System, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			endpoint := getEndpointPattern(r)

			if sys != nil {
				labels := map[string]string{
					"method":   r.Method,
					"endpoint": endpoint,
					"status":   strconv.Itoa(wrapped.statusCode),
				}
				_ = sys.Counter("http_requests_total", 1, labels)
				_ = sys.Histogram("http_request_duration_ms", duration, labels)
				_ = sys.Gauge("http_response_size_bytes", float64(wrapped.bytesWritten), map[string]string{
					"method":   r.Method,
					"endpoint": endpoint,
				})

				if wrapped.statusCode >= 400 {
					errorType := "client_error"
					if wrapped.statusCode >= 500 {
						errorType = "server_error"
					}
					_ = sys.Counter("http_errors_total", 1, map[string]string{
						"method":     r.Method,
						"endpoint":   endpoint,
						"status":     strconv.Itoa(wrapped.statusCode),
						"error_type": errorType,
					})
				}
			}

			logger.Debug("HTTP request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("endpoint", endpoint),
				zap.Int("status", wrapped.statusCode),
				zap.Duration("duration", duration),
				zap.Int64("response_size", wrapped.bytesWritten),
				zap.String("requestID", GetRequestID(r.Context())))
		})
	}
}
