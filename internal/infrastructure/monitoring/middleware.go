package monitoring

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

type HTTPMetricsMiddleware struct {
	next http.Handler
}

func NewHTTPMetricsMiddleware(next http.Handler) *HTTPMetricsMiddleware {
	return &HTTPMetricsMiddleware{
		next: next,
	}
}

func (m *HTTPMetricsMiddleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	wrapped := &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}

	handlerName := extractHandlerName(r.URL.Path)

	m.next.ServeHTTP(wrapped, r)

	duration := time.Since(start).Seconds()
	statusCode := strconv.Itoa(wrapped.statusCode)

	HTTPRequestDuration.WithLabelValues(handlerName, r.Method, statusCode).Observe(duration)
	HTTPRequestsTotal.WithLabelValues(handlerName, r.Method, statusCode).Inc()
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// extractHandlerName keeps label cardinality bounded by dropping ids.
func extractHandlerName(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case parts[0] == "stars" && len(parts) == 1:
		return "mint"
	case parts[0] == "stars" && len(parts) == 2:
		return "star_metadata"
	case parts[0] == "stars" && len(parts) >= 3:
		return "star_" + parts[2]
	case parts[0] == "accounts" && len(parts) >= 3:
		return "account_" + parts[2]
	case parts[0] == "operators", parts[0] == "coordinates", parts[0] == "events", parts[0] == "metrics", parts[0] == "health":
		return parts[0]
	case parts[0] == "":
		return "root"
	default:
		return "unknown"
	}
}

func WrapHandler(handler http.Handler) http.Handler {
	return NewHTTPMetricsMiddleware(handler)
}
