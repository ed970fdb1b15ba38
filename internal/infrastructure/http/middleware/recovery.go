package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/yuzvak/starnotary-service/internal/infrastructure/http/response"
	"github.com/yuzvak/starnotary-service/internal/pkg/logger"
)

// NewRecoveryMiddleware turns a handler panic into a 500 envelope. The log
// entry carries the request's correlation id so it can be matched with the
// access log line and the X-Request-ID the client saw.
func NewRecoveryMiddleware(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				reqLog := log
				if id := RequestIDFrom(r); id != "" {
					reqLog = log.WithCorrelationID(id)
				}
				reqLog.Error("Panic recovered",
					"error", rec,
					"stack", string(debug.Stack()),
					"path", r.URL.Path,
					"method", r.Method,
					"account", AccountFrom(r.Context()),
				)

				response.WriteError(w, http.StatusInternalServerError, response.StatusInternalError, "Internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
