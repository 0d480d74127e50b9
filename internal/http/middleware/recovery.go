package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/jmylchreest/audarr/internal/observability"
)

// Recovery converts handler panics into logged 500 responses so one bad
// request cannot take the server down. It logs through the request-scoped
// logger planted by AccessLog, which already carries the correlation ID.
//
// http.ErrAbortHandler is re-raised untouched: it is the sanctioned way to
// abort a response mid-stream and the server loop handles it quietly.
func Recovery() func(http.Handler) http.Handler {
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

				ctx := r.Context()
				observability.LoggerFromContext(ctx).ErrorContext(ctx, "panic recovered",
					slog.Any("error", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)

				// The stream may already be half-written; Error is best
				// effort at this point.
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
