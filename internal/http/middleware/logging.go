package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jmylchreest/audarr/internal/observability"
)

// statusRecorder captures the status code and body size a handler produced.
// http.ResponseController reaches the native writer through Unwrap, so
// streaming handlers keep flush and deadline control.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status != 0 {
		return
	}
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(p []byte) (int, error) {
	if sr.status == 0 {
		sr.WriteHeader(http.StatusOK)
	}
	n, err := sr.ResponseWriter.Write(p)
	sr.bytes += int64(n)
	return n, err
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// AccessLog emits one line per request. Stream responses can run for minutes
// and move a lot of bytes, so the line carries the byte count and any Range
// header alongside method, path and status. Server errors log at error
// level, client errors at warn.
//
// The middleware also plants a request-scoped logger in the context, so
// handler logs downstream carry the correlation ID without threading it by
// hand.
func AccessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqLog := observability.WithRequestID(logger, GetRequestID(r.Context()))
			ctx := observability.ContextWithLogger(r.Context(), reqLog)
			r = r.WithContext(ctx)

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}

			level := slog.LevelInfo
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			}

			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int64("bytes", rec.bytes),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote_addr", r.RemoteAddr),
			}
			if rng := r.Header.Get("Range"); rng != "" {
				attrs = append(attrs, slog.String("range", rng))
			}

			reqLog.Log(ctx, level, "http request", attrs...)
		})
	}
}
