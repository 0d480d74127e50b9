package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jmylchreest/audarr/internal/observability"
)

func accessLogged(handler http.HandlerFunc, req *http.Request) string {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	AccessLog(logger)(handler).ServeHTTP(httptest.NewRecorder(), req)
	return buf.String()
}

func TestAccessLog_RecordsStatusAndBytes(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/stream/trk-0042", nil)
	req.Header.Set("Range", "bytes=0-511")

	out := accessLogged(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(make([]byte, 512))
	}, req)

	assert.Contains(t, out, `"status":206`)
	assert.Contains(t, out, `"bytes":512`)
	assert.Contains(t, out, `"range":"bytes=0-511"`)
	assert.Contains(t, out, `"path":"/stream/trk-0042"`)
}

func TestAccessLog_LevelFollowsStatus(t *testing.T) {
	cases := []struct {
		status int
		level  string
	}{
		{http.StatusOK, `"level":"INFO"`},
		{http.StatusNotFound, `"level":"WARN"`},
		{http.StatusInternalServerError, `"level":"ERROR"`},
	}

	for _, tc := range cases {
		out := accessLogged(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Contains(t, out, tc.level, "status %d", tc.status)
	}
}

func TestAccessLog_SilentHandlerLogsOK(t *testing.T) {
	out := accessLogged(func(w http.ResponseWriter, r *http.Request) {},
		httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Contains(t, out, `"status":200`)
	assert.Contains(t, out, `"bytes":0`)
	assert.NotContains(t, out, `"range"`)
}

func TestAccessLog_PlantsContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	// Same chain order as the server: RequestID runs before AccessLog.
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		observability.LoggerFromContext(r.Context()).Info("inside handler")
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-0042")

	RequestID(AccessLog(logger)(handler)).ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, "inside handler")
	assert.Contains(t, out, `"request_id":"req-0042"`)
}
