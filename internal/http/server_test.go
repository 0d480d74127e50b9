package http

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/audarr/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewServer_AppliesDefaults(t *testing.T) {
	s := NewServer(config.ServerConfig{}, discardLogger(), "")

	assert.Equal(t, "0.0.0.0:8080", s.srv.Addr)
	assert.Equal(t, 30*time.Second, s.srv.ReadTimeout)
	assert.Zero(t, s.srv.WriteTimeout)
	assert.Equal(t, 2*time.Minute, s.srv.IdleTimeout)
	assert.Equal(t, 10*time.Second, s.cfg.ShutdownTimeout)
}

func TestServer_ServesOpenAPIDocument(t *testing.T) {
	s := NewServer(config.ServerConfig{}, discardLogger(), "1.2.3")

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "audarr API")
	assert.Contains(t, rec.Body.String(), "1.2.3")
}

func TestServer_MiddlewareChain(t *testing.T) {
	s := NewServer(config.ServerConfig{}, discardLogger(), "")
	s.Router().Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("stream state corrupted")
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set("Origin", "http://player.example")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	// Recovery turned the panic into a 500; RequestID and CORS stamped the
	// response on the way in.
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
