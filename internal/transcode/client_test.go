package transcode

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/audarr/internal/encoder"
	"github.com/jmylchreest/audarr/internal/testutil"
)

func TestClient_RangeRequests(t *testing.T) {
	skipIfNoShell(t)

	payload := testutil.Payload(4000)
	d, reg, req := newTestDispatcher(t, testutil.StubEncoder{Payload: payload})

	tests := []struct {
		name        string
		rangeHeader string
		wantStatus  int
		wantBody    []byte
		wantRange   string
		wantLength  string
	}{
		{"bounded", "bytes=1000-1999", http.StatusPartialContent,
			payload[1000:2000], "bytes 1000-1999/4000", "1000"},
		{"open tail", "bytes=3500-", http.StatusPartialContent,
			payload[3500:], "bytes 3500-3999/4000", "500"},
		{"suffix", "bytes=-500", http.StatusPartialContent,
			payload[3500:], "bytes 3500-3999/4000", "500"},
		{"last byte", "bytes=3999-3999", http.StatusPartialContent,
			payload[3999:], "bytes 3999-3999/4000", "1"},
		{"full", "", http.StatusOK, payload, "", "4000"},
	}

	// The first request streams from a live session; once it completes
	// the rest resolve to cache file hits. Both paths must honor ranges
	// identically.
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := d.Dispatch(req)
			require.NoError(t, err)

			rec := serveToRecorder(h, tt.rangeHeader)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantBody, rec.Body.Bytes())
			assert.Equal(t, tt.wantRange, rec.Header().Get("Content-Range"))
			assert.Equal(t, tt.wantLength, rec.Header().Get("Content-Length"))
		})
	}

	require.Eventually(t, func() bool { return reg.Len() == 0 },
		5*time.Second, 10*time.Millisecond)
}

func TestClient_OpenRangeBeforeFirstByte(t *testing.T) {
	skipIfNoShell(t)

	payload := testutil.Payload(4000)
	stub := testutil.StubEncoder{Payload: payload, InitialDelay: 200 * time.Millisecond}
	d, _, req := newTestDispatcher(t, stub)

	h, err := d.Dispatch(req)
	require.NoError(t, err)

	// Nothing is produced yet; the client must wait for the frontier
	// instead of refusing the range.
	rec := serveToRecorder(h, "bytes=0-")
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "bytes 0-3999/4000", rec.Header().Get("Content-Range"))
	assert.Equal(t, payload, rec.Body.Bytes())
}

func TestClient_UnknownLengthOpenRangeDowngrades(t *testing.T) {
	skipIfNoShell(t)

	payload := testutil.Payload(2048)
	d, _, req := newTestDispatcher(t, testutil.StubEncoder{Payload: payload})
	req.Duration = 0 // probe failed, so no size estimate

	h, err := d.Dispatch(req)
	require.NoError(t, err)
	require.IsType(t, &Client{}, h)

	// With no known end there is no Content-Range to state, so the open
	// range downgrades to a full unbounded response.
	rec := serveToRecorder(h, "bytes=500-")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Range"))
	assert.Empty(t, rec.Header().Get("Content-Length"))
	assert.Equal(t, payload, rec.Body.Bytes())
}

func TestClient_UnsatisfiableRange(t *testing.T) {
	skipIfNoShell(t)

	d, reg, req := newTestDispatcher(t, testutil.StubEncoder{Payload: testutil.Payload(4000)})

	h, err := d.Dispatch(req)
	require.NoError(t, err)

	rec := serveToRecorder(h, "bytes=4000-")
	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code)
	assert.Equal(t, "bytes */4000", rec.Header().Get("Content-Range"))
	assert.Empty(t, rec.Body.Bytes())

	// The refused client does not stop the encoder; the output still
	// lands in the cache.
	require.Eventually(t, func() bool { return reg.Len() == 0 },
		5*time.Second, 10*time.Millisecond)

	h2, err := d.Dispatch(req)
	require.NoError(t, err)
	assert.IsType(t, &CacheFile{}, h2)
}

func TestClient_PadsShortOutputToEstimate(t *testing.T) {
	skipIfNoShell(t)

	payload := testutil.Payload(3500)

	t.Run("full response", func(t *testing.T) {
		d, _, req := newTestDispatcher(t, testutil.StubEncoder{Payload: payload})
		h, err := d.Dispatch(req)
		require.NoError(t, err)

		rec := serveToRecorder(h, "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "4000", rec.Header().Get("Content-Length"))

		body := rec.Body.Bytes()
		require.Len(t, body, 4000)
		assert.Equal(t, payload, body[:3500])
		assert.Equal(t, make([]byte, 500), body[3500:])
	})

	// A range landing wholly inside the padded region still gets its
	// promised bytes.
	t.Run("range past real output", func(t *testing.T) {
		d, _, req := newTestDispatcher(t, testutil.StubEncoder{Payload: payload})
		h, err := d.Dispatch(req)
		require.NoError(t, err)

		rec := serveToRecorder(h, "bytes=3999-3999")
		assert.Equal(t, http.StatusPartialContent, rec.Code)
		assert.Equal(t, "1", rec.Header().Get("Content-Length"))
		assert.Equal(t, "bytes 3999-3999/4000", rec.Header().Get("Content-Range"))
		assert.Equal(t, []byte{0}, rec.Body.Bytes())
	})
}

func TestClient_WaitTimeoutEndsResponse(t *testing.T) {
	skipIfNoShell(t)

	dir := t.TempDir()
	stub := testutil.StubEncoder{Payload: testutil.Payload(1024), HangAfter: true}
	script := stub.Write(t, dir)

	reg := NewRegistry(slog.Default())
	t.Cleanup(reg.Close)
	d := NewDispatcher(Config{
		CacheRoot:   filepath.Join(dir, "cache"),
		EncoderPath: script,
		WaitTimeout: 150 * time.Millisecond,
	}, reg, slog.Default())

	req := Request{
		InputPath:   filepath.Join(dir, "input.flac"),
		Duration:    time.Second,
		Format:      encoder.FormatMP3,
		Bitrate:     32000,
		StreamIndex: -1,
	}

	h, err := d.Dispatch(req)
	require.NoError(t, err)

	start := time.Now()
	rec := serveToRecorder(h, "")
	elapsed := time.Since(start)

	// Everything produced so far was served, then the response ended
	// cleanly at the timeout instead of hanging on the wedged encoder.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testutil.Payload(1024), rec.Body.Bytes())
	assert.Less(t, elapsed, 5*time.Second)
}

func TestClient_DisconnectLeavesSessionRunning(t *testing.T) {
	skipIfNoShell(t)

	payload := testutil.Payload(4000)
	stub := testutil.StubEncoder{Payload: payload, ChunkSize: 256, Delay: 10 * time.Millisecond}
	d, reg, req := newTestDispatcher(t, stub)

	h, err := d.Dispatch(req)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	httpReq := httptest.NewRequest(http.MethodGet, "/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	served := make(chan struct{})
	go func() {
		defer close(served)
		h.ServeHTTP(rec, httpReq)
	}()

	// Drop the client mid-transcode.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-served:
	case <-time.After(5 * time.Second):
		t.Fatal("client did not return after disconnect")
	}

	// The encoder keeps running to EOF so the cache entry completes.
	require.Eventually(t, func() bool { return reg.Len() == 0 },
		10*time.Second, 10*time.Millisecond)

	h2, err := d.Dispatch(req)
	require.NoError(t, err)
	require.IsType(t, &CacheFile{}, h2)

	rec2 := serveToRecorder(h2, "")
	assert.Equal(t, payload, rec2.Body.Bytes())
}
