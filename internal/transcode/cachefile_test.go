package transcode

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/audarr/internal/testutil"
)

func TestCacheFile_EmptyArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.mp3")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	h := newCacheFile(path, "audio/mpeg", 0, 4096, slog.Default())

	rec := serveToRecorder(h, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("Content-Length"))
	assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Body.Bytes())

	// No byte of an empty artifact is addressable, whatever the range.
	for _, rangeHeader := range []string{"bytes=0-", "bytes=0-0", "bytes=-1"} {
		rec := serveToRecorder(h, rangeHeader)
		assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code, rangeHeader)
		assert.Equal(t, "bytes */0", rec.Header().Get("Content-Range"), rangeHeader)
		assert.Empty(t, rec.Body.Bytes(), rangeHeader)
	}
}

func TestDispatcher_OffsetAtEndYieldsEmptyArtifact(t *testing.T) {
	skipIfNoShell(t)

	d, reg, req := newTestDispatcher(t, testutil.StubEncoder{})
	req.Offset = req.Duration // nothing left of the source to encode

	h, err := d.Dispatch(req)
	require.NoError(t, err)
	require.IsType(t, &Client{}, h)

	rec := serveToRecorder(h, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.Bytes())

	require.Eventually(t, func() bool { return reg.Len() == 0 },
		5*time.Second, 10*time.Millisecond)

	// The persisted empty artifact is a legitimate hit and must advertise
	// its real size instead of an unknown length.
	h2, err := d.Dispatch(req)
	require.NoError(t, err)
	require.IsType(t, &CacheFile{}, h2)

	rec2 := serveToRecorder(h2, "")
	assert.Equal(t, http.StatusOK, rec2.Code)
	assert.Equal(t, "0", rec2.Header().Get("Content-Length"))
	assert.Empty(t, rec2.Body.Bytes())

	rec3 := serveToRecorder(h2, "bytes=0-")
	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec3.Code)
	assert.Equal(t, "bytes */0", rec3.Header().Get("Content-Range"))
}
