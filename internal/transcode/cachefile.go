package transcode

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
)

// CacheFile serves a completed cache artifact. Unlike a session the total
// size is exact, so every plan it serves has a finite end and a truthful
// Content-Length.
type CacheFile struct {
	path      string
	mime      string
	size      int64
	chunkSize int64
	logger    *slog.Logger
}

func newCacheFile(path, mime string, size, chunkSize int64, logger *slog.Logger) *CacheFile {
	return &CacheFile{
		path:      path,
		mime:      mime,
		size:      size,
		chunkSize: chunkSize,
		logger:    logger.With(slog.String("cache_file", path)),
	}
}

// ServeHTTP streams the planned byte range from disk.
func (h *CacheFile) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// PlanRange reads a total of zero as "length unknown", which is never
	// the case for a finished artifact. An empty artifact has no
	// satisfiable ranges at all, so it is answered without a plan.
	if h.size == 0 {
		if r.Header.Get("Range") != "" {
			w.Header().Set("Content-Range", "bytes */0")
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Content-Type", h.mime)
		w.Header().Set("Content-Length", "0")
		w.WriteHeader(http.StatusOK)
		return
	}

	plan, err := PlanRange(r.Header.Get("Range"), h.size)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", h.size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	f, err := os.Open(h.path)
	if err != nil {
		h.logger.Error("opening cache file", slog.String("error", err.Error()))
		http.Error(w, "cache file unavailable", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", h.mime)
	w.Header().Set("Content-Length", strconv.FormatInt(plan.Length(), 10))
	if plan.Status == http.StatusPartialContent {
		w.Header().Set("Content-Range", plan.ContentRange(h.size))
	}
	w.WriteHeader(plan.Status)

	rc := http.NewResponseController(w)
	buf := make([]byte, min(h.chunkSize, max(plan.Length(), 1)))
	next := plan.Start

	for next < plan.End {
		n := min(int64(len(buf)), plan.End-next)
		rn, rerr := f.ReadAt(buf[:n], next)
		if rn > 0 {
			wn, werr := w.Write(buf[:rn])
			next += int64(wn)
			if werr != nil {
				h.logger.Debug("client write failed", slog.String("error", werr.Error()))
				return
			}
			_ = rc.Flush()
		}
		if rerr != nil {
			if !errors.Is(rerr, io.EOF) || next < plan.End {
				h.logger.Warn("cache file read failed",
					slog.Int64("offset", next),
					slog.String("error", rerr.Error()))
			}
			return
		}
	}
}
