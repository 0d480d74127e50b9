package transcode

import (
	"log/slog"
	"net/http"

	"github.com/jmylchreest/audarr/internal/encoder"
)

// Fallback streams encoder output straight to one client with no cache
// file and no session. The dispatcher reaches for it when a session could
// not be created, so a full cache or unwritable cache root degrades the
// request instead of failing it.
//
// The response is always a 200 with no Content-Length; Range headers are
// ignored on this path.
type Fallback struct {
	encoderPath string
	job         encoder.Job
	mime        string
	bufSize     int
	logger      *slog.Logger
}

func newFallback(encoderPath string, job encoder.Job, mime string, bufSize int, logger *slog.Logger) *Fallback {
	return &Fallback{
		encoderPath: encoderPath,
		job:         job,
		mime:        mime,
		bufSize:     bufSize,
		logger:      logger.With(slog.String("component", "transcode-fallback")),
	}
}

// ServeHTTP spawns a dedicated encoder and pipes its stdout to the
// response. The child dies with the request: there is no cache file to
// finish for anyone else.
func (h *Fallback) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	proc, err := encoder.Start(h.encoderPath, h.job, h.logger)
	if err != nil {
		h.logger.Error("spawning encoder", slog.String("error", err.Error()))
		http.Error(w, "encoder unavailable", http.StatusBadGateway)
		return
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-r.Context().Done():
			proc.Kill()
		case <-done:
		}
	}()

	w.Header().Set("Content-Type", h.mime)
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	buf := make([]byte, h.bufSize)
	var streamed int64

	for {
		n, readErr := proc.Read(buf)
		if n > 0 {
			wn, werr := w.Write(buf[:n])
			streamed += int64(wn)
			if werr != nil {
				proc.Kill()
				proc.Wait()
				h.logger.Debug("client write failed", slog.String("error", werr.Error()))
				return
			}
			_ = rc.Flush()
		}
		if readErr != nil {
			if waitErr := proc.Wait(); waitErr != nil {
				h.logger.Warn("encoder exited", slog.String("error", waitErr.Error()))
			}
			h.logger.Debug("direct stream ended", slog.Int64("streamed_bytes", streamed))
			return
		}
	}
}
