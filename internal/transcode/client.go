package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Client serves one HTTP request from one session. It implements
// ProgressSink so the pump can wake it, and http.Handler so the stream
// route can hand the response off to it.
//
// A client can end two ways without touching the session: dead (the
// consumer went away or a write failed) or finished (the plan was fully
// served, or the wait timeout expired and the response was ended cleanly).
// Either way the encoder keeps running.
type Client struct {
	id      uuid.UUID
	session *Session
	logger  *slog.Logger

	waitTimeout time.Duration

	// waitCh carries at most one pending wakeup. The pump's non-blocking
	// send coalesces bursts of progress into a single signal.
	waitCh chan struct{}

	dead     atomic.Bool
	finished atomic.Bool
}

func newClient(session *Session, waitTimeout time.Duration, logger *slog.Logger) *Client {
	id := uuid.New()
	return &Client{
		id:      id,
		session: session,
		logger: logger.With(
			slog.String("client_id", id.String()),
			slog.String("fingerprint", session.fingerprint.String())),
		waitTimeout: waitTimeout,
		waitCh:      make(chan struct{}, 1),
	}
}

// OnUpdate runs on the pump goroutine. It never blocks: the buffered
// channel either takes the signal or already holds one.
func (c *Client) OnUpdate(produced int64, status Status) bool {
	if c.dead.Load() || c.finished.Load() {
		return false
	}
	select {
	case c.waitCh <- struct{}{}:
	default:
	}
	return true
}

// ServeHTTP streams the planned byte range, blocking while the encoder is
// still ahead of the request. The reader claim taken at attach time is
// returned when the response ends, whatever way it ends.
func (c *Client) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer c.session.Release()
	defer c.session.Detach(c)

	estimated := c.session.Estimated()
	plan, err := PlanRange(r.Header.Get("Range"), estimated)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", estimated))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		c.finished.Store(true)
		return
	}

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", c.session.ContentType())
	if plan.Bounded() {
		w.Header().Set("Content-Length", strconv.FormatInt(plan.Length(), 10))
	}
	if plan.Status == http.StatusPartialContent {
		w.Header().Set("Content-Range", plan.ContentRange(estimated))
	}
	w.WriteHeader(plan.Status)

	c.logger.Debug("streaming from session",
		slog.Int("status", plan.Status),
		slog.Int64("start", plan.Start),
		slog.Int64("estimated_bytes", estimated))

	c.run(r.Context(), w, plan)
}

// run is the client's read loop. The status load precedes the frontier
// load: once Done is observed the frontier is frozen, so the remaining
// real bytes are drained before any padding decision is made.
//
// Flushing goes through a ResponseController so it reaches the connection
// through middleware wrappers that only expose Unwrap.
func (c *Client) run(ctx context.Context, w http.ResponseWriter, plan ServePlan) {
	rc := http.NewResponseController(w)
	next := plan.Start

	for {
		if next >= plan.End {
			c.finished.Store(true)
			return
		}
		if ctx.Err() != nil {
			c.dead.Store(true)
			c.logger.Debug("client disconnected", slog.Int64("served_to", next))
			return
		}

		status := c.session.Status()
		produced := c.session.Produced()

		switch {
		case status == StatusErrored:
			c.dead.Store(true)
			c.logger.Warn("session errored mid-stream",
				slog.Int64("served_to", next),
				slog.String("error", errString(c.session.Err())))
			return

		case next < produced:
			n, err := c.session.Serve(w, next, plan.End-next)
			if err != nil {
				c.dead.Store(true)
				if errors.Is(err, ErrCacheRead) {
					c.logger.Warn("cache read failed", slog.String("error", err.Error()))
				} else {
					c.logger.Debug("client write failed", slog.String("error", err.Error()))
				}
				return
			}
			next += n
			// A failed flush surfaces as a write error on the next chunk.
			_ = rc.Flush()

		case status == StatusDone:
			if plan.Bounded() && next < plan.End {
				if !c.pad(w, rc, next, plan.End) {
					return
				}
			}
			c.finished.Store(true)
			return

		default:
			if !c.await(ctx) {
				return
			}
		}
	}
}

// await blocks until the pump signals progress, the consumer goes away, or
// the wait timeout expires. A timeout ends the response cleanly rather
// than holding the connection open against a wedged encoder.
func (c *Client) await(ctx context.Context) bool {
	timer := time.NewTimer(c.waitTimeout)
	defer timer.Stop()

	select {
	case <-c.waitCh:
		return true
	case <-ctx.Done():
		c.dead.Store(true)
		return false
	case <-timer.C:
		c.logger.Warn("no encoder progress within the wait timeout",
			slog.Duration("timeout", c.waitTimeout))
		c.finished.Store(true)
		return false
	}
}

// pad writes zeros up to the advertised end. The encoder finished short of
// the estimate, and the Content-Length promise has to be kept.
func (c *Client) pad(w http.ResponseWriter, rc *http.ResponseController, next, end int64) bool {
	total := end - next
	zeros := make([]byte, min(c.session.chunkSize, total))

	for next < end {
		n := min(int64(len(zeros)), end-next)
		wn, err := w.Write(zeros[:n])
		next += int64(wn)
		if err != nil {
			c.dead.Store(true)
			c.logger.Debug("client write failed during padding", slog.String("error", err.Error()))
			return false
		}
		_ = rc.Flush()
	}

	c.logger.Debug("padded response to advertised length", slog.Int64("pad_bytes", total))
	return true
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
