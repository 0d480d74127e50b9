package transcode

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmylchreest/audarr/internal/encoder"
	"github.com/jmylchreest/audarr/pkg/bytesize"
)

// Status is the lifecycle state of a session.
type Status int32

// Session lifecycle states. A session starts Working and makes exactly one
// transition, to Done or Errored.
const (
	StatusWorking Status = iota
	StatusDone
	StatusErrored
)

// String returns the lowercase state name.
func (s Status) String() string {
	switch s {
	case StatusWorking:
		return "working"
	case StatusDone:
		return "done"
	case StatusErrored:
		return "errored"
	}
	return "unknown"
}

// Terminal reports whether the state is final.
func (s Status) Terminal() bool {
	return s != StatusWorking
}

var (
	// ErrSessionFinished rejects attaching to a session that has reached a
	// terminal state. Callers re-resolve: a Done session's output is on
	// disk and served as a cache file.
	ErrSessionFinished = errors.New("transcode session finished")

	// ErrCacheRead reports a failed read from the session's cache file.
	// It kills only the client that hit it; the session keeps running.
	ErrCacheRead = errors.New("cache read failed")
)

// ProgressSink receives produced-byte updates from a session. OnUpdate
// runs on the session's pump goroutine and must never block; returning
// false removes the sink from the session.
type ProgressSink interface {
	OnUpdate(produced int64, status Status) bool
}

// Session owns one encoder child process and the cache file it fills. A
// single pump goroutine copies encoder stdout into the file and fans
// progress out to attached clients; any number of clients read the filled
// portion concurrently through Serve.
//
// Clients never cancel a session. When the last client aborts the pump
// keeps running to EOF so the cache file is complete and the next request
// for the same fingerprint is a plain file hit.
type Session struct {
	fingerprint Fingerprint
	req         Request
	cachePath   string
	estimated   int64
	startedAt   time.Time

	registry *Registry
	logger   *slog.Logger
	proc     *encoder.Process

	pumpBufSize int
	chunkSize   int64

	// produced is the frontier: bytes written to the cache file so far.
	// It only grows, and freezes once the session is terminal.
	produced atomic.Int64
	status   atomic.Int32

	stateMu    sync.Mutex
	finalBytes int64
	err        error

	// fileMu orders pump writes against Serve reads. Never held together
	// with clientMu.
	fileMu sync.Mutex
	file   *os.File

	// clientMu guards the sink set and the reader refcount.
	clientMu sync.Mutex
	clients  map[ProgressSink]struct{}
	refs     int

	done chan struct{}
}

// sessionParams carries everything a new session needs from the
// dispatcher.
type sessionParams struct {
	req         Request
	fingerprint Fingerprint
	cachePath   string
	encoderPath string
	pumpBufSize int
	chunkSize   int64
	registry    *Registry
	logger      *slog.Logger
}

// newSession opens the cache file and spawns the encoder. The pump is not
// running yet: the dispatcher starts it once the session is visible in the
// registry. On failure nothing is left behind, including the cache file.
func newSession(p sessionParams) (*Session, error) {
	if err := os.MkdirAll(filepath.Dir(p.cachePath), 0755); err != nil {
		return nil, fmt.Errorf("creating cache shard: %w", err)
	}
	file, err := os.OpenFile(p.cachePath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening cache file: %w", err)
	}

	proc, err := encoder.Start(p.encoderPath, p.req.Job(), p.logger)
	if err != nil {
		file.Close()
		os.Remove(p.cachePath)
		return nil, fmt.Errorf("spawning encoder: %w", err)
	}

	return &Session{
		fingerprint: p.fingerprint,
		req:         p.req,
		cachePath:   p.cachePath,
		estimated:   EstimateBytes(p.req.Bitrate, p.req.Duration, p.req.Offset),
		startedAt:   time.Now(),
		registry:    p.registry,
		logger:      p.logger.With(slog.String("fingerprint", p.fingerprint.String())),
		proc:        proc,
		pumpBufSize: p.pumpBufSize,
		chunkSize:   p.chunkSize,
		file:        file,
		clients:     make(map[ProgressSink]struct{}),
		done:        make(chan struct{}),
	}, nil
}

// start launches the pump goroutine.
func (s *Session) start() {
	go s.pump()
}

// pump is the session's single producer: it moves encoder stdout into the
// cache file and owns every terminal transition.
func (s *Session) pump() {
	buf := make([]byte, s.pumpBufSize)
	for {
		n, readErr := s.proc.Read(buf)
		if n > 0 {
			if err := s.writeChunk(buf[:n]); err != nil {
				s.proc.Kill()
				s.proc.Wait()
				s.fail(fmt.Errorf("writing cache file: %w", err))
				return
			}
			s.notifyProgress()
		}

		switch {
		case readErr == nil:
			continue
		case errors.Is(readErr, io.EOF):
			// The pipe also closes when the child crashes, so the exit
			// status decides between Done and Errored.
			if err := s.proc.Wait(); err != nil {
				s.fail(fmt.Errorf("encoder exited: %w", err))
				return
			}
			s.finish()
			return
		default:
			s.proc.Kill()
			s.proc.Wait()
			s.fail(fmt.Errorf("reading encoder output: %w", readErr))
			return
		}
	}
}

// writeChunk appends data at the produced frontier. The frontier is
// published only after the bytes are in the file, so a reader below it can
// never observe a torn write.
func (s *Session) writeChunk(data []byte) error {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	if s.file == nil {
		return errors.New("cache file closed")
	}
	off := s.produced.Load()
	if _, err := s.file.WriteAt(data, off); err != nil {
		return err
	}
	s.produced.Store(off + int64(len(data)))
	return nil
}

// finish moves the session to Done after a clean encoder EOF. Order
// matters: the status store precedes deregistration and the terminal walk,
// so a dispatcher that still finds this session gets a refused attach and
// re-resolves to the (complete) cache file.
func (s *Session) finish() {
	produced := s.produced.Load()

	s.stateMu.Lock()
	s.finalBytes = produced
	s.stateMu.Unlock()
	s.status.Store(int32(StatusDone))

	if s.registry != nil {
		s.registry.remove(s)
	}

	s.logger.Info("transcode complete",
		slog.String("size", bytesize.Format(bytesize.Size(produced))),
		slog.Int64("final_bytes", produced),
		slog.Int64("estimated_bytes", s.estimated),
		slog.Duration("elapsed", time.Since(s.startedAt)))

	s.notifyTerminal(StatusDone)
	s.maybeCloseFile()
	close(s.done)
}

// fail moves the session to Errored. The partial cache file is useless, so
// it is removed before the failure becomes visible; a concurrent dispatch
// that sees Errored therefore never finds stale bytes at the cache path.
func (s *Session) fail(cause error) {
	s.stateMu.Lock()
	s.err = cause
	s.stateMu.Unlock()

	s.closeFile(true)
	s.status.Store(int32(StatusErrored))

	if s.registry != nil {
		s.registry.remove(s)
	}

	s.logger.Error("transcode failed",
		slog.String("error", cause.Error()),
		slog.Int64("produced_bytes", s.produced.Load()))

	s.notifyTerminal(StatusErrored)
	close(s.done)
}

// notifyProgress wakes every sink with the current frontier and prunes the
// ones that report themselves gone.
func (s *Session) notifyProgress() {
	produced := s.produced.Load()

	s.clientMu.Lock()
	for sink := range s.clients {
		if !sink.OnUpdate(produced, StatusWorking) {
			delete(s.clients, sink)
		}
	}
	s.clientMu.Unlock()
}

// notifyTerminal delivers the final state exactly once and empties the
// sink set. Nothing is notified after it runs: Attach refuses terminal
// sessions, so no sink can slip in behind the walk.
func (s *Session) notifyTerminal(st Status) {
	produced := s.produced.Load()

	s.clientMu.Lock()
	for sink := range s.clients {
		sink.OnUpdate(produced, st)
	}
	clear(s.clients)
	s.clientMu.Unlock()
}

// Attach subscribes a sink to progress updates and takes a reader claim on
// the cache file. It fails with ErrSessionFinished once the session is
// terminal; either the attach lands before the terminal walk and the sink
// is woken by it, or it is refused. There is no third outcome.
func (s *Session) Attach(sink ProgressSink) error {
	s.clientMu.Lock()
	defer s.clientMu.Unlock()

	if Status(s.status.Load()).Terminal() {
		return ErrSessionFinished
	}
	s.clients[sink] = struct{}{}
	s.refs++
	return nil
}

// Detach removes a sink that finished on its own, ahead of the walk
// pruning it.
func (s *Session) Detach(sink ProgressSink) {
	s.clientMu.Lock()
	delete(s.clients, sink)
	s.clientMu.Unlock()
}

// Release returns a reader claim taken by Attach. Once the session is Done
// and the last claim is gone the file descriptor is closed; the complete
// file stays on disk for the cache-file handler.
func (s *Session) Release() {
	s.clientMu.Lock()
	s.refs--
	s.clientMu.Unlock()

	s.maybeCloseFile()
}

// maybeCloseFile closes the cache descriptor once no reader can need it:
// the session is Done and no claims remain. Errored sessions close the
// descriptor in fail instead.
func (s *Session) maybeCloseFile() {
	if Status(s.status.Load()) != StatusDone {
		return
	}

	s.clientMu.Lock()
	idle := s.refs <= 0
	s.clientMu.Unlock()

	if idle {
		s.closeFile(false)
	}
}

// closeFile closes the descriptor and optionally unlinks the file.
func (s *Session) closeFile(remove bool) {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	if s.file != nil {
		s.file.Close()
		s.file = nil
	}
	if remove {
		os.Remove(s.cachePath)
	}
}

// Serve copies already-produced bytes into out, starting at offset and
// never exceeding maxLen, the chunk size, or the produced frontier. It
// returns 0 with no error while the frontier has not reached offset.
//
// A cache read failure wraps ErrCacheRead; a failure from out is returned
// as-is. Both kill only the calling client: the pump and the other clients
// are unaffected.
func (s *Session) Serve(out io.Writer, offset, maxLen int64) (int64, error) {
	if maxLen <= 0 {
		return 0, nil
	}
	available := s.produced.Load() - offset
	if available <= 0 {
		return 0, nil
	}

	n := min(maxLen, s.chunkSize, available)
	buf := make([]byte, n)

	s.fileMu.Lock()
	if s.file == nil {
		s.fileMu.Unlock()
		return 0, fmt.Errorf("%w: file closed", ErrCacheRead)
	}
	rn, err := s.file.ReadAt(buf, offset)
	s.fileMu.Unlock()

	if err != nil && !(errors.Is(err, io.EOF) && int64(rn) == n) {
		return 0, fmt.Errorf("%w: %v", ErrCacheRead, err)
	}

	wn, werr := out.Write(buf[:rn])
	return int64(wn), werr
}

// Close kills the encoder child. The pump observes the dying pipe and
// drives the usual Errored teardown, which wakes every waiting client.
// Used on daemon shutdown; ordinary client death never lands here.
func (s *Session) Close() {
	if err := s.proc.Kill(); err != nil {
		s.logger.Debug("killing encoder", slog.String("error", err.Error()))
	}
}

// Done returns a channel closed once the session has fully torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Fingerprint returns the session's cache key.
func (s *Session) Fingerprint() Fingerprint {
	return s.fingerprint
}

// ContentType returns the MIME type of the output.
func (s *Session) ContentType() string {
	return s.req.Format.MIME()
}

// Produced returns the current frontier.
func (s *Session) Produced() int64 {
	return s.produced.Load()
}

// Estimated returns the projected total output size; <= 0 means unknown.
func (s *Session) Estimated() int64 {
	return s.estimated
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	return Status(s.status.Load())
}

// FinalBytes returns the exact output size. Valid once Status is Done.
func (s *Session) FinalBytes() int64 {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.finalBytes
}

// Err returns the terminal error for Errored sessions.
func (s *Session) Err() error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.err
}

// ClientCount returns the number of attached sinks.
func (s *Session) ClientCount() int {
	s.clientMu.Lock()
	defer s.clientMu.Unlock()
	return len(s.clients)
}

// EncoderStats is the resource usage slice of SessionStats.
type EncoderStats struct {
	PID           int     `json:"pid"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryRSSMB   float64 `json:"memory_rss_mb"`
	MemoryPercent float64 `json:"memory_percent"`
}

// SessionStats is a point-in-time snapshot for the sessions API.
type SessionStats struct {
	Fingerprint    string        `json:"fingerprint"`
	InputPath      string        `json:"input_path"`
	Format         string        `json:"format"`
	Bitrate        int           `json:"bitrate"`
	OffsetSeconds  float64       `json:"offset_seconds,omitempty"`
	Status         string        `json:"status"`
	ProducedBytes  int64         `json:"produced_bytes"`
	EstimatedBytes int64         `json:"estimated_bytes,omitempty"`
	ClientCount    int           `json:"client_count"`
	StartedAt      time.Time     `json:"started_at"`
	UptimeSeconds  float64       `json:"uptime_seconds"`
	Encoder        *EncoderStats `json:"encoder,omitempty"`
}

// Stats returns a snapshot of the session for the management API.
func (s *Session) Stats() SessionStats {
	stats := SessionStats{
		Fingerprint:    s.fingerprint.String(),
		InputPath:      s.req.InputPath,
		Format:         string(s.req.Format),
		Bitrate:        s.req.Bitrate,
		OffsetSeconds:  s.req.Offset.Seconds(),
		Status:         s.Status().String(),
		ProducedBytes:  s.produced.Load(),
		EstimatedBytes: s.estimated,
		ClientCount:    s.ClientCount(),
		StartedAt:      s.startedAt,
		UptimeSeconds:  time.Since(s.startedAt).Seconds(),
	}
	if ps := s.proc.Stats(); ps != nil {
		stats.Encoder = &EncoderStats{
			PID:           ps.PID,
			CPUPercent:    ps.CPUPercent,
			MemoryRSSMB:   ps.MemoryRSSMB,
			MemoryPercent: ps.MemoryPercent,
		}
	}
	return stats
}
