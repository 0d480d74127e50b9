package transcode

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// Config holds the dispatcher's tunables. Zero fields fall back to
// DefaultConfig values.
type Config struct {
	// CacheRoot is the directory holding the sharded cache tree.
	CacheRoot string

	// EncoderPath is the encoder binary, resolved through PATH if bare.
	EncoderPath string

	// Ladder is the set of bitrates requests are snapped onto.
	Ladder Ladder

	// WaitTimeout bounds how long a client waits for encoder progress
	// before its response is ended.
	WaitTimeout time.Duration

	// PumpBufferSize is the session read buffer for encoder stdout.
	PumpBufferSize int

	// ChunkSize caps a single cache read served to a client.
	ChunkSize int64
}

// DefaultConfig returns the dispatcher defaults.
func DefaultConfig() Config {
	return Config{
		CacheRoot:      "./cache/transcode",
		EncoderPath:    "ffmpeg",
		Ladder:         DefaultLadder,
		WaitTimeout:    60 * time.Second,
		PumpBufferSize: 256 * 1024,
		ChunkSize:      256 * 1024,
	}
}

// Dispatcher resolves transcode requests to handlers: an attached client
// on a live session, the completed cache file, or a brand new session. All
// requests with the same fingerprint funnel into one encoder child.
type Dispatcher struct {
	registry    *Registry
	ladder      Ladder
	cacheRoot   string
	encoderPath string
	waitTimeout time.Duration
	pumpBufSize int
	chunkSize   int64
	logger      *slog.Logger
}

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(cfg Config, registry *Registry, logger *slog.Logger) *Dispatcher {
	def := DefaultConfig()
	if cfg.CacheRoot == "" {
		cfg.CacheRoot = def.CacheRoot
	}
	if cfg.EncoderPath == "" {
		cfg.EncoderPath = def.EncoderPath
	}
	if len(cfg.Ladder) == 0 {
		cfg.Ladder = def.Ladder
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = def.WaitTimeout
	}
	if cfg.PumpBufferSize <= 0 {
		cfg.PumpBufferSize = def.PumpBufferSize
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		registry:    registry,
		ladder:      cfg.Ladder,
		cacheRoot:   cfg.CacheRoot,
		encoderPath: cfg.EncoderPath,
		waitTimeout: cfg.WaitTimeout,
		pumpBufSize: cfg.PumpBufferSize,
		chunkSize:   cfg.ChunkSize,
		logger:      logger.With(slog.String("component", "transcode-dispatcher")),
	}
}

// Dispatch resolves a request to the handler that will serve it. The
// bitrate is snapped onto the ladder before fingerprinting, so every
// in-between bitrate lands on the same cache entry.
//
// Session creation failure is not a request failure: the caller gets a
// non-caching direct stream instead. Only a closed registry returns an
// error.
func (d *Dispatcher) Dispatch(req Request) (http.Handler, error) {
	req.validate()
	req.Bitrate = d.ladder.Snap(req.Bitrate)

	fp := fingerprintRequest(req)
	cachePath := fp.CachePath(d.cacheRoot)

	// Lookup, attach, cache probe and insert happen under one lock so a
	// second request for this fingerprint cannot start a second encoder.
	d.registry.mu.Lock()
	h, err := d.resolveLocked(req, fp, cachePath)
	d.registry.mu.Unlock()

	if err == nil || errors.Is(err, ErrRegistryClosed) {
		return h, err
	}

	d.logger.Warn("session creation failed, streaming without cache",
		slog.String("fingerprint", fp.String()),
		slog.String("error", err.Error()))
	return newFallback(d.encoderPath, req.Job(), req.Format.MIME(), d.pumpBufSize, d.logger), nil
}

func (d *Dispatcher) resolveLocked(req Request, fp Fingerprint, cachePath string) (http.Handler, error) {
	if d.registry.closed {
		return nil, ErrRegistryClosed
	}

	if s, ok := d.registry.sessions[fp]; ok {
		client := newClient(s, d.waitTimeout, d.logger)
		if err := s.Attach(client); err == nil {
			d.logger.Debug("attached to running session",
				slog.String("fingerprint", fp.String()),
				slog.Int("clients", s.ClientCount()))
			return client, nil
		}
		if s.Status() == StatusErrored {
			// The failed session unlinked its cache file before its
			// status became visible, so a stat here could only see
			// remnants. Start fresh.
			return d.startSessionLocked(req, fp, cachePath)
		}
		// Done but not yet deregistered; the complete file is on disk.
	}

	if fi, err := os.Stat(cachePath); err == nil && fi.Mode().IsRegular() {
		now := time.Now()
		if err := os.Chtimes(cachePath, now, now); err != nil {
			d.logger.Debug("touching cache file", slog.String("error", err.Error()))
		}
		d.logger.Debug("serving cache hit",
			slog.String("fingerprint", fp.String()),
			slog.Int64("size", fi.Size()))
		return newCacheFile(cachePath, req.Format.MIME(), fi.Size(), d.chunkSize, d.logger), nil
	}

	return d.startSessionLocked(req, fp, cachePath)
}

func (d *Dispatcher) startSessionLocked(req Request, fp Fingerprint, cachePath string) (http.Handler, error) {
	s, err := newSession(sessionParams{
		req:         req,
		fingerprint: fp,
		cachePath:   cachePath,
		encoderPath: d.encoderPath,
		pumpBufSize: d.pumpBufSize,
		chunkSize:   d.chunkSize,
		registry:    d.registry,
		logger:      d.logger,
	})
	if err != nil {
		return nil, err
	}

	// An Errored predecessor may still occupy the slot; its removal is
	// identity checked, so overwriting it here is safe.
	d.registry.sessions[fp] = s

	// The pump is not running yet, so this attach cannot be refused.
	client := newClient(s, d.waitTimeout, d.logger)
	s.Attach(client)
	s.start()

	d.logger.Info("session started",
		slog.String("fingerprint", fp.String()),
		slog.String("input", req.InputPath),
		slog.String("format", string(req.Format)),
		slog.Int("bitrate", req.Bitrate),
		slog.Int64("estimated_bytes", s.Estimated()))
	return client, nil
}
