package handlers

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/jmylchreest/audarr/internal/encoder"
	"github.com/jmylchreest/audarr/internal/media"
	"github.com/jmylchreest/audarr/internal/models"
	"github.com/jmylchreest/audarr/internal/repository"
	"github.com/jmylchreest/audarr/internal/transcode"
	"github.com/jmylchreest/audarr/internal/version"
)

// StreamHandler handles the transcoded audio streaming endpoint.
type StreamHandler struct {
	tracks         repository.TrackRepository
	prober         *media.Prober
	dispatcher     *transcode.Dispatcher
	defaultFormat  encoder.Format
	defaultBitrate int
	logger         *slog.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(tracks repository.TrackRepository, prober *media.Prober, dispatcher *transcode.Dispatcher) *StreamHandler {
	return &StreamHandler{
		tracks:         tracks,
		prober:         prober,
		dispatcher:     dispatcher,
		defaultFormat:  encoder.FormatMP3,
		defaultBitrate: 192000,
		logger:         slog.Default(),
	}
}

// WithLogger sets the logger for the handler.
func (h *StreamHandler) WithLogger(logger *slog.Logger) *StreamHandler {
	h.logger = logger
	return h
}

// WithDefaults sets the format and bitrate used when the query string names
// neither.
func (h *StreamHandler) WithDefaults(format encoder.Format, bitrate int) *StreamHandler {
	if format.Valid() {
		h.defaultFormat = format
	}
	if bitrate > 0 {
		h.defaultBitrate = bitrate
	}
	return h
}

// setCORSHeaders sets the CORS headers for cross-origin streaming.
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Range")
	w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range")
}

// Register registers the stream routes with the API (Huma routes).
// Note: The /stream/{trackID} endpoint itself is registered via
// RegisterChiRoutes for raw HTTP handler access.
func (h *StreamHandler) Register(api huma.API) {
	// Documentation-only registration for the streaming endpoint. The actual
	// request handling is done by raw Chi handlers (RegisterChiRoutes)
	// because Huma's StreamResponse commits HTTP 200 before Body runs, making
	// 206/416 range responses and pre-stream headers impossible.
	h.registerStreamDocs(api)
}

// RegisterChiRoutes registers streaming routes as raw Chi handlers.
func (h *StreamHandler) RegisterChiRoutes(router chi.Router) {
	router.Get("/stream/{trackID}", h.handleStream)
	router.Options("/stream/{trackID}", h.handleStreamOptions)
}

// StreamTrackInput documents the stream endpoint parameters.
type StreamTrackInput struct {
	TrackID string  `path:"trackID" doc:"Track ID (ULID)"`
	Format  string  `query:"format" enum:"mp3,opus,mka,matroska,vorbis,webm" doc:"Output format (default from config, mp3 out of the box)"`
	Bitrate int     `query:"bitrate" doc:"Target bitrate in bits per second, snapped down onto the configured ladder"`
	Offset  float64 `query:"offset" doc:"Start position in seconds, millisecond precision"`
	Strip   bool    `query:"strip" doc:"Strip source metadata from the output"`
}

// StreamTrackOptionsInput documents the CORS preflight parameters.
type StreamTrackOptionsInput struct {
	TrackID string `path:"trackID" doc:"Track ID (ULID)"`
}

// StreamTrackOptionsOutput is the CORS preflight response.
type StreamTrackOptionsOutput struct{}

// streamDocsHandler is a no-op handler for the documentation-only registration.
// The actual request handling is done by raw Chi handlers registered via RegisterChiRoutes.
func (h *StreamHandler) streamDocsHandler(ctx context.Context, input *StreamTrackInput) (*huma.StreamResponse, error) {
	// This handler should never be called because Chi handles the route first.
	// It exists only for OpenAPI documentation generation.
	return nil, huma.Error500InternalServerError("this endpoint is handled by raw Chi handlers", nil)
}

// streamOptionsDocsHandler is a no-op handler for CORS preflight documentation.
func (h *StreamHandler) streamOptionsDocsHandler(ctx context.Context, input *StreamTrackOptionsInput) (*StreamTrackOptionsOutput, error) {
	return &StreamTrackOptionsOutput{}, nil
}

// registerStreamDocs registers documentation-only operations for the stream
// endpoint so it appears in the OpenAPI docs.
func (h *StreamHandler) registerStreamDocs(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "streamTrack",
		Method:      "GET",
		Path:        "/stream/{trackID}",
		Summary:     "Stream a transcoded track",
		Description: `Streams a track transcoded to the requested format and bitrate.

Identical requests share one encoder and one cache file: the first request
starts the encoder, later ones attach to the running session or are served
from the completed cache file. The bitrate is snapped down onto the
configured ladder before any of that, so in-between rates land on the same
cache entry.

**Response Headers:**
- Content-Type: audio MIME type of the requested format
- Content-Length: estimated size (constant-bitrate projection), omitted when unknown
- Accept-Ranges: bytes
- X-Audarr-Version: audarr version`,
		Tags: []string{"Streaming"},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Transcoded audio stream",
				Headers: map[string]*huma.Param{
					"Content-Type":                {Description: "audio/mpeg, audio/ogg, audio/x-matroska, or audio/webm"},
					"Content-Length":              {Description: "Estimated output size, omitted when unknown"},
					"Accept-Ranges":               {Description: "bytes"},
					"X-Audarr-Version":            {Description: "audarr version"},
					"Access-Control-Allow-Origin": {Description: "CORS header (always *)"},
				},
			},
			"206": {
				Description: "Requested byte range of the transcoded stream",
				Headers: map[string]*huma.Param{
					"Content-Range": {Description: "Served byte range"},
				},
			},
			"400": {Description: "Invalid track ID or query parameter"},
			"404": {Description: "Track not found or its file is gone"},
			"416": {Description: "Requested range is not satisfiable"},
			"503": {Description: "Transcoder is shutting down"},
		},
		SkipValidateBody: true,
	}, h.streamDocsHandler)

	huma.Register(api, huma.Operation{
		OperationID: "streamTrackOptions",
		Method:      "OPTIONS",
		Path:        "/stream/{trackID}",
		Summary:     "CORS preflight for the stream endpoint",
		Description: "Handles CORS preflight requests for browser-based audio clients.",
		Tags:        []string{"Streaming"},
		Responses: map[string]*huma.Response{
			"204": {
				Description: "CORS preflight response",
				Headers: map[string]*huma.Param{
					"Access-Control-Allow-Origin":  {Description: "Allowed origins (*)"},
					"Access-Control-Allow-Methods": {Description: "Allowed methods (GET, OPTIONS)"},
					"Access-Control-Allow-Headers": {Description: "Allowed headers"},
				},
			},
		},
	}, h.streamOptionsDocsHandler)
}

// handleStreamOptions handles CORS preflight requests for the stream endpoint.
func (h *StreamHandler) handleStreamOptions(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

// streamParams are the decoded query parameters of one stream request.
type streamParams struct {
	format  encoder.Format
	bitrate int
	offset  time.Duration
	strip   bool
}

// parseStreamParams decodes the query string. On a malformed parameter it
// writes a 400 response and reports false.
func (h *StreamHandler) parseStreamParams(w http.ResponseWriter, r *http.Request) (streamParams, bool) {
	q := r.URL.Query()
	p := streamParams{format: h.defaultFormat, bitrate: h.defaultBitrate}

	if v := q.Get("format"); v != "" {
		f, err := encoder.ParseFormat(v)
		if err != nil {
			h.logger.Warn("invalid format parameter",
				slog.String("format", v),
				slog.String("remote_addr", r.RemoteAddr))
			http.Error(w, fmt.Sprintf("invalid format parameter: %q (valid values: mp3, opus, mka, matroska, vorbis, webm)", v), http.StatusBadRequest)
			return p, false
		}
		p.format = f
	}

	if v := q.Get("bitrate"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, fmt.Sprintf("invalid bitrate parameter: %q", v), http.StatusBadRequest)
			return p, false
		}
		p.bitrate = n
	}

	if v := q.Get("offset"); v != "" {
		sec, err := strconv.ParseFloat(v, 64)
		if err != nil || sec < 0 {
			http.Error(w, fmt.Sprintf("invalid offset parameter: %q", v), http.StatusBadRequest)
			return p, false
		}
		// Whole milliseconds only: the fingerprint and the encoder argv
		// both work at millisecond precision and must agree.
		p.offset = time.Duration(sec * float64(time.Second)).Round(time.Millisecond)
	}

	if v := q.Get("strip"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid strip parameter: %q", v), http.StatusBadRequest)
			return p, false
		}
		p.strip = b
	}

	return p, true
}

// handleStream is the raw HTTP handler for streaming. It resolves the track,
// dispatches the transcode, and hands the response to whichever handler the
// dispatcher picked (live session client, cache file, or direct stream).
func (h *StreamHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	trackIDStr := chi.URLParam(r, "trackID")
	trackID, err := models.ParseULID(trackIDStr)
	if err != nil {
		http.Error(w, "invalid track ID format", http.StatusBadRequest)
		return
	}

	params, ok := h.parseStreamParams(w, r)
	if !ok {
		return
	}

	track, err := h.tracks.GetByID(ctx, trackID)
	if err != nil {
		h.logger.Error("track lookup failed",
			slog.String("track_id", trackIDStr),
			slog.String("error", err.Error()))
		http.Error(w, "track lookup failed", http.StatusInternalServerError)
		return
	}
	if track == nil {
		http.Error(w, "track not found", http.StatusNotFound)
		return
	}

	track, err = h.refreshIfStale(ctx, track)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.Error(w, "track file is gone", http.StatusNotFound)
			return
		}
		h.logger.Error("track refresh failed",
			slog.String("track_id", trackIDStr),
			slog.String("path", track.Path),
			slog.String("error", err.Error()))
		http.Error(w, "track refresh failed", http.StatusInternalServerError)
		return
	}

	setCORSHeaders(w)
	w.Header().Set("X-Audarr-Version", version.Version)

	handler, err := h.dispatcher.Dispatch(transcode.Request{
		InputPath:     track.Path,
		Duration:      track.Duration(),
		Offset:        params.offset,
		Format:        params.format,
		Bitrate:       params.bitrate,
		StripMetadata: params.strip,
		StreamIndex:   track.StreamIndex,
	})
	if err != nil {
		http.Error(w, "transcoder is shutting down", http.StatusServiceUnavailable)
		return
	}

	handler.ServeHTTP(w, r)
}

// refreshIfStale re-probes the track when the file on disk no longer matches
// the stored size and mtime. The refreshed row keeps its ID, so in-flight
// URLs stay valid.
func (h *StreamHandler) refreshIfStale(ctx context.Context, track *models.Track) (*models.Track, error) {
	fi, err := os.Stat(track.Path)
	if err != nil {
		return track, fmt.Errorf("checking track file: %w", err)
	}
	if !track.Stale(fi.Size(), fi.ModTime()) {
		return track, nil
	}

	h.logger.Info("track changed on disk, re-probing",
		slog.String("track_id", track.ID.String()),
		slog.String("path", track.Path))

	info, err := h.prober.Probe(ctx, track.Path)
	if err != nil {
		return track, fmt.Errorf("re-probing track: %w", err)
	}

	applyProbe(track, info, fi.ModTime())
	if err := h.tracks.Update(ctx, track); err != nil {
		return track, fmt.Errorf("updating track: %w", err)
	}
	return track, nil
}
