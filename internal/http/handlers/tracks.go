package handlers

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/audarr/internal/media"
	"github.com/jmylchreest/audarr/internal/models"
	"github.com/jmylchreest/audarr/internal/repository"
	"github.com/jmylchreest/audarr/internal/storage"
)

// TracksHandler handles track registration and lookup API endpoints.
type TracksHandler struct {
	tracks  repository.TrackRepository
	prober  *media.Prober
	sandbox *storage.Sandbox
}

// NewTracksHandler creates a new tracks handler.
func NewTracksHandler(tracks repository.TrackRepository, prober *media.Prober, sandbox *storage.Sandbox) *TracksHandler {
	return &TracksHandler{
		tracks:  tracks,
		prober:  prober,
		sandbox: sandbox,
	}
}

// Register registers the track routes with the API.
func (h *TracksHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "registerTrack",
		Method:      "POST",
		Path:        "/api/v1/tracks",
		Summary:     "Register a track",
		Description: "Probes an audio file inside the media root and stores its metadata. Registering the same path again refreshes the stored row.",
		Tags:        []string{"Tracks"},
	}, h.RegisterTrack)

	huma.Register(api, huma.Operation{
		OperationID: "listTracks",
		Method:      "GET",
		Path:        "/api/v1/tracks",
		Summary:     "List tracks",
		Description: "Returns registered tracks ordered by path",
		Tags:        []string{"Tracks"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getTrack",
		Method:      "GET",
		Path:        "/api/v1/tracks/{id}",
		Summary:     "Get track",
		Description: "Returns a track by ID",
		Tags:        []string{"Tracks"},
	}, h.GetByID)

	huma.Register(api, huma.Operation{
		OperationID: "deleteTrack",
		Method:      "DELETE",
		Path:        "/api/v1/tracks/{id}",
		Summary:     "Delete track",
		Description: "Deletes a track row. The file on disk and any cached transcodes are left alone.",
		Tags:        []string{"Tracks"},
	}, h.Delete)
}

// applyProbe copies probe results onto a track row. The caller supplies the
// file mtime because the probe output does not carry it.
func applyProbe(t *models.Track, info *media.TrackInfo, modTime time.Time) {
	t.SizeBytes = info.SizeBytes
	t.ModTime = modTime
	t.DurationMS = info.Duration.Milliseconds()
	t.Container = info.Container
	t.Codec = info.Codec
	t.SampleRate = info.SampleRate
	t.Channels = info.Channels
	t.ChannelLayout = info.ChannelLayout
	t.Bitrate = info.Bitrate
	t.StreamIndex = info.StreamIndex
	t.Title = info.Title
	t.Artist = info.Artist
	t.Album = info.Album
	t.ProbedAt = time.Now()
}

// RegisterTrackInput is the input for registering a track.
type RegisterTrackInput struct {
	Body RegisterTrackRequest
}

// RegisterTrackOutput is the output for registering a track.
type RegisterTrackOutput struct {
	Body TrackResponse
}

// RegisterTrack probes a library file and stores its metadata.
func (h *TracksHandler) RegisterTrack(ctx context.Context, input *RegisterTrackInput) (*RegisterTrackOutput, error) {
	resolved, fi, err := h.sandbox.ResolveFile(input.Body.Path)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotAbsolute):
			return nil, huma.Error400BadRequest("path must be absolute")
		case errors.Is(err, storage.ErrOutsideRoot):
			return nil, huma.Error400BadRequest("path is outside the media root")
		case errors.Is(err, storage.ErrNotFile):
			return nil, huma.Error400BadRequest("path is not a regular file")
		case errors.Is(err, fs.ErrNotExist):
			return nil, huma.Error404NotFound(fmt.Sprintf("file not found: %s", input.Body.Path))
		default:
			return nil, huma.Error500InternalServerError("failed to resolve path", err)
		}
	}

	info, err := h.prober.Probe(ctx, resolved)
	if err != nil {
		if errors.Is(err, media.ErrNoAudio) {
			return nil, huma.Error400BadRequest("file has no audio stream")
		}
		return nil, huma.Error400BadRequest("probing file failed", err)
	}

	track := &models.Track{Path: resolved}
	applyProbe(track, info, fi.ModTime())

	if err := h.tracks.Upsert(ctx, track); err != nil {
		return nil, huma.Error500InternalServerError("failed to store track", err)
	}

	// On conflict the upsert keeps the original row ID, so read the
	// canonical row back by path.
	stored, err := h.tracks.GetByPath(ctx, resolved)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load stored track", err)
	}
	if stored == nil {
		return nil, huma.Error500InternalServerError("stored track disappeared", nil)
	}

	return &RegisterTrackOutput{Body: TrackFromModel(stored)}, nil
}

// ListTracksInput is the input for listing tracks.
type ListTracksInput struct {
	Pagination
}

// TrackListResponse is the paginated response for track listings.
type TrackListResponse struct {
	Pagination PaginationMeta  `json:"pagination"`
	Tracks     []TrackResponse `json:"tracks"`
}

// ListTracksOutput is the output for listing tracks.
type ListTracksOutput struct {
	Body TrackListResponse
}

// List returns a page of tracks ordered by path.
func (h *TracksHandler) List(ctx context.Context, input *ListTracksInput) (*ListTracksOutput, error) {
	offset := (input.Page - 1) * input.Limit

	tracks, total, err := h.tracks.List(ctx, offset, input.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list tracks", err)
	}

	items := make([]TrackResponse, 0, len(tracks))
	for _, t := range tracks {
		items = append(items, TrackFromModel(t))
	}

	totalPages := total / int64(input.Limit)
	if total%int64(input.Limit) > 0 {
		totalPages++
	}

	resp := &ListTracksOutput{}
	resp.Body.Tracks = items
	resp.Body.Pagination = PaginationMeta{
		CurrentPage: input.Page,
		PageSize:    input.Limit,
		TotalItems:  total,
		TotalPages:  totalPages,
	}
	return resp, nil
}

// GetTrackInput is the input for getting a track.
type GetTrackInput struct {
	ID string `path:"id" doc:"Track ID (ULID)"`
}

// GetTrackOutput is the output for getting a track.
type GetTrackOutput struct {
	Body TrackResponse
}

// GetByID returns a track by ID.
func (h *TracksHandler) GetByID(ctx context.Context, input *GetTrackInput) (*GetTrackOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	track, err := h.tracks.GetByID(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get track", err)
	}
	if track == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("track %s not found", input.ID))
	}

	return &GetTrackOutput{Body: TrackFromModel(track)}, nil
}

// DeleteTrackInput is the input for deleting a track.
type DeleteTrackInput struct {
	ID string `path:"id" doc:"Track ID (ULID)"`
}

// DeleteTrackOutput is the output for deleting a track.
type DeleteTrackOutput struct{}

// Delete deletes a track row.
func (h *TracksHandler) Delete(ctx context.Context, input *DeleteTrackInput) (*DeleteTrackOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	track, err := h.tracks.GetByID(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get track", err)
	}
	if track == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("track %s not found", input.ID))
	}

	if err := h.tracks.Delete(ctx, id); err != nil {
		return nil, huma.Error500InternalServerError("failed to delete track", err)
	}

	return &DeleteTrackOutput{}, nil
}
