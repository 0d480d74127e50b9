// Package handlers provides HTTP API handlers for audarr.
package handlers

import (
	"time"

	"github.com/jmylchreest/audarr/internal/models"
)

// Pagination is the query-parameter pair list endpoints accept.
type Pagination struct {
	Page  int `query:"page" default:"1" minimum:"1" doc:"Page number (1-indexed)"`
	Limit int `query:"limit" default:"50" minimum:"1" maximum:"1000" doc:"Items per page"`
}

// PaginationMeta echoes the requested page window back with totals.
type PaginationMeta struct {
	CurrentPage int   `json:"current_page"`
	PageSize    int   `json:"page_size"`
	TotalItems  int64 `json:"total_items"`
	TotalPages  int64 `json:"total_pages"`
}

// TrackResponse represents a library track in API responses.
type TrackResponse struct {
	ID            models.ULID `json:"id"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	Path          string      `json:"path"`
	SizeBytes     int64       `json:"size_bytes"`
	ModTime       time.Time   `json:"mod_time"`
	DurationMS    int64       `json:"duration_ms"`
	Container     string      `json:"container,omitempty"`
	Codec         string      `json:"codec,omitempty"`
	SampleRate    int         `json:"sample_rate,omitempty"`
	Channels      int         `json:"channels,omitempty"`
	ChannelLayout string      `json:"channel_layout,omitempty"`
	Bitrate       int         `json:"bitrate,omitempty"`
	StreamIndex   int         `json:"stream_index"`
	Title         string      `json:"title,omitempty"`
	Artist        string      `json:"artist,omitempty"`
	Album         string      `json:"album,omitempty"`
	ProbedAt      time.Time   `json:"probed_at"`
}

// TrackFromModel converts a model to a response.
func TrackFromModel(t *models.Track) TrackResponse {
	return TrackResponse{
		ID:            t.ID,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
		Path:          t.Path,
		SizeBytes:     t.SizeBytes,
		ModTime:       t.ModTime,
		DurationMS:    t.DurationMS,
		Container:     t.Container,
		Codec:         t.Codec,
		SampleRate:    t.SampleRate,
		Channels:      t.Channels,
		ChannelLayout: t.ChannelLayout,
		Bitrate:       t.Bitrate,
		StreamIndex:   t.StreamIndex,
		Title:         t.Title,
		Artist:        t.Artist,
		Album:         t.Album,
		ProbedAt:      t.ProbedAt,
	}
}

// RegisterTrackRequest is the request body for registering a track.
type RegisterTrackRequest struct {
	Path string `json:"path" doc:"Absolute path to the audio file, inside the media root" minLength:"1" maxLength:"4096"`
}
