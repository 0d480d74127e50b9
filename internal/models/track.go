package models

import (
	"time"
)

// Track is a probed audio file in the media library. One row per canonical
// path; the probe fields are refreshed whenever the file on disk no longer
// matches the recorded size and mtime.
type Track struct {
	BaseModel

	// Path is the canonical absolute location of the file, confined to
	// the configured media root. Unique across the library.
	Path string `gorm:"uniqueIndex;not null;size:4096" json:"path"`

	// SizeBytes and ModTime identify the probed file revision.
	SizeBytes int64     `gorm:"not null" json:"size_bytes"`
	ModTime   time.Time `gorm:"not null" json:"mod_time"`

	// DurationMS is the probed duration in milliseconds; 0 means unknown.
	DurationMS int64 `json:"duration_ms"`

	Container     string `gorm:"size:64" json:"container,omitempty"`
	Codec         string `gorm:"size:64" json:"codec,omitempty"`
	SampleRate    int    `json:"sample_rate,omitempty"`
	Channels      int    `json:"channels,omitempty"`
	ChannelLayout string `gorm:"size:32" json:"channel_layout,omitempty"`

	// Bitrate is the source bitrate in bits per second.
	Bitrate int `json:"bitrate,omitempty"`

	// StreamIndex is the audio stream selected at probe time.
	StreamIndex int `json:"stream_index"`

	Title  string `gorm:"size:512" json:"title,omitempty"`
	Artist string `gorm:"size:512" json:"artist,omitempty"`
	Album  string `gorm:"size:512" json:"album,omitempty"`

	// ProbedAt is when the metadata was last extracted.
	ProbedAt time.Time `json:"probed_at"`
}

// Duration returns the probed duration; zero means unknown.
func (t *Track) Duration() time.Duration {
	return time.Duration(t.DurationMS) * time.Millisecond
}

// Stale reports whether the file on disk no longer matches the probed
// revision. Mtime compares at second granularity so the check is stable
// across database drivers.
func (t *Track) Stale(size int64, modTime time.Time) bool {
	return t.SizeBytes != size || t.ModTime.Unix() != modTime.Unix()
}
