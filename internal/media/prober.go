// Package media extracts audio metadata from library files through an
// external ffprobe binary.
package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ErrNoAudio is returned when a probed file carries no audio stream.
var ErrNoAudio = errors.New("no audio stream in file")

// TrackInfo is the audio-relevant slice of a probe result.
type TrackInfo struct {
	Path          string        `json:"path"`
	SizeBytes     int64         `json:"size_bytes"`
	Duration      time.Duration `json:"duration"`
	Container     string        `json:"container"`
	Codec         string        `json:"codec"`
	SampleRate    int           `json:"sample_rate,omitempty"`
	Channels      int           `json:"channels,omitempty"`
	ChannelLayout string        `json:"channel_layout,omitempty"`
	Bitrate       int           `json:"bitrate,omitempty"`
	StreamIndex   int           `json:"stream_index"`
	Title         string        `json:"title,omitempty"`
	Artist        string        `json:"artist,omitempty"`
	Album         string        `json:"album,omitempty"`
}

// probeResult mirrors the ffprobe JSON document.
type probeResult struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeFormat struct {
	Filename   string            `json:"filename"`
	FormatName string            `json:"format_name"`
	Duration   string            `json:"duration"`
	Size       string            `json:"size"`
	BitRate    string            `json:"bit_rate"`
	Tags       map[string]string `json:"tags"`
}

type probeStream struct {
	Index         int               `json:"index"`
	CodecName     string            `json:"codec_name"`
	CodecType     string            `json:"codec_type"`
	SampleRate    string            `json:"sample_rate,omitempty"`
	Channels      int               `json:"channels,omitempty"`
	ChannelLayout string            `json:"channel_layout,omitempty"`
	BitRate       string            `json:"bit_rate,omitempty"`
	Disposition   probeDisposition  `json:"disposition,omitempty"`
	Tags          map[string]string `json:"tags,omitempty"`
}

type probeDisposition struct {
	Default int `json:"default"`
}

// Prober handles ffprobe operations against local library files.
type Prober struct {
	ffprobePath string
	timeout     time.Duration
}

// NewProber creates a prober using the given ffprobe binary.
func NewProber(ffprobePath string) *Prober {
	return &Prober{
		ffprobePath: ffprobePath,
		timeout:     30 * time.Second,
	}
}

// WithTimeout sets the probe timeout.
func (p *Prober) WithTimeout(timeout time.Duration) *Prober {
	p.timeout = timeout
	return p
}

// Probe inspects one file and returns its audio metadata.
func (p *Prober) Probe(ctx context.Context, path string) (*TrackInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("probe timeout after %v", p.timeout)
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var result probeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("parsing ffprobe output: %w", err)
	}

	return result.trackInfo(path)
}

// trackInfo condenses the raw document down to the fields the track store
// keeps. The default-flagged audio stream wins; otherwise the first one.
func (r *probeResult) trackInfo(path string) (*TrackInfo, error) {
	var audio *probeStream
	for i := range r.Streams {
		s := &r.Streams[i]
		if s.CodecType != "audio" {
			continue
		}
		if audio == nil {
			audio = s
		}
		if s.Disposition.Default == 1 {
			audio = s
			break
		}
	}
	if audio == nil {
		return nil, ErrNoAudio
	}

	info := &TrackInfo{
		Path:          path,
		Duration:      parseSeconds(r.Format.Duration),
		Container:     r.Format.FormatName,
		Codec:         audio.CodecName,
		Channels:      audio.Channels,
		ChannelLayout: audio.ChannelLayout,
		StreamIndex:   audio.Index,
		Title:         tagValue(r.Format.Tags, audio.Tags, "title"),
		Artist:        tagValue(r.Format.Tags, audio.Tags, "artist"),
		Album:         tagValue(r.Format.Tags, audio.Tags, "album"),
	}

	if size, err := strconv.ParseInt(r.Format.Size, 10, 64); err == nil {
		info.SizeBytes = size
	}
	if sr, err := strconv.Atoi(audio.SampleRate); err == nil {
		info.SampleRate = sr
	}

	// Stream bitrate when present, container average otherwise.
	if br, err := strconv.Atoi(audio.BitRate); err == nil && br > 0 {
		info.Bitrate = br
	} else if br, err := strconv.Atoi(r.Format.BitRate); err == nil && br > 0 {
		info.Bitrate = br
	}

	return info, nil
}

// parseSeconds converts ffprobe's fractional-seconds string to a duration
// with millisecond precision. Anything unparsable is zero, which callers
// treat as unknown.
func parseSeconds(s string) time.Duration {
	if s == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(int64(secs*1000)) * time.Millisecond
}

// tagValue looks a tag up in the container tags first, then the stream
// tags. Tag casing varies by container, so the match is case insensitive.
func tagValue(containerTags, streamTags map[string]string, key string) string {
	for _, tags := range []map[string]string{containerTags, streamTags} {
		for k, v := range tags {
			if strings.EqualFold(k, key) {
				return v
			}
		}
	}
	return ""
}
