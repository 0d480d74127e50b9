// Package encoder drives the external audio encoder child process. It
// builds the argument vector for one invocation, spawns the child with its
// stdout piped back to the caller, and samples the child's resource usage
// while it runs.
package encoder

import (
	"fmt"
	"strconv"
	"time"
)

// Format identifies an output container/codec combination.
type Format string

// Supported output formats.
const (
	FormatMP3      Format = "mp3"      // MPEG layer III in a bare MP3 stream
	FormatOpus     Format = "opus"     // Opus in an Ogg container
	FormatMatroska Format = "matroska" // Opus in a Matroska container
	FormatVorbis   Format = "vorbis"   // Vorbis in an Ogg container
	FormatWebM     Format = "webm"     // Vorbis in a WebM container
)

// ParseFormat resolves a user-supplied format name. "mka" is accepted as a
// short alias for Matroska.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "mp3":
		return FormatMP3, nil
	case "opus":
		return FormatOpus, nil
	case "mka", "matroska":
		return FormatMatroska, nil
	case "vorbis":
		return FormatVorbis, nil
	case "webm":
		return FormatWebM, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// Valid reports whether f is a supported output format.
func (f Format) Valid() bool {
	switch f {
	case FormatMP3, FormatOpus, FormatMatroska, FormatVorbis, FormatWebM:
		return true
	}
	return false
}

// MIME returns the Content-Type served for the format.
func (f Format) MIME() string {
	switch f {
	case FormatMP3:
		return "audio/mpeg"
	case FormatOpus, FormatVorbis:
		return "audio/ogg"
	case FormatMatroska:
		return "audio/x-matroska"
	case FormatWebM:
		return "audio/webm"
	}
	return "application/octet-stream"
}

// codecArgs returns the codec and muxer flags for the format. MP3 relies on
// the encoder's default codec for the mp3 muxer.
func (f Format) codecArgs() []string {
	switch f {
	case FormatMP3:
		return []string{"-f", "mp3"}
	case FormatOpus:
		return []string{"-acodec", "libopus", "-f", "ogg"}
	case FormatMatroska:
		return []string{"-acodec", "libopus", "-f", "matroska"}
	case FormatVorbis:
		return []string{"-acodec", "libvorbis", "-f", "ogg"}
	case FormatWebM:
		return []string{"-acodec", "libvorbis", "-f", "webm"}
	}
	return nil
}

// Job describes one encoder invocation: which file to read, where to start
// in it, and what to produce on stdout.
type Job struct {
	InputPath     string
	Offset        time.Duration // start position in the input
	Format        Format
	Bitrate       int // target bitrate in bits per second
	StripMetadata bool
	StreamIndex   int // input audio stream to select; negative picks the encoder default
}

// Args builds the encoder argument vector. Identical jobs must produce
// identical output bytes, so flag order is part of the contract and must
// not be reshuffled.
func (j Job) Args() []string {
	args := []string{
		"-loglevel", "quiet",
		"-nostdin",
		"-ss", formatOffset(j.Offset),
		"-i", j.InputPath,
	}
	if j.StreamIndex >= 0 {
		args = append(args, "-map", "0:"+strconv.Itoa(j.StreamIndex))
	}
	if j.StripMetadata {
		args = append(args, "-map_metadata", "-1")
	}
	args = append(args, "-vn", "-b:a", strconv.Itoa(j.Bitrate))
	args = append(args, j.Format.codecArgs()...)
	args = append(args, "pipe:1")
	return args
}

// formatOffset renders a seek offset in seconds with millisecond precision.
func formatOffset(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
