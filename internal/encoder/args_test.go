package encoder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJob_Args(t *testing.T) {
	job := Job{
		InputPath:     "/music/track.flac",
		Offset:        90*time.Second + 500*time.Millisecond,
		Format:        FormatMP3,
		Bitrate:       192000,
		StripMetadata: true,
		StreamIndex:   1,
	}

	want := []string{
		"-loglevel", "quiet",
		"-nostdin",
		"-ss", "90.500",
		"-i", "/music/track.flac",
		"-map", "0:1",
		"-map_metadata", "-1",
		"-vn",
		"-b:a", "192000",
		"-f", "mp3",
		"pipe:1",
	}
	assert.Equal(t, want, job.Args())
}

func TestJob_ArgsMinimal(t *testing.T) {
	job := Job{
		InputPath:   "/music/track.flac",
		Format:      FormatOpus,
		Bitrate:     96000,
		StreamIndex: -1,
	}

	want := []string{
		"-loglevel", "quiet",
		"-nostdin",
		"-ss", "0.000",
		"-i", "/music/track.flac",
		"-vn",
		"-b:a", "96000",
		"-acodec", "libopus",
		"-f", "ogg",
		"pipe:1",
	}
	assert.Equal(t, want, job.Args())
}

func TestJob_ArgsDeterministic(t *testing.T) {
	job := Job{
		InputPath:     "/music/track.flac",
		Offset:        time.Second,
		Format:        FormatWebM,
		Bitrate:       128000,
		StripMetadata: true,
		StreamIndex:   0,
	}
	assert.Equal(t, job.Args(), job.Args())
}

func TestFormatOffset(t *testing.T) {
	assert.Equal(t, "0.000", formatOffset(0))
	assert.Equal(t, "0.000", formatOffset(-5*time.Second))
	assert.Equal(t, "0.001", formatOffset(time.Millisecond))
	assert.Equal(t, "3600.000", formatOffset(time.Hour))
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"mp3", FormatMP3},
		{"opus", FormatOpus},
		{"matroska", FormatMatroska},
		{"mka", FormatMatroska},
		{"vorbis", FormatVorbis},
		{"webm", FormatWebM},
	}
	for _, tt := range tests {
		f, err := ParseFormat(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, f)
		assert.True(t, f.Valid())
	}

	for _, bad := range []string{"", "flac", "MP3", "ogg"} {
		_, err := ParseFormat(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormat_MIME(t *testing.T) {
	assert.Equal(t, "audio/mpeg", FormatMP3.MIME())
	assert.Equal(t, "audio/ogg", FormatOpus.MIME())
	assert.Equal(t, "audio/ogg", FormatVorbis.MIME())
	assert.Equal(t, "audio/x-matroska", FormatMatroska.MIME())
	assert.Equal(t, "audio/webm", FormatWebM.MIME())
	assert.Equal(t, "application/octet-stream", Format("flac").MIME())
}
