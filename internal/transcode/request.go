package transcode

import (
	"fmt"
	"time"

	"github.com/jmylchreest/audarr/internal/encoder"
)

// Request is a fully-resolved transcode request: the probed source file
// plus the desired output parameters. The dispatcher snaps Bitrate onto
// the ladder before fingerprinting, so callers asking for rates between
// rungs share sessions and cache files with each other.
type Request struct {
	// InputPath is the canonical absolute path of the source file.
	InputPath string
	// Duration is the probed source duration with millisecond precision;
	// zero when the probe could not determine it.
	Duration time.Duration
	// Offset is the encode start position within the source. Seeking
	// within a running transcode is not supported; a different offset is
	// simply a different fingerprint.
	Offset time.Duration
	// Format selects the output container/codec pair.
	Format encoder.Format
	// Bitrate is the target rate in bits per second.
	Bitrate int
	// StripMetadata drops source tags from the output.
	StripMetadata bool
	// StreamIndex selects the source audio stream; negative lets the
	// encoder pick.
	StreamIndex int
}

// Job converts the request into an encoder invocation.
func (r Request) Job() encoder.Job {
	return encoder.Job{
		InputPath:     r.InputPath,
		Offset:        r.Offset,
		Format:        r.Format,
		Bitrate:       r.Bitrate,
		StripMetadata: r.StripMetadata,
		StreamIndex:   r.StreamIndex,
	}
}

// validate panics on requests no handler should ever let through; user
// input is checked long before a Request is built.
func (r Request) validate() {
	if r.InputPath == "" {
		panic("transcode: request without input path")
	}
	if !r.Format.Valid() {
		panic(fmt.Sprintf("transcode: request with unknown format %q", r.Format))
	}
	if r.Bitrate <= 0 {
		panic(fmt.Sprintf("transcode: request with non-positive bitrate %d", r.Bitrate))
	}
}
