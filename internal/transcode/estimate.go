package transcode

import "time"

// EstimateBytes projects the total output size of a constant-bitrate
// encode: bitrate/8 bytes per second over the input remaining after the
// start offset, with fractional bytes floored.
//
// The projection is advertised as Content-Length before the encoder has
// produced a single byte, so it must stay tight: some players treat a
// promise more than ~64 KiB past the real end as corruption. Responses pad
// with zeros up to the promise when the encoder under-runs it.
//
// A non-positive result means the size is unknown (unusable duration or
// rate) and callers must treat the stream as unbounded.
func EstimateBytes(bitrate int, duration, offset time.Duration) int64 {
	if bitrate <= 0 {
		return 0
	}
	remaining := duration - offset
	if remaining < 0 {
		remaining = 0
	}
	return int64(bitrate) * remaining.Milliseconds() / 8000
}
