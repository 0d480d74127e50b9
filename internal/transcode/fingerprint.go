package transcode

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"io"
	"path/filepath"
)

// Fingerprint is the 64-bit identity of one exact transcoder output. Two
// requests with equal fingerprints yield byte-identical output, so the
// fingerprint keys both the session registry and the on-disk cache.
type Fingerprint uint64

// String renders the fingerprint as fixed-width uppercase hex, the form
// used for cache file names.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%016X", uint64(f))
}

// Shard returns the one-character shard directory name, the first hex
// digit of the fingerprint.
func (f Fingerprint) Shard() string {
	return f.String()[:1]
}

// CachePath returns the cache file location under root:
// <root>/<shard>/<hex>.
func (f Fingerprint) CachePath(root string) string {
	name := f.String()
	return filepath.Join(root, name[:1], name)
}

// fingerprintRequest digests the identity fields of a request with FNV-1a.
// Every field that changes the output bytes participates. Field order and
// encoding are frozen: existing cache files key on them, so changing either
// orphans every cached transcode.
func fingerprintRequest(req Request) Fingerprint {
	h := fnv.New64a()

	hashString(h, req.InputPath)
	hashInt64(h, req.Duration.Milliseconds())
	hashInt64(h, req.Offset.Milliseconds())
	hashString(h, string(req.Format))
	hashInt64(h, int64(req.Bitrate))
	hashBool(h, req.StripMetadata)
	hashInt64(h, int64(req.StreamIndex))

	return Fingerprint(h.Sum64())
}

// hashString writes a length-prefixed string so adjacent fields cannot
// alias each other. Hash writes never fail.
func hashString(w io.Writer, s string) {
	hashInt64(w, int64(len(s)))
	_, _ = io.WriteString(w, s)
}

func hashInt64(w io.Writer, v int64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	_, _ = w.Write(buf[:])
}

func hashBool(w io.Writer, v bool) {
	b := byte(0)
	if v {
		b = 1
	}
	_, _ = w.Write([]byte{b})
}
