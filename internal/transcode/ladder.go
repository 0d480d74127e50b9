// Package transcode implements the caching transcoder: one encoder child
// process per distinct output, fanned out to any number of concurrent HTTP
// range clients while the bytes are persisted to an on-disk cache keyed by
// a 64-bit fingerprint.
package transcode

import (
	"fmt"
	"sort"
)

// DefaultLadder is the bitrate ladder requests snap onto when no override
// is configured, in bits per second.
var DefaultLadder = Ladder{320000, 256000, 192000, 160000, 128000, 96000, 64000, 32000}

// Ladder is a descending list of permitted output bitrates in bits per
// second. Snapping requests onto a small fixed set keeps the cache keyed
// on a handful of distinct outputs instead of one per requested rate.
type Ladder []int

// NewLadder builds a ladder from configured rates: non-positive entries
// and duplicates are dropped and the rest sorted descending. An empty
// result falls back to the default ladder.
func NewLadder(rates []int) Ladder {
	if len(rates) == 0 {
		return append(Ladder(nil), DefaultLadder...)
	}

	seen := make(map[int]bool, len(rates))
	out := make(Ladder, 0, len(rates))
	for _, r := range rates {
		if r > 0 && !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return append(Ladder(nil), DefaultLadder...)
	}

	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

// Snap maps a requested bitrate onto the ladder: the highest rung at or
// below the request, or the lowest rung when the request sits under the
// whole ladder. Snapping is idempotent: Snap(Snap(x)) == Snap(x).
//
// A non-positive bitrate is a programmer error; callers validate user
// input before building a request.
func (l Ladder) Snap(bitrate int) int {
	if bitrate <= 0 {
		panic(fmt.Sprintf("transcode: snap of non-positive bitrate %d", bitrate))
	}
	if len(l) == 0 {
		panic("transcode: snap on empty bitrate ladder")
	}
	for _, rung := range l {
		if rung <= bitrate {
			return rung
		}
	}
	return l[len(l)-1]
}
