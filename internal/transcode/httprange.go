package transcode

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
)

// NoEnd marks an unbounded response window.
const NoEnd = int64(math.MaxInt64)

// ErrUnsatisfiableRange reports a Range header whose first position lies at
// or beyond the advertised length.
var ErrUnsatisfiableRange = errors.New("unsatisfiable byte range")

// ServePlan is the resolved response window for one request: the status to
// emit and the half-open byte interval [Start, End) to serve. End == NoEnd
// means the window is unbounded and the response carries no Content-Length.
type ServePlan struct {
	Status int
	Start  int64
	End    int64
}

// Bounded reports whether the window has a finite end.
func (p ServePlan) Bounded() bool {
	return p.End != NoEnd
}

// Length returns the window size. Only meaningful for bounded plans.
func (p ServePlan) Length() int64 {
	return p.End - p.Start
}

// ContentRange renders the Content-Range value for a bounded partial plan.
// An unknown total renders the wildcard form.
func (p ServePlan) ContentRange(total int64) string {
	if total > 0 {
		return fmt.Sprintf("bytes %d-%d/%d", p.Start, p.End-1, total)
	}
	return fmt.Sprintf("bytes %d-%d/*", p.Start, p.End-1)
}

// PlanRange maps a Range header onto a response window against an
// advertised total length. A total <= 0 means the length is unknown and
// rangeless requests stream unbounded.
//
// One range is honored. Multi-range requests and malformed headers
// downgrade to a full 200 response instead of failing: players that probe
// with exotic ranges still get their audio. A last-position at or past a
// known total clamps to the final byte per RFC 7233; a first position at
// or past it is unsatisfiable and yields a 416 plan alongside
// ErrUnsatisfiableRange. Suffix and open-ended ranges need a known total
// to anchor on and otherwise downgrade to a full response, so a partial
// plan is always bounded.
func PlanRange(header string, total int64) (ServePlan, error) {
	full := ServePlan{Status: http.StatusOK, Start: 0, End: NoEnd}
	if total > 0 {
		full.End = total
	}
	if header == "" {
		return full, nil
	}

	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		// Unknown range unit.
		return full, nil
	}
	if strings.Contains(spec, ",") {
		// Multiple ranges; multipart/byteranges is deliberately not
		// produced.
		return full, nil
	}
	spec = strings.TrimSpace(spec)

	first, last, ok := strings.Cut(spec, "-")
	if !ok {
		return full, nil
	}

	if first == "" {
		// Suffix form: the final n bytes.
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n <= 0 {
			return full, nil
		}
		if total <= 0 {
			return full, nil
		}
		start := total - n
		if start < 0 {
			start = 0
		}
		return ServePlan{Status: http.StatusPartialContent, Start: start, End: total}, nil
	}

	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 {
		return full, nil
	}
	if total > 0 && start >= total {
		return ServePlan{Status: http.StatusRequestedRangeNotSatisfiable}, ErrUnsatisfiableRange
	}

	if last == "" {
		// Open form: from start onward. A 206 must state where its window
		// ends, so an unknown total downgrades to a full response the same
		// way the suffix form does.
		if total <= 0 {
			return full, nil
		}
		return ServePlan{Status: http.StatusPartialContent, Start: start, End: total}, nil
	}

	end, err := strconv.ParseInt(last, 10, 64)
	if err != nil || end < start {
		return full, nil
	}
	if total > 0 && end >= total {
		end = total - 1
	}
	return ServePlan{Status: http.StatusPartialContent, Start: start, End: end + 1}, nil
}
