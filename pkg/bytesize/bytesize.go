// Package bytesize parses and renders byte counts the way they appear in
// audarr configuration: a number with an optional unit suffix, 1024 base.
// "256KB", "1.5MB" and "64 KB" are all accepted; a bare number is bytes.
package bytesize

import (
	"fmt"
	"strconv"
	"strings"
)

// Size is a byte count.
type Size int64

const (
	kib = 1 << (10 * (iota + 1))
	mib
	gib
	tib
)

var multipliers = map[string]Size{
	"":  1,
	"b": 1,
	"k": kib, "kb": kib, "kib": kib,
	"m": mib, "mb": mib, "mib": mib,
	"g": gib, "gb": gib, "gib": gib,
	"t": tib, "tb": tib, "tib": tib,
}

// Parse converts a size string into a Size. The unit is case-insensitive
// and may be separated from the number by spaces.
func Parse(s string) (Size, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("bytesize: empty value")
	}

	i := 0
	for i < len(trimmed) && (trimmed[i] >= '0' && trimmed[i] <= '9' || trimmed[i] == '.') {
		i++
	}
	num := trimmed[:i]
	unit := strings.ToLower(strings.TrimSpace(trimmed[i:]))

	if num == "" {
		return 0, fmt.Errorf("bytesize: %q does not start with a number", s)
	}
	value, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("bytesize: bad number in %q: %w", s, err)
	}

	mult, ok := multipliers[unit]
	if !ok {
		return 0, fmt.Errorf("bytesize: unknown unit %q in %q", unit, s)
	}
	return Size(value * float64(mult)), nil
}

// Format renders a Size with the largest unit that keeps the value at or
// above one. Exact multiples render without decimals, so Parse(Format(s))
// round-trips for the sizes audarr writes back to config dumps.
func Format(s Size) string {
	if s < 0 {
		return "-" + Format(-s)
	}
	switch {
	case s >= tib:
		return trimZeros(float64(s)/tib) + "TB"
	case s >= gib:
		return trimZeros(float64(s)/gib) + "GB"
	case s >= mib:
		return trimZeros(float64(s)/mib) + "MB"
	case s >= kib:
		return trimZeros(float64(s)/kib) + "KB"
	}
	return strconv.FormatInt(int64(s), 10) + "B"
}

func trimZeros(v float64) string {
	out := strconv.FormatFloat(v, 'f', 2, 64)
	out = strings.TrimRight(out, "0")
	return strings.TrimRight(out, ".")
}

// Bytes returns the count as an int64.
func (s Size) Bytes() int64 { return int64(s) }

func (s Size) String() string { return Format(s) }
