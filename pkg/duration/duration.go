// Package duration parses and renders durations with the standard Go
// units plus d for days and w for weeks, the forms audarr configuration
// documents. "7d", "2w", "1w2d12h" and "720h" all parse; spaces between
// components are allowed.
package duration

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Day and Week extend the units time.ParseDuration understands; cache
// retention windows read better as "2w" than "336h".
const (
	Day  = 24 * time.Hour
	Week = 7 * Day
)

// Parse reads a duration string. Case is ignored, whitespace between
// components is dropped, and components may repeat ("1d12h").
func Parse(s string) (time.Duration, error) {
	compact := strings.ToLower(strings.Join(strings.Fields(s), ""))
	if compact == "" {
		return 0, fmt.Errorf("duration: empty value")
	}

	negative := false
	switch compact[0] {
	case '-':
		negative = true
		compact = compact[1:]
	case '+':
		compact = compact[1:]
	}
	if compact == "" {
		return 0, fmt.Errorf("duration: %q has no value", s)
	}

	// Day and week components are totaled here; everything else is
	// re-joined and handed to time.ParseDuration, which owns the rest of
	// the grammar including errors for unknown units.
	var extended time.Duration
	var std strings.Builder

	for i := 0; i < len(compact); {
		j := i
		for j < len(compact) && (compact[j] >= '0' && compact[j] <= '9' || compact[j] == '.') {
			j++
		}
		if j == i {
			return 0, fmt.Errorf("duration: %q has a unit with no number", s)
		}
		num := compact[i:j]

		k := j
		for k < len(compact) && !(compact[k] >= '0' && compact[k] <= '9' || compact[k] == '.') {
			k++
		}
		unit := compact[j:k]
		i = k

		switch unit {
		case "d", "w":
			value, err := strconv.ParseFloat(num, 64)
			if err != nil {
				return 0, fmt.Errorf("duration: bad number %q in %q", num, s)
			}
			size := Day
			if unit == "w" {
				size = Week
			}
			extended += time.Duration(value * float64(size))
		default:
			std.WriteString(num)
			std.WriteString(unit)
		}
	}

	total := extended
	if std.Len() > 0 {
		d, err := time.ParseDuration(std.String())
		if err != nil {
			return 0, fmt.Errorf("duration: %w", err)
		}
		total += d
	}

	if negative {
		total = -total
	}
	return total, nil
}

// Format renders a duration in the compact form Parse accepts, largest
// units first with zero components omitted.
func Format(d time.Duration) string {
	if d == 0 {
		return "0s"
	}

	var b strings.Builder
	if d < 0 {
		b.WriteByte('-')
		d = -d
	}

	units := []struct {
		name string
		size time.Duration
	}{
		{"w", Week},
		{"d", Day},
		{"h", time.Hour},
		{"m", time.Minute},
		{"s", time.Second},
		{"ms", time.Millisecond},
		{"µs", time.Microsecond},
	}
	for _, u := range units {
		if n := d / u.size; n > 0 {
			fmt.Fprintf(&b, "%d%s", n, u.name)
			d -= n * u.size
		}
	}
	if d > 0 {
		fmt.Fprintf(&b, "%dns", d)
	}
	return b.String()
}
