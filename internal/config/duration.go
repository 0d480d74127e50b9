package config

import (
	"encoding/json"
	"time"

	"github.com/jmylchreest/audarr/pkg/duration"
)

// Duration is a time.Duration whose text form takes the extended grammar of
// pkg/duration: "d" for days and "w" for weeks on top of the standard Go
// units, so retention settings read naturally ("2w", "30d", "1w2d12h").
// Viper reaches UnmarshalText through its text-unmarshaller decode hook.
type Duration time.Duration

// Duration returns the wrapped time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d Duration) String() string {
	return duration.Format(time.Duration(d))
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := duration.Parse(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// UnmarshalJSON accepts either the string grammar or a bare number of
// nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return d.UnmarshalText([]byte(s))
	}

	var ns int64
	if err := json.Unmarshal(data, &ns); err != nil {
		return err
	}
	*d = Duration(ns)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}
