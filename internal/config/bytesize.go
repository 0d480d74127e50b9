package config

import (
	"encoding/json"

	"github.com/jmylchreest/audarr/pkg/bytesize"
)

// ByteSize is a byte count whose text form takes the units of pkg/bytesize
// ("256KB", "1.5GB", bare byte counts), so buffer and chunk settings do not
// have to be spelled out in bytes. Viper reaches UnmarshalText through its
// text-unmarshaller decode hook.
type ByteSize int64

// Bytes returns the size as a plain int64.
func (b ByteSize) Bytes() int64 { return int64(b) }

func (b ByteSize) String() string {
	return bytesize.Format(bytesize.Size(b))
}

func (b *ByteSize) UnmarshalText(text []byte) error {
	size, err := bytesize.Parse(string(text))
	if err != nil {
		return err
	}
	*b = ByteSize(size)
	return nil
}

// UnmarshalJSON accepts either the string grammar or a bare byte count.
func (b *ByteSize) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return b.UnmarshalText([]byte(s))
	}

	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*b = ByteSize(n)
	return nil
}

func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b ByteSize) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}
