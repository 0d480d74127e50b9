package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalText(t *testing.T) {
	cases := map[string]time.Duration{
		"90s":     90 * time.Second,
		"1h30m":   90 * time.Minute,
		"30d":     30 * 24 * time.Hour,
		"2w":      14 * 24 * time.Hour,
		"1w2d12h": 9*24*time.Hour + 12*time.Hour,
	}

	for input, want := range cases {
		var d Duration
		require.NoError(t, d.UnmarshalText([]byte(input)), input)
		assert.Equal(t, want, d.Duration(), input)
	}

	var d Duration
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}

func TestDuration_JSON(t *testing.T) {
	t.Run("accepts the string grammar", func(t *testing.T) {
		var d Duration
		require.NoError(t, json.Unmarshal([]byte(`"2w"`), &d))
		assert.Equal(t, 14*24*time.Hour, d.Duration())
	})

	t.Run("accepts bare nanoseconds", func(t *testing.T) {
		var d Duration
		require.NoError(t, json.Unmarshal([]byte(`90000000000`), &d))
		assert.Equal(t, 90*time.Second, d.Duration())
	})

	t.Run("rejects other shapes", func(t *testing.T) {
		var d Duration
		assert.Error(t, json.Unmarshal([]byte(`{"weeks":2}`), &d))
	})

	t.Run("marshals back to the grammar", func(t *testing.T) {
		out, err := json.Marshal(Duration(9*24*time.Hour + 12*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, `"1w2d12h"`, string(out))
	})
}

func TestDuration_String(t *testing.T) {
	cases := map[Duration]string{
		Duration(0):                             "0s",
		Duration(30 * time.Second):              "30s",
		Duration(90 * time.Minute):              "1h30m",
		Duration(3 * 24 * time.Hour):            "3d",
		Duration(9*24*time.Hour + 12*time.Hour): "1w2d12h",
	}
	for d, want := range cases {
		assert.Equal(t, want, d.String())
	}
}
