package transcode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEstimateBytes(t *testing.T) {
	tests := []struct {
		name     string
		bitrate  int
		duration time.Duration
		offset   time.Duration
		want     int64
	}{
		{"full track", 192000, time.Minute, 0, 1440000},
		{"offset reduces remainder", 128000, time.Minute, 30 * time.Second, 480000},
		{"offset past end", 128000, time.Second, 2 * time.Second, 0},
		{"unknown duration", 192000, 0, 0, 0},
		{"zero bitrate", 0, time.Minute, 0, 0},
		{"sub-second remainder", 32000, 1500 * time.Millisecond, 0, 6000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateBytes(tt.bitrate, tt.duration, tt.offset))
		})
	}
}
