package syncer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaxLagFrames(t *testing.T) {
	for _, tc := range []struct {
		name          string
		maxLagSeconds float64
		sampleRate    int
		hop           int
		lenA, lenB    int
		want          int
	}{
		{"default", 2.0, 48000, 256, 10000, 10000, 375},
		{"rounding_down", 0.1, 44100, 256, 10000, 10000, 17},
		{"rounding_up", 0.1, 48000, 256, 10000, 10000, 19},
		{"capped_by_shorter", 2.0, 48000, 256, 278, 300, 139},
		{"capped_by_odd_shorter", 2.0, 48000, 256, 301, 11, 5},
		{"two_frames", 2.0, 48000, 256, 2, 2, 1},
		{"single_frame", 2.0, 48000, 256, 1, 1, 0},
		{"empty", 2.0, 48000, 256, 0, 278, 0},
		{"zero_seconds", 0, 48000, 256, 278, 278, 0},
		{"invalid_hop", 2.0, 48000, 0, 278, 278, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MaxLagFrames(tc.maxLagSeconds, tc.sampleRate, tc.hop, tc.lenA, tc.lenB))
		})
	}
}

func TestLagToOffsetSeconds(t *testing.T) {
	assert.InDelta(t, 0.29867, LagToOffsetSeconds(56, 256, 48000), 1e-5)
	assert.InDelta(t, -0.5333, LagToOffsetSeconds(-100, 256, 48000), 1e-4)
	assert.Zero(t, LagToOffsetSeconds(10, 256, 0))
}

func TestClampOffset(t *testing.T) {
	assert.Equal(t, 0.3, ClampOffset(LagToOffsetSeconds(56, 256, 48000), -5, 15))
	assert.Equal(t, -1.2, ClampOffset(-1.23, -5, 15))
	assert.Equal(t, 15.0, ClampOffset(1000, -5, 15))
	assert.Equal(t, -5.0, ClampOffset(-1000, -5, 15))
	assert.Equal(t, 15.0, ClampOffset(LagToOffsetSeconds(187500, 256, 48000), -5, 15))
	assert.Equal(t, 15.0, ClampOffset(math.Inf(1), -5, 15))
	assert.Equal(t, 0.0, ClampOffset(math.NaN(), -5, 15))
}
