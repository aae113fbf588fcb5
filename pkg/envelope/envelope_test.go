package envelope

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(amplitude, freq float64, sampleRate, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return out
}

func TestFrameCount(t *testing.T) {
	for _, tc := range []struct {
		length, frame, hop int
		want               int
	}{
		{72000, 1024, 256, 278},
		{1024, 1024, 256, 1},
		{1023, 1024, 256, 0},
		{0, 1024, 256, 0},
		{1280, 1024, 256, 2},
		{1279, 1024, 256, 1},
		{10, 4, 3, 3},
		{10, 0, 3, 0},
		{10, 4, 0, 0},
	} {
		assert.Equal(t, tc.want, FrameCount(tc.length, tc.frame, tc.hop), "%d/%d/%d", tc.length, tc.frame, tc.hop)
	}
}

func TestCompute(t *testing.T) {
	t.Run("sine", func(t *testing.T) {
		// 1 kHz at 48 kHz: a frame of 960 samples holds exactly 20 periods
		buf := sine(0.5, 1000, 48000, 48000)
		env := Compute(buf, 960, 240)
		require.Len(t, env, (48000-960)/240+1)
		for i, v := range env {
			assert.InDelta(t, 0.5/math.Sqrt2, v, 1e-4, "frame %d", i)
		}
	})

	t.Run("frames", func(t *testing.T) {
		buf := []float32{1, 1, 3, 3, 0, 0, 4}
		env := Compute(buf, 2, 2)
		assert.InDeltaSlice(t, []float64{1, 3, 0}, env, 1e-12)
	})

	t.Run("too_short", func(t *testing.T) {
		assert.Empty(t, Compute(make([]float32, 1023), 1024, 256))
		assert.Empty(t, Compute(nil, 1024, 256))
	})
}

func TestRMS(t *testing.T) {
	assert.Zero(t, RMS(nil))
	assert.InDelta(t, 1.0, RMS([]float32{1, -1, 1, -1}), 1e-12)
	assert.InDelta(t, 0.8/math.Sqrt2, RMS(sine(0.8, 440, 44100, 44100)), 1e-4)
}

func TestNormalize(t *testing.T) {
	t.Run("non_constant", func(t *testing.T) {
		env := Compute(sine(0.3, 3, 8000, 8000), 256, 64)
		out := Normalize(env)
		mean, std := meanStd(out)
		assert.InDelta(t, 0, mean, 1e-9)
		assert.InDelta(t, 1, std, 1e-9)
	})

	t.Run("input_untouched", func(t *testing.T) {
		env := []float64{1, 2, 3}
		_ = Normalize(env)
		assert.Equal(t, []float64{1, 2, 3}, env)
	})

	t.Run("constant", func(t *testing.T) {
		out := Normalize([]float64{0.25, 0.25, 0.25, 0.25})
		assert.Equal(t, []float64{0, 0, 0, 0}, out)
		for _, v := range out {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		}
	})

	t.Run("silence", func(t *testing.T) {
		out := Normalize(Compute(make([]float32, 4096), 1024, 256))
		assert.Len(t, out, 13)
		for _, v := range out {
			assert.Zero(t, v)
		}
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, Normalize(nil))
	})
}

func TestModulation(t *testing.T) {
	assert.Equal(t, 0.5, Modulation([]float64{1, 3}))
	assert.InDelta(t, math.Sqrt(2.0/3)/2, Modulation([]float64{1, 2, 3}), 1e-12)
	assert.Zero(t, Modulation([]float64{0.25, 0.25, 0.25}))
	assert.Zero(t, Modulation(Compute(make([]float32, 4096), 1024, 256)))
	assert.Zero(t, Modulation(nil))

	// the level changes, not the absolute level, are what matters
	steady := Compute(sine(0.3, 1000, 48000, 48000), 1024, 256)
	assert.Less(t, Modulation(steady), 0.01)

	keyed := append(sine(0.3, 1000, 48000, 24000), sine(0.05, 1000, 48000, 24000)...)
	assert.InDelta(t, Modulation(Compute(keyed, 1024, 256)), Modulation(Compute(scale(keyed, 3), 1024, 256)), 1e-9)
	assert.Greater(t, Modulation(Compute(keyed, 1024, 256)), 0.5)
}

func scale(buf []float32, k float32) []float32 {
	out := make([]float32, len(buf))
	for i, v := range buf {
		out[i] = v * k
	}
	return out
}

func BenchmarkCompute(b *testing.B) {
	buf := sine(0.5, 1000, 48000, 72000)
	for i := 0; i < b.N; i++ {
		Compute(buf, 1024, 256)
	}
}
