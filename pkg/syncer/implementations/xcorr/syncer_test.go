package xcorr

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/lyricsync/pkg/syncer"
)

// chirpEnvelope is an aperiodic test signal.
func chirpEnvelope(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		x := float64(i)
		out[i] = math.Sin(0.002*x*x) + 0.5*math.Cos(0.37*x)
	}
	return out
}

func delayed(src []float64, k int) []float64 {
	out := make([]float64, len(src))
	for i := range out {
		if j := i - k; j >= 0 && j < len(src) {
			out[i] = src[j]
		}
	}
	return out
}

func TestCalculateShiftBetween(t *testing.T) {
	ctx := context.Background()
	s := NewSyncer()

	t.Run("self", func(t *testing.T) {
		a := chirpEnvelope(300)
		res, err := s.CalculateShiftBetween(ctx, a, a, 50)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Lag)

		var meanSq float64
		for _, v := range a {
			meanSq += v * v
		}
		meanSq /= float64(len(a))
		assert.InDelta(t, meanSq, res.Correlation, 1e-12)
	})

	for _, k := range []int{1, 7, 30, -12} {
		t.Run("delay", func(t *testing.T) {
			a := chirpEnvelope(300)
			b := delayed(a, k)
			res, err := s.CalculateShiftBetween(ctx, a, b, 40)
			require.NoError(t, err)
			assert.Equal(t, k, res.Lag, "k=%d", k)
			assert.Equal(t, float64(k), res.FractionalLag)
		})
	}

	t.Run("tie_first_wins", func(t *testing.T) {
		a := []float64{1, 1, 1, 1}
		res, err := s.CalculateShiftBetween(ctx, a, a, 2)
		require.NoError(t, err)
		assert.Equal(t, -2, res.Lag)
		assert.Equal(t, 1.0, res.Correlation)
	})

	t.Run("hand_computed", func(t *testing.T) {
		a := []float64{1, 0, -1}
		b := []float64{0, 1, 0}
		// lag -1: a[1]*b[0], a[2]*b[1] -> -1/2
		// lag  0: 0 + 0 + 0          -> 0
		// lag +1: a[0]*b[1], a[1]*b[2] -> 1/2
		res, err := s.CalculateShiftBetween(ctx, a, b, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Lag)
		assert.Equal(t, 0.5, res.Correlation)
	})

	t.Run("different_lengths", func(t *testing.T) {
		a := chirpEnvelope(200)
		b := delayed(chirpEnvelope(260), 9)
		res, err := s.CalculateShiftBetween(ctx, a, b, 20)
		require.NoError(t, err)
		assert.Equal(t, 9, res.Lag)
	})

	t.Run("edge_lags", func(t *testing.T) {
		// a loud frame at the end of the reference and at the start of
		// the comparison meet only at the lag of a single frame overlap
		a := chirpEnvelope(100)
		b := delayed(a, 5)
		a[99] = 8
		b[0] = 8

		res, err := s.CalculateShiftBetween(ctx, a, b, 99)
		require.NoError(t, err)
		assert.Equal(t, -99, res.Lag)
		assert.Equal(t, 64.0, res.Correlation)

		maxLag := syncer.MaxLagFrames(2, 48000, 256, len(a), len(b))
		require.Equal(t, 50, maxLag)
		res, err = s.CalculateShiftBetween(ctx, a, b, maxLag)
		require.NoError(t, err)
		assert.Equal(t, 5, res.Lag)
		assert.InDelta(t, 0.6556, res.Correlation, 1e-4)
	})

	t.Run("no_overlap", func(t *testing.T) {
		_, err := s.CalculateShiftBetween(ctx, nil, []float64{1, 2}, 3)
		assert.True(t, errors.Is(err, syncer.ErrNoOverlap))
	})

	t.Run("negative_max_lag", func(t *testing.T) {
		_, err := s.CalculateShiftBetween(ctx, []float64{1}, []float64{1}, -1)
		assert.True(t, errors.Is(err, syncer.ErrNegativeMaxLag))
	})

	t.Run("canceled", func(t *testing.T) {
		cancelCtx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s.CalculateShiftBetween(cancelCtx, chirpEnvelope(100), chirpEnvelope(100), 10)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func BenchmarkCalculateShiftBetween(b *testing.B) {
	a := chirpEnvelope(278)
	c := delayed(a, 56)
	s := NewSyncer()
	ctx := context.Background()
	for i := 0; i < b.N; i++ {
		_, _ = s.CalculateShiftBetween(ctx, a, c, 139)
	}
}
