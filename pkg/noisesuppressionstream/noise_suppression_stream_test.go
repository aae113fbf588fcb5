package noisesuppressionstream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/lyricsync/pkg/audio"
	"github.com/xaionaro-go/lyricsync/pkg/noisesuppression"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func sine(count int) []float32 {
	out := make([]float32, count)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/48000))
	}
	return out
}

type halving struct {
	noisesuppression.Dummy
}

func (h *halving) SuppressNoise(_ context.Context, input []float32, outputVoice []float32) (float64, error) {
	for i, v := range input {
		outputVoice[i] = v / 2
	}
	return 0.5, nil
}

type failing struct {
	noisesuppression.Dummy
}

func (*failing) SuppressNoise(context.Context, []float32, []float32) (float64, error) {
	return 0, errors.New("the model is broken")
}

func TestNoiseSuppressionStream(t *testing.T) {
	ctx := context.Background()

	t.Run("passthrough", func(t *testing.T) {
		samples := sine(1000)
		input := bytes.NewReader(audio.SamplesToFloat32LE(nil, samples))
		s, err := NewNoiseSuppressionStream(ctx, input, noisesuppression.NewDummy(48000, 480), 4096, 4096)
		require.NoError(t, err)

		out, err := io.ReadAll(s)
		require.NoError(t, err)
		assert.Equal(t, samples, audio.Float32LEToSamples(nil, out))
		assert.NoError(t, s.Close())
	})

	t.Run("processed", func(t *testing.T) {
		samples := sine(2000)
		input := bytes.NewReader(audio.SamplesToFloat32LE(nil, samples))
		ns := &halving{Dummy: *noisesuppression.NewDummy(48000, 0)}
		s, err := NewNoiseSuppressionStream(ctx, input, ns, 2048, 2048)
		require.NoError(t, err)

		out, err := io.ReadAll(s)
		require.NoError(t, err)
		result := audio.Float32LEToSamples(nil, out)
		require.Len(t, result, len(samples))
		for i := range samples {
			assert.Equal(t, samples[i]/2, result[i])
		}
		assert.NoError(t, s.Close())
	})

	t.Run("error", func(t *testing.T) {
		input := bytes.NewReader(audio.SamplesToFloat32LE(nil, sine(1000)))
		ns := &failing{Dummy: *noisesuppression.NewDummy(48000, 480)}
		s, err := NewNoiseSuppressionStream(ctx, input, ns, 4096, 4096)
		require.NoError(t, err)

		_, err = io.ReadAll(s)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "the model is broken")
		assert.NoError(t, s.Close())
	})

	t.Run("close_unblocks", func(t *testing.T) {
		pr, pw := io.Pipe()
		defer pw.Close()
		s, err := NewNoiseSuppressionStream(ctx, pr, noisesuppression.NewDummy(48000, 480), 4096, 4096)
		require.NoError(t, err)

		_, err = pw.Write(audio.SamplesToFloat32LE(nil, sine(480)))
		require.NoError(t, err)
		buf := make([]byte, 480*4)
		_, err = io.ReadFull(s, buf)
		require.NoError(t, err)

		require.NoError(t, s.Close())
		n, err := s.Read(buf)
		assert.Zero(t, n)
		assert.Error(t, err)
	})

	t.Run("buffer_too_small", func(t *testing.T) {
		_, err := NewNoiseSuppressionStream(ctx, bytes.NewReader(nil), noisesuppression.NewDummy(48000, 480), 100, 4096)
		assert.Error(t, err)
	})
}
