package local

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/xaionaro-go/lyricsync/pkg/audio"
	"github.com/xaionaro-go/lyricsync/pkg/audio/resampler"
)

// converter turns chunks of arbitrary PCM into mono float32 samples at
// the sample rate of the context.
type converter struct {
	input     bytes.Buffer
	resampler *resampler.Resampler
	outBuf    []byte
	samples   []float32
}

func newConverter(
	inFormat resampler.Format,
	sampleRate audio.SampleRate,
) (*converter, error) {
	c := &converter{
		outBuf: make([]byte, 4096*4),
	}
	r, err := resampler.NewResampler(
		inFormat,
		&c.input,
		resampler.Format{
			Channels:   1,
			SampleRate: sampleRate,
			PCMFormat:  audio.PCMFormatFloat32LE,
		},
		resampler.OptionChannelMode(resampler.ChannelModeFirst),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize the resampler: %w", err)
	}
	c.resampler = r
	return c, nil
}

// convert returns the samples available after appending data; the
// returned slice is valid until the next call.
func (c *converter) convert(data []byte) ([]float32, error) {
	c.input.Write(data)
	c.samples = c.samples[:0]
	for {
		n, err := c.resampler.Read(c.outBuf)
		c.samples = audio.Float32LEToSamples(c.samples, c.outBuf[:n])
		switch {
		case errors.Is(err, io.EOF):
			return c.samples, nil
		case err != nil:
			return c.samples, err
		case n == 0:
			return c.samples, nil
		}
	}
}
