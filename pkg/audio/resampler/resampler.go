package resampler

import (
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/xaionaro-go/lyricsync/pkg/audio/types"
)

// ChannelMode defines how a multi-channel input is folded into a mono output.
type ChannelMode int

const (
	// ChannelModeMix averages all the input channels.
	ChannelModeMix = ChannelMode(iota)

	// ChannelModeFirst takes only the first input channel.
	ChannelModeFirst
)

type Format struct {
	Channels   types.Channel
	SampleRate types.SampleRate
	PCMFormat  types.PCMFormat
}

func (f Format) Validate() error {
	if f.Channels == 0 {
		return fmt.Errorf("the amount of channels is zero")
	}
	if f.SampleRate == 0 {
		return fmt.Errorf("the sample rate is zero")
	}
	if _, ok := codecs[f.PCMFormat]; !ok {
		return fmt.Errorf("unsupported PCM format %s", f.PCMFormat)
	}
	return nil
}

func (f Format) frameSize() int {
	return int(f.PCMFormat.Size()) * int(f.Channels)
}

// Resampler converts a PCM stream between sample formats, channel layouts
// and sample rates (nearest-neighbor).
type Resampler struct {
	locker      sync.Mutex
	inReader    io.Reader
	inFormat    Format
	outFormat   Format
	channelMode ChannelMode
	inCodec     codec
	outCodec    codec
	step        float64
	position    float64
	pending     []byte
	frame       []float64
}

var _ io.Reader = (*Resampler)(nil)

type Option func(*Resampler)

func OptionChannelMode(mode ChannelMode) Option {
	return func(r *Resampler) {
		r.channelMode = mode
	}
}

func NewResampler(
	inFormat Format,
	inReader io.Reader,
	outFormat Format,
	opts ...Option,
) (*Resampler, error) {
	if err := inFormat.Validate(); err != nil {
		return nil, fmt.Errorf("invalid input format %#+v: %w", inFormat, err)
	}
	if err := outFormat.Validate(); err != nil {
		return nil, fmt.Errorf("invalid output format %#+v: %w", outFormat, err)
	}
	if inFormat.Channels != outFormat.Channels && inFormat.Channels != 1 && outFormat.Channels != 1 {
		return nil, fmt.Errorf("do not know how to convert %d channels to %d", inFormat.Channels, outFormat.Channels)
	}

	r := &Resampler{
		inReader:  inReader,
		inFormat:  inFormat,
		outFormat: outFormat,
		inCodec:   codecs[inFormat.PCMFormat],
		outCodec:  codecs[outFormat.PCMFormat],
		step:      float64(inFormat.SampleRate) / float64(outFormat.SampleRate),
		frame:     make([]float64, outFormat.Channels),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Resampler) decodeFrame(src []byte) {
	sampleSize := int(r.inFormat.PCMFormat.Size())
	inChannels := int(r.inFormat.Channels)
	outChannels := len(r.frame)

	switch {
	case inChannels == outChannels:
		for ch := 0; ch < inChannels; ch++ {
			r.frame[ch] = r.inCodec.decode(src[ch*sampleSize:])
		}
	case inChannels == 1:
		v := r.inCodec.decode(src)
		for ch := range r.frame {
			r.frame[ch] = v
		}
	default:
		if r.channelMode == ChannelModeFirst {
			r.frame[0] = r.inCodec.decode(src)
			return
		}
		var sum float64
		for ch := 0; ch < inChannels; ch++ {
			sum += r.inCodec.decode(src[ch*sampleSize:])
		}
		r.frame[0] = sum / float64(inChannels)
	}
}

func (r *Resampler) encodeFrame(dst []byte) {
	sampleSize := int(r.outFormat.PCMFormat.Size())
	for ch, v := range r.frame {
		r.outCodec.encode(dst[ch*sampleSize:], v)
	}
}

func (r *Resampler) Read(p []byte) (int, error) {
	r.locker.Lock()
	defer r.locker.Unlock()

	inFrameSize := r.inFormat.frameSize()
	outFrameSize := r.outFormat.frameSize()
	maxOutFrames := len(p) / outFrameSize
	if maxOutFrames == 0 {
		return 0, io.ErrShortBuffer
	}

	for {
		// the index of the last input frame needed to fill p
		lastNeeded := int(math.Floor(r.position + float64(maxOutFrames-1)*r.step))
		wantBytes := (lastNeeded + 1) * inFrameSize
		if len(r.pending) < wantBytes {
			oldLen := len(r.pending)
			if cap(r.pending) < wantBytes {
				buf := make([]byte, oldLen, wantBytes)
				copy(buf, r.pending)
				r.pending = buf
			}
			r.pending = r.pending[:wantBytes]
			n, err := r.inReader.Read(r.pending[oldLen:])
			r.pending = r.pending[:oldLen+n]
			produced := r.produce(p, maxOutFrames)
			if produced > 0 || err != nil {
				return produced * outFrameSize, err
			}
			continue
		}
		return r.produce(p, maxOutFrames) * outFrameSize, nil
	}
}

func (r *Resampler) produce(p []byte, maxOutFrames int) int {
	inFrameSize := r.inFormat.frameSize()
	outFrameSize := r.outFormat.frameSize()
	available := len(r.pending) / inFrameSize

	produced := 0
	for produced < maxOutFrames {
		idx := int(math.Floor(r.position))
		if idx >= available {
			break
		}
		r.decodeFrame(r.pending[idx*inFrameSize:])
		r.encodeFrame(p[produced*outFrameSize:])
		produced++
		r.position += r.step
	}

	consumed := int(math.Floor(r.position))
	if consumed > available {
		consumed = available
	}
	r.position -= float64(consumed)
	r.pending = r.pending[:copy(r.pending, r.pending[consumed*inFrameSize:])]
	return produced
}
