package portaudio

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gordonklaus/portaudio"
	"github.com/xaionaro-go/lyricsync/pkg/audio/types"
)

const (
	RecordBufferSize = time.Millisecond * 100
)

type direction int

const (
	directionInput = direction(iota)
	directionOutput
)

func (d direction) String() string {
	switch d {
	case directionInput:
		return "input"
	case directionOutput:
		return "output"
	default:
		return fmt.Sprintf("unknown_direction_%d", int(d))
	}
}

// stream is the part shared by the recording and playback streams:
// an opened portaudio stream and a byte view of its native sample buffer.
type stream struct {
	PortAudioStream *portaudio.Stream
	Buffer          []byte
	CancelFunc      context.CancelFunc
	WaitGroup       sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

func openStream(
	ctx context.Context,
	dir direction,
	sampleRate types.SampleRate,
	channels types.Channel,
	format types.PCMFormat,
	bufferSize time.Duration,
) (*stream, error) {
	switch format {
	case types.PCMFormatU8:
		return openStreamTyped[uint8](ctx, dir, sampleRate, channels, bufferSize)
	case types.PCMFormatS16LE:
		return openStreamTyped[int16](ctx, dir, sampleRate, channels, bufferSize)
	case types.PCMFormatS32LE:
		return openStreamTyped[int32](ctx, dir, sampleRate, channels, bufferSize)
	case types.PCMFormatFloat32LE:
		return openStreamTyped[float32](ctx, dir, sampleRate, channels, bufferSize)
	default:
		return nil, fmt.Errorf("do not know how to start an %s stream for PCM format %s", dir, format)
	}
}

func openStreamTyped[T uint8 | int16 | int32 | float32](
	ctx context.Context,
	dir direction,
	sampleRate types.SampleRate,
	channels types.Channel,
	bufferSize time.Duration,
) (*stream, error) {
	framesPerBuffer := int(bufferSize.Seconds() * float64(sampleRate))
	if framesPerBuffer <= 0 {
		return nil, fmt.Errorf("the buffer of %v is too small for sample rate %d", bufferSize, sampleRate)
	}

	var sample T
	buf := make([]T, framesPerBuffer*int(channels))
	logger.Debugf(ctx, "openStream(%s): %T, %d, %d, %v(%d)", dir, sample, sampleRate, channels, bufferSize, framesPerBuffer)

	var (
		paStream *portaudio.Stream
		err      error
	)
	switch dir {
	case directionInput:
		paStream, err = portaudio.OpenDefaultStream(int(channels), 0, float64(sampleRate), framesPerBuffer, buf)
	case directionOutput:
		paStream, err = portaudio.OpenDefaultStream(0, int(channels), float64(sampleRate), framesPerBuffer, buf)
	default:
		return nil, fmt.Errorf("unexpected direction %s", dir)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to open the default %s stream: %w", dir, err)
	}

	ptr := unsafe.SliceData(buf)
	return &stream{
		PortAudioStream: paStream,
		Buffer:          unsafe.Slice((*byte)(unsafe.Pointer(ptr)), len(buf)*int(unsafe.Sizeof(sample))),
	}, nil
}

func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		if s.CancelFunc != nil {
			s.CancelFunc()
		}
		if err := s.PortAudioStream.Abort(); err != nil {
			s.closeErr = fmt.Errorf("unable to abort the stream: %w", err)
		}
		if err := s.PortAudioStream.Close(); err != nil && s.closeErr == nil {
			s.closeErr = fmt.Errorf("unable to close the stream: %w", err)
		}
	})
	return s.closeErr
}

func (s *stream) Drain() error {
	s.WaitGroup.Wait()
	return nil
}
