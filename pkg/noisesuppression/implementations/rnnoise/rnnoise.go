//go:build rnnoise
// +build rnnoise

package rnnoise

import (
	"context"
	"fmt"
	"math"
	"sync"
	"unsafe"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/lyricsync/pkg/audio"
	"github.com/xaionaro-go/lyricsync/pkg/noisesuppression"
)

/*
#cgo pkg-config: rnnoise
#cgo CFLAGS: -march=native
#include <rnnoise.h>
*/
import "C"

// SampleRate is the only sample rate RNNoise models are trained for.
const SampleRate = audio.SampleRate(48_000)

type RNNoise struct {
	Locker       sync.Mutex
	DenoiseState *C.DenoiseState
	Buffer       []float32
}

var _ noisesuppression.NoiseSuppression = (*RNNoise)(nil)

var frameSize int

func init() {
	frameSize = int(C.rnnoise_get_frame_size())
}

// New returns a denoiser of mono audio at SampleRate.
func New() (*RNNoise, error) {
	state := C.rnnoise_create(nil)
	if state == nil {
		return nil, fmt.Errorf("unable to create a denoise state")
	}
	return &RNNoise{
		DenoiseState: state,
	}, nil
}

func (s *RNNoise) Close() error {
	s.Locker.Lock()
	defer s.Locker.Unlock()
	if s.DenoiseState == nil {
		return fmt.Errorf("double-free attempt")
	}
	C.rnnoise_destroy(s.DenoiseState)
	s.DenoiseState = nil
	return nil
}

func (s *RNNoise) SampleRate() audio.SampleRate {
	return SampleRate
}

func (s *RNNoise) ChunkSize() int {
	return frameSize
}

func (s *RNNoise) SuppressNoise(ctx context.Context, input []float32, outputVoice []float32) (_ret float64, _err error) {
	logger.Tracef(ctx, "SuppressNoise, len:%d", len(input))
	defer func() { logger.Tracef(ctx, "/SuppressNoise, len:%d: %v", len(input), _err) }()

	if len(input) != len(outputVoice) {
		return 0, fmt.Errorf("lengths of input and output slices are not equal: %d != %d", len(input), len(outputVoice))
	}
	if len(input)%frameSize != 0 {
		return 0, fmt.Errorf("the size of the input is not a multiple of the frame size: %d %% %d != 0", len(input), frameSize)
	}

	s.Locker.Lock()
	defer s.Locker.Unlock()
	if s.DenoiseState == nil {
		return 0, fmt.Errorf("the denoiser is closed")
	}
	if len(s.Buffer) < len(input) {
		s.Buffer = make([]float32, len(input))
	}
	buf := s.Buffer[:len(input)]

	// RNNoise expects the 16-bit range
	for idx, v := range input {
		buf[idx] = v * math.MaxInt16
	}

	var maxVADProb float64
	for offset := 0; offset < len(buf); offset += frameSize {
		vadProb := C.rnnoise_process_frame(
			s.DenoiseState,
			(*C.float)(unsafe.Pointer(&outputVoice[offset])),
			(*C.float)(unsafe.Pointer(&buf[offset])),
		)
		maxVADProb = max(maxVADProb, float64(vadProb))
	}

	for idx := range outputVoice {
		outputVoice[idx] /= math.MaxInt16
	}
	return maxVADProb, nil
}
