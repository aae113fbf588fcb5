package noisesuppression

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/lyricsync/pkg/audio"
)

// Dummy passes the audio through as is.
type Dummy struct {
	SampleRateValue audio.SampleRate
	ChunkSizeValue  int
}

var _ NoiseSuppression = (*Dummy)(nil)

func NewDummy(
	sampleRate audio.SampleRate,
	chunkSize int,
) *Dummy {
	return &Dummy{
		SampleRateValue: sampleRate,
		ChunkSizeValue:  chunkSize,
	}
}

func (s *Dummy) Close() error {
	return nil
}

func (s *Dummy) SampleRate() audio.SampleRate {
	return s.SampleRateValue
}

func (s *Dummy) ChunkSize() int {
	return s.ChunkSizeValue
}

func (s *Dummy) SuppressNoise(_ context.Context, input []float32, outputVoice []float32) (float64, error) {
	if len(input) != len(outputVoice) {
		return 0, fmt.Errorf("lengths of input and output slices are not equal: %d != %d", len(input), len(outputVoice))
	}
	copy(outputVoice, input)
	return 1, nil
}
