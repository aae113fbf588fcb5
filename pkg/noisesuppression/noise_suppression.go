// Package noisesuppression describes denoisers of mono float32 audio.
package noisesuppression

import (
	"context"
	"io"

	"github.com/xaionaro-go/lyricsync/pkg/audio"
)

type NoiseSuppression interface {
	io.Closer

	// SampleRate is the only sample rate the implementation works with.
	SampleRate() audio.SampleRate

	// ChunkSize is the amount of samples SuppressNoise expects; the input
	// must be a multiple of it. Zero means any length.
	ChunkSize() int

	// SuppressNoise writes the denoised input into outputVoice and returns
	// the maximal voice probability among the processed chunks.
	SuppressNoise(ctx context.Context, input []float32, outputVoice []float32) (float64, error)
}
