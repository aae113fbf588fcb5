// Package envelope turns raw PCM into a standardized energy contour.
package envelope

import (
	"math"
)

// Epsilon is the standard deviation at or below which an envelope is
// considered flat.
const Epsilon = 1e-10

// FrameCount returns the amount of frames of frameSize samples, hopSize
// apart, that fully fit into length samples.
func FrameCount(length, frameSize, hopSize int) int {
	if frameSize <= 0 || hopSize <= 0 || length < frameSize {
		return 0
	}
	return (length-frameSize)/hopSize + 1
}

// Compute returns the RMS of every full frame of the buffer. The frames
// start at i*hopSize; a buffer shorter than frameSize yields nothing.
func Compute(buf []float32, frameSize, hopSize int) []float64 {
	count := FrameCount(len(buf), frameSize, hopSize)
	env := make([]float64, count)
	for f := range env {
		env[f] = RMS(buf[f*hopSize : f*hopSize+frameSize])
	}
	return env
}

// RMS is the root mean square of the samples; zero for an empty slice.
func RMS(buf []float32) float64 {
	if len(buf) == 0 {
		return 0
	}
	var sum float64
	for _, v := range buf {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(buf)))
}

// Normalize returns the envelope shifted to zero mean and scaled to unit
// population standard deviation. A flat envelope becomes all zeros.
func Normalize(env []float64) []float64 {
	out := make([]float64, len(env))
	if len(env) == 0 {
		return out
	}

	mean, std := meanStd(env)
	if std <= Epsilon {
		clear(out)
		return out
	}
	for i, v := range env {
		out[i] = (v - mean) / std
	}
	return out
}

// Modulation is the coefficient of variation (the population standard
// deviation divided by the mean) of the envelope. Stationary noise stays
// close to zero, while speech and music change the level by tens of
// percent. An empty or silent envelope has no modulation.
func Modulation(env []float64) float64 {
	mean, std := meanStd(env)
	if mean <= Epsilon {
		return 0
	}
	return std / mean
}

func meanStd(env []float64) (float64, float64) {
	if len(env) == 0 {
		return 0, 0
	}

	var mean float64
	for _, v := range env {
		mean += v
	}
	mean /= float64(len(env))

	var variance float64
	for _, v := range env {
		variance += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(variance / float64(len(env)))
}
