package autosync

import (
	"math"
)

const testSampleRate = 48000

// xorshift is a tiny deterministic generator, so that the signals are
// the same on every run.
type xorshift uint64

func (x *xorshift) next() uint64 {
	*x ^= *x << 13
	*x ^= *x >> 7
	*x ^= *x << 17
	return uint64(*x)
}

// float returns a value in [0, 1).
func (x *xorshift) float() float64 {
	return float64(x.next()>>11) / (1 << 53)
}

// keyedTone is a 1kHz tone with a random level every blockSize samples.
func keyedTone(seed uint64, length, blockSize int) []float32 {
	rng := xorshift(seed)
	out := make([]float32, length)
	var gain float64
	for i := range out {
		if i%blockSize == 0 {
			gain = 0.05 + 0.45*rng.float()
		}
		out[i] = float32(gain * math.Sin(2*math.Pi*1000*float64(i)/testSampleRate))
	}
	return out
}

// keyedNoise is white noise with a random level every blockSize samples.
func keyedNoise(seed uint64, length, blockSize int) []float32 {
	rng := xorshift(seed)
	out := make([]float32, length)
	var gain float64
	for i := range out {
		if i%blockSize == 0 {
			gain = 0.05 + 0.45*rng.float()
		}
		out[i] = float32(gain * (2*rng.float() - 1))
	}
	return out
}

func whiteNoise(seed uint64, length int, amplitude float64) []float32 {
	rng := xorshift(seed)
	out := make([]float32, length)
	for i := range out {
		out[i] = float32(amplitude * (2*rng.float() - 1))
	}
	return out
}

// delayed returns what the program and a microphone delay samples behind
// it would capture from src.
func delayed(src []float32, delay int, micGain float32) (program, mic []float32) {
	program = src[delay:]
	mic = make([]float32, len(src)-delay)
	for i := range mic {
		mic[i] = micGain * src[i]
	}
	return program, mic
}
