package fourier

import (
	"math"

	"github.com/brettbuddin/fourier"
	"github.com/xaionaro-go/lyricsync/pkg/interpolation"
)

const (
	// DefaultMaxWindowSize is the maximum number of samples on each side of
	// the gap used for the spectral analysis.
	DefaultMaxWindowSize = 1024

	// MinRequiredSamples is the minimum number of samples needed on each side
	// of the gap to perform a meaningful spectral analysis.
	MinRequiredSamples = 4

	// DefaultSieveSensitivity determines how far a spectral peak must stand
	// above the average magnitude to be kept.
	DefaultSieveSensitivity = 2.5

	// spectrumNormalization scales the magnitudes of a two-sided forward FFT
	// to the amplitudes of the synthesized sines.
	spectrumNormalization = 2.0
)

type Interpolator struct {
	MaxWindowSize    int
	SieveSensitivity float64
}

var _ interpolation.Interpolator = (*Interpolator)(nil)

func New() *Interpolator {
	return &Interpolator{
		MaxWindowSize:    DefaultMaxWindowSize,
		SieveSensitivity: DefaultSieveSensitivity,
	}
}

// Interpolate fills the gap by extending the tonal components of the
// signal on both sides of it.
//
// A power-of-two window next to the gap is transformed on each side, the
// peaks standing above the average magnitude are kept, and their sines are
// continued into the gap (forward from the past, backward from the future).
// The two projections are blended with a smoothstep weight, and a linear
// correction removes the remaining jump at both stitch points.
func (ip *Interpolator) Interpolate(before, after []float32, gapLen int) []float32 {
	result := make([]float32, gapLen)
	if gapLen <= 0 {
		return result
	}
	if len(before) < MinRequiredSamples || len(after) < MinRequiredSamples {
		return interpolation.NewLinear().Interpolate(before, after, gapLen)
	}

	n := min(len(before), ip.MaxWindowSize, len(after))
	n = largestPowerOfTwo(n)

	windowBefore := before[len(before)-n:]
	windowAfter := after[:n]

	forward := ip.extend(windowBefore, gapLen, true)
	backward := ip.extend(windowAfter, gapLen, false)

	vStart := float64(windowBefore[len(windowBefore)-1])
	vEnd := float64(windowAfter[0])
	startDiff := forward[0] - vStart
	endDiff := backward[gapLen-1] - vEnd

	for i := range gapLen {
		t := float64(i+1) / float64(gapLen+1)
		w := t * t * (3 - 2*t)

		val := (1-w)*forward[i] + w*backward[i]
		val -= (1-w)*startDiff + w*endDiff
		result[i] = float32(val)
	}
	return result
}

func largestPowerOfTwo(n int) int {
	p := 1
	for p*2 <= n {
		p *= 2
	}
	return p
}

type peak struct {
	idx       int
	magnitude float64
	phase     float64
}

func (ip *Interpolator) extend(
	samples []float32,
	gapLen int,
	forward bool,
) []float64 {
	n := len(samples)
	coeffs := make([]complex128, n)
	for i, v := range samples {
		coeffs[i] = complex(float64(v), 0)
	}
	if err := fourier.Forward(coeffs); err != nil {
		return make([]float64, gapLen)
	}

	magnitudes := make([]float64, n)
	var avg float64
	for i, c := range coeffs {
		magnitudes[i] = math.Hypot(real(c), imag(c))
		avg += magnitudes[i]
	}
	threshold := avg / float64(n) * ip.SieveSensitivity

	var peaks []peak
	for i := 1; i < n/2; i++ {
		if magnitudes[i] > threshold && magnitudes[i] > magnitudes[i-1] && magnitudes[i] > magnitudes[i+1] {
			peaks = append(peaks, peak{
				idx:       i,
				magnitude: magnitudes[i] * spectrumNormalization / float64(n),
				phase:     math.Atan2(imag(coeffs[i]), real(coeffs[i])),
			})
		}
	}

	dc := real(coeffs[0]) / float64(n)
	result := make([]float64, gapLen)
	for i := range gapLen {
		var t float64
		if forward {
			t = float64(n + i)
		} else {
			t = float64(i - gapLen)
		}

		sum := dc
		for _, p := range peaks {
			sum += p.magnitude * math.Cos(2*math.Pi*float64(p.idx)*t/float64(n)+p.phase)
		}
		result[i] = sum
	}
	return result
}
