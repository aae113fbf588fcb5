// Package gccphat implements an audio synchronization algorithm using
// Generalized Cross-Correlation with Phase Transform (GCC-PHAT).
//
// The algorithm calculates the time delay between two signals by
// looking at their cross-correlation in the frequency domain. By
// normalizing the magnitude (the Phase Transform), it becomes
// robust against variations in volume and certain types of noise,
// focusing only on the phase information that indicates the delay.
package gccphat

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/xaionaro-go/lyricsync/pkg/syncer"
)

type Syncer struct {
	SampleRate float64
	MinFreq    float64
	MaxFreq    float64
}

var _ syncer.Syncer = (*Syncer)(nil)

// NewSyncer initializes a new one-shot GCC-PHAT syncer for mono signals
// of the given sample rate.
func NewSyncer(sampleRate int) (*Syncer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive: got %d", sampleRate)
	}
	return &Syncer{
		SampleRate: float64(sampleRate),
		// 100Hz..12000Hz carries most of the informative audio without
		// low-frequency rumble and high-frequency digital noise.
		MinFreq: 100,
		MaxFreq: 12000,
	}, nil
}

// CalculateShiftBetween returns the delay of the comparison track relative
// to the reference track in samples, with a sub-sample precision in
// FractionalLag. Correlation is a confidence score in [0, 1].
func (s *Syncer) CalculateShiftBetween(
	ctx context.Context,
	reference []float64,
	comparison []float64,
	maxLag int,
) (syncer.ShiftResult, error) {
	if maxLag < 0 {
		return syncer.ShiftResult{}, syncer.ErrNegativeMaxLag
	}
	n1 := len(reference)
	n2 := len(comparison)
	if n1 == 0 || n2 == 0 {
		return syncer.ShiftResult{}, syncer.ErrNoOverlap
	}

	// The next power of two of (n1 + n2 - 1) avoids circular convolution artifacts.
	n := 1
	for n < n1+n2-1 {
		n <<= 1
	}

	fref := make([]complex128, n)
	fcomp := make([]complex128, n)
	for j, v := range reference {
		fref[j] = complex(v, 0)
	}
	for j, v := range comparison {
		fcomp[j] = complex(v, 0)
	}

	if err := ctx.Err(); err != nil {
		return syncer.ShiftResult{}, err
	}
	ffref := fft.FFT(fref)
	ffcomp := fft.FFT(fcomp)
	if err := ctx.Err(); err != nil {
		return syncer.ShiftResult{}, err
	}

	shift, confidence, err := CrossCorrelate(ffref, ffcomp, s.SampleRate, s.MinFreq, s.MaxFreq, maxLag)
	if err != nil {
		return syncer.ShiftResult{}, fmt.Errorf("unable to cross-correlate: %w", err)
	}
	return syncer.ShiftResult{
		Lag:           int(math.Round(shift)),
		FractionalLag: shift,
		Correlation:   confidence,
	}, nil
}

// CrossCorrelate calculates the delay of 'fcomp' relative to 'fref' using GCC-PHAT.
// The fref and fcomp slices are expected to be the FFTs of the reference and comparison snippets.
// Both must have the same length N.
//
// Arguments:
// - sampleRate: Used to calculate frequency bin indices for band limiting.
// - minFreq: Minimum frequency to consider (Hz). Use 0 for no limit.
// - maxFreq: Maximum frequency to consider (Hz). Use 0 or >sampleRate/2 for no limit.
// - maxLag: The peak is searched only within [-maxLag, maxLag] samples.
//
// Returns (shift, confidence, error). A positive shift means 'comp' is later than 'ref'.
func CrossCorrelate(
	fref, fcomp []complex128,
	sampleRate float64,
	minFreq, maxFreq float64,
	maxLag int,
) (float64, float64, error) {
	if sampleRate <= 0 {
		return 0, 0, fmt.Errorf("sampleRate must be positive: got %v", sampleRate)
	}
	if len(fref) != len(fcomp) {
		return 0, 0, fmt.Errorf("fref and fcomp must have same length: %d != %d", len(fref), len(fcomp))
	}
	n := len(fref)

	binMin := 0
	binMax := n / 2
	if minFreq > 0 {
		binMin = int(minFreq * float64(n) / sampleRate)
	}
	if maxFreq > 0 && maxFreq < sampleRate/2 {
		binMax = int(maxFreq * float64(n) / sampleRate)
	}

	// Only the bins with energy above -60dB of the strongest one are
	// whitened, the rest are zeroed.
	cross := make([]complex128, n)
	maxMag := 0.0
	for i := 0; i < n; i++ {
		cross[i] = fcomp[i] * cmplx.Conj(fref[i])
		maxMag = math.Max(maxMag, cmplx.Abs(cross[i]))
	}
	threshold := maxMag * 0.001

	activeBins := 0
	for i := 0; i < n; i++ {
		idx := i
		if i > n/2 {
			idx = n - i
		}
		mag := cmplx.Abs(cross[i])
		if idx < binMin || idx > binMax || mag <= threshold || mag <= 1e-12 {
			cross[i] = 0
			continue
		}
		cross[i] /= complex(mag, 0)
		activeBins++
	}
	if activeBins == 0 {
		return 0, 0, nil
	}

	timeDomain := fft.IFFT(cross)

	// index i of timeDomain corresponds to the shift i (or i-n if i > n/2)
	limit := n / 2
	if maxLag < limit {
		limit = maxLag
	}
	maxVal := -1.0
	maxIdx := 0
	for shift := -limit; shift <= limit; shift++ {
		i := (shift + n) % n
		if val := cmplx.Abs(timeDomain[i]); val > maxVal {
			maxVal = val
			maxIdx = i
		}
	}

	shift := float64(maxIdx)
	if maxIdx > n/2 {
		shift -= float64(n)
	}

	// parabolic sub-sample interpolation
	y1 := cmplx.Abs(timeDomain[(maxIdx-1+n)%n])
	y2 := maxVal
	y3 := cmplx.Abs(timeDomain[(maxIdx+1)%n])
	if denom := y1 - 2*y2 + y3; math.Abs(denom) > 1e-12 {
		shift += (y1 - y3) / (2 * denom)
	}

	// With a perfect match the peak equals activeBins/n, since the IFFT
	// divides by n.
	confidence := math.Min(maxVal*float64(n)/float64(activeBins), 1)
	return shift, confidence, nil
}
