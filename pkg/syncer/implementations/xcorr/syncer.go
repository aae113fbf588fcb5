// Package xcorr estimates the delay between two envelopes with a plain
// lagged cross-correlation.
package xcorr

import (
	"context"
	"math"

	"github.com/xaionaro-go/lyricsync/pkg/syncer"
)

// checkCtxEvery is how many lags are computed between checks of the context.
const checkCtxEvery = 64

type Syncer struct{}

var _ syncer.Syncer = (*Syncer)(nil)

func NewSyncer() *Syncer {
	return &Syncer{}
}

// CalculateShiftBetween scores every lag from -maxLag up to maxLag by the
// mean of reference[i]*comparison[i+lag] over the indexes where both
// exist, skipping lags without any overlap. The first lag with the
// highest score wins.
func (s *Syncer) CalculateShiftBetween(
	ctx context.Context,
	reference []float64,
	comparison []float64,
	maxLag int,
) (syncer.ShiftResult, error) {
	if maxLag < 0 {
		return syncer.ShiftResult{}, syncer.ErrNegativeMaxLag
	}

	n := min(len(reference), len(comparison))
	bestLag := 0
	bestCorr := math.Inf(-1)
	for lag := -maxLag; lag <= maxLag; lag++ {
		if (lag+maxLag)%checkCtxEvery == 0 {
			if err := ctx.Err(); err != nil {
				return syncer.ShiftResult{}, err
			}
		}

		// indexes i in [0, n) with 0 <= i+lag < len(comparison)
		from := max(0, -lag)
		to := min(n, len(comparison)-lag)
		if to <= from {
			continue
		}

		var sum float64
		for i := from; i < to; i++ {
			sum += reference[i] * comparison[i+lag]
		}
		corr := sum / float64(to-from)
		if corr > bestCorr {
			bestCorr = corr
			bestLag = lag
		}
	}

	if math.IsInf(bestCorr, -1) {
		return syncer.ShiftResult{}, syncer.ErrNoOverlap
	}
	return syncer.ShiftResult{
		Lag:           bestLag,
		FractionalLag: float64(bestLag),
		Correlation:   bestCorr,
	}, nil
}
