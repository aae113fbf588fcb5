package syncer

import (
	"context"
	"errors"
	"math"
)

var (
	// ErrNoOverlap is returned when no lag in the range makes the two
	// signals overlap, e.g. when one of them is empty.
	ErrNoOverlap = errors.New("the signals do not overlap at any lag")

	ErrNegativeMaxLag = errors.New("the maximal lag must not be negative")
)

type ShiftResult struct {
	// Lag is how many units the comparison signal is behind the reference
	// signal; negative if it is ahead.
	Lag int

	// FractionalLag is Lag with a sub-unit precision if the implementation
	// provides it, otherwise it equals Lag.
	FractionalLag float64

	// Correlation is the score of the chosen lag; higher is better.
	Correlation float64
}

type Syncer interface {
	// CalculateShiftBetween finds the lag in [-maxLag, maxLag] by which the
	// comparison signal is delayed relative to the reference one.
	CalculateShiftBetween(
		ctx context.Context,
		reference []float64,
		comparison []float64,
		maxLag int,
	) (ShiftResult, error)
}

// MaxLagFrames converts the maximal expected delay in seconds into the
// amount of envelope frames, capped so that at least a half of the shorter
// envelope always overlaps. Scores of shorter overlaps are averaged over
// too few frames to be comparable with the ones of the central lags.
func MaxLagFrames(
	maxLagSeconds float64,
	sampleRate int,
	hopSize int,
	lenA int,
	lenB int,
) int {
	if sampleRate <= 0 || hopSize <= 0 || maxLagSeconds <= 0 {
		return 0
	}
	maxLag := int(math.Round(maxLagSeconds * float64(sampleRate) / float64(hopSize)))
	maxLag = min(maxLag, min(lenA, lenB)/2)
	return max(maxLag, 0)
}

// LagToOffsetSeconds converts a lag in envelope frames into seconds.
func LagToOffsetSeconds(lag, hopSize, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(lag) * float64(hopSize) / float64(sampleRate)
}

// RoundOffset rounds the offset to one decimal.
func RoundOffset(offset float64) float64 {
	return math.Round(offset*10) / 10
}

// ClampOffset rounds the offset to one decimal and clamps it into
// [minOffset, maxOffset].
func ClampOffset(offset, minOffset, maxOffset float64) float64 {
	offset = RoundOffset(offset)
	switch {
	case math.IsNaN(offset):
		return 0
	case offset < minOffset:
		return minOffset
	case offset > maxOffset:
		return maxOffset
	}
	return offset
}
