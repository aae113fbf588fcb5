// Package interpolation fills gaps in a mono sample stream.
package interpolation

// Interpolator returns gapLen samples that bridge the end of `before`
// and the beginning of `after`.
type Interpolator interface {
	Interpolate(before, after []float32, gapLen int) []float32
}
