package interpolation

type linear struct{}

// NewLinear returns an Interpolator drawing a straight line between the
// samples surrounding the gap. Without a neighbour on either side it
// fills the gap with silence.
func NewLinear() Interpolator {
	return linear{}
}

func (linear) Interpolate(before, after []float32, gapLen int) []float32 {
	result := make([]float32, gapLen)
	if len(before) == 0 || len(after) == 0 {
		return result
	}
	v0 := float64(before[len(before)-1])
	v1 := float64(after[0])
	for i := range gapLen {
		t := float64(i+1) / float64(gapLen+1)
		result[i] = float32((1-t)*v0 + t*v1)
	}
	return result
}
