package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIMDCTZeroSpectrumYieldsZeroSamples(t *testing.T) {
	spec := make([]float64, 512)
	out := make([]float64, 1024)
	IMDCT(spec, out)
	for _, v := range out {
		assert.InDelta(t, 0, v, 1e-9)
	}
}

func TestSineWindowSymmetric(t *testing.T) {
	w := SineWindow(8)
	for i := 0; i < 4; i++ {
		assert.InDelta(t, w[i], w[7-i], 1e-9)
	}
}

func TestKBDWindowEndpointsNearZeroAndOneAtCenter(t *testing.T) {
	w := KBDWindow(64, 6.0)
	assert.Less(t, w[0], 0.3)
	assert.Greater(t, w[31], 0.9)
}

func TestOverlapAddFirstFrameNoAddition(t *testing.T) {
	o := NewOverlapAdd(4)
	windowed := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	out := make([]float64, 4)
	o.Apply(windowed, out)
	assert.Equal(t, []float64{1, 2, 3, 4}, out)

	out2 := make([]float64, 4)
	o.Apply(windowed, out2)
	assert.Equal(t, []float64{1 + 5, 2 + 6, 3 + 7, 4 + 8}, out2)
}

func TestOverlapAddResetRearmsFirstFrame(t *testing.T) {
	o := NewOverlapAdd(2)
	windowed := []float64{1, 1, 1, 1}
	out := make([]float64, 2)
	o.Apply(windowed, out)
	o.Reset()
	o.Apply(windowed, out)
	assert.Equal(t, []float64{1, 1}, out)
}
