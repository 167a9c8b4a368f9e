package mp3

import (
	"math"

	"github.com/jmylchreest/mediacore/pkg/transform"
)

// longBlockWindow returns the 36-point window for one of the four IMDCT
// window shapes (spec.md §4.6 "IMDCT 36/12 with appropriate window shapes
// (start/stop/short handling)"). Types 0/1/3 are closed-form per ISO/IEC
// 11172-3's window-shape formulas; type 2 (short) is handled separately by
// threeShortWindows since it is three 12-point windows, not one 36-point
// shape.
func longBlockWindow(blockType int) [36]float64 {
	var w [36]float64
	switch blockType {
	case blockStart:
		for i := 0; i < 18; i++ {
			w[i] = math.Sin(math.Pi / 36 * (float64(i) + 0.5))
		}
		for i := 18; i < 24; i++ {
			w[i] = 1.0
		}
		for i := 24; i < 30; i++ {
			w[i] = math.Sin(math.Pi / 12 * (float64(i-18) + 0.5))
		}
		// w[30..35] left at 0.
	case blockStop:
		for i := 6; i < 12; i++ {
			w[i] = math.Sin(math.Pi / 12 * (float64(i-6) + 0.5))
		}
		for i := 12; i < 18; i++ {
			w[i] = 1.0
		}
		for i := 18; i < 36; i++ {
			w[i] = math.Sin(math.Pi / 36 * (float64(i) + 0.5))
		}
	default: // blockNormal and the long portion of mixed blocks
		sw := transform.SineWindow(36)
		copy(w[:], sw)
	}
	return w
}

// shortWindow12 is the 12-point sine window applied to each of a short
// block's three IMDCT-12 outputs before they are staggered and summed.
var shortWindow12 = transform.SineWindow(12)

// threeShortWindows runs IMDCT-12 on each of three 6-line windows and sums
// them, staggered by 6 samples, into a 36-sample composite buffer shaped
// like a long block's hybrid output (spec.md §4.6 "IMDCT ... short
// handling").
func threeShortWindows(lines [3][]float64) [36]float64 {
	var composite [36]float64
	for w := 0; w < 3; w++ {
		td := make([]float64, 12)
		transform.IMDCT(lines[w], td)
		for i := range td {
			td[i] *= shortWindow12[i]
		}
		off := 6 + 6*w
		for i := 0; i < 12; i++ {
			composite[off+i] += td[i]
		}
	}
	return composite
}
