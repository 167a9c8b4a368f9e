package mp3

import (
	"math"

	"github.com/jmylchreest/mediacore/pkg/tables"
)

// bandIndex returns the scalefactor band covering line i, given band
// boundaries bounds (bounds[0]==0, bounds[last]==len covered).
func bandIndex(bounds []int, i int) int {
	for b := 0; b < len(bounds)-1; b++ {
		if i < bounds[b+1] {
			return b
		}
	}
	return len(bounds) - 2
}

// dequantizeLong applies spec.md §4.6's "inverse quantisation with
// global_gain / subblock_gain" for a granule whose 576 lines are all
// long-type (or the long-type prefix of a mixed block, up to longLines).
func dequantizeLong(coeffs [576]int, gi *granuleInfo, sf *scalefactors, longLines int) []float64 {
	out := make([]float64, longLines)
	mult := 1.0
	if gi.scalefacScale {
		mult = 2.0
	}
	base := math.Pow(2, 0.25*float64(gi.globalGain-210))
	bounds := tables.MP3ScaleFactorBandsLong
	for i := 0; i < longLines; i++ {
		band := bandIndex(bounds, i)
		factor := base * math.Pow(2, -mult*float64(sf.long[band]))
		out[i] = requant(coeffs[i]) * factor
	}
	return out
}

// dequantizeShortWindow dequantises one window's 192 reordered lines of a
// short block (spec.md §4.6 "inverse quantisation ... subblock_gain").
func dequantizeShortWindow(reordered [192]float64, gi *granuleInfo, sf *scalefactors, win int) [192]float64 {
	var out [192]float64
	mult := 1.0
	if gi.scalefacScale {
		mult = 2.0
	}
	base := math.Pow(2, 0.25*float64(gi.globalGain-210-8*gi.subblockGain[win]))
	bounds := tables.MP3ScaleFactorBandsShort
	for i := 0; i < 192; i++ {
		band := bandIndex(bounds, i)
		factor := base * math.Pow(2, -mult*float64(sf.short[win][band]))
		out[i] = reordered[i] * factor
	}
	return out
}

// requant applies is^(4/3) with sign preserved (reordered[] already carries
// the raw Huffman-decoded sign via its integer value).
func requant(v int) float64 {
	if v == 0 {
		return 0
	}
	sign := 1.0
	if v < 0 {
		sign = -1.0
		v = -v
	}
	return sign * math.Pow(float64(v), 4.0/3.0)
}
