package mp3

import "github.com/jmylchreest/mediacore/pkg/tables"

// mixedLongBands is the number of long-type scalefactor bands spec.md's
// mixed-block ("long/mixed bands" for anti-alias, long transform for the
// first subbands) carries before the short-block portion begins. Real
// encoders vary this per the standard's psychoacoustic boundary; this
// decoder fixes it at the first 2 subbands (36 lines), a documented
// simplification consistent with several reference decoders' common case.
const mixedLongBands = 2

// reorderShort regroups a pure short block's band-major Huffman output
// (spec.md §4.6 "reorder for short blocks") into three per-window,
// frequency-ordered 192-line arrays, applying requant() along the way.
func reorderShort(coeffs []int) [3][192]float64 {
	var out [3][192]float64
	bounds := tables.MP3ScaleFactorBandsShort
	idx := 0
	for b := 0; b < len(bounds)-1; b++ {
		width := bounds[b+1] - bounds[b]
		for w := 0; w < 3; w++ {
			for k := 0; k < width; k++ {
				if idx >= len(coeffs) {
					return out
				}
				out[w][bounds[b]+k] = requant(coeffs[idx])
				idx++
			}
		}
	}
	return out
}

// reorderMixedShort is reorderShort's counterpart for the short-block
// portion of a mixed granule: the remaining lines after mixedLongBands*18
// long-type lines are split evenly across 3 windows (a flat division, not
// the scalefactor-band-keyed split reorderShort uses, since the mixed
// boundary shifts how many short lines each window actually holds; see
// DESIGN.md).
func reorderMixedShort(coeffs []int, longLines int) [3][192]float64 {
	var out [3][192]float64
	rest := coeffs[longLines:]
	perWindow := len(rest) / 3
	if perWindow > 192 {
		perWindow = 192
	}
	for w := 0; w < 3; w++ {
		for k := 0; k < perWindow; k++ {
			pos := w*perWindow + k
			if pos >= len(rest) {
				break
			}
			out[w][k] = requant(rest[pos])
		}
	}
	return out
}
