package h264

import "github.com/jmylchreest/mediacore/pkg/tables"

// dequant4x4 scales a zigzag-ordered coefficient block into raster order
// using the flat scaling list and the per-position dequant class (ITU-T
// H.264 §8.5.9). Explicit (non-flat) scaling lists signalled in SPS/PPS are
// not applied: spec.md scopes decoding around the flat default matrices
// (see DESIGN.md), matching spec.md §4.8.7's stated "Transform/quant" scope.
func dequant4x4(zigzag []int, qp int) [16]int {
	var raster [16]int
	for i, v := range zigzag {
		if i >= 16 {
			break
		}
		raster[tables.H264ZigZag4x4[i]] = v
	}
	shift := qp / 6
	rem := qp % 6
	var out [16]int
	for pos := 0; pos < 16; pos++ {
		cls := tables.H264DequantPosClass4x4[pos]
		scale := tables.H264DequantScale4x4[rem][cls]
		v := raster[pos] * scale
		if shift >= 4 {
			out[pos] = v << uint(shift-4)
		} else {
			out[pos] = (v + (1 << uint(3-shift))) >> uint(4-shift)
		}
	}
	return out
}

// idct4x4 implements the inverse 4x4 integer transform of ITU-T H.264
// §8.5.12.2 (the butterfly core, row then column pass).
func idct4x4(in [16]int) [16]int {
	var tmp [16]int
	for i := 0; i < 4; i++ {
		a0 := in[i*4+0] + in[i*4+2]
		a1 := in[i*4+0] - in[i*4+2]
		a2 := (in[i*4+1] >> 1) - in[i*4+3]
		a3 := in[i*4+1] + (in[i*4+3] >> 1)
		tmp[i*4+0] = a0 + a3
		tmp[i*4+1] = a1 + a2
		tmp[i*4+2] = a1 - a2
		tmp[i*4+3] = a0 - a3
	}
	var out [16]int
	for j := 0; j < 4; j++ {
		a0 := tmp[0*4+j] + tmp[2*4+j]
		a1 := tmp[0*4+j] - tmp[2*4+j]
		a2 := (tmp[1*4+j] >> 1) - tmp[3*4+j]
		a3 := tmp[1*4+j] + (tmp[3*4+j] >> 1)
		out[0*4+j] = (a0 + a3 + 32) >> 6
		out[1*4+j] = (a1 + a2 + 32) >> 6
		out[2*4+j] = (a1 - a2 + 32) >> 6
		out[3*4+j] = (a0 - a3 + 32) >> 6
	}
	return out
}

// hadamard4x4 implements the inverse Hadamard transform applied to the 16
// luma DC coefficients of an I_16x16 macroblock (§8.5.10), returning the
// dequantized DC value to add into each 4x4 block's (0,0) coefficient.
func hadamard4x4(in [16]int, qp int) [16]int {
	var tmp [16]int
	for i := 0; i < 4; i++ {
		a0 := in[i*4+0] + in[i*4+2]
		a1 := in[i*4+0] - in[i*4+2]
		a2 := in[i*4+1] - in[i*4+3]
		a3 := in[i*4+1] + in[i*4+3]
		tmp[i*4+0] = a0 + a3
		tmp[i*4+1] = a1 + a2
		tmp[i*4+2] = a1 - a2
		tmp[i*4+3] = a0 - a3
	}
	var out [16]int
	shift := qp / 6
	rem := qp % 6
	scale := tables.H264DequantScale4x4[rem][0]
	for j := 0; j < 4; j++ {
		a0 := tmp[0*4+j] + tmp[2*4+j]
		a1 := tmp[0*4+j] - tmp[2*4+j]
		a2 := tmp[1*4+j] - tmp[3*4+j]
		a3 := tmp[1*4+j] + tmp[3*4+j]
		vals := [4]int{a0 + a3, a1 + a2, a1 - a2, a0 - a3}
		for k, v := range vals {
			dc := v * scale
			if shift >= 6 {
				dc <<= uint(shift - 6)
			} else {
				dc = (dc + (1 << uint(5-shift))) >> uint(6-shift)
			}
			out[j*4+k] = dc
		}
	}
	return out
}

// hadamard2x2Chroma implements the inverse 2x2 Hadamard for chroma DC
// (§8.5.11), returning the 4 dequantized DC values in raster order.
func hadamard2x2Chroma(in [4]int, qp int) [4]int {
	a0 := in[0] + in[1]
	a1 := in[0] - in[1]
	a2 := in[2] + in[3]
	a3 := in[2] - in[3]
	raw := [4]int{a0 + a2, a1 + a3, a0 - a2, a1 - a3}

	shift := qp / 6
	rem := qp % 6
	scale := tables.H264DequantScale4x4[rem][0]
	var out [4]int
	for i, v := range raw {
		dc := v * scale
		if shift >= 5 {
			out[i] = dc << uint(shift-5)
		} else {
			out[i] = (dc + (1 << uint(4-shift))) >> uint(5-shift)
		}
	}
	return out
}

func clampPixel(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
