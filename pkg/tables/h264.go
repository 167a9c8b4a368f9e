package tables

// H264ZigZag4x4 is the 4x4 zig-zag scan order (ITU-T H.264 Table 8-13,
// frame scan).
var H264ZigZag4x4 = [16]int{0, 1, 4, 8, 5, 2, 3, 6, 9, 12, 13, 10, 7, 11, 14, 15}

// H264FieldScan4x4 is the 4x4 alternative (field picture) scan order.
var H264FieldScan4x4 = [16]int{0, 4, 1, 8, 12, 5, 9, 13, 2, 6, 10, 14, 3, 7, 11, 15}

// H264ZigZag8x8 is the 8x8 zig-zag scan order.
var H264ZigZag8x8 = [64]int{
	0, 1, 8, 16, 9, 2, 3, 10,
	17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34,
	27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36,
	29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46,
	53, 60, 61, 54, 47, 55, 62, 63,
}

// H264FlatScalingList4x4/8x8 are Flat_4x4_16 and Flat_8x8_16, used when no
// explicit list is signalled in SPS/PPS (spec.md §4.8.7 "Transform/quant").
var H264FlatScalingList4x4 = [16]int{16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16}
var H264FlatScalingList8x8 = func() [64]int {
	var l [64]int
	for i := range l {
		l[i] = 16
	}
	return l
}()

// H264DequantScale4x4 is the per-(qp%6, coefficient-position-class) dequant
// multiplier table (ITU-T H.264 Table, §8.5.9 "LevelScale4x4"). Position
// classes: 0 = (0,0)/(0,2)/(2,0)/(2,2), 1 = (1,1)/(1,3)/(3,1)/(3,3),
// 2 = everything else.
var H264DequantScale4x4 = [6][3]int{
	{10, 16, 13},
	{11, 18, 14},
	{13, 20, 16},
	{14, 23, 18},
	{16, 25, 20},
	{18, 29, 23},
}

// H264DequantPosClass4x4 maps a raster 4x4 position (0..15) to its dequant
// class (0,1,2 per H264DequantScale4x4).
var H264DequantPosClass4x4 = [16]int{
	0, 2, 0, 2,
	2, 1, 2, 1,
	0, 2, 0, 2,
	2, 1, 2, 1,
}

// H264ChromaQPMap maps luma-derived QPi (clamped 0..51) to chroma QP for
// QPi in [30,51]; below 30 chroma QP == QPi (ITU-T H.264 Table 8-15).
var H264ChromaQPMap = map[int]int{
	30: 29, 31: 30, 32: 31, 33: 32, 34: 32, 35: 33, 36: 34, 37: 34,
	38: 35, 39: 35, 40: 36, 41: 36, 42: 37, 43: 37, 44: 37, 45: 38,
	46: 38, 47: 38, 48: 39, 49: 39, 50: 39, 51: 39,
}

// H264ChromaQP derives chroma QP from luma QPi and a PPS/SPS
// chroma_qp_index_offset, per ITU-T H.264 §8.5.8.
func H264ChromaQP(qpY, offset int) int {
	qpi := qpY + offset
	if qpi < 0 {
		qpi = 0
	}
	if qpi > 51 {
		qpi = 51
	}
	if v, ok := H264ChromaQPMap[qpi]; ok {
		return v
	}
	return qpi
}

// H264QPelLumaFilter is the 6-tap half-pel interpolation filter
// (1,-5,20,20,-5,1)/32 (spec.md §4.8.7).
var H264QPelLumaFilter = [6]int{1, -5, 20, 20, -5, 1}

// H264MaxDPBFramesByLevel approximates Table A-1's MaxDpbMbs-derived
// max_dec_frame_buffering for the common levels, used to clamp
// max_reference_frames (spec.md §4.8.1).
var H264MaxDPBFramesByLevel = map[int]int{
	10: 4, 11: 4, 12: 6, 13: 6, 20: 6, 21: 6, 22: 6,
	30: 6, 31: 8, 32: 8, 40: 8, 41: 8, 42: 8, 50: 8, 51: 8,
}
