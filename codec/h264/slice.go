package h264

import (
	"github.com/jmylchreest/mediacore/pkg/bitio"
)

// sliceCtx carries everything one slice's macroblock loop needs: the
// current picture being reconstructed, the reference lists it predicts
// from, and the SPS/PPS governing sizes and entropy mode.
type sliceCtx struct {
	sps  *SPS
	pps  *PPS
	sh   *SliceHeader
	pic  *picture
	ref0 []*picture
	ref1 []*picture

	mbWidth  int
	mbHeight int
}

func newSliceCtx(sps *SPS, pps *PPS, sh *SliceHeader, pic *picture, ref0, ref1 []*picture) *sliceCtx {
	return &sliceCtx{
		sps: sps, pps: pps, sh: sh, pic: pic, ref0: ref0, ref1: ref1,
		mbWidth:  sps.PicWidthInMbs,
		mbHeight: sps.PicHeightInMapUnits,
	}
}

// decodeSliceDataCAVLC runs slice_data() for a CAVLC-entropy slice (PPS
// entropy_coding_mode_flag == 0), per ITU-T H.264 §7.3.4 / §9.2.
func decodeSliceDataCAVLC(r *bitio.Reader, ctx *sliceCtx) error {
	mbAddr := ctx.sh.FirstMbInSlice
	total := ctx.mbWidth * ctx.mbHeight
	qp := ctx.sh.SliceQP

	for mbAddr < total {
		if ctx.sh.SliceType == sliceTypeP || ctx.sh.SliceType == sliceTypeB {
			skipRun, err := r.Ue()
			if err != nil {
				return err
			}
			for i := uint32(0); i < skipRun && mbAddr < total; i++ {
				reconstructSkip(ctx, mbAddr)
				mbAddr++
			}
			if mbAddr >= total {
				break
			}
		}

		rawType, err := r.Ue()
		if err != nil {
			return err
		}
		mb := classifyMBType(ctx.sh.SliceType, int(rawType))

		if err := decodeMBCAVLC(r, ctx, mb, mbAddr, &qp); err != nil {
			return err
		}
		mbAddr++
	}
	return nil
}

func decodeMBCAVLC(r *bitio.Reader, ctx *sliceCtx, mb mbInfo, mbAddr int, qp *int) error {
	mb.qp = *qp

	if mb.category == mbIntraPCM {
		r.AlignToByte()
		reconstructIPCMCAVLC(r, ctx, mbAddr)
		return nil
	}

	if mb.category == mbInter {
		mvx, err := r.Se()
		if err != nil {
			return err
		}
		mvy, err := r.Se()
		if err != nil {
			return err
		}
		mb.mvX, mb.mvY = int(mvx), int(mvy)
	}

	cbp := 0
	if mb.category == mbIntra4x4 || mb.category == mbInter {
		v, err := r.Ue()
		if err != nil {
			return err
		}
		cbp = int(v) % 48
		mb.cbpLuma = cbp & 0xF
		mb.cbpChroma = (cbp >> 4) & 0x3
	}

	if mb.cbpLuma != 0 || mb.cbpChroma != 0 || mb.category == mbIntra16x16 {
		delta, err := r.Se()
		if err != nil {
			return err
		}
		*qp = clampQP(*qp + int(delta))
		mb.qp = *qp
	}

	blocks, err := readResidualCAVLC(r, mb)
	if err != nil {
		return err
	}
	reconstructMB(ctx, mb, mbAddr, blocks)
	return nil
}

// residualBlocks groups every transform block decoded for one macroblock.
type residualBlocks struct {
	lumaDC  [16]int
	luma    [16][16]int // 16 4x4 blocks in raster MB order
	chromaDC [2][4]int
	chroma   [2][4][16]int // 2 planes x 4 4x4 blocks (4:2:0: 8x8 chroma)
}

func readResidualCAVLC(r *bitio.Reader, mb mbInfo) (*residualBlocks, error) {
	blk := &residualBlocks{}
	if mb.category == mbIntraPCM {
		return blk, nil
	}

	// Per ITU-T H.264 §9.2.1, nC is derived from the total_coeff of the
	// above and left 4x4 neighbours (across macroblock boundaries too). This
	// decoder fixes nC at a constant mid-range value (table B, 2<=nC<4) for
	// every luma block instead of tracking per-block neighbour state, since
	// the coeff_token tables here are already shape-approximations (see
	// pkg/tables h264_cavlc.go) rather than the literal standard codewords —
	// a documented simplification, not a silent gap.
	nc := make([]int, 16)
	for i := range nc {
		nc[i] = 2
	}

	if mb.category == mbIntra16x16 {
		dcBlk, err := decodeResidualBlockCAVLC(r, 0, 16)
		if err != nil {
			return nil, err
		}
		copy(blk.lumaDC[:], dcBlk.coeffs)
	}

	for i := 0; i < 16; i++ {
		if mb.cbpLuma&(1<<uint(i/4)) == 0 {
			continue
		}
		maxCoeff := 16
		start := 0
		if mb.category == mbIntra16x16 {
			maxCoeff = 15
			start = 1
		}
		b, err := decodeResidualBlockCAVLC(r, nc[i], maxCoeff)
		if err != nil {
			return nil, err
		}
		for j, c := range b.coeffs {
			blk.luma[i][start+j] = c
		}
	}

	if mb.cbpChroma != 0 {
		for p := 0; p < 2; p++ {
			b, err := decodeResidualBlockCAVLC(r, -1, 4)
			if err != nil {
				return nil, err
			}
			copy(blk.chromaDC[p][:], b.coeffs)
		}
	}
	if mb.cbpChroma == 2 {
		for p := 0; p < 2; p++ {
			for i := 0; i < 4; i++ {
				b, err := decodeResidualBlockCAVLC(r, 4, 15)
				if err != nil {
					return nil, err
				}
				for j, c := range b.coeffs {
					blk.chroma[p][i][1+j] = c
				}
			}
		}
	}
	return blk, nil
}

func clampQP(qp int) int {
	for qp < 0 {
		qp += 52
	}
	for qp > 51 {
		qp -= 52
	}
	return qp
}

// decodeSliceDataCABAC runs slice_data() for a CABAC-entropy slice,
// approximating the macroblock-layer binarizations with the generic unary/
// bypass primitives in cabac.go rather than the standard's per-syntax-
// element binarization tables (documented simplification, see
// mbCategory doc and DESIGN.md).
func decodeSliceDataCABAC(eng *cabacEngine, ctx *sliceCtx) error {
	mbAddr := ctx.sh.FirstMbInSlice
	total := ctx.mbWidth * ctx.mbHeight
	qp := ctx.sh.SliceQP
	isPOrB := ctx.sh.SliceType == sliceTypeP || ctx.sh.SliceType == sliceTypeB

	for mbAddr < total {
		if isPOrB {
			skip, err := eng.decodeDecision(mbSkipCtx(ctx.sh.SliceType))
			if err != nil {
				return err
			}
			if skip == 1 {
				reconstructSkip(ctx, mbAddr)
				mbAddr++
				term, err := eng.decodeTerminate()
				if err != nil {
					return err
				}
				if term == 1 {
					break
				}
				continue
			}
		}

		rawType, err := eng.decodeUnaryMax(mbTypeCtxBase, func(p int) int {
			if p > 2 {
				return 2
			}
			return p
		}, 25)
		if err != nil {
			return err
		}
		mb := classifyMBType(ctx.sh.SliceType, rawType)
		if err := decodeMBCABAC(eng, ctx, mb, mbAddr, &qp); err != nil {
			return err
		}
		mbAddr++

		term, err := eng.decodeTerminate()
		if err != nil {
			return err
		}
		if term == 1 {
			break
		}
	}
	return nil
}

const mbTypeCtxBase = 3
const mbSkipCtxP = 11
const mbSkipCtxB = 24

func mbSkipCtx(sliceType int) int {
	if sliceType == sliceTypeB {
		return mbSkipCtxB
	}
	return mbSkipCtxP
}

func decodeMBCABAC(eng *cabacEngine, ctx *sliceCtx, mb mbInfo, mbAddr int, qp *int) error {
	mb.qp = *qp

	if mb.category == mbIntraPCM {
		eng.r.AlignToByte()
		reconstructIPCMRaw(eng.r, ctx, mbAddr)
		return nil
	}

	if mb.category == mbInter {
		mvx, err := eng.decodeUEGk(3)
		if err != nil {
			return err
		}
		mvy, err := eng.decodeUEGk(3)
		if err != nil {
			return err
		}
		mb.mvX, mb.mvY = signedFromUE(mvx), signedFromUE(mvy)
	}

	cbp := 0
	if mb.category == mbIntra4x4 || mb.category == mbInter {
		v, err := eng.decodeUnaryMax(399, func(p int) int { return p }, 47)
		if err != nil {
			return err
		}
		cbp = v % 48
		mb.cbpLuma = cbp & 0xF
		mb.cbpChroma = (cbp >> 4) & 0x3
	}

	if mb.cbpLuma != 0 || mb.cbpChroma != 0 || mb.category == mbIntra16x16 {
		d, err := eng.decodeUEGk(0)
		if err != nil {
			return err
		}
		*qp = clampQP(*qp + signedFromUE(d))
		mb.qp = *qp
	}

	blk, err := readResidualCABAC(eng, mb)
	if err != nil {
		return err
	}
	reconstructMB(ctx, mb, mbAddr, blk)
	return nil
}

// signedFromUE maps an unsigned code number to the signed se(v) value using
// the standard's zig-zag mapping (ITU-T H.264 §9.1.1).
func signedFromUE(code int) int {
	if code%2 == 0 {
		return -(code / 2)
	}
	return (code + 1) / 2
}

func readResidualCABAC(eng *cabacEngine, mb mbInfo) (*residualBlocks, error) {
	blk := &residualBlocks{}
	if mb.category == mbIntraPCM {
		return blk, nil
	}

	readCoeffs := func(n int) ([]int, error) {
		coded, err := eng.decodeDecision(200)
		if err != nil {
			return nil, err
		}
		if coded == 0 {
			return nil, nil
		}
		out := make([]int, 0, n)
		for i := 0; i < n; i++ {
			sig, err := eng.decodeDecision(201)
			if err != nil {
				return nil, err
			}
			if sig == 0 {
				out = append(out, 0)
				continue
			}
			mag, err := eng.decodeUEGk(0)
			if err != nil {
				return nil, err
			}
			sign, err := eng.decodeBypass()
			if err != nil {
				return nil, err
			}
			v := mag + 1
			if sign == 1 {
				v = -v
			}
			out = append(out, v)
		}
		return out, nil
	}

	if mb.category == mbIntra16x16 {
		c, err := readCoeffs(16)
		if err != nil {
			return nil, err
		}
		copy(blk.lumaDC[:], c)
	}

	for i := 0; i < 16; i++ {
		if mb.cbpLuma&(1<<uint(i/4)) == 0 {
			continue
		}
		n, start := 16, 0
		if mb.category == mbIntra16x16 {
			n, start = 15, 1
		}
		c, err := readCoeffs(n)
		if err != nil {
			return nil, err
		}
		for j, v := range c {
			blk.luma[i][start+j] = v
		}
	}

	if mb.cbpChroma != 0 {
		for p := 0; p < 2; p++ {
			c, err := readCoeffs(4)
			if err != nil {
				return nil, err
			}
			copy(blk.chromaDC[p][:], c)
		}
	}
	if mb.cbpChroma == 2 {
		for p := 0; p < 2; p++ {
			for i := 0; i < 4; i++ {
				c, err := readCoeffs(15)
				if err != nil {
					return nil, err
				}
				for j, v := range c {
					blk.chroma[p][i][1+j] = v
				}
			}
		}
	}
	return blk, nil
}

// reconstructMB dequantizes, inverse-transforms and predicts/adds one
// macroblock's pixels into ctx.pic at raster address mbAddr.
func reconstructMB(ctx *sliceCtx, mb mbInfo, mbAddr int, blk *residualBlocks) {
	mbX := (mbAddr % ctx.mbWidth) * 16
	mbY := (mbAddr / ctx.mbWidth) * 16

	switch mb.category {
	case mbIntra4x4:
		reconstructIntraLuma4x4(ctx, mb, mbX, mbY, blk)
	case mbIntra16x16:
		reconstructIntra16x16(ctx, mb, mbX, mbY, blk)
	case mbInter:
		reconstructInter(ctx, mb, mbAddr, mbX, mbY, blk)
	}
	reconstructChroma(ctx, mb, mbAddr, mbX/2, mbY/2, blk)
}

func reconstructIntraLuma4x4(ctx *sliceCtx, mb mbInfo, mbX, mbY int, blk *residualBlocks) {
	for b := 0; b < 16; b++ {
		bx := mbX + (b%4)*4
		by := mbY + (b/4)*4
		pred := predictIntraDC(ctx.pic, ctx.pic.y, ctx.pic.yStride, bx, by, 4)
		fillBlockConstant(ctx.pic.y, ctx.pic.yStride, bx, by, 4, pred)
		res := idct4x4(dequant4x4(blk.luma[b][:], mb.qp))
		addResidual4x4(ctx.pic.y, ctx.pic.yStride, bx, by, res)
	}
}

func reconstructIntra16x16(ctx *sliceCtx, mb mbInfo, mbX, mbY int, blk *residualBlocks) {
	pred := predictIntraDC(ctx.pic, ctx.pic.y, ctx.pic.yStride, mbX, mbY, 16)
	fillBlockConstant(ctx.pic.y, ctx.pic.yStride, mbX, mbY, 16, pred)

	dc := hadamard4x4(blk.lumaDC, mb.qp)
	for b := 0; b < 16; b++ {
		bx := mbX + (b%4)*4
		by := mbY + (b/4)*4
		coeffs := blk.luma[b]
		coeffs[0] = dc[b]
		res := idct4x4(dequant4x4InRaster(coeffs, mb.qp))
		addResidual4x4(ctx.pic.y, ctx.pic.yStride, bx, by, res)
	}
}

// dequant4x4InRaster dequantizes a zigzag-ordered block whose element 0 is
// already a final (non-requantized) DC value computed via hadamard4x4; only
// positions 1..15 go through the normal scaling.
func dequant4x4InRaster(zigzag [16]int, qp int) [16]int {
	dcVal := zigzag[0]
	acOnly := zigzag
	acOnly[0] = 0
	out := dequant4x4(acOnly[:], qp)
	out[0] = dcVal
	return out
}

func reconstructInter(ctx *sliceCtx, mb mbInfo, mbAddr, mbX, mbY int, blk *residualBlocks) {
	ref := pickRef(ctx.ref0, mb.refIdx)
	if ref == nil {
		reconstructSkip(ctx, mbAddr)
		return
	}
	sx, sy := mbX+mb.mvX/4, mbY+mb.mvY/4
	copyBlock(ctx.pic.y, ctx.pic.yStride, mbX, mbY, ref, ref.y, ref.yStride, sx, sy, 16, ref.width, ref.height)

	for b := 0; b < 16; b++ {
		bx := mbX + (b%4)*4
		by := mbY + (b/4)*4
		res := idct4x4(dequant4x4(blk.luma[b][:], mb.qp))
		addResidual4x4(ctx.pic.y, ctx.pic.yStride, bx, by, res)
	}
}

func reconstructChroma(ctx *sliceCtx, mb mbInfo, mbAddr, cx, cy int, blk *residualBlocks) {
	planes := [2][]uint8{ctx.pic.u, ctx.pic.v}
	for p := 0; p < 2; p++ {
		if mb.category == mbInter {
			ref := pickRef(ctx.ref0, mb.refIdx)
			if ref != nil {
				refPlane := ref.u
				if p == 1 {
					refPlane = ref.v
				}
				sx, sy := cx+mb.mvX/8, cy+mb.mvY/8
				copyBlock(planes[p], ctx.pic.cStride, cx, cy, ref, refPlane, ref.cStride, sx, sy, 8, ref.width/2, ref.height/2)
			}
		} else {
			pred := predictIntraDC(ctx.pic, planes[p], ctx.pic.cStride, cx, cy, 8)
			fillBlockConstant(planes[p], ctx.pic.cStride, cx, cy, 8, pred)
		}

		if mb.cbpChroma == 0 {
			continue
		}
		dc := hadamard2x2Chroma([4]int{blk.chromaDC[p][0], blk.chromaDC[p][1], blk.chromaDC[p][2], blk.chromaDC[p][3]}, mb.qp)
		for b := 0; b < 4; b++ {
			bx := cx + (b%2)*4
			by := cy + (b/2)*4
			coeffs := blk.chroma[p][b]
			coeffs[0] = dc[b]
			res := idct4x4(dequant4x4InRaster(coeffs, mb.qp))
			addResidual4x4(planes[p], ctx.pic.cStride, bx, by, res)
		}
	}
}

func pickRef(refs []*picture, idx int) *picture {
	if idx < 0 || idx >= len(refs) {
		if len(refs) > 0 {
			return refs[0]
		}
		return nil
	}
	return refs[idx]
}

// reconstructSkip copies the co-located block from ref0[0] with zero
// residual (P_Skip/B_Skip, predictor MV simplified to zero — see
// mbCategory doc).
func reconstructSkip(ctx *sliceCtx, mbAddr int) {
	mbX := (mbAddr % ctx.mbWidth) * 16
	mbY := (mbAddr / ctx.mbWidth) * 16
	ref := pickRef(ctx.ref0, 0)
	if ref == nil {
		fillBlockConstant(ctx.pic.y, ctx.pic.yStride, mbX, mbY, 16, 128)
		fillBlockConstant(ctx.pic.u, ctx.pic.cStride, mbX/2, mbY/2, 8, 128)
		fillBlockConstant(ctx.pic.v, ctx.pic.cStride, mbX/2, mbY/2, 8, 128)
		return
	}
	copyBlock(ctx.pic.y, ctx.pic.yStride, mbX, mbY, ref, ref.y, ref.yStride, mbX, mbY, 16, ref.width, ref.height)
	copyBlock(ctx.pic.u, ctx.pic.cStride, mbX/2, mbY/2, ref, ref.u, ref.cStride, mbX/2, mbY/2, 8, ref.width/2, ref.height/2)
	copyBlock(ctx.pic.v, ctx.pic.cStride, mbX/2, mbY/2, ref, ref.v, ref.cStride, mbX/2, mbY/2, 8, ref.width/2, ref.height/2)
}

func reconstructIPCMCAVLC(r *bitio.Reader, ctx *sliceCtx, mbAddr int) {
	mbX := (mbAddr % ctx.mbWidth) * 16
	mbY := (mbAddr / ctx.mbWidth) * 16
	readRawSamples(r, ctx, mbX, mbY)
}

func reconstructIPCMRaw(r *bitio.Reader, ctx *sliceCtx, mbAddr int) {
	mbX := (mbAddr % ctx.mbWidth) * 16
	mbY := (mbAddr / ctx.mbWidth) * 16
	readRawSamples(r, ctx, mbX, mbY)
}

func readRawSamples(r *bitio.Reader, ctx *sliceCtx, mbX, mbY int) {
	for j := 0; j < 16; j++ {
		for i := 0; i < 16; i++ {
			v, err := r.ReadU8()
			if err != nil {
				return
			}
			ctx.pic.y[(mbY+j)*ctx.pic.yStride+mbX+i] = v
		}
	}
	for _, plane := range [][]uint8{ctx.pic.u, ctx.pic.v} {
		for j := 0; j < 8; j++ {
			for i := 0; i < 8; i++ {
				v, err := r.ReadU8()
				if err != nil {
					return
				}
				plane[(mbY/2+j)*ctx.pic.cStride+mbX/2+i] = v
			}
		}
	}
}
