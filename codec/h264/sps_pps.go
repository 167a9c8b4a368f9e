// Package h264 implements the H.264 decoder (spec.md §4.8, "the largest
// subsystem"): parameter-set activation, slice header parsing, POC
// computation, reference-list construction against pkg/dpb, CABAC/CAVLC
// entropy engines, and a macroblock pipeline.
package h264

import (
	"github.com/jmylchreest/mediacore/pkg/bitio"
	"github.com/jmylchreest/mediacore/pkg/mediaerr"
)

// SPS is the subset of sequence_parameter_set fields the decoder needs
// (spec.md §4.8.1).
type SPS struct {
	ID                      int
	ProfileIdc              int
	ChromaFormatIdc         int
	BitDepthLuma            int
	BitDepthChroma          int
	Log2MaxFrameNum         int
	PicOrderCntType         int
	Log2MaxPocLsb           int
	DeltaPicOrderAlwaysZero bool
	OffsetForNonRefPic      int
	OffsetForTopToBottom    int
	OffsetForRefFrame       []int
	MaxNumRefFrames         int
	GapsInFrameNumAllowed   bool
	PicWidthInMbs           int
	PicHeightInMapUnits     int
	FrameMbsOnly            bool
	CropLeft, CropRight     int
	CropTop, CropBottom     int
	LevelIdc                int
}

// PPS is the subset of picture_parameter_set fields the decoder needs.
type PPS struct {
	ID                      int
	SPSID                   int
	EntropyCodingModeCABAC  bool
	BottomFieldPicOrderVlc  bool
	NumSliceGroups          int
	NumRefIdxL0DefaultActive int
	NumRefIdxL1DefaultActive int
	WeightedPred            bool
	WeightedBipredIdc       int
	PicInitQP               int
	ChromaQPIndexOffset     int
	DeblockingFilterControl bool
	ConstrainedIntraPred    bool
	RedundantPicCntPresent  bool
	Transform8x8Mode        bool
	SecondChromaQPOffset    int
}

// ChangeClass classifies a PPS/SPS transition for slice activation (spec.md
// §4.8.1).
type ChangeClass int

const (
	ChangeNone ChangeClass = iota
	ChangeRuntimeOnly
	ChangeFull
)

func (s *SPS) Width() int  { return s.PicWidthInMbs * 16 }
func (s *SPS) Height() int { return s.PicHeightInMapUnits * 16 * frameMbsFactor(s.FrameMbsOnly) }

func frameMbsFactor(frameMbsOnly bool) int {
	if frameMbsOnly {
		return 1
	}
	return 2 // field/MBAFF coded height unit; interlaced decode itself is Unsupported
}

// ParseSPS parses a NAL-unit-escaped SPS payload (spec.md §4.8.1).
func ParseSPS(rbsp []byte) (*SPS, error) {
	r := bitio.NewReader(rbsp)
	profile, err := r.ReadBits(8)
	if err != nil {
		return nil, err
	}
	if _, err := r.ReadBits(8); err != nil { // constraint flags + reserved
		return nil, err
	}
	levelIdc, err := r.ReadBits(8)
	if err != nil {
		return nil, err
	}
	spsID, err := r.Ue()
	if err != nil {
		return nil, err
	}
	sps := &SPS{ID: int(spsID), ProfileIdc: int(profile), LevelIdc: int(levelIdc), ChromaFormatIdc: 1, BitDepthLuma: 8, BitDepthChroma: 8}

	switch profile {
	case 100, 110, 122, 244, 44, 83, 86, 118, 128, 138, 139, 134, 135:
		cf, err := r.Ue()
		if err != nil {
			return nil, err
		}
		sps.ChromaFormatIdc = int(cf)
		if cf == 3 {
			if _, err := r.ReadBit(); err != nil { // separate_colour_plane_flag
				return nil, err
			}
		}
		bdl, err := r.Ue()
		if err != nil {
			return nil, err
		}
		sps.BitDepthLuma = int(bdl) + 8
		bdc, err := r.Ue()
		if err != nil {
			return nil, err
		}
		sps.BitDepthChroma = int(bdc) + 8
		if _, err := r.ReadBit(); err != nil { // qpprime_y_zero_transform_bypass_flag
			return nil, err
		}
		scalingPresent, err := r.ReadBit()
		if err != nil {
			return nil, err
		}
		if scalingPresent == 1 {
			n := 8
			if cf == 3 {
				n = 12
			}
			if err := skipScalingLists(r, n); err != nil {
				return nil, err
			}
		}
	}

	log2MaxFrameNumMinus4, err := r.Ue()
	if err != nil {
		return nil, err
	}
	sps.Log2MaxFrameNum = int(log2MaxFrameNumMinus4) + 4

	pocType, err := r.Ue()
	if err != nil {
		return nil, err
	}
	sps.PicOrderCntType = int(pocType)
	switch sps.PicOrderCntType {
	case 0:
		lsbMinus4, err := r.Ue()
		if err != nil {
			return nil, err
		}
		sps.Log2MaxPocLsb = int(lsbMinus4) + 4
	case 1:
		dzero, err := r.ReadBit()
		if err != nil {
			return nil, err
		}
		sps.DeltaPicOrderAlwaysZero = dzero == 1
		offNonRef, err := r.Se()
		if err != nil {
			return nil, err
		}
		sps.OffsetForNonRefPic = int(offNonRef)
		offTopBot, err := r.Se()
		if err != nil {
			return nil, err
		}
		sps.OffsetForTopToBottom = int(offTopBot)
		numRefInCycle, err := r.Ue()
		if err != nil {
			return nil, err
		}
		sps.OffsetForRefFrame = make([]int, numRefInCycle)
		for i := range sps.OffsetForRefFrame {
			v, err := r.Se()
			if err != nil {
				return nil, err
			}
			sps.OffsetForRefFrame[i] = int(v)
		}
	}

	maxRef, err := r.Ue()
	if err != nil {
		return nil, err
	}
	sps.MaxNumRefFrames = int(maxRef)
	gaps, err := r.ReadBit()
	if err != nil {
		return nil, err
	}
	sps.GapsInFrameNumAllowed = gaps == 1

	widthMbs, err := r.Ue()
	if err != nil {
		return nil, err
	}
	sps.PicWidthInMbs = int(widthMbs) + 1
	heightMapUnits, err := r.Ue()
	if err != nil {
		return nil, err
	}
	sps.PicHeightInMapUnits = int(heightMapUnits) + 1

	frameMbsOnly, err := r.ReadBit()
	if err != nil {
		return nil, err
	}
	sps.FrameMbsOnly = frameMbsOnly == 1
	if !sps.FrameMbsOnly {
		if _, err := r.ReadBit(); err != nil { // mb_adaptive_frame_field_flag
			return nil, err
		}
	}
	if _, err := r.ReadBit(); err != nil { // direct_8x8_inference_flag
		return nil, err
	}
	cropPresent, err := r.ReadBit()
	if err != nil {
		return nil, err
	}
	if cropPresent == 1 {
		l, _ := r.Ue()
		rr, _ := r.Ue()
		t, _ := r.Ue()
		b, _ := r.Ue()
		sps.CropLeft, sps.CropRight, sps.CropTop, sps.CropBottom = int(l), int(rr), int(t), int(b)
	}
	// vui_parameters, if present, are not needed beyond this point.

	if err := validateSPS(sps); err != nil {
		return nil, err
	}
	return sps, nil
}

func skipScalingLists(r *bitio.Reader, n int) error {
	for i := 0; i < n; i++ {
		present, err := r.ReadBit()
		if err != nil {
			return err
		}
		if present == 0 {
			continue
		}
		size := 16
		if i >= 6 {
			size = 64
		}
		lastScale, nextScale := 8, 8
		for j := 0; j < size; j++ {
			if nextScale != 0 {
				deltaScale, err := r.Se()
				if err != nil {
					return err
				}
				nextScale = (lastScale + int(deltaScale) + 256) % 256
			}
			if nextScale != 0 {
				lastScale = nextScale
			}
		}
	}
	return nil
}

// validateSPS rejects unsupported profiles per spec.md §4.8.1 "reject
// non-4:2:0, interlaced, >=10-bit".
func validateSPS(s *SPS) error {
	if s.ChromaFormatIdc != 1 {
		return mediaerr.Unsupported("h264: chroma_format_idc %d unsupported (only 4:2:0)", s.ChromaFormatIdc)
	}
	if s.BitDepthLuma > 8 || s.BitDepthChroma > 8 {
		return mediaerr.Unsupported("h264: bit depth >8 unsupported")
	}
	if !s.FrameMbsOnly {
		return mediaerr.Unsupported("h264: interlaced/field coding unsupported")
	}
	return nil
}

// ParsePPS parses a PPS payload on its own, without an SPS lookup.
// SecondChromaQPOffset is set equal to ChromaQPIndexOffset.
func ParsePPS(rbsp []byte) (*PPS, error) {
	r := bitio.NewReader(rbsp)
	ppsID, err := r.Ue()
	if err != nil {
		return nil, err
	}
	spsID, err := r.Ue()
	if err != nil {
		return nil, err
	}
	pps := &PPS{ID: int(ppsID), SPSID: int(spsID)}
	entropy, err := r.ReadBit()
	if err != nil {
		return nil, err
	}
	pps.EntropyCodingModeCABAC = entropy == 1
	bottomVlc, err := r.ReadBit()
	if err != nil {
		return nil, err
	}
	pps.BottomFieldPicOrderVlc = bottomVlc == 1
	numGroups, err := r.Ue()
	if err != nil {
		return nil, err
	}
	pps.NumSliceGroups = int(numGroups) + 1
	if pps.NumSliceGroups > 1 {
		return nil, mediaerr.Unsupported("h264: slice groups (FMO) unsupported")
	}
	n0, err := r.Ue()
	if err != nil {
		return nil, err
	}
	pps.NumRefIdxL0DefaultActive = int(n0) + 1
	n1, err := r.Ue()
	if err != nil {
		return nil, err
	}
	pps.NumRefIdxL1DefaultActive = int(n1) + 1
	wp, err := r.ReadBit()
	if err != nil {
		return nil, err
	}
	pps.WeightedPred = wp == 1
	wbi, err := r.ReadBits(2)
	if err != nil {
		return nil, err
	}
	pps.WeightedBipredIdc = int(wbi)
	qp, err := r.Se()
	if err != nil {
		return nil, err
	}
	pps.PicInitQP = int(qp) + 26
	if _, err := r.Se(); err != nil { // pic_init_qs_minus26
		return nil, err
	}
	cqpo, err := r.Se()
	if err != nil {
		return nil, err
	}
	pps.ChromaQPIndexOffset = int(cqpo)
	pps.SecondChromaQPOffset = pps.ChromaQPIndexOffset
	dfc, err := r.ReadBit()
	if err != nil {
		return nil, err
	}
	pps.DeblockingFilterControl = dfc == 1
	cip, err := r.ReadBit()
	if err != nil {
		return nil, err
	}
	pps.ConstrainedIntraPred = cip == 1
	rpc, err := r.ReadBit()
	if err != nil {
		return nil, err
	}
	pps.RedundantPicCntPresent = rpc == 1
	// more_rbsp_data(): only transform_8x8_mode_flag is read, and only when
	// at least 8 bits remain; pic_scaling_matrix and
	// second_chroma_qp_index_offset are not parsed.
	if r.BitsLeft() >= 8 {
		t8, err := r.ReadBit()
		if err == nil && t8 == 1 {
			pps.Transform8x8Mode = true
		}
	}
	return pps, nil
}

// Classify compares old and new PPS (and their bound SPS) per spec.md
// §4.8.1's three-way classification.
func Classify(oldPPS, newPPS *PPS, oldSPS, newSPS *SPS) ChangeClass {
	if oldPPS == nil {
		return ChangeFull
	}
	if oldPPS.EntropyCodingModeCABAC != newPPS.EntropyCodingModeCABAC {
		return ChangeFull
	}
	if oldSPS == nil || newSPS == nil || !sameSPSShape(oldSPS, newSPS) {
		return ChangeFull
	}
	if *oldPPS == *newPPS {
		return ChangeNone
	}
	return ChangeRuntimeOnly
}

func sameSPSShape(a, b *SPS) bool {
	return a.ChromaFormatIdc == b.ChromaFormatIdc &&
		a.BitDepthLuma == b.BitDepthLuma &&
		a.PicWidthInMbs == b.PicWidthInMbs &&
		a.PicHeightInMapUnits == b.PicHeightInMapUnits &&
		a.FrameMbsOnly == b.FrameMbsOnly
}
