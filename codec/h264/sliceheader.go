package h264

import (
	"github.com/jmylchreest/mediacore/pkg/bitio"
	"github.com/jmylchreest/mediacore/pkg/mediaerr"
)

const (
	sliceTypeP  = 0
	sliceTypeB  = 1
	sliceTypeI  = 2
	sliceTypeSP = 3
	sliceTypeSI = 4
)

// refListModOp is one ref_pic_list_modification operation (spec.md §4.8.4).
type refListModOp struct {
	op  int // 0: short subtract, 1: short add, 2: long set
	val int
}

// mmcoOp is one dec_ref_pic_marking adaptive operation (spec.md §4.8.5).
type mmcoOp struct {
	op    int
	arg1  int
	arg2  int
}

// SliceHeader is the subset of slice_header fields the decoder needs.
type SliceHeader struct {
	FirstMbInSlice int
	SliceType      int
	PPSID          int
	FrameNum       int
	IsIDR          bool
	NalRefIdc      int
	IdrPicID       int

	PicOrderCntLsb      int
	DeltaPicOrderCntBottom int
	DeltaPocs           []int // type 1: [delta0, delta1]

	NumRefIdxActiveOverride bool
	NumRefIdxL0Active       int
	NumRefIdxL1Active       int

	RefListModL0 []refListModOp
	RefListModL1 []refListModOp

	CabacInitIdc int
	SliceQPDelta int
	SliceQP      int

	DisableDeblockingFilterIdc int
	SliceAlphaC0OffsetDiv2     int
	SliceBetaOffsetDiv2        int

	NoOutputOfPriorPicsFlag bool
	LongTermReferenceFlag   bool
	AdaptiveRefPicMarking   bool
	MMCOOps                 []mmcoOp

	CabacStartByte int // byte position where entropy-coded data begins
}

// ParseSliceHeader parses slice_header() from rbsp (after the nal_unit_header
// byte has already been consumed by the caller), per spec.md §4.8.2. range
// checks from spec.md are enforced, returning mediaerr.InvalidData on
// violation.
func ParseSliceHeader(r *bitio.Reader, sps *SPS, pps *PPS, nt, refIdc int) (*SliceHeader, error) {
	sh := &SliceHeader{IsIDR: nt == nalTypeIDR, NalRefIdc: refIdc}

	firstMb, err := r.Ue()
	if err != nil {
		return nil, err
	}
	sh.FirstMbInSlice = int(firstMb)

	st, err := r.Ue()
	if err != nil {
		return nil, err
	}
	sh.SliceType = int(st) % 5

	ppsID, err := r.Ue()
	if err != nil {
		return nil, err
	}
	sh.PPSID = int(ppsID)

	frameNum, err := r.ReadBits(sps.Log2MaxFrameNum)
	if err != nil {
		return nil, err
	}
	sh.FrameNum = int(frameNum)

	if !sps.FrameMbsOnly {
		return nil, mediaerr.Unsupported("h264: field_pic_flag path unsupported")
	}

	if sh.IsIDR {
		idrID, err := r.Ue()
		if err != nil {
			return nil, err
		}
		sh.IdrPicID = int(idrID)
	}

	if sps.PicOrderCntType == 0 {
		lsb, err := r.ReadBits(sps.Log2MaxPocLsb)
		if err != nil {
			return nil, err
		}
		sh.PicOrderCntLsb = int(lsb)
		if pps.BottomFieldPicOrderVlc {
			d, err := r.Se()
			if err != nil {
				return nil, err
			}
			sh.DeltaPicOrderCntBottom = int(d)
		}
	} else if sps.PicOrderCntType == 1 && !sps.DeltaPicOrderAlwaysZero {
		d0, err := r.Se()
		if err != nil {
			return nil, err
		}
		sh.DeltaPocs = append(sh.DeltaPocs, int(d0))
		if pps.BottomFieldPicOrderVlc {
			d1, err := r.Se()
			if err != nil {
				return nil, err
			}
			sh.DeltaPocs = append(sh.DeltaPocs, int(d1))
		}
	}

	if sh.SliceType == sliceTypeP || sh.SliceType == sliceTypeSP || sh.SliceType == sliceTypeB {
		override, err := r.ReadBit()
		if err != nil {
			return nil, err
		}
		sh.NumRefIdxActiveOverride = override == 1
		sh.NumRefIdxL0Active = pps.NumRefIdxL0DefaultActive
		sh.NumRefIdxL1Active = pps.NumRefIdxL1DefaultActive
		if sh.NumRefIdxActiveOverride {
			n0, err := r.Ue()
			if err != nil {
				return nil, err
			}
			sh.NumRefIdxL0Active = int(n0) + 1
			if sh.SliceType == sliceTypeB {
				n1, err := r.Ue()
				if err != nil {
					return nil, err
				}
				sh.NumRefIdxL1Active = int(n1) + 1
			}
		}
	}

	if sh.SliceType != sliceTypeI && sh.SliceType != sliceTypeSI {
		mods, err := parseRefListMod(r)
		if err != nil {
			return nil, err
		}
		sh.RefListModL0 = mods
		if sh.SliceType == sliceTypeB {
			mods1, err := parseRefListMod(r)
			if err != nil {
				return nil, err
			}
			sh.RefListModL1 = mods1
		}
	}

	if (pps.WeightedPred && (sh.SliceType == sliceTypeP || sh.SliceType == sliceTypeSP)) ||
		(pps.WeightedBipredIdc == 1 && sh.SliceType == sliceTypeB) {
		if err := skipPredWeightTable(r, sh); err != nil {
			return nil, err
		}
	}

	if refIdc != 0 {
		if err := parseDecRefPicMarking(r, sh); err != nil {
			return nil, err
		}
	}

	if pps.EntropyCodingModeCABAC && sh.SliceType != sliceTypeI && sh.SliceType != sliceTypeSI {
		cabacInit, err := r.Ue()
		if err != nil {
			return nil, err
		}
		if cabacInit > 2 {
			return nil, mediaerr.InvalidData("cabac_init_idc", cabacInit, "must be <= 2")
		}
		sh.CabacInitIdc = int(cabacInit)
	}

	qpDelta, err := r.Se()
	if err != nil {
		return nil, err
	}
	sh.SliceQPDelta = int(qpDelta)
	sh.SliceQP = pps.PicInitQP + sh.SliceQPDelta
	if sh.SliceQP < 0 || sh.SliceQP > 51 {
		return nil, mediaerr.InvalidData("slice_qp", sh.SliceQP, "must be in [0,51]")
	}

	if sh.SliceType == sliceTypeSP || sh.SliceType == sliceTypeSI {
		return nil, mediaerr.Unsupported("h264: SP/SI slices unsupported")
	}

	if pps.DeblockingFilterControl {
		idc, err := r.Ue()
		if err != nil {
			return nil, err
		}
		if idc > 2 {
			return nil, mediaerr.InvalidData("disable_deblocking_filter_idc", idc, "must be <= 2")
		}
		sh.DisableDeblockingFilterIdc = int(idc)
		if idc != 1 {
			a, err := r.Se()
			if err != nil {
				return nil, err
			}
			if a < -6 || a > 6 {
				return nil, mediaerr.InvalidData("slice_alpha_c0_offset_div2", a, "must be in [-6,6]")
			}
			sh.SliceAlphaC0OffsetDiv2 = int(a)
			b, err := r.Se()
			if err != nil {
				return nil, err
			}
			if b < -6 || b > 6 {
				return nil, mediaerr.InvalidData("slice_beta_offset_div2", b, "must be in [-6,6]")
			}
			sh.SliceBetaOffsetDiv2 = int(b)
		}
	}

	// disable_deblocking_filter_idc == 1 is the only value this decoder
	// reconstructs correctly (the in-loop deblocking filter itself, spec.md
	// §4.8.7, is not implemented). idc 0/2 both require it, including the
	// implicit idc 0 default when deblocking_filter_control_present_flag is
	// absent (the common encoder default) — reject at activation rather
	// than silently emit non-deblocked pixels, per spec.md §7.
	if sh.DisableDeblockingFilterIdc != 1 {
		return nil, mediaerr.Unsupported("h264: in-loop deblocking filter (disable_deblocking_filter_idc=%d) unsupported", sh.DisableDeblockingFilterIdc)
	}

	if pps.EntropyCodingModeCABAC {
		r.AlignToByte() // cabac_alignment_one_bit run consumed by alignment
	}
	sh.CabacStartByte = r.BytePosition()
	return sh, nil
}

func parseRefListMod(r *bitio.Reader) ([]refListModOp, error) {
	present, err := r.ReadBit()
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	var ops []refListModOp
	for i := 0; i < 96; i++ {
		idc, err := r.Ue()
		if err != nil {
			return nil, err
		}
		if idc == 3 {
			break
		}
		val, err := r.Ue()
		if err != nil {
			return nil, err
		}
		ops = append(ops, refListModOp{op: int(idc), val: int(val)})
	}
	if len(ops) > 96 {
		return nil, mediaerr.InvalidData("ref_pic_list_modification", len(ops), "exceeds 96 ops")
	}
	return ops, nil
}

func skipPredWeightTable(r *bitio.Reader, sh *SliceHeader) error {
	lumaDenom, err := r.Ue()
	if err != nil {
		return err
	}
	if lumaDenom > 7 {
		return mediaerr.InvalidData("luma_log2_weight_denom", lumaDenom, "must be <= 7")
	}
	if sh.SliceType != sliceTypeI {
		if _, err := r.Ue(); err != nil { // chroma_log2_weight_denom
			return err
		}
	}
	n := sh.NumRefIdxL0Active
	if err := skipWeightEntries(r, n); err != nil {
		return err
	}
	if sh.SliceType == sliceTypeB {
		if err := skipWeightEntries(r, sh.NumRefIdxL1Active); err != nil {
			return err
		}
	}
	return nil
}

func skipWeightEntries(r *bitio.Reader, n int) error {
	for i := 0; i < n; i++ {
		lumaFlag, err := r.ReadBit()
		if err != nil {
			return err
		}
		if lumaFlag == 1 {
			w, err := r.Se()
			if err != nil {
				return err
			}
			if w < -128 || w > 127 {
				return mediaerr.InvalidData("luma_weight", w, "must be in [-128,127]")
			}
			if _, err := r.Se(); err != nil { // offset
				return err
			}
		}
		chromaFlag, err := r.ReadBit()
		if err != nil {
			return err
		}
		if chromaFlag == 1 {
			for c := 0; c < 2; c++ {
				if _, err := r.Se(); err != nil {
					return err
				}
				if _, err := r.Se(); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func parseDecRefPicMarking(r *bitio.Reader, sh *SliceHeader) error {
	if sh.IsIDR {
		noOutput, err := r.ReadBit()
		if err != nil {
			return err
		}
		sh.NoOutputOfPriorPicsFlag = noOutput == 1
		longTerm, err := r.ReadBit()
		if err != nil {
			return err
		}
		sh.LongTermReferenceFlag = longTerm == 1
		return nil
	}
	adaptive, err := r.ReadBit()
	if err != nil {
		return err
	}
	sh.AdaptiveRefPicMarking = adaptive == 1
	if !sh.AdaptiveRefPicMarking {
		return nil
	}
	for i := 0; i < 64; i++ {
		op, err := r.Ue()
		if err != nil {
			return err
		}
		if op == 0 {
			return nil
		}
		m := mmcoOp{op: int(op)}
		switch op {
		case 1, 3:
			v, err := r.Ue()
			if err != nil {
				return err
			}
			m.arg1 = int(v)
			if op == 3 {
				v2, err := r.Ue()
				if err != nil {
					return err
				}
				m.arg2 = int(v2)
			}
		case 2:
			v, err := r.Ue()
			if err != nil {
				return err
			}
			m.arg1 = int(v)
		case 4:
			v, err := r.Ue()
			if err != nil {
				return err
			}
			m.arg1 = int(v)
		case 6:
			v, err := r.Ue()
			if err != nil {
				return err
			}
			m.arg1 = int(v)
		}
		sh.MMCOOps = append(sh.MMCOOps, m)
		if len(sh.MMCOOps) > 64 {
			return mediaerr.InvalidData("mmco_ops", len(sh.MMCOOps), "exceeds 64 ops")
		}
	}
	return nil
}
