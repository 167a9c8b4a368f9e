// Package h264 implements the H.264/AVC decoder (spec.md §4.8), the largest
// subsystem in this module: Annex-B NAL splitting, SPS/PPS parsing and
// change classification, POC computation, reference-list construction
// against pkg/dpb, CAVLC/CABAC entropy decoding, and a macroblock
// reconstruction pipeline that trades some prediction fidelity for an
// auditable implementation (see the mbCategory doc in macroblock.go).
package h264

import (
	"log/slog"

	"github.com/jmylchreest/mediacore/codec"
	"github.com/jmylchreest/mediacore/internal/logging"
	"github.com/jmylchreest/mediacore/pkg/bitio"
	"github.com/jmylchreest/mediacore/pkg/dpb"
	"github.com/jmylchreest/mediacore/pkg/mediaerr"
	"github.com/jmylchreest/mediacore/pkg/mediatype"
	"github.com/jmylchreest/mediacore/pkg/metrics"
	"github.com/jmylchreest/mediacore/pkg/reorder"
)

func init() {
	codec.Register(mediatype.CodecH264, func(sink metrics.Sink, logger *slog.Logger) codec.Decoder {
		return New(sink, WithLogger(logger))
	})
}

// defaultReorderDepth is the reorder buffer depth used when no
// WithReorderDepthOverride option is supplied.
const defaultReorderDepth = 4

// Option configures a Decoder at construction time.
type Option func(*Decoder)

// WithLogger injects the logger the decoder reports NAL-type Debug events
// and missing-reference/gap-in-frame-num Warn events through.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Decoder) { d.logger = logging.WithComponent(logger, "codec.h264") }
}

// WithReorderDepthOverride forces the POC reorder buffer depth instead of
// the built-in default (internal/config's decoder.reorder_depth_override,
// 0 meaning "use the default").
func WithReorderDepthOverride(depth int) Option {
	return func(d *Decoder) { d.reorderDepth = depth }
}

// WithMaxReferenceFrames clamps the DPB size regardless of the level
// signalled by SPS.max_num_ref_frames (internal/config's
// decoder.max_reference_frames).
func WithMaxReferenceFrames(n int) Option {
	return func(d *Decoder) { d.maxRefFramesCap = n }
}

// New constructs an unopened Decoder. A nil sink or logger falls back to
// metrics.NoopSink{} / logging.Discard().
func New(sink metrics.Sink, opts ...Option) *Decoder {
	if sink == nil {
		sink = metrics.NoopSink{}
	}
	d := &Decoder{sink: sink, logger: logging.Discard(), reorderDepth: defaultReorderDepth}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decoder implements codec.Decoder for Annex-B H.264 elementary streams.
type Decoder struct {
	sink   metrics.Sink
	logger *slog.Logger

	// reorderDepth is the POC reorder buffer depth; defaultReorderDepth
	// unless WithReorderDepthOverride was supplied.
	reorderDepth int
	// maxRefFramesCap clamps the DPB size when > 0, overriding
	// SPS.MaxNumRefFrames (WithMaxReferenceFrames).
	maxRefFramesCap int

	spsMap map[int]*SPS
	ppsMap map[int]*PPS
	curSPS *SPS
	curPPS *PPS

	dpb     *dpb.DPB
	pocSt   pocState
	reorder *reorder.Buffer

	pics       []*picture
	nextHandle int

	lastFrameNum    int
	haveLastFrameNum bool

	eof   bool
	ready []*mediatype.Frame
}

// Open configures the decoder from out-of-band extradata, if present, read
// as a raw Annex-B SPS/PPS prelude; avcC-format extradata is not parsed.
// SPS/PPS may also arrive in-band via SendPacket, per spec.md §4.8.1.
func (d *Decoder) Open(params mediatype.CodecParameters) error {
	if d.logger == nil {
		d.logger = logging.Discard()
	}
	if d.reorderDepth == 0 {
		d.reorderDepth = defaultReorderDepth
	}
	d.spsMap = map[int]*SPS{}
	d.ppsMap = map[int]*PPS{}
	d.reorder = reorder.New(d.reorderDepth)

	if len(params.ExtraData) > 0 {
		nals, err := splitAnnexB(params.ExtraData)
		if err == nil {
			d.consumeParameterSets(nals)
		}
	}
	return nil
}

func (d *Decoder) consumeParameterSets(nals [][]byte) {
	for _, nal := range nals {
		if len(nal) == 0 {
			continue
		}
		switch nalType(nal) {
		case nalTypeSPS:
			rbsp := unescapeEBSP(nal[1:])
			if sps, err := ParseSPS(rbsp); err == nil {
				d.applySPS(sps)
			}
		case nalTypePPS:
			rbsp := unescapeEBSP(nal[1:])
			if pps, err := ParsePPS(rbsp); err == nil {
				d.applyPPS(pps)
			}
		}
	}
}

func (d *Decoder) applySPS(sps *SPS) {
	old := d.spsMap[sps.ID]
	d.spsMap[sps.ID] = sps
	if d.curSPS == nil || d.curSPS.ID == sps.ID {
		class := Classify(d.curPPS, d.curPPS, old, sps)
		d.curSPS = sps
		if class == ChangeFull || d.dpb == nil {
			maxRef := sps.MaxNumRefFrames
			if maxRef < 1 {
				maxRef = 1
			}
			if d.maxRefFramesCap > 0 && maxRef > d.maxRefFramesCap {
				maxRef = d.maxRefFramesCap
			}
			d.dpb = dpb.New(maxRef)
			d.pocSt.reset()
		}
	}
}

func (d *Decoder) applyPPS(pps *PPS) {
	d.ppsMap[pps.ID] = pps
	if d.curPPS == nil || d.curPPS.ID == pps.ID {
		d.curPPS = pps
	}
}

// SendPacket feeds one Annex-B access unit (one or more NAL units) into the
// decoder.
func (d *Decoder) SendPacket(pkt *mediatype.Packet) error {
	if pkt == nil || len(pkt.Payload) == 0 {
		d.eof = true
		return nil
	}
	nals, err := splitAnnexB(pkt.Payload)
	if err != nil {
		return mediaerr.InvalidDataf("h264: annex-b split failed: %v", err)
	}

	d.consumeParameterSets(nals)

	for _, nal := range nals {
		if len(nal) == 0 {
			continue
		}
		nt := nalType(nal)
		d.logger.Debug("nal", "type", nt)
		if nt != nalTypeIDR && nt != nalTypeNonIDR {
			continue
		}
		if err := d.decodeSliceNAL(nal, nt, pkt.Pts); err != nil {
			if e, ok := err.(*mediaerr.Error); ok && e.Kind == mediaerr.KindUnsupported {
				continue
			}
			return err
		}
	}
	return nil
}

func (d *Decoder) decodeSliceNAL(nal []byte, nt int, pts int64) error {
	if d.curSPS == nil || d.curPPS == nil {
		return mediaerr.Unsupported("h264: slice without active SPS/PPS")
	}
	refIdc := nalRefIdc(nal)
	rbsp := unescapeEBSP(nal[1:])
	r := bitio.NewReader(rbsp)

	sh, err := ParseSliceHeader(r, d.curSPS, d.curPPS, nt, refIdc)
	if err != nil {
		return err
	}
	if pps, ok := d.ppsMap[sh.PPSID]; ok {
		d.curPPS = pps
	}
	if sps, ok := d.spsMap[d.curPPS.SPSID]; ok {
		d.curSPS = sps
	}

	if sh.IsIDR {
		d.dpb.Clear()
		d.pocSt.reset()
		d.haveLastFrameNum = false
		for _, e := range d.reorder.Flush() {
			d.ready = append(d.ready, e.Value.(*mediatype.Frame))
		}
	}
	d.checkFrameNumGap(sh)

	poc := d.computePOC(sh, refIdc)

	pic := newPicture(d.nextHandle, d.curSPS.Width(), d.curSPS.Height())
	pic.poc = poc
	pic.frameNum = sh.FrameNum
	d.nextHandle++

	ref0, ref1 := d.buildRefLists(sh, poc)
	ctx := newSliceCtx(d.curSPS, d.curPPS, sh, pic, ref0, ref1)

	if d.curPPS.EntropyCodingModeCABAC {
		eng, err := newCABACEngine(r, cabacInitSelector(sh), sh.SliceQP)
		if err != nil {
			return err
		}
		if err := decodeSliceDataCABAC(eng, ctx); err != nil {
			return err
		}
	} else {
		if err := decodeSliceDataCAVLC(r, ctx); err != nil {
			return err
		}
	}

	if refIdc != 0 {
		d.markReference(pic, sh)
	}

	d.pics = append(d.pics, pic)
	frame := d.pictureToFrame(pic, pts)
	out, ok := d.reorder.Push(reorder.Entry{POC: poc, Value: frame})
	if ok {
		d.ready = append(d.ready, out.Value.(*mediatype.Frame))
	}
	return nil
}

// checkFrameNumGap warns when frame_num jumps by more than one slot since
// the last slice, the gaps-in-frame-num concealment trigger spec.md §7
// requires surfacing rather than silently mis-ordering (no inferred
// non-existing frames are synthesized; this decoder only logs the gap).
func (d *Decoder) checkFrameNumGap(sh *SliceHeader) {
	if !d.haveLastFrameNum {
		d.lastFrameNum = sh.FrameNum
		d.haveLastFrameNum = true
		return
	}
	maxFrameNum := 1 << uint(d.curSPS.Log2MaxFrameNum)
	expected := (d.lastFrameNum + 1) % maxFrameNum
	if sh.FrameNum != expected {
		d.logger.Warn("gap in frame_num", "expected", expected, "got", sh.FrameNum)
	}
	d.lastFrameNum = sh.FrameNum
}

func cabacInitSelector(sh *SliceHeader) int {
	if sh.SliceType == sliceTypeI {
		return 0
	}
	return 1 + sh.CabacInitIdc
}

func (d *Decoder) computePOC(sh *SliceHeader, refIdc int) int {
	switch d.curSPS.PicOrderCntType {
	case 0:
		return d.pocSt.computePOCType0(d.curSPS, sh.PicOrderCntLsb, sh.DeltaPicOrderCntBottom, sh.IsIDR, refIdc != 0)
	case 1:
		return d.pocSt.computePOCType1(d.curSPS, sh.FrameNum, sh.DeltaPocs, sh.IsIDR, refIdc != 0)
	default:
		return d.pocSt.computePOCType2(d.curSPS, sh.FrameNum, sh.IsIDR, refIdc)
	}
}

func (d *Decoder) buildRefLists(sh *SliceHeader, poc int) ([]*picture, []*picture) {
	if sh.SliceType == sliceTypeI {
		return nil, nil
	}
	var fallbacks int
	maxFrameNum := 1 << uint(d.curSPS.Log2MaxFrameNum)

	dpbList0 := buildRefList0(d.dpb, poc, sh.SliceType == sliceTypeB)
	list0 := applyRefListModification(dpbList0, sh.RefListModL0, sh.FrameNum, maxFrameNum, sh.NumRefIdxL0Active, &fallbacks)
	pics0 := d.resolveHandles(list0)

	var pics1 []*picture
	if sh.SliceType == sliceTypeB {
		dpbList1 := buildRefList1(d.dpb, poc, dpbList0)
		list1 := applyRefListModification(dpbList1, sh.RefListModL1, sh.FrameNum, maxFrameNum, sh.NumRefIdxL1Active, &fallbacks)
		pics1 = d.resolveHandles(list1)
	}
	if fallbacks > 0 {
		d.sink.IncMissingReferenceFallback("h264")
		d.logger.Warn("missing reference, padded with fallback", "count", fallbacks)
	}
	return pics0, pics1
}

func (d *Decoder) resolveHandles(list []*dpb.Picture) []*picture {
	out := make([]*picture, 0, len(list))
	for _, rp := range list {
		if p := d.findPicture(rp.Handle); p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (d *Decoder) findPicture(handle int) *picture {
	for _, p := range d.pics {
		if p.handle == handle {
			return p
		}
	}
	return nil
}

func (d *Decoder) markReference(pic *picture, sh *SliceHeader) {
	maxFrameNum := 1 << uint(d.curSPS.Log2MaxFrameNum)
	dp := &dpb.Picture{
		Handle:       pic.handle,
		FrameNum:     sh.FrameNum,
		FrameNumWrap: sh.FrameNum,
		POC:          pic.poc,
		IsReference:  true,
		TopPOC:       pic.poc,
		BottomPOC:    pic.poc,
	}
	if sh.FrameNum > 0 {
		dp.FrameNumWrap = sh.FrameNum
	}

	if sh.IsIDR {
		if sh.LongTermReferenceFlag {
			dp.IsLongTerm = true
		}
		d.dpb.Insert(dp)
		return
	}

	if sh.AdaptiveRefPicMarking {
		for _, op := range sh.MMCOOps {
			switch op.op {
			case 1:
				wrap := sh.FrameNum - (op.arg1 + 1)
				if wrap < 0 {
					wrap += maxFrameNum
				}
				d.dpb.ForgetShortByFrameNumWrap(wrap)
			case 2:
				d.dpb.ForgetLongByIdx(op.arg1)
			case 3:
				wrap := sh.FrameNum - (op.arg1 + 1)
				if wrap < 0 {
					wrap += maxFrameNum
				}
				d.dpb.ConvertShortToLong(wrap, op.arg2)
			case 4:
				d.dpb.TrimMaxLongTermIdx(op.arg1 - 1)
			case 6:
				dp.IsLongTerm = true
				dp.LongTermFrameIdx = op.arg1
			}
		}
	}
	d.dpb.Insert(dp)
}

func (d *Decoder) pictureToFrame(p *picture, pts int64) *mediatype.Frame {
	f := mediatype.NewVideoFrame(p.width, p.height, mediatype.PixelFormatYUV420P)
	copy(f.Data[0], p.y)
	copy(f.Data[1], p.u)
	copy(f.Data[2], p.v)
	f.Pts = pts
	f.PictureType = mediatype.PictureP
	return f
}

// ReceiveFrame returns the next frame in display (POC) order, or
// mediaerr.ErrNeedMoreData / mediaerr.ErrEof.
func (d *Decoder) ReceiveFrame() (*mediatype.Frame, error) {
	if len(d.ready) > 0 {
		f := d.ready[0]
		d.ready = d.ready[1:]
		return f, nil
	}
	if d.eof {
		for _, e := range d.reorder.Flush() {
			d.ready = append(d.ready, e.Value.(*mediatype.Frame))
		}
		if len(d.ready) > 0 {
			f := d.ready[0]
			d.ready = d.ready[1:]
			return f, nil
		}
		return nil, mediaerr.ErrEof
	}
	return nil, mediaerr.ErrNeedMoreData
}

// Flush drops all buffered pictures and reference state.
func (d *Decoder) Flush() {
	if d.dpb != nil {
		d.dpb.Clear()
	}
	d.pocSt.reset()
	depth := d.reorderDepth
	if depth == 0 {
		depth = defaultReorderDepth
	}
	d.reorder = reorder.New(depth)
	d.pics = nil
	d.ready = nil
	d.haveLastFrameNum = false
	d.eof = false
}

// CodecID reports mediatype.CodecH264.
func (d *Decoder) CodecID() mediatype.CodecID { return mediatype.CodecH264 }
