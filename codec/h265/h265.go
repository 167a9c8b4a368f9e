// Package h265 implements the H.265/HEVC VPS/SPS parse subset (spec.md
// §4.9): enough of §7.3.2 to recover picture dimensions, chroma format, bit
// depth, and SAR/timing for stream inspection. Slice decoding is explicitly
// out of scope (spec.md §4.9's own "ongoing work" note), so SendPacket only
// tracks parameter-set state and ReceiveFrame always reports Unsupported.
package h265

import (
	"log/slog"

	mch264 "github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	mch265 "github.com/bluenviron/mediacommon/v2/pkg/codecs/h265"

	"github.com/jmylchreest/mediacore/codec"
	"github.com/jmylchreest/mediacore/internal/logging"
	"github.com/jmylchreest/mediacore/pkg/bitio"
	"github.com/jmylchreest/mediacore/pkg/mediaerr"
	"github.com/jmylchreest/mediacore/pkg/mediatype"
	"github.com/jmylchreest/mediacore/pkg/metrics"
)

func init() {
	codec.Register(mediatype.CodecH265, func(sink metrics.Sink, logger *slog.Logger) codec.Decoder {
		return New(sink, WithLogger(logger))
	})
}

// Option configures a Decoder at construction time.
type Option func(*Decoder)

// WithLogger injects the logger the decoder reports NAL-type Debug events
// and malformed-SPS Warn events through.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Decoder) { d.logger = logging.WithComponent(logger, "codec.h265") }
}

// New constructs an unopened Decoder. A nil sink or logger falls back to
// metrics.NoopSink{} / logging.Discard().
func New(sink metrics.Sink, opts ...Option) *Decoder {
	if sink == nil {
		sink = metrics.NoopSink{}
	}
	d := &Decoder{sink: sink, logger: logging.Discard()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NAL type classification reuses mediacommon's h265.NALUType enum (same
// package the teacher imports in internal/relay/fmp4_adapter.go for this
// exact switch), rather than re-declaring the constant space by hand.
const (
	nalTypeVPS = int(mch265.NALUType_VPS_NUT)
	nalTypeSPS = int(mch265.NALUType_SPS_NUT)
	nalTypePPS = int(mch265.NALUType_PPS_NUT)
)

// SPS is the §7.3.2.2 subset this decoder recovers.
type SPS struct {
	ID                 int
	ChromaFormatIdc    int
	PicWidthLuma       int
	PicHeightLuma      int
	BitDepthLuma       int
	BitDepthChroma     int
	ConfWinLeft        int
	ConfWinRight       int
	ConfWinTop         int
	ConfWinBottom      int
	SarWidth           int
	SarHeight          int
	VUINumUnitsInTick  int
	VUITimeScale       int
}

// Width/Height apply the conformance-window crop to the coded luma size
// (spec.md §4.9: "subtract SubWidthC*(left+right), SubHeightC*(top+bottom)").
func (s *SPS) Width() int {
	return s.PicWidthLuma - subWidthC(s.ChromaFormatIdc)*(s.ConfWinLeft+s.ConfWinRight)
}

func (s *SPS) Height() int {
	return s.PicHeightLuma - subHeightC(s.ChromaFormatIdc)*(s.ConfWinTop+s.ConfWinBottom)
}

func subWidthC(chromaFormatIdc int) int {
	if chromaFormatIdc == 1 || chromaFormatIdc == 2 {
		return 2
	}
	return 1
}

func subHeightC(chromaFormatIdc int) int {
	if chromaFormatIdc == 1 {
		return 2
	}
	return 1
}

// Decoder implements codec.Decoder for the VPS/SPS parse subset. It reports
// stream geometry from the most recently parsed SPS but never produces
// frames: spec.md scopes H.265 slice decoding as out of this module's
// coverage.
type Decoder struct {
	sink   metrics.Sink
	logger *slog.Logger
	sps    map[int]*SPS
	vps    map[int]struct{}
	cur    *SPS
}

// Open parses an hvcC (ISO/IEC 14496-15 §8.3.3.1) or raw Annex-B prelude for
// VPS/SPS NAL units.
func (d *Decoder) Open(params mediatype.CodecParameters) error {
	if d.logger == nil {
		d.logger = logging.Discard()
	}
	d.sps = map[int]*SPS{}
	d.vps = map[int]struct{}{}
	if len(params.ExtraData) == 0 {
		return nil
	}
	nals := extractHVCCNALs(params.ExtraData)
	if nals == nil {
		var au mch264.AnnexB
		if err := au.Unmarshal(params.ExtraData); err == nil {
			nals = au
		}
	}
	d.consumeNALs(nals)
	return nil
}

// extractHVCCNALs parses the hvcC array-of-arrays format (ISO/IEC 14496-15
// §8.3.3.1): after a 22-byte fixed header, numOfArrays groups each carry a
// 1-byte NAL_unit_type, a 2-byte count, then count {2-byte length, NAL
// bytes} entries. Returns nil if the buffer doesn't look like hvcC (too
// short, or Annex-B start codes are found instead).
func extractHVCCNALs(data []byte) [][]byte {
	if len(data) < 23 || data[0] != 1 {
		return nil
	}
	if len(data) >= 4 && data[0] == 0 && data[1] == 0 && (data[2] == 1 || (data[2] == 0 && data[3] == 1)) {
		return nil
	}
	pos := 22
	numArrays := int(data[pos])
	pos++
	var out [][]byte
	for a := 0; a < numArrays && pos+3 <= len(data); a++ {
		pos++ // array_completeness + reserved + NAL_unit_type
		if pos+2 > len(data) {
			break
		}
		count := int(data[pos])<<8 | int(data[pos+1])
		pos += 2
		for i := 0; i < count && pos+2 <= len(data); i++ {
			l := int(data[pos])<<8 | int(data[pos+1])
			pos += 2
			if pos+l > len(data) {
				break
			}
			out = append(out, data[pos:pos+l])
			pos += l
		}
	}
	return out
}

func (d *Decoder) consumeNALs(nals [][]byte) {
	for _, nal := range nals {
		if len(nal) < 2 {
			continue
		}
		nalType := int(nal[0]>>1) & 0x3F
		d.logger.Debug("nal", "type", nalType)
		switch nalType {
		case nalTypeVPS:
			if id, err := parseVPSID(unescapeEBSP(nal[2:])); err == nil {
				d.vps[id] = struct{}{}
			}
		case nalTypeSPS:
			rbsp := unescapeEBSP(nal[2:]) // 2-byte NAL header for H.265
			sps, err := parseSPS(rbsp)
			if err != nil {
				d.sink.IncMalformedNALDrop("h265")
				d.logger.Warn("malformed SPS, dropped", "error", err)
				continue
			}
			d.sps[sps.ID] = sps
			d.cur = sps
		}
	}
}

// unescapeEBSP removes emulation-prevention-three bytes, same algorithm as
// codec/h264's (ITU-T H.265 also escapes 00 00 0x with x<=3).
func unescapeEBSP(ebsp []byte) []byte {
	out := make([]byte, 0, len(ebsp))
	zeroRun := 0
	for i := 0; i < len(ebsp); i++ {
		b := ebsp[i]
		if zeroRun >= 2 && b == 0x03 && i+1 < len(ebsp) && ebsp[i+1] <= 0x03 {
			zeroRun = 0
			continue
		}
		out = append(out, b)
		if b == 0x00 {
			zeroRun++
		} else {
			zeroRun = 0
		}
	}
	return out
}

// parseVPSID reads only vps_video_parameter_set_id (§7.3.2.1's first field);
// nothing else in the VPS carries information this decoder's SPS-driven
// geometry subset needs.
func parseVPSID(rbsp []byte) (int, error) {
	r := bitio.NewReader(rbsp)
	id, err := r.ReadBits(4)
	if err != nil {
		return 0, err
	}
	return int(id), nil
}

// parseSPS parses sps_seq_parameter_set_rbsp() far enough for spec.md
// §4.9's named fields, skipping profile_tier_level, scaling lists, and both
// RPS tables in full (their presence must still be consumed to reach the
// conformance-window/VUI fields that follow).
func parseSPS(rbsp []byte) (*SPS, error) {
	r := bitio.NewReader(rbsp)
	if _, err := r.ReadBits(4); err != nil { // sps_video_parameter_set_id
		return nil, err
	}
	maxSubLayersMinus1, err := r.ReadBits(3)
	if err != nil {
		return nil, err
	}
	if _, err := r.ReadBit(); err != nil { // sps_temporal_id_nesting_flag
		return nil, err
	}
	if err := skipProfileTierLevel(r, int(maxSubLayersMinus1)); err != nil {
		return nil, err
	}

	spsID, err := r.Ue()
	if err != nil {
		return nil, err
	}
	sps := &SPS{ID: int(spsID), SarWidth: 1, SarHeight: 1}

	cf, err := r.Ue()
	if err != nil {
		return nil, err
	}
	sps.ChromaFormatIdc = int(cf)
	if sps.ChromaFormatIdc == 3 {
		if _, err := r.ReadBit(); err != nil { // separate_colour_plane_flag
			return nil, err
		}
	}
	w, err := r.Ue()
	if err != nil {
		return nil, err
	}
	sps.PicWidthLuma = int(w)
	h, err := r.Ue()
	if err != nil {
		return nil, err
	}
	sps.PicHeightLuma = int(h)

	confWin, err := r.ReadBit()
	if err != nil {
		return nil, err
	}
	if confWin == 1 {
		l, _ := r.Ue()
		rr, _ := r.Ue()
		t, _ := r.Ue()
		b, _ := r.Ue()
		sps.ConfWinLeft, sps.ConfWinRight, sps.ConfWinTop, sps.ConfWinBottom = int(l), int(rr), int(t), int(b)
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

	if err := skipPastScalingAndRPS(r, int(maxSubLayersMinus1), sps); err != nil {
		return nil, err
	}

	if err := validateSPS(sps); err != nil {
		return nil, err
	}
	return sps, nil
}

// skipProfileTierLevel consumes general_profile_tier_level plus the
// sub-layer profile/level flags (§7.3.3), which this decoder never
// interprets beyond byte-accounting.
func skipProfileTierLevel(r *bitio.Reader, maxSubLayersMinus1 int) error {
	if _, err := r.ReadBits(8); err != nil { // general_profile_space/tier/idc
		return err
	}
	if _, err := r.ReadBits(32); err != nil { // general_profile_compatibility_flags
		return err
	}
	if _, err := r.ReadBits(32); err != nil { // constraint flags (high 32 of 48)
		return err
	}
	if _, err := r.ReadBits(16); err != nil { // constraint flags (low 16 of 48)
		return err
	}
	if _, err := r.ReadBits(8); err != nil { // general_level_idc
		return err
	}
	subLayerProfilePresent := make([]bool, maxSubLayersMinus1)
	subLayerLevelPresent := make([]bool, maxSubLayersMinus1)
	for i := 0; i < maxSubLayersMinus1; i++ {
		p, err := r.ReadBit()
		if err != nil {
			return err
		}
		subLayerProfilePresent[i] = p == 1
		l, err := r.ReadBit()
		if err != nil {
			return err
		}
		subLayerLevelPresent[i] = l == 1
	}
	if maxSubLayersMinus1 > 0 {
		for i := maxSubLayersMinus1; i < 8; i++ {
			if _, err := r.ReadBits(2); err != nil { // reserved_zero_2bits
				return err
			}
		}
	}
	for i := 0; i < maxSubLayersMinus1; i++ {
		if subLayerProfilePresent[i] {
			if _, err := r.ReadBits(32); err != nil {
				return err
			}
			if _, err := r.ReadBits(32); err != nil {
				return err
			}
			if _, err := r.ReadBits(24); err != nil {
				return err
			}
		}
		if subLayerLevelPresent[i] {
			if _, err := r.ReadBits(8); err != nil {
				return err
			}
		}
	}
	return nil
}

// skipPastScalingAndRPS consumes scaling_list_data (skip only, flat
// default), the short-term RPS set (with the index-relative prediction
// flag per spec.md §4.9), and the long-term RPS set, then parses the VUI
// SAR/timing fields into sps when vui_parameters_present_flag is set.
// Directional scaling-list *values* are not needed by this decoder (no
// slice decode), only their bit-length.
func skipPastScalingAndRPS(r *bitio.Reader, maxSubLayersMinus1 int, sps *SPS) error {
	if _, err := r.ReadBit(); err != nil { // sps_sub_layer_ordering_info
		return err
	}
	for i := 0; i <= maxSubLayersMinus1; i++ {
		if _, err := r.Ue(); err != nil { // sps_max_dec_pic_buffering_minus1
			return err
		}
		if _, err := r.Ue(); err != nil { // sps_max_num_reorder_pics
			return err
		}
		if _, err := r.Ue(); err != nil { // sps_max_latency_increase_plus1
			return err
		}
	}

	if _, err := r.Ue(); err != nil { // log2_min_luma_coding_block_size_minus3
		return err
	}
	if _, err := r.Ue(); err != nil { // log2_diff_max_min_luma_coding_block_size
		return err
	}
	if _, err := r.Ue(); err != nil { // log2_min_luma_transform_block_size_minus2
		return err
	}
	if _, err := r.Ue(); err != nil { // log2_diff_max_min_luma_transform_block_size
		return err
	}
	if _, err := r.Ue(); err != nil { // max_transform_hierarchy_depth_inter
		return err
	}
	if _, err := r.Ue(); err != nil { // max_transform_hierarchy_depth_intra
		return err
	}

	scalingListPresent, err := r.ReadBit()
	if err != nil {
		return err
	}
	if scalingListPresent == 1 {
		listEnabled, err := r.ReadBit()
		if err != nil {
			return err
		}
		if listEnabled == 1 {
			if err := skipScalingListData(r); err != nil {
				return err
			}
		}
	}

	if _, err := r.ReadBit(); err != nil { // amp_enabled_flag
		return err
	}
	if _, err := r.ReadBit(); err != nil { // sample_adaptive_offset_enabled_flag
		return err
	}

	pcmEnabled, err := r.ReadBit()
	if err != nil {
		return err
	}
	if pcmEnabled == 1 {
		if _, err := r.ReadBits(4); err != nil {
			return err
		}
		if _, err := r.ReadBits(4); err != nil {
			return err
		}
		if _, err := r.Ue(); err != nil {
			return err
		}
		if _, err := r.Ue(); err != nil {
			return err
		}
		if _, err := r.ReadBit(); err != nil {
			return err
		}
	}

	numShortTermRPS, err := r.Ue()
	if err != nil {
		return err
	}
	if err := skipShortTermRPSSet(r, int(numShortTermRPS)); err != nil {
		return err
	}

	longTermRefPicsPresent, err := r.ReadBit()
	if err != nil {
		return err
	}
	if longTermRefPicsPresent == 1 {
		numLongTerm, err := r.Ue()
		if err != nil {
			return err
		}
		for i := 0; i < int(numLongTerm); i++ {
			if _, err := r.Ue(); err != nil { // lt_ref_pic_poc_lsb_sps
				return err
			}
			if _, err := r.ReadBit(); err != nil { // used_by_curr_pic_lt_sps_flag
				return err
			}
		}
	}

	if _, err := r.ReadBit(); err != nil { // sps_temporal_mvp_enabled_flag
		return err
	}
	if _, err := r.ReadBit(); err != nil { // strong_intra_smoothing_enabled_flag
		return err
	}

	vuiPresent, err := r.ReadBit()
	if err != nil {
		return err
	}
	if vuiPresent == 1 {
		if err := parseVUI(r, sps); err != nil {
			return err
		}
	}

	return nil
}

// parseVUI reads the spec.md §4.9 "VUI subset for SAR (Table E.1) and
// timing" fields, skipping every other vui_parameters() section
// (overscan/video-signal/chroma-loc/display-window/bitstream-restriction)
// by its own bit-length only.
func parseVUI(r *bitio.Reader, sps *SPS) error {
	aspectRatioPresent, err := r.ReadBit()
	if err != nil {
		return err
	}
	if aspectRatioPresent == 1 {
		idc, err := r.ReadBits(8)
		if err != nil {
			return err
		}
		if idc == 255 { // EXTENDED_SAR (Table E.1)
			w, err := r.ReadBits(16)
			if err != nil {
				return err
			}
			h, err := r.ReadBits(16)
			if err != nil {
				return err
			}
			sps.SarWidth, sps.SarHeight = int(w), int(h)
		} else if int(idc) < len(vuiSARTable) {
			sps.SarWidth, sps.SarHeight = vuiSARTable[idc][0], vuiSARTable[idc][1]
		}
	}

	overscanPresent, err := r.ReadBit()
	if err != nil {
		return err
	}
	if overscanPresent == 1 {
		if _, err := r.ReadBit(); err != nil { // overscan_appropriate_flag
			return err
		}
	}

	videoSignalPresent, err := r.ReadBit()
	if err != nil {
		return err
	}
	if videoSignalPresent == 1 {
		if _, err := r.ReadBits(4); err != nil { // video_format(3) + video_full_range_flag(1)
			return err
		}
		colourDescPresent, err := r.ReadBit()
		if err != nil {
			return err
		}
		if colourDescPresent == 1 {
			if _, err := r.ReadBits(24); err != nil { // colour_primaries/transfer_characteristics/matrix_coeffs
				return err
			}
		}
	}

	chromaLocPresent, err := r.ReadBit()
	if err != nil {
		return err
	}
	if chromaLocPresent == 1 {
		if _, err := r.Ue(); err != nil {
			return err
		}
		if _, err := r.Ue(); err != nil {
			return err
		}
	}

	if _, err := r.ReadBit(); err != nil { // neutral_chroma_indication_flag
		return err
	}
	if _, err := r.ReadBit(); err != nil { // field_seq_flag
		return err
	}
	if _, err := r.ReadBit(); err != nil { // frame_field_info_present_flag
		return err
	}

	defaultDisplayWindow, err := r.ReadBit()
	if err != nil {
		return err
	}
	if defaultDisplayWindow == 1 {
		for i := 0; i < 4; i++ {
			if _, err := r.Ue(); err != nil {
				return err
			}
		}
	}

	timingPresent, err := r.ReadBit()
	if err != nil {
		return err
	}
	if timingPresent == 1 {
		numUnits, err := r.ReadBits(32)
		if err != nil {
			return err
		}
		timeScale, err := r.ReadBits(32)
		if err != nil {
			return err
		}
		sps.VUINumUnitsInTick = int(numUnits)
		sps.VUITimeScale = int(timeScale)

		pocProportional, err := r.ReadBit()
		if err != nil {
			return err
		}
		if pocProportional == 1 {
			if _, err := r.Ue(); err != nil { // vui_num_ticks_poc_diff_one_minus1
				return err
			}
		}
		hrdPresent, err := r.ReadBit()
		if err != nil {
			return err
		}
		if hrdPresent == 1 {
			// hrd_parameters() is unbounded VBV/buffering-model data this
			// decoder never consumes; leaving it unparsed would desync any
			// trailing bitstream_restriction fields, but nothing past this
			// point is read, so stop here rather than guess its length.
			return nil
		}
	}

	return nil
}

// vuiSARTable is ITU-T H.265 Table E.1's fixed aspect_ratio_idc entries
// (1-16); index 0 is unused (Unspecified).
var vuiSARTable = [][2]int{
	{0, 0}, {1, 1}, {12, 11}, {10, 11}, {16, 11}, {40, 33}, {24, 11}, {20, 11},
	{32, 11}, {80, 33}, {18, 11}, {15, 11}, {64, 33}, {160, 99}, {4, 3}, {3, 2}, {2, 1},
}

func skipScalingListData(r *bitio.Reader) error {
	for sizeID := 0; sizeID < 4; sizeID++ {
		step := 1
		if sizeID == 3 {
			step = 3
		}
		for matrixID := 0; matrixID < 6; matrixID += step {
			predModeFlag, err := r.ReadBit()
			if err != nil {
				return err
			}
			if predModeFlag == 0 {
				if _, err := r.Ue(); err != nil { // scaling_list_pred_matrix_id_delta
					return err
				}
				continue
			}
			coefNum := 64
			if sizeID == 0 {
				coefNum = 16
			}
			if sizeID > 1 {
				if _, err := r.Se(); err != nil { // scaling_list_dc_coef_minus8
					return err
				}
			}
			for i := 0; i < coefNum; i++ {
				if _, err := r.Se(); err != nil { // scaling_list_delta_coef
					return err
				}
			}
		}
	}
	return nil
}

// skipShortTermRPSSet consumes num short_term_ref_pic_set() entries,
// including the inter_ref_pic_set_prediction_flag path (spec.md §4.9's
// "index-relative prediction flag").
func skipShortTermRPSSet(r *bitio.Reader, num int) error {
	numNegPrev, numPosPrev := 0, 0
	for idx := 0; idx < num; idx++ {
		interPred := false
		if idx != 0 {
			f, err := r.ReadBit()
			if err != nil {
				return err
			}
			interPred = f == 1
		}
		if interPred {
			// delta_idx_minus1 is only present when this RPS is parsed from a
			// slice header referencing the last (implicit) set; within an SPS
			// every RPS is self-indexed, so it never appears here.
			if _, err := r.ReadBit(); err != nil { // delta_rps_sign
				return err
			}
			if _, err := r.Ue(); err != nil { // abs_delta_rps_minus1
				return err
			}
			total := numNegPrev + numPosPrev
			for j := 0; j <= total; j++ {
				used, err := r.ReadBit()
				if err != nil {
					return err
				}
				if used == 0 {
					if _, err := r.ReadBit(); err != nil { // use_delta_flag
						return err
					}
				}
			}
			continue
		}
		numNeg, err := r.Ue()
		if err != nil {
			return err
		}
		numPos, err := r.Ue()
		if err != nil {
			return err
		}
		for i := 0; i < int(numNeg); i++ {
			if _, err := r.Ue(); err != nil { // delta_poc_s0_minus1
				return err
			}
			if _, err := r.ReadBit(); err != nil { // used_by_curr_pic_s0_flag
				return err
			}
		}
		for i := 0; i < int(numPos); i++ {
			if _, err := r.Ue(); err != nil { // delta_poc_s1_minus1
				return err
			}
			if _, err := r.ReadBit(); err != nil { // used_by_curr_pic_s1_flag
				return err
			}
		}
		numNegPrev, numPosPrev = int(numNeg), int(numPos)
	}
	return nil
}

func validateSPS(s *SPS) error {
	if s.ChromaFormatIdc != 1 {
		return mediaerr.Unsupported("h265: chroma_format_idc %d unsupported (only 4:2:0)", s.ChromaFormatIdc)
	}
	if s.BitDepthLuma > 8 || s.BitDepthChroma > 8 {
		return mediaerr.Unsupported("h265: bit depth >8 unsupported")
	}
	return nil
}

// SendPacket tracks VPS/SPS state from in-band NAL units (PPS NAL units
// are not parsed). It never
// produces slice data: spec.md §4.9 scopes slice decoding out of this
// module.
func (d *Decoder) SendPacket(pkt *mediatype.Packet) error {
	if pkt == nil || len(pkt.Payload) == 0 {
		return nil
	}
	var au mch264.AnnexB
	if err := au.Unmarshal(pkt.Payload); err != nil {
		return mediaerr.InvalidDataf("h265: annex-b split failed: %v", err)
	}
	d.consumeNALs(au)
	return nil
}

// ReceiveFrame always reports Unsupported: this decoder only recovers
// sequence geometry, per spec.md §4.9.
func (d *Decoder) ReceiveFrame() (*mediatype.Frame, error) {
	return nil, mediaerr.Unsupported("h265: slice decode not implemented (VPS/SPS parse subset only)")
}

// Flush drops cached parameter sets.
func (d *Decoder) Flush() {
	d.sps = map[int]*SPS{}
	d.vps = map[int]struct{}{}
	d.cur = nil
}

// CodecID reports mediatype.CodecH265.
func (d *Decoder) CodecID() mediatype.CodecID { return mediatype.CodecH265 }

// CurrentSPS exposes the most recently parsed SPS, for callers (e.g. a
// probe CLI) that want geometry without attempting slice decode.
func (d *Decoder) CurrentSPS() *SPS { return d.cur }
