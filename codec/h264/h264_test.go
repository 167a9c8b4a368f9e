package h264

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/mediacore/pkg/bitio"
)

func TestUnescapeEBSP(t *testing.T) {
	in := []byte{0x00, 0x00, 0x03, 0x01, 0x00, 0x00, 0x03, 0x02}
	out := unescapeEBSP(in)
	require.Equal(t, []byte{0x00, 0x00, 0x01, 0x00, 0x00, 0x02}, out)
}

func TestNalTypeAndRefIdc(t *testing.T) {
	nal := []byte{0x65} // nal_ref_idc=3, nal_unit_type=5 (IDR)
	require.Equal(t, nalTypeIDR, nalType(nal))
	require.Equal(t, 3, nalRefIdc(nal))
}

// buildTestSPS encodes a minimal baseline-profile SPS for a 16x16 (1 MB)
// frame, profile_idc 66 (no chroma_format_idc/bit_depth fields), poc type 0.
func buildTestSPS(t *testing.T) []byte {
	t.Helper()
	w := newBitWriter()
	w.bits(66, 8) // profile_idc (baseline)
	w.bits(0, 8)  // constraint flags + reserved
	w.bits(30, 8) // level_idc
	w.ue(0)       // seq_parameter_set_id
	w.ue(0)       // log2_max_frame_num_minus4
	w.ue(0)       // pic_order_cnt_type
	w.ue(0)       // log2_max_pic_order_cnt_lsb_minus4
	w.ue(2)       // max_num_ref_frames
	w.bit(0)      // gaps_in_frame_num_value_allowed_flag
	w.ue(0)       // pic_width_in_mbs_minus1
	w.ue(0)       // pic_height_in_map_units_minus1
	w.bit(1)      // frame_mbs_only_flag
	w.bit(0)      // direct_8x8_inference_flag
	w.bit(0)      // frame_cropping_flag
	w.bit(0)      // vui_parameters_present_flag
	return w.bytes()
}

func TestParseSPSBaseline(t *testing.T) {
	sps, err := ParseSPS(buildTestSPS(t))
	require.NoError(t, err)
	require.Equal(t, 1, sps.ChromaFormatIdc)
	require.Equal(t, 4, sps.Log2MaxFrameNum)
	require.Equal(t, 0, sps.PicOrderCntType)
	require.Equal(t, 1, sps.PicWidthInMbs)
	require.Equal(t, 1, sps.PicHeightInMapUnits)
	require.True(t, sps.FrameMbsOnly)
	require.Equal(t, 16, sps.Width())
	require.Equal(t, 16, sps.Height())
}

func buildTestPPS(t *testing.T) []byte {
	t.Helper()
	w := newBitWriter()
	w.ue(0) // pic_parameter_set_id
	w.ue(0) // seq_parameter_set_id
	w.bit(0) // entropy_coding_mode_flag (CAVLC)
	w.bit(0) // bottom_field_pic_order_in_frame_present_flag
	w.ue(0)  // num_slice_groups_minus1
	w.ue(0)  // num_ref_idx_l0_default_active_minus1
	w.ue(0)  // num_ref_idx_l1_default_active_minus1
	w.bit(0) // weighted_pred_flag
	w.bits(0, 2) // weighted_bipred_idc
	w.se(0)  // pic_init_qp_minus26
	w.se(0)  // pic_init_qs_minus26
	w.se(0)  // chroma_qp_index_offset
	w.bit(0) // deblocking_filter_control_present_flag
	w.bit(0) // constrained_intra_pred_flag
	w.bit(0) // redundant_pic_cnt_present_flag
	return w.bytes()
}

func TestParsePPSBaseline(t *testing.T) {
	pps, err := ParsePPS(buildTestPPS(t))
	require.NoError(t, err)
	require.False(t, pps.EntropyCodingModeCABAC)
	require.Equal(t, 1, pps.NumRefIdxL0DefaultActive)
	require.Equal(t, 26, pps.PicInitQP)
}

func TestClassifyFullOnFirstPPS(t *testing.T) {
	pps, _ := ParsePPS(buildTestPPS(t))
	sps, _ := ParseSPS(buildTestSPS(t))
	require.Equal(t, ChangeFull, Classify(nil, pps, nil, sps))
}

func TestClassifyNoneOnIdenticalPPS(t *testing.T) {
	pps1, _ := ParsePPS(buildTestPPS(t))
	pps2, _ := ParsePPS(buildTestPPS(t))
	sps, _ := ParseSPS(buildTestSPS(t))
	require.Equal(t, ChangeNone, Classify(pps1, pps2, sps, sps))
}

func TestPOCType0IDRResets(t *testing.T) {
	var st pocState
	sps := &SPS{Log2MaxPocLsb: 8}
	poc := st.computePOCType0(sps, 2, 0, true, true)
	require.Equal(t, 2, poc)
}

func TestPOCType2(t *testing.T) {
	var st pocState
	sps := &SPS{Log2MaxFrameNum: 4}
	poc := st.computePOCType2(sps, 1, true, 1)
	require.Equal(t, 2, poc)
	poc2 := st.computePOCType2(sps, 2, false, 0)
	require.Equal(t, 3, poc2) // 2*2 - 1
}

// bitWriter is a small MSB-first test helper producing byte slices consumed
// by bitio.Reader in the tests above.
type bitWriter struct {
	buf  []byte
	pos  int // bits used in the last byte
}

func newBitWriter() *bitWriter { return &bitWriter{} }

func (w *bitWriter) bit(b int) {
	if w.pos == 0 {
		w.buf = append(w.buf, 0)
	}
	if b != 0 {
		w.buf[len(w.buf)-1] |= 1 << uint(7-w.pos)
	}
	w.pos = (w.pos + 1) % 8
}

func (w *bitWriter) bits(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		w.bit(int((v >> uint(i)) & 1))
	}
}

func (w *bitWriter) ue(v uint32) {
	v++
	nbits := 0
	for t := v; t > 1; t >>= 1 {
		nbits++
	}
	for i := 0; i < nbits; i++ {
		w.bit(0)
	}
	w.bits(v, nbits+1)
}

func (w *bitWriter) se(v int32) {
	var code uint32
	if v <= 0 {
		code = uint32(-2 * v)
	} else {
		code = uint32(2*v - 1)
	}
	w.ue(code)
}

func (w *bitWriter) bytes() []byte {
	if w.pos != 0 {
		for w.pos != 0 {
			w.bit(0)
		}
	}
	return w.buf
}

// buildPCMPPS is buildTestPPS with deblocking_filter_control_present_flag
// set and disable_deblocking_filter_idc forced to 1 by the caller's slice
// header, the only idc value this decoder reconstructs (see sliceheader.go).
func buildPCMPPS(t *testing.T) []byte {
	t.Helper()
	w := newBitWriter()
	w.ue(0)      // pic_parameter_set_id
	w.ue(0)      // seq_parameter_set_id
	w.bit(0)     // entropy_coding_mode_flag (CAVLC)
	w.bit(0)     // bottom_field_pic_order_in_frame_present_flag
	w.ue(0)      // num_slice_groups_minus1
	w.ue(0)      // num_ref_idx_l0_default_active_minus1
	w.ue(0)      // num_ref_idx_l1_default_active_minus1
	w.bit(0)     // weighted_pred_flag
	w.bits(0, 2) // weighted_bipred_idc
	w.se(0)      // pic_init_qp_minus26
	w.se(0)      // pic_init_qs_minus26
	w.se(0)      // chroma_qp_index_offset
	w.bit(1)     // deblocking_filter_control_present_flag
	w.bit(0)     // constrained_intra_pred_flag
	w.bit(0)     // redundant_pic_cnt_present_flag
	return w.bytes()
}

// buildPCMSliceAndData encodes an IDR I-slice header for a single 16x16
// I_PCM macroblock (mb_type 25, ITU-T H.264 §7.4.5) whose 384 raw samples
// (256 luma + 64 + 64 chroma) are all fillValue, followed immediately by
// those samples byte-aligned per readRawSamples.
func buildPCMSliceAndData(fillValue byte) []byte {
	w := newBitWriter()
	w.ue(0)  // first_mb_in_slice
	w.ue(2)  // slice_type: I
	w.ue(0)  // pic_parameter_set_id
	w.bits(0, 4) // frame_num
	w.ue(0)  // idr_pic_id
	w.bits(0, 4) // pic_order_cnt_lsb
	w.bit(0) // no_output_of_prior_pics_flag
	w.bit(0) // long_term_reference_flag
	w.se(0)  // slice_qp_delta
	w.ue(1)  // disable_deblocking_filter_idc = 1 (filter off, the only reconstructed case)
	w.ue(25) // mb_type: I_PCM
	for w.pos != 0 {
		w.bit(0) // pcm_alignment_zero_bit run, consumed by the reader's AlignToByte
	}
	for i := 0; i < 256+64+64; i++ {
		w.bits(uint32(fillValue), 8)
	}
	return w.bytes()
}

// TestDecodePCMMacroblockMatchesGoldenPlane decodes a single I_PCM
// macroblock and diffs the reconstructed luma/chroma planes against a
// golden constant-fill buffer with cmp.Diff, the readable large-slice diff
// testify's assert.Equal doesn't give for a 256+64+64 byte plane mismatch.
func TestDecodePCMMacroblockMatchesGoldenPlane(t *testing.T) {
	sps, err := ParseSPS(buildTestSPS(t))
	require.NoError(t, err)
	pps, err := ParsePPS(buildPCMPPS(t))
	require.NoError(t, err)

	const fill = 0x80
	data := buildPCMSliceAndData(fill)
	r := bitio.NewReader(data)
	sh, err := ParseSliceHeader(r, sps, pps, nalTypeIDR, 1)
	require.NoError(t, err)
	require.Equal(t, 1, sh.DisableDeblockingFilterIdc)

	pic := newPicture(0, sps.Width(), sps.Height())
	ctx := newSliceCtx(sps, pps, sh, pic, nil, nil)
	require.NoError(t, decodeSliceDataCAVLC(r, ctx))

	wantY := make([]byte, len(pic.y))
	wantC := make([]byte, len(pic.u))
	for i := range wantY {
		wantY[i] = fill
	}
	for i := range wantC {
		wantC[i] = fill
	}

	if diff := cmp.Diff(wantY, pic.y); diff != "" {
		t.Errorf("luma plane mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantC, pic.u); diff != "" {
		t.Errorf("U plane mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantC, pic.v); diff != "" {
		t.Errorf("V plane mismatch (-want +got):\n%s", diff)
	}
}
