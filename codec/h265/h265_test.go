package h265

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/mediacore/pkg/bitio"
)

func TestUnescapeEBSPSharedAlgorithm(t *testing.T) {
	in := []byte{0x00, 0x00, 0x03, 0x01, 0x00, 0x00, 0x03, 0x02}
	out := unescapeEBSP(in)
	require.Equal(t, []byte{0x00, 0x00, 0x01, 0x00, 0x00, 0x02}, out)
}

func TestParseSPSMinimal(t *testing.T) {
	w := newBitWriter()
	w.bits(0, 4)
	w.bits(0, 3)
	w.bit(0)
	w.bits(0, 8)
	w.bits(0, 32)
	w.bits(0, 32)
	w.bits(0, 16)
	w.bits(0, 8)
	w.ue(0)
	w.ue(1)
	w.ue(64)
	w.ue(64)
	w.bit(0) // conformance_window_flag
	w.ue(0)  // bit_depth_luma_minus8
	w.ue(0)  // bit_depth_chroma_minus8

	w.bit(0) // sps_sub_layer_ordering_info_present_flag
	w.ue(0)  // sps_max_dec_pic_buffering_minus1
	w.ue(0)  // sps_max_num_reorder_pics
	w.ue(0)  // sps_max_latency_increase_plus1

	w.ue(0) // log2_min_luma_coding_block_size_minus3
	w.ue(0) // log2_diff_max_min_luma_coding_block_size
	w.ue(0) // log2_min_luma_transform_block_size_minus2
	w.ue(0) // log2_diff_max_min_luma_transform_block_size
	w.ue(0) // max_transform_hierarchy_depth_inter
	w.ue(0) // max_transform_hierarchy_depth_intra

	w.bit(0) // scaling_list_enabled_flag
	w.bit(0) // amp_enabled_flag
	w.bit(0) // sample_adaptive_offset_enabled_flag
	w.bit(0) // pcm_enabled_flag
	w.ue(0)  // num_short_term_ref_pic_sets
	w.bit(0) // long_term_ref_pics_present_flag
	w.bit(0) // sps_temporal_mvp_enabled_flag
	w.bit(0) // strong_intra_smoothing_enabled_flag
	w.bit(0) // vui_parameters_present_flag

	sps, err := parseSPS(w.bytes())
	require.NoError(t, err)
	require.Equal(t, 1, sps.ChromaFormatIdc)
	require.Equal(t, 8, sps.BitDepthLuma)
	require.Equal(t, 64, sps.Width())
	require.Equal(t, 64, sps.Height())
}

func TestParseSPSConformanceWindowCrop(t *testing.T) {
	w := newBitWriter()
	w.bits(0, 4)
	w.bits(0, 3)
	w.bit(0)
	w.bits(0, 8)
	w.bits(0, 32)
	w.bits(0, 32)
	w.bits(0, 16)
	w.bits(0, 8)
	w.ue(0)
	w.ue(1)
	w.ue(66)
	w.ue(66)
	w.bit(1) // conformance_window_flag
	w.ue(0)  // left
	w.ue(1)  // right
	w.ue(0)  // top
	w.ue(1)  // bottom
	w.ue(0)
	w.ue(0)

	w.bit(0)
	w.ue(0)
	w.ue(0)
	w.ue(0)

	w.ue(0)
	w.ue(0)
	w.ue(0)
	w.ue(0)
	w.ue(0)
	w.ue(0)

	w.bit(0)
	w.bit(0)
	w.bit(0)
	w.bit(0)
	w.ue(0)
	w.bit(0)
	w.bit(0) // sps_temporal_mvp_enabled_flag
	w.bit(0) // strong_intra_smoothing_enabled_flag
	w.bit(0) // vui_parameters_present_flag

	sps, err := parseSPS(w.bytes())
	require.NoError(t, err)
	require.Equal(t, 64, sps.Width())  // 66 - 2*(0+1)
	require.Equal(t, 64, sps.Height()) // 66 - 2*(0+1)
}

func TestParseVUISARTableLookup(t *testing.T) {
	w := newBitWriter()
	w.bit(1)      // aspect_ratio_info_present_flag
	w.bits(1, 8)  // aspect_ratio_idc = 1 (1:1 square)
	w.bit(0)      // overscan_info_present_flag
	w.bit(0)      // video_signal_type_present_flag
	w.bit(0)      // chroma_loc_info_present_flag
	w.bit(0)      // neutral_chroma_indication_flag
	w.bit(0)      // field_seq_flag
	w.bit(0)      // frame_field_info_present_flag
	w.bit(0)      // default_display_window_flag
	w.bit(1)      // vui_timing_info_present_flag
	w.bits(1, 32) // vui_num_units_in_tick
	w.bits(25, 32) // vui_time_scale
	w.bit(0)      // vui_poc_proportional_to_timing_flag
	w.bit(0)      // vui_hrd_parameters_present_flag

	sps := &SPS{}
	r := bitio.NewReader(w.bytes())
	require.NoError(t, parseVUI(r, sps))
	require.Equal(t, 1, sps.SarWidth)
	require.Equal(t, 1, sps.SarHeight)
	require.Equal(t, 1, sps.VUINumUnitsInTick)
	require.Equal(t, 25, sps.VUITimeScale)
}

func TestValidateSPSRejectsUnsupportedChromaFormat(t *testing.T) {
	err := validateSPS(&SPS{ChromaFormatIdc: 2, BitDepthLuma: 8, BitDepthChroma: 8})
	require.Error(t, err)
}

// bitWriter is the same MSB-first test helper used by codec/h264's tests.
type bitWriter struct {
	buf []byte
	pos int
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

func (w *bitWriter) bytes() []byte {
	for w.pos != 0 {
		w.bit(0)
	}
	return w.buf
}
