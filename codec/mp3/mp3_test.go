package mp3

import (
	"testing"

	"github.com/jmylchreest/mediacore/pkg/bitio"
	"github.com/stretchr/testify/require"
)

func TestFindSyncLocatesFrameHeader(t *testing.T) {
	buf := []byte{0x00, 0x01, 0xFF, 0xFB, 0x90, 0x00}
	require.Equal(t, 2, findSync(buf))
	require.Equal(t, -1, findSync([]byte{0x00, 0x01, 0x02}))
}

func TestIsSyncAt(t *testing.T) {
	buf := []byte{0xFF, 0xFB, 0x90, 0x00}
	require.True(t, isSyncAt(buf, 0))
	require.False(t, isSyncAt(buf, 1))
}

func TestParseHeaderMPEG1LayerIIIStereo(t *testing.T) {
	// 0xFFFB9064: MPEG-1 (11), Layer III (01), no CRC (1); bitrate_index=9
	// (128kbps), sample_rate_index=0 (44100), padding=0; mode=joint
	// stereo(01), mode_extension=10.
	buf := []byte{0xFF, 0xFB, 0x90, 0x64}
	hdr, err := parseHeader(buf)
	require.NoError(t, err)
	require.Equal(t, 3, hdr.version)
	require.Equal(t, 2, hdr.channels)
	require.Equal(t, 44100, hdr.sampleRate())
	require.Equal(t, 128, hdr.bitrateKbps())
	require.Equal(t, 32, hdr.sideInfoLen())
}

func TestParseHeaderRejectsNonLayerIII(t *testing.T) {
	// Layer bits 10 = Layer II, not III.
	buf := []byte{0xFF, 0xFD, 0x90, 0x64}
	_, err := parseHeader(buf)
	require.Error(t, err)
}

func TestParseHeaderRejectsNonMPEG1(t *testing.T) {
	// version bits 10 = MPEG-2.
	buf := []byte{0xFF, 0xF3, 0x90, 0x64}
	_, err := parseHeader(buf)
	require.Error(t, err)
}

func TestParseHeaderRejectsReservedSampleRate(t *testing.T) {
	buf := []byte{0xFF, 0xFB, 0x9C, 0x64} // sample_rate_index bits = 11
	_, err := parseHeader(buf)
	require.Error(t, err)
}

func TestParseHeaderRejectsFreeFormatBitrate(t *testing.T) {
	buf := []byte{0xFF, 0xFB, 0x00, 0x64} // bitrate_index = 0
	_, err := parseHeader(buf)
	require.Error(t, err)
}

func TestFrameHeaderMonoSideInfoLen(t *testing.T) {
	hdr := &frameHeader{mode: modeMono, channels: 1}
	require.Equal(t, 17, hdr.sideInfoLen())
}

func TestFrameLengthMatchesKnownValue(t *testing.T) {
	// 128kbps @ 44100Hz, no padding: floor(144*128000/44100) = 417.
	hdr := &frameHeader{bitrateIndex: 9, sampleRateIndex: 0}
	require.Equal(t, 417, hdr.frameLength())
	hdr.padding = true
	require.Equal(t, 418, hdr.frameLength())
}

func TestParseSideInfoStereo(t *testing.T) {
	w := newBitWriter()
	w.bits(100, 9) // main_data_begin
	w.bits(0, 3)   // private_bits (stereo)
	for ch := 0; ch < 2; ch++ {
		w.bits(0xF, 4) // scfsi all set
	}
	for gr := 0; gr < 2; gr++ {
		for ch := 0; ch < 2; ch++ {
			w.bits(200, 12) // part2_3_length
			w.bits(10, 9)   // big_values
			w.bits(150, 8)  // global_gain
			w.bits(0, 4)    // scalefac_compress
			w.bit(0)        // window_switching_flag = 0
			w.bits(1, 5)    // table_select[0]
			w.bits(2, 5)    // table_select[1]
			w.bits(3, 5)    // table_select[2]
			w.bits(5, 4)    // region0_count
			w.bits(3, 3)    // region1_count
			w.bit(1)        // preflag
			w.bit(0)        // scalefac_scale
			w.bit(1)        // count1table_select
		}
	}
	buf := w.bytes()
	si, err := parseSideInfo(buf, 2)
	require.NoError(t, err)
	require.Equal(t, 100, si.mainDataBegin)
	require.True(t, si.scfsi[0][0])
	require.True(t, si.scfsi[1][3])
	gi := si.granules[1][1]
	require.Equal(t, 200, gi.part23Length)
	require.Equal(t, 10, gi.bigValues)
	require.Equal(t, 150, gi.globalGain)
	require.False(t, gi.windowSwitching)
	require.Equal(t, 5, gi.region0Count)
	require.Equal(t, 3, gi.region1Count)
	require.True(t, gi.preflag)
	require.True(t, gi.count1TableSelect == 1)
}

func TestParseSideInfoWindowSwitching(t *testing.T) {
	w := newBitWriter()
	w.bits(0, 9) // main_data_begin
	w.bits(0, 5) // private_bits (mono)
	w.bits(0, 4) // scfsi (1 channel)
	for gr := 0; gr < 2; gr++ {
		w.bits(100, 12) // part2_3_length
		w.bits(5, 9)     // big_values
		w.bits(128, 8)   // global_gain
		w.bits(2, 4)     // scalefac_compress
		w.bit(1)         // window_switching_flag = 1
		w.bits(2, 2)     // block_type = short
		w.bit(1)         // mixed_block_flag
		w.bits(4, 5)     // table_select[0]
		w.bits(7, 5)     // table_select[1]
		w.bits(1, 3)     // subblock_gain[0]
		w.bits(2, 3)     // subblock_gain[1]
		w.bits(3, 3)     // subblock_gain[2]
		w.bit(0)         // preflag
		w.bit(1)         // scalefac_scale
		w.bit(0)         // count1table_select
	}
	si, err := parseSideInfo(w.bytes(), 1)
	require.NoError(t, err)
	gi := si.granules[0][0]
	require.True(t, gi.windowSwitching)
	require.Equal(t, blockShort, gi.blockType)
	require.True(t, gi.mixedBlock)
	require.Equal(t, 4, gi.tableSelect[0])
	require.Equal(t, 7, gi.tableSelect[1])
	require.Equal(t, [3]int{1, 2, 3}, gi.subblockGain)
	require.True(t, gi.scalefacScale)
}

func TestSlenTableCoversAllCompressValues(t *testing.T) {
	require.Equal(t, [2]int{0, 0}, slenTable[0])
	require.Equal(t, [2]int{4, 3}, slenTable[15])
}

func TestScfsiBandBoundsCover21Bands(t *testing.T) {
	require.Equal(t, 0, scfsiBandBounds[0])
	require.Equal(t, 21, scfsiBandBounds[4])
}

func TestReadBitsZeroWidthReturnsZero(t *testing.T) {
	r := bitio.NewReader([]byte{0xFF})
	v, err := readBits(r, 0)
	require.NoError(t, err)
	require.Equal(t, 0, v)
	require.Equal(t, 0, r.BitsRead())
}

func TestBandIndexFindsCoveringBand(t *testing.T) {
	bounds := []int{0, 4, 8, 16}
	require.Equal(t, 0, bandIndex(bounds, 0))
	require.Equal(t, 0, bandIndex(bounds, 3))
	require.Equal(t, 1, bandIndex(bounds, 4))
	require.Equal(t, 2, bandIndex(bounds, 15))
	require.Equal(t, 2, bandIndex(bounds, 999))
}

func TestRequantPreservesSignAndAppliesFourThirds(t *testing.T) {
	require.Equal(t, 0.0, requant(0))
	require.InDelta(t, 1.0, requant(1), 1e-9)
	require.InDelta(t, -16.0, requant(-8), 1e-9) // 8^(4/3) == 16, sign preserved
	require.True(t, requant(2) > 0)
	require.True(t, requant(-2) < 0)
}

func TestBuildAntialiasCoeffsMatchesKnownFirstPair(t *testing.T) {
	cs, ca := buildAntialiasCoeffs()
	// ci[0] = -0.6 -> cs = 1/sqrt(1.36), ca = -0.6*cs
	require.InDelta(t, 0.8574929, cs[0], 1e-6)
	require.InDelta(t, -0.5144958, ca[0], 1e-6)
}

func TestApplyAntialiasIsNoOpForSingleSubband(t *testing.T) {
	subs := make([][18]float64, 4)
	subs[0][10] = 1.0
	before := subs[0]
	applyAntialias(subs, 1) // n=1 means no boundary to butterfly
	require.Equal(t, before, subs[0])
}

func TestReorderShortRoundTripsBandMajorOrder(t *testing.T) {
	n := 192 * 3
	coeffs := make([]int, n)
	for i := range coeffs {
		coeffs[i] = 1
	}
	out := reorderShort(coeffs)
	for w := 0; w < 3; w++ {
		for i := 0; i < 192; i++ {
			require.InDelta(t, 1.0, out[w][i], 1e-9)
		}
	}
}

func TestReorderMixedShortSplitsRemainderEvenly(t *testing.T) {
	longLines := mixedLongBands * 18
	rest := 576 - longLines
	coeffs := make([]int, 576)
	for i := longLines; i < 576; i++ {
		coeffs[i] = 2
	}
	out := reorderMixedShort(coeffs, longLines)
	perWindow := rest / 3
	for w := 0; w < 3; w++ {
		for k := 0; k < perWindow; k++ {
			require.InDelta(t, requant(2), out[w][k], 1e-9)
		}
	}
}

func TestDequantizeLongAppliesGlobalGainAndScalefactor(t *testing.T) {
	var coeffs [576]int
	coeffs[0] = 1
	gi := &granuleInfo{globalGain: 210, scalefacScale: false}
	sf := &scalefactors{}
	out := dequantizeLong(coeffs, gi, sf, 18)
	// globalGain=210 and scalefactor=0 means base=1, factor=1: out == requant(1) == 1.
	require.InDelta(t, 1.0, out[0], 1e-9)
}

func TestRoundIntRoundsHalfAwayFromZero(t *testing.T) {
	require.Equal(t, 1, roundInt(0.5))
	require.Equal(t, -1, roundInt(-0.5))
	require.Equal(t, 0, roundInt(0.0))
}

func TestApplyMSStereoReconstructsLeftRight(t *testing.T) {
	var mid, side [576]int
	mid[0] = 10
	side[0] = 2
	applyMSStereo(&mid, &side)
	// l = (10+2)*invSqrt2 = 8.485 -> 8, r = (10-2)*invSqrt2 = 5.657 -> 6
	require.Equal(t, 8, mid[0])
	require.Equal(t, 6, side[0])
}

func TestChanStateResetClearsHistoryAndOverlap(t *testing.T) {
	cs := newChanState()
	cs.synthHist[0] = 42
	cs.prevBlockType = blockShort
	cs.reset()
	require.Equal(t, 0.0, cs.synthHist[0])
	require.Equal(t, 0, cs.prevBlockType)
}

func TestDecoderFlushClearsStateAndEOF(t *testing.T) {
	d := &Decoder{eof: true, buf: []byte{1, 2, 3}, chans: []*chanState{newChanState()}}
	d.chans[0].synthHist[0] = 99
	d.Flush()
	require.False(t, d.eof)
	require.Nil(t, d.buf)
	require.Nil(t, d.pending)
	require.Nil(t, d.reservoir)
	require.Equal(t, 0.0, d.chans[0].synthHist[0])
}

func TestLongBlockWindowShapesAreNonNegativeAndBounded(t *testing.T) {
	for _, bt := range []int{blockNormal, blockStart, blockStop} {
		w := longBlockWindow(bt)
		for _, v := range w {
			require.True(t, v >= 0 && v <= 1.0001)
		}
	}
}

func TestFrequencyInvertNegatesOddSubbandOddSample(t *testing.T) {
	subs := make([][18]float64, 2)
	subs[1][1] = 5
	subs[1][2] = 7
	frequencyInvert(subs)
	require.Equal(t, -5.0, subs[1][1])
	require.Equal(t, 7.0, subs[1][2]) // even index within odd subband untouched
	require.Equal(t, 0.0, subs[0][1]) // even subband untouched entirely
}

// bitWriter builds a byte buffer bit by bit, MSB-first, matching
// pkg/bitio.Reader's convention — the same local test helper codec/h264,
// codec/h265, and codec/mpeg4 each define in their own test files.
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

func (w *bitWriter) bytes() []byte {
	for w.pos != 0 {
		w.bit(0)
	}
	return w.buf
}
