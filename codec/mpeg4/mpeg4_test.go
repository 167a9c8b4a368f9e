package mpeg4

import (
	"testing"

	"github.com/jmylchreest/mediacore/pkg/bitio"
	"github.com/stretchr/testify/require"
)

func TestSplitStartCodesFindsBoundaries(t *testing.T) {
	data := []byte{0x00, 0x00, 0x01, 0xB0, 0xAA, 0x00, 0x00, 0x01, 0xB6, 0xBB, 0xCC}
	units := splitStartCodes(data)
	require.Len(t, units, 2)
	require.Equal(t, byte(startCodeVOS), units[0].code)
	require.Equal(t, []byte{0xAA}, units[0].payload)
	require.Equal(t, byte(startCodeVOP), units[1].code)
	require.Equal(t, []byte{0xBB, 0xCC}, units[1].payload)
}

func TestIsShortHeaderDetectsPSCPrefix(t *testing.T) {
	require.True(t, isShortHeader([]byte{0x00, 0x00, 0x80, 0x00}))
	require.False(t, isShortHeader([]byte{0x00, 0x00, 0x01, 0xB0}))
}

func TestParseVOLMinimalRectangular(t *testing.T) {
	w := newBitWriter()
	w.bit(0)     // random_accessible_vol
	w.bits(1, 8) // video_object_type_indication
	w.bit(0)     // is_object_layer_identifier
	w.bits(1, 4) // aspect_ratio_info (square pixels)
	w.bit(0)     // vol_control_parameters
	w.bits(0, 2) // vol_shape (rectangular)
	w.bit(1)     // marker_bit
	w.bits(30, 16) // vop_time_increment_resolution
	w.bit(1)     // marker_bit
	w.bit(0)     // fixed_vop_rate
	w.bit(1)     // marker_bit
	w.bits(176, 13) // width
	w.bit(1)     // marker_bit
	w.bits(144, 13) // height
	w.bit(1)     // marker_bit
	w.bit(0)     // interlaced
	w.bit(0)     // obmc_disable
	w.bit(0)     // sprite_enable
	w.bit(0)     // not_8_bit
	w.bit(0)     // quant_type (H.263 style)
	w.bit(0)     // quarterpel
	w.bit(1)     // complexity_estimation_disable (1 = no estimation block follows)
	w.bit(0)     // resync_marker_disable
	w.bit(0)     // data_partitioned

	vol, err := ParseVOL(w.bytes())
	require.NoError(t, err)
	require.Equal(t, 176, vol.Width)
	require.Equal(t, 144, vol.Height)
	require.Equal(t, 30, vol.TimeIncrementResolution)
	require.Equal(t, quantH263, vol.QuantType)
	require.False(t, vol.DataPartitioned)
}

func TestParseVOLRejectsNonRectangularShape(t *testing.T) {
	w := newBitWriter()
	w.bit(0)
	w.bits(1, 8)
	w.bit(0)
	w.bits(1, 4)
	w.bit(0)
	w.bits(1, 2) // vol_shape != 0

	_, err := ParseVOL(w.bytes())
	require.Error(t, err)
}

func TestParseVOPHeaderNotCodedStopsEarly(t *testing.T) {
	w := newBitWriter()
	w.bits(0, 2) // vop_coding_type = I
	w.bit(0)     // modulo_time_base terminator
	w.bit(1)     // marker_bit
	w.bits(0, 5) // vop_time_increment (5 bits for resolution 30)
	w.bit(1)     // marker_bit
	w.bit(0)     // vop_coded = 0

	vol := &VOL{TimeIncrementResolution: 30, TimeIncrementBits: 5}
	r := bitio.NewReader(w.bytes())
	vop, err := ParseVOPHeader(r, vol)
	require.NoError(t, err)
	require.False(t, vop.Coded)
	require.Equal(t, vopI, vop.CodingType)
}

func TestParseVOPHeaderPFrameFields(t *testing.T) {
	w := newBitWriter()
	w.bits(1, 2) // vop_coding_type = P
	w.bit(1)     // modulo_time_base = 1 (one unary bit)
	w.bit(0)     // terminator
	w.bit(1)     // marker_bit
	w.bits(3, 5) // vop_time_increment
	w.bit(1)     // marker_bit
	w.bit(1)     // vop_coded = 1
	w.bit(1)     // rounding_control
	w.bits(2, 3) // intra_dc_vlc_thr
	w.bits(2, 3) // fcode_forward

	vol := &VOL{TimeIncrementResolution: 30, TimeIncrementBits: 5}
	r := bitio.NewReader(w.bytes())
	vop, err := ParseVOPHeader(r, vol)
	require.NoError(t, err)
	require.True(t, vop.Coded)
	require.Equal(t, vopP, vop.CodingType)
	require.Equal(t, 1, vop.ModuloTimeBase)
	require.Equal(t, 3, vop.TimeIncrement)
	require.Equal(t, 1, vop.RoundingControl)
	require.Equal(t, 2, vop.IntraDCVlcThr)
	require.Equal(t, 2, vop.FcodeForward)
}

func TestDequantMPEGRoundTripsKnownValues(t *testing.T) {
	var coeffs [64]int
	coeffs[1] = 3
	matrix := [64]int{}
	for i := range matrix {
		matrix[i] = 16
	}
	out := dequantMPEG(coeffs, 2, matrix, false, 8)
	// (2*3+1)*2*16/16 = 14
	require.Equal(t, 14, out[1])
}

func TestDequantMPEGIntraDCUsesDCScale(t *testing.T) {
	var coeffs [64]int
	coeffs[0] = 5
	out := dequantMPEG(coeffs, 10, [64]int{}, true, 8)
	require.Equal(t, 40, out[0])
}

func TestDequantH263OddEvenOffset(t *testing.T) {
	var coeffs [64]int
	coeffs[1] = 2
	oddOut := dequantH263(coeffs, 3, false, 8) // qp odd: offset = qp
	require.Equal(t, 2*3*2+3, oddOut[1])
	evenOut := dequantH263(coeffs, 4, false, 8) // qp even: offset = qp-1
	require.Equal(t, 2*4*2+3, evenOut[1])
}

func TestClampCoeffBounds(t *testing.T) {
	require.Equal(t, 2047, clampCoeff(5000))
	require.Equal(t, -2048, clampCoeff(-5000))
	require.Equal(t, 10, clampCoeff(10))
}

func TestWrapMVKeepsWithinRange(t *testing.T) {
	lo, hi := mvRange(1)
	require.Equal(t, -16, lo)
	require.Equal(t, 15, hi)
	require.Equal(t, -16, wrapMV(16, 1))
	require.Equal(t, 15, wrapMV(-17, 1))
	require.Equal(t, 0, wrapMV(0, 1))
}

func TestMedianMVPicksComponentWiseMedian(t *testing.T) {
	got := medianMV([2]int{1, 9}, [2]int{5, 5}, [2]int{9, 1})
	require.Equal(t, [2]int{5, 5}, got)
}

func TestCeilLog2(t *testing.T) {
	require.Equal(t, 1, ceilLog2(1))
	require.Equal(t, 5, ceilLog2(30))
	require.Equal(t, 8, ceilLog2(256))
}

func TestReadQuantMatrixRepeatsLastValueAfterZero(t *testing.T) {
	w := newBitWriter()
	w.bits(10, 8)
	w.bits(20, 8)
	w.bits(0, 8) // stop: repeat 20 for the rest
	r := bitio.NewReader(w.bytes())
	m, err := readQuantMatrix(r)
	require.NoError(t, err)
	require.Equal(t, 10, m[0])
	require.Equal(t, 20, m[1])
	require.Equal(t, 20, m[63])
}

func TestReadSignedBitsTwosComplement(t *testing.T) {
	w := newBitWriter()
	w.bits(uint32(uint16(int16(-5))), 16)
	r := bitio.NewReader(w.bytes())
	v, err := readSignedBits(r, 16)
	require.NoError(t, err)
	require.Equal(t, -5, v)
}

func TestDCScaleForLumaChromaBands(t *testing.T) {
	require.Equal(t, 8, dcScaleFor(2, true))
	require.Equal(t, 16, dcScaleFor(8, true))
	require.Equal(t, 18, dcScaleFor(10, true))
}

// bitWriter is the same MSB-first test helper codec/h264 and codec/h265 use.
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
