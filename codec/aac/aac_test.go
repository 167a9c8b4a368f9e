package aac

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/mediacore/pkg/mediaerr"
	"github.com/jmylchreest/mediacore/pkg/mediatype"
)

func ascBytes(objType, sampleRateIdx, channelConfig int) []byte {
	v := uint16(objType)<<11 | uint16(sampleRateIdx)<<7 | uint16(channelConfig)<<3
	return []byte{byte(v >> 8), byte(v)}
}

func TestOpenRejectsNonLC(t *testing.T) {
	d := &Decoder{}
	params := mediatype.CodecParameters{ExtraData: ascBytes(5, 3, 2)} // HE-AAC (SBR) object type
	err := d.Open(params)
	require.Error(t, err)
	require.True(t, mediaerr.IsKind(err, mediaerr.KindUnsupported))
}

func TestOpenAcceptsLCAndSetsRate(t *testing.T) {
	d := &Decoder{}
	params := mediatype.CodecParameters{ExtraData: ascBytes(2, 3, 2)} // AAC-LC, 48kHz, stereo
	require.NoError(t, d.Open(params))
	require.Equal(t, 48000, d.sampleRate)
	require.Equal(t, 2, d.channels)
	require.Len(t, d.chans, 2)
}

func TestFlushResetsOverlapAndTrim(t *testing.T) {
	d := &Decoder{}
	params := mediatype.CodecParameters{ExtraData: ascBytes(2, 3, 1)}
	require.NoError(t, d.Open(params))
	d.leadingTrimLeft = 500
	d.chans[0].overlapLong.Apply(make([]float64, 2048), make([]float64, 1024))
	d.Flush()
	require.Equal(t, d.leadingTrim, d.leadingTrimLeft)
	require.True(t, d.chans[0].overlapLong.Len() == 1024)
}

func TestEmptyPacketArmsEOF(t *testing.T) {
	d := &Decoder{}
	params := mediatype.CodecParameters{ExtraData: ascBytes(2, 3, 1)}
	require.NoError(t, d.Open(params))
	require.NoError(t, d.SendPacket(&mediatype.Packet{}))
	_, err := d.ReceiveFrame()
	require.True(t, mediaerr.IsKind(err, mediaerr.KindEof))
}

// icsBitWriter is the same MSB-first test helper codec/h264's tests use,
// producing the raw_data_block payload decodeRawDataBlock consumes.
type icsBitWriter struct {
	buf []byte
	pos int
}

func (w *icsBitWriter) bit(b int) {
	if w.pos == 0 {
		w.buf = append(w.buf, 0)
	}
	if b != 0 {
		w.buf[len(w.buf)-1] |= 1 << uint(7-w.pos)
	}
	w.pos = (w.pos + 1) % 8
}

func (w *icsBitWriter) bits(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		w.bit(int((v >> uint(i)) & 1))
	}
}

func (w *icsBitWriter) bytes() []byte {
	for w.pos != 0 {
		w.bit(0)
	}
	return w.buf
}

// silentSCEPacket builds a single_channel_element whose ics_info declares
// max_sfb=0 (no scale factor bands at all, so no spectral data is ever
// read), followed by an end-of-frame element. Every sfb/spec bin therefore
// stays at its zero-value, so the windowed IMDCT output is silence on the
// first frame (transform.IMDCT of an all-zero spectrum yields all-zero time
// samples, same invariant pkg/transform's own zero-spectrum test checks).
func silentSCEPacket() []byte {
	w := &icsBitWriter{}
	w.bits(elemSCE, 3)  // id_syn_ele
	w.bits(0, 4)        // element_instance_tag
	w.bits(0, 8)        // global_gain
	w.bit(0)            // ics_reserved_bit
	w.bits(0, 2)        // window_sequence (ONLY_LONG)
	w.bit(0)            // window_shape
	w.bits(0, 6)        // max_sfb = 0
	w.bit(0)            // predictor_data_present
	w.bit(0)            // pulse_data_present
	w.bit(0)            // tns_data_present
	w.bit(0)            // gain_control_data_present
	w.bits(elemEND, 3)  // id_syn_ele: end of frame
	return w.bytes()
}

// TestDecodeICSSilentFrameMatchesGoldenZeros decodes a single silent frame
// and diffs the interleaved PCM against an all-zero golden buffer with
// cmpopts.EquateApprox, the float-tolerant comparison large []float32 frame
// data needs over testify's coarser assert.Equal diff.
func TestDecodeICSSilentFrameMatchesGoldenZeros(t *testing.T) {
	d := &Decoder{}
	params := mediatype.CodecParameters{ExtraData: ascBytes(2, 3, 1)} // AAC-LC, 48kHz, mono
	require.NoError(t, d.Open(params))

	frame, err := d.decodeRawDataBlock(silentSCEPacket(), 0)
	require.NoError(t, err)
	require.NotNil(t, frame)
	require.Equal(t, 1024, frame.NbSamples)

	got := make([]float32, frame.NbSamples)
	for i := range got {
		got[i] = parseFloat32LE(frame.Data[0][i*4 : i*4+4])
	}
	want := make([]float32, frame.NbSamples)

	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
		t.Errorf("silent frame PCM mismatch (-want +got):\n%s", diff)
	}
}

func parseFloat32LE(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
