package vorbis

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// lsbBitWriter builds a byte buffer bit by bit, LSB-first, matching
// bitReader's packing convention — the inverse of bitWriter helpers used by
// the MSB-first codec test suites (h264/h265/mpeg4/mp3) in this module.
type lsbBitWriter struct {
	buf     []byte
	bitPos  int
}

func (w *lsbBitWriter) bits(v uint32, n int) {
	for i := 0; i < n; i++ {
		if w.bitPos/8 >= len(w.buf) {
			w.buf = append(w.buf, 0)
		}
		bit := (v >> uint(i)) & 1
		w.buf[w.bitPos/8] |= byte(bit) << uint(w.bitPos%8)
		w.bitPos++
	}
}

func (w *lsbBitWriter) bit(b uint32) { w.bits(b, 1) }

func TestBitReaderReadsLSBFirst(t *testing.T) {
	w := &lsbBitWriter{}
	w.bits(0b101, 3)
	w.bits(0xABCD, 16)
	r := newBitReader(w.buf)
	v, err := r.readBits(3)
	require.NoError(t, err)
	require.EqualValues(t, 0b101, v)
	v, err = r.readBits(16)
	require.NoError(t, err)
	require.EqualValues(t, 0xABCD, v)
}

func TestBitReaderUnderrunErrors(t *testing.T) {
	r := newBitReader([]byte{0xFF})
	_, err := r.readBits(9)
	require.Error(t, err)
}

func TestBitReaderZeroWidthReadIsNoop(t *testing.T) {
	r := newBitReader([]byte{0xFF})
	v, err := r.readBits(0)
	require.NoError(t, err)
	require.EqualValues(t, 0, v)
	require.Equal(t, 8, r.bitsLeft())
}

func TestIlogMatchesKnownValues(t *testing.T) {
	require.Equal(t, 0, ilog(0))
	require.Equal(t, 1, ilog(1))
	require.Equal(t, 2, ilog(2))
	require.Equal(t, 2, ilog(3))
	require.Equal(t, 3, ilog(4))
	require.Equal(t, 3, ilog(7))
	require.Equal(t, 4, ilog(8))
}

func TestFloat32UnpackSignAndMagnitude(t *testing.T) {
	// sign=0, exponent bits = 788 (so unbiased exponent 0), mantissa = 2.
	x := uint32(788) << 21
	x |= 2
	require.Equal(t, float64(2), float32Unpack(x))

	xNeg := x | 0x80000000
	require.Equal(t, float64(-2), float32Unpack(xNeg))
}

func TestLookup1ValuesFindsLargestRoot(t *testing.T) {
	require.Equal(t, 2, lookup1Values(8, 3)) // 2^3 == 8
	require.Equal(t, 3, lookup1Values(9, 2)) // 3^2 == 9
	require.Equal(t, 3, lookup1Values(15, 2)) // 3^2 == 9 <= 15 < 16 == 4^2
}

func TestBuildCanonicalTrieAndDecode(t *testing.T) {
	// Three entries, lengths [1, 2, 2]: canonical codes 0, 10, 11.
	trie := buildCanonicalTrie([]int{1, 2, 2})
	require.NotNil(t, trie)

	w := &lsbBitWriter{}
	// bitReader reads LSB-first but insertHuff walks the codeword MSB-first;
	// writing a single raw bit for entry 0's codeword "0" is unambiguous.
	w.bit(0)
	r := newBitReader(w.buf)
	v, err := (&codebook{trie: trie}).decode(r)
	require.NoError(t, err)
	require.Equal(t, 0, v)
}

func TestCodebookDecodeErrorsOnEmptyTrie(t *testing.T) {
	cb := &codebook{}
	_, err := cb.decode(newBitReader([]byte{0}))
	require.Error(t, err)
}

func TestParseIdentHeaderLayout(t *testing.T) {
	buf := make([]byte, 30)
	buf[0] = packetTypeIdentification
	copy(buf[1:7], "vorbis")
	binary.LittleEndian.PutUint32(buf[7:11], 0) // vorbis_version
	buf[11] = 2                                 // channels
	binary.LittleEndian.PutUint32(buf[12:16], 44100)
	buf[28] = 8 | (10 << 4) // blocksize_0 = 1<<8 = 256, blocksize_1 = 1<<10 = 1024
	buf[29] = 1             // framing bit set

	h, err := parseIdentHeader(buf)
	require.NoError(t, err)
	require.Equal(t, 2, h.channels)
	require.Equal(t, 44100, h.sampleRate)
	require.Equal(t, 256, h.blockSize0)
	require.Equal(t, 1024, h.blockSize1)
}

func TestParseIdentHeaderRejectsMissingFramingBit(t *testing.T) {
	buf := make([]byte, 30)
	buf[0] = packetTypeIdentification
	copy(buf[1:7], "vorbis")
	buf[11] = 1
	binary.LittleEndian.PutUint32(buf[12:16], 48000)
	buf[28] = 8 | (10 << 4)
	_, err := parseIdentHeader(buf)
	require.Error(t, err)
}

func TestIdentHeaderSameParams(t *testing.T) {
	a := &identHeader{channels: 2, sampleRate: 44100, blockSize0: 256, blockSize1: 2048}
	b := &identHeader{channels: 2, sampleRate: 44100, blockSize0: 256, blockSize1: 2048}
	c := &identHeader{channels: 1, sampleRate: 44100, blockSize0: 256, blockSize1: 2048}
	require.True(t, a.sameParams(b))
	require.False(t, a.sameParams(c))
}

func buildIdentPacket(channels int, sampleRate int) []byte {
	buf := make([]byte, 30)
	buf[0] = packetTypeIdentification
	copy(buf[1:7], "vorbis")
	buf[11] = byte(channels)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(sampleRate))
	buf[28] = 8 | (10 << 4)
	buf[29] = 1
	return buf
}

func TestSplitExtraDataLegacyLengthPrefixed(t *testing.T) {
	ident := buildIdentPacket(2, 44100)
	comment := append([]byte{packetTypeComment}, []byte("vorbisXXXX")...)
	setup := append([]byte{packetTypeSetup}, []byte("vorbisYYYY")...)

	var data []byte
	lenBuf := make([]byte, 4)
	for _, h := range [][]byte{ident, comment, setup} {
		binary.LittleEndian.PutUint32(lenBuf, uint32(len(h)))
		data = append(data, lenBuf...)
	}
	data = append(data, ident...)
	data = append(data, comment...)
	data = append(data, setup...)

	out, err := splitExtraData(data)
	require.NoError(t, err)
	require.Equal(t, ident, out[0])
	require.Equal(t, comment, out[1])
	require.Equal(t, setup, out[2])
}

func TestSplitExtraDataBareConcatenation(t *testing.T) {
	ident := buildIdentPacket(1, 48000)
	comment := append([]byte{packetTypeComment}, []byte("vorbisHELLOWORLD")...)
	setup := append([]byte{packetTypeSetup}, []byte("vorbisSETUPBYTES")...)
	data := append(append(append([]byte{}, ident...), comment...), setup...)

	out, err := splitExtraData(data)
	require.NoError(t, err)
	require.Equal(t, ident, out[0])
	require.Equal(t, comment, out[1])
	require.Equal(t, setup, out[2])
}

func TestParseResidueSetupRoundTrip(t *testing.T) {
	w := &lsbBitWriter{}
	w.bits(10, 24) // begin
	w.bits(100, 24) // end
	w.bits(7, 24)   // partition_size - 1 = 7 -> 8
	w.bits(1, 6)    // classifications - 1 = 1 -> 2
	w.bits(5, 8)    // classbook

	// cascade for classification 0: low=3, flag=0
	w.bits(3, 3)
	w.bit(0)
	// cascade for classification 1: low=1, flag=1, high=2
	w.bits(1, 3)
	w.bit(1)
	w.bits(2, 5)

	// class 0 cascade = 3 -> bits 0 and 1 set: read 2 books
	w.bits(9, 8)
	w.bits(10, 8)
	// class 1 cascade = (2<<3)|1 = 17 -> bits 0 and 4 set: read 2 books
	w.bits(11, 8)
	w.bits(12, 8)

	r := newBitReader(w.buf)
	rc, err := parseResidue(r, residueType0)
	require.NoError(t, err)
	require.Equal(t, 10, rc.begin)
	require.Equal(t, 100, rc.end)
	require.Equal(t, 8, rc.partitionSize)
	require.Equal(t, 2, rc.classifications)
	require.Equal(t, 5, rc.classbook)
	require.Equal(t, 9, rc.books[0][0])
	require.Equal(t, 10, rc.books[0][1])
	require.Equal(t, -1, rc.books[0][2])
	require.Equal(t, 11, rc.books[1][0])
	require.Equal(t, 12, rc.books[1][4])
}

func TestParseModeRejectsNonzeroWindowType(t *testing.T) {
	w := &lsbBitWriter{}
	w.bit(0)       // blockflag
	w.bits(1, 16)  // windowtype, must be 0
	w.bits(0, 16)  // transformtype
	w.bits(0, 8)   // mapping
	_, err := parseMode(newBitReader(w.buf))
	require.Error(t, err)
}

func TestParseModeReadsBlockFlagAndMapping(t *testing.T) {
	w := &lsbBitWriter{}
	w.bit(1)      // blockflag
	w.bits(0, 16) // windowtype
	w.bits(0, 16) // transformtype
	w.bits(3, 8)  // mapping
	mc, err := parseMode(newBitReader(w.buf))
	require.NoError(t, err)
	require.True(t, mc.blockFlag)
	require.Equal(t, 3, mc.mapping)
}

func TestMappingSubmapOfDefaultsToZero(t *testing.T) {
	mc := &mappingConfig{submaps: 1}
	require.Equal(t, 0, mc.submapOf(0))
	require.Equal(t, 0, mc.submapOf(1))
}

func TestMappingSubmapOfUsesMux(t *testing.T) {
	mc := &mappingConfig{submaps: 2, mux: []int{0, 1, 1}}
	require.Equal(t, 0, mc.submapOf(0))
	require.Equal(t, 1, mc.submapOf(1))
	require.Equal(t, 1, mc.submapOf(2))
}

func TestDecoupleChannelsPositiveAngle(t *testing.T) {
	mag := []float64{10}
	ang := []float64{4}
	decoupleChannels(mag, ang)
	require.Equal(t, float64(10), mag[0])
	require.Equal(t, float64(6), ang[0])
}

func TestDecoupleChannelsNonPositiveAngle(t *testing.T) {
	mag := []float64{10}
	ang := []float64{-4}
	decoupleChannels(mag, ang)
	require.Equal(t, float64(6), mag[0])
	require.Equal(t, float64(10), ang[0])
}

func TestRenderPointYInterpolatesLinearly(t *testing.T) {
	require.Equal(t, 50, renderPointY(0, 0, 100, 100, 50))
	require.Equal(t, 50, renderPointY(0, 100, 100, 0, 50))
}

func TestChannelStateResetClearsOverlapFirstFlag(t *testing.T) {
	cs := newChannelState(256, 2048)
	block := make([]float64, 256)
	for i := range block {
		block[i] = 1
	}
	out := make([]float64, 128)
	cs.overlapShort.Apply(block, out) // consumes the first-frame flag
	cs.reset()
	// After reset, Apply should again behave as a first frame (no addition
	// against stale tail data).
	out2 := make([]float64, 128)
	cs.overlapShort.Apply(block, out2)
	require.Equal(t, out, out2)
}

func TestDecoderFlushResetsChannelsAndPending(t *testing.T) {
	d := &Decoder{
		chans: []*channelState{newChannelState(256, 2048)},
	}
	d.eos = true
	d.Flush()
	require.False(t, d.eos)
	require.Nil(t, d.pending)
}

func TestDefaultLayoutChannelCounts(t *testing.T) {
	require.Equal(t, 1, defaultLayout(1).Channels())
	require.Equal(t, 2, defaultLayout(2).Channels())
	require.True(t, defaultLayout(6).Channels() >= 5)
}
