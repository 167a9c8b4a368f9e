package mkv

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/mediacore/pkg/mediatype"
)

// vint encodes n in an EBML VINT of the given byte length with the marker
// bit set (used for both id and size VINTs in these fixtures).
func vint(n uint64, length int) []byte {
	b := make([]byte, length)
	marker := byte(0x80) >> uint(length-1)
	b[0] = marker
	for i := length - 1; i >= 0; i-- {
		b[i] |= byte(n & 0xFF)
		n >>= 8
	}
	return b
}

func elem(id []byte, body []byte) []byte {
	out := append([]byte{}, id...)
	out = append(out, vint(uint64(len(body)), 1)...)
	return append(out, body...)
}

func TestMinimalMatroska(t *testing.T) {
	docTypeBody := []byte("matroska")
	ebmlHeader := elem([]byte{0x42, 0x82}, docTypeBody) // DocType
	ebml := elem([]byte{0x1A, 0x45, 0xDF, 0xA3}, ebmlHeader)

	info := elem([]byte{0x2A, 0xD7, 0xB1}, []byte{0x0F, 0x42, 0x40}) // TimecodeScale=1_000_000
	info = append(info, elem([]byte{0x44, 0x89}, []byte{0x45, 0x9C, 0x40, 0x00})...) // Duration (float32 5000.0)
	infoElem := elem([]byte{0x15, 0x49, 0xA9, 0x66}, info)

	track1 := elem([]byte{0xD7}, []byte{0x01})                  // TrackNumber=1
	track1 = append(track1, elem([]byte{0x83}, []byte{0x01})...) // TrackType=video
	track1 = append(track1, elem([]byte{0x86}, []byte("V_VP9"))...)
	track1Entry := elem([]byte{0xAE}, track1)

	track2 := elem([]byte{0xD7}, []byte{0x02})
	track2 = append(track2, elem([]byte{0x83}, []byte{0x02})...) // audio
	track2 = append(track2, elem([]byte{0x86}, []byte("A_OPUS"))...)
	track2Entry := elem([]byte{0xAE}, track2)

	tracksBody := append(track1Entry, track2Entry...)
	tracksElem := elem([]byte{0x16, 0x54, 0xAE, 0x6B}, tracksBody)

	simpleBlock1Body := append(vint(1, 1), []byte{0x00, 0x00, 0x80}...)
	simpleBlock1Body = append(simpleBlock1Body, []byte{0xDE, 0xAD}...)
	simpleBlock1 := elem([]byte{0xA3}, simpleBlock1Body)

	simpleBlock2Body := append(vint(2, 1), []byte{0x00, 0x00, 0x80}...)
	simpleBlock2Body = append(simpleBlock2Body, []byte{0xBE, 0xEF, 0xCA, 0xFE}...)
	simpleBlock2 := elem([]byte{0xA3}, simpleBlock2Body)

	timestampElem := elem([]byte{0xE7}, []byte{0x00})
	clusterBody := append(timestampElem, simpleBlock1...)
	clusterBody = append(clusterBody, simpleBlock2...)
	clusterElem := elem([]byte{0x1F, 0x43, 0xB6, 0x75}, clusterBody)

	segmentBody := append(infoElem, tracksElem...)
	segmentBody = append(segmentBody, clusterElem...)
	segmentElem := append(append([]byte{}, []byte{0x18, 0x53, 0x80, 0x67}...), vint(uint64(len(segmentBody)), 4)...)
	segmentElem = append(segmentElem, segmentBody...)

	var stream []byte
	stream = append(stream, ebml...)
	stream = append(stream, segmentElem...)

	io := newFakeIO(stream)
	d := &Demuxer{}
	require.NoError(t, d.Open(io))
	require.Len(t, d.Streams(), 2)

	pkt1, err := d.ReadPacket(io)
	require.NoError(t, err)
	require.Equal(t, []byte{0xDE, 0xAD}, pkt1.Payload)
	require.Equal(t, 0, pkt1.StreamIndex)

	pkt2, err := d.ReadPacket(io)
	require.NoError(t, err)
	require.Equal(t, []byte{0xBE, 0xEF, 0xCA, 0xFE}, pkt2.Payload)
	require.Equal(t, 1, pkt2.StreamIndex)

	dur, ok := d.Duration()
	require.True(t, ok)
	require.InDelta(t, 5.0, dur, 0.01)
}

type fakeIO struct {
	data []byte
	pos  int
}

func newFakeIO(data []byte) *fakeIO { return &fakeIO{data: data} }

func (f *fakeIO) ReadExact(buf []byte) error {
	if f.pos+len(buf) > len(f.data) {
		return fakeEOF{}
	}
	copy(buf, f.data[f.pos:f.pos+len(buf)])
	f.pos += len(buf)
	return nil
}
func (f *fakeIO) ReadU8() (byte, error) {
	var b [1]byte
	err := f.ReadExact(b[:])
	return b[0], err
}
func (f *fakeIO) ReadU16LE() (uint16, error) { return 0, nil }
func (f *fakeIO) ReadU16BE() (uint16, error) { return 0, nil }
func (f *fakeIO) ReadU32LE() (uint32, error) { return 0, nil }
func (f *fakeIO) ReadU32BE() (uint32, error) { return 0, nil }
func (f *fakeIO) ReadTag() ([4]byte, error)  { return [4]byte{}, nil }
func (f *fakeIO) ReadBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	err := f.ReadExact(b)
	return b, err
}
func (f *fakeIO) Skip(n int64) error                                    { f.pos += int(n); return nil }
func (f *fakeIO) Position() int64                                       { return int64(f.pos) }
func (f *fakeIO) Seek(w mediatype.SeekWhence, off int64) (int64, error) { f.pos = int(off); return off, nil }
func (f *fakeIO) IsSeekable() bool                                      { return true }

type fakeEOF struct{}

func (fakeEOF) Error() string { return "EOF" }
