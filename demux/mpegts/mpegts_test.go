package mpegts

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/mediacore/pkg/mediatype"
)

func tsPad(payload []byte) []byte {
	pkt := make([]byte, packetSize)
	copy(pkt, payload)
	for i := len(payload); i < packetSize; i++ {
		pkt[i] = 0xFF
	}
	return pkt
}

func buildPAT() []byte {
	section := []byte{
		0x00,       // table id
		0xB0, 0x0D, // section_syntax_indicator + section_length = 13
		0x00, 0x01, // transport_stream_id
		0xC1,       // version/current_next
		0x00, 0x00, // section_number/last_section_number
		0x00, 0x01, // program_number = 1
		0xE1, 0x00, // reserved bits + PMT PID = 0x100
		0, 0, 0, 0, // CRC placeholder
	}
	payload := append([]byte{0x00}, section...) // pointer_field
	header := []byte{0x47, 0x40, 0x00, 0x10}     // PUSI=1, PID=0x0000
	return tsPad(append(header, payload...))
}

func buildPMT() []byte {
	section := []byte{
		0x02,
		0xB0, 0x17,
		0x00, 0x01,
		0xC1,
		0x00, 0x00,
		0xE1, 0x00, // PCR PID
		0xF0, 0x00, // program_info_length = 0
		0x1B, 0xE1, 0x01, 0xF0, 0x00, // H.264, PID 0x101
		0x0F, 0xE1, 0x02, 0xF0, 0x00, // AAC, PID 0x102
		0, 0, 0, 0,
	}
	payload := append([]byte{0x00}, section...)
	header := []byte{0x47, 0x41, 0x00, 0x10} // PUSI=1, PID=0x100
	return tsPad(append(header, payload...))
}

func buildVideoPESStart(pts int64, payload []byte) []byte {
	ts := encodeTimestamp(0x2, pts)
	pes := []byte{0x00, 0x00, 0x01, 0xE0, 0x00, 0x00, 0x80, 0x80, 0x05}
	pes = append(pes, ts...)
	pes = append(pes, payload...)
	header := []byte{0x47, 0x40 | 0x01, 0x01, 0x30} // PUSI=1 PID=0x101, AFC=11 (adaptation field + payload)
	// adaptation_field_length covers the flags byte plus 0xFF stuffing, so
	// the PES ends exactly at the end of the 188-byte packet.
	stuffing := packetSize - len(header) - 2 - len(pes)
	af := []byte{byte(1 + stuffing), 0x40} // random_access=1
	for i := 0; i < stuffing; i++ {
		af = append(af, 0xFF)
	}
	full := append(header, af...)
	full = append(full, pes...)
	return tsPad(full)
}

func buildAudioPESStart(pts int64, payload []byte) []byte {
	ts := encodeTimestamp(0x2, pts)
	pes := []byte{0x00, 0x00, 0x01, 0xC0, 0x00, 0x00, 0x80, 0x80, 0x05}
	pes = append(pes, ts...)
	pes = append(pes, payload...)
	header := []byte{0x47, 0x41, 0x02, 0x10} // PUSI=1 PID=0x102
	full := append(header, pes...)
	return tsPad(full)
}

func encodeTimestamp(prefix byte, pts int64) []byte {
	b := make([]byte, 5)
	b[0] = (prefix << 4) | byte((pts>>29)&0x0E) | 0x01
	b[1] = byte(pts >> 22)
	b[2] = byte((pts>>14)&0xFE) | 0x01
	b[3] = byte(pts >> 7)
	b[4] = byte((pts<<1)&0xFE) | 0x01
	return b
}

type fakeIO struct {
	data []byte
	pos  int
}

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
func (f *fakeIO) Skip(n int64) error                                      { f.pos += int(n); return nil }
func (f *fakeIO) Position() int64                                         { return int64(f.pos) }
func (f *fakeIO) Seek(w mediatype.SeekWhence, off int64) (int64, error)   { f.pos = int(off); return off, nil }
func (f *fakeIO) IsSeekable() bool                                        { return true }

type fakeEOF struct{}

func (fakeEOF) Error() string { return "EOF" }

func TestPESReassembly(t *testing.T) {
	var stream []byte
	stream = append(stream, buildPAT()...)
	stream = append(stream, buildPMT()...)
	stream = append(stream, buildVideoPESStart(90000, []byte{0xDE, 0xAD, 0xBE, 0xEF})...)
	stream = append(stream, buildAudioPESStart(90000, []byte{0xCA, 0xFE, 0xBA, 0xBE})...)
	stream = append(stream, buildVideoPESStart(93600, []byte{0x11, 0x22, 0x33})...)

	io := &fakeIO{data: stream}
	d := &Demuxer{}
	require.NoError(t, d.Open(io))
	require.Len(t, d.Streams(), 2)

	pkt, err := d.ReadPacket(io)
	require.NoError(t, err)
	require.Equal(t, int64(90000), pkt.Pts)
	require.True(t, pkt.IsKeyframe)
	require.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, pkt.Payload)
}
