package avi

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/mediacore/pkg/mediaerr"
	"github.com/jmylchreest/mediacore/pkg/mediatype"
)

func chunk(id string, body []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(id)
	var sz [4]byte
	binary.LittleEndian.PutUint32(sz[:], uint32(len(body)))
	buf.Write(sz[:])
	buf.Write(body)
	if len(body)%2 == 1 {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func list(listType string, body []byte) []byte {
	return chunk("LIST", append([]byte(listType), body...))
}

func TestAVIProbeAndStreams(t *testing.T) {
	strf := make([]byte, 40)
	binary.LittleEndian.PutUint32(strf[4:], 320)
	binary.LittleEndian.PutUint32(strf[8:], 240)
	copy(strf[16:20], []byte("XVID"))

	strh := make([]byte, 8)
	copy(strh[0:4], []byte("vids"))
	copy(strh[4:8], []byte("XVID"))

	strl := list("strl", append(chunk("strh", strh), chunk("strf", strf)...))
	hdrl := list("hdrl", append(chunk("avih", make([]byte, 56)), strl...))

	videoData := []byte{0xAA, 0xBB, 0xCC}
	moviBody := chunk("00dc", videoData)
	movi := list("movi", moviBody)

	idxEntry := make([]byte, 16)
	copy(idxEntry[0:4], []byte("00dc"))
	binary.LittleEndian.PutUint32(idxEntry[4:], 0x10) // keyframe flag
	binary.LittleEndian.PutUint32(idxEntry[8:], 0)     // offset relative to movi body start, +8 for chunk header
	binary.LittleEndian.PutUint32(idxEntry[12:], uint32(len(videoData)))
	idx1 := chunk("idx1", idxEntry)

	riffBody := append(append([]byte("AVI "), hdrl...), movi...)
	riffBody = append(riffBody, idx1...)

	var stream bytes.Buffer
	stream.WriteString("RIFF")
	var sz [4]byte
	binary.LittleEndian.PutUint32(sz[:], uint32(len(riffBody)))
	stream.Write(sz[:])
	stream.Write(riffBody)

	io := newFakeIO(stream.Bytes())
	d := &Demuxer{}
	require.NoError(t, d.Open(io))
	require.Len(t, d.Streams(), 1)
	require.Equal(t, mediatype.CodecMPEG4Part2, d.Streams()[0].CodecID)
	require.Equal(t, 320, d.Streams()[0].Video.Width)
}

type fakeIO struct {
	data []byte
	pos  int
}

func newFakeIO(data []byte) *fakeIO { return &fakeIO{data: data} }

func (f *fakeIO) ReadExact(buf []byte) error {
	if f.pos+len(buf) > len(f.data) {
		return mediaerr.ErrEof
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
func (f *fakeIO) ReadU16LE() (uint16, error) {
	var b [2]byte
	err := f.ReadExact(b[:])
	return binary.LittleEndian.Uint16(b[:]), err
}
func (f *fakeIO) ReadU16BE() (uint16, error) { return 0, nil }
func (f *fakeIO) ReadU32LE() (uint32, error) {
	var b [4]byte
	err := f.ReadExact(b[:])
	return binary.LittleEndian.Uint32(b[:]), err
}
func (f *fakeIO) ReadU32BE() (uint32, error) { return 0, nil }
func (f *fakeIO) ReadTag() ([4]byte, error) {
	var b [4]byte
	err := f.ReadExact(b[:])
	return b, err
}
func (f *fakeIO) ReadBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	err := f.ReadExact(b)
	return b, err
}
func (f *fakeIO) Skip(n int64) error { f.pos += int(n); return nil }
func (f *fakeIO) Position() int64    { return int64(f.pos) }
func (f *fakeIO) Seek(w mediatype.SeekWhence, off int64) (int64, error) {
	f.pos = int(off)
	return off, nil
}
func (f *fakeIO) IsSeekable() bool { return true }

type fakeEOF struct{}

func (fakeEOF) Error() string { return "EOF" }
