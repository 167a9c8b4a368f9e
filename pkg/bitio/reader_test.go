package bitio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/mediacore/pkg/mediaerr"
)

func TestReadBits(t *testing.T) {
	r := NewReader([]byte{0b10110100, 0b11110000})

	v, err := r.ReadBits(3)
	require.NoError(t, err)
	assert.Equal(t, uint32(0b101), v)

	v, err = r.ReadBits(5)
	require.NoError(t, err)
	assert.Equal(t, uint32(0b10100), v)

	v, err = r.ReadBits(8)
	require.NoError(t, err)
	assert.Equal(t, uint32(0b11110000), v)
}

func TestReadBitsUnderrun(t *testing.T) {
	r := NewReader([]byte{0xFF})
	_, err := r.ReadBits(9)
	require.Error(t, err)
	assert.True(t, mediaerr.IsKind(err, mediaerr.KindInvalidData))
}

func TestPeekBitsDoesNotAdvance(t *testing.T) {
	r := NewReader([]byte{0b10110100})
	peeked, err := r.PeekBits(4)
	require.NoError(t, err)
	assert.Equal(t, uint32(0b1011), peeked)

	read, err := r.ReadBits(4)
	require.NoError(t, err)
	assert.Equal(t, peeked, read)
}

func TestSnapshotRestore(t *testing.T) {
	r := NewReader([]byte{0xAB, 0xCD})
	_, _ = r.ReadBits(5)
	pos := r.SnapshotPosition()
	_, _ = r.ReadBits(3)
	r.RestorePosition(pos)
	assert.Equal(t, 5, r.BitsRead())
}

func TestAlignToByte(t *testing.T) {
	r := NewReader([]byte{0xFF, 0x00})
	_, _ = r.ReadBits(3)
	assert.Equal(t, 5, r.BitsToByteAlign())
	r.AlignToByte()
	assert.Equal(t, 8, r.BitsRead())
	r.AlignToByte()
	assert.Equal(t, 8, r.BitsRead())
}

func TestExpGolombUe(t *testing.T) {
	// ue(0)=1, ue(1)=010, ue(2)=011, ue(3)=00100, ue(4)=00101
	cases := []struct {
		bits []byte
		n    int
		want uint32
	}{
		{[]byte{0b1_0000000}, 1, 0},
		{[]byte{0b010_00000}, 3, 1},
		{[]byte{0b011_00000}, 3, 2},
		{[]byte{0b00100_000}, 5, 3},
		{[]byte{0b00101_000}, 5, 4},
	}
	for _, c := range cases {
		r := NewReader(c.bits)
		got, err := r.Ue()
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
		assert.Equal(t, c.n, r.BitsRead())
	}
}

func TestExpGolombSeRoundTrip(t *testing.T) {
	// se mapping: ue 0->se 0, ue1->se -1, ue2->se 1, ue3->se -2, ue4->se 2
	want := []int32{0, -1, 1, -2, 2}
	for ue, w := range want {
		// encode ue as Exp-Golomb manually: leading zeros = floor(log2(ue+1))
		code := encodeUe(uint32(ue))
		r := NewReader(code)
		got, err := r.Se()
		require.NoError(t, err)
		assert.Equal(t, w, got)
	}
}

func TestExpGolombOverLength(t *testing.T) {
	buf := make([]byte, 8)
	r := NewReader(buf)
	_, err := r.Ue()
	require.Error(t, err)
	assert.True(t, mediaerr.IsKind(err, mediaerr.KindInvalidData))
}

// encodeUe builds the canonical Exp-Golomb bit pattern for v, padded to a
// byte boundary with zero bits (harmless: Ue() stops once it has its code).
func encodeUe(v uint32) []byte {
	codeNum := v + 1
	nbits := 0
	for tmp := codeNum; tmp > 1; tmp >>= 1 {
		nbits++
	}
	total := nbits*2 + 1
	bw := newBitWriter()
	for i := 0; i < nbits; i++ {
		bw.writeBit(0)
	}
	for i := total - nbits - 1; i >= 0; i-- {
		bw.writeBit(byte((codeNum >> uint(i)) & 1))
	}
	return bw.bytes()
}

type bitWriter struct {
	buf     []byte
	cur     byte
	curBits int
}

func newBitWriter() *bitWriter { return &bitWriter{} }

func (w *bitWriter) writeBit(b byte) {
	w.cur = (w.cur << 1) | (b & 1)
	w.curBits++
	if w.curBits == 8 {
		w.buf = append(w.buf, w.cur)
		w.cur = 0
		w.curBits = 0
	}
}

func (w *bitWriter) bytes() []byte {
	if w.curBits > 0 {
		w.cur <<= uint(8 - w.curBits)
		w.buf = append(w.buf, w.cur)
		w.cur = 0
		w.curBits = 0
	}
	return w.buf
}
