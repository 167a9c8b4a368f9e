package vorbis

import (
	"math"

	"github.com/jmylchreest/mediacore/pkg/mediaerr"
)

// bitReader reads bits LSB-first, Vorbis's own packing convention (distinct
// from pkg/bitio's MSB-first convention used by every other decoder in this
// module: Vorbis packets pack the first-read bit into the result's least
// significant bit, not its most). It is deliberately a small, self-contained
// type rather than a second mode bolted onto pkg/bitio.Reader, which
// documents itself as single-purpose MSB-first.
type bitReader struct {
	data   []byte
	bitPos int
}

func newBitReader(data []byte) *bitReader {
	return &bitReader{data: data}
}

func (r *bitReader) bitsLeft() int { return len(r.data)*8 - r.bitPos }

// readBits reads an n-bit (0 <= n <= 32) unsigned integer, first-read bit as
// the result's LSB.
func (r *bitReader) readBits(n int) (uint32, error) {
	if n == 0 {
		return 0, nil
	}
	if r.bitsLeft() < n {
		return 0, mediaerr.InvalidData("n", n, "vorbis: bit underrun, %d bits remain", r.bitsLeft())
	}
	var v uint32
	for i := 0; i < n; i++ {
		byteIdx := r.bitPos / 8
		bitIdx := uint(r.bitPos % 8)
		bit := (r.data[byteIdx] >> bitIdx) & 1
		v |= uint32(bit) << uint(i)
		r.bitPos++
	}
	return v, nil
}

func (r *bitReader) readBit() (uint32, error) { return r.readBits(1) }

// ilog returns the position of the highest set bit, i.e. the number of bits
// required to represent v (ilog(0)=0, ilog(1)=1, ilog(2)=2, ilog(4)=3, ...),
// per the Vorbis spec's own definition used throughout header parsing.
func ilog(v uint32) int {
	n := 0
	for v > 0 {
		n++
		v >>= 1
	}
	return n
}

// float32Unpack decodes Vorbis's own 32-bit float packing (spec §9.2.2), not
// IEEE-754: 1 sign bit, 10 exponent bits (biased by 788), 21 mantissa bits.
func float32Unpack(x uint32) float64 {
	mantissa := float64(x & 0x1fffff)
	sign := x & 0x80000000
	exponent := int((x & 0x7fe00000) >> 21)
	if sign != 0 {
		mantissa = -mantissa
	}
	return math.Ldexp(mantissa, exponent-788)
}
