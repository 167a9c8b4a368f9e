// Package bitio implements the big-endian, MSB-first bit reader shared by
// every decoder (spec.md §4.1). It operates over a borrowed byte slice,
// never allocates on the hot path, and never panics: underrun is reported as
// a *mediaerr.Error of KindInvalidData.
package bitio

import (
	"encoding/binary"

	"github.com/jmylchreest/mediacore/pkg/mediaerr"
)

// Reader reads bits MSB-first from a borrowed byte slice.
type Reader struct {
	data    []byte
	bitPos  int // absolute bit position from the start of data
	bitsLen int
}

// NewReader wraps buf for bit-level reading. buf is not copied or retained
// beyond the Reader's lifetime assumptions (callers must not mutate it while
// the Reader is in use).
func NewReader(buf []byte) *Reader {
	return &Reader{data: buf, bitsLen: len(buf) * 8}
}

// Position is an opaque bit-cursor token returned by SnapshotPosition and
// accepted by RestorePosition.
type Position int

// BitsLeft returns the number of unread bits.
func (r *Reader) BitsLeft() int { return r.bitsLen - r.bitPos }

// BitsRead returns the number of bits consumed so far.
func (r *Reader) BitsRead() int { return r.bitPos }

// BytePosition returns the byte offset containing the next unread bit.
func (r *Reader) BytePosition() int { return r.bitPos / 8 }

// SnapshotPosition captures the current bit cursor.
func (r *Reader) SnapshotPosition() Position { return Position(r.bitPos) }

// RestorePosition resets the bit cursor to a previously captured Position.
func (r *Reader) RestorePosition(p Position) { r.bitPos = int(p) }

func (r *Reader) underrun(field string, n int) error {
	return mediaerr.InvalidData(field, n, "bit underrun: need %d bits, %d remain", n, r.BitsLeft())
}

// ReadBit reads a single bit.
func (r *Reader) ReadBit() (uint32, error) {
	return r.ReadBits(1)
}

// ReadBits reads an n-bit (1 <= n <= 32) unsigned integer MSB-first.
func (r *Reader) ReadBits(n int) (uint32, error) {
	if n < 1 || n > 32 {
		return 0, mediaerr.InvalidData("n", n, "read_bits: n out of range")
	}
	if r.BitsLeft() < n {
		return 0, r.underrun("read_bits", n)
	}
	var v uint32
	remaining := n
	pos := r.bitPos
	for remaining > 0 {
		byteIdx := pos / 8
		bitOff := pos % 8
		avail := 8 - bitOff
		take := avail
		if take > remaining {
			take = remaining
		}
		b := r.data[byteIdx]
		shift := avail - take
		mask := byte((1 << uint(take)) - 1)
		bits := (b >> uint(shift)) & mask
		v = (v << uint(take)) | uint32(bits)
		remaining -= take
		pos += take
	}
	r.bitPos = pos
	return v, nil
}

// PeekBits reads n bits (1 <= n <= 32) without advancing the cursor.
func (r *Reader) PeekBits(n int) (uint32, error) {
	save := r.bitPos
	v, err := r.ReadBits(n)
	r.bitPos = save
	return v, err
}

// ReadU8 reads one byte; must be byte-aligned.
func (r *Reader) ReadU8() (byte, error) {
	v, err := r.ReadBits(8)
	return byte(v), err
}

// AlignToByte advances the cursor to the next byte boundary (no-op if
// already aligned).
func (r *Reader) AlignToByte() {
	if r.bitPos%8 != 0 {
		r.bitPos += 8 - (r.bitPos % 8)
	}
}

// BitsToByteAlign returns how many bits AlignToByte would consume.
func (r *Reader) BitsToByteAlign() int {
	rem := r.bitPos % 8
	if rem == 0 {
		return 0
	}
	return 8 - rem
}

// readAlignedBytes reads n bytes, requiring byte alignment.
func (r *Reader) readAlignedBytes(n int) ([]byte, error) {
	if r.bitPos%8 != 0 {
		return nil, mediaerr.InvalidDataf("read requires byte alignment, at bit %d", r.bitPos)
	}
	start := r.bitPos / 8
	if start+n > len(r.data) {
		return nil, r.underrun("read_bytes", n*8)
	}
	out := r.data[start : start+n]
	r.bitPos += n * 8
	return out, nil
}

// ReadU16BE reads a big-endian 16-bit value (byte-aligned).
func (r *Reader) ReadU16BE() (uint16, error) {
	b, err := r.readAlignedBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadU16LE reads a little-endian 16-bit value (byte-aligned).
func (r *Reader) ReadU16LE() (uint16, error) {
	b, err := r.readAlignedBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadU32BE reads a big-endian 32-bit value (byte-aligned).
func (r *Reader) ReadU32BE() (uint32, error) {
	b, err := r.readAlignedBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadU32LE reads a little-endian 32-bit value (byte-aligned).
func (r *Reader) ReadU32LE() (uint32, error) {
	b, err := r.readAlignedBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Ue decodes an Exp-Golomb unsigned code. Leading-zero run is capped at 31;
// longer runs are reported as over-length (spec.md §4.1).
func (r *Reader) Ue() (uint32, error) {
	leadingZeros := 0
	for {
		b, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		if b == 1 {
			break
		}
		leadingZeros++
		if leadingZeros > 31 {
			return 0, mediaerr.InvalidData("ue_leading_zeros", leadingZeros, "exp-golomb code over-length")
		}
	}
	if leadingZeros == 0 {
		return 0, nil
	}
	suffix, err := r.ReadBits(leadingZeros)
	if err != nil {
		return 0, err
	}
	return (1 << uint(leadingZeros)) - 1 + suffix, nil
}

// Se decodes a signed Exp-Golomb code: se(v) = v==0 ? 0 : (v even ? -(v/2) : (v+1)/2).
func (r *Reader) Se() (int32, error) {
	v, err := r.Ue()
	if err != nil {
		return 0, err
	}
	if v%2 == 0 {
		return -int32(v / 2), nil
	}
	return int32((v + 1) / 2), nil
}
