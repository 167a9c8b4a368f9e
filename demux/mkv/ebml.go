package mkv

import (
	"math"

	"github.com/jmylchreest/mediacore/pkg/mediaerr"
	"github.com/jmylchreest/mediacore/pkg/mediatype"
)

// unknownSize marks an EBML "size" VINT whose payload is all-ones (spec.md
// §4.2 "Unknown size is encoded as all-ones payload").
const unknownSize = ^uint64(0)

// readElementHeader reads one EBML (id VINT, size VINT) pair from an
// IoContext (spec.md §4.2 "A variable-length integer (VINT) starts with a
// 1-bit length marker... occupies 1..8 bytes").
func readElementHeader(io mediatype.IoContext) (uint32, uint64, error) {
	idBytes, n, err := readVintRaw(io, true)
	if err != nil {
		return 0, 0, err
	}
	id := uint32(0)
	for _, b := range idBytes[:n] {
		id = id<<8 | uint32(b)
	}
	size, err := readVintSize(io)
	if err != nil {
		return 0, 0, err
	}
	return id, size, nil
}

// readVintRaw reads an EBML VINT from io, returning the raw bytes with the
// marker bit left in place and the byte count. keepMarker is not consulted;
// readVintSize clears the marker itself.
func readVintRaw(io mediatype.IoContext, keepMarker bool) ([8]byte, int, error) {
	var buf [8]byte
	first, err := io.ReadU8()
	if err != nil {
		return buf, 0, err
	}
	length := vintLength(first)
	if length == 0 {
		return buf, 0, mediaerr.InvalidData("vint_marker", first, "no length marker bit set")
	}
	buf[0] = first
	if length > 1 {
		rest, err := io.ReadBytes(length - 1)
		if err != nil {
			return buf, 0, err
		}
		copy(buf[1:], rest)
	}
	return buf, length, nil
}

// readVintSize reads a size VINT and clears its marker bit, returning
// unknownSize if the payload is all-ones (spec.md §4.2).
func readVintSize(io mediatype.IoContext) (uint64, error) {
	raw, n, err := readVintRaw(io, false)
	if err != nil {
		return 0, err
	}
	first := raw[0]
	length := n
	marker := byte(0x80) >> uint(length-1)
	payloadFirst := first &^ marker
	allOnes := payloadFirst == (marker - 1)
	val := uint64(payloadFirst)
	for i := 1; i < length; i++ {
		val = val<<8 | uint64(raw[i])
		if raw[i] != 0xFF {
			allOnes = false
		}
	}
	if allOnes {
		return unknownSize, nil
	}
	return val, nil
}

// vintLength returns the VINT byte length encoded by the leading byte's
// marker bit position (1..8), or 0 if no marker bit is set.
func vintLength(first byte) int {
	for i := 0; i < 8; i++ {
		if first&(0x80>>uint(i)) != 0 {
			return i + 1
		}
	}
	return 0
}

// sliceReader reads EBML/VINT structures out of an in-memory byte slice
// (used for element bodies already fully buffered via io.ReadBytes).
type sliceReader struct {
	data []byte
	pos  int
}

func newSliceReader(data []byte) *sliceReader { return &sliceReader{data: data} }

func (r *sliceReader) empty() bool        { return r.pos >= len(r.data) }
func (r *sliceReader) remaining() int     { return len(r.data) - r.pos }

func (r *sliceReader) readBytes(n int) []byte {
	if r.pos+n > len(r.data) {
		n = len(r.data) - r.pos
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *sliceReader) readElementHeader() (uint32, uint64, bool) {
	if r.empty() {
		return 0, 0, false
	}
	first := r.data[r.pos]
	length := vintLength(first)
	if length == 0 || r.pos+length > len(r.data) {
		return 0, 0, false
	}
	idBytes := r.data[r.pos : r.pos+length]
	id := uint32(0)
	for _, b := range idBytes {
		id = id<<8 | uint32(b)
	}
	r.pos += length
	size, ok := r.readVintSizeSlice()
	if !ok {
		return 0, 0, false
	}
	return id, size, true
}

func (r *sliceReader) readVintSizeSlice() (uint64, bool) {
	if r.empty() {
		return 0, false
	}
	first := r.data[r.pos]
	length := vintLength(first)
	if length == 0 || r.pos+length > len(r.data) {
		return 0, false
	}
	marker := byte(0x80) >> uint(length-1)
	payloadFirst := first &^ marker
	allOnes := payloadFirst == (marker - 1)
	val := uint64(payloadFirst)
	for i := 1; i < length; i++ {
		b := r.data[r.pos+i]
		val = val<<8 | uint64(b)
		if b != 0xFF {
			allOnes = false
		}
	}
	r.pos += length
	if allOnes {
		return unknownSize, true
	}
	return val, true
}

// readVint reads a track-number VINT (marker bit cleared, per spec.md §4.2
// "the marker bit is cleared for size VINTs and retained for id VINTs" —
// the SimpleBlock track number is itself a size-flavoured VINT).
func (r *sliceReader) readVint() (uint64, bool) {
	return r.readVintSizeSlice()
}

func decodeUint(b []byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}

func decodeFloat(b []byte) float64 {
	if len(b) == 8 {
		return math.Float64frombits(decodeUint(b))
	}
	if len(b) == 4 {
		return float64(math.Float32frombits(uint32(decodeUint(b))))
	}
	return 0
}
