package vorbis

import "github.com/jmylchreest/mediacore/pkg/mediaerr"

const codebookSync = 0x564342

// codebook is one parsed Vorbis codebook (spec §3.2.1 "Residue/codebook
// decode setup"): a Huffman decode trie from codeword to entry index, plus
// an optional VQ value lookup table (lookup type 1 or 2) mapping an entry
// index to a dimension-length vector of reconstructed values.
//
// This does not reuse pkg/tables.VLC: that type's Decode method is hard-wired
// to pkg/bitio.Reader's MSB-first bit packing, while Vorbis codebooks are
// read against this package's own LSB-first bitReader (see bitreader.go); an
// adapter satisfying both concrete types would cost more than the small trie
// below.
type codebook struct {
	dimensions int
	entries    int
	trie       *huffNode // nil if the codebook has no codewords at all
	lookupType int
	valueList  [][]float64 // len(entries), each len(dimensions), nil if lookupType==0
}

type huffNode struct {
	leaf     bool
	value    int
	children [2]*huffNode
}

// parseCodebook reads one codebook descriptor from the setup header (spec
// §3.2.1).
func parseCodebook(r *bitReader) (*codebook, error) {
	sync, err := r.readBits(24)
	if err != nil {
		return nil, err
	}
	if sync != codebookSync {
		return nil, mediaerr.InvalidData("codebook_sync", sync, "vorbis: bad codebook sync pattern")
	}
	dims, err := r.readBits(16)
	if err != nil {
		return nil, err
	}
	entries, err := r.readBits(24)
	if err != nil {
		return nil, err
	}
	cb := &codebook{dimensions: int(dims), entries: int(entries)}

	lengths := make([]int, cb.entries) // 0 = unused entry
	ordered, err := r.readBit()
	if err != nil {
		return nil, err
	}
	if ordered == 0 {
		sparse, err := r.readBit()
		if err != nil {
			return nil, err
		}
		for i := 0; i < cb.entries; i++ {
			used := true
			if sparse == 1 {
				flag, err := r.readBit()
				if err != nil {
					return nil, err
				}
				used = flag == 1
			}
			if used {
				l, err := r.readBits(5)
				if err != nil {
					return nil, err
				}
				lengths[i] = int(l) + 1
			}
		}
	} else {
		curLen, err := r.readBits(5)
		if err != nil {
			return nil, err
		}
		length := int(curLen) + 1
		entry := 0
		for entry < cb.entries {
			bits := ilog(uint32(cb.entries - entry))
			num := 0
			if bits > 0 {
				n, err := r.readBits(bits)
				if err != nil {
					return nil, err
				}
				num = int(n)
			}
			if entry+num > cb.entries {
				return nil, mediaerr.InvalidDataf("vorbis: ordered codebook length overrun")
			}
			for i := 0; i < num; i++ {
				lengths[entry+i] = length
			}
			entry += num
			length++
		}
	}

	cb.trie = buildCanonicalTrie(lengths)

	lookupType, err := r.readBits(4)
	if err != nil {
		return nil, err
	}
	cb.lookupType = int(lookupType)
	switch cb.lookupType {
	case 0:
		// no lookup table; entries decode directly to an index
	case 1, 2:
		if err := cb.parseLookupTable(r); err != nil {
			return nil, err
		}
	default:
		return nil, mediaerr.Unsupported("vorbis: codebook lookup type %d unsupported", cb.lookupType)
	}
	return cb, nil
}

// buildCanonicalTrie assigns canonical Huffman codewords to a length list
// (spec §3.2.1 "assigning codewords": shortest codes first, in ascending
// entry order within a length, incrementing and left-shifting between
// lengths) and inserts each into a binary trie, MSB of the codeword first —
// the order codeword bits are conventionally written and the order entries
// are compared against the bitstream one bit at a time.
func buildCanonicalTrie(lengths []int) *huffNode {
	maxLen := 0
	for _, l := range lengths {
		if l > maxLen {
			maxLen = l
		}
	}
	if maxLen == 0 {
		return nil
	}
	root := &huffNode{}
	any := false
	code := uint32(0)
	for length := 1; length <= maxLen; length++ {
		for i, l := range lengths {
			if l != length {
				continue
			}
			insertHuff(root, code, length, i)
			any = true
			code++
		}
		code <<= 1
	}
	if !any {
		return nil
	}
	return root
}

func insertHuff(root *huffNode, code uint32, length, value int) {
	node := root
	for i := length - 1; i >= 0; i-- {
		bit := (code >> uint(i)) & 1
		if node.children[bit] == nil {
			node.children[bit] = &huffNode{}
		}
		node = node.children[bit]
	}
	node.leaf = true
	node.value = value
}

// parseLookupTable reads a VQ value-mapping table (spec §3.2.1 "VQ lookup
// table") for lookupType 1 (lattice, dimensions-th root of entries codewords
// reused across dimensions) or 2 (one codeword per entry).
func (cb *codebook) parseLookupTable(r *bitReader) error {
	minRaw, err := r.readBits(32)
	if err != nil {
		return err
	}
	deltaRaw, err := r.readBits(32)
	if err != nil {
		return err
	}
	minValue := float32Unpack(minRaw)
	deltaValue := float32Unpack(deltaRaw)
	valueBitsRaw, err := r.readBits(4)
	if err != nil {
		return err
	}
	valueBits := int(valueBitsRaw) + 1
	sequenceP, err := r.readBit()
	if err != nil {
		return err
	}

	var lookupValues int
	if cb.lookupType == 1 {
		lookupValues = lookup1Values(cb.entries, cb.dimensions)
	} else {
		lookupValues = cb.entries * cb.dimensions
	}
	multiplicands := make([]uint32, lookupValues)
	for i := range multiplicands {
		v, err := r.readBits(valueBits)
		if err != nil {
			return err
		}
		multiplicands[i] = v
	}

	cb.valueList = make([][]float64, cb.entries)
	for e := 0; e < cb.entries; e++ {
		vec := make([]float64, cb.dimensions)
		last := 0.0
		if cb.lookupType == 1 {
			indexDivisor := 1
			for d := 0; d < cb.dimensions; d++ {
				off := (e / indexDivisor) % lookupValues
				v := float64(multiplicands[off])*deltaValue + minValue + last
				if sequenceP == 1 {
					last = v
				}
				vec[d] = v
				indexDivisor *= lookupValues
			}
		} else {
			for d := 0; d < cb.dimensions; d++ {
				off := e*cb.dimensions + d
				v := float64(multiplicands[off])*deltaValue + minValue + last
				if sequenceP == 1 {
					last = v
				}
				vec[d] = v
			}
		}
		cb.valueList[e] = vec
	}
	return nil
}

// lookup1Values returns the largest integer value such that
// value^dimensions <= entries (spec §9.2.3).
func lookup1Values(entries, dimensions int) int {
	if dimensions <= 0 {
		return 0
	}
	v := 0
	for {
		next := v + 1
		p := 1
		overflow := false
		for i := 0; i < dimensions; i++ {
			p *= next
			if p > entries {
				overflow = true
				break
			}
		}
		if overflow {
			break
		}
		v = next
	}
	return v
}

// decode reads one Huffman codeword and returns its entry index.
func (cb *codebook) decode(r *bitReader) (int, error) {
	if cb.trie == nil {
		return 0, mediaerr.InvalidDataf("vorbis: codebook has no codewords")
	}
	node := cb.trie
	for {
		if node.leaf && node.children[0] == nil && node.children[1] == nil {
			return node.value, nil
		}
		bit, err := r.readBit()
		if err != nil {
			return 0, err
		}
		next := node.children[bit]
		if next == nil {
			return 0, mediaerr.InvalidDataf("vorbis: invalid codebook codeword")
		}
		node = next
		if node.leaf {
			return node.value, nil
		}
	}
}
