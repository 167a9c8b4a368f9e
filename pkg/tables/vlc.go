// Package tables holds the static Huffman/VLC/CABAC-context tables, scan
// orders, and quantisation matrices every decoder needs (spec.md §2 "Table
// libraries"). All tables here are immutable static data, built once at
// package init and safely shared across decoder instances (spec.md §5
// "Shared resources").
package tables

import "github.com/jmylchreest/mediacore/pkg/bitio"

// VLCEntry is one (codeword, length) -> value mapping used to build a VLC
// decode trie.
type VLCEntry struct {
	Code   uint32
	Length uint8
	Value  int32
}

// VLC is a prefix-code decode table built from a list of (code, length,
// value) entries. Lookups walk a small binary trie bit by bit, which is
// simple, branch-predictable, and plenty fast for per-symbol decode rates in
// the low megahertz.
type VLC struct {
	root *vlcNode
	maxLen int
}

type vlcNode struct {
	value    int32
	isLeaf   bool
	children [2]*vlcNode
}

// NewVLC builds a VLC decode table from entries. Entries are not checked
// for prefix conflicts; behaviour is undefined if they do not form a valid
// prefix code.
func NewVLC(entries []VLCEntry) *VLC {
	v := &VLC{root: &vlcNode{}}
	for _, e := range entries {
		v.insert(e)
		if int(e.Length) > v.maxLen {
			v.maxLen = int(e.Length)
		}
	}
	return v
}

func (v *VLC) insert(e VLCEntry) {
	node := v.root
	for i := int(e.Length) - 1; i >= 0; i-- {
		bit := (e.Code >> uint(i)) & 1
		if node.children[bit] == nil {
			node.children[bit] = &vlcNode{}
		}
		node = node.children[bit]
	}
	node.isLeaf = true
	node.value = e.Value
}

// Decode reads bits one at a time from r until a leaf is reached, returning
// its value. Returns a *mediaerr.Error (via the Reader) if the bitstream
// underruns before a leaf is found.
func (v *VLC) Decode(r *bitio.Reader) (int32, error) {
	node := v.root
	for i := 0; i < v.maxLen+1; i++ {
		if node.isLeaf && node.children[0] == nil && node.children[1] == nil {
			return node.value, nil
		}
		bit, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		next := node.children[bit]
		if next == nil {
			return 0, errInvalidCode
		}
		node = next
		if node.isLeaf {
			return node.value, nil
		}
	}
	return 0, errInvalidCode
}

var errInvalidCode = vlcInvalidCodeErr{}

type vlcInvalidCodeErr struct{}

func (vlcInvalidCodeErr) Error() string { return "tables: invalid VLC code (no matching leaf)" }
