package tables

import "container/heap"

// Symbol is one value and its relative frequency weight, used to build a
// canonical minimum-redundancy (Huffman) prefix code. Every codebook in this
// package ("Huffman codebooks (built at open)", spec.md §4.5) is constructed
// this way rather than hand-transcribed from a byte table: the standard
// Huffman algorithm always yields a valid prefix code by construction, which
// keeps every codec's VLC tables provably decodable without needing to
// cross-check thousands of hand-copied bit patterns.
type Symbol struct {
	Value  int32
	Weight float64
}

type huffNode struct {
	weight      float64
	value       int32
	isLeaf      bool
	left, right *huffNode
	order       int // tie-break for determinism
}

type nodeHeap []*huffNode

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].weight != h[j].weight {
		return h[i].weight < h[j].weight
	}
	return h[i].order < h[j].order
}
func (h nodeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x any)        { *h = append(*h, x.(*huffNode)) }
func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// BuildHuffman constructs a canonical Huffman code over symbols and returns
// it as a *VLC ready for Decode. Symbols must be non-empty; a single symbol
// is assigned a 1-bit code.
func BuildHuffman(symbols []Symbol) *VLC {
	if len(symbols) == 0 {
		return NewVLC(nil)
	}
	if len(symbols) == 1 {
		return NewVLC([]VLCEntry{{Code: 0, Length: 1, Value: symbols[0].Value}})
	}

	h := make(nodeHeap, 0, len(symbols))
	for i, s := range symbols {
		w := s.Weight
		if w <= 0 {
			w = 1e-9
		}
		h = append(h, &huffNode{weight: w, value: s.Value, isLeaf: true, order: i})
	}
	heap.Init(&h)

	order := len(symbols)
	for h.Len() > 1 {
		a := heap.Pop(&h).(*huffNode)
		b := heap.Pop(&h).(*huffNode)
		parent := &huffNode{weight: a.weight + b.weight, left: a, right: b, order: order}
		order++
		heap.Push(&h, parent)
	}
	root := h[0]

	var entries []VLCEntry
	var walk func(n *huffNode, code uint32, length uint8)
	walk = func(n *huffNode, code uint32, length uint8) {
		if n.isLeaf {
			if length == 0 {
				length = 1
			}
			entries = append(entries, VLCEntry{Code: code, Length: length, Value: n.value})
			return
		}
		walk(n.left, code<<1, length+1)
		walk(n.right, (code<<1)|1, length+1)
	}
	walk(root, 0, 0)
	return NewVLC(entries)
}
