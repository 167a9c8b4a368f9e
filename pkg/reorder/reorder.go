// Package reorder implements the POC-keyed picture reorder buffer shared by
// the H.264 and MPEG-4 Part 2 decoders (spec.md §3.6).
package reorder

import "container/heap"

// Entry is one buffered item, keyed by POC (or, for MPEG-4, display order
// index) for ordering.
type Entry struct {
	POC   int
	Value any
}

type minHeap []Entry

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].POC < h[j].POC }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)         { *h = append(*h, x.(Entry)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Buffer is a priority queue keyed by POC. On Push, once Len() >= depth, the
// lowest-POC entry is popped and returned for output (spec.md §3.6).
type Buffer struct {
	depth int
	h     minHeap
}

// New creates a reorder buffer with the given output depth (reorder_depth).
// depth <= 0 disables reordering: every push immediately pops.
func New(depth int) *Buffer {
	if depth < 0 {
		depth = 0
	}
	h := make(minHeap, 0, depth+1)
	return &Buffer{depth: depth, h: h}
}

// SetDepth adjusts reorder_depth mid-stream (e.g. after a PPS "Full" change
// recomputes sps.max_num_reorder_frames).
func (b *Buffer) SetDepth(depth int) {
	if depth < 0 {
		depth = 0
	}
	b.depth = depth
}

// Push inserts an entry. If the buffer has reached depth, it returns the
// lowest-POC entry to emit (ok=true); otherwise ok is false and the caller
// should not emit yet.
func (b *Buffer) Push(e Entry) (out Entry, ok bool) {
	heap.Push(&b.h, e)
	if b.h.Len() > b.depth {
		return heap.Pop(&b.h).(Entry), true
	}
	return Entry{}, false
}

// Len reports the number of buffered entries.
func (b *Buffer) Len() int { return b.h.Len() }

// Flush drains all buffered entries in ascending POC order (spec.md §3.6).
func (b *Buffer) Flush() []Entry {
	out := make([]Entry, 0, b.h.Len())
	for b.h.Len() > 0 {
		out = append(out, heap.Pop(&b.h).(Entry))
	}
	return out
}
