// Package dpb implements the H.264 decoded-picture-buffer (spec.md §3.5):
// reference-picture storage, sliding-window/MMCO eviction, and reference
// list construction. It is a leaf package with no dependency on the rest of
// codec/h264 so it can be unit tested against the MMCO scenarios in
// spec.md §8 directly.
package dpb

// Picture is one reference (or non-reference, while being decoded) frame's
// bookkeeping. Y/U/V planes and per-macroblock motion fields live on the
// concrete codec/h264 picture type; dpb only needs the fields relevant to
// marking, eviction, and list construction, referenced by an opaque handle.
type Picture struct {
	Handle int // opaque index into the owning decoder's picture pool

	FrameNum         int
	FrameNumWrap     int // frame_num_wrap, computed at store time
	POC              int
	IsLongTerm       bool
	LongTermFrameIdx int // meaningful only if IsLongTerm
	IsReference      bool

	// TopPOC/BottomPOC support field pictures; for frame pictures both equal
	// POC (field decoding itself is Unsupported per spec.md §4.8.1, but the
	// fields are threaded through so POC math stays uniform).
	TopPOC    int
	BottomPOC int
}

// DPB holds reference pictures, short-term and long-term alike, under a
// single capacity bound (spec.md §3.5): at most MaxReferenceFrames entries,
// short-term entries never carry a LongTermFrameIdx, and at most one
// long-term entry exists per LongTermFrameIdx value.
type DPB struct {
	MaxReferenceFrames int
	pics               []*Picture
}

// New creates an empty DPB bounded to maxRef entries.
func New(maxRef int) *DPB {
	if maxRef < 1 {
		maxRef = 1
	}
	return &DPB{MaxReferenceFrames: maxRef}
}

// Pictures returns the current reference set (short-term and long-term).
func (d *DPB) Pictures() []*Picture { return d.pics }

// ShortTerm returns only short-term entries.
func (d *DPB) ShortTerm() []*Picture {
	var out []*Picture
	for _, p := range d.pics {
		if !p.IsLongTerm {
			out = append(out, p)
		}
	}
	return out
}

// LongTerm returns only long-term entries.
func (d *DPB) LongTerm() []*Picture {
	var out []*Picture
	for _, p := range d.pics {
		if p.IsLongTerm {
			out = append(out, p)
		}
	}
	return out
}

// Clear empties the DPB (IDR path, spec.md §4.8.5).
func (d *DPB) Clear() { d.pics = nil }

// Len returns the current occupancy.
func (d *DPB) Len() int { return len(d.pics) }

// Insert adds p, evicting the shortest frame_num_wrap short-term entry under
// sliding-window semantics if the DPB is already at capacity (spec.md
// §4.8.5 "Sliding window"). Long-term entries are never evicted by this
// path.
func (d *DPB) Insert(p *Picture) {
	if len(d.pics) >= d.MaxReferenceFrames {
		d.evictSlidingWindow()
	}
	d.pics = append(d.pics, p)
}

func (d *DPB) evictSlidingWindow() {
	idx := -1
	min := 0
	for i, p := range d.pics {
		if p.IsLongTerm {
			continue
		}
		if idx == -1 || p.FrameNumWrap < min {
			idx = i
			min = p.FrameNumWrap
		}
	}
	if idx >= 0 {
		d.removeAt(idx)
	}
}

func (d *DPB) removeAt(idx int) {
	d.pics = append(d.pics[:idx], d.pics[idx+1:]...)
}

// ForgetShortByFrameNumWrap removes the short-term entry whose FrameNumWrap
// equals frameNumWrap (MMCO op 1, spec.md §4.8.5); the caller resolves the
// difference_of_pic_nums to that value. It reports whether an entry was removed.
func (d *DPB) ForgetShortByFrameNumWrap(frameNumWrap int) bool {
	for i, p := range d.pics {
		if !p.IsLongTerm && p.FrameNumWrap == frameNumWrap {
			d.removeAt(i)
			return true
		}
	}
	return false
}

// ForgetLongByIdx removes the long-term entry at the given long_term_pic_num
// / long_term_frame_idx (MMCO op 2, spec.md §4.8.5).
func (d *DPB) ForgetLongByIdx(idx int) bool {
	for i, p := range d.pics {
		if p.IsLongTerm && p.LongTermFrameIdx == idx {
			d.removeAt(i)
			return true
		}
	}
	return false
}

// ConvertShortToLong converts the short-term entry with the given
// frame_num_wrap to long-term at longTermIdx, first removing any existing
// long-term entry at that index (MMCO op 3, spec.md §4.8.5).
func (d *DPB) ConvertShortToLong(frameNumWrap, longTermIdx int) bool {
	d.ForgetLongByIdx(longTermIdx)
	for _, p := range d.pics {
		if !p.IsLongTerm && p.FrameNumWrap == frameNumWrap {
			p.IsLongTerm = true
			p.LongTermFrameIdx = longTermIdx
			return true
		}
	}
	return false
}

// TrimMaxLongTermIdx evicts long-term entries whose LongTermFrameIdx exceeds
// maxIdx (MMCO op 4, spec.md §4.8.5).
func (d *DPB) TrimMaxLongTermIdx(maxIdx int) {
	kept := d.pics[:0]
	for _, p := range d.pics {
		if p.IsLongTerm && p.LongTermFrameIdx > maxIdx {
			continue
		}
		kept = append(kept, p)
	}
	d.pics = kept
}

// MarkCurrentLongTerm converts the picture with the given handle to
// long-term at longTermIdx (MMCO op 6 / IDR long_term_reference_flag,
// spec.md §4.8.5).
func (d *DPB) MarkCurrentLongTerm(handle, longTermIdx int) {
	for _, p := range d.pics {
		if p.Handle == handle {
			p.IsLongTerm = true
			p.LongTermFrameIdx = longTermIdx
			return
		}
	}
}
