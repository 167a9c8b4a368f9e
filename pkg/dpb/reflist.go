package dpb

import "sort"

// ZeroRefPlaceholder is the sentinel Picture used to pad a reference list
// that came up short after modification (spec.md §4.8.4); callers should
// treat it as "do not dereference, use neutral-gray concealment" and bump
// their MissingReferenceFallbacks counter when they see it.
var ZeroRefPlaceholder = &Picture{Handle: -1}

// BuildDefaultL0P builds the default P-slice L0 list: short-term pictures
// sorted by decreasing frame_num_wrap, followed by long-term pictures sorted
// by increasing long_term_frame_idx (spec.md §4.8.4).
func BuildDefaultL0P(d *DPB) []*Picture {
	st := d.ShortTerm()
	sort.SliceStable(st, func(i, j int) bool { return st[i].FrameNumWrap > st[j].FrameNumWrap })
	lt := d.LongTerm()
	sort.SliceStable(lt, func(i, j int) bool { return lt[i].LongTermFrameIdx < lt[j].LongTermFrameIdx })
	return append(st, lt...)
}

// BuildDefaultB builds the default B-slice (L0, L1) lists: short-term
// entries split by POC relative to the current picture's POC, lower-POC
// pictures descending into L0 then higher-POC pictures ascending, with L1
// built symmetrically (spec.md §4.8.4); long-term entries are appended to
// both lists identically, sorted by increasing long_term_frame_idx.
func BuildDefaultB(d *DPB, curPOC int) (l0, l1 []*Picture) {
	st := d.ShortTerm()
	var lowerPOC, higherPOC []*Picture
	for _, p := range st {
		if p.POC < curPOC {
			lowerPOC = append(lowerPOC, p)
		} else {
			higherPOC = append(higherPOC, p)
		}
	}
	sort.SliceStable(lowerPOC, func(i, j int) bool { return lowerPOC[i].POC > lowerPOC[j].POC })
	sort.SliceStable(higherPOC, func(i, j int) bool { return higherPOC[i].POC < higherPOC[j].POC })

	lt := d.LongTerm()
	sort.SliceStable(lt, func(i, j int) bool { return lt[i].LongTermFrameIdx < lt[j].LongTermFrameIdx })

	l0 = append(append([]*Picture{}, lowerPOC...), higherPOC...)
	l0 = append(l0, lt...)

	l1 = append(append([]*Picture{}, higherPOC...), lowerPOC...)
	l1 = append(l1, lt...)
	return l0, l1
}

// ModOp is one ref_pic_list_modification operation (spec.md §4.8.4): kind 0
// subtracts from the running short-term pic-num predictor, kind 1 adds to
// it, kind 2 sets an explicit long-term pic num.
type ModOp struct {
	Kind  int // 0 = short-term subtract, 1 = short-term add, 2 = long-term set
	Value int
}

// ApplyModifications mutates list in place per the ref_pic_list_modification
// ops, each repositioning the resolved picture at the current list index and
// shifting the remainder (spec.md §4.8.4). findShortByPicNum and
// findLongByIdx resolve an op's target picture from the DPB.
func ApplyModifications(list []*Picture, ops []ModOp, maxFrameNum int, findShortByPicNum func(picNum int) *Picture, findLongByIdx func(idx int) *Picture) []*Picture {
	picNumPred := 0
	// picNumPred tracks the running predictor per 8.2.4.3.1; callers seed it
	// via the first op's semantics (CurrPicNum is threaded in by the H.264
	// slice-header layer, which knows frame_num and field parity).
	for _, op := range ops {
		var target *Picture
		switch op.Kind {
		case 0:
			picNumPred -= op.Value + 1
			if picNumPred < 0 {
				picNumPred += maxFrameNum
			}
			target = findShortByPicNum(picNumPred)
		case 1:
			picNumPred += op.Value + 1
			if picNumPred >= maxFrameNum {
				picNumPred -= maxFrameNum
			}
			target = findShortByPicNum(picNumPred)
		case 2:
			target = findLongByIdx(op.Value)
		}
		if target == nil {
			continue
		}
		list = moveToFrontShifting(list, target)
	}
	return list
}

// moveToFrontShifting removes target from wherever it appears in list (if at
// all) and reinserts it at index 0, shifting everything else down by one —
// matching 8.2.4.3.1's "repositions the entry at current list index and
// shifts the rest".
func moveToFrontShifting(list []*Picture, target *Picture) []*Picture {
	out := make([]*Picture, 0, len(list)+1)
	out = append(out, target)
	for _, p := range list {
		if p == target {
			continue
		}
		out = append(out, p)
	}
	if len(out) > len(list) {
		out = out[:len(list)]
	}
	return out
}

// PadTo pads list to length n with ZeroRefPlaceholder, returning the new
// list and the number of placeholders added (the caller adds this to its
// MissingReferenceFallbacks counter per spec.md §4.8.4).
func PadTo(list []*Picture, n int) ([]*Picture, int) {
	added := 0
	for len(list) < n {
		list = append(list, ZeroRefPlaceholder)
		added++
	}
	return list, added
}
