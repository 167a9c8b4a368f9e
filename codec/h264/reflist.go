package h264

import (
	"sort"

	"github.com/jmylchreest/mediacore/pkg/dpb"
)

// buildRefList0 constructs the initial (pre-modification) RefPicList0 for a
// P or B slice (spec.md §4.8.4): P slices order short-term refs by
// decreasing FrameNumWrap, then long-term refs by increasing
// LongTermFrameIdx; B slices order short-term refs by POC (those below the
// current POC descending, then those above ascending), then long-term refs
// by increasing LongTermFrameIdx.
func buildRefList0(d *dpb.DPB, curPOC int, isB bool) []*dpb.Picture {
	short := append([]*dpb.Picture(nil), d.ShortTerm()...)
	long := append([]*dpb.Picture(nil), d.LongTerm()...)

	if !isB {
		sort.Slice(short, func(i, j int) bool { return short[i].FrameNumWrap > short[j].FrameNumWrap })
	} else {
		var before, after []*dpb.Picture
		for _, p := range short {
			if p.POC < curPOC {
				before = append(before, p)
			} else {
				after = append(after, p)
			}
		}
		sort.Slice(before, func(i, j int) bool { return before[i].POC > before[j].POC })
		sort.Slice(after, func(i, j int) bool { return after[i].POC < after[j].POC })
		short = append(before, after...)
	}
	sort.Slice(long, func(i, j int) bool { return long[i].LongTermFrameIdx < long[j].LongTermFrameIdx })
	return append(short, long...)
}

// buildRefList1 constructs the initial RefPicList1 for a B slice: short-term
// refs above curPOC ascending, then short-term refs below curPOC descending,
// then long-term refs by increasing LongTermFrameIdx (spec.md §4.8.4). If
// RefPicList1 would be identical to RefPicList0 and has more than one entry,
// the first two entries are swapped.
func buildRefList1(d *dpb.DPB, curPOC int, list0 []*dpb.Picture) []*dpb.Picture {
	short := append([]*dpb.Picture(nil), d.ShortTerm()...)
	long := append([]*dpb.Picture(nil), d.LongTerm()...)

	var before, after []*dpb.Picture
	for _, p := range short {
		if p.POC < curPOC {
			before = append(before, p)
		} else {
			after = append(after, p)
		}
	}
	sort.Slice(after, func(i, j int) bool { return after[i].POC < after[j].POC })
	sort.Slice(before, func(i, j int) bool { return before[i].POC > before[j].POC })
	short = append(after, before...)
	sort.Slice(long, func(i, j int) bool { return long[i].LongTermFrameIdx < long[j].LongTermFrameIdx })
	list1 := append(short, long...)

	if len(list1) > 1 && sameOrder(list0, list1) {
		list1[0], list1[1] = list1[1], list1[0]
	}
	return list1
}

func sameOrder(a, b []*dpb.Picture) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Handle != b[i].Handle {
			return false
		}
	}
	return true
}

// applyRefListModification applies ref_pic_list_modification operations to
// an initial list, per spec.md §4.8.4: op 0/1 reorder by a short-term
// pic_num predicted via a running pred value, op 2 inserts a long-term
// picture by long_term_pic_num. missingRefFallbacks counts modification
// steps that named a picture absent from the DPB, which are skipped rather
// than failing the whole decode (spec.md's "missing_reference_fallbacks"
// counter).
func applyRefListModification(list []*dpb.Picture, ops []refListModOp, curFrameNum, maxFrameNum, numRefIdxActive int, missingRefFallbacks *int) []*dpb.Picture {
	if len(ops) == 0 {
		return padList(list, numRefIdxActive, missingRefFallbacks)
	}
	out := append([]*dpb.Picture(nil), list...)
	predPicNum := curFrameNum
	refIdx := 0
	for _, op := range ops {
		var target *dpb.Picture
		switch op.op {
		case 0, 1:
			absDiff := op.val + 1
			var picNum int
			if op.op == 0 {
				picNum = predPicNum - absDiff
				if picNum < 0 {
					picNum += maxFrameNum
				}
			} else {
				picNum = predPicNum + absDiff
				if picNum >= maxFrameNum {
					picNum -= maxFrameNum
				}
			}
			predPicNum = picNum
			target = findShortByPicNum(out, picNum, curFrameNum, maxFrameNum)
		case 2:
			target = findLongByIdx(out, op.val)
		}
		if target == nil {
			*missingRefFallbacks++
			continue
		}
		out = insertAndShift(out, target, refIdx, numRefIdxActive)
		refIdx++
	}
	return padList(out, numRefIdxActive, missingRefFallbacks)
}

func findShortByPicNum(list []*dpb.Picture, picNum, curFrameNum, maxFrameNum int) *dpb.Picture {
	for _, p := range list {
		if p.IsLongTerm {
			continue
		}
		fn := p.FrameNum
		if fn > curFrameNum {
			fn -= maxFrameNum
		}
		if fn == picNum || (picNum-maxFrameNum) == fn {
			return p
		}
	}
	return nil
}

func findLongByIdx(list []*dpb.Picture, idx int) *dpb.Picture {
	for _, p := range list {
		if p.IsLongTerm && p.LongTermFrameIdx == idx {
			return p
		}
	}
	return nil
}

// insertAndShift moves target to position refIdx in the list, shifting the
// remaining entries down and dropping anything past numRefIdxActive.
func insertAndShift(list []*dpb.Picture, target *dpb.Picture, refIdx, numRefIdxActive int) []*dpb.Picture {
	filtered := make([]*dpb.Picture, 0, len(list))
	for _, p := range list {
		if p != target {
			filtered = append(filtered, p)
		}
	}
	out := make([]*dpb.Picture, 0, len(list)+1)
	out = append(out, filtered[:min(refIdx, len(filtered))]...)
	out = append(out, target)
	out = append(out, filtered[min(refIdx, len(filtered)):]...)
	if len(out) > numRefIdxActive {
		out = out[:numRefIdxActive]
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// padList trims or pads list to exactly n entries. A short list is padded by
// repeating the last available entry (spec.md's zero-reference-padding
// fallback); an empty list increments missingRefFallbacks and is left short,
// since there is no picture to repeat.
func padList(list []*dpb.Picture, n int, missingRefFallbacks *int) []*dpb.Picture {
	if len(list) >= n {
		return list[:n]
	}
	if len(list) == 0 {
		*missingRefFallbacks++
		return list
	}
	out := append([]*dpb.Picture(nil), list...)
	for len(out) < n {
		out = append(out, out[len(out)-1])
	}
	return out
}
