package dpb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestSlidingWindowEviction mirrors spec.md §8 scenario 2: max_reference_frames=2,
// references with frame_num in {10, 2} are present, then a new reference with
// frame_num=3 is stored; the entry with frame_num_wrap=-6 (from frame_num=10,
// wrapped against log2_max_frame_num=4 => 16) must be evicted, leaving {2, 3}.
func TestSlidingWindowEviction(t *testing.T) {
	d := New(2)
	d.Insert(&Picture{Handle: 1, FrameNum: 10, FrameNumWrap: 10 - 16, IsReference: true})
	d.Insert(&Picture{Handle: 2, FrameNum: 2, FrameNumWrap: 2, IsReference: true})

	d.Insert(&Picture{Handle: 3, FrameNum: 3, FrameNumWrap: 3, IsReference: true})

	assert.Equal(t, 2, d.Len())
	var frameNums []int
	for _, p := range d.Pictures() {
		frameNums = append(frameNums, p.FrameNum)
	}
	assert.ElementsMatch(t, []int{2, 3}, frameNums)
}

func TestLongTermNeverEvictedBySlidingWindow(t *testing.T) {
	d := New(1)
	d.Insert(&Picture{Handle: 1, FrameNum: 0, IsLongTerm: true, LongTermFrameIdx: 0})
	d.Insert(&Picture{Handle: 2, FrameNum: 1, FrameNumWrap: 1})

	assert.Equal(t, 1, len(d.LongTerm()))
}

func TestMMCOConvertShortToLong(t *testing.T) {
	d := New(4)
	d.Insert(&Picture{Handle: 1, FrameNum: 5, FrameNumWrap: 5})
	ok := d.ConvertShortToLong(5, 0)
	assert.True(t, ok)
	assert.Equal(t, 1, len(d.LongTerm()))
	assert.Equal(t, 0, len(d.ShortTerm()))
}

func TestBuildDefaultL0PSortedByDecreasingFrameNumWrap(t *testing.T) {
	d := New(8)
	d.Insert(&Picture{Handle: 1, FrameNumWrap: 3})
	d.Insert(&Picture{Handle: 2, FrameNumWrap: 7})
	d.Insert(&Picture{Handle: 3, FrameNumWrap: 5})

	list := BuildDefaultL0P(d)
	var wraps []int
	for _, p := range list {
		wraps = append(wraps, p.FrameNumWrap)
	}
	assert.Equal(t, []int{7, 5, 3}, wraps)
}

func TestPadToAddsPlaceholders(t *testing.T) {
	list := []*Picture{{Handle: 1}}
	padded, added := PadTo(list, 3)
	assert.Equal(t, 3, len(padded))
	assert.Equal(t, 2, added)
	assert.Same(t, ZeroRefPlaceholder, padded[1])
}
