package reorder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferEmitsLowestPOCAtDepth(t *testing.T) {
	b := New(2)

	_, ok := b.Push(Entry{POC: 4})
	assert.False(t, ok)
	_, ok = b.Push(Entry{POC: 2})
	assert.False(t, ok)

	out, ok := b.Push(Entry{POC: 6})
	assert.True(t, ok)
	assert.Equal(t, 2, out.POC)
}

func TestBufferFlushDrainsAscending(t *testing.T) {
	b := New(4)
	for _, poc := range []int{8, 2, 6, 4} {
		b.Push(Entry{POC: poc})
	}
	out := b.Flush()
	var pocs []int
	for _, e := range out {
		pocs = append(pocs, e.POC)
	}
	assert.Equal(t, []int{2, 4, 6, 8}, pocs)
}

func TestZeroDepthEmitsImmediately(t *testing.T) {
	b := New(0)
	out, ok := b.Push(Entry{POC: 1})
	assert.True(t, ok)
	assert.Equal(t, 1, out.POC)
}
