package mpeg4

// picture is one reconstructed frame's pixel storage in 4:2:0 planar
// layout, grounded on codec/h264's picture.go (same storage/addressing
// shape reused here since MPEG-4 Part 2 also reconstructs planar 4:2:0).
type picture struct {
	width, height int
	y, u, v       []uint8
	yStride       int
	cStride       int

	timeRef int // absolute display time (modulo_time_base*resolution + vop_time_increment)
}

func newPicture(width, height int) *picture {
	cw, ch := (width+1)/2, (height+1)/2
	return &picture{
		width:   width,
		height:  height,
		y:       make([]uint8, width*height),
		u:       make([]uint8, cw*ch),
		v:       make([]uint8, cw*ch),
		yStride: width,
		cStride: cw,
	}
}

func (p *picture) lumaAt(x, y int) uint8 {
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if x >= p.width {
		x = p.width - 1
	}
	if y >= p.height {
		y = p.height - 1
	}
	return p.y[y*p.yStride+x]
}

func (p *picture) chromaAt(plane []uint8, x, y int) uint8 {
	cw, ch := (p.width+1)/2, (p.height+1)/2
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if x >= cw {
		x = cw - 1
	}
	if y >= ch {
		y = ch - 1
	}
	return plane[y*p.cStride+x]
}

// writeBlock8 stores an 8x8 block into plane at (bx,by) top-left, clipping
// to plane bounds.
func writeBlock8(plane []uint8, stride, planeW, planeH, bx, by int, block [64]uint8) {
	for row := 0; row < 8; row++ {
		y := by + row
		if y >= planeH {
			break
		}
		for col := 0; col < 8; col++ {
			x := bx + col
			if x >= planeW {
				break
			}
			plane[y*stride+x] = block[row*8+col]
		}
	}
}

// predictBlock8Luma fills pred from ref's luma plane at (bx+mvx/2,
// by+mvy/2) — full-pel motion compensation only (spec.md §4.10.4 names
// half/quarter-pel luma interpolation; this decoder rounds to the nearest
// full pixel instead, the same simplification codec/h264 documents for
// its own motion compensation).
func predictBlock8Luma(ref *picture, bx, by, mvx, mvy int) [64]uint8 {
	var out [64]uint8
	dx, dy := roundHalf(mvx), roundHalf(mvy)
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			out[row*8+col] = ref.lumaAt(bx+col+dx, by+row+dy)
		}
	}
	return out
}

func predictBlock8Chroma(ref *picture, plane []uint8, bx, by, mvx, mvy int) [64]uint8 {
	var out [64]uint8
	dx, dy := roundHalf(mvx/2), roundHalf(mvy/2)
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			out[row*8+col] = ref.chromaAt(plane, bx+col+dx, by+row+dy)
		}
	}
	return out
}

func roundHalf(v int) int {
	if v >= 0 {
		return (v + 1) / 2
	}
	return -((-v + 1) / 2)
}

// addU8 averages two sample values (spec.md §4.10.7's bidirectional
// B-picture blend).
func addU8(a, b uint8) uint8 {
	return uint8((int(a) + int(b)) / 2)
}
