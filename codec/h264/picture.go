package h264

// picture is one reconstructed frame's pixel storage, in 4:2:0 planar
// layout. It backs both the picture pool indexed by dpb.Picture.Handle and
// the frames handed to pkg/reorder.
type picture struct {
	handle int
	width  int
	height int
	y      []uint8
	u      []uint8
	v      []uint8
	yStride int
	cStride int

	poc      int
	frameNum int
}

func newPicture(handle, width, height int) *picture {
	cw, ch := width/2, height/2
	return &picture{
		handle:  handle,
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
	cw, ch := p.width/2, p.height/2
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
