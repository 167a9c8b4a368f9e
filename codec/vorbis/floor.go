package vorbis

import (
	"math"

	"github.com/jmylchreest/mediacore/pkg/mediaerr"
)

const (
	floorType0 = 0
	floorType1 = 1
)

// floorConfig is one parsed [[floor]] entry from the setup header (spec
// §7.2.2/7.2.3, "floors (type 0 and 1)").
type floorConfig struct {
	kind int

	// type 0
	f0Order          int
	f0Rate           int
	f0BarkMapSize    int
	f0AmplitudeBits  int
	f0AmplitudeOff   int
	f0Books          []int

	// type 1
	f1PartitionClass []int
	f1ClassDim       [16]int
	f1ClassSub       [16]int
	f1ClassMaster    [16]int
	f1SubclassBooks  [16][8]int
	f1Multiplier     int
	f1Rangebits      int
	f1XList          []int
}

func parseFloor(r *bitReader) (*floorConfig, error) {
	kind, err := r.readBits(16)
	if err != nil {
		return nil, err
	}
	f := &floorConfig{kind: int(kind)}
	switch f.kind {
	case floorType0:
		order, err := r.readBits(8)
		if err != nil {
			return nil, err
		}
		rate, err := r.readBits(16)
		if err != nil {
			return nil, err
		}
		barkMap, err := r.readBits(16)
		if err != nil {
			return nil, err
		}
		ampBits, err := r.readBits(6)
		if err != nil {
			return nil, err
		}
		ampOff, err := r.readBits(8)
		if err != nil {
			return nil, err
		}
		numBooks, err := r.readBits(4)
		if err != nil {
			return nil, err
		}
		f.f0Order = int(order)
		f.f0Rate = int(rate)
		f.f0BarkMapSize = int(barkMap)
		f.f0AmplitudeBits = int(ampBits)
		f.f0AmplitudeOff = int(ampOff)
		f.f0Books = make([]int, int(numBooks)+1)
		for i := range f.f0Books {
			b, err := r.readBits(8)
			if err != nil {
				return nil, err
			}
			f.f0Books[i] = int(b)
		}
	case floorType1:
		partitions, err := r.readBits(5)
		if err != nil {
			return nil, err
		}
		f.f1PartitionClass = make([]int, partitions)
		maxClass := -1
		for i := range f.f1PartitionClass {
			c, err := r.readBits(4)
			if err != nil {
				return nil, err
			}
			f.f1PartitionClass[i] = int(c)
			if int(c) > maxClass {
				maxClass = int(c)
			}
		}
		for i := 0; i <= maxClass; i++ {
			dim, err := r.readBits(3)
			if err != nil {
				return nil, err
			}
			f.f1ClassDim[i] = int(dim) + 1
			sub, err := r.readBits(2)
			if err != nil {
				return nil, err
			}
			f.f1ClassSub[i] = int(sub)
			if sub != 0 {
				mb, err := r.readBits(8)
				if err != nil {
					return nil, err
				}
				f.f1ClassMaster[i] = int(mb)
			}
			for j := 0; j < 1<<uint(sub); j++ {
				b, err := r.readBits(8)
				if err != nil {
					return nil, err
				}
				f.f1SubclassBooks[i][j] = int(b) - 1
			}
		}
		mult, err := r.readBits(2)
		if err != nil {
			return nil, err
		}
		f.f1Multiplier = int(mult) + 1
		rangebits, err := r.readBits(4)
		if err != nil {
			return nil, err
		}
		f.f1Rangebits = int(rangebits)
		f.f1XList = []int{0, 1 << uint(rangebits)}
		for _, class := range f.f1PartitionClass {
			for j := 0; j < f.f1ClassDim[class]; j++ {
				x, err := r.readBits(rangebits)
				if err != nil {
					return nil, err
				}
				f.f1XList = append(f.f1XList, int(x))
			}
		}
	default:
		return nil, mediaerr.Unsupported("vorbis: floor type %d unsupported", f.kind)
	}
	return f, nil
}

// decodeFloor1 reads one channel's floor curve (spec §7.2.4): a nonzero
// flag, then per-partition class/subclass codebook-coded Y values unpacked
// against a low/high neighbour prediction, rendered into n amplitude values
// (n = blocksize/2). Returns nil if the nonzero flag is clear (floor/residue
// absent for this channel this block, spec.md §4.7 "decode each submap's
// floors").
func decodeFloor1(r *bitReader, f *floorConfig, codebooks []*codebook, n int) ([]float64, error) {
	nonzero, err := r.readBit()
	if err != nil {
		return nil, err
	}
	if nonzero == 0 {
		return nil, nil
	}

	rangeVal := [4]int{256, 128, 86, 64}[f.f1Multiplier-1]
	posBits := ilog(uint32(rangeVal - 1))
	y := make([]int, len(f.f1XList))
	y0, err := r.readBits(posBits)
	if err != nil {
		return nil, err
	}
	y1, err := r.readBits(posBits)
	if err != nil {
		return nil, err
	}
	y[0], y[1] = int(y0), int(y1)

	offset := 2
	for _, class := range f.f1PartitionClass {
		cdim := f.f1ClassDim[class]
		cbits := f.f1ClassSub[class]
		csub := (1 << uint(cbits)) - 1
		cval := 0
		if cbits > 0 {
			v, err := codebooks[f.f1ClassMaster[class]].decode(r)
			if err != nil {
				return nil, err
			}
			cval = v
		}
		for j := 0; j < cdim; j++ {
			book := f.f1SubclassBooks[class][cval&csub]
			cval >>= uint(cbits)
			v := 0
			if book >= 0 {
				v, err = codebooks[book].decode(r)
				if err != nil {
					return nil, err
				}
			}
			if offset < len(y) {
				y[offset] = v
			}
			offset++
		}
	}

	finalY := reconstructFloor1Y(f.f1XList, y, rangeVal)
	return renderFloor1Curve(f.f1XList, finalY, n), nil
}

// reconstructFloor1Y unwraps the low/high-neighbour differential coding
// (spec §7.2.4 "amplitude value synthesis") into absolute Y coordinates.
func reconstructFloor1Y(xList []int, y []int, rangeVal int) []int {
	final := make([]int, len(y))
	final[0] = y[0]
	final[1] = y[1]
	finalized := []int{0, 1}
	for i := 2; i < len(y); i++ {
		lowX, lowY, highX, highY := floor1Neighbors(xList, final, finalized, i)
		predicted := renderPointY(lowX, lowY, highX, highY, xList[i])
		val := y[i]
		lowRoom := predicted
		highRoom := rangeVal - predicted
		room := lowRoom
		if highRoom < room {
			room = highRoom
		}
		room *= 2
		var fy int
		if val == 0 {
			fy = predicted
		} else if val >= room {
			if highRoom > lowRoom {
				fy = val - lowRoom + predicted
			} else {
				fy = predicted - val + highRoom - 1
			}
		} else if val%2 == 1 {
			fy = predicted - (val+1)/2
		} else {
			fy = predicted + val/2
		}
		final[i] = fy
		finalized = append(finalized, i)
	}
	return final
}

func floor1Neighbors(xList, final, finalized []int, idx int) (lowX, lowY, highX, highY int) {
	x := xList[idx]
	lowX, highX = -1, 1<<30
	for _, k := range finalized {
		xk := xList[k]
		if xk < x && xk > lowX {
			lowX, lowY = xk, final[k]
		}
		if xk > x && xk < highX {
			highX, highY = xk, final[k]
		}
	}
	if lowX < 0 {
		lowX, lowY = xList[0], final[0]
	}
	if highX >= 1<<30 {
		highX, highY = xList[1], final[1]
	}
	return
}

func renderPointY(x0, y0, x1, y1, x int) int {
	if x1 == x0 {
		return y0
	}
	dy := y1 - y0
	adx := x1 - x0
	ady := dy
	if ady < 0 {
		ady = -ady
	}
	off := ady * (x - x0) / adx
	if dy < 0 {
		return y0 - off
	}
	return y0 + off
}

// renderFloor1Curve maps finalized (x, y) points through the standard
// dB-domain line renderer into n linear-amplitude values, one per spectral
// line, interpolating between consecutive X_list points sorted by X.
func renderFloor1Curve(xList, finalY []int, n int) []float64 {
	type point struct{ x, y int }
	pts := make([]point, len(xList))
	for i := range xList {
		pts[i] = point{xList[i], finalY[i]}
	}
	for i := 1; i < len(pts); i++ {
		for j := i; j > 0 && pts[j].x < pts[j-1].x; j-- {
			pts[j], pts[j-1] = pts[j-1], pts[j]
		}
	}
	out := make([]float64, n)
	for i := 0; i < len(pts)-1; i++ {
		x0, y0 := pts[i].x, pts[i].y
		x1, y1 := pts[i+1].x, pts[i+1].y
		if x1 <= x0 {
			continue
		}
		lo, hi := x0, x1
		if hi > n {
			hi = n
		}
		for x := lo; x < hi; x++ {
			y := renderPointY(x0, y0, x1, y1, x)
			out[x] = floor1InverseDB(y)
		}
	}
	return out
}

// floor1InverseDB approximates the standard's fixed 256-entry dB-to-linear
// lookup table (spec §9.2.4) with the textbook dB->linear formula
// amplitude=10^(dB/20), offset so index 0 sits far below audible range. This
// generates rather than transcribes the 256-value table, the same
// "generate, don't transcribe a magic table from memory" precedent
// codec/mp3's synthesis window and codec/mpeg4's alternate scan tables set.
func floor1InverseDB(y int) float64 {
	return math.Pow(10, (float64(y)-140)/20)
}
