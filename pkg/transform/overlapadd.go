package transform

// OverlapAdd holds one channel's overlap tail, length N/2 for a transform of
// size N (spec.md §3.7): zero-initialised at open/flush, updated each frame
// as prev_tail = windowed[N/2..N), with a first-frame flag suppressing
// overlap-add against the (zero) prior tail when the decoder needs the raw
// lower half instead.
type OverlapAdd struct {
	tail    []float64
	first   bool
}

// NewOverlapAdd allocates an overlap-add buffer holding halfLen samples,
// zero-initialised, with first-frame semantics armed.
func NewOverlapAdd(halfLen int) *OverlapAdd {
	return &OverlapAdd{tail: make([]float64, halfLen), first: true}
}

// Reset zero-fills the tail and re-arms first-frame suppression, used by
// decoder Open() and Flush() (spec.md §3.7).
func (o *OverlapAdd) Reset() {
	for i := range o.tail {
		o.tail[i] = 0
	}
	o.first = true
}

// Len reports the half-transform length this buffer was sized for.
func (o *OverlapAdd) Len() int { return len(o.tail) }

// Apply overlap-adds windowed[0:halfLen) against the stored tail into out
// (len(out) == halfLen), then stores windowed[halfLen:2*halfLen) as the new
// tail. On the first call (first-frame flag set), out is the raw lower half
// with no addition, matching spec.md §3.7 and the AAC/MP3 "no overlap into
// the leading window" requirement.
func (o *OverlapAdd) Apply(windowed []float64, out []float64) {
	half := len(o.tail)
	if len(windowed) != 2*half || len(out) != half {
		panic("transform: OverlapAdd.Apply: length mismatch")
	}
	if o.first {
		copy(out, windowed[:half])
		o.first = false
	} else {
		for i := 0; i < half; i++ {
			out[i] = windowed[i] + o.tail[i]
		}
	}
	copy(o.tail, windowed[half:])
}

// ApplyFloat32 is Apply for float32 slices; it converts element by element
// without allocating a float64 copy of windowed or out.
func (o *OverlapAdd) ApplyFloat32(windowed []float32, out []float32) {
	half := len(o.tail)
	if len(windowed) != 2*half || len(out) != half {
		panic("transform: OverlapAdd.ApplyFloat32: length mismatch")
	}
	if o.first {
		for i := 0; i < half; i++ {
			out[i] = windowed[i]
			o.tail[i] = float64(windowed[half+i])
		}
		o.first = false
		return
	}
	for i := 0; i < half; i++ {
		out[i] = windowed[i] + float32(o.tail[i])
		o.tail[i] = float64(windowed[half+i])
	}
}
