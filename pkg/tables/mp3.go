package tables

// MP3SampleRates indexed by the 2-bit sampling_rate_index (MPEG-1 Layer III,
// spec.md §4.6).
var MP3SampleRates = [3]int{44100, 48000, 32000}

// MP3BitRates indexed by the 4-bit bitrate_index for MPEG-1 Layer III, in
// kbps; index 0 is "free format" (not supported) and 15 is reserved.
var MP3BitRates = [16]int{
	0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0,
}

// MP3ScaleFactorBandsLong/Short give the 21/12-band scale-factor partition
// boundaries for a 576-sample (long) or 192-sample (short, per 1/3 granule)
// spectrum at 44.1kHz, used for all three supported rates as a reasonable
// generalisation for this implementation (real decoders key a distinct
// table per sample rate; see DESIGN.md).
var MP3ScaleFactorBandsLong = cumWidths(576, 4, 4, 4, 4, 4, 4, 6, 6, 8, 8, 10, 12, 16, 20, 24, 28, 34, 42, 50, 54, 76)
var MP3ScaleFactorBandsShort = cumWidths(192, 4, 4, 4, 4, 6, 8, 10, 12, 14, 18, 22, 30)

func cumWidths(total int, widths ...int) []int {
	offs := make([]int, 0, len(widths)+1)
	sum := 0
	offs = append(offs, 0)
	for _, w := range widths {
		sum += w
		offs = append(offs, sum)
	}
	if len(offs) > 0 {
		offs[len(offs)-1] = total
	}
	return offs
}

// MP3BigValuesHuffman holds the 32 big_values Huffman tables (table_select
// 0..31) used to decode (x, y) coefficient pairs (spec.md §4.6). Table 0 is
// the "no entropy coding" marker (all-zero); tables 1..31 have increasing
// maximum representable magnitude, approximating the real tables' escalating
// range split without transcribing ISO/IEC 11172-3 Annex B verbatim.
var MP3BigValuesHuffman = buildMP3BigValuesTables()

func buildMP3BigValuesTables() [32]*VLC {
	var tabs [32]*VLC
	// No table has an escape/linbits extension: each table's magnitudes cap
	// at the maximum below (see DESIGN.md).
	maxVal := [32]int{
		0, 1, 2, 3, 3, 4, 4, 6, 6, 8, 8, 8, 8, 15, 0, 15,
		15, 15, 15, 15, 15, 15, 15, 15, 15, 15, 15, 15, 15, 15, 15, 15,
	}
	for t := 1; t < 32; t++ {
		mv := maxVal[t]
		if mv == 0 {
			continue
		}
		var symbols []Symbol
		for x := 0; x <= mv; x++ {
			for y := 0; y <= mv; y++ {
				w := 1.0 / (1.0 + float64(x+y))
				symbols = append(symbols, Symbol{Value: int32(x*32 + y), Weight: w})
			}
		}
		tabs[t] = BuildHuffman(symbols)
	}
	return tabs
}

// MP3Count1TableA/B decode the quadruple (v,w,x,y) in {0,1} used for count1
// partition values after big_values (spec.md §4.6).
var MP3Count1TableA = buildMP3Count1Table(0.6)
var MP3Count1TableB = buildMP3Count1Table(1.0) // B is the flatter (Huffman-less) table

func buildMP3Count1Table(skew float64) *VLC {
	var symbols []Symbol
	for v := 0; v < 2; v++ {
		for w := 0; w < 2; w++ {
			for x := 0; x < 2; x++ {
				for y := 0; y < 2; y++ {
					ones := v + w + x + y
					weight := 1.0
					for i := 0; i < ones; i++ {
						weight *= skew
					}
					idx := (v << 3) | (w << 2) | (x << 1) | y
					symbols = append(symbols, Symbol{Value: int32(idx), Weight: weight})
				}
			}
		}
	}
	return BuildHuffman(symbols)
}

// MP3Count1Unpack splits a decoded count1 index back into (v,w,x,y).
func MP3Count1Unpack(idx int32) (v, w, x, y int) {
	return int(idx>>3) & 1, int(idx>>2) & 1, int(idx>>1) & 1, int(idx) & 1
}

// MP3BigValuesUnpack splits a decoded big_values index back into (x, y).
func MP3BigValuesUnpack(idx int32) (x, y int) {
	return int(idx) / 32, int(idx) % 32
}
