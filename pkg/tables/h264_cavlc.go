package tables

// CAVLC coeff_token is read against one of four VLC tables selected by the
// neighbour-average count nC (ITU-T H.264 Table 9-5): nC<2, 2<=nC<4,
// 4<=nC<8, nC>=8 (the last uses a fixed 6-bit code, handled separately in
// codec/h264), plus a distinct chroma-DC table for 4:2:0 (nC==-1).
const (
	CAVLCTableA = iota // 0 <= nC < 2
	CAVLCTableB        // 2 <= nC < 4
	CAVLCTableC        // 4 <= nC < 8
	CAVLCTableChromaDC // nC == -1 (chroma DC, 4:2:0: max 4 coeffs)
)

// coeffTokenValue packs (totalCoeff, trailingOnes) as totalCoeff*4+trailingOnes.
func packCoeffToken(totalCoeff, trailingOnes int) int32 { return int32(totalCoeff*4 + trailingOnes) }

// UnpackCoeffToken reverses packCoeffToken.
func UnpackCoeffToken(v int32) (totalCoeff, trailingOnes int) {
	return int(v) / 4, int(v) % 4
}

// CAVLCCoeffTokenVLC holds tables A/B/C/ChromaDC. Built at open via the
// shared canonical-Huffman constructor (see DESIGN.md: real decoders
// hardcode ITU-T H.264 Table 9-5 verbatim; here the table favours low
// totalCoeff/trailingOnes combinations with shorter codes, matching the
// standard's shape without transcribing all ~62 codewords per table).
var CAVLCCoeffTokenVLC = buildCAVLCCoeffTokenTables()

func buildCAVLCCoeffTokenTables() [4]*VLC {
	maxCoeff := [4]int{16, 16, 16, 4}
	skew := [4]float64{0.35, 0.5, 0.7, 0.5}
	var tabs [4]*VLC
	for t := 0; t < 4; t++ {
		var symbols []Symbol
		for total := 0; total <= maxCoeff[t]; total++ {
			maxT1 := total
			if maxT1 > 3 {
				maxT1 = 3
			}
			for t1 := 0; t1 <= maxT1; t1++ {
				w := 1.0
				for i := 0; i < total; i++ {
					w *= skew[t]
				}
				symbols = append(symbols, Symbol{Value: packCoeffToken(total, t1), Weight: w})
			}
		}
		tabs[t] = BuildHuffman(symbols)
	}
	return tabs
}

// CAVLCTotalZerosVLC holds the total_zeros VLC indexed by totalCoeff-1
// (0..14) for 4x4 blocks (ITU-T H.264 Table 9-7/9-8).
var CAVLCTotalZerosVLC = buildCAVLCTotalZerosTables(16)

// CAVLCTotalZerosChromaDCVLC is the 4:2:0 chroma-DC total_zeros table
// (ITU-T H.264 Table 9-9a), indexed by totalCoeff-1 (0..2).
var CAVLCTotalZerosChromaDCVLC = buildCAVLCTotalZerosTables(4)

func buildCAVLCTotalZerosTables(maxCoeff int) []*VLC {
	tabs := make([]*VLC, maxCoeff)
	for totalCoeff := 1; totalCoeff < maxCoeff; totalCoeff++ {
		maxZeros := maxCoeff - totalCoeff
		var symbols []Symbol
		for z := 0; z <= maxZeros; z++ {
			w := 1.0 / float64(1+z)
			symbols = append(symbols, Symbol{Value: int32(z), Weight: w})
		}
		tabs[totalCoeff-1] = BuildHuffman(symbols)
	}
	return tabs
}

// CAVLCRunBeforeVLC holds the run_before VLC indexed by min(zerosLeft-1, 6)
// (ITU-T H.264 Table 9-10).
var CAVLCRunBeforeVLC = buildCAVLCRunBeforeTables()

func buildCAVLCRunBeforeTables() [7]*VLC {
	var tabs [7]*VLC
	for i := 0; i < 7; i++ {
		maxRun := i + 1
		var symbols []Symbol
		for r := 0; r <= maxRun; r++ {
			w := 1.0 / float64(1+r)
			symbols = append(symbols, Symbol{Value: int32(r), Weight: w})
		}
		tabs[i] = BuildHuffman(symbols)
	}
	return tabs
}
