// Package mpeg4 implements the MPEG-4 Part 2 video decoder (spec.md
// §4.10): VOL/VOP parsing, the short-video-header (H.263 baseline) path,
// and per-macroblock I/P/B reconstruction.
package mpeg4

const (
	startCodeVOS      = 0xB0
	startCodeVOSEnd   = 0xB1
	startCodeUserData = 0xB2
	startCodeGOP      = 0xB3
	startCodeVO       = 0xB5
	startCodeVOP      = 0xB6
	startCodeVOLMin   = 0x20
	startCodeVOLMax   = 0x2F
)

// splitStartCodes scans data for `00 00 01 xx` boundaries (spec.md
// §4.10.1) and returns each segment as (startCode, payload), payload
// starting right after the 4-byte prefix and running to the next start
// code (or end of data).
func splitStartCodes(data []byte) []startCodeUnit {
	var out []startCodeUnit
	positions := findStartCodes(data)
	for i, pos := range positions {
		end := len(data)
		if i+1 < len(positions) {
			end = positions[i+1].offset
		}
		if pos.offset+4 > len(data) {
			continue
		}
		out = append(out, startCodeUnit{
			code:    data[pos.offset+3],
			payload: data[pos.offset+4 : end],
		})
	}
	return out
}

type startCodeUnit struct {
	code    byte
	payload []byte
}

type startCodePos struct{ offset int }

func findStartCodes(data []byte) []startCodePos {
	var out []startCodePos
	for i := 0; i+3 < len(data); i++ {
		if data[i] == 0 && data[i+1] == 0 && data[i+2] == 1 {
			out = append(out, startCodePos{offset: i})
		}
	}
	return out
}

// isShortHeader matches the H.263 short-video-header's fixed 22-bit PSC
// (`0000 0000 0000 0000 1000 00`, spec.md §4.10.1/§4.10.5), which overlaps
// the `00 00 01` Annex-B-style prefix space only by coincidence of leading
// zero bytes, so it is detected separately rather than folded into
// splitStartCodes.
func isShortHeader(data []byte) bool {
	if len(data) < 3 {
		return false
	}
	return data[0] == 0x00 && data[1] == 0x00 && (data[2]&0xFC) == 0x80
}
