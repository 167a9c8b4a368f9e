package mp3

import (
	"github.com/jmylchreest/mediacore/pkg/bitio"
	"github.com/jmylchreest/mediacore/pkg/mediaerr"
	"github.com/jmylchreest/mediacore/pkg/transform"
)

// decodeFrame runs one complete MPEG-1 Layer III frame (spec.md §4.6's full
// granule pipeline) and returns samplesPerFrame PCM samples per channel, or
// nil if the bit reservoir has not yet accumulated enough history to decode
// this frame (a normal occurrence for the first 1-2 frames of a stream).
func (d *Decoder) decodeFrame(hdr *frameHeader, raw []byte) ([][]float32, error) {
	headerLen := 4
	crcLen := 0
	if raw[1]&0x01 == 0 { // protection_bit == 0 means a CRC follows
		crcLen = 2
	}
	sideLen := hdr.sideInfoLen()
	dataStart := headerLen + crcLen
	if len(raw) < dataStart+sideLen {
		return nil, mediaerr.InvalidDataf("mp3: frame too short for side info")
	}
	si, err := parseSideInfo(raw[dataStart:dataStart+sideLen], hdr.channels)
	if err != nil {
		return nil, err
	}

	mainData := raw[dataStart+sideLen:]
	oldLen := len(d.reservoir)
	d.reservoir = append(d.reservoir, mainData...)

	startByte := oldLen - si.mainDataBegin
	if startByte < 0 {
		d.trimReservoir()
		return nil, nil // bit reservoir still warming up
	}

	r := bitio.NewReader(d.reservoir[startByte:])

	out := make([][]float32, hdr.channels)
	for ch := range out {
		out[ch] = make([]float32, samplesPerFrame)
	}

	var prevLong [2][21]int
	for gr := 0; gr < granulesPerFrame; gr++ {
		type chanSpectrum struct {
			coeffs [576]int
			sf     *scalefactors
			gi     *granuleInfo
		}
		specs := make([]chanSpectrum, hdr.channels)
		for ch := 0; ch < hdr.channels; ch++ {
			gi := &si.granules[gr][ch]
			granuleStart := r.BitsRead()
			sf, err := decodeScalefactors(r, gi, gr, ch, si, prevLongFor(prevLong, ch, gr))
			if err != nil {
				return out, nil
			}
			if gr == 0 {
				prevLong[ch] = sf.long
			}
			granuleEnd := granuleStart + gi.part23Length
			coeffs, err := decodeHuffmanSpectrum(r, gi, granuleEnd)
			if err != nil {
				return out, nil
			}
			// Skip any bits this channel's Huffman data didn't consume so
			// the next channel/granule starts at the right offset.
			if r.BitsRead() < granuleEnd {
				skip := granuleEnd - r.BitsRead()
				r.ReadBits(minInt(skip, r.BitsLeft()))
			}
			specs[ch] = chanSpectrum{coeffs: coeffs, sf: sf, gi: gi}
		}

		msStereo := hdr.channels == 2 && hdr.mode == modeJoint && hdr.modeExtension&0x2 != 0
		if msStereo {
			applyMSStereo(&specs[0].coeffs, &specs[1].coeffs)
		}

		for ch := 0; ch < hdr.channels; ch++ {
			cs := d.chans[ch]
			samples := reconstructGranule(cs, specs[ch].gi, specs[ch].sf, specs[ch].coeffs)
			copy(out[ch][gr*576:gr*576+576], samples[:])
		}
	}

	d.trimReservoir()
	return out, nil
}

func prevLongFor(prevLong [2][21]int, ch, gr int) *[21]int {
	if gr == 0 {
		return nil
	}
	return &prevLong[ch]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// applyMSStereo reverses mid/side stereo coding in place (spec.md §4.6
// "MS-stereo ... reversal"), applied uniformly to the whole granule rather
// than gated by mode_extension's intensity-stereo bound (see DESIGN.md).
func applyMSStereo(mid, side *[576]int) {
	const invSqrt2 = 0.70710678
	for i := range mid {
		m, s := mid[i], side[i]
		l := float64(m+s) * invSqrt2
		r := float64(m-s) * invSqrt2
		mid[i] = roundInt(l)
		side[i] = roundInt(r)
	}
}

func roundInt(v float64) int {
	if v >= 0 {
		return int(v + 0.5)
	}
	return -int(-v + 0.5)
}

// reconstructGranule dequantises, anti-aliases, runs the per-subband hybrid
// IMDCT, inverts frequency, and polyphase-synthesises one granule/channel
// into 576 PCM samples (spec.md §4.6's full per-granule pipeline).
func reconstructGranule(cs *chanState, gi *granuleInfo, sf *scalefactors, coeffs [576]int) [576]float32 {
	isShort := gi.windowSwitching && gi.blockType == blockShort
	longLines := 576
	if isShort {
		longLines = 0
		if gi.mixedBlock {
			longLines = mixedLongBands * 18
		}
	}

	subLines := make([][18]float64, subbands)

	if longLines > 0 {
		longVals := dequantizeLong(coeffs, gi, sf, longLines)
		for i, v := range longVals {
			subLines[i/18][i%18] = v
		}
	}
	if isShort {
		var windows [3][192]float64
		if gi.mixedBlock {
			windows = reorderMixedShort(coeffs[:], longLines)
		} else {
			windows = reorderShort(coeffs[:])
		}
		firstShortSubband := longLines / 18
		for w := 0; w < 3; w++ {
			dq := dequantizeShortWindow(windows[w], gi, sf, w)
			for sb := 0; sb < subbands-firstShortSubband; sb++ {
				for line := 0; line < 6; line++ {
					srcIdx := sb*6 + line
					if srcIdx >= len(dq) {
						continue
					}
					subLines[firstShortSubband+sb][w*6+line] = dq[srcIdx]
				}
			}
		}
	}

	nLongSubbands := longLines / 18
	if nLongSubbands > 1 {
		applyAntialias(subLines, nLongSubbands)
	}

	hybrid := make([][18]float64, subbands)
	for sb := 0; sb < subbands; sb++ {
		var composite [36]float64
		if isShort && sb >= nLongSubbands {
			lines := [3][]float64{
				subLines[sb][0:6],
				subLines[sb][6:12],
				subLines[sb][12:18],
			}
			composite = threeShortWindows(lines)
		} else {
			windowType := gi.blockType
			if isShort {
				// The long-transform prefix of a mixed block always uses
				// the normal window shape; block_type==2 only governs
				// the short subbands.
				windowType = blockNormal
			}
			win := longBlockWindow(windowType)
			var td [36]float64
			transform.IMDCT(subLines[sb][:], td[:])
			for i := range td {
				td[i] *= win[i]
			}
			composite = td
		}
		var half [18]float64
		cs.overlap[sb].Apply(composite[:], half[:])
		hybrid[sb] = half
	}

	frequencyInvert(hybrid)

	var out [576]float32
	for t := 0; t < 18; t++ {
		var s [32]float64
		for sb := 0; sb < subbands; sb++ {
			s[sb] = hybrid[sb][t]
		}
		pcm := synthesizeSlot(cs.synthHist, s)
		for sb := 0; sb < 32; sb++ {
			out[t*32+sb] = float32(pcm[sb])
		}
	}
	cs.prevBlockType = gi.blockType
	return out
}

func (d *Decoder) trimReservoir() {
	const keep = 2048
	if len(d.reservoir) > keep*2 {
		d.reservoir = append([]byte(nil), d.reservoir[len(d.reservoir)-keep:]...)
	}
}
